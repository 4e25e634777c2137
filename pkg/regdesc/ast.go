package regdesc

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
)

// File is one parsed description file.
//
//	device STM32G4 "STM32G4 series"
//	peripheral RCC @ 0x40021000 "Reset and clock control" { ... }
//	family GPIO "GPIO{}"
type File struct {
	Device  *DeviceDecl `@@?`
	Entries []*TopDecl  `@@*`
}

// DeviceDecl names the device the file describes.
type DeviceDecl struct {
	Name        string `KwDevice @Ident`
	Description string `@String? Semicolon?`
}

// TopDecl is a file-level declaration.
type TopDecl struct {
	Peripheral *PeripheralDecl `  @@`
	Family     *FamilyDecl     `| @@`
}

// Peripherals returns the peripheral declarations in file order.
func (f *File) Peripherals() []*PeripheralDecl {
	var out []*PeripheralDecl
	for _, e := range f.Entries {
		if e.Peripheral != nil {
			out = append(out, e.Peripheral)
		}
	}
	return out
}

// Families returns the device-level family declarations.
func (f *File) Families() []*FamilyDecl {
	var out []*FamilyDecl
	for _, e := range f.Entries {
		if e.Family != nil {
			out = append(out, e.Family)
		}
	}
	return out
}

// PeripheralDecl declares a peripheral instance. A derived peripheral reuses
// the registers and families of another one at its own base.
//
//	peripheral GPIOD @ 0x48000C00 derived GPIOC
type PeripheralDecl struct {
	Pos lexer.Position

	Name        string            `KwPeripheral @Ident`
	Base        Number            `At @(Hex | Integer)`
	Derived     string            `( KwDerived @Ident )?`
	Description string            `@String?`
	Members     []*PeripheralItem `( LBrace @@* RBrace )? Semicolon?`
}

// PeripheralItem is a declaration inside a peripheral body.
type PeripheralItem struct {
	Register *RegisterDecl `  @@`
	Family   *FamilyDecl   `| @@`
	Override *OverrideDecl `| @@`
}

// RegisterDecl declares a register.
//
//	register AHB1ENR + 0x48 reset 0x00000100 "AHB1 peripheral clock enable" { ... }
type RegisterDecl struct {
	Pos lexer.Position

	Name        string          `KwRegister @Ident`
	Offset      Number          `Plus @(Hex | Integer)`
	Access      string          `@Access?`
	Reset       *Number         `( KwReset @(Hex | Integer) )?`
	Description string          `@String?`
	Members     []*RegisterItem `( LBrace @@* RBrace )? Semicolon?`
}

// RegisterItem is a declaration inside a register body.
type RegisterItem struct {
	Field  *FieldDecl  `  @@`
	Family *FamilyDecl `| @@`
}

// FieldDecl declares a bitfield by mask or by bit range.
//
//	field DMA1EN 0x00000001 "DMA1 clock enable"
//	field MODE [6:4]
type FieldDecl struct {
	Pos lexer.Position

	Name        string   `KwField @Ident`
	Mask        *Number  `( @(Hex | Integer)`
	Bits        *BitSpec `| @@ )`
	Description string   `@String? Semicolon?`
}

// BitSpec is "[n]" or "[hi:lo]".
type BitSpec struct {
	Hi int  `LBracket @Integer`
	Lo *int `( Colon @Integer )? RBracket`
}

// Mask returns the mask covered by the bit range.
func (b *BitSpec) Mask() (uint32, error) {
	lo := b.Hi
	if b.Lo != nil {
		lo = *b.Lo
	}
	if b.Hi > 31 || lo > 31 || b.Hi < 0 || lo < 0 {
		return 0, fmt.Errorf("bit range [%d:%d] outside a 32-bit register", b.Hi, lo)
	}
	if b.Hi < lo {
		return 0, fmt.Errorf("bit range [%d:%d] is reversed", b.Hi, lo)
	}
	width := uint(b.Hi - lo + 1)
	if width == 32 {
		return 0xFFFFFFFF, nil
	}
	return ((1 << width) - 1) << uint(lo), nil
}

// FamilyDecl declares a Subscriptor. "family auto" asks the loader to detect
// numbered sibling groups among the members.
//
//	family DMAEN "DMA{}EN"
//	family "TIM{}RST"
//	family auto
type FamilyDecl struct {
	Pos lexer.Position

	Auto    bool   `KwFamily ( @KwAuto`
	Name    string `| @Ident?`
	Pattern string `  @String ) Semicolon?`
}

// OverrideDecl changes the reset value of an inherited register.
//
//	override MODER reset 0xFFFFFFFF
type OverrideDecl struct {
	Pos lexer.Position

	Register string `KwOverride @Ident`
	Reset    Number `KwReset @(Hex | Integer) Semicolon?`
}

// Number is a 32-bit literal in decimal or 0x hexadecimal, with optional
// underscores. Leading zeros on a decimal literal do not make it octal.
type Number uint32

// Capture implements participle.Capture.
func (n *Number) Capture(values []string) error {
	s := strings.ReplaceAll(values[0], "_", "")
	base := 10
	if len(s) > 1 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s, base = s[2:], 16
	}
	v, err := strconv.ParseUint(s, base, 32)
	if err != nil {
		return fmt.Errorf("invalid 32-bit number %q", values[0])
	}
	*n = Number(v)
	return nil
}
