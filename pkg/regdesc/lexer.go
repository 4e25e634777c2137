package regdesc

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// Lexer defines the lexical structure of register description files.
var Lexer = lexer.MustSimple([]lexer.SimpleRule{
	// Comments: '#' or '//' to end of line
	{Name: "Comment", Pattern: `(?:#|//)[^\n]*`},

	{Name: "Whitespace", Pattern: `[\s\t\n\r]+`},

	// Keywords are lower case; declaration names are conventionally upper case.
	{Name: "KwDevice", Pattern: `\bdevice\b`},
	{Name: "KwPeripheral", Pattern: `\bperipheral\b`},
	{Name: "KwRegister", Pattern: `\bregister\b`},
	{Name: "KwField", Pattern: `\bfield\b`},
	{Name: "KwFamily", Pattern: `\bfamily\b`},
	{Name: "KwReset", Pattern: `\breset\b`},
	{Name: "KwDerived", Pattern: `\bderived\b`},
	{Name: "KwOverride", Pattern: `\boverride\b`},
	{Name: "KwAuto", Pattern: `\bauto\b`},
	{Name: "Access", Pattern: `\b(?:rw|ro|wo)\b`},

	{Name: "At", Pattern: `@`},
	{Name: "Plus", Pattern: `\+`},
	{Name: "Colon", Pattern: `:`},
	{Name: "Semicolon", Pattern: `;`},
	{Name: "LBrace", Pattern: `\{`},
	{Name: "RBrace", Pattern: `\}`},
	{Name: "LBracket", Pattern: `\[`},
	{Name: "RBracket", Pattern: `\]`},

	{Name: "String", Pattern: `"(?:[^"\\]|\\.)*"`},

	// Numbers; underscores group digits (0x4002_1000)
	{Name: "Hex", Pattern: `0[xX][0-9A-Fa-f_]+`},
	{Name: "Integer", Pattern: `[0-9][0-9_]*`},

	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_]*`},
})
