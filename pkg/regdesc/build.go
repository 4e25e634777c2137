package regdesc

import (
	"fmt"
	"io"

	"github.com/OpenTraceLab/seracc/pkg/mmio"
	"github.com/OpenTraceLab/seracc/pkg/regmap"
)

// Description is the resolved content of one or more description files.
type Description struct {
	Device      string
	Peripherals []regmap.PeripheralSpec
	Families    []regmap.FamilySpec
}

// Lookup returns the peripheral spec called name.
func (d *Description) Lookup(name string) (regmap.PeripheralSpec, bool) {
	for _, p := range d.Peripherals {
		if p.Name == name {
			return p, true
		}
	}
	return regmap.PeripheralSpec{}, false
}

// Resolve turns parsed files into peripheral specs. Derived peripherals may
// refer to peripherals declared later or in another file; derivation cycles
// and unknown sources are configuration errors.
func Resolve(files ...*File) (*Description, error) {
	d := &Description{}
	decls := make(map[string]*PeripheralDecl)
	var order []*PeripheralDecl
	for _, f := range files {
		if f.Device != nil && d.Device == "" {
			d.Device = f.Device.Name
		}
		for _, p := range f.Peripherals() {
			if prev, dup := decls[p.Name]; dup {
				return nil, declErr(p.Pos, "peripheral", p.Name, "duplicate name, first declared at %s", prev.Pos)
			}
			decls[p.Name] = p
			order = append(order, p)
		}
		for _, fam := range f.Families() {
			if fam.Auto {
				return nil, declErr(fam.Pos, "family", "auto", "automatic families are not supported at device level")
			}
			d.Families = append(d.Families, regmap.FamilySpec{Name: fam.Name, Pattern: fam.Pattern})
		}
	}

	resolved := make(map[string]regmap.PeripheralSpec)
	var resolve func(p *PeripheralDecl, stack []string) (regmap.PeripheralSpec, error)
	resolve = func(p *PeripheralDecl, stack []string) (regmap.PeripheralSpec, error) {
		if s, ok := resolved[p.Name]; ok {
			return s, nil
		}
		for _, n := range stack {
			if n == p.Name {
				return regmap.PeripheralSpec{}, declErr(p.Pos, "peripheral", p.Name, "derivation cycle %v", append(stack, p.Name))
			}
		}
		var base regmap.PeripheralSpec
		if p.Derived != "" {
			src, ok := decls[p.Derived]
			if !ok {
				return regmap.PeripheralSpec{}, declErr(p.Pos, "peripheral", p.Name, "derived from unknown peripheral %s", p.Derived)
			}
			s, err := resolve(src, append(stack, p.Name))
			if err != nil {
				return regmap.PeripheralSpec{}, err
			}
			base = s.Rebase(p.Name, uint32(p.Base), p.Description)
			base.Registers = append([]regmap.RegisterSpec(nil), s.Registers...)
			base.Families = append([]regmap.FamilySpec(nil), s.Families...)
		} else {
			base = regmap.PeripheralSpec{Name: p.Name, Base: uint32(p.Base), Description: p.Description}
		}
		s, err := peripheralSpec(p, base)
		if err != nil {
			return regmap.PeripheralSpec{}, err
		}
		resolved[p.Name] = s
		return s, nil
	}

	for _, p := range order {
		s, err := resolve(p, nil)
		if err != nil {
			return nil, err
		}
		d.Peripherals = append(d.Peripherals, s)
	}
	return d, nil
}

func peripheralSpec(p *PeripheralDecl, s regmap.PeripheralSpec) (regmap.PeripheralSpec, error) {
	auto := false
	declared := make(map[string]bool)
	for _, item := range p.Members {
		switch {
		case item.Register != nil:
			rs, err := registerSpec(p.Name, item.Register)
			if err != nil {
				return s, err
			}
			if declared[rs.Name] {
				return s, declErr(item.Register.Pos, "register", p.Name+"."+rs.Name, "duplicate name")
			}
			declared[rs.Name] = true
			if i := indexRegister(s.Registers, rs.Name); i >= 0 {
				// redeclaring an inherited register replaces it
				s.Registers[i] = rs
			} else {
				s.Registers = append(s.Registers, rs)
			}
		case item.Override != nil:
			o := item.Override
			i := indexRegister(s.Registers, o.Register)
			if i < 0 {
				return s, declErr(o.Pos, "register", p.Name+"."+o.Register, "override of undeclared register")
			}
			s.Registers[i].Reset = uint32(o.Reset)
		case item.Family != nil && item.Family.Auto:
			auto = true
		case item.Family != nil:
			s.Families = append(s.Families, regmap.FamilySpec{Name: item.Family.Name, Pattern: item.Family.Pattern})
		}
	}
	if auto {
		names := make([]string, len(s.Registers))
		for i, r := range s.Registers {
			names[i] = r.Name
		}
		s.Families = mergeFamilies(s.Families, DetectFamilies(names))
	}
	return s, nil
}

func registerSpec(periph string, r *RegisterDecl) (regmap.RegisterSpec, error) {
	path := periph + "." + r.Name
	access, err := regmap.ParseAccess(r.Access)
	if err != nil {
		return regmap.RegisterSpec{}, declErr(r.Pos, "register", path, "%v", err)
	}
	rs := regmap.RegisterSpec{
		Name:        r.Name,
		Offset:      uint32(r.Offset),
		Access:      access,
		Description: r.Description,
	}
	if r.Reset != nil {
		rs.Reset = uint32(*r.Reset)
	}

	auto := false
	for _, item := range r.Members {
		switch {
		case item.Field != nil:
			f := item.Field
			var mask uint32
			if f.Bits != nil {
				m, err := f.Bits.Mask()
				if err != nil {
					return rs, declErr(f.Pos, "field", path+"."+f.Name, "%v", err)
				}
				mask = m
			} else {
				mask = uint32(*f.Mask)
			}
			rs.Fields = append(rs.Fields, regmap.FieldSpec{Name: f.Name, Mask: mask, Description: f.Description})
		case item.Family.Auto:
			auto = true
		default:
			rs.Families = append(rs.Families, regmap.FamilySpec{Name: item.Family.Name, Pattern: item.Family.Pattern})
		}
	}
	if auto {
		names := make([]string, len(rs.Fields))
		for i, f := range rs.Fields {
			names[i] = f.Name
		}
		rs.Families = mergeFamilies(rs.Families, DetectFamilies(names))
	}
	return rs, nil
}

func indexRegister(regs []regmap.RegisterSpec, name string) int {
	for i, r := range regs {
		if r.Name == name {
			return i
		}
	}
	return -1
}

// mergeFamilies appends detected families that do not clash with explicit
// ones by pattern or by name.
func mergeFamilies(explicit, detected []regmap.FamilySpec) []regmap.FamilySpec {
	taken := make(map[string]bool)
	for _, f := range explicit {
		taken["p:"+f.Pattern] = true
		name := f.Name
		if name == "" {
			name = familyName(f.Pattern)
		}
		taken["n:"+name] = true
	}
	out := explicit
	for _, f := range detected {
		if taken["p:"+f.Pattern] || taken["n:"+f.Name] {
			continue
		}
		taken["p:"+f.Pattern], taken["n:"+f.Name] = true, true
		out = append(out, f)
	}
	return out
}

// Build instantiates every peripheral of d on bus and assembles the device.
// The first configuration error aborts the whole assembly.
func (d *Description) Build(bus mmio.Bus) (*regmap.Device, error) {
	name := d.Device
	if name == "" {
		name = "device"
	}
	dev := regmap.NewDevice(name)
	for _, s := range d.Peripherals {
		p, err := s.Instantiate(bus)
		if err != nil {
			return nil, fmt.Errorf("regdesc: %w", err)
		}
		if err := dev.Add(p); err != nil {
			return nil, fmt.Errorf("regdesc: %w", err)
		}
	}
	for _, f := range d.Families {
		if _, err := dev.AddFamily(f.Name, f.Pattern); err != nil {
			return nil, fmt.Errorf("regdesc: %w", err)
		}
	}
	return dev, nil
}

// Load parses one description and builds it on bus.
func Load(name string, r io.Reader, bus mmio.Bus) (*regmap.Device, error) {
	p, err := NewParser()
	if err != nil {
		return nil, err
	}
	f, err := p.Parse(name, r)
	if err != nil {
		return nil, err
	}
	d, err := Resolve(f)
	if err != nil {
		return nil, err
	}
	return d.Build(bus)
}

// LoadFiles parses several description files as one device. Peripherals may
// derive from peripherals declared in another file.
func LoadFiles(bus mmio.Bus, paths ...string) (*regmap.Device, error) {
	p, err := NewParser()
	if err != nil {
		return nil, err
	}
	files := make([]*File, 0, len(paths))
	for _, path := range paths {
		f, err := p.ParseFile(path)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	d, err := Resolve(files...)
	if err != nil {
		return nil, err
	}
	return d.Build(bus)
}
