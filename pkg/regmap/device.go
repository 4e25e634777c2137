package regmap

import (
	"fmt"
	"sort"
	"strings"
)

// Device groups the peripherals of one part, e.g. an STM32G474.
type Device struct {
	name        string
	peripherals []*Peripheral
	byName      map[string]*Peripheral
	families    familySet[*Peripheral]
}

// NewDevice creates an empty device.
func NewDevice(name string) *Device {
	return &Device{name: name, byName: make(map[string]*Peripheral)}
}

func (d *Device) Name() string { return d.name }

// Add registers p. Peripheral names must be unique within a device.
func (d *Device) Add(p *Peripheral) error {
	if p == nil {
		return configErr("device", d.name, "nil peripheral")
	}
	if _, dup := d.byName[p.name]; dup {
		return configErr("peripheral", p.name, "duplicate name in device %s", d.name)
	}
	d.peripherals = append(d.peripherals, p)
	d.byName[p.name] = p
	return nil
}

// Lookup returns the peripheral called name.
func (d *Device) Lookup(name string) (*Peripheral, bool) {
	p, ok := d.byName[name]
	return p, ok
}

// Peripherals returns the peripherals sorted by base address, then name.
func (d *Device) Peripherals() []*Peripheral {
	out := make([]*Peripheral, len(d.peripherals))
	copy(out, d.peripherals)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].base != out[j].base {
			return out[i].base < out[j].base
		}
		return out[i].name < out[j].name
	})
	return out
}

// AddFamily declares a Subscriptor over peripherals ("GPIO{}" indexed by
// port letter, "TIM{}" by number).
func (d *Device) AddFamily(name, pattern string) (*Subscriptor[*Peripheral], error) {
	return d.families.add(d, d.name, name, pattern)
}

// Family returns the Subscriptor registered as name.
func (d *Device) Family(name string) (*Subscriptor[*Peripheral], bool) {
	return d.families.get(name)
}

// Families lists family names in declaration order.
func (d *Device) Families() []string {
	return d.families.names()
}

// Target is the result of resolving a dotted path. Register and Field are
// nil when the path stops early.
type Target struct {
	Peripheral *Peripheral
	Register   *Register
	Field      *BitField
}

// Path returns the canonical dotted path of the target.
func (t Target) Path() string {
	switch {
	case t.Field != nil:
		return t.Field.Path()
	case t.Register != nil:
		return t.Register.Path()
	case t.Peripheral != nil:
		return t.Peripheral.name
	}
	return ""
}

// Resolve walks a path such as "RCC.AHB1ENR.DMA1EN". Every segment may use
// family syntax instead of a plain name: "GPIO[A].ODR",
// "RCC.APB1RSTR1.TIMRST[2]", "TIM2.CCER.CCE[3]".
func (d *Device) Resolve(path string) (Target, error) {
	segs := strings.Split(path, ".")
	if len(segs) == 0 || len(segs) > 3 || path == "" {
		return Target{}, fmt.Errorf("%w: malformed path %q", ErrNotFound, path)
	}

	var t Target
	p, err := resolveSegment[*Peripheral](d, d.families.get, d.name, segs[0])
	if err != nil {
		return Target{}, err
	}
	t.Peripheral = p
	if len(segs) == 1 {
		return t, nil
	}

	r, err := resolveSegment[*Register](p, p.families.get, p.name, segs[1])
	if err != nil {
		return Target{}, err
	}
	t.Register = r
	if len(segs) == 2 {
		return t, nil
	}

	f, err := resolveSegment[*BitField](r, r.families.get, r.Path(), segs[2])
	if err != nil {
		return Target{}, err
	}
	t.Field = f
	return t, nil
}

func resolveSegment[T any](owner Resolver[T], family func(string) (*Subscriptor[T], bool), ownerName, seg string) (T, error) {
	var zero T
	if open := strings.IndexByte(seg, '['); open > 0 && strings.HasSuffix(seg, "]") {
		name, index := seg[:open], seg[open+1:len(seg)-1]
		s, ok := family(name)
		if !ok {
			return zero, fmt.Errorf("%w: %s has no family %s", ErrNotFound, ownerName, name)
		}
		return s.ResolveKey(index)
	}
	v, ok := owner.Lookup(seg)
	if !ok {
		return zero, fmt.Errorf("%w: %s has no member %s", ErrNotFound, ownerName, seg)
	}
	return v, nil
}
