package snapshot

import (
	"sort"

	"github.com/OpenTraceLab/seracc/pkg/regmap"
)

// Change is one address whose word differs between two snapshots.
type Change struct {
	Address  uint32
	Name     string
	Before   uint32
	After    uint32
	InBefore bool
	InAfter  bool
}

// FieldChange is one field whose value differs inside a changed word.
type FieldChange struct {
	Path   string
	Before uint32
	After  uint32
}

// Diff lists the addresses whose words differ between before and after, in
// ascending address order. Addresses captured in only one snapshot are
// reported with the other side absent.
func Diff(before, after *Snapshot) []Change {
	seen := make(map[uint32]bool)
	var addrs []uint32
	for _, s := range []*Snapshot{before, after} {
		for a := range s.Words {
			if !seen[a] {
				seen[a] = true
				addrs = append(addrs, a)
			}
		}
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })

	var out []Change
	for _, a := range addrs {
		b, inB := before.Words[a]
		v, inA := after.Words[a]
		if inB && inA && b == v {
			continue
		}
		name := after.Names[a]
		if name == "" {
			name = before.Names[a]
		}
		out = append(out, Change{Address: a, Name: name, Before: b, After: v, InBefore: inB, InAfter: inA})
	}
	return out
}

// Fields breaks a change down to the fields of every register view declared
// at its address on dev.
func (c Change) Fields(dev *regmap.Device) []FieldChange {
	var out []FieldChange
	for _, p := range dev.Peripherals() {
		if c.Address < p.Base() {
			continue
		}
		for _, r := range p.Views(c.Address - p.Base()) {
			for _, f := range r.Fields() {
				b, a := f.Extract(c.Before), f.Extract(c.After)
				if b != a {
					out = append(out, FieldChange{Path: f.Path(), Before: b, After: a})
				}
			}
		}
	}
	return out
}
