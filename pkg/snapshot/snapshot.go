// Package snapshot captures the register state of a device tree, stores it
// as CBOR and writes it back.
package snapshot

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/OpenTraceLab/seracc/pkg/regmap"
)

// Version is the snapshot encoding version written by Marshal.
const Version = 1

// Snapshot is the content of every readable register at one instant.
// Aliased register views share an address and are stored once.
type Snapshot struct {
	Version int               `cbor:"1,keyasint"`
	ID      uuid.UUID         `cbor:"2,keyasint"`
	Device  string            `cbor:"3,keyasint"`
	Taken   time.Time         `cbor:"4,keyasint"`
	Label   string            `cbor:"5,keyasint,omitempty"`
	Words   map[uint32]uint32 `cbor:"6,keyasint"`
	Names   map[uint32]string `cbor:"7,keyasint,omitempty"` // first register path per address
}

// Addresses returns the captured addresses in ascending order.
func (s *Snapshot) Addresses() []uint32 {
	out := make([]uint32, 0, len(s.Words))
	for a := range s.Words {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Capture reads every readable register of dev. Write-only registers are
// skipped. A failed read aborts the capture.
func Capture(dev *regmap.Device, label string) (*Snapshot, error) {
	s := &Snapshot{
		Version: Version,
		ID:      uuid.New(),
		Device:  dev.Name(),
		Taken:   time.Now().UTC(),
		Label:   label,
		Words:   make(map[uint32]uint32),
		Names:   make(map[uint32]string),
	}
	for _, p := range dev.Peripherals() {
		for _, r := range p.Registers() {
			if !r.Access().CanRead() {
				continue
			}
			addr := r.Address()
			if _, seen := s.Words[addr]; seen {
				continue
			}
			v, err := r.Read()
			if err != nil {
				return nil, fmt.Errorf("snapshot: read %s: %w", r.Path(), err)
			}
			s.Words[addr] = v
			s.Names[addr] = r.Path()
		}
	}
	return s, nil
}

// Restore writes the captured words back through dev. Only registers that are
// both readable and writable are restored; read-only status registers and
// write-only strobes are left alone. Aliased views are written once. It
// returns the number of stores made.
func Restore(dev *regmap.Device, s *Snapshot) (int, error) {
	if s.Device != "" && s.Device != dev.Name() {
		return 0, fmt.Errorf("snapshot: captured on %s, restoring onto %s", s.Device, dev.Name())
	}
	done := make(map[uint32]bool)
	n := 0
	for _, p := range dev.Peripherals() {
		for _, r := range p.Registers() {
			if r.Access() != regmap.AccessReadWrite {
				continue
			}
			addr := r.Address()
			v, ok := s.Words[addr]
			if !ok || done[addr] {
				continue
			}
			if err := r.Write(v); err != nil {
				return n, fmt.Errorf("snapshot: restore %s: %w", r.Path(), err)
			}
			done[addr] = true
			n++
		}
	}
	return n, nil
}
