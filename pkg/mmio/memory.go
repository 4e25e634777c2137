package mmio

import (
	"sort"
	"sync"
)

// AccessKind distinguishes loads from stores in the access log.
type AccessKind uint8

const (
	AccessRead AccessKind = iota
	AccessWrite
)

func (k AccessKind) String() string {
	if k == AccessWrite {
		return "write"
	}
	return "read"
}

// Access records one bus transaction for inspection within tests.
type Access struct {
	Kind  AccessKind
	Addr  uint32
	Value uint32
}

// ReadHook lets a simulation emulate device-specific load behaviour. It
// receives the stored word and returns the value the CPU observes together
// with the word to keep stored (e.g. clear-on-read status registers).
type ReadHook func(addr, stored uint32) (observed, keep uint32)

// WriteHook lets a simulation emulate device-specific store behaviour. It
// receives the currently stored word and the written value and returns the
// word to store (e.g. write-1-to-clear flags, BSRR set/reset aliases).
type WriteHook func(addr, stored, written uint32) uint32

// Memory is a sparse in-memory Bus useful for unit tests and host-side
// simulation. Unwritten words read as zero. Without hooks it satisfies the
// round-trip law Write32(a, w); Read32(a) == w, which real silicon does not
// for read-only or self-clearing bits.
type Memory struct {
	mu    sync.Mutex
	words map[uint32]uint32

	readHooks  map[uint32]ReadHook
	writeHooks map[uint32]WriteHook

	log    []Access
	logCap int
}

// NewMemory creates an empty simulated address space.
func NewMemory() *Memory {
	return &Memory{
		words:      make(map[uint32]uint32),
		readHooks:  make(map[uint32]ReadHook),
		writeHooks: make(map[uint32]WriteHook),
		logCap:     1024,
	}
}

// Preload stores value at addr without running hooks or touching the log.
// It models the reset state of a device.
func (m *Memory) Preload(addr, value uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.words[addr] = value
}

// Peek returns the stored word at addr without running hooks or logging.
func (m *Memory) Peek(addr uint32) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.words[addr]
}

// OnRead installs a read hook for a single word address.
func (m *Memory) OnRead(addr uint32, hook ReadHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if hook == nil {
		delete(m.readHooks, addr)
		return
	}
	m.readHooks[addr] = hook
}

// OnWrite installs a write hook for a single word address.
func (m *Memory) OnWrite(addr uint32, hook WriteHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if hook == nil {
		delete(m.writeHooks, addr)
		return
	}
	m.writeHooks[addr] = hook
}

func (m *Memory) Read32(addr uint32) (uint32, error) {
	if err := CheckAligned(addr); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := m.words[addr]
	observed := stored
	if hook, ok := m.readHooks[addr]; ok {
		var keep uint32
		observed, keep = hook(addr, stored)
		m.words[addr] = keep
	}
	m.record(Access{Kind: AccessRead, Addr: addr, Value: observed})
	return observed, nil
}

func (m *Memory) Write32(addr uint32, value uint32) error {
	if err := CheckAligned(addr); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	next := value
	if hook, ok := m.writeHooks[addr]; ok {
		next = hook(addr, m.words[addr], value)
	}
	m.words[addr] = next
	m.record(Access{Kind: AccessWrite, Addr: addr, Value: value})
	return nil
}

// LastAccess returns the most recent transaction and whether one exists.
func (m *Memory) LastAccess() (Access, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.log) == 0 {
		return Access{}, false
	}
	return m.log[len(m.log)-1], true
}

// Accesses returns a copy of the access log, oldest first.
func (m *Memory) Accesses() []Access {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Access(nil), m.log...)
}

// ResetLog clears the access log.
func (m *Memory) ResetLog() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log = m.log[:0]
}

// Addresses lists every word address that holds a value, ascending.
func (m *Memory) Addresses() []uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]uint32, 0, len(m.words))
	for addr := range m.words {
		out = append(out, addr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (m *Memory) record(a Access) {
	if len(m.log) >= m.logCap {
		copy(m.log, m.log[1:])
		m.log = m.log[:len(m.log)-1]
	}
	m.log = append(m.log, a)
}

// SetResetHook returns a WriteHook implementing an STM32-style BSRR alias on
// the data register at target: the low half sets bits, the high half resets
// them, and set wins when both are requested for one bit. The alias itself
// always reads as zero. The hook must be installed on mem.
func SetResetHook(mem *Memory, target uint32) WriteHook {
	return func(addr, _, written uint32) uint32 {
		set := written & 0xFFFF
		reset := written >> 16
		// called with mem.mu held: touch the map directly
		cur := mem.words[target]
		cur = (cur &^ reset) | set
		mem.words[target] = cur
		return 0
	}
}

// ResetOnlyHook returns a WriteHook implementing a BRR-style alias: every 1
// written clears the corresponding bit of the data register at target.
func ResetOnlyHook(mem *Memory, target uint32) WriteHook {
	return func(addr, _, written uint32) uint32 {
		mem.words[target] &^= written & 0xFFFF
		return 0
	}
}

// ClearHook returns a WriteHook for an interrupt-flag-clear alias: every 1
// written clears the corresponding bit of the status register at target.
func ClearHook(mem *Memory, target uint32) WriteHook {
	return func(addr, _, written uint32) uint32 {
		mem.words[target] &^= written
		return 0
	}
}

// MirrorHook returns a ReadHook that observes the word at source instead of
// the stored one, e.g. an input data register looped back to the output
// register of the same port. The stored word is left as it was.
func MirrorHook(mem *Memory, source uint32) ReadHook {
	return func(addr, stored uint32) (uint32, uint32) {
		return mem.words[source], stored
	}
}
