package regmap

import (
	"errors"
	"sync"
	"testing"

	"github.com/OpenTraceLab/seracc/pkg/mmio"
)

// newTestRegister builds a peripheral at 0x40000000 with one register at
// offset 0x10 whose reset value is preloaded into simulated memory.
func newTestRegister(t *testing.T, reset uint32, fields ...FieldSpec) (*mmio.Memory, *Register) {
	t.Helper()
	mem := mmio.NewMemory()
	p, err := NewPeripheral(mem, 0x40000000, "TEST", "test peripheral")
	if err != nil {
		t.Fatalf("NewPeripheral returned error: %v", err)
	}
	r, err := p.AddRegister(RegisterSpec{Name: "CR", Offset: 0x10, Reset: reset, Fields: fields})
	if err != nil {
		t.Fatalf("AddRegister returned error: %v", err)
	}
	mem.Preload(r.Address(), reset)
	return mem, r
}

func TestNewPeripheralValidation(t *testing.T) {
	mem := mmio.NewMemory()
	tests := []struct {
		name    string
		bus     mmio.Bus
		base    uint32
		pname   string
		wantErr bool
	}{
		{"valid", mem, 0x40021000, "RCC", false},
		{"unaligned base", mem, 0x40021002, "RCC", true},
		{"empty name", mem, 0x40021000, "", true},
		{"nil bus", nil, 0x40021000, "RCC", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewPeripheral(tt.bus, tt.base, tt.pname, "")
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewPeripheral() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrConfiguration) {
					t.Fatalf("error %v does not match ErrConfiguration", err)
				}
				var ce *ConfigurationError
				if !errors.As(err, &ce) || ce.Kind != "peripheral" {
					t.Fatalf("error %v is not a peripheral ConfigurationError", err)
				}
				return
			}
			if p.Base() != tt.base || p.Name() != tt.pname {
				t.Fatalf("peripheral = %s, want %s@0x%08X", p, tt.pname, tt.base)
			}
		})
	}
}

func TestAddRegisterValidation(t *testing.T) {
	mem := mmio.NewMemory()
	p, _ := NewPeripheral(mem, 0xFFFFFF00, "HIGH", "")
	if _, err := p.AddRegister(RegisterSpec{Name: "A", Offset: 0x3}); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("unaligned offset error = %v, want ErrConfiguration", err)
	}
	if _, err := p.AddRegister(RegisterSpec{Name: "B", Offset: 0x100}); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("overflowing offset error = %v, want ErrConfiguration", err)
	}
	if _, err := p.AddRegister(RegisterSpec{Name: "C", Offset: 0xFC}); err != nil {
		t.Fatalf("last word of address space rejected: %v", err)
	}
	if _, err := p.AddRegister(RegisterSpec{Name: "C", Offset: 0xF8}); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("duplicate name error = %v, want ErrConfiguration", err)
	}
	if _, err := p.AddRegister(RegisterSpec{Name: "", Offset: 0}); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("empty name error = %v, want ErrConfiguration", err)
	}
	if _, err := p.AddRegister(RegisterSpec{Name: "D", Fields: []FieldSpec{{Name: "Z", Mask: 0}}}); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("zero mask error = %v, want ErrConfiguration", err)
	}
	if _, ok := p.Lookup("D"); ok {
		t.Fatalf("register with a rejected field must not be declared")
	}
}

func TestRegisterAddressAndRoundTrip(t *testing.T) {
	mem, r := newTestRegister(t, 0)
	if got := r.Address(); got != 0x40000010 {
		t.Fatalf("Address() = 0x%08X, want 0x40000010", got)
	}
	for _, w := range []uint32{0x1, 0xCAFEF00D, 0xFFFFFFFF, 0} {
		if err := r.Write(w); err != nil {
			t.Fatalf("Write returned error: %v", err)
		}
		got, err := r.Read()
		if err != nil {
			t.Fatalf("Read returned error: %v", err)
		}
		if got != w {
			t.Fatalf("Read() = 0x%08X, want 0x%08X", got, w)
		}
	}
	last, _ := mem.LastAccess()
	if last.Addr != 0x40000010 {
		t.Fatalf("bus saw address 0x%08X, want 0x40000010", last.Addr)
	}
}

func TestRegisterReadIsNotCached(t *testing.T) {
	mem, r := newTestRegister(t, 0)
	if v, _ := r.Read(); v != 0 {
		t.Fatalf("Read() = %#x, want 0", v)
	}
	// hardware sets a status flag behind software's back
	mem.Preload(r.Address(), 0x80)
	if v, _ := r.Read(); v != 0x80 {
		t.Fatalf("Read() after external change = %#x, want 0x80", v)
	}
	if n := len(mem.Accesses()); n != 2 {
		t.Fatalf("bus accesses = %d, want 2", n)
	}
}

func TestWriteIsSingleStore(t *testing.T) {
	mem, r := newTestRegister(t, 0xFFFF0000)
	mem.ResetLog()
	if err := r.Write(0x1234); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	log := mem.Accesses()
	if len(log) != 1 || log[0].Kind != mmio.AccessWrite {
		t.Fatalf("Write produced %v, want exactly one store", log)
	}
}

func TestUninitializedAccess(t *testing.T) {
	var r Register
	if _, err := r.Read(); !errors.Is(err, ErrUninitialized) {
		t.Fatalf("Read() error = %v, want ErrUninitialized", err)
	}
	if err := r.Write(1); !errors.Is(err, ErrUninitialized) {
		t.Fatalf("Write() error = %v, want ErrUninitialized", err)
	}
	var f BitField
	if _, err := f.Get(); !errors.Is(err, ErrUninitialized) {
		t.Fatalf("Get() error = %v, want ErrUninitialized", err)
	}
	if err := f.Set(0); !errors.Is(err, ErrUninitialized) {
		t.Fatalf("Set() error = %v, want ErrUninitialized", err)
	}
}

func TestResetScenario(t *testing.T) {
	mem, r := newTestRegister(t, 0x00000200,
		FieldSpec{Name: "FLAG", Mask: 0x00000001},
		FieldSpec{Name: "MODE", Mask: 0x00000006},
	)
	flag, mode := r.MustField("FLAG"), r.MustField("MODE")

	if v, _ := flag.Get(); v != 0 {
		t.Fatalf("FLAG.Get() = %d, want 0", v)
	}
	if v, _ := mode.Get(); v != 0 {
		t.Fatalf("MODE.Get() = %d, want 0", v)
	}
	if err := mode.Set(3); err != nil {
		t.Fatalf("MODE.Set(3) returned error: %v", err)
	}
	if got := mem.Peek(r.Address()); got != 0x00000206 {
		t.Fatalf("register word = 0x%08X, want 0x00000206", got)
	}
	if v, _ := flag.Get(); v != 0 {
		t.Fatalf("FLAG.Get() after MODE.Set = %d, want 0", v)
	}
	if v, _ := mode.Get(); v != 3 {
		t.Fatalf("MODE.Get() = %d, want 3", v)
	}
}

func TestBitFieldRoundTripAllValues(t *testing.T) {
	masks := []uint32{0x1, 0x6, 0xF0, 0x0003FF00, 0x80000000, 0xFFFFFFFF}
	for _, mask := range masks {
		_, r := newTestRegister(t, 0xA5A5A5A5, FieldSpec{Name: "F", Mask: mask})
		f := r.MustField("F")
		limit := f.Max()
		step := uint32(1)
		if limit > 1<<12 {
			step = limit / 4096
		}
		for v := uint32(0); ; v += step {
			if err := f.Set(v); err != nil {
				t.Fatalf("mask %#x: Set(%d) returned error: %v", mask, v, err)
			}
			got, err := f.Get()
			if err != nil {
				t.Fatalf("mask %#x: Get returned error: %v", mask, err)
			}
			if got != v {
				t.Fatalf("mask %#x: Get() = %d after Set(%d)", mask, got, v)
			}
			if limit-v < step {
				break
			}
		}
	}
}

func TestBitFieldSiblingIsolation(t *testing.T) {
	_, r := newTestRegister(t, 0,
		FieldSpec{Name: "LOW", Mask: 0x000000FF},
		FieldSpec{Name: "MID", Mask: 0x0000FF00},
		FieldSpec{Name: "HIGH", Mask: 0xFFFF0000},
	)
	low, mid, high := r.MustField("LOW"), r.MustField("MID"), r.MustField("HIGH")
	_ = low.Set(0x12)
	_ = high.Set(0xBEEF)
	for _, v := range []uint32{0, 0x5A, 0xFF} {
		if err := mid.Set(v); err != nil {
			t.Fatalf("MID.Set(%#x) returned error: %v", v, err)
		}
		if got, _ := low.Get(); got != 0x12 {
			t.Fatalf("LOW changed to %#x after MID.Set(%#x)", got, v)
		}
		if got, _ := high.Get(); got != 0xBEEF {
			t.Fatalf("HIGH changed to %#x after MID.Set(%#x)", got, v)
		}
	}
}

func TestBitFieldOutOfRange(t *testing.T) {
	mem, r := newTestRegister(t, 0x00000200, FieldSpec{Name: "MODE", Mask: 0x6})
	mode := r.MustField("MODE")
	mem.ResetLog()

	err := mode.Set(4)
	if !errors.Is(err, ErrValueOutOfRange) {
		t.Fatalf("Set(4) error = %v, want ErrValueOutOfRange", err)
	}
	var oor *ValueOutOfRangeError
	if !errors.As(err, &oor) || oor.Max != 3 || oor.Value != 4 || oor.Field != "TEST.CR.MODE" {
		t.Fatalf("Set(4) error = %#v", err)
	}
	if got := mem.Peek(r.Address()); got != 0x200 {
		t.Fatalf("register changed to 0x%08X on rejected Set", got)
	}
	if n := len(mem.Accesses()); n != 0 {
		t.Fatalf("rejected Set touched the bus %d times", n)
	}
}

func TestNonContiguousMask(t *testing.T) {
	// bits 0 and 2
	mem, r := newTestRegister(t, 0x2, FieldSpec{Name: "SPLIT", Mask: 0x5})
	f := r.MustField("SPLIT")
	if f.Max() != 5 || f.Width() != 2 {
		t.Fatalf("Max() = %d Width() = %d, want 5 and 2", f.Max(), f.Width())
	}
	if err := f.Set(5); err != nil {
		t.Fatalf("Set(5) returned error: %v", err)
	}
	if got := mem.Peek(r.Address()); got != 0x7 {
		t.Fatalf("word = %#x, want 0x7", got)
	}
	// 2 would land on bit 1, which the field does not own
	if err := f.Set(2); !errors.Is(err, ErrValueOutOfRange) {
		t.Fatalf("Set(2) error = %v, want ErrValueOutOfRange", err)
	}
	if got := mem.Peek(r.Address()); got != 0x7 {
		t.Fatalf("word changed to %#x on rejected Set", got)
	}
}

func TestFullWidthField(t *testing.T) {
	_, r := newTestRegister(t, 0, FieldSpec{Name: "ALL", Mask: 0xFFFFFFFF})
	f := r.MustField("ALL")
	if f.Shift() != 0 || f.Max() != 0xFFFFFFFF {
		t.Fatalf("Shift() = %d Max() = %#x", f.Shift(), f.Max())
	}
	if err := f.Set(0xDEADBEEF); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	if v, _ := r.Read(); v != 0xDEADBEEF {
		t.Fatalf("Read() = %#x, want 0xdeadbeef", v)
	}
}

func TestGetIdempotent(t *testing.T) {
	_, r := newTestRegister(t, 0x30, FieldSpec{Name: "F", Mask: 0xF0})
	f := r.MustField("F")
	a, _ := f.Get()
	b, _ := f.Get()
	if a != b || a != 3 {
		t.Fatalf("Get() returned %d then %d, want 3 twice", a, b)
	}
}

func TestWriteOnlyStrobe(t *testing.T) {
	mem := mmio.NewMemory()
	p, _ := NewPeripheral(mem, 0x48000000, "GPIOA", "")
	odr, _ := p.AddRegister(RegisterSpec{Name: "ODR", Offset: 0x14})
	bsrr, err := p.AddRegister(RegisterSpec{
		Name: "BSRR", Offset: 0x18, Access: AccessWriteOnly,
		Fields: []FieldSpec{{Name: "BS3", Mask: Bit(3)}, {Name: "BR3", Mask: Bit(19)}},
	})
	if err != nil {
		t.Fatalf("AddRegister returned error: %v", err)
	}
	mem.OnWrite(bsrr.Address(), mmio.SetResetHook(mem, odr.Address()))
	mem.Preload(odr.Address(), 0x1)
	mem.ResetLog()

	if err := bsrr.MustField("BS3").Set(1); err != nil {
		t.Fatalf("BS3.Set returned error: %v", err)
	}
	log := mem.Accesses()
	if len(log) != 1 || log[0].Kind != mmio.AccessWrite || log[0].Value != 0x8 {
		t.Fatalf("strobe produced %v, want one store of 0x8", log)
	}
	if v, _ := odr.Read(); v != 0x9 {
		t.Fatalf("ODR = %#x, want 0x9", v)
	}

	if _, err := bsrr.Read(); !errors.Is(err, ErrAccess) {
		t.Fatalf("BSRR.Read() error = %v, want ErrAccess", err)
	}
}

func TestReadOnlyRegister(t *testing.T) {
	mem := mmio.NewMemory()
	p, _ := NewPeripheral(mem, 0xE0042000, "DBGMCU", "")
	id, _ := p.AddRegister(RegisterSpec{Name: "IDCODE", Access: AccessReadOnly,
		Fields: []FieldSpec{{Name: "DEV_ID", Mask: BitRange(11, 0)}}})
	mem.Preload(id.Address(), 0x20010469)
	if v, _ := id.MustField("DEV_ID").Get(); v != 0x469 {
		t.Fatalf("DEV_ID = %#x, want 0x469", v)
	}
	if err := id.Write(0); !errors.Is(err, ErrAccess) {
		t.Fatalf("Write() error = %v, want ErrAccess", err)
	}
	if err := id.MustField("DEV_ID").Set(1); !errors.Is(err, ErrAccess) {
		t.Fatalf("Set() error = %v, want ErrAccess", err)
	}
}

func TestRegisterBitHelpers(t *testing.T) {
	_, r := newTestRegister(t, 0x100)
	if err := r.SetBits(0x3); err != nil {
		t.Fatalf("SetBits returned error: %v", err)
	}
	if ok, _ := r.HasBits(0x103); !ok {
		t.Fatalf("HasBits(0x103) = false after SetBits")
	}
	if err := r.ClearBits(0x100); err != nil {
		t.Fatalf("ClearBits returned error: %v", err)
	}
	if v, _ := r.Read(); v != 0x3 {
		t.Fatalf("Read() = %#x, want 0x3", v)
	}
	if err := r.Reset(); err != nil {
		t.Fatalf("Reset returned error: %v", err)
	}
	if v, _ := r.Read(); v != 0x100 {
		t.Fatalf("Read() after Reset = %#x, want 0x100", v)
	}
}

func TestSetLocked(t *testing.T) {
	_, r := newTestRegister(t, 0)
	fields := make([]*BitField, 8)
	for i := range fields {
		f, err := r.AddField(FieldSpec{Name: string(rune('A' + i)), Mask: BitRange(uint(i*4+3), uint(i*4))})
		if err != nil {
			t.Fatalf("AddField returned error: %v", err)
		}
		fields[i] = f
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	for i, f := range fields {
		wg.Add(1)
		go func(i int, f *BitField) {
			defer wg.Done()
			for n := 0; n < 100; n++ {
				if err := f.SetLocked(&mu, uint32(i+1)); err != nil {
					t.Errorf("SetLocked returned error: %v", err)
					return
				}
			}
		}(i, f)
	}
	wg.Wait()

	if v, _ := r.Read(); v != 0x87654321 {
		t.Fatalf("Read() = 0x%08X, want 0x87654321", v)
	}
}

func TestAliasedViews(t *testing.T) {
	mem := mmio.NewMemory()
	p, _ := NewPeripheral(mem, 0x40000000, "TIM2", "")
	out, _ := p.AddRegister(RegisterSpec{Name: "CCMR1_Output", Offset: 0x18,
		Fields: []FieldSpec{{Name: "OC1M", Mask: BitRange(6, 4)}}})
	in, _ := p.AddRegister(RegisterSpec{Name: "CCMR1_Input", Offset: 0x18,
		Fields: []FieldSpec{{Name: "IC1F", Mask: BitRange(7, 4)}}})

	if out.Address() != in.Address() {
		t.Fatalf("views at different addresses: %s vs %s", out, in)
	}
	views := p.Views(0x18)
	if len(views) != 2 || views[0] != out || views[1] != in {
		t.Fatalf("Views(0x18) = %v", views)
	}
	_ = out.MustField("OC1M").Set(6)
	if v, _ := in.MustField("IC1F").Get(); v != 6 {
		t.Fatalf("IC1F = %d, want 6 (same bits seen through the other view)", v)
	}
}

func TestMustPanics(t *testing.T) {
	_, r := newTestRegister(t, 0)
	defer func() {
		if recover() == nil {
			t.Fatalf("MustField did not panic for unknown field")
		}
	}()
	r.MustField("NOPE")
}

func TestBitRange(t *testing.T) {
	cases := []struct {
		hi, lo uint
		want   uint32
	}{
		{0, 0, 0x1},
		{2, 1, 0x6},
		{1, 2, 0x6},
		{31, 0, 0xFFFFFFFF},
		{31, 31, 0x80000000},
		{11, 0, 0xFFF},
	}
	for _, tc := range cases {
		if got := BitRange(tc.hi, tc.lo); got != tc.want {
			t.Fatalf("BitRange(%d, %d) = %#x, want %#x", tc.hi, tc.lo, got, tc.want)
		}
	}
}

func TestParseAccess(t *testing.T) {
	for in, want := range map[string]Access{"rw": AccessReadWrite, "RO": AccessReadOnly, "wo": AccessWriteOnly, "": AccessReadWrite} {
		got, err := ParseAccess(in)
		if err != nil || got != want {
			t.Fatalf("ParseAccess(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseAccess("rx"); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("ParseAccess(rx) error = %v, want ErrConfiguration", err)
	}
}
