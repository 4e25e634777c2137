package stm32g4

import (
	"errors"
	"reflect"
	"testing"

	"github.com/OpenTraceLab/seracc/pkg/mmio"
	"github.com/OpenTraceLab/seracc/pkg/regmap"
)

func newSimDevice(t *testing.T) (*Device, *mmio.Memory) {
	t.Helper()
	mem, err := NewSim(0)
	if err != nil {
		t.Fatalf("NewSim() error = %v", err)
	}
	dev, err := New(mem)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return dev, mem
}

func TestDescription(t *testing.T) {
	d, err := Description()
	if err != nil {
		t.Fatalf("Description() error = %v", err)
	}
	if d.Device != "STM32G4" {
		t.Errorf("Device = %q, want STM32G4", d.Device)
	}
	var names []string
	for _, p := range d.Peripherals {
		names = append(names, p.Name)
	}
	want := []string{
		"RCC",
		"GPIOA", "GPIOB", "GPIOC", "GPIOD", "GPIOE", "GPIOF", "GPIOG",
		"TIM2", "TIM3", "TIM4", "TIM5",
		"DMA1", "DBGMCU",
	}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("peripherals = %v, want %v", names, want)
	}
}

func TestTake(t *testing.T) {
	mem := mmio.NewMemory()
	dev, err := Take(mem)
	if err != nil {
		t.Fatalf("Take() error = %v", err)
	}
	defer Release()
	if dev == nil {
		t.Fatal("Take() returned nil device")
	}
	if _, err := Take(mem); !errors.Is(err, ErrAlreadyTaken) {
		t.Fatalf("second Take() error = %v, want ErrAlreadyTaken", err)
	}
	Release()
	if _, err := Take(mem); err != nil {
		t.Fatalf("Take() after Release error = %v", err)
	}
}

func TestResetValues(t *testing.T) {
	dev, _ := newSimDevice(t)

	tests := []struct {
		path string
		want uint32
	}{
		{"RCC.AHB1ENR", 0x00000100},
		{"RCC.APB1ENR1", 0x00000400},
		{"GPIOA.MODER", 0xABFFFFFF},
		{"GPIOB.MODER", 0xFFFFFEBF},
		{"GPIOB.PUPDR", 0x00000100},
		{"GPIOE.MODER", 0xFFFFFFFF},
		{"TIM2.ARR", 0xFFFFFFFF},
		{"TIM4.ARR", 0x0000FFFF},
		{"DBGMCU.IDCODE", DefaultIDCode},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			target, err := dev.Resolve(tt.path)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			got, err := target.Register.Read()
			if err != nil {
				t.Fatalf("Read() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Read() = 0x%08X, want 0x%08X", got, tt.want)
			}
		})
	}
}

func TestResolvePaths(t *testing.T) {
	dev, _ := newSimDevice(t)

	tests := []struct {
		path     string
		wantPath string
		wantAddr uint32
	}{
		{"GPIO[B].ODR.OD5", "GPIOB.ODR.OD5", 0x48000414},
		{"TIM[2].CCMR1[Input].IC1F", "TIM2.CCMR1_Input.IC1F", 0x40000018},
		{"TIM[3].CCER.CCE[4]", "TIM3.CCER.CC4E", 0x40000420},
		{"DMA[1].CCR[3].PL", "DMA1.CCR3.PL", 0x40020030},
		{"RCC.APB2RSTR.TIMRST[8]", "RCC.APB2RSTR.TIM8RST", 0x40021040},
		{"RCC.AHB2ENR.GPIOEN[G]", "RCC.AHB2ENR.GPIOGEN", 0x4002104C},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			target, err := dev.Resolve(tt.path)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if got := target.Path(); got != tt.wantPath {
				t.Errorf("Path() = %q, want %q", got, tt.wantPath)
			}
			if got := target.Register.Address(); got != tt.wantAddr {
				t.Errorf("Address() = 0x%08X, want 0x%08X", got, tt.wantAddr)
			}
		})
	}

	if _, err := dev.Resolve("TIM[1]"); !errors.Is(err, regmap.ErrUnknownIndex) {
		t.Errorf("Resolve(TIM[1]) error = %v, want ErrUnknownIndex", err)
	}
}

func TestRCCEnable(t *testing.T) {
	dev, mem := newSimDevice(t)
	rcc := dev.RCC()

	if err := rcc.EnableDMA(2); err != nil {
		t.Fatalf("EnableDMA(2) error = %v", err)
	}
	if got := mem.Peek(0x40021048); got != 0x102 {
		t.Errorf("AHB1ENR = 0x%08X, want 0x00000102", got)
	}
	if err := rcc.EnableGPIO('C'); err != nil {
		t.Fatalf("EnableGPIO('C') error = %v", err)
	}
	if got := mem.Peek(0x4002104C); got != 0x4 {
		t.Errorf("AHB2ENR = 0x%08X, want 0x00000004", got)
	}
	if err := rcc.DisableGPIO('C'); err != nil {
		t.Fatalf("DisableGPIO('C') error = %v", err)
	}
	if got := mem.Peek(0x4002104C); got != 0 {
		t.Errorf("AHB2ENR = 0x%08X, want 0", got)
	}
	if err := rcc.EnableTimer(3); err != nil {
		t.Fatalf("EnableTimer(3) error = %v", err)
	}
	if got := mem.Peek(0x40021058); got != 0x402 {
		t.Errorf("APB1ENR1 = 0x%08X, want 0x00000402", got)
	}
	// TIM15 is on APB2
	if err := rcc.EnableTimer(15); err != nil {
		t.Fatalf("EnableTimer(15) error = %v", err)
	}
	if got := mem.Peek(0x40021060); got != 1<<16 {
		t.Errorf("APB2ENR = 0x%08X, want 0x00010000", got)
	}

	if err := rcc.EnableTimer(9); !errors.Is(err, regmap.ErrUnknownIndex) {
		t.Errorf("EnableTimer(9) error = %v, want ErrUnknownIndex", err)
	}
	if err := rcc.EnableGPIO('H'); !errors.Is(err, regmap.ErrUnknownIndex) {
		t.Errorf("EnableGPIO('H') error = %v, want ErrUnknownIndex", err)
	}
}

func TestRCCResetTimer(t *testing.T) {
	dev, mem := newSimDevice(t)
	mem.ResetLog()

	if err := dev.RCC().ResetTimer(2); err != nil {
		t.Fatalf("ResetTimer(2) error = %v", err)
	}
	var writes []uint32
	for _, a := range mem.Accesses() {
		if a.Kind == mmio.AccessWrite && a.Addr == 0x40021038 {
			writes = append(writes, a.Value)
		}
	}
	if !reflect.DeepEqual(writes, []uint32{1, 0}) {
		t.Errorf("APB1RSTR1 writes = %v, want [1 0]", writes)
	}
}

func TestRCCResetFlags(t *testing.T) {
	dev, _ := newSimDevice(t)
	rcc := dev.RCC()

	flags, err := rcc.ResetFlags()
	if err != nil {
		t.Fatalf("ResetFlags() error = %v", err)
	}
	if !reflect.DeepEqual(flags, []string{"PINRSTF", "BORRSTF"}) {
		t.Errorf("ResetFlags() = %v, want [PINRSTF BORRSTF]", flags)
	}
	if err := rcc.ClearResetFlags(); err != nil {
		t.Fatalf("ClearResetFlags() error = %v", err)
	}
	flags, err = rcc.ResetFlags()
	if err != nil {
		t.Fatalf("ResetFlags() error = %v", err)
	}
	if len(flags) != 0 {
		t.Errorf("ResetFlags() after clear = %v, want none", flags)
	}
}

func TestSimClockReady(t *testing.T) {
	dev, mem := newSimDevice(t)

	for _, path := range []string{"RCC.CR.HSEON", "RCC.CR.PLLON"} {
		target, err := dev.Resolve(path)
		if err != nil {
			t.Fatalf("Resolve(%s) error = %v", path, err)
		}
		if err := target.Field.Set(1); err != nil {
			t.Fatalf("%s.Set(1) error = %v", path, err)
		}
	}
	if got := mem.Peek(0x40021000); got != 0x03030500 {
		t.Errorf("CR = 0x%08X, want 0x03030500", got)
	}

	sw, _ := dev.Resolve("RCC.CFGR.SW")
	if err := sw.Field.Set(3); err != nil {
		t.Fatalf("SW.Set(3) error = %v", err)
	}
	sws, _ := dev.Resolve("RCC.CFGR.SWS")
	if got, err := sws.Field.Get(); err != nil || got != 3 {
		t.Errorf("SWS.Get() = %d, %v; want 3", got, err)
	}
}

func TestGPIO(t *testing.T) {
	dev, mem := newSimDevice(t)
	gpio, err := dev.GPIO('A')
	if err != nil {
		t.Fatalf("GPIO('A') error = %v", err)
	}
	if again, _ := dev.GPIO('A'); again != gpio {
		t.Errorf("GPIO('A') returned a new handle")
	}

	if err := gpio.SetMode(5, ModeOutput); err != nil {
		t.Fatalf("SetMode() error = %v", err)
	}
	if got := mem.Peek(0x48000000); got != 0xABFFF7FF {
		t.Errorf("MODER = 0x%08X, want 0xABFFF7FF", got)
	}
	if m, err := gpio.Mode(5); err != nil || m != ModeOutput {
		t.Errorf("Mode(5) = %v, %v; want output", m, err)
	}

	mem.ResetLog()
	if err := gpio.Set(5); err != nil {
		t.Fatalf("Set(5) error = %v", err)
	}
	accesses := mem.Accesses()
	if len(accesses) != 1 || accesses[0].Kind != mmio.AccessWrite ||
		accesses[0].Addr != 0x48000018 || accesses[0].Value != 0x20 {
		t.Fatalf("Set(5) accesses = %+v, want one store of 0x20 to BSRR", accesses)
	}
	if got := mem.Peek(0x48000014); got != 0x20 {
		t.Errorf("ODR = 0x%08X, want 0x00000020", got)
	}
	if level, err := gpio.Read(5); err != nil || !level {
		t.Errorf("Read(5) = %v, %v; want true", level, err)
	}

	if err := gpio.Write(5, false); err != nil {
		t.Fatalf("Write(5, false) error = %v", err)
	}
	last, _ := mem.LastAccess()
	if last.Addr != 0x48000028 || last.Value != 0x20 {
		t.Errorf("Write(5, false) last access = %+v, want BRR store of 0x20", last)
	}
	if level, err := gpio.Output(5); err != nil || level {
		t.Errorf("Output(5) = %v, %v; want false", level, err)
	}

	if err := gpio.SetAlternate(9, 7); err != nil {
		t.Fatalf("SetAlternate(9, 7) error = %v", err)
	}
	if got := mem.Peek(0x48000024); got != 0x70 {
		t.Errorf("AFRH = 0x%08X, want 0x00000070", got)
	}
	if err := gpio.SetPull(3, PullDown); err != nil {
		t.Fatalf("SetPull() error = %v", err)
	}
	if got := mem.Peek(0x4800000C); got != 0x64000080 {
		t.Errorf("PUPDR = 0x%08X, want 0x64000080", got)
	}

	if err := gpio.Set(16); !errors.Is(err, regmap.ErrUnknownIndex) {
		t.Errorf("Set(16) error = %v, want ErrUnknownIndex", err)
	}
	if _, err := dev.GPIO('Z'); !errors.Is(err, regmap.ErrUnknownIndex) {
		t.Errorf("GPIO('Z') error = %v, want ErrUnknownIndex", err)
	}
}

func TestTimer(t *testing.T) {
	dev, mem := newSimDevice(t)
	tim, err := dev.Timer(2)
	if err != nil {
		t.Fatalf("Timer(2) error = %v", err)
	}

	if err := tim.SetPrescaler(79); err != nil {
		t.Fatalf("SetPrescaler() error = %v", err)
	}
	if err := tim.SetPrescaler(0x10000); !errors.Is(err, regmap.ErrValueOutOfRange) {
		t.Errorf("SetPrescaler(0x10000) error = %v, want ErrValueOutOfRange", err)
	}
	if err := tim.SetPeriod(999); err != nil {
		t.Fatalf("SetPeriod() error = %v", err)
	}
	if err := tim.SetCompare(4, 500); err != nil {
		t.Fatalf("SetCompare() error = %v", err)
	}
	if got := mem.Peek(0x40000040); got != 500 {
		t.Errorf("CCR4 = %d, want 500", got)
	}

	if err := tim.SetOutputMode(1, OutputPWM1); err != nil {
		t.Fatalf("SetOutputMode(1) error = %v", err)
	}
	if got := mem.Peek(0x40000018); got != 0x60 {
		t.Errorf("CCMR1 = 0x%08X, want 0x00000060", got)
	}
	// the input view decodes the same word
	filter, err := dev.Resolve("TIM2.CCMR1_Input.IC1F")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got, _ := filter.Field.Get(); got != 6 {
		t.Errorf("IC1F through input view = %d, want 6", got)
	}
	if err := tim.SetOutputMode(3, OutputPWM2); err != nil {
		t.Fatalf("SetOutputMode(3) error = %v", err)
	}
	if got := mem.Peek(0x4000001C); got != 0x70 {
		t.Errorf("CCMR2 = 0x%08X, want 0x00000070", got)
	}
	if err := tim.SetInputFilter(4, 0xF); err != nil {
		t.Fatalf("SetInputFilter(4) error = %v", err)
	}
	if got := mem.Peek(0x4000001C); got != 0xF070 {
		t.Errorf("CCMR2 = 0x%08X, want 0x0000F070", got)
	}

	if err := tim.EnableChannel(2); err != nil {
		t.Fatalf("EnableChannel(2) error = %v", err)
	}
	if got := mem.Peek(0x40000020); got != 0x10 {
		t.Errorf("CCER = 0x%08X, want 0x00000010", got)
	}

	if err := tim.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if running, err := tim.Running(); err != nil || !running {
		t.Errorf("Running() = %v, %v; want true", running, err)
	}
	if got := mem.Peek(0x40000014); got != 0 {
		t.Errorf("EGR = 0x%08X, want self-cleared", got)
	}
	if err := tim.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if running, _ := tim.Running(); running {
		t.Errorf("Running() after Stop = true")
	}

	for _, ch := range []int{0, 5} {
		if err := tim.EnableChannel(ch); !errors.Is(err, regmap.ErrUnknownIndex) {
			t.Errorf("EnableChannel(%d) error = %v, want ErrUnknownIndex", ch, err)
		}
		if err := tim.SetOutputMode(ch, OutputToggle); !errors.Is(err, regmap.ErrUnknownIndex) {
			t.Errorf("SetOutputMode(%d) error = %v, want ErrUnknownIndex", ch, err)
		}
	}
}

func TestTimerStatusClearedByZero(t *testing.T) {
	dev, mem := newSimDevice(t)
	mem.Preload(0x40000010, 0x3)

	uif, err := dev.Resolve("TIM2.SR.UIF")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if err := uif.Field.Set(0); err != nil {
		t.Fatalf("UIF.Set(0) error = %v", err)
	}
	if got := mem.Peek(0x40000010); got != 0x2 {
		t.Errorf("SR = 0x%08X, want 0x00000002", got)
	}
}

func TestDMA(t *testing.T) {
	dev, mem := newSimDevice(t)
	if err := dev.RCC().EnableDMA(1); err != nil {
		t.Fatalf("EnableDMA(1) error = %v", err)
	}
	dma, err := dev.DMA(1)
	if err != nil {
		t.Fatalf("DMA(1) error = %v", err)
	}

	cfg := ChannelConfig{
		Peripheral:   0x40013828,
		Memory:       0x20000100,
		Count:        16,
		FromMemory:   true,
		MemIncrement: true,
		PeriphWidth:  Width32,
		MemWidth:     Width8,
		Priority:     2,
		IRQComplete:  true,
	}
	if err := dma.Configure(3, cfg); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	wants := map[uint32]uint32{
		0x40020030: 0x2292, // CCR3
		0x40020034: 16,     // CNDTR3
		0x40020038: 0x40013828,
		0x4002003C: 0x20000100,
	}
	for addr, want := range wants {
		if got := mem.Peek(addr); got != want {
			t.Errorf("word 0x%08X = 0x%08X, want 0x%08X", addr, got, want)
		}
	}

	if err := dma.Enable(3); err != nil {
		t.Fatalf("Enable() error = %v", err)
	}
	if got := mem.Peek(0x40020030); got != 0x2293 {
		t.Errorf("CCR3 = 0x%08X, want 0x00002293", got)
	}
	if err := dma.Configure(3, cfg); err == nil {
		t.Errorf("Configure() on an enabled channel succeeded")
	}
	if n, err := dma.Remaining(3); err != nil || n != 16 {
		t.Errorf("Remaining() = %d, %v; want 16", n, err)
	}

	cfg.Count = 0x10000
	if err := dma.Configure(4, cfg); !errors.Is(err, regmap.ErrValueOutOfRange) {
		t.Errorf("Configure(count 0x10000) error = %v, want ErrValueOutOfRange", err)
	}
	if err := dma.Configure(9, cfg); !errors.Is(err, regmap.ErrUnknownIndex) {
		t.Errorf("Configure(9) error = %v, want ErrUnknownIndex", err)
	}
}

func TestDMAFlags(t *testing.T) {
	dev, mem := newSimDevice(t)
	dma, _ := dev.DMA(1)
	mem.Preload(0x40020000, 0x00000310) // GIF2, GIF3, TCIF3

	flags, err := dma.Flags(3)
	if err != nil {
		t.Fatalf("Flags(3) error = %v", err)
	}
	if want := (ChannelFlags{Global: true, Complete: true}); flags != want {
		t.Errorf("Flags(3) = %+v, want %+v", flags, want)
	}

	mem.ResetLog()
	if err := dma.ClearFlags(3); err != nil {
		t.Fatalf("ClearFlags(3) error = %v", err)
	}
	last, _ := mem.LastAccess()
	if len(mem.Accesses()) != 1 || last.Addr != 0x40020004 || last.Value != 0xF00 {
		t.Errorf("ClearFlags(3) accesses = %+v, want one IFCR store of 0xF00", mem.Accesses())
	}
	if got := mem.Peek(0x40020000); got != 0x10 {
		t.Errorf("ISR = 0x%08X, want 0x00000010", got)
	}
	if _, err := dma.Flags(9); !errors.Is(err, regmap.ErrUnknownIndex) {
		t.Errorf("Flags(9) error = %v, want ErrUnknownIndex", err)
	}
}

func TestDBGMCU(t *testing.T) {
	dev, mem := newSimDevice(t)
	dbg := dev.DBGMCU()

	info, err := dbg.Identify()
	if err != nil {
		t.Fatalf("Identify() error = %v", err)
	}
	if !info.Known || info.Category != "Category 3" || info.Revision != "Y" {
		t.Errorf("Identify() = %+v", info)
	}
	if err := dbg.FreezeTimer(2, true); err != nil {
		t.Fatalf("FreezeTimer() error = %v", err)
	}
	if got := mem.Peek(0xE0042008); got != 0x1 {
		t.Errorf("APB1FZR1 = 0x%08X, want 0x00000001", got)
	}
	if err := dbg.KeepDebugInLowPower(true); err != nil {
		t.Fatalf("KeepDebugInLowPower() error = %v", err)
	}
	if got := mem.Peek(0xE0042004); got != 0x7 {
		t.Errorf("DBGMCU_CR = 0x%08X, want 0x00000007", got)
	}

	// IDCODE is read-only
	target, _ := dev.Resolve("DBGMCU.IDCODE")
	if err := target.Register.Write(0); !errors.Is(err, regmap.ErrAccess) {
		t.Errorf("IDCODE.Write() error = %v, want ErrAccess", err)
	}
}

func TestNewSimCustomIDCode(t *testing.T) {
	mem, err := NewSim(0x10006468)
	if err != nil {
		t.Fatalf("NewSim() error = %v", err)
	}
	dev, err := New(mem)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	id, err := dev.DBGMCU().IDCode()
	if err != nil {
		t.Fatalf("IDCode() error = %v", err)
	}
	if id.DeviceCode != 0x468 || id.Revision != 0x1000 {
		t.Errorf("IDCode() = %+v", id)
	}
}
