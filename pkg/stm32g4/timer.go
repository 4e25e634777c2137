package stm32g4

import (
	"fmt"
	"sync"

	"github.com/OpenTraceLab/seracc/pkg/regmap"
)

// OutputMode is the OCxM output compare mode of a timer channel.
type OutputMode uint32

const (
	OutputFrozen OutputMode = iota
	OutputActiveOnMatch
	OutputInactiveOnMatch
	OutputToggle
	OutputForceInactive
	OutputForceActive
	OutputPWM1
	OutputPWM2
)

// Timer is a general-purpose timer (TIM2..TIM5). Channels are numbered 1..4.
type Timer struct {
	p  *regmap.Peripheral
	n  int
	mu sync.Mutex
}

// Number returns n for TIMn.
func (t *Timer) Number() int { return t.n }

// Peripheral returns the underlying register block.
func (t *Timer) Peripheral() *regmap.Peripheral { return t.p }

// SetPrescaler sets the counter clock divider to psc+1.
func (t *Timer) SetPrescaler(psc uint32) error {
	return t.p.MustRegister("PSC").MustField("PSC").Set(psc)
}

// SetPeriod sets the auto-reload value. On the 16-bit timers the upper half
// is ignored by the hardware.
func (t *Timer) SetPeriod(arr uint32) error {
	return t.p.MustRegister("ARR").Write(arr)
}

// SetCompare sets the capture/compare value of a channel.
func (t *Timer) SetCompare(ch int, v uint32) error {
	r, err := reg(t.p, "CCR", ch)
	if err != nil {
		return err
	}
	return r.Write(v)
}

// SetOutputMode selects the output compare mode of a channel through the
// output view of CCMR1 or CCMR2.
func (t *Timer) SetOutputMode(ch int, m OutputMode) error {
	ccmr, err := t.ccmr(ch, "Output")
	if err != nil {
		return err
	}
	f, err := member(ccmr, "OCM", ch)
	if err != nil {
		return err
	}
	return f.SetLocked(&t.mu, uint32(m))
}

// SetInputFilter sets the input capture filter of a channel through the
// input view of CCMR1 or CCMR2.
func (t *Timer) SetInputFilter(ch int, filter uint32) error {
	ccmr, err := t.ccmr(ch, "Input")
	if err != nil {
		return err
	}
	f, err := member(ccmr, "ICF", ch)
	if err != nil {
		return err
	}
	return f.SetLocked(&t.mu, filter)
}

func (t *Timer) ccmr(ch int, view string) (*regmap.Register, error) {
	if ch < 1 || ch > 4 {
		return nil, &regmap.UnknownIndexError{Owner: t.p.Name(), Pattern: "CCMR{}", Key: fmt.Sprintf("channel %d", ch)}
	}
	fam, ok := t.p.Family(fmt.Sprintf("CCMR%d", (ch+1)/2))
	if !ok {
		return nil, fmt.Errorf("stm32g4: %w: %s has no CCMR views", regmap.ErrNotFound, t.p.Name())
	}
	return fam.ResolveKey(view)
}

// EnableChannel sets CCxE.
func (t *Timer) EnableChannel(ch int) error {
	return t.channelEnable(ch, 1)
}

// DisableChannel clears CCxE.
func (t *Timer) DisableChannel(ch int) error {
	return t.channelEnable(ch, 0)
}

func (t *Timer) channelEnable(ch int, v uint32) error {
	f, err := member(t.p.MustRegister("CCER"), "CCE", ch)
	if err != nil {
		return err
	}
	return f.SetLocked(&t.mu, v)
}

// Start generates an update event to load the prescaler and starts the
// counter.
func (t *Timer) Start() error {
	if err := t.p.MustRegister("EGR").MustField("UG").Set(1); err != nil {
		return err
	}
	return t.p.MustRegister("CR1").MustField("CEN").SetLocked(&t.mu, 1)
}

// Stop stops the counter.
func (t *Timer) Stop() error {
	return t.p.MustRegister("CR1").MustField("CEN").SetLocked(&t.mu, 0)
}

// Running reports whether the counter is enabled.
func (t *Timer) Running() (bool, error) {
	return t.p.MustRegister("CR1").MustField("CEN").IsSet()
}

// Counter returns the current counter value.
func (t *Timer) Counter() (uint32, error) {
	return t.p.MustRegister("CNT").Read()
}
