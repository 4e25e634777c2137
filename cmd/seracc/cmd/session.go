package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/OpenTraceLab/seracc/pkg/config"
	"github.com/OpenTraceLab/seracc/pkg/dap"
	"github.com/OpenTraceLab/seracc/pkg/mmio"
	"github.com/OpenTraceLab/seracc/pkg/regdesc"
	"github.com/OpenTraceLab/seracc/pkg/regmap"
	"github.com/OpenTraceLab/seracc/pkg/stm32g4"
)

// session is one opened bus with its register tree. The shell keeps a
// session across commands; one-shot commands open and close their own.
type session struct {
	bus   mmio.Bus
	dev   *regmap.Device
	probe *dap.Probe // nil unless the bus is a debug probe
	close func() error
}

// active is the session of a running shell.
var active *session

func openSession(ctx context.Context, c *config.Config) (*session, error) {
	if active != nil {
		return active, nil
	}
	s := &session{close: func() error { return nil }}

	switch c.Bus {
	case config.BusSim:
		mem, err := stm32g4.NewSim(c.SimIDCode)
		if err != nil {
			return nil, err
		}
		s.bus = mem
	case config.BusDAP:
		t, err := dap.NewUSBTransport(c.Probe.VendorID, c.Probe.ProductID, c.Probe.Serial)
		if err != nil {
			return nil, fmt.Errorf("open probe: %w", err)
		}
		probe := dap.NewProbe(t, dap.WithLogger(logger), dap.WithClock(c.Probe.ClockHz), dap.WithAP(c.Probe.AP))
		cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := probe.Connect(cctx); err != nil {
			probe.Close()
			return nil, fmt.Errorf("connect: %w", err)
		}
		bus := dap.NewBus(probe, logger)
		s.bus, s.probe, s.close = bus, probe, bus.Close
	case config.BusDevMem:
		dm, err := mmio.OpenDevMem(c.DevMem)
		if err != nil {
			return nil, err
		}
		s.bus, s.close = dm, dm.Close
	default:
		return nil, fmt.Errorf("unknown bus %q", c.Bus)
	}

	dev, err := loadTree(s.bus, c.Descriptions)
	if err != nil {
		s.close()
		return nil, err
	}
	s.dev = dev
	logger.Debug("session open", "bus", c.Bus, "device", dev.Name(), "peripherals", len(dev.Peripherals()))
	return s, nil
}

func loadTree(bus mmio.Bus, files []string) (*regmap.Device, error) {
	if len(files) == 0 {
		dev, err := stm32g4.New(bus)
		if err != nil {
			return nil, err
		}
		return dev.Tree(), nil
	}
	return regdesc.LoadFiles(bus, files...)
}

// release closes s unless it belongs to the shell.
func (s *session) release() {
	if s == active {
		return
	}
	if err := s.close(); err != nil {
		logger.Warn("close bus", "err", err)
	}
}

// withSession runs fn on an opened session.
func withSession(ctx context.Context, fn func(*session) error) error {
	s, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.release()
	return fn(s)
}
