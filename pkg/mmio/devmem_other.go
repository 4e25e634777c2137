//go:build !linux

package mmio

import "errors"

// DevMemPath is the character device exposing physical memory on Linux.
const DevMemPath = "/dev/mem"

// ErrDevMemUnsupported is returned by OpenDevMem on hosts without /dev/mem.
var ErrDevMemUnsupported = errors.New("mmio: /dev/mem access is only supported on linux")

// DevMem is unavailable on this platform.
type DevMem struct{}

// OpenDevMem always fails on this platform.
func OpenDevMem(path string) (*DevMem, error) { return nil, ErrDevMemUnsupported }

func (d *DevMem) Read32(addr uint32) (uint32, error) { return 0, ErrDevMemUnsupported }
func (d *DevMem) Write32(addr uint32, value uint32) error { return ErrDevMemUnsupported }
func (d *DevMem) Close() error { return nil }
