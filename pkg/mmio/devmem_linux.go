//go:build linux

package mmio

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// DevMemPath is the character device exposing physical memory on Linux.
const DevMemPath = "/dev/mem"

// DevMem is a Bus over physical memory mapped from /dev/mem. It is meant for
// Linux hosts (SoCs, FPGA soft cores) where peripheral blocks are reachable
// from user space. Pages are mapped lazily and kept until Close.
type DevMem struct {
	f        *os.File
	pageSize uint32

	mu    sync.Mutex
	pages map[uint32][]byte
}

// OpenDevMem opens path (normally DevMemPath) for synchronous read/write.
func OpenDevMem(path string) (*DevMem, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("mmio: open %s: %w", path, err)
	}
	return &DevMem{
		f:        f,
		pageSize: uint32(unix.Getpagesize()),
		pages:    make(map[uint32][]byte),
	}, nil
}

func (d *DevMem) Read32(addr uint32) (uint32, error) {
	word, err := d.word(addr)
	if err != nil {
		return 0, err
	}
	return atomic.LoadUint32(word), nil
}

func (d *DevMem) Write32(addr uint32, value uint32) error {
	word, err := d.word(addr)
	if err != nil {
		return err
	}
	atomic.StoreUint32(word, value)
	return nil
}

// word returns a pointer into the mapping of the page holding addr.
func (d *DevMem) word(addr uint32) (*uint32, error) {
	if err := CheckAligned(addr); err != nil {
		return nil, err
	}
	page := addr &^ (d.pageSize - 1)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.f == nil {
		return nil, fmt.Errorf("mmio: %s is closed", DevMemPath)
	}
	mem, ok := d.pages[page]
	if !ok {
		var err error
		mem, err = unix.Mmap(int(d.f.Fd()), int64(page), int(d.pageSize),
			unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
		if err != nil {
			return nil, fmt.Errorf("mmio: map page 0x%08X: %w", page, err)
		}
		d.pages[page] = mem
	}
	return (*uint32)(unsafe.Pointer(&mem[addr-page])), nil
}

// Close unmaps every page and closes the device.
func (d *DevMem) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	var firstErr error
	for page, mem := range d.pages {
		if err := unix.Munmap(mem); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("mmio: unmap page 0x%08X: %w", page, err)
		}
		delete(d.pages, page)
	}
	if d.f != nil {
		if err := d.f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		d.f = nil
	}
	return firstErr
}
