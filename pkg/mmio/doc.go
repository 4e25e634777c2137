// Package mmio provides the 32-bit memory access primitive underneath the
// register layer.
//
// A Bus performs exactly one aligned load or store per call. Three backends
// ship with the package or its siblings:
//   - Memory: a sparse simulated address space with read/write hooks, used by
//     tests and host-side simulation
//   - DevMem: physical memory mapped from /dev/mem on Linux hosts
//   - dap.Bus (package dap): a live target reached through a CMSIS-DAP probe
//
// Window can wrap any of them to keep accesses inside a known region.
//
// No backend caches values: a register read always reflects the state of the
// target at the instant of the call.
package mmio
