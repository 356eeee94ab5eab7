// Package wazero adapts host functions to the wazero runtime. Guest and host
// exchange JSON payloads through guest memory, addressed by a packed uint64
// holding the pointer in the high 32 bits and the length in the low 32 bits.
package wazero

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero/api"
)

// AllocateExport is the guest function the host calls to reserve memory.
const AllocateExport = "allocate"

// PackPtrLen packs a guest pointer and length into one value.
func PackPtrLen(ptr, length uint32) uint64 {
	return uint64(ptr)<<32 | uint64(length)
}

// UnpackPtrLen splits a packed value into pointer and length.
func UnpackPtrLen(packed uint64) (ptr, length uint32) {
	//nolint:gosec // WASM pointers and lengths are 32-bit
	return uint32(packed >> 32), uint32(packed)
}

// ReadPacked copies the bytes addressed by packed out of guest memory.
func ReadPacked(mod api.Module, packed uint64) ([]byte, error) {
	ptr, length := UnpackPtrLen(packed)
	if length == 0 {
		return nil, nil
	}
	data, ok := mod.Memory().Read(ptr, length)
	if !ok {
		return nil, fmt.Errorf("guest memory read out of range: ptr=%d len=%d", ptr, length)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// WriteGuest allocates guest memory through the allocate export, copies data
// into it and returns the packed address. Empty data packs to zero.
func WriteGuest(ctx context.Context, mod api.Module, data []byte) (uint64, error) {
	if len(data) == 0 {
		return 0, nil
	}
	alloc := mod.ExportedFunction(AllocateExport)
	if alloc == nil {
		return 0, fmt.Errorf("function %q not exported", AllocateExport)
	}
	res, err := alloc.Call(ctx, uint64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("allocate failed: %w", err)
	}
	//nolint:gosec // WASM pointers are 32-bit
	ptr := uint32(res[0])
	if !mod.Memory().Write(ptr, data) {
		return 0, fmt.Errorf("guest memory write out of range: ptr=%d len=%d", ptr, len(data))
	}
	//nolint:gosec // payloads are bounded by guest memory
	return PackPtrLen(ptr, uint32(len(data))), nil
}
