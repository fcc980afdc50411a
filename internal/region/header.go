package region

import (
	"errors"
	"unsafe"
)

// header is the fixed layout at offset 0 of every mapped region, matching
// the field order of the wire layout: mutex, cond, generation, read/write
// index, per-slot lengths. The mutex and condition variable are realized as
// 32-bit futex words rather than opaque pthread primitives (see
// SPEC_FULL.md §2, §3) since those are the only process-shared wait/wake
// primitive available without cgo.
type header struct {
	mutexWord  int32
	condSeq    uint32
	generation uint64
	readIdx    int32
	writeIdx   int32
	lengths    [3]int32
}

const headerSize = int(unsafe.Sizeof(header{}))

// errCorruptHeader is returned when the three-way slot selection cannot find
// a valid index. Per spec.md §7 policy 3, this is a fatal invariant for the
// affected region only; callers must not let it escape to other regions or
// crash the process.
var errCorruptHeader = errors.New("region: corrupt header, no free slot")

// pickSlot returns the lowest index in {0,1,2} that is neither readIdx nor
// writeIdx, implementing the slot selection law from spec.md §3/§8. When
// readIdx == writeIdx (as right after Create) two indices qualify and the
// lower one is returned.
func pickSlot(readIdx, writeIdx int32) (int32, error) {
	for i := int32(0); i < 3; i++ {
		if i != readIdx && i != writeIdx {
			return i, nil
		}
	}
	return 0, errCorruptHeader
}

// headerAt reinterprets the first headerSize bytes of shm as a *header.
// Safe because the mapping is fixed in memory for the lifetime of the
// region and shm is always at least headerSize+3*bufferSize bytes long.
//
//go:noinline
func headerAt(shm []byte) *header {
	return (*header)(unsafe.Pointer(&shm[0]))
}
