//go:build linux

package region

import (
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// futex-based mutex/condvar substitute for the process-shared pthread
// primitives the header abstracts (SPEC_FULL.md §2). Both mutexWord and
// condSeq live inside the shared mapping, so these helpers operate on
// pointers into that mapping rather than on Go-runtime-local locks.

const (
	mutexUnlocked = 0
	mutexLocked   = 1
)

// linux/futex.h op codes. golang.org/x/sys/unix carries SYS_FUTEX (the
// syscall number table) but not these command constants, so they are
// defined here the same way the pack's other_examples io_uring transport
// file defines its own raw IORING_* opcodes alongside a borrowed syscall
// number.
const (
	futexOpWait = 0
	futexOpWake = 1
)

func futexWait(addr *uint32, expected uint32, timeout time.Duration) error {
	var tsPtr *unix.Timespec
	if timeout >= 0 {
		ts := unix.NsecToTimespec(timeout.Nanoseconds())
		tsPtr = &ts
	}
	_, _, errno := unix.Syscall6(
		unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)),
		uintptr(futexOpWait),
		uintptr(expected),
		uintptr(unsafe.Pointer(tsPtr)),
		0, 0,
	)
	if errno != 0 {
		return errno
	}
	return nil
}

func futexWake(addr *uint32, n int32) {
	unix.Syscall6(
		unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)),
		uintptr(futexOpWake),
		uintptr(n),
		0, 0, 0,
	)
}

// lockHeaderMutex acquires the header's futex word with a compare-and-swap,
// parking in the kernel while the word is held and retrying on each wake.
func lockHeaderMutex(word *int32) {
	if atomic.CompareAndSwapInt32(word, mutexUnlocked, mutexLocked) {
		return
	}
	for {
		if atomic.CompareAndSwapInt32(word, mutexUnlocked, mutexLocked) {
			return
		}
		_ = futexWait((*uint32)(unsafe.Pointer(word)), mutexLocked, -1)
	}
}

func unlockHeaderMutex(word *int32) {
	atomic.StoreInt32(word, mutexUnlocked)
	futexWake((*uint32)(unsafe.Pointer(word)), 1)
}

// waitCondChange blocks until condSeq no longer equals prevSeq or the
// deadline elapses, mirroring pthread_cond_timedwait against the generation
// counter (spec.md §4.1 wait_and_snapshot).
func waitCondChange(condSeq *uint32, prevSeq uint32, deadline time.Time) bool {
	for {
		if atomic.LoadUint32(condSeq) != prevSeq {
			return true
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false
		}
		_ = futexWait(condSeq, prevSeq, remaining)
	}
}

func signalCondChange(condSeq *uint32) {
	atomic.AddUint32(condSeq, 1)
	futexWake(condSeq, 1)
}
