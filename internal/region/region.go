// Package region implements the shared-memory triple-buffer protocol
// described in SPEC_FULL.md §3/§4.1: a named, file-backed mapping split
// into a fixed header and three equally sized payload slots, synchronized
// between one writer (the publisher) and one reader (a subscriber) by a
// generation counter and a process-shared mutex/condition-variable pair.
package region

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"
)

// ErrTooLarge is returned by Write when the payload exceeds BufferSize.
var ErrTooLarge = errors.New("region: payload exceeds buffer size")

// ErrTimeout is returned by WaitAndSnapshot when no new generation arrives
// before the deadline.
var ErrTimeout = errors.New("region: wait timed out")

// ErrCorrupt is returned when the slot-selection invariant is violated.
// Per SPEC_FULL.md §7, this is fatal only for the region it occurs on.
var ErrCorrupt = errCorruptHeader

// Region is one named shared-memory mapping dedicated to a single
// subscriber connection.
type Region struct {
	name       string
	bufferSize int
	totalSize  int
	owned      bool

	fd  int
	shm []byte
	hdr *header

	// lastGen is the generation of the payload WaitAndSnapshot last
	// returned through this handle (zero for a fresh handle).
	lastGen uint64
}

// shmDir is where POSIX shared-memory objects live on Linux. glibc's own
// shm_open implementation is just open(2) against this directory; we do
// the same rather than pull in cgo for the real syscall.
func shmDir() string {
	if dir := os.Getenv("HERALD_SHM_DIR"); dir != "" {
		return dir
	}
	if _, err := os.Stat("/dev/shm"); err == nil {
		return "/dev/shm"
	}
	return os.TempDir()
}

func shmPath(name string) string {
	return filepath.Join(shmDir(), name)
}

// Create opens or creates a named mapping of headerSize+3*bufferSize bytes,
// truncates it to that size, maps it read-write, and initializes the
// header. The caller owns the region: Destroy on this handle unlinks the
// name.
func Create(name string, bufferSize int) (*Region, error) {
	path := shmPath(name)

	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CREAT, 0o600)
	if err != nil {
		return nil, fmt.Errorf("region: open %s: %w", path, err)
	}

	totalSize := headerSize + 3*bufferSize
	if err := unix.Ftruncate(fd, int64(totalSize)); err != nil {
		unix.Close(fd)
		_ = unix.Unlink(path)
		return nil, fmt.Errorf("region: ftruncate %s: %w", path, err)
	}

	shm, err := unix.Mmap(fd, 0, totalSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		_ = unix.Unlink(path)
		return nil, fmt.Errorf("region: mmap %s: %w", path, err)
	}

	r := &Region{
		name:       name,
		bufferSize: bufferSize,
		totalSize:  totalSize,
		owned:      true,
		fd:         fd,
		shm:        shm,
		hdr:        headerAt(shm),
	}

	r.hdr.mutexWord = mutexUnlocked
	r.hdr.condSeq = 0
	r.hdr.generation = 0
	r.hdr.readIdx = 0
	r.hdr.writeIdx = 0

	return r, nil
}

// Attach opens an existing mapping read-write without truncating or
// reinitializing the header. bufferSize must match the value the creator
// used (it is learned from the handshake line, never guessed).
func Attach(name string, bufferSize int) (*Region, error) {
	path := shmPath(name)

	fd, err := unix.Open(path, unix.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("region: open %s: %w", path, err)
	}

	totalSize := headerSize + 3*bufferSize
	shm, err := unix.Mmap(fd, 0, totalSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("region: mmap %s: %w", path, err)
	}

	return &Region{
		name:       name,
		bufferSize: bufferSize,
		totalSize:  totalSize,
		owned:      false,
		fd:         fd,
		shm:        shm,
		hdr:        headerAt(shm),
	}, nil
}

// Destroy releases the mapping. Only the owning (creator) side unlinks the
// backing name; an attacher only unmaps.
func (r *Region) Destroy() error {
	err := unix.Munmap(r.shm)
	_ = unix.Close(r.fd)
	if r.owned {
		if unlinkErr := unix.Unlink(shmPath(r.name)); unlinkErr != nil && err == nil {
			err = unlinkErr
		}
	}
	return err
}

// Name reports the region's shared-mapping identifier.
func (r *Region) Name() string { return r.name }

func (r *Region) slot(idx int32) []byte {
	start := headerSize + int(idx)*r.bufferSize
	return r.shm[start : start+r.bufferSize]
}

// Write selects the slot index that is neither the current read index nor
// the current write index, copies data into it, then publishes the new
// write index and bumps the generation counter under the header mutex.
// Per SPEC_FULL.md §4.1, the payload is fully written before the mutex is
// taken.
func (r *Region) Write(data []byte) error {
	if len(data) > r.bufferSize {
		return ErrTooLarge
	}

	readIdx := r.hdr.readIdx
	writeIdx := r.hdr.writeIdx
	newIdx, err := pickSlot(readIdx, writeIdx)
	if err != nil {
		return err
	}

	copy(r.slot(newIdx), data)
	r.hdr.lengths[newIdx] = int32(len(data))

	lockHeaderMutex(&r.hdr.mutexWord)
	r.hdr.writeIdx = newIdx
	r.hdr.generation++
	signalCondChange(&r.hdr.condSeq)
	unlockHeaderMutex(&r.hdr.mutexWord)

	return nil
}

// WaitAndSnapshot blocks until the generation counter differs from the
// generation this handle last returned (zero for a fresh handle) or timeout
// elapses, so writes made while the caller was not waiting are still seen.
// On change it advances readIdx to the published writeIdx, releases the
// mutex, and returns a copy of that slot's payload so the caller may safely
// retain it after the writer later reuses the slot.
func (r *Region) WaitAndSnapshot(timeout time.Duration) ([]byte, error) {
	lockHeaderMutex(&r.hdr.mutexWord)

	deadline := time.Now().Add(timeout)

	for r.hdr.generation == r.lastGen {
		prevSeq := r.hdr.condSeq
		unlockHeaderMutex(&r.hdr.mutexWord)

		if !waitCondChange(&r.hdr.condSeq, prevSeq, deadline) {
			return nil, ErrTimeout
		}

		lockHeaderMutex(&r.hdr.mutexWord)
	}

	r.lastGen = r.hdr.generation
	newReadIdx := r.hdr.writeIdx
	r.hdr.readIdx = newReadIdx
	length := r.hdr.lengths[newReadIdx]

	unlockHeaderMutex(&r.hdr.mutexWord)

	payload := make([]byte, length)
	copy(payload, r.slot(newReadIdx)[:length])
	return payload, nil
}
