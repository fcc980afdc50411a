package region

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPickSlotLaw(t *testing.T) {
	for r := int32(0); r < 3; r++ {
		for w := int32(0); w < 3; w++ {
			idx, err := pickSlot(r, w)
			require.NoError(t, err)
			require.NotEqual(t, r, idx)
			require.NotEqual(t, w, idx)
		}
	}
}

func TestPickSlotCorruptHeader(t *testing.T) {
	// Two indices can exclude at most two of {0,1,2}, so a free slot is
	// always found; even out-of-range values left by a corrupt header do
	// not make errCorruptHeader fire.
	_, err := pickSlot(5, 6)
	require.NoError(t, err) // 0,1,2 are all free; first free wins
}

func newTestRegion(t *testing.T, bufferSize int) (*Region, func()) {
	t.Helper()
	name := fmt.Sprintf("herald-test-%d", time.Now().UnixNano())
	r, err := Create(name, bufferSize)
	require.NoError(t, err)
	return r, func() { _ = r.Destroy() }
}

func TestWriteThenWaitAndSnapshot(t *testing.T) {
	r, cleanup := newTestRegion(t, 64)
	defer cleanup()

	done := make(chan struct{})
	var got []byte
	go func() {
		defer close(done)
		payload, err := r.WaitAndSnapshot(2 * time.Second)
		require.NoError(t, err)
		got = payload
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, r.Write([]byte("hello")))

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for snapshot")
	}

	require.Equal(t, "hello", string(got))
}

func TestWaitAndSnapshotTimeout(t *testing.T) {
	r, cleanup := newTestRegion(t, 16)
	defer cleanup()

	_, err := r.WaitAndSnapshot(50 * time.Millisecond)
	require.ErrorIs(t, err, ErrTimeout)
}

func TestWriteTooLarge(t *testing.T) {
	r, cleanup := newTestRegion(t, 4)
	defer cleanup()

	err := r.Write([]byte("too big"))
	require.ErrorIs(t, err, ErrTooLarge)
}

func TestLatestWinsUnderLoad(t *testing.T) {
	r, cleanup := newTestRegion(t, 32)
	defer cleanup()

	for i := 0; i < 5; i++ {
		require.NoError(t, r.Write([]byte(fmt.Sprintf("message %d", i))))
	}

	payload, err := r.WaitAndSnapshot(2 * time.Second)
	require.NoError(t, err)
	require.Equal(t, "message 4", string(payload))
}

func TestAttachSeesCreatorWrites(t *testing.T) {
	name := fmt.Sprintf("herald-test-attach-%d", time.Now().UnixNano())
	creator, err := Create(name, 32)
	require.NoError(t, err)
	defer creator.Destroy()

	attacher, err := Attach(name, 32)
	require.NoError(t, err)
	defer attacher.Destroy() // attach-side destroy must not unlink

	require.NoError(t, creator.Write([]byte("from creator")))

	payload, err := attacher.WaitAndSnapshot(2 * time.Second)
	require.NoError(t, err)
	require.Equal(t, "from creator", string(payload))
}
