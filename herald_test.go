package herald

import (
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func freePort(t *testing.T) int {
	t.Helper()
	// Ports are derived from the clock within 20000-39999 to avoid
	// colliding with other test runs; collisions just fail the Init call,
	// which the individual test will surface.
	return 20000 + int(time.Now().UnixNano()%20000)
}

func mustListen(t *testing.T, port int) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	require.NoError(t, err)
	return ln
}

// Scenario 1 (SPEC_FULL.md §8): single publish round-trips to a subscriber.
func TestEndToEndSinglePublish(t *testing.T) {
	port := freePort(t)
	pub := NewPublisher(port, 1024)
	require.NoError(t, pub.Init())
	defer pub.Destroy()

	var mu sync.Mutex
	var received []string

	sub := NewSubscriber(port, func(data []byte) {
		mu.Lock()
		received = append(received, string(data))
		mu.Unlock()
	})
	require.NoError(t, sub.Init())
	defer sub.Destroy()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, pub.Publish([]byte("hello")))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1 && received[0] == "hello"
	}, 2*time.Second, 10*time.Millisecond)
}

// Scenario 2: TooLarge and NotRunning return values.
func TestPublishTooLargeAndNotRunning(t *testing.T) {
	port := freePort(t)
	pub := NewPublisher(port, 16)

	err := pub.Publish(make([]byte, 4))
	require.ErrorIs(t, err, ErrNotRunning)

	require.NoError(t, pub.Init())
	defer pub.Destroy()

	err = pub.Publish(make([]byte, 32))
	require.ErrorIs(t, err, ErrTooLarge)
}

// Scenario 3: malformed handshake yields BadResponse.
func TestSubscriberBadHandshake(t *testing.T) {
	port := freePort(t)
	ln := mustListen(t, port)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = conn.Write([]byte("abc\n"))
	}()

	sub := NewSubscriber(port, func([]byte) {})
	err := sub.Init()
	require.ErrorIs(t, err, ErrBadResponse)
}

// Scenario 4: two subscribers both observe the final message.
func TestTwoSubscribersObserveLatest(t *testing.T) {
	port := freePort(t)
	pub := NewPublisher(port, 64)
	require.NoError(t, pub.Init())
	defer pub.Destroy()

	var mu sync.Mutex
	last := map[int]string{}

	makeSub := func(id int) *Subscriber {
		return NewSubscriber(port, func(data []byte) {
			mu.Lock()
			last[id] = string(data)
			mu.Unlock()
		})
	}

	sub1 := makeSub(1)
	sub2 := makeSub(2)
	require.NoError(t, sub1.Init())
	defer sub1.Destroy()
	require.NoError(t, sub2.Init())
	defer sub2.Destroy()

	time.Sleep(50 * time.Millisecond)

	for i := 0; i < 5; i++ {
		require.NoError(t, pub.Publish([]byte(fmt.Sprintf("message %d", i))))
		time.Sleep(10 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return last[1] == "message 4" && last[2] == "message 4"
	}, 2*time.Second, 10*time.Millisecond)
}

// Scenario 5: fast publishes, slow callback — latest-wins, callback count bounded.
func TestLatestWinsUnderSlowCallback(t *testing.T) {
	port := freePort(t)
	pub := NewPublisher(port, 64)
	require.NoError(t, pub.Init())
	defer pub.Destroy()

	var mu sync.Mutex
	var count int
	var lastSeen string

	sub := NewSubscriber(port, func(data []byte) {
		mu.Lock()
		count++
		lastSeen = string(data)
		mu.Unlock()
		time.Sleep(50 * time.Millisecond)
	})
	require.NoError(t, sub.Init())
	defer sub.Destroy()

	time.Sleep(50 * time.Millisecond)
	for i := 0; i < 100; i++ {
		require.NoError(t, pub.Publish([]byte(fmt.Sprintf("message %d", i))))
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return lastSeen == "message 99"
	}, 5*time.Second, 20*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.LessOrEqual(t, count, 100)
}

// Scenario 6: disconnecting subscriber frees its registry entry.
func TestDisconnectRemovesSubscriber(t *testing.T) {
	port := freePort(t)
	pub := NewPublisher(port, 64)
	require.NoError(t, pub.Init())
	defer pub.Destroy()

	sub := NewSubscriber(port, func([]byte) {})
	require.NoError(t, sub.Init())

	require.Eventually(t, func() bool {
		return pub.SubscriberCount() == 1
	}, time.Second, 10*time.Millisecond)

	sub.Destroy()

	require.Eventually(t, func() bool {
		return pub.SubscriberCount() == 0
	}, 1500*time.Millisecond, 10*time.Millisecond)
}

func TestHandshakeRoundTripFormat(t *testing.T) {
	port := freePort(t)
	pub := NewPublisher(port, 777)
	require.NoError(t, pub.Init())
	defer pub.Destroy()

	sub := NewSubscriber(port, func([]byte) {})
	require.NoError(t, sub.Init())
	defer sub.Destroy()

	require.NotNil(t, sub.region)
	captured := sub.region.Name()
	require.Len(t, captured, 32)
	for _, r := range captured {
		require.True(t, (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'))
	}
	require.True(t, strings.TrimSpace(captured) == captured)
}

func TestGracefulTeardownWithConnectedSubscribers(t *testing.T) {
	port := freePort(t)
	pub := NewPublisher(port, 64)
	require.NoError(t, pub.Init())

	sub := NewSubscriber(port, func([]byte) {})
	require.NoError(t, sub.Init())

	done := make(chan struct{})
	go func() {
		pub.Destroy()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher Destroy did not return")
	}

	sub.Destroy()
}
