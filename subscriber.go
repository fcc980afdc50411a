package herald

import (
	"bufio"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"herald/internal/region"
)

// Callback is invoked with the most recent slot's payload whenever a new
// message arrives. The slice is a fresh copy of the slot, so it stays valid
// after the call returns even once the publisher reuses the slot.
type Callback func(data []byte)

// subscriberState tracks the state machine from SPEC_FULL.md §4.2:
// Inert -> Connecting -> Attached -> Running -> Stopping -> Stopped.
type subscriberState int32

const (
	stateInert subscriberState = iota
	stateConnecting
	stateAttached
	stateRunning
	stateStopping
	stateStopped
)

const consumerWaitTimeout = 1 * time.Second

// SubscriberOption configures optional ambient behavior on a Subscriber.
type SubscriberOption func(*Subscriber)

// WithSubscriberLogger attaches a zap logger for best-effort diagnostic
// messages. Defaults to a no-op logger.
func WithSubscriberLogger(logger *zap.Logger) SubscriberOption {
	return func(s *Subscriber) { s.logger = logger }
}

// Subscriber connects to a publisher, performs the handshake, attaches to
// the announced shared region, and runs a consumer loop that invokes a
// user callback on each new message.
type Subscriber struct {
	port     int
	callback Callback
	logger   *zap.Logger

	state atomic.Int32

	conn   net.Conn
	region *region.Region

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewSubscriber creates an inert subscriber handle. No network activity
// occurs until Init is called.
func NewSubscriber(port int, callback Callback, opts ...SubscriberOption) *Subscriber {
	s := &Subscriber{
		port:     port,
		callback: callback,
		logger:   zap.NewNop(),
		stopCh:   make(chan struct{}),
	}
	s.state.Store(int32(stateInert))

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Init connects to 127.0.0.1:port, performs the handshake, attaches the
// shared region, and starts the consumer loop.
func (s *Subscriber) Init() error {
	s.state.Store(int32(stateConnecting))

	conn, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", s.port))
	if err != nil {
		s.logger.Warn("subscriber connect failed", zap.Int("port", s.port), zap.Error(err))
		s.state.Store(int32(stateStopped))
		return ErrNoSocket
	}
	s.conn = conn

	name, bufferSize, err := readHandshake(conn)
	if err != nil {
		s.logger.Warn("subscriber handshake rejected", zap.Error(err))
		_ = conn.Close()
		s.state.Store(int32(stateStopped))
		return err
	}

	reg, err := region.Attach(name, bufferSize)
	if err != nil {
		s.logger.Warn("subscriber region attach failed", zap.String("region", name), zap.Error(err))
		_ = conn.Close()
		s.state.Store(int32(stateStopped))
		return ErrNoSharedMem
	}
	s.region = reg
	s.state.Store(int32(stateAttached))

	s.state.Store(int32(stateRunning))
	s.wg.Add(1)
	go s.consumeLoop()

	return nil
}

// Destroy stops the consumer, closes the socket, and detaches the region.
// It is idempotent across uninitialized/initialized states.
func (s *Subscriber) Destroy() {
	current := subscriberState(s.state.Load())
	if current == stateInert || current == stateStopped {
		s.state.Store(int32(stateStopped))
		return
	}

	s.state.Store(int32(stateStopping))
	close(s.stopCh)
	s.wg.Wait()

	if s.conn != nil {
		_ = s.conn.Close()
	}
	if s.region != nil {
		_ = s.region.Destroy()
	}

	s.state.Store(int32(stateStopped))
}

// readHandshake reads the single handshake line the publisher sends
// immediately after accept and parses it into a region name and buffer
// size. SPEC_FULL.md §9 resolves the ambiguity in spec.md §9: exactly one
// SP separator is required.
func readHandshake(conn net.Conn) (name string, bufferSize int, err error) {
	reader := bufio.NewReader(conn)
	line, readErr := reader.ReadString('\n')
	if readErr != nil {
		return "", 0, ErrBadResponse
	}

	line = strings.TrimSuffix(line, "\n")
	parts := strings.Split(line, " ")
	if len(parts) != 2 {
		return "", 0, ErrBadResponse
	}

	regionName, sizeStr := parts[0], parts[1]
	if regionName == "" {
		return "", 0, ErrBadResponse
	}

	size, convErr := strconv.Atoi(sizeStr)
	if convErr != nil || size <= 0 {
		return "", 0, ErrBadResponse
	}

	return regionName, size, nil
}

// consumeLoop blocks on wait_and_snapshot with a 1-second timeout, invoking
// the callback on each new message. Once Running, socket errors and region
// faults are not reported; the loop continues until Destroy (SPEC_FULL.md
// §4.2 failure semantics).
func (s *Subscriber) consumeLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		payload, err := s.region.WaitAndSnapshot(consumerWaitTimeout)
		if err != nil {
			continue
		}

		s.callback(payload)
	}
}
