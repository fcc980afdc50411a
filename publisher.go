package herald

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"herald/internal/metrics"
	"herald/internal/region"
)

// PublisherOption configures optional ambient behavior on a Publisher.
// herald's wire protocol takes no configuration of its own (SPEC_FULL.md
// §6: "No environment variables. No persisted state."); options only wire
// up logging/metrics collaborators for the process that embeds herald.
type PublisherOption func(*Publisher)

// WithPublisherLogger attaches a zap logger for best-effort diagnostic
// messages (SPEC_FULL.md §4.3/§7 policy 2). Defaults to a no-op logger.
func WithPublisherLogger(logger *zap.Logger) PublisherOption {
	return func(p *Publisher) { p.logger = logger }
}

// WithPublisherMetrics attaches a Prometheus metrics registry.
func WithPublisherMetrics(reg *metrics.Registry) PublisherOption {
	return func(p *Publisher) { p.metrics = reg }
}

// subscriberEntry pairs a connection with its owned shared region.
type subscriberEntry struct {
	conn   net.Conn
	region *region.Region
}

// Publisher owns the TCP listening socket and a per-connection subscriber
// registry. Each accepted connection is assigned a fresh shared region; a
// single dispatch worker drains a pending queue and writes each published
// message into every registered region.
type Publisher struct {
	port       int
	bufferSize int

	logger  *zap.Logger
	metrics *metrics.Registry

	running  atomic.Bool
	listener net.Listener
	wg       sync.WaitGroup // accept + dispatch loops only
	connWg   sync.WaitGroup // one per accepted connection
	stopCh   chan struct{}

	registryMu sync.Mutex
	registry   map[net.Conn]*subscriberEntry

	queueMu   sync.Mutex
	queueCond *sync.Cond
	queue     [][]byte
}

// NewPublisher creates a publisher. It does not initialize the server
// until Init is called. bufferSize becomes the payload ceiling for every
// subscriber region.
func NewPublisher(port int, bufferSize int, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		port:       port,
		bufferSize: bufferSize,
		logger:     zap.NewNop(),
		registry:   make(map[net.Conn]*subscriberEntry),
		stopCh:     make(chan struct{}),
	}
	p.queueCond = sync.NewCond(&p.queueMu)

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Init binds to the configured TCP port with address reuse enabled and
// starts the accept and dispatch workers.
func (p *Publisher) Init() error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", p.port))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoSocket, err)
	}
	p.listener = ln
	p.running.Store(true)

	p.wg.Add(2)
	go p.acceptLoop()
	go p.dispatchLoop()

	p.logger.Info("publisher initialized", zap.Int("port", p.port), zap.Int("buffer_size", p.bufferSize))
	return nil
}

// Publish enqueues a pending publish and returns immediately. The payload
// is copied, so the caller's slice may be reused after Publish returns.
func (p *Publisher) Publish(data []byte) error {
	if !p.running.Load() {
		return ErrNotRunning
	}
	if len(data) > p.bufferSize {
		return ErrTooLarge
	}

	cp := make([]byte, len(data))
	copy(cp, data)

	p.queueMu.Lock()
	p.queue = append(p.queue, cp)
	p.queueCond.Signal()
	p.queueMu.Unlock()

	if p.metrics != nil {
		p.metrics.MessagesPublished.Inc()
	}
	return nil
}

// Destroy stops the workers, closes the listener, closes every subscriber
// socket, and destroys every owned region. It blocks until the accept and
// dispatch loops and every per-connection watcher have exited.
func (p *Publisher) Destroy() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}

	close(p.stopCh)
	if p.listener != nil {
		_ = p.listener.Close()
	}

	p.queueMu.Lock()
	p.queueCond.Broadcast()
	p.queueMu.Unlock()

	// Wait for the accept loop to exit before touching the registry: once
	// it has returned, no new subscriber can be registered, so the
	// snapshot below is final.
	p.wg.Wait()

	p.registryMu.Lock()
	entries := make([]*subscriberEntry, 0, len(p.registry))
	for _, e := range p.registry {
		entries = append(entries, e)
	}
	p.registryMu.Unlock()

	for _, e := range entries {
		// Closing the socket unblocks that connection's watchDisconnect
		// read; removeSubscriber is idempotent so it is safe even if the
		// watcher races us here.
		p.removeSubscriber(e.conn)
	}

	p.connWg.Wait()
}

func (p *Publisher) acceptLoop() {
	defer p.wg.Done()

	for {
		conn, err := p.listener.Accept()
		if err != nil {
			select {
			case <-p.stopCh:
				return
			default:
				p.logger.Error("accept error", zap.Error(err))
				return
			}
		}

		p.connWg.Add(1)
		go p.onAccept(conn)
	}
}

// onAccept assigns a fresh region to the newly accepted connection, sends
// the handshake line, registers the subscriber, and spawns the goroutine
// that detects its disconnection (SPEC_FULL.md §2 process topology note).
func (p *Publisher) onAccept(conn net.Conn) {
	defer p.connWg.Done()

	name, err := nextRegionID()
	if err != nil {
		p.logger.Warn("region id generation failed", zap.Error(err))
		if p.metrics != nil {
			p.metrics.AcceptErrors.Inc()
		}
		_ = conn.Close()
		return
	}

	reg, err := region.Create(name, p.bufferSize)
	if err != nil {
		p.logger.Warn("region create failed", zap.Error(err))
		if p.metrics != nil {
			p.metrics.AcceptErrors.Inc()
		}
		_ = conn.Close()
		return
	}

	entry := &subscriberEntry{conn: conn, region: reg}
	p.registryMu.Lock()
	if !p.running.Load() {
		// Destroy is already in progress and has taken its final registry
		// snapshot; registering now would leave this connection watched
		// forever with nobody left to close it.
		p.registryMu.Unlock()
		_ = reg.Destroy()
		_ = conn.Close()
		return
	}
	p.registry[conn] = entry
	if p.metrics != nil {
		p.metrics.ActiveSubscribers.Inc()
	}
	p.registryMu.Unlock()

	handshake := fmt.Sprintf("%s %d\n", name, p.bufferSize)
	if _, err := conn.Write([]byte(handshake)); err != nil {
		p.logger.Warn("handshake send failed", zap.Error(err))
		p.removeSubscriber(conn)
		return
	}

	p.watchDisconnect(conn)
}

// watchDisconnect blocks on a read from the subscriber. Subscribers never
// send data (SPEC_FULL.md §6), so any readable byte stream — data, error,
// or EOF — signals disconnection.
func (p *Publisher) watchDisconnect(conn net.Conn) {
	buf := make([]byte, 1)
	_, _ = conn.Read(buf)
	p.removeSubscriber(conn)
}

func (p *Publisher) removeSubscriber(conn net.Conn) {
	p.registryMu.Lock()
	entry, ok := p.registry[conn]
	if ok {
		delete(p.registry, conn)
	}
	p.registryMu.Unlock()

	if !ok {
		return
	}

	_ = conn.Close()
	_ = entry.region.Destroy()
	if p.metrics != nil {
		p.metrics.ActiveSubscribers.Dec()
	}
}

func (p *Publisher) dispatchLoop() {
	defer p.wg.Done()

	for {
		p.queueMu.Lock()
		for len(p.queue) == 0 && p.running.Load() {
			p.queueCond.Wait()
		}
		if len(p.queue) == 0 && !p.running.Load() {
			p.queueMu.Unlock()
			return
		}
		payload := p.queue[0]
		p.queue = p.queue[1:]
		p.queueMu.Unlock()

		p.fanout(payload)
	}
}

// fanout writes payload into every currently registered region, holding
// the registry lock for the duration (SPEC_FULL.md §4.3 dispatch worker).
func (p *Publisher) fanout(payload []byte) {
	p.registryMu.Lock()
	defer p.registryMu.Unlock()

	for _, entry := range p.registry {
		if err := entry.region.Write(payload); err != nil {
			p.logger.Warn("region write failed", zap.String("region", entry.region.Name()), zap.Error(err))
			if p.metrics != nil {
				p.metrics.RegionWriteErrors.Inc()
			}
			continue
		}
		if p.metrics != nil {
			p.metrics.MessagesDelivered.Inc()
		}
	}
}

// SubscriberCount reports the number of currently registered subscribers.
func (p *Publisher) SubscriberCount() int {
	p.registryMu.Lock()
	defer p.registryMu.Unlock()
	return len(p.registry)
}
