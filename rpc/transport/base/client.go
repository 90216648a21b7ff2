package base

import (
	"math/rand"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/ixKV/rpc/common"
	"github.com/ValentinKolb/ixKV/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("transport/rpc")

var (
	sendRetries = metrics.NewCounter(`ixkv_transport_send_retries_total`)
	reconnects  = metrics.NewCounter(`ixkv_transport_reconnects_total`)
	pinnedSends = metrics.NewCounter(`ixkv_transport_pinned_sends_total`)
)

// IClientConnector is implemented by the tcp and unix transports. It opens
// the raw connections the base client multiplexes requests over.
type IClientConnector interface {
	// Connect dials a single connection to endpoint
	Connect(endpoint string) (net.Conn, error)

	// GetName returns the transport name used in logs, e.g. "unix"
	GetName() string

	// UpgradeConnection applies transport specific socket options
	UpgradeConnection(conn net.Conn, config common.ClientConfig) error
}

// pending is the answer to one in-flight request
type pending struct {
	data []byte
	err  error
}

// muxConn is one connection of the pool. Requests are written under mu and
// answered by the reader goroutine, which matches responses by request ID.
type muxConn struct {
	endpoint string
	mu       sync.Mutex
	conn     net.Conn
	inflight *xsync.MapOf[uint64, chan pending]
	done     chan struct{}
	owner    *clientTransport
}

// clientTransport spreads requests round robin over a pool of muxConns. The
// pool holds ConnectionsPerEndpoint connections for every endpoint.
type clientTransport struct {
	connector IClientConnector
	config    common.ClientConfig
	poolMu    sync.RWMutex
	pool      []*muxConn
	rr        uint64 // round robin position
	lastID    uint64 // last request ID handed out
}

// NewBaseClientTransport creates the client side of a frame based transport.
// Senders returned by Pin send all requests over one connection, which keeps
// the pages of a query cursor on the server that opened it.
func NewBaseClientTransport(connector IClientConnector) transport.IRPCClientTransport {
	return &clientTransport{connector: connector}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IPinnableClientTransport)
// --------------------------------------------------------------------------

func (t *clientTransport) Connect(config common.ClientConfig) error {
	endpoints := config.Transport.Endpoints
	if len(endpoints) == 0 {
		return errors.New("no endpoints provided")
	}
	t.shutdown()
	t.config = config

	perEndpoint := config.Transport.ConnectionsPerEndpoint
	if perEndpoint < 1 {
		perEndpoint = 1
	}

	pool := make([]*muxConn, 0, len(endpoints)*perEndpoint)
	for _, endpoint := range endpoints {
		for i := 1; i <= perEndpoint; i++ {
			c, err := t.dial(endpoint)
			if err != nil {
				Logger.Warningf("Failed to connect to %s (connection %d/%d): %v", endpoint, i, perEndpoint, err)
				continue
			}
			pool = append(pool, c)
		}
	}
	if len(pool) == 0 {
		return errors.Wrapf(transport.ErrNotConnected, "failed to connect to any of %v", endpoints)
	}

	t.poolMu.Lock()
	t.pool = pool
	t.poolMu.Unlock()

	Logger.Infof("%s transport: %d of %d connections to %d endpoints established",
		t.connector.GetName(), len(pool), len(endpoints)*perEndpoint, len(endpoints))
	return nil
}

func (t *clientTransport) Send(shardId uint64, req []byte) ([]byte, error) {
	return t.sendWithRetry(shardId, req, t.next)
}

// Pin picks one connection of the pool. If that connection breaks it is
// reconnected to the same endpoint, the sender never moves to another one.
func (t *clientTransport) Pin() transport.ISender {
	return &pinnedSender{owner: t, conn: t.next()}
}

func (t *clientTransport) Close() error {
	t.shutdown()
	return nil
}

// --------------------------------------------------------------------------
// Sending
// --------------------------------------------------------------------------

type pinnedSender struct {
	owner *clientTransport
	conn  *muxConn
}

func (p *pinnedSender) Send(shardId uint64, req []byte) ([]byte, error) {
	pinnedSends.Inc()
	return p.owner.sendWithRetry(shardId, req, func() *muxConn { return p.conn })
}

// sendWithRetry sends req over the connection returned by pick. Failed
// attempts are retried RetryCount times in total with exponential backoff.
func (t *clientTransport) sendWithRetry(shardId uint64, req []byte, pick func() *muxConn) ([]byte, error) {
	attempts := t.config.Transport.RetryCount
	if attempts < 1 {
		attempts = 1
	}
	timeout := time.Duration(t.config.TimeoutSecond) * time.Second
	backoff := 50 * time.Millisecond

	var lastErr error
	for i := 1; i <= attempts; i++ {
		c := pick()
		if c == nil {
			return nil, transport.ErrNotConnected
		}

		data, err := c.roundTrip(atomic.AddUint64(&t.lastID, 1), shardId, req, timeout)
		if err == nil {
			return data, nil
		}
		lastErr = err
		Logger.Debugf("Request attempt %d/%d to %s failed: %v", i, attempts, c.endpoint, err)

		if i < attempts {
			sendRetries.Inc()
			// +-10% jitter
			time.Sleep(time.Duration(float64(backoff) * (0.9 + 0.2*rand.Float64())))
			backoff *= 2
		}
	}
	return nil, errors.Wrapf(lastErr, "failed to send request after %d attempts", attempts)
}

// next returns the next connection of the pool, nil if there is none.
func (t *clientTransport) next() *muxConn {
	t.poolMu.RLock()
	defer t.poolMu.RUnlock()

	switch len(t.pool) {
	case 0:
		return nil
	case 1:
		return t.pool[0]
	}
	return t.pool[atomic.AddUint64(&t.rr, 1)%uint64(len(t.pool))]
}

// shutdown closes every connection of the pool and stops their readers.
func (t *clientTransport) shutdown() {
	t.poolMu.Lock()
	defer t.poolMu.Unlock()

	for _, c := range t.pool {
		close(c.done)
		c.mu.Lock()
		if c.conn != nil {
			_ = c.conn.Close()
		}
		c.mu.Unlock()
	}
	t.pool = nil
}

// --------------------------------------------------------------------------
// Connections
// --------------------------------------------------------------------------

// dial opens a muxConn to endpoint and starts its reader.
func (t *clientTransport) dial(endpoint string) (*muxConn, error) {
	c := &muxConn{
		endpoint: endpoint,
		inflight: xsync.NewMapOf[uint64, chan pending](),
		done:     make(chan struct{}),
		owner:    t,
	}
	if err := c.redial(); err != nil {
		return nil, err
	}
	go c.readLoop()
	return c, nil
}

// roundTrip writes one request frame and waits for the matching response.
// A response that arrives after the timeout is dropped by the reader.
func (c *muxConn) roundTrip(requestID, shardId uint64, req []byte, timeout time.Duration) ([]byte, error) {
	ch := make(chan pending, 1)
	c.inflight.Store(requestID, ch)
	defer c.inflight.Delete(requestID)

	c.mu.Lock()
	if c.conn == nil {
		c.mu.Unlock()
		return nil, errors.Errorf("connection to %s is closed", c.endpoint)
	}
	if timeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(timeout))
	}
	err := writeFrame(c.conn, shardId, requestID, req)
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if timeout <= 0 {
		p := <-ch
		return p.data, p.err
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case p := <-ch:
		return p.data, p.err
	case <-timer.C:
		return nil, transport.ErrRequestTimeout
	}
}

func (c *muxConn) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *muxConn) current() net.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

// failInflight answers every waiting request with err.
func (c *muxConn) failInflight(err error) {
	c.inflight.Range(func(_ uint64, ch chan pending) bool {
		select {
		case ch <- pending{err: err}:
		default:
		}
		return true
	})
}

// readLoop hands responses to the waiting requests. On a read error all
// waiting requests fail and the connection is redialed.
func (c *muxConn) readLoop() {
	idle := time.Duration(c.owner.config.TimeoutSecond) * time.Second

	for !c.closed() {
		conn := c.current()
		if conn == nil {
			return
		}
		if idle > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(idle))
		}

		shardID, requestID, data, err := readFrame(conn, nil)
		if err == nil {
			if ch, ok := c.inflight.Load(requestID); ok {
				ch <- pending{data: data}
			} else {
				Logger.Warningf("Dropping response %d of shard %d from %s, nobody is waiting", requestID, shardID, c.endpoint)
			}
			continue
		}
		if c.closed() {
			return
		}

		// deadline on an idle connection
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() && c.inflight.Size() == 0 {
			continue
		}

		Logger.Warningf("Error reading response from %s: %v", c.endpoint, err)
		c.failInflight(errors.Wrap(err, "error reading response"))

		reconnects.Inc()
		if err := c.redial(); err != nil {
			Logger.Errorf("Failed to reconnect to %s: %v", c.endpoint, err)
			return
		}
	}
}

// redial replaces the network connection of c.
func (c *muxConn) redial() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}

	conn, err := c.owner.connector.Connect(c.endpoint)
	if err != nil {
		return errors.Wrapf(err, "failed to connect to %s", c.endpoint)
	}
	if err := c.owner.connector.UpgradeConnection(conn, c.owner.config); err != nil {
		_ = conn.Close()
		return errors.Wrapf(err, "failed to upgrade connection to %s", c.endpoint)
	}
	c.conn = conn
	return nil
}
