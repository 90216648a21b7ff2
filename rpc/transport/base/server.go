package base

import (
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/ixKV/rpc/common"
	"github.com/ValentinKolb/ixKV/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/pkg/errors"
)

var (
	openConnections = metrics.NewCounter(`ixkv_transport_connections_accepted_total`)
	framesHandled   = metrics.NewCounter(`ixkv_transport_frames_handled_total`)
)

// IServerConnector is implemented by the tcp and unix transports. It creates
// the listener the base server accepts connections from.
type IServerConnector interface {
	// Listen creates the listener for config.Transport.Endpoint
	Listen(config common.ServerConfig) (net.Listener, error)

	// GetName returns the transport name used in logs, e.g. "unix"
	GetName() string

	// UpgradeConnection applies transport specific socket options
	UpgradeConnection(conn net.Conn, config common.ServerConfig) error
}

// serverTransport accepts connections and serves each of them in a session.
type serverTransport struct {
	connector IServerConnector
	handler   transport.ServerHandleFunc
	config    common.ServerConfig

	mu       sync.Mutex
	listener net.Listener
	closed   atomic.Bool

	buffers        *sync.Pool
	workersPerConn int
}

// NewBaseServerTransport creates the server side of a frame based transport.
// Each connection handles up to workersPerConn requests concurrently. Reads
// use pooled buffers of bufferSize bytes, larger frames allocate.
func NewBaseServerTransport(connector IServerConnector, bufferSize int, workersPerConn int) transport.IRPCServerTransport {
	if workersPerConn < 1 {
		workersPerConn = 1
	}
	if bufferSize < frameHeaderSize {
		bufferSize = frameHeaderSize
	}
	return &serverTransport{
		connector:      connector,
		workersPerConn: workersPerConn,
		buffers: &sync.Pool{
			New: func() interface{} { return make([]byte, bufferSize) },
		},
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCServerTransport)
// --------------------------------------------------------------------------

func (t *serverTransport) RegisterHandler(handler transport.ServerHandleFunc) {
	t.handler = handler
}

func (t *serverTransport) Listen(config common.ServerConfig) error {
	if t.handler == nil {
		return errors.New("no handler registered")
	}
	t.config = config

	l, err := t.connector.Listen(config)
	if err != nil {
		return errors.Wrap(err, "failed to create listener")
	}
	t.mu.Lock()
	t.listener = l
	t.mu.Unlock()

	// Close before the listener existed
	if t.closed.Load() {
		return l.Close()
	}

	Logger.Infof("%s server listening on %s, %d workers per connection",
		t.connector.GetName(), config.Transport.Endpoint, t.workersPerConn)
	return t.acceptLoop(l)
}

func (t *serverTransport) Close() error {
	t.closed.Store(true)
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.listener == nil {
		return nil
	}
	return t.listener.Close()
}

// --------------------------------------------------------------------------
// Sessions
// --------------------------------------------------------------------------

func (t *serverTransport) acceptLoop(l net.Listener) error {
	for {
		conn, err := l.Accept()
		if err != nil {
			if t.closed.Load() {
				return nil
			}
			Logger.Errorf("Accept error: %v", err)
			time.Sleep(10 * time.Millisecond)
			continue
		}
		if err := t.connector.UpgradeConnection(conn, t.config); err != nil {
			Logger.Warningf("Failed to upgrade connection from %s: %v", conn.RemoteAddr(), err)
		}
		openConnections.Inc()

		s := &session{
			owner:   t,
			conn:    conn,
			timeout: time.Duration(t.config.TimeoutSecond) * time.Second,
			slots:   make(chan struct{}, t.workersPerConn),
		}
		go s.serve()
	}
}

// session serves the requests of one client connection. Requests are
// handled concurrently, responses may be written in any order. A client
// pins cursor requests to one connection, so a session sees every page of
// the cursors it opened.
type session struct {
	owner   *serverTransport
	conn    net.Conn
	timeout time.Duration

	writeMu sync.Mutex
	slots   chan struct{} // one per running worker
	workers sync.WaitGroup
}

// serve reads frames until the client disconnects. The connection is closed
// after the last running request was answered.
func (s *session) serve() {
	defer s.conn.Close()
	defer s.workers.Wait()

	for {
		// No read deadline, connections idle between requests
		buf := s.owner.buffers.Get().([]byte)
		shardID, requestID, data, err := readFrame(s.conn, buf)
		if err != nil {
			s.owner.buffers.Put(buf)
			if errors.Is(err, io.EOF) {
				Logger.Debugf("Connection from %s closed by client", s.conn.RemoteAddr())
			} else {
				Logger.Warningf("Error reading request from %s: %v", s.conn.RemoteAddr(), err)
			}
			return
		}

		s.slots <- struct{}{}
		s.workers.Add(1)
		go func() {
			defer func() {
				s.owner.buffers.Put(buf)
				<-s.slots
				s.workers.Done()
			}()
			s.dispatch(shardID, requestID, data)
		}()
	}
}

// dispatch runs the handler for one request and writes its response.
func (s *session) dispatch(shardID, requestID uint64, data []byte) {
	start := time.Now()
	resp := s.owner.handler(shardID, data)
	framesHandled.Inc()
	Logger.Debugf("Request %d for shard %d handled in %s", requestID, shardID, time.Since(start))

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.timeout > 0 {
		if err := s.conn.SetWriteDeadline(time.Now().Add(s.timeout)); err != nil {
			Logger.Errorf("Failed to set write deadline: %v", err)
			return
		}
	}
	if err := writeFrame(s.conn, shardID, requestID, resp); err != nil {
		Logger.Errorf("Failed to write response %d: %v", requestID, err)
	}
}
