package http

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/ixKV/rpc/common"
	"github.com/ValentinKolb/ixKV/rpc/transport"
	"github.com/pkg/errors"
)

func NewHttpClientTransport() transport.IRPCClientTransport {
	return &httpClientTransport{}
}

type httpClientTransport struct {
	serverURLs []*url.URL
	client     *http.Client
	counter    uint32
	retryCount int
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCClientTransport)
// --------------------------------------------------------------------------

func (t *httpClientTransport) Connect(config common.ClientConfig) error {
	if len(config.Transport.Endpoints) == 0 {
		return errors.New("no endpoints provided")
	}

	// Parse each server URL
	parsedURLs := make([]*url.URL, len(config.Transport.Endpoints))
	for i, server := range config.Transport.Endpoints {
		if !strings.Contains(server, "://") {
			server = "http://" + server
		}
		parsedURL, err := url.Parse(strings.TrimSuffix(server, "/"))
		if err != nil {
			return errors.Wrapf(err, "invalid endpoint %q", server)
		}
		parsedURLs[i] = parsedURL
	}

	connsPerHost := config.Transport.ConnectionsPerEndpoint
	if connsPerHost <= 0 {
		connsPerHost = 10
	}

	// Create client with default transport
	t.client = &http.Client{
		Timeout: time.Duration(config.TimeoutSecond) * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: connsPerHost,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	t.serverURLs = parsedURLs
	t.counter = 0
	t.retryCount = config.Transport.RetryCount
	if t.retryCount < 1 {
		t.retryCount = 1
	}

	return nil
}

func (t *httpClientTransport) Send(shardId uint64, req []byte) (resp []byte, err error) {
	return t.sendTo(shardId, req, func() *url.URL {
		idx := atomic.AddUint32(&t.counter, 1) % uint32(len(t.serverURLs))
		return t.serverURLs[idx]
	})
}

// Pin binds a sender to the next endpoint in round robin order.
func (t *httpClientTransport) Pin() transport.ISender {
	if t.client == nil || len(t.serverURLs) == 0 {
		return t
	}
	idx := atomic.AddUint32(&t.counter, 1) % uint32(len(t.serverURLs))
	return &pinnedSender{owner: t, endpoint: t.serverURLs[idx]}
}

type pinnedSender struct {
	owner    *httpClientTransport
	endpoint *url.URL
}

func (p *pinnedSender) Send(shardId uint64, req []byte) ([]byte, error) {
	return p.owner.sendTo(shardId, req, func() *url.URL { return p.endpoint })
}

// sendTo posts req to the endpoint returned by pick, retrying on failure.
func (t *httpClientTransport) sendTo(shardId uint64, req []byte, pick func() *url.URL) (resp []byte, err error) {
	// Check if the transport is initialized
	if t.client == nil {
		return nil, transport.ErrNotConnected
	}

	for i := 0; i < t.retryCount; i++ {
		requestURL := fmt.Sprintf("%s/%d", pick().String(), shardId)

		resp, err = t.post(requestURL, req)
		if err == nil {
			return resp, nil
		}
		Logger.Debugf("Request attempt %d/%d to %s failed: %v", i+1, t.retryCount, requestURL, err)
	}
	return nil, err
}

func (t *httpClientTransport) post(requestURL string, req []byte) ([]byte, error) {
	// The body reader is consumed by a request, a retry needs a new one
	httpResponse, err := t.client.Post(requestURL, "application/octet-stream", bytes.NewReader(req))
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, errors.Wrap(transport.ErrRequestTimeout, err.Error())
		}
		return nil, err
	}
	defer func() {
		if err := httpResponse.Body.Close(); err != nil {
			Logger.Errorf("Failed to close response body: %v", err)
		}
	}()

	// Check if the response status code is OK
	if httpResponse.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http error: %s", httpResponse.Status)
	}

	return io.ReadAll(httpResponse.Body)
}

func (t *httpClientTransport) Close() error {
	// Close the client
	if t.client != nil {
		t.client.CloseIdleConnections()
	}

	// Reset the client and server URLs
	t.client = nil
	t.serverURLs = nil

	return nil
}
