package base

import (
	"net"
	"testing"

	"github.com/ValentinKolb/ixKV/rpc/common"
	"github.com/ValentinKolb/ixKV/rpc/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pipeConnector connects to in-memory servers that answer every frame with
// the name of their endpoint.
type pipeConnector struct{}

func (pipeConnector) Connect(endpoint string) (net.Conn, error) {
	client, server := net.Pipe()
	go func() {
		defer server.Close()
		for {
			shardID, requestID, _, err := readFrame(server, nil)
			if err != nil {
				return
			}
			if err := writeFrame(server, shardID, requestID, []byte(endpoint)); err != nil {
				return
			}
		}
	}()
	return client, nil
}

func (pipeConnector) GetName() string { return "pipe" }

func (pipeConnector) UpgradeConnection(net.Conn, common.ClientConfig) error { return nil }

func newPipeClient(t *testing.T, endpoints ...string) transport.IRPCClientTransport {
	t.Helper()
	c := NewBaseClientTransport(pipeConnector{})
	require.NoError(t, c.Connect(common.ClientConfig{
		TimeoutSecond: 5,
		Transport:     common.ClientTransportConfig{Endpoints: endpoints, RetryCount: 1},
	}))
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestSendBalancesOverEndpoints(t *testing.T) {
	c := newPipeClient(t, "a", "b")

	seen := map[string]int{}
	for i := 0; i < 10; i++ {
		resp, err := c.Send(1, []byte("req"))
		require.NoError(t, err)
		seen[string(resp)]++
	}
	assert.Equal(t, 5, seen["a"])
	assert.Equal(t, 5, seen["b"])
}

func TestPinnedSenderStaysOnOneEndpoint(t *testing.T) {
	c := newPipeClient(t, "a", "b")

	pinned := transport.Pin(c)
	first, err := pinned.Send(1, []byte("open"))
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		// unpinned traffic in between moves the round robin position
		_, err := c.Send(1, []byte("other"))
		require.NoError(t, err)

		resp, err := pinned.Send(1, []byte("next"))
		require.NoError(t, err)
		assert.Equal(t, string(first), string(resp))
	}
}

func TestSendAfterClose(t *testing.T) {
	c := NewBaseClientTransport(pipeConnector{})
	require.NoError(t, c.Connect(common.ClientConfig{
		Transport: common.ClientTransportConfig{Endpoints: []string{"a"}},
	}))
	pinned := transport.Pin(c)
	require.NoError(t, c.Close())

	_, err := c.Send(1, []byte("req"))
	assert.ErrorIs(t, err, transport.ErrNotConnected)

	_, err = pinned.Send(1, []byte("req"))
	assert.Error(t, err)
}
