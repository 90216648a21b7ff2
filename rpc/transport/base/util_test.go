package base

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		shardID uint64
		reqID   uint64
		data    []byte
		bufSize int
	}{
		{"small payload", 100, 1, []byte("hello"), 64},
		{"empty payload", 7, 2, nil, 64},
		{"payload larger than buffer", 1, 3, make([]byte, 4096), 32},
		{"buffer smaller than header", 2, 4, []byte{1, 2, 3}, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, server := net.Pipe()
			defer client.Close()
			defer server.Close()

			errCh := make(chan error, 1)
			go func() { errCh <- writeFrame(client, tt.shardID, tt.reqID, tt.data) }()

			shardID, reqID, data, err := readFrame(server, make([]byte, tt.bufSize))
			require.NoError(t, err)
			require.NoError(t, <-errCh)

			assert.Equal(t, tt.shardID, shardID)
			assert.Equal(t, tt.reqID, reqID)
			assert.Equal(t, len(tt.data), len(data))
			if len(tt.data) > 0 {
				assert.Equal(t, tt.data, data)
			}
		})
	}
}

func TestWriteFrameRejectsOversizedPayload(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	err := writeFrame(client, 1, 1, make([]byte, maxFrameSize+1))
	assert.Error(t, err)
}
