package client

import (
	"io"
	"time"

	"github.com/ValentinKolb/ixKV/lib/store"
	"github.com/ValentinKolb/ixKV/rpc/common"
	"github.com/ValentinKolb/ixKV/rpc/serializer"
	"github.com/ValentinKolb/ixKV/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/pkg/errors"
	gometrics "github.com/rcrowley/go-metrics"
)

var (
	Logger = logger.GetLogger("rpc")

	// registry holds one timer per message type (request latency as seen by the client)
	registry = gometrics.NewRegistry()
)

// WriteStats writes the request latency statistics of all RPC clients of this process to w
func WriteStats(w io.Writer) {
	gometrics.WriteOnce(registry, w)
}

// rpcClientAdapter is a struct that stores all data needed for an implementation if an RPC client
type rpcClientAdapter struct {
	shardId    uint64
	config     common.ClientConfig
	transport  transport.IRPCClientTransport
	serializer serializer.IRPCSerializer
}

// invoke sends req to the shard of the adapter, see invokeRPCRequest
func (a *rpcClientAdapter) invoke(req *common.Message) (*common.Message, error) {
	return a.invokeVia(a.transport, req)
}

// invokeVia is invoke over a given sender, used for requests that must reach
// the server holding a cursor or index task.
func (a *rpcClientAdapter) invokeVia(sender transport.ISender, req *common.Message) (*common.Message, error) {
	timer := gometrics.GetOrRegisterTimer("rpc."+req.MsgType.String(), registry)
	start := time.Now()
	defer timer.UpdateSince(start)
	return invokeRPCRequest(a.shardId, req, sender, a.serializer)
}

// invokeRPCRequest is a helper function used for all RPC Clients to send requests
// It takes a shard ID, a request message, a transport layer and a serializer as parameters
// It returns a response message and an error if any occurs
// This method also checks if the response is an error response and if the type of the response is the expected type
// All errors are returned as *store.Error.
func invokeRPCRequest(shardId uint64, req *common.Message, t transport.ISender, s serializer.IRPCSerializer) (*common.Message, error) {
	// Serialize the request
	reqBytes, err := s.Serialize(*req)
	if err != nil {
		return nil, store.Errorf(store.RetCParameterError, "failed to serialize %s request: %v", req.MsgType, err)
	}

	// Send the request
	respBytes, err := t.Send(shardId, reqBytes)
	if err != nil {
		if errors.Is(err, transport.ErrRequestTimeout) {
			return nil, store.NewError(store.RetCTimeout, err.Error())
		}
		return nil, store.NewError(store.RetCInternalError, err.Error())
	}

	// Deserialize the response
	resp := &common.Message{}
	if err := s.Deserialize(respBytes, resp); err != nil {
		return nil, store.Errorf(store.RetCInternalError, "failed to deserialize %s response: %v", req.MsgType, err)
	}

	// Check if the response is an error response
	if err := resp.ResponseErr(); err != nil {
		return resp, err
	}

	// Check if the type of the response is the expected type
	if resp.MsgType != req.MsgType {
		return nil, store.Errorf(store.RetCInternalError, "unexpected message type: %s, expected %s", resp.MsgType, req.MsgType)
	}

	return resp, nil
}

// timeoutMs converts the timeout of a policy for the wire
func timeoutMs(p *store.Policy) uint64 {
	if p == nil || p.Timeout <= 0 {
		return 0
	}
	return uint64(p.Timeout / time.Millisecond)
}
