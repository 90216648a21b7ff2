package serializer

import "github.com/ValentinKolb/ixKV/rpc/common"

// IRPCSerializer is the interface for all Message Serializers.
// Client and server of a shard must use the same serializer.
type IRPCSerializer interface {
	// Serialize encodes a Message into a byte slice
	Serialize(msg common.Message) ([]byte, error)

	// Deserialize decodes b into msg. msg is reset first, so fields absent
	// from b are zero afterwards. Malformed input is reported as error and
	// leaves msg in an unspecified state.
	Deserialize(b []byte, msg *common.Message) error
}
