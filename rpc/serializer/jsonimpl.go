package serializer

import (
	"encoding/json"

	"github.com/ValentinKolb/ixKV/rpc/common"
	"github.com/pkg/errors"
)

// NewJSONSerializer creates a new serializer using json encoding.
// Byte fields (digests, keys, bins, meta) are base64 encoded by encoding/json.
func NewJSONSerializer() IRPCSerializer {
	return &jsonSerializerImpl{}
}

type jsonSerializerImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (j jsonSerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	b, err := json.Marshal(msg)
	if err != nil {
		return nil, errors.Wrapf(err, "json: encode %s message", msg.MsgType)
	}
	return b, nil
}

func (j jsonSerializerImpl) Deserialize(b []byte, msg *common.Message) error {
	// json.Unmarshal merges into existing values
	*msg = common.Message{}
	if err := json.Unmarshal(b, msg); err != nil {
		return errors.Wrap(err, "json: decode message")
	}
	return nil
}
