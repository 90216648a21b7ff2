package serializer

import (
	"bytes"
	"encoding/gob"

	"github.com/ValentinKolb/ixKV/rpc/common"
	"github.com/pkg/errors"
)

// NewGOBSerializer creates a new serializer using Go's binary gob format.
// Every message carries its own type description, so gob is the largest of
// the three formats for small requests.
func NewGOBSerializer() IRPCSerializer {
	return &gobSerializerImpl{}
}

type gobSerializerImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (g gobSerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(msg); err != nil {
		return nil, errors.Wrapf(err, "gob: encode %s message", msg.MsgType)
	}
	return buf.Bytes(), nil
}

func (g gobSerializerImpl) Deserialize(b []byte, msg *common.Message) error {
	// gob leaves fields that are absent in the stream untouched
	*msg = common.Message{}
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(msg); err != nil {
		return errors.Wrap(err, "gob: decode message")
	}
	return nil
}
