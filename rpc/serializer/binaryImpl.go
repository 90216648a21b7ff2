package serializer

import (
	"encoding/binary"
	"fmt"

	"github.com/ValentinKolb/ixKV/rpc/common"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and efficiency
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasNamespace uint32 = 1 << iota
	hasSet
	hasDigest
	hasUserKey
	hasBins
	hasBinNames
	hasSendKey
	hasIndexName
	hasBinName
	hasIndexType
	hasFilter
	hasBegin
	hasEnd
	hasCursorID
	hasMaxRecords
	hasRecords
	hasTimeout
	hasOk
	hasCode
	hasErr
	hasMeta
)

// header: 1 byte MsgType + 4 bytes flags
const headerSize = 5

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	e := encoder{buf: make([]byte, headerSize, b.sizeBytes(msg))}
	e.buf[0] = byte(msg.MsgType)

	var flags uint32

	if msg.Namespace != "" {
		flags |= hasNamespace
		e.str(msg.Namespace)
	}
	if msg.Set != "" {
		flags |= hasSet
		e.str(msg.Set)
	}
	if msg.Digest != nil {
		flags |= hasDigest
		e.bytes(msg.Digest)
	}
	if msg.UserKey != nil {
		flags |= hasUserKey
		e.bytes(msg.UserKey)
	}
	if msg.Bins != nil {
		flags |= hasBins
		e.bytes(msg.Bins)
	}
	if msg.BinNames != nil {
		flags |= hasBinNames
		e.u32(uint32(len(msg.BinNames)))
		for _, name := range msg.BinNames {
			e.str(name)
		}
	}
	if msg.SendKey {
		flags |= hasSendKey
	}
	if msg.IndexName != "" {
		flags |= hasIndexName
		e.str(msg.IndexName)
	}
	if msg.BinName != "" {
		flags |= hasBinName
		e.str(msg.BinName)
	}
	if msg.IndexType != "" {
		flags |= hasIndexType
		e.str(msg.IndexType)
	}
	if msg.HasFilter {
		flags |= hasFilter
	}
	if msg.Begin != 0 {
		flags |= hasBegin
		e.u64(uint64(msg.Begin))
	}
	if msg.End != 0 {
		flags |= hasEnd
		e.u64(uint64(msg.End))
	}
	if msg.CursorID != "" {
		flags |= hasCursorID
		e.str(msg.CursorID)
	}
	if msg.MaxRecords != 0 {
		flags |= hasMaxRecords
		e.u32(msg.MaxRecords)
	}
	if msg.Records != nil {
		flags |= hasRecords
		e.u32(uint32(len(msg.Records)))
		for _, r := range msg.Records {
			e.str(r.Namespace)
			e.str(r.Set)
			e.bytes(r.Digest)
			e.bytes(r.UserKey)
			e.bytes(r.Bins)
			e.u32(r.Generation)
		}
	}
	if msg.TimeoutMs != 0 {
		flags |= hasTimeout
		e.u64(msg.TimeoutMs)
	}
	if msg.Ok {
		flags |= hasOk
	}
	if msg.Code != 0 {
		flags |= hasCode
		e.u64(msg.Code)
	}
	if msg.Err != "" {
		flags |= hasErr
		e.str(msg.Err)
	}
	if msg.Meta != nil {
		flags |= hasMeta
		e.bytes(msg.Meta)
	}

	// Set flags after knowing which fields are present
	binary.BigEndian.PutUint32(e.buf[1:headerSize], flags)
	return e.buf, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	// Check minimum size (MsgType + flags)
	if len(data) < headerSize {
		return fmt.Errorf("data too short for message header")
	}

	*msg = common.Message{MsgType: common.MessageType(data[0])}
	flags := binary.BigEndian.Uint32(data[1:headerSize])
	d := decoder{data: data, pos: headerSize}

	if flags&hasNamespace != 0 {
		msg.Namespace = d.str("namespace")
	}
	if flags&hasSet != 0 {
		msg.Set = d.str("set")
	}
	if flags&hasDigest != 0 {
		msg.Digest = d.bytes("digest", false)
	}
	if flags&hasUserKey != 0 {
		msg.UserKey = d.bytes("user key", false)
	}
	if flags&hasBins != 0 {
		msg.Bins = d.bytes("bins", false)
	}
	if flags&hasBinNames != 0 {
		n := d.u32("bin name count")
		if d.err == nil && int(n) > len(data)-d.pos {
			d.err = fmt.Errorf("data too short for %d bin names", n)
		}
		if d.err == nil {
			msg.BinNames = make([]string, 0, n)
			for i := uint32(0); i < n && d.err == nil; i++ {
				msg.BinNames = append(msg.BinNames, d.str("bin name"))
			}
		}
	}
	msg.SendKey = flags&hasSendKey != 0
	if flags&hasIndexName != 0 {
		msg.IndexName = d.str("index name")
	}
	if flags&hasBinName != 0 {
		msg.BinName = d.str("bin name")
	}
	if flags&hasIndexType != 0 {
		msg.IndexType = d.str("index type")
	}
	msg.HasFilter = flags&hasFilter != 0
	if flags&hasBegin != 0 {
		msg.Begin = int64(d.u64("begin"))
	}
	if flags&hasEnd != 0 {
		msg.End = int64(d.u64("end"))
	}
	if flags&hasCursorID != 0 {
		msg.CursorID = d.str("cursor id")
	}
	if flags&hasMaxRecords != 0 {
		msg.MaxRecords = d.u32("max records")
	}
	if flags&hasRecords != 0 {
		n := d.u32("record count")
		if d.err == nil && int(n) > len(data)-d.pos {
			d.err = fmt.Errorf("data too short for %d records", n)
		}
		if d.err == nil {
			msg.Records = make([]common.WireRecord, 0, n)
			for i := uint32(0); i < n && d.err == nil; i++ {
				msg.Records = append(msg.Records, common.WireRecord{
					Namespace:  d.str("record namespace"),
					Set:        d.str("record set"),
					Digest:     d.bytes("record digest", true),
					UserKey:    d.bytes("record user key", true),
					Bins:       d.bytes("record bins", true),
					Generation: d.u32("record generation"),
				})
			}
		}
	}
	if flags&hasTimeout != 0 {
		msg.TimeoutMs = d.u64("timeout")
	}
	msg.Ok = flags&hasOk != 0
	if flags&hasCode != 0 {
		msg.Code = d.u64("code")
	}
	if flags&hasErr != 0 {
		msg.Err = d.str("error")
	}
	if flags&hasMeta != 0 {
		msg.Meta = d.bytes("meta", false)
	}

	return d.err
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// sizeBytes calculates the total size needed for serialization
func (b binarySerializerImpl) sizeBytes(msg common.Message) int {
	size := headerSize

	str := func(s string) int { return 4 + len(s) }

	if msg.Namespace != "" {
		size += str(msg.Namespace)
	}
	if msg.Set != "" {
		size += str(msg.Set)
	}
	if msg.Digest != nil {
		size += 4 + len(msg.Digest)
	}
	if msg.UserKey != nil {
		size += 4 + len(msg.UserKey)
	}
	if msg.Bins != nil {
		size += 4 + len(msg.Bins)
	}
	if msg.BinNames != nil {
		size += 4
		for _, name := range msg.BinNames {
			size += str(name)
		}
	}
	if msg.IndexName != "" {
		size += str(msg.IndexName)
	}
	if msg.BinName != "" {
		size += str(msg.BinName)
	}
	if msg.IndexType != "" {
		size += str(msg.IndexType)
	}
	if msg.Begin != 0 {
		size += 8
	}
	if msg.End != 0 {
		size += 8
	}
	if msg.CursorID != "" {
		size += str(msg.CursorID)
	}
	if msg.MaxRecords != 0 {
		size += 4
	}
	if msg.Records != nil {
		size += 4
		for _, r := range msg.Records {
			size += str(r.Namespace) + str(r.Set) + 4 + len(r.Digest) + 4 + len(r.UserKey) + 4 + len(r.Bins) + 4
		}
	}
	if msg.TimeoutMs != 0 {
		size += 8
	}
	if msg.Code != 0 {
		size += 8
	}
	if msg.Err != "" {
		size += str(msg.Err)
	}
	if msg.Meta != nil {
		size += 4 + len(msg.Meta)
	}
	return size
}

// encoder appends big endian fields to buf
type encoder struct {
	buf []byte
}

func (e *encoder) u32(v uint32) { e.buf = binary.BigEndian.AppendUint32(e.buf, v) }
func (e *encoder) u64(v uint64) { e.buf = binary.BigEndian.AppendUint64(e.buf, v) }

func (e *encoder) str(s string) {
	e.u32(uint32(len(s)))
	e.buf = append(e.buf, s...)
}

func (e *encoder) bytes(b []byte) {
	e.u32(uint32(len(b)))
	e.buf = append(e.buf, b...)
}

// decoder reads big endian fields. The first error sticks and turns all
// further reads into no-ops.
type decoder struct {
	data []byte
	pos  int
	err  error
}

func (d *decoder) need(n int, field string) bool {
	if d.err != nil {
		return false
	}
	if n < 0 || d.pos+n > len(d.data) {
		d.err = fmt.Errorf("data too short for %s", field)
		return false
	}
	return true
}

func (d *decoder) u32(field string) uint32 {
	if !d.need(4, field) {
		return 0
	}
	v := binary.BigEndian.Uint32(d.data[d.pos : d.pos+4])
	d.pos += 4
	return v
}

func (d *decoder) u64(field string) uint64 {
	if !d.need(8, field) {
		return 0
	}
	v := binary.BigEndian.Uint64(d.data[d.pos : d.pos+8])
	d.pos += 8
	return v
}

func (d *decoder) str(field string) string {
	n := int(d.u32(field + " length"))
	if !d.need(n, field) {
		return ""
	}
	s := string(d.data[d.pos : d.pos+n])
	d.pos += n
	return s
}

// bytes copies a length prefixed byte slice. An empty slice is returned as
// nil if emptyAsNil is set, as non-nil empty slice otherwise.
func (d *decoder) bytes(field string, emptyAsNil bool) []byte {
	n := int(d.u32(field + " length"))
	if !d.need(n, field) {
		return nil
	}
	if n == 0 && emptyAsNil {
		return nil
	}
	b := make([]byte, n)
	copy(b, d.data[d.pos:d.pos+n])
	d.pos += n
	return b
}
