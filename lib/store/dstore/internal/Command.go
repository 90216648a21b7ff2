package internal

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/ValentinKolb/ixKV/lib/db"
	"github.com/ValentinKolb/ixKV/lib/value"
)

// CommandType defines the possible operations for the state machine.
type CommandType uint8

const (
	CommandTPut         CommandType = iota // Insert a record or merge its bins.
	CommandTDelete                         // Delete a record.
	CommandTCreateIndex                    // Register a secondary index and start its build.
	CommandTDropIndex                      // Remove a secondary index.
)

func (ct CommandType) String() string {
	switch ct {
	case CommandTPut:
		return "Put"
	case CommandTDelete:
		return "Delete"
	case CommandTCreateIndex:
		return "CreateIndex"
	case CommandTDropIndex:
		return "DropIndex"
	default:
		return fmt.Sprintf("Unknown(%d)", ct)
	}
}

// ToDBFeature converts a CommandType to the corresponding db.Feature.
// This can be used for checking if the database supports a certain operation.
func (ct CommandType) ToDBFeature() (db.Feature, error) {
	switch ct {
	case CommandTPut:
		return db.FeaturePut, nil
	case CommandTDelete:
		return db.FeatureDelete, nil
	case CommandTCreateIndex, CommandTDropIndex:
		return db.FeatureIndex, nil
	default:
		return 0, fmt.Errorf("unknown command type %d", ct)
	}
}

// Command represents a command to be executed by the state machine (a single entry in the raft log)
type Command struct {
	Type      CommandType
	Namespace string
	Set       string
	Digest    db.Digest
	UserKey   []byte // binary encoded value.Value, empty if the key is not retained
	Bins      []byte // value.EncodeBins
	IndexName string
	BinName   string
	IndexType db.IndexType
}

// fixed part: Type + UserKeyLen + Digest
const fixedSize = 1 + 4 + db.DigestSize

func (command *Command) strings() []string {
	return []string{command.Namespace, command.Set, command.IndexName, command.BinName, string(command.IndexType)}
}

// SizeBytes returns the exact number of bytes needed to serialize this command
func (command *Command) SizeBytes() int {
	size := fixedSize + len(command.UserKey) + len(command.Bins)
	for _, s := range command.strings() {
		size += 2 + len(s)
	}
	return size
}

// Serialize serializes a command into a byte array with the format:
// 1 byte for operation type,
// 20 bytes for the record digest,
// 5 strings (namespace, set, index name, bin name, index type), each with a 2 byte length prefix (big endian),
// 4 bytes for the user key length (big endian),
// N bytes for the user key,
// N bytes for the encoded bins (rest of the buffer)
func (command *Command) Serialize() []byte {
	result := make([]byte, command.SizeBytes())

	result[0] = byte(command.Type)
	copy(result[1:1+db.DigestSize], command.Digest[:])
	off := 1 + db.DigestSize

	for _, s := range command.strings() {
		if len(s) > math.MaxUint16 {
			s = s[:math.MaxUint16]
		}
		binary.BigEndian.PutUint16(result[off:off+2], uint16(len(s)))
		off += 2
		off += copy(result[off:], s)
	}

	binary.BigEndian.PutUint32(result[off:off+4], uint32(len(command.UserKey)))
	off += 4
	off += copy(result[off:], command.UserKey)

	copy(result[off:], command.Bins)
	return result[:off+len(command.Bins)]
}

// Deserialize extracts all Command fields from a byte array.
func (command *Command) Deserialize(data []byte) error {
	if len(data) < fixedSize {
		return fmt.Errorf("data too short for command")
	}

	command.Type = CommandType(data[0])
	copy(command.Digest[:], data[1:1+db.DigestSize])
	off := 1 + db.DigestSize

	var fields [5]string
	for i := range fields {
		if len(data) < off+2 {
			return fmt.Errorf("data too short for string field %d", i)
		}
		n := int(binary.BigEndian.Uint16(data[off : off+2]))
		off += 2
		if len(data) < off+n {
			return fmt.Errorf("data too short for string field %d of length %d", i, n)
		}
		fields[i] = string(data[off : off+n])
		off += n
	}
	command.Namespace = fields[0]
	command.Set = fields[1]
	command.IndexName = fields[2]
	command.BinName = fields[3]
	command.IndexType = db.IndexType(fields[4])

	if len(data) < off+4 {
		return fmt.Errorf("data too short for user key length")
	}
	keyLen := int(binary.BigEndian.Uint32(data[off : off+4]))
	off += 4
	if len(data) < off+keyLen {
		return fmt.Errorf("data too short for user key of length %d", keyLen)
	}
	command.UserKey = nil
	if keyLen > 0 {
		command.UserKey = append([]byte(nil), data[off:off+keyLen]...)
	}
	off += keyLen

	command.Bins = nil
	if len(data) > off {
		command.Bins = append([]byte(nil), data[off:]...)
	}
	return nil
}

// --------------------------------------------------------------------------
// Conversion helpers
// --------------------------------------------------------------------------

// NewPutCommand creates a Put command from an entry.
func NewPutCommand(e db.Entry) Command {
	cmd := Command{
		Type:      CommandTPut,
		Namespace: e.Namespace,
		Set:       e.Set,
		Digest:    e.Digest,
		Bins:      value.EncodeBins(e.Bins),
	}
	if e.UserKey != nil {
		cmd.UserKey, _ = e.UserKey.MarshalBinary()
	}
	return cmd
}

// Entry decodes the record carried by a Put command.
func (command *Command) Entry() (db.Entry, error) {
	e := db.Entry{
		Namespace: command.Namespace,
		Set:       command.Set,
		Digest:    command.Digest,
	}
	if len(command.UserKey) > 0 {
		var k value.Value
		if err := k.UnmarshalBinary(command.UserKey); err != nil {
			return e, fmt.Errorf("decode user key: %w", err)
		}
		e.UserKey = &k
	}
	bins, err := value.DecodeBins(command.Bins)
	if err != nil {
		return e, fmt.Errorf("decode bins: %w", err)
	}
	e.Bins = bins
	return e, nil
}

// IndexDef returns the index definition carried by a CreateIndex command.
func (command *Command) IndexDef() db.IndexDef {
	return db.IndexDef{
		Namespace: command.Namespace,
		Set:       command.Set,
		Name:      command.IndexName,
		Bin:       command.BinName,
		Type:      command.IndexType,
	}
}
