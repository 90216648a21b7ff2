package common

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ValentinKolb/ixKV/lib/db"
	"github.com/ValentinKolb/ixKV/lib/store"
	"github.com/ValentinKolb/ixKV/lib/value"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses.
// Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// Addressing
	Namespace string `json:"ns,omitempty"`     // Used for: all record, index and query operations
	Set       string `json:"set,omitempty"`    // Used for: all record, index and query operations
	Digest    []byte `json:"digest,omitempty"` // Used for: Put, Get, Delete
	UserKey   []byte `json:"key,omitempty"`    // Used for: Put, Get, Delete (binary encoded value)

	// Record payload
	Bins     []byte   `json:"bins,omitempty"`      // Used for: Put (value.EncodeBins)
	BinNames []string `json:"bin_names,omitempty"` // Used for: Get, QueryOpen
	SendKey  bool     `json:"send_key,omitempty"`  // Used for: Put

	// Index and filter
	IndexName string `json:"index,omitempty"`      // Used for: CreateIndex, IndexStatus, DropIndex, QueryOpen
	BinName   string `json:"bin,omitempty"`        // Used for: CreateIndex, QueryOpen (filter bin)
	IndexType string `json:"index_type,omitempty"` // Used for: CreateIndex
	HasFilter bool   `json:"filter,omitempty"`     // Used for: QueryOpen
	Begin     int64  `json:"begin,omitempty"`      // Used for: QueryOpen
	End       int64  `json:"end,omitempty"`        // Used for: QueryOpen

	// Cursor
	CursorID   string       `json:"cursor,omitempty"`      // Used for: QueryOpen (response), QueryNext, QueryClose
	MaxRecords uint32       `json:"max_records,omitempty"` // Used for: QueryOpen, QueryNext
	Records    []WireRecord `json:"records,omitempty"`     // Used for: Get, QueryOpen, QueryNext (responses)

	// Policy
	TimeoutMs uint64 `json:"timeout_ms,omitempty"` // Used for: all store operations

	// Response only fields
	Ok   bool   `json:"ok,omitempty"`   // Used for: Delete (record existed), QueryOpen/QueryNext (cursor exhausted)
	Code uint64 `json:"code,omitempty"` // store.RetCode of a failed operation
	Err  string `json:"err,omitempty"`  // Empty if no error, otherwise contains the error message

	// Meta information
	Meta []byte `json:"meta,omitempty"` // JSON payload: db.IndexInfo (IndexStatus), db.DatabaseInfo (GetDBInfo)
}

// WireRecord is a record as transmitted in responses.
type WireRecord struct {
	Namespace  string `json:"ns"`
	Set        string `json:"set"`
	Digest     []byte `json:"digest"`
	UserKey    []byte `json:"key,omitempty"` // empty if the store did not retain the key
	Bins       []byte `json:"bins"`
	Generation uint32 `json:"gen"`
}

// --------------------------------------------------------------------------
// Conversion helpers
// --------------------------------------------------------------------------

// EncodeKey fills the addressing fields of msg from key.
func (msg *Message) EncodeKey(key *store.Key) {
	msg.Namespace = key.Namespace
	msg.Set = key.SetName
	msg.Digest = append([]byte(nil), key.Digest[:]...)
	msg.UserKey = nil
	if key.UserKey != nil {
		msg.UserKey, _ = key.UserKey.MarshalBinary()
	}
}

// DecodeKey builds a store.Key from the addressing fields of msg.
func (msg *Message) DecodeKey() (*store.Key, error) {
	digest, err := db.DigestFromBytes(msg.Digest)
	if err != nil {
		return nil, store.NewError(store.RetCParameterError, err.Error())
	}
	key := store.NewKeyWithDigest(msg.Namespace, msg.Set, digest)
	if len(msg.UserKey) > 0 {
		var v value.Value
		if err := v.UnmarshalBinary(msg.UserKey); err != nil {
			return nil, store.Errorf(store.RetCParameterError, "decode user key: %v", err)
		}
		key.UserKey = &v
	}
	return key, nil
}

// EncodeBins encodes bins into msg.Bins.
func (msg *Message) EncodeBins(bins []*store.Bin) {
	m := make(value.BinMap, len(bins))
	for _, b := range bins {
		if b != nil {
			m[b.Name] = b.Value
		}
	}
	msg.Bins = value.EncodeBins(m)
}

// DecodeBins decodes msg.Bins.
func (msg *Message) DecodeBins() ([]*store.Bin, error) {
	m, err := value.DecodeBins(msg.Bins)
	if err != nil {
		return nil, store.Errorf(store.RetCParameterError, "decode bins: %v", err)
	}
	bins := make([]*store.Bin, 0, len(m))
	for name, v := range m {
		bins = append(bins, &store.Bin{Name: name, Value: v})
	}
	return bins, nil
}

// Statement builds a store.Statement from a QueryOpen request.
func (msg *Message) Statement() *store.Statement {
	stmt := store.NewStatement(msg.Namespace, msg.Set, msg.BinNames...)
	stmt.IndexName = msg.IndexName
	if msg.HasFilter {
		stmt.Filter = store.NewRangeFilter(msg.BinName, msg.Begin, msg.End)
	}
	return stmt
}

// RecordToWire converts a store record.
func RecordToWire(r *store.Record) WireRecord {
	w := WireRecord{
		Bins:       value.EncodeBins(r.Bins),
		Generation: r.Generation,
	}
	if r.Key != nil {
		w.Namespace = r.Key.Namespace
		w.Set = r.Key.SetName
		w.Digest = append([]byte(nil), r.Key.Digest[:]...)
		if r.Key.UserKey != nil {
			w.UserKey, _ = r.Key.UserKey.MarshalBinary()
		}
	}
	return w
}

// Record converts a wire record back into a store record.
func (w WireRecord) Record() (*store.Record, error) {
	digest, err := db.DigestFromBytes(w.Digest)
	if err != nil {
		return nil, err
	}
	key := store.NewKeyWithDigest(w.Namespace, w.Set, digest)
	if len(w.UserKey) > 0 {
		var v value.Value
		if err := v.UnmarshalBinary(w.UserKey); err != nil {
			return nil, fmt.Errorf("decode user key: %w", err)
		}
		key.UserKey = &v
	}
	bins, err := value.DecodeBins(w.Bins)
	if err != nil {
		return nil, fmt.Errorf("decode bins: %w", err)
	}
	return &store.Record{Key: key, Bins: bins, Generation: w.Generation}, nil
}

// SetErr stores err in the response. The return code of a *store.Error is kept.
func (msg *Message) SetErr(err error) *Message {
	if err != nil {
		msg.Code = uint64(store.CodeOf(err))
		msg.Err = err.Error()
		var se *store.Error
		if errors.As(err, &se) {
			msg.Err = se.Msg
		}
	}
	return msg
}

// ResponseErr returns the error carried by a response, as *store.Error.
func (msg *Message) ResponseErr() error {
	if msg.MsgType != MsgTError && msg.Err == "" && msg.Code == 0 {
		return nil
	}
	code := store.RetCode(msg.Code)
	if code == store.RetCSuccess {
		code = store.RetCInternalError
	}
	return store.NewError(code, msg.Err)
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewPutRequest creates a new Put request
func NewPutRequest(key *store.Key, sendKey bool, bins []*store.Bin) *Message {
	msg := &Message{MsgType: MsgTPut, SendKey: sendKey}
	msg.EncodeKey(key)
	msg.EncodeBins(bins)
	return msg
}

// NewGetRequest creates a new Get request
func NewGetRequest(key *store.Key, binNames []string) *Message {
	msg := &Message{MsgType: MsgTGet, BinNames: binNames}
	msg.EncodeKey(key)
	return msg
}

// NewDeleteRequest creates a new Delete request
func NewDeleteRequest(key *store.Key) *Message {
	msg := &Message{MsgType: MsgTDelete}
	msg.EncodeKey(key)
	return msg
}

// NewCreateIndexRequest creates a new CreateIndex request
func NewCreateIndexRequest(namespace, set, indexName, binName string, indexType store.IndexType) *Message {
	return &Message{
		MsgType:   MsgTCreateIndex,
		Namespace: namespace,
		Set:       set,
		IndexName: indexName,
		BinName:   binName,
		IndexType: string(indexType),
	}
}

// NewIndexStatusRequest creates a new IndexStatus request
func NewIndexStatusRequest(namespace, indexName string) *Message {
	return &Message{
		MsgType:   MsgTIndexStatus,
		Namespace: namespace,
		IndexName: indexName,
	}
}

// NewDropIndexRequest creates a new DropIndex request
func NewDropIndexRequest(namespace, set, indexName string) *Message {
	return &Message{
		MsgType:   MsgTDropIndex,
		Namespace: namespace,
		Set:       set,
		IndexName: indexName,
	}
}

// NewQueryOpenRequest creates a new QueryOpen request
func NewQueryOpenRequest(stmt *store.Statement, pageSize uint32) *Message {
	msg := &Message{
		MsgType:    MsgTQueryOpen,
		Namespace:  stmt.Namespace,
		Set:        stmt.SetName,
		IndexName:  stmt.IndexName,
		BinNames:   stmt.BinNames,
		MaxRecords: pageSize,
	}
	if stmt.Filter != nil {
		msg.HasFilter = true
		msg.BinName = stmt.Filter.Bin
		msg.Begin = stmt.Filter.Begin
		msg.End = stmt.Filter.End
	}
	return msg
}

// NewQueryNextRequest creates a new QueryNext request
func NewQueryNextRequest(cursorID string, pageSize uint32) *Message {
	return &Message{MsgType: MsgTQueryNext, CursorID: cursorID, MaxRecords: pageSize}
}

// NewQueryCloseRequest creates a new QueryClose request
func NewQueryCloseRequest(cursorID string) *Message {
	return &Message{MsgType: MsgTQueryClose, CursorID: cursorID}
}

// NewGetDBInfoRequest creates a new GetDBInfo request
func NewGetDBInfoRequest() *Message {
	return &Message{MsgType: MsgTGetDBInfo}
}

// NewResponse creates a response of the given type carrying err (nil on success)
func NewResponse(msgType MessageType, err error) *Message {
	return (&Message{MsgType: msgType}).SetErr(err)
}

// NewErrorResponse creates a new Error response
func NewErrorResponse(code store.RetCode, err string) *Message {
	return &Message{
		MsgType: MsgTError,
		Code:    uint64(code),
		Err:     err,
	}
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

var messageTypeNames = map[MessageType]string{
	MsgTSuccess:     "success",
	MsgTError:       "error",
	MsgTPut:         "put",
	MsgTGet:         "get",
	MsgTDelete:      "delete",
	MsgTCreateIndex: "createIndex",
	MsgTIndexStatus: "indexStatus",
	MsgTDropIndex:   "dropIndex",
	MsgTQueryOpen:   "queryOpen",
	MsgTQueryNext:   "queryNext",
	MsgTQueryClose:  "queryClose",
	MsgTGetDBInfo:   "getDBInfo",
}

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	if s, ok := messageTypeNames[t]; ok {
		return s
	}
	return "unknown"
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
// This allows MessageType to be deserialized from a string in JSON.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for mt, name := range messageTypeNames {
		if name == s {
			*t = mt
			return nil
		}
	}
	return fmt.Errorf("unknown message type: %s", s)
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	// General message types

	MsgTUnknown MessageType = iota
	MsgTSuccess             // Indicates a successful operation
	MsgTError               // Indicates an error occurred

	// Record operations

	MsgTPut    // Write the bins of a record
	MsgTGet    // Read a record by key
	MsgTDelete // Delete a record

	// Index operations

	MsgTCreateIndex // Start building a secondary index
	MsgTIndexStatus // Report the build state of an index
	MsgTDropIndex   // Remove a secondary index

	// Query operations (server side cursors)

	MsgTQueryOpen  // Run a statement and return the first page
	MsgTQueryNext  // Return the next page of a cursor
	MsgTQueryClose // Release a cursor

	// Store metadata

	MsgTGetDBInfo // Return the db.DatabaseInfo of the store
)
