package astore

import (
	"errors"
	"testing"
	"time"

	"github.com/ValentinKolb/ixKV/lib/db"
	"github.com/ValentinKolb/ixKV/lib/store"
	"github.com/ValentinKolb/ixKV/lib/value"
	"github.com/ValentinKolb/ixKV/lib/workflow"
	as "github.com/aerospike/aerospike-client-go/v7"
	"github.com/aerospike/aerospike-client-go/v7/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyConversion(t *testing.T) {
	key, err := store.NewKey("test", "demo", "skkey1")
	require.NoError(t, err)

	ak, err := toAerospikeKey(key)
	require.NoError(t, err)
	assert.Equal(t, "test", ak.Namespace())
	assert.Equal(t, "demo", ak.SetName())

	want, aerr := as.NewKey("test", "demo", "skkey1")
	require.Nil(t, aerr)
	assert.Equal(t, want.Digest(), ak.Digest())

	// the server side digest is the identity of records read back
	back, err := fromAerospikeKey(ak)
	require.NoError(t, err)
	assert.Equal(t, ak.Digest(), back.Digest[:])
	require.NotNil(t, back.UserKey)
	assert.Equal(t, value.StringValue("skkey1"), *back.UserKey)

	// digest only keys keep the digest
	byDigest := store.NewKeyWithDigest("test", "demo", back.Digest)
	ak2, err := toAerospikeKey(byDigest)
	require.NoError(t, err)
	assert.Equal(t, ak.Digest(), ak2.Digest())
}

// queryStore serves Query from a fixed list of records. The other methods are
// not used by the range query and panic through the nil IStore.
type queryStore struct {
	store.IStore
	records []*store.Record
}

func (s *queryStore) Query(*store.QueryPolicy, *store.Statement) (store.IRecordset, error) {
	return store.NewRecordset(1, func(yield func(*store.Record) bool) error {
		for _, r := range s.records {
			if !yield(r) {
				return nil
			}
		}
		return nil
	}, nil), nil
}

func TestNullUserKeyStaysPresent(t *testing.T) {
	withKey, aerr := as.NewKey("test", "demo", "skkey1")
	require.Nil(t, aerr)
	nullKey, aerr := as.NewKeyWithDigest("test", "demo", as.NewNullValue(), withKey.Digest())
	require.Nil(t, aerr)

	key, err := fromAerospikeKey(nullKey)
	require.NoError(t, err)
	require.NotNil(t, key.UserKey, "a null user key is not a missing one")
	assert.True(t, key.UserKey.IsEmpty())

	// a null user key is still addressed by its digest
	back, err := toAerospikeKey(key)
	require.NoError(t, err)
	assert.Equal(t, withKey.Digest(), back.Digest())

	nullRec, err := fromAerospikeRecord(&as.Record{Key: nullKey, Bins: as.BinMap{"skbin": 2}})
	require.NoError(t, err)
	presentRec, err := fromAerospikeRecord(&as.Record{Key: withKey, Bins: as.BinMap{"skbin": 3}})
	require.NoError(t, err)

	s := &queryStore{records: []*store.Record{nullRec, presentRec}}
	summary, err := workflow.NewRangeQueryExecutor(s).RangeQuery("test", "demo", "skindex", "skbin", 1, 5)
	require.NoError(t, err)
	require.Len(t, summary.Records, 2)
	assert.Equal(t, workflow.KeyEmpty, summary.Records[0].Status)
	assert.Equal(t, int64(2), summary.Records[0].Value)
	assert.Equal(t, workflow.KeyPresent, summary.Records[1].Status)
	assert.Equal(t, value.StringValue("skkey1"), summary.Records[1].Identifier)
}

func TestPolicyTimeouts(t *testing.T) {
	s := &storeImpl{timeout: 10 * time.Second}

	// without a policy the store default applies
	assert.Equal(t, 10*time.Second, s.timeoutFor(nil))
	assert.Equal(t, 10*time.Second, s.basePolicy(nil).TotalTimeout)

	// a zero timeout means no client deadline at all
	assert.Equal(t, time.Duration(0), s.timeoutFor(&store.Policy{Timeout: 0}))
	ip := s.indexPolicy(&store.Policy{Timeout: 0})
	assert.Equal(t, time.Duration(0), ip.TotalTimeout)
	assert.Equal(t, time.Duration(0), ip.SocketTimeout)

	wp := s.writePolicy(&store.WritePolicy{Policy: store.Policy{Timeout: 2 * time.Second}, SendKey: true})
	assert.Equal(t, 2*time.Second, wp.TotalTimeout)
	assert.LessOrEqual(t, wp.SocketTimeout, 2*time.Second)
	assert.True(t, wp.SendKey)

	bp := s.basePolicy(&store.Policy{Timeout: 0})
	assert.Equal(t, time.Duration(0), bp.TotalTimeout)
	assert.Equal(t, time.Duration(0), bp.SocketTimeout)
}

func TestRecordConversion(t *testing.T) {
	ak, aerr := as.NewKey("test", "demo", 7)
	require.Nil(t, aerr)

	rec, err := fromAerospikeRecord(&as.Record{
		Key:        ak,
		Bins:       as.BinMap{"skbin": 42, "name": "seven", "raw": []byte{1, 2}},
		Generation: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, uint32(3), rec.Generation)
	assert.Equal(t, value.IntegerValue(42), rec.Bins["skbin"])
	assert.Equal(t, value.StringValue("seven"), rec.Bins["name"])
	assert.Equal(t, value.BytesValue([]byte{1, 2}), rec.Bins["raw"])

	n, err := rec.Int("skbin")
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)

	_, err = fromAerospikeRecord(&as.Record{Key: ak, Bins: as.BinMap{"f": 1.5}})
	assert.True(t, store.IsCode(err, store.RetCInternalError))
}

func TestToBinMap(t *testing.T) {
	m := toBinMap([]*store.Bin{
		store.NewBin("a", 1),
		store.NewBin("b", "x"),
		store.NewBin("gone", nil),
		nil,
	})
	assert.Len(t, m, 3)
	assert.Equal(t, int64(1), m["a"])
	assert.Equal(t, "x", m["b"])
	v, ok := m["gone"]
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestRetCodeMapping(t *testing.T) {
	tests := []struct {
		rc   types.ResultCode
		want store.RetCode
	}{
		{types.OK, store.RetCSuccess},
		{types.KEY_NOT_FOUND_ERROR, store.RetCRecordNotFound},
		{types.INDEX_FOUND, store.RetCIndexAlreadyExists},
		{types.INDEX_NOTFOUND, store.RetCIndexNotFound},
		{types.INDEX_NOTREADABLE, store.RetCIndexNotReadable},
		{types.TIMEOUT, store.RetCTimeout},
		{types.PARAMETER_ERROR, store.RetCParameterError},
		{types.UNSUPPORTED_FEATURE, store.RetCUnsupportedOperation},
		{types.SERVER_ERROR, store.RetCInternalError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, retCodeOf(tt.rc), "result code %d", tt.rc)
	}
}

func TestFromAerospikeError(t *testing.T) {
	assert.NoError(t, fromAerospikeError(nil))

	err := fromAerospikeError(&as.AerospikeError{ResultCode: types.INDEX_FOUND})
	assert.True(t, store.IsCode(err, store.RetCIndexAlreadyExists))

	se := store.NewError(store.RetCTimeout, "slow")
	assert.Same(t, se, fromAerospikeError(se))

	err = fromAerospikeError(errors.New("boom"))
	assert.Equal(t, store.RetCInternalError, store.CodeOf(err))
}

func TestParseSIndexList(t *testing.T) {
	resp := "ns=test:indexname=skindex:set=demo:bin=skbin:type=numeric:indextype=default:context=NULL:state=RW;" +
		"ns=test:indexname=other:set=NULL:bin=age:type=numeric:indextype=default:context=NULL:state=WO;"

	infos := parseSIndexList(resp)
	require.Len(t, infos, 2)

	assert.Equal(t, db.IndexDef{Namespace: "test", Set: "demo", Name: "skindex", Bin: "skbin", Type: db.IndexTypeNumeric}, infos[0].Def)
	assert.Equal(t, db.IndexStateReady, infos[0].State)
	assert.Equal(t, "", infos[1].Def.Set)
	assert.Equal(t, db.IndexStateBuilding, infos[1].State)

	assert.Empty(t, parseSIndexList(""))

	info, ok := findIndex(infos, func(d db.IndexDef) bool { return d.Bin == "age" })
	assert.True(t, ok)
	assert.Equal(t, "other", info.Def.Name)
	_, ok = findIndex(infos, func(d db.IndexDef) bool { return d.Name == "missing" })
	assert.False(t, ok)
}

func TestParseObjectCount(t *testing.T) {
	n, err := parseObjectCount("ns_cluster_size=1;objects=20;master_objects=10;prole_objects=10")
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	n, err = parseObjectCount("objects=5;tombstones=0")
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	_, err = parseObjectCount("tombstones=0")
	assert.Error(t, err)
	_, err = parseObjectCount("objects=x")
	assert.Error(t, err)
}
