package client_test

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/ixKV/lib/store"
	"github.com/ValentinKolb/ixKV/lib/value"
	"github.com/ValentinKolb/ixKV/rpc/client"
	"github.com/ValentinKolb/ixKV/rpc/common"
	"github.com/ValentinKolb/ixKV/rpc/serializer"
	"github.com/ValentinKolb/ixKV/rpc/server"
	"github.com/ValentinKolb/ixKV/rpc/transport/unix"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testShard = 1

// startServer starts an RPC server with one local shard on a unix socket and
// returns the socket path.
func startServer(t *testing.T) string {
	t.Helper()

	socket := filepath.Join(t.TempDir(), "ixkv.sock")
	srv := server.NewRPCServer(common.ServerConfig{
		Shards:        []common.ServerShard{{ShardID: testShard, Type: common.ShardTypeLocalIStore}},
		TimeoutSecond: 5,
		Transport:     common.ServerTransportConfig{Endpoint: socket, WorkersPerConn: 4},
		LogLevel:      "error",
	}, unix.NewUnixServerTransport(0, 4), serializer.NewBinarySerializer())

	go func() {
		if err := srv.Serve(); err != nil {
			t.Logf("server stopped: %v", err)
		}
	}()
	t.Cleanup(srv.Close)

	require.Eventually(t, func() bool {
		_, err := os.Stat(socket)
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)
	return socket
}

func newClient(t *testing.T, socket string, shard uint64, pageSize uint32) store.IStore {
	t.Helper()
	s, err := client.NewRPCStore(shard, common.ClientConfig{
		TimeoutSecond: 5,
		QueryPageSize: pageSize,
		Transport:     common.ClientTransportConfig{Endpoints: []string{socket}, RetryCount: 1},
	}, unix.NewUnixClientTransport(), serializer.NewBinarySerializer())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func putRecords(t *testing.T, s store.IStore, n int) {
	t.Helper()
	policy := store.NewWritePolicy()
	policy.SendKey = true
	for i := 1; i <= n; i++ {
		key, err := store.NewKey("test", "demo", fmt.Sprintf("skkey%d", i))
		require.NoError(t, err)
		require.NoError(t, s.Put(policy, key, store.NewBin("skbin", i), store.NewBin("name", fmt.Sprintf("n%d", i))))
	}
}

func drain(t *testing.T, rs store.IRecordset) []*store.Record {
	t.Helper()
	defer rs.Close()
	var records []*store.Record
	for rs.Next() {
		records = append(records, rs.Record())
	}
	require.NoError(t, rs.Err())
	return records
}

func TestRecordRoundTrip(t *testing.T) {
	s := newClient(t, startServer(t), testShard, 0)

	key, err := store.NewKey("test", "demo", "skkey1")
	require.NoError(t, err)

	policy := store.NewWritePolicy()
	policy.SendKey = true
	require.NoError(t, s.Put(policy, key, store.NewBin("skbin", 7), store.NewBin("name", "alice")))

	rec, err := s.Get(nil, key)
	require.NoError(t, err)
	assert.Equal(t, key.Digest, rec.Key.Digest)
	require.NotNil(t, rec.Key.UserKey)
	assert.True(t, rec.Key.UserKey.Equal(value.StringValue("skkey1")))
	v, err := rec.Int("skbin")
	require.NoError(t, err)
	assert.Equal(t, int64(7), v)

	// projection
	rec, err = s.Get(nil, key, "name")
	require.NoError(t, err)
	assert.Len(t, rec.Bins, 1)
	assert.Contains(t, rec.Bins, "name")

	existed, err := s.Delete(nil, key)
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = s.Delete(nil, key)
	require.NoError(t, err)
	assert.False(t, existed)

	_, err = s.Get(nil, key)
	assert.True(t, store.IsCode(err, store.RetCRecordNotFound), "got %v", err)
}

func TestKeyNotRetainedWithoutSendKey(t *testing.T) {
	s := newClient(t, startServer(t), testShard, 0)

	key, err := store.NewKey("test", "demo", 42)
	require.NoError(t, err)
	require.NoError(t, s.Put(nil, key, store.NewBin("skbin", 1)))

	rec, err := s.Get(nil, key)
	require.NoError(t, err)
	assert.Nil(t, rec.Key.UserKey)
	assert.Equal(t, key.Digest, rec.Key.Digest)
}

func TestIndexAndQuery(t *testing.T) {
	s := newClient(t, startServer(t), testShard, 3)
	putRecords(t, s, 10)

	task, err := s.CreateIndex(nil, "test", "demo", "skindex", "skbin", store.NUMERIC)
	require.NoError(t, err)
	require.NoError(t, task.WaitUntilComplete())

	// a second index with the same name is rejected
	task, err = s.CreateIndex(nil, "test", "demo", "skindex", "skbin", store.NUMERIC)
	if err == nil {
		err = task.WaitUntilComplete()
	}
	assert.True(t, store.IsCode(err, store.RetCIndexAlreadyExists), "got %v", err)

	stmt := store.NewStatement("test", "demo", "skbin")
	require.NoError(t, stmt.SetFilter(store.NewRangeFilter("skbin", 2, 5)))
	rs, err := s.Query(nil, stmt)
	require.NoError(t, err)
	records := drain(t, rs)
	require.Len(t, records, 4)
	for _, rec := range records {
		v, err := rec.Int("skbin")
		require.NoError(t, err)
		assert.GreaterOrEqual(t, v, int64(2))
		assert.LessOrEqual(t, v, int64(5))
		assert.NotNil(t, rec.Key.UserKey)
		assert.NotContains(t, rec.Bins, "name")
	}

	// a scan pages through all records
	rs, err = s.Query(nil, store.NewStatement("test", "demo"))
	require.NoError(t, err)
	assert.Len(t, drain(t, rs), 10)

	info, err := s.GetDBInfo()
	require.NoError(t, err)
	assert.Equal(t, 10, info.Records)
	require.Len(t, info.Indexes, 1)
	assert.Equal(t, "skindex", info.Indexes[0].Def.Name)

	require.NoError(t, s.DropIndex(nil, "test", "demo", "skindex"))
	_, err = s.Query(nil, stmt)
	assert.True(t, store.IsCode(err, store.RetCIndexNotFound), "got %v", err)
}

func TestQueryEarlyClose(t *testing.T) {
	s := newClient(t, startServer(t), testShard, 2)
	putRecords(t, s, 10)

	rs, err := s.Query(nil, store.NewStatement("test", "demo"))
	require.NoError(t, err)
	require.True(t, rs.Next())
	require.True(t, rs.Next())

	require.NoError(t, rs.Close())
	assert.False(t, rs.Next())
	assert.NoError(t, rs.Close())
}

func TestUnknownShard(t *testing.T) {
	s := newClient(t, startServer(t), 99, 0)

	key, err := store.NewKey("test", "demo", "skkey1")
	require.NoError(t, err)
	err = s.Put(nil, key, store.NewBin("skbin", 1))
	assert.True(t, store.IsCode(err, store.RetCInvalidOperation), "got %v", err)
}

func TestWriteStats(t *testing.T) {
	s := newClient(t, startServer(t), testShard, 0)
	_, err := s.GetDBInfo()
	require.NoError(t, err)

	var sb strings.Builder
	client.WriteStats(&sb)
	assert.Contains(t, sb.String(), "rpc.getDBInfo")
}
