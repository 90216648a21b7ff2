package astore

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ValentinKolb/ixKV/lib/db"
	"github.com/ValentinKolb/ixKV/lib/store"
	"github.com/ValentinKolb/ixKV/lib/value"
	as "github.com/aerospike/aerospike-client-go/v7"
)

// --------------------------------------------------------------------------
// Keys and records
// --------------------------------------------------------------------------

// toAerospikeKey converts a store key. Keys with a user key let the client
// compute the digest; keys that are only known by digest are addressed by it.
func toAerospikeKey(key *store.Key) (*as.Key, error) {
	if key.UserKey != nil && !key.UserKey.IsEmpty() {
		k, err := as.NewKey(key.Namespace, key.SetName, key.UserKey.Object())
		if err != nil {
			return nil, store.NewError(store.RetCParameterError, err.Error())
		}
		return k, nil
	}
	k, err := as.NewKeyWithDigest(key.Namespace, key.SetName, nil, key.Digest[:])
	if err != nil {
		return nil, store.NewError(store.RetCParameterError, err.Error())
	}
	return k, nil
}

// fromAerospikeKey converts a key returned by the server. The user key is
// only present if it was stored with SendKey. A user key that is present but
// null is kept as an Empty value so it stays distinct from a missing one.
func fromAerospikeKey(k *as.Key) (*store.Key, error) {
	d, err := db.DigestFromBytes(k.Digest())
	if err != nil {
		return nil, store.NewError(store.RetCInternalError, err.Error())
	}
	key := store.NewKeyWithDigest(k.Namespace(), k.SetName(), d)
	if uk := k.Value(); uk != nil {
		v, err := value.FromObject(uk.GetObject())
		if err != nil {
			return nil, store.Errorf(store.RetCInternalError, "user key of %s: %v", d, err)
		}
		key.UserKey = &v
	}
	return key, nil
}

// toBinMap converts store bins into an Aerospike bin map. Empty values map
// to nil, which removes the bin on the server.
func toBinMap(bins []*store.Bin) as.BinMap {
	m := make(as.BinMap, len(bins))
	for _, b := range bins {
		if b != nil {
			m[b.Name] = b.Value.Object()
		}
	}
	return m
}

func fromAerospikeRecord(r *as.Record) (*store.Record, error) {
	key, err := fromAerospikeKey(r.Key)
	if err != nil {
		return nil, err
	}
	bins := make(value.BinMap, len(r.Bins))
	for name, obj := range r.Bins {
		v, err := value.FromObject(obj)
		if err != nil {
			return nil, store.Errorf(store.RetCInternalError, "bin %s of %s: %v", name, key, err)
		}
		bins[name] = v
	}
	return &store.Record{Key: key, Bins: bins, Generation: r.Generation}, nil
}

// --------------------------------------------------------------------------
// Info responses
// --------------------------------------------------------------------------

// parseInfoPairs splits "k1=v1<sep>k2=v2" into a map.
func parseInfoPairs(s string, sep string) map[string]string {
	m := make(map[string]string)
	for _, part := range strings.Split(s, sep) {
		k, v, ok := strings.Cut(part, "=")
		if ok {
			m[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
	}
	return m
}

// parseSIndexList parses the answer to the "sindex-list:ns=<ns>" info command.
// Each index is a ':' separated list of key=value pairs, indexes are separated by ';'.
func parseSIndexList(resp string) []db.IndexInfo {
	var infos []db.IndexInfo
	for _, entry := range strings.Split(resp, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		m := parseInfoPairs(entry, ":")
		name := m["indexname"]
		if name == "" {
			name = m["indexName"]
		}
		if name == "" {
			continue
		}
		set := m["set"]
		if strings.EqualFold(set, "null") {
			set = ""
		}
		info := db.IndexInfo{
			Def: db.IndexDef{
				Namespace: m["ns"],
				Set:       set,
				Name:      name,
				Bin:       m["bin"],
				Type:      db.IndexType(strings.ToUpper(m["type"])),
			},
			State: db.IndexStateBuilding,
		}
		if m["state"] == "RW" {
			info.State = db.IndexStateReady
		}
		if n, err := strconv.Atoi(m["entries"]); err == nil {
			info.Entries = n
		}
		infos = append(infos, info)
	}
	return infos
}

// parseObjectCount reads the record count from a "namespace/<ns>" info answer.
func parseObjectCount(resp string) (int, error) {
	m := parseInfoPairs(resp, ";")
	for _, k := range []string{"master_objects", "objects"} {
		if s, ok := m[k]; ok {
			n, err := strconv.Atoi(s)
			if err != nil {
				return 0, fmt.Errorf("invalid %s count %q", k, s)
			}
			return n, nil
		}
	}
	return 0, fmt.Errorf("no object count in namespace info")
}
