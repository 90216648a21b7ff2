package util

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ValentinKolb/ixKV/lib/store"
	"github.com/spf13/cobra"
)

// SetupRecordFlags adds the namespace and set flags to a command
func SetupRecordFlags(cmd *cobra.Command) {
	key := "namespace"
	cmd.PersistentFlags().String(key, "test", WrapString("Namespace of the records"))

	key = "set"
	cmd.PersistentFlags().String(key, "demo", WrapString("Set of the records"))
}

// ParseValue returns s as int64 if it is an integer, as string otherwise
func ParseValue(s string) interface{} {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	return s
}

// ParseBins parses bin=value arguments
func ParseBins(args []string) ([]*store.Bin, error) {
	bins := make([]*store.Bin, 0, len(args))
	for _, arg := range args {
		name, val, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid bin %q (expected bin=value)", arg)
		}
		bins = append(bins, store.NewBin(name, ParseValue(val)))
	}
	return bins, nil
}

// PrintRecord prints the user key and the bins of a record sorted by name
func PrintRecord(rec *store.Record) {
	if rec.Key != nil && rec.Key.UserKey != nil {
		fmt.Printf("  %-15s: %s\n", "(key)", rec.Key.UserKey)
	} else if rec.Key != nil {
		fmt.Printf("  %-15s: %s\n", "(digest)", rec.Key.Digest)
	}
	names := make([]string, 0, len(rec.Bins))
	for name := range rec.Bins {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %-15s: %s\n", name, rec.Bins[name])
	}
}
