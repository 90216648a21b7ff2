package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/ixKV/cmd/index"
	"github.com/ValentinKolb/ixKV/cmd/query"
	"github.com/ValentinKolb/ixKV/cmd/record"
	"github.com/ValentinKolb/ixKV/cmd/run"
	"github.com/ValentinKolb/ixKV/cmd/serve"
	"github.com/ValentinKolb/ixKV/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "ixkv",
		Short: "record store with numeric secondary indexes",
		Long: fmt.Sprintf(`ixKV (v%s)

A record store with numeric secondary indexes and range queries written in Go.
Shards are served over RPC, either in memory or replicated with RAFT consensus.
The client commands can also talk to an Aerospike cluster directly.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of ixKV",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("ixKV v%s\n", Version)
		},
	}
)

func init() {
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(record.RecordCommands)
	RootCmd.AddCommand(index.IndexCommands)
	RootCmd.AddCommand(query.QueryCommands)
	RootCmd.AddCommand(run.RunCmd)
	RootCmd.AddCommand(versionCmd)

	key := "serializer"
	RootCmd.PersistentFlags().String(key, "binary", util.WrapString("serializer to use (json, gob, binary)"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "http", util.WrapString("transport to use (http, tcp, unix)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
