package query

import (
	"fmt"

	"github.com/ValentinKolb/ixKV/cmd/util"
	"github.com/ValentinKolb/ixKV/lib/store"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	queryStore store.IStore

	// QueryCommands represents the query command group
	QueryCommands = &cobra.Command{
		Use:   "query",
		Short: "Query records",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := util.BindCommandFlags(cmd); err != nil {
				return err
			}
			var err error
			queryStore, err = util.OpenStore()
			return err
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			if queryStore == nil {
				return nil
			}
			return queryStore.Close()
		},
	}

	rangeCmd = &cobra.Command{
		Use:   "range [bin] [begin] [end]",
		Short: "Prints all records whose bin value lies in [begin, end]",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			var begin, end int64
			if _, err := fmt.Sscan(args[1], &begin); err != nil {
				return fmt.Errorf("begin must be a number: %w", err)
			}
			if _, err := fmt.Sscan(args[2], &end); err != nil {
				return fmt.Errorf("end must be a number: %w", err)
			}
			stmt := store.NewStatement(viper.GetString("namespace"), viper.GetString("set"), viper.GetStringSlice("bins")...)
			stmt.IndexName = viper.GetString("index")
			if err := stmt.SetFilter(store.NewRangeFilter(args[0], begin, end)); err != nil {
				return err
			}
			return printQuery(stmt)
		},
	}
	scanCmd = &cobra.Command{
		Use:   "scan",
		Short: "Prints all records of the set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printQuery(store.NewStatement(viper.GetString("namespace"), viper.GetString("set"), viper.GetStringSlice("bins")...))
		},
	}
)

func init() {
	cobra.OnInitialize(util.InitConfig)

	util.SetupStoreFlags(QueryCommands)
	util.SetupRecordFlags(QueryCommands)
	QueryCommands.PersistentFlags().StringSlice("bins", nil, util.WrapString("Bins to return (all if empty)"))
	rangeCmd.Flags().String("index", "", util.WrapString("Name of the index to use (resolved by bin if empty)"))

	QueryCommands.AddCommand(rangeCmd)
	QueryCommands.AddCommand(scanCmd)
}

func printQuery(stmt *store.Statement) error {
	policy := store.NewQueryPolicy()
	policy.Policy = *util.Policy()

	rs, err := queryStore.Query(policy, stmt)
	if err != nil {
		return err
	}
	defer func() { _ = rs.Close() }()

	n := 0
	for rs.Next() {
		n++
		fmt.Printf("record %d (generation %d)\n", n, rs.Record().Generation)
		util.PrintRecord(rs.Record())
	}
	if err := rs.Err(); err != nil {
		return err
	}
	fmt.Printf("%d records\n", n)
	return nil
}
