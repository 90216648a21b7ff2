package index

import (
	"fmt"

	"github.com/ValentinKolb/ixKV/cmd/util"
	"github.com/ValentinKolb/ixKV/lib/store"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	indexStore store.IStore

	// IndexCommands represents the index command group
	IndexCommands = &cobra.Command{
		Use:   "index",
		Short: "Create, drop and inspect numeric secondary indexes",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := util.BindCommandFlags(cmd); err != nil {
				return err
			}
			var err error
			indexStore, err = util.OpenStore()
			return err
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			if indexStore == nil {
				return nil
			}
			return indexStore.Close()
		},
	}

	createCmd = &cobra.Command{
		Use:   "create [name] [bin]",
		Short: "Creates a numeric index on a bin",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			task, err := indexStore.CreateIndex(util.Policy(), viper.GetString("namespace"), viper.GetString("set"), args[0], args[1], store.NUMERIC)
			if err != nil {
				return err
			}
			if !viper.GetBool("wait") {
				fmt.Printf("index %s requested\n", args[0])
				return nil
			}
			if err := task.WaitUntilComplete(); err != nil {
				return err
			}
			fmt.Printf("index %s ready\n", args[0])
			return nil
		},
	}
	dropCmd = &cobra.Command{
		Use:   "drop [name]",
		Short: "Drops an index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := indexStore.DropIndex(util.Policy(), viper.GetString("namespace"), viper.GetString("set"), args[0]); err != nil {
				return err
			}
			fmt.Printf("index %s dropped\n", args[0])
			return nil
		},
	}
	statusCmd = &cobra.Command{
		Use:   "status [name]",
		Short: "Prints the build state of an index (all indexes if no name is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := indexStore.GetDBInfo()
			if err != nil {
				return err
			}
			found := false
			for _, idx := range info.Indexes {
				if len(args) == 1 && idx.Def.Name != args[0] {
					continue
				}
				found = true
				fmt.Printf("%s.%s: set=%q bin=%s type=%s state=%s entries=%d\n",
					idx.Def.Namespace, idx.Def.Name, idx.Def.Set, idx.Def.Bin, idx.Def.Type, idx.State, idx.Entries)
			}
			if len(args) == 1 && !found {
				return store.Errorf(store.RetCIndexNotFound, "index %s not found", args[0])
			}
			return nil
		},
	}
)

func init() {
	cobra.OnInitialize(util.InitConfig)

	util.SetupStoreFlags(IndexCommands)
	util.SetupRecordFlags(IndexCommands)

	createCmd.Flags().Bool("wait", true, util.WrapString("Wait until the index is built"))

	IndexCommands.AddCommand(createCmd)
	IndexCommands.AddCommand(dropCmd)
	IndexCommands.AddCommand(statusCmd)
}
