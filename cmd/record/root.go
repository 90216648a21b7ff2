package record

import (
	"github.com/ValentinKolb/ixKV/cmd/util"
	"github.com/ValentinKolb/ixKV/lib/store"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	recordStore store.IStore

	// RecordCommands represents the record command group
	RecordCommands = &cobra.Command{
		Use:                "record",
		Short:              "Write, read and delete single records",
		PersistentPreRunE:  setupStore,
		PersistentPostRunE: closeStore,
	}
)

func init() {
	cobra.OnInitialize(util.InitConfig)

	util.SetupStoreFlags(RecordCommands)
	util.SetupRecordFlags(RecordCommands)

	RecordCommands.AddCommand(putCmd)
	RecordCommands.AddCommand(getCmd)
	RecordCommands.AddCommand(delCmd)

	putCmd.Flags().Bool("send-key", true, util.WrapString("Store the user key next to the record digest"))
}

// setupStore opens the configured store backend
func setupStore(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}
	var err error
	recordStore, err = util.OpenStore()
	return err
}

func closeStore(_ *cobra.Command, _ []string) error {
	if recordStore == nil {
		return nil
	}
	return recordStore.Close()
}

func newKey(userKey string) (*store.Key, error) {
	return store.NewKey(viper.GetString("namespace"), viper.GetString("set"), util.ParseValue(userKey))
}
