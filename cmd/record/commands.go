package record

import (
	"fmt"

	"github.com/ValentinKolb/ixKV/cmd/util"
	"github.com/ValentinKolb/ixKV/lib/store"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	putCmd = &cobra.Command{
		Use:   "put [key] [bin=value]...",
		Short: "Writes the bins of a record. Integer values are stored as integers, everything else as string",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := newKey(args[0])
			if err != nil {
				return err
			}
			bins, err := util.ParseBins(args[1:])
			if err != nil {
				return err
			}
			policy := store.NewWritePolicy()
			policy.Policy = *util.Policy()
			policy.SendKey = viper.GetBool("send-key")

			if err := recordStore.Put(policy, key, bins...); err != nil {
				return err
			}
			fmt.Printf("put %s successfully\n", key)
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [key] [bin]...",
		Short: "Reads a record, optionally only the given bins",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := newKey(args[0])
			if err != nil {
				return err
			}
			rec, err := recordStore.Get(util.Policy(), key, args[1:]...)
			if store.IsCode(err, store.RetCRecordNotFound) {
				fmt.Printf("key=%s, found=false\n", args[0])
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, found=true, generation=%d\n", args[0], rec.Generation)
			util.PrintRecord(rec)
			return nil
		},
	}
	delCmd = &cobra.Command{
		Use:   "del [key]",
		Short: "Deletes a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := newKey(args[0])
			if err != nil {
				return err
			}
			policy := store.NewWritePolicy()
			policy.Policy = *util.Policy()
			existed, err := recordStore.Delete(policy, key)
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, existed=%t\n", args[0], existed)
			return nil
		},
	}
)
