package run

import (
	"fmt"

	"github.com/ValentinKolb/ixKV/cmd/util"
	"github.com/ValentinKolb/ixKV/lib/workflow"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// RunCmd runs the index workflow against the configured store
var RunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the secondary index workflow",
	Long: `Creates a numeric index, writes records with sequential bin values,
runs a range query over the index, verifies the number of matches and
drops the index again.`,
	Args: cobra.NoArgs,
	RunE: run,
}

func init() {
	cobra.OnInitialize(util.InitConfig)

	util.SetupStoreFlags(RunCmd)
	util.SetupRecordFlags(RunCmd)

	def := workflow.DefaultConfig()

	key := "bin"
	RunCmd.Flags().String(key, def.Bin, util.WrapString("Bin holding the indexed integer values"))

	key = "index"
	RunCmd.Flags().String(key, def.IndexName, util.WrapString("Name of the secondary index"))

	key = "key-prefix"
	RunCmd.Flags().String(key, def.KeyPrefix, util.WrapString("Prefix of the user keys (prefix1..prefixN)"))

	key = "count"
	RunCmd.Flags().Int(key, def.Count, util.WrapString("Number of records to write, record i gets the bin value i"))

	key = "begin"
	RunCmd.Flags().Int64(key, def.Begin, util.WrapString("Lower bound of the range query (inclusive)"))

	key = "end"
	RunCmd.Flags().Int64(key, def.End, util.WrapString("Upper bound of the range query (inclusive)"))

	key = "expected"
	RunCmd.Flags().Int(key, def.Expected, util.WrapString("Expected number of matches"))

	key = "retain-key"
	RunCmd.Flags().Bool(key, def.RetainKey, util.WrapString("Store the user keys with the records"))

	key = "teardown"
	RunCmd.Flags().String(key, def.Teardown.String(), util.WrapString("When to drop the index (always, on-success)"))
}

// configFromFlags builds the workflow configuration from viper
func configFromFlags() (workflow.Config, error) {
	teardown, err := workflow.ParseTeardownPolicy(viper.GetString("teardown"))
	if err != nil {
		return workflow.Config{}, err
	}
	return workflow.Config{
		Namespace: viper.GetString("namespace"),
		Set:       viper.GetString("set"),
		Bin:       viper.GetString("bin"),
		IndexName: viper.GetString("index"),
		KeyPrefix: viper.GetString("key-prefix"),
		Count:     viper.GetInt("count"),
		Begin:     viper.GetInt64("begin"),
		End:       viper.GetInt64("end"),
		Expected:  viper.GetInt("expected"),
		RetainKey: viper.GetBool("retain-key"),
		Teardown:  teardown,
	}, nil
}

func run(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}
	cfg, err := configFromFlags()
	if err != nil {
		return err
	}

	s, err := util.OpenStore()
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	w, err := workflow.New(s, cfg)
	if err != nil {
		return err
	}

	report, runErr := w.Run()
	printReport(report)
	if runErr != nil {
		return runErr
	}
	if !report.OK() {
		return fmt.Errorf("verification failed: expected %d records, received %d (%d without user key)",
			report.Verification.Expected, report.Verification.Received, report.Verification.Anomalies)
	}
	return nil
}

func printReport(r *workflow.Report) {
	if r == nil {
		return
	}
	fmt.Printf("run %s (%s)\n", r.RunID, r.Duration)
	fmt.Printf("  %-15s: %s\n", "index", r.Index.Outcome)
	if r.Summary != nil {
		for _, rec := range r.Summary.Records {
			fmt.Printf("  %s.%s key=%s (%s) value=%d\n", rec.Namespace, rec.Set, rec.Identifier, rec.Status, rec.Value)
		}
		fmt.Printf("  %-15s: %d (expected %d)\n", "matched", r.Verification.Received, r.Verification.Expected)
	}
	if r.TeardownRan {
		if r.TeardownErr != nil {
			fmt.Printf("  %-15s: %v\n", "teardown", r.TeardownErr)
		} else {
			fmt.Printf("  %-15s: index dropped\n", "teardown")
		}
	}
}
