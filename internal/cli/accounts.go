package cli

import (
	"fmt"
	"text/tabwriter"

	"signal-executor/pkg/config"

	"github.com/spf13/cobra"
)

func newAccountsCmd() *cobra.Command {
	var (
		file         string
		requireCreds bool
	)
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Validate the account file and list its accounts",
		Long: `Parse the account file the same way serve does, opening sealed credentials
with the configured keys, and print one row per account. Secrets are never printed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			accounts, err := config.LoadAccounts(file, config.LoadOptions{RequireCredentials: requireCreds})
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tENABLED\tTESTNET\tRISK%\tLEVERAGE\tSL\tTP\tLOCK\tFLOOR\tMONITOR\tCREDENTIALS")
			for _, a := range accounts {
				creds := "missing"
				if a.APIKey != "" && a.APISecret != "" {
					creds = "set"
				}
				fmt.Fprintf(w, "%s\t%t\t%t\t%g\t%d\t%g\t%g\t%g\t%g\t%s\t%s\n",
					a.ID, a.Enabled, a.IsTestnet, a.RiskPercentage, a.Leverage,
					a.InitialStopLossPercentage, a.InitialTakeProfitPercentage,
					a.ProfitLockThreshold, a.BalanceThreshold, monitorLabel(a.MonitoringActive, a.MonitorInterval.String()), creds)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d account(s) OK\n", len(accounts))
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "accounts.yaml", "path to the YAML account file")
	cmd.Flags().BoolVar(&requireCreds, "require-credentials", false, "fail when an account has no API key or secret")
	return cmd
}

func monitorLabel(active bool, interval string) string {
	if !active {
		return "off"
	}
	return "every " + interval
}
