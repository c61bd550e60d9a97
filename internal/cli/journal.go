package cli

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"signal-executor/pkg/db"

	"github.com/spf13/cobra"
)

func newJournalCmd() *cobra.Command {
	var (
		path    string
		account string
		limit   int
	)
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Verify the SQLite journal and show what it holds",
		Long: `Check that the journal has every table, print row counts and, with
--account, the most recent trades of that account.

Example:
  signal-executor journal --db ./data/journal.db --account main`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(path); err != nil {
				return fmt.Errorf("journal %s: %w", path, err)
			}
			database, err := db.New(path)
			if err != nil {
				return err
			}
			defer database.Close()

			out := cmd.OutOrStdout()
			missing, err := db.VerifySchema(database)
			if err != nil {
				return err
			}
			if len(missing) > 0 {
				return fmt.Errorf("journal %s is missing tables: %s", path, strings.Join(missing, ", "))
			}
			counts, err := db.TableCounts(cmd.Context(), database)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "journal %s: schema OK\n", path)
			fmt.Fprintf(out, "  trade_records:  %d\n", counts["trade_records"])
			fmt.Fprintf(out, "  profit_locks:   %d\n", counts["profit_locks"])
			fmt.Fprintf(out, "  account_events: %d\n", counts["account_events"])

			if account == "" {
				return nil
			}
			trades, err := database.ListTrades(cmd.Context(), account, "", limit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tOUTCOME\tSYMBOL\tSIDE\tSIZE\tENTRY\tTP\tSL\tORDER\tERROR")
			for _, t := range trades {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					t.CreatedAt.UTC().Format("2006-01-02 15:04:05"), t.Outcome, t.Symbol, t.Side,
					t.Size, t.EntryPrice, t.TakeProfit, t.StopLoss, t.OrderID, t.Error)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&path, "db", "./data/journal.db", "path to the SQLite journal")
	cmd.Flags().StringVar(&account, "account", "", "list recent trades of this account")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum trades to list")
	return cmd
}
