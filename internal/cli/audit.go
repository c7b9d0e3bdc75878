package cli

import (
	"fmt"
	"strconv"

	"stockadvisor/internal/audit"

	"github.com/spf13/cobra"
)

func newAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect guardrail decisions",
	}
	list := &cobra.Command{
		Use:   "list",
		Short: "List recent guardrail evaluations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if !cfg.Audit.Enabled {
				return fmt.Errorf("audit store is disabled (audit.enabled=false)")
			}
			store, err := audit.NewStore(cfg.Audit.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			ticker, _ := cmd.Flags().GetString("ticker")
			triggered, _ := cmd.Flags().GetBool("triggered")
			limit, _ := cmd.Flags().GetInt("limit")
			records, err := store.Recent(cmd.Context(), audit.Query{Ticker: ticker, TriggeredOnly: triggered, Limit: limit})
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(w, mutedStyle.Render("no guardrail evaluations recorded"))
				return nil
			}
			rows := make([][]string, 0, len(records))
			for _, r := range records {
				beta := "n/a"
				if r.Beta != nil {
					beta = strconv.FormatFloat(*r.Beta, 'f', 2, 64)
				}
				fired := "-"
				if r.Triggered {
					fired = warnStyle.Render("override")
				}
				ts := r.EvaluatedAt
				rows = append(rows, []string{
					formatTime(&ts), r.Ticker, string(r.RiskAppetite), beta,
					string(r.ProposedAction), string(r.EffectiveAction), fired,
				})
			}
			table(w, []string{"TIME", "TICKER", "RISK", "BETA", "PROPOSED", "EFFECTIVE", "GUARDRAIL"}, rows)
			return nil
		},
	}
	list.Flags().String("ticker", "", "Only show this ticker")
	list.Flags().Bool("triggered", false, "Only show overridden recommendations")
	list.Flags().Int("limit", 20, "Maximum rows")
	cmd.AddCommand(list)
	return cmd
}
