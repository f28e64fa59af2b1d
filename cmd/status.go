package main

import (
	"github.com/spf13/cobra"

	"github.com/forecastlab/verdict-cli/internal/cost"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print accumulated validation totals from the cost log",
	RunE: func(cmd *cobra.Command, args []string) error {
		tracker := cost.NewTracker(cost.Rates{
			SearchPlanMonthly:    cfg.Pricing.SearchPlanMonthly,
			SearchQueriesPerPlan: cfg.Pricing.SearchQueriesPerPlan,
			LLMInputPerMTok:      cfg.Pricing.LLMInputPerMTok,
			LLMOutputPerMTok:     cfg.Pricing.LLMOutputPerMTok,
		})
		entries, err := cost.ReadLog(cfg.CostLog.Path)
		if err != nil {
			return err
		}
		tracker.LoadHistorical(entries)

		snap := tracker.Snapshot()
		h := snap.Historical
		cmd.Printf("Validation totals (since %s)\n", h.StartedAt.Format("2006-01-02 15:04:05 MST"))
		cmd.Printf("  validated:        %d\n", h.Validated)
		for outcome, n := range h.Outcomes {
			cmd.Printf("    %-22s %d\n", outcome+":", n)
		}
		cmd.Printf("  search API calls: %d\n", h.SearchCalls)
		cmd.Printf("  tokens in/out:    %d / %d\n", h.InputTokens, h.OutputTokens)
		cmd.Printf("  total cost:       $%.4f (search $%.4f, LLM $%.4f)\n",
			h.TotalCostUSD, h.SearchCostUSD, h.LLMCostUSD)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
