package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"stockadvisor/internal/advisor"
	"stockadvisor/internal/app"
	"stockadvisor/internal/types"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"
)

func newAdviseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "advise [TICKER]",
		Short: "Run one evaluation locally and print the recommendation",
		Long: `Run the full evaluation (news, fundamentals, recommendation, guardrail)
without starting the HTTP service. Missing options are asked interactively.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ticker := ""
			if len(args) == 1 {
				ticker = args[0]
			}
			risk, _ := cmd.Flags().GetString("risk")
			horizon, _ := cmd.Flags().GetString("horizon")
			experience, _ := cmd.Flags().GetString("experience")
			if err := askMissing(&ticker, &risk, &horizon); err != nil {
				return err
			}
			req, err := types.NewRequest(ticker, risk, horizon, experience)
			if err != nil {
				return err
			}

			a, err := app.NewAppBuilder(cfg).Build(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Advisor().Evaluate(cmd.Context(), req)
			if err != nil {
				var runErr *advisor.RunError
				if errors.As(err, &runErr) {
					return fmt.Errorf("run %s failed at %s: %w", runErr.RunID, runErr.Node, runErr.Err)
				}
				return err
			}
			printResult(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().String("risk", "", "Risk appetite: Low, Medium or High")
	cmd.Flags().String("horizon", "", "Time horizon: Short-term, Medium-term or Long-term")
	cmd.Flags().String("experience", "", "Investment experience: Beginner, Intermediate or Expert")
	return cmd
}

func askMissing(ticker, risk, horizon *string) error {
	var qs []*survey.Question
	if strings.TrimSpace(*ticker) == "" {
		qs = append(qs, &survey.Question{
			Name:   "ticker",
			Prompt: &survey.Input{Message: "Ticker symbol (e.g. AAPL):"},
			Validate: func(val interface{}) error {
				if s, _ := val.(string); strings.TrimSpace(s) == "" {
					return fmt.Errorf("ticker symbol cannot be empty")
				}
				return nil
			},
		})
	}
	if strings.TrimSpace(*risk) == "" {
		qs = append(qs, &survey.Question{
			Name: "risk",
			Prompt: &survey.Select{
				Message: "Risk appetite:",
				Options: []string{string(types.RiskLow), string(types.RiskMedium), string(types.RiskHigh)},
				Default: string(types.RiskMedium),
			},
		})
	}
	if strings.TrimSpace(*horizon) == "" {
		qs = append(qs, &survey.Question{
			Name: "horizon",
			Prompt: &survey.Select{
				Message: "Time horizon:",
				Options: []string{string(types.HorizonShort), string(types.HorizonMedium), string(types.HorizonLong)},
				Default: string(types.HorizonMedium),
			},
		})
	}
	if len(qs) == 0 {
		return nil
	}
	answers := struct {
		Ticker  string `survey:"ticker"`
		Risk    string `survey:"risk"`
		Horizon string `survey:"horizon"`
	}{}
	if err := survey.Ask(qs, &answers); err != nil {
		return err
	}
	if answers.Ticker != "" {
		*ticker = answers.Ticker
	}
	if answers.Risk != "" {
		*risk = answers.Risk
	}
	if answers.Horizon != "" {
		*horizon = answers.Horizon
	}
	return nil
}

func printResult(w io.Writer, res advisor.Result) {
	printTitle(w, fmt.Sprintf("%s  (run %s)", res.Ticker, res.RunID))
	if res.Override != nil {
		printBox(w,
			"suggested: "+string(res.Action),
			warnStyle.Render("guardrail override: "+string(res.Override.Action)),
			res.Override.Reasoning,
		)
	} else {
		printBox(w, okStyle.Render("suggested: "+string(res.Action)), res.Reasoning)
	}
	for _, s := range res.Sources {
		title := s.Title
		if title == "" {
			title = s.URL
		}
		fmt.Fprintf(w, "  • %s %s\n", title, mutedStyle.Render(s.URL))
	}
}
