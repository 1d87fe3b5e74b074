package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nao1215/pageaudit/internal/scoring"
)

// NewRulesCmd creates the rules command.
func NewRulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "List the scoring rules and their effective deductions",
		Long: `Rules prints every scoring rule in evaluation order with its dimension,
severity and the points it deducts under the current configuration, so
the effect of deductions and weights in .pageaudit.yaml can be checked
before auditing.

A rule marked "yes" in the REC column also produces a recommendation
when it fails.

Examples:
  pageaudit rules
  pageaudit rules --config staging.yaml`,
		Args: cobra.NoArgs,
		RunE: runRulesCmd,
	}
}

// runRulesCmd executes the rules command.
func runRulesCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := setupLogger(cmd, cfg)

	policy, err := cfg.Policy()
	if err != nil {
		return err
	}
	engine, err := scoring.New(scoring.WithPolicy(policy), scoring.WithLogger(logger))
	if err != nil {
		return err
	}

	writeRules(cmd, engine)
	return nil
}

func writeRules(cmd *cobra.Command, engine *scoring.Engine) {
	out := cmd.OutOrStdout()
	policy := engine.Policy()

	fmt.Fprintf(out, "%-28s %-10s %-8s %6s  %s\n", "RULE", "DIMENSION", "SEVERITY", "POINTS", "REC")
	for _, rule := range engine.Rules() {
		rec := "no"
		if rule.Action != "" && rule.Severity.AtLeast(policy.RecommendationThreshold) {
			rec = "yes"
		}
		fmt.Fprintf(out, "%-28s %-10s %-8s %6d  %s\n",
			rule.ID, rule.Type, rule.Severity, policy.Deduction(rule.ID), rec)
	}

	w := policy.Weights
	fmt.Fprintf(out, "\nOverall weights: seo %d, content %d, structure %d\n", w.SEO, w.Content, w.Structure)
	fmt.Fprintf(out, "Recommendations from severity %s and above\n", policy.RecommendationThreshold)
}
