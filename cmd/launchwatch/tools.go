package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/liamashdown/launchwatch/internal/confidence"
	"github.com/liamashdown/launchwatch/internal/config"
	"github.com/liamashdown/launchwatch/internal/pipeline"
	"github.com/liamashdown/launchwatch/internal/queue"
	"github.com/liamashdown/launchwatch/internal/quota"
	"github.com/liamashdown/launchwatch/internal/scoring"
	"github.com/liamashdown/launchwatch/internal/token"
	"github.com/spf13/cobra"
)

var (
	scoreChain   string
	scoreAddress string
	scoreAge     time.Duration
	scoreFile    string
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Print the hourly alert plan for the current configuration",
	RunE:  runPlan,
}

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score one token from a metrics document",
	Long: `Score one token from a JSON metrics document in the enrichment format.
Fields missing from the document take their documented defaults.

Example usage:
  launchwatch score --chain sol --address Mint1 --file metrics.json
  cat metrics.json | launchwatch score --chain eth --address 0xabc --age 10m`,
	RunE: runScore,
}

func init() {
	scoreCmd.Flags().StringVar(&scoreChain, "chain", "solana", "Chain of the token")
	scoreCmd.Flags().StringVar(&scoreAddress, "address", "", "Token address")
	scoreCmd.Flags().DurationVar(&scoreAge, "age", 0, "Time since launch")
	scoreCmd.Flags().StringVar(&scoreFile, "file", "-", "Metrics document, - for stdin")
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	return writePlan(cmd.OutOrStdout(), cfg.Quota)
}

func writePlan(out io.Writer, qc quota.Config) error {
	plan := quota.BuildPlan(qc)

	chains := make([]token.Chain, 0, len(qc.ChainSplit))
	for c := range qc.ChainSplit {
		chains = append(chains, c)
	}
	sort.Slice(chains, func(i, j int) bool { return chains[i] < chains[j] })

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprint(w, "HOUR\tBUDGET")
	for _, c := range chains {
		fmt.Fprintf(w, "\t%s", c)
	}
	fmt.Fprintln(w)

	for h, budget := range plan {
		fmt.Fprintf(w, "%02d\t%d", h, budget)
		for _, c := range chains {
			fmt.Fprintf(w, "\t%d", quota.ChainHourQuota(budget, qc.ChainSplit[c]))
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "TOTAL\t%d", qc.DailyTarget)
	expected := quota.ChainExpected(qc.DailyTarget, qc.ChainSplit)
	for _, c := range chains {
		fmt.Fprintf(w, "\t%d", expected[c])
	}
	fmt.Fprintln(w)
	return w.Flush()
}

type scoreReport struct {
	TokenID    token.ID          `json:"token_id"`
	Score      scoring.Result    `json:"score"`
	Confidence confidence.Report `json:"confidence"`
	Action     confidence.Action `json:"action"`
	Tier       queue.Tier        `json:"tier"`
}

func runScore(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	chain, err := token.ParseChain(scoreChain)
	if err != nil {
		return err
	}

	var in io.Reader = cmd.InOrStdin()
	if scoreFile != "-" {
		f, err := os.Open(scoreFile)
		if err != nil {
			return fmt.Errorf("open metrics document: %w", err)
		}
		defer f.Close()
		in = f
	}

	var partial token.Partial
	if err := json.NewDecoder(in).Decode(&partial); err != nil {
		return fmt.Errorf("decode metrics document: %w", err)
	}

	scorer, err := scoring.New(cfg.Scoring)
	if err != nil {
		return err
	}
	conf, err := confidence.New(cfg.Confidence)
	if err != nil {
		return err
	}

	now := time.Now()
	ev := token.DiscoveryEvent{Chain: chain, Address: scoreAddress, LaunchTime: now.Add(-scoreAge)}
	evaluator := pipeline.NewEvaluator(staticEnricher{partial}, scorer, conf, nil, pipeline.Thresholds{
		HighTier:   cfg.HighTierScore,
		MediumTier: cfg.MediumTierScore,
	}, 0, log)

	m := evaluator.Metrics(context.Background(), ev, now)
	res, report, action := evaluator.Assess(m, now)

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(scoreReport{
		TokenID:    m.ID(),
		Score:      res,
		Confidence: report,
		Action:     action,
		Tier:       queue.TierFor(res.Total, cfg.HighTierScore, cfg.MediumTierScore),
	})
}

type staticEnricher struct {
	partial token.Partial
}

func (s staticEnricher) Enrich(context.Context, token.DiscoveryEvent) (token.Partial, error) {
	return s.partial, nil
}
