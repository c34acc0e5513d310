package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fundpilot/outreach/internal/clock/system"
	"github.com/fundpilot/outreach/internal/crawler"
	collyfetcher "github.com/fundpilot/outreach/internal/fetcher/colly"
	"github.com/fundpilot/outreach/internal/id/uuid"
	"github.com/fundpilot/outreach/internal/outreach"
	"github.com/fundpilot/outreach/internal/pipeline"
	"github.com/fundpilot/outreach/internal/qualify"
	"github.com/fundpilot/outreach/internal/task"
)

func newRunCmd() *cobra.Command {
	var (
		mode      string
		workspace string
		targets   []string
		initiator string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute the outreach pipeline over a set of targets",
		Long: `Crawls and qualifies each selected target, gates on the
qualification threshold and QA, and queues submission requests for
targets that pass both gates.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			runMode := outreach.RunMode(mode)
			if runMode != outreach.ModeDryRun && runMode != outreach.ModeProduction {
				return fmt.Errorf("invalid mode %q (want dry_run or production)", mode)
			}

			ctx := cmd.Context()
			e, err := buildEnv(ctx)
			if err != nil {
				return err
			}
			defer e.close()

			runner := buildRunner(e)
			run, err := runner.CreateRun(ctx, initiator, workspace, targets, runMode)
			if err != nil {
				return fmt.Errorf("create run: %w", err)
			}

			e.logger.Info("run finished",
				zap.String("run_id", run.ID),
				zap.Int("total", run.Counters.TotalFirms),
				zap.Int("success", run.Counters.SuccessCount),
				zap.Int("failed", run.Counters.FailedCount),
			)
			fmt.Printf("run %s: %d/%d targets queued for submission\n",
				run.ID, run.Counters.SuccessCount, run.Counters.TotalFirms)
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", string(outreach.ModeDryRun), "run mode (dry_run or production)")
	cmd.Flags().StringVar(&workspace, "workspace", "", "workspace to draw targets from")
	cmd.Flags().StringSliceVar(&targets, "target", nil, "target IDs (default: all in workspace)")
	cmd.Flags().StringVar(&initiator, "initiator", "cli", "who started the run")
	return cmd
}

// buildRunner wires the crawl/qualify/task stack for one run.
func buildRunner(e *env) *pipeline.Runner {
	sender := senderProfile(e.cfg.Sender)
	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:    e.cfg.Crawler.UserAgent,
		Timeout:      e.cfg.Crawler.FetchTimeout(),
		MaxBodyBytes: e.cfg.Crawler.MaxBodyBytes,
	})
	siteCrawler := crawler.New(fetcher, crawler.Config{
		MaxPages: e.cfg.Crawler.MaxPages,
		MaxLinks: e.cfg.Crawler.MaxLinks,
	}, e.logger)
	qualifier := qualify.New(sender, e.cfg.Pipeline.QualifyThreshold)

	clk := system.New()
	ids := uuid.NewGenerator()
	executor := task.New(e.store, clk, ids, task.Config{
		MaxAttempts: e.cfg.Pipeline.MaxTaskAttempts,
	}, e.logger)

	agents := []outreach.Agent{
		pipeline.NewResearchAgent(siteCrawler, qualifier),
		pipeline.NewMappingAgent(sender),
		pipeline.NewQAAgent(),
		pipeline.NewOutreachAgent(sender),
		pipeline.NewTrackingAgent(),
	}
	return pipeline.New(e.store, executor, agents, sender, clk, ids, e.publisher, pipeline.Config{
		Workspace:             e.cfg.Pipeline.Workspace,
		MaxSubmissionAttempts: e.cfg.Pipeline.MaxSubmissionAttempts,
		CompletionTopic:       e.cfg.PubSub.TopicName,
	}, e.logger)
}
