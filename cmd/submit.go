package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fundpilot/outreach/internal/clock/system"
	"github.com/fundpilot/outreach/internal/id/uuid"
	"github.com/fundpilot/outreach/internal/submit"
)

func newSubmitCmd() *cobra.Command {
	var requestID string
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Execute a prepared submission request",
		Long: `Attempts one submission request through the configured automation
tier. With automation disabled this produces a simulated result; with
a browser backend present it fills the form and captures evidence.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			e, err := buildEnv(ctx)
			if err != nil {
				return err
			}
			defer e.close()

			req, err := e.store.GetSubmissionRequest(ctx, requestID)
			if err != nil {
				return fmt.Errorf("load submission request: %w", err)
			}
			if err := submit.CanRetry(req); err != nil {
				return err
			}

			var automator submit.Automator = submit.NewNoop()
			if e.cfg.Automation.Enabled {
				chrome := submit.NewChromedp(submit.ChromedpConfig{
					UserAgent:         e.cfg.Crawler.UserAgent,
					NavigationTimeout: e.cfg.Automation.NavTimeout(),
				})
				defer chrome.Close()
				automator = chrome
			}

			executor := submit.New(
				automator,
				e.evidence,
				e.store,
				system.New(),
				uuid.NewGenerator(),
				submit.Config{
					Enabled:          e.cfg.Automation.Enabled,
					FinalSubmitClick: e.cfg.Automation.FinalSubmitClick,
					NavTimeout:       e.cfg.Automation.NavTimeout(),
					Settle:           e.cfg.Automation.Settle(),
					EvidencePrefix:   e.cfg.Storage.Prefix,
				},
				e.logger,
			)

			outcome, err := executor.Execute(ctx, req)
			if err != nil {
				return fmt.Errorf("execute submission: %w", err)
			}
			e.logger.Info("submission executed",
				zap.String("request_id", req.ID),
				zap.String("status", string(outcome.Status)),
				zap.String("proof", string(outcome.Proof)),
			)
			fmt.Printf("request %s: %s (proof %s)\n", req.ID, outcome.Status, outcome.Proof)
			return nil
		},
	}
	cmd.Flags().StringVar(&requestID, "request", "", "submission request ID (required)")
	_ = cmd.MarkFlagRequired("request")
	return cmd
}
