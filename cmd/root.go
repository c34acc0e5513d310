// Package cmd defines and implements the CLI commands for the
// outreach executable.
package cmd

import (
	"context"
	"fmt"
	"os"

	"cloud.google.com/go/pubsub"
	gcstorage "cloud.google.com/go/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fundpilot/outreach/internal/config"
	"github.com/fundpilot/outreach/internal/logging"
	"github.com/fundpilot/outreach/internal/outreach"
	pubsubpublisher "github.com/fundpilot/outreach/internal/publisher/pubsub"
	gcsstore "github.com/fundpilot/outreach/internal/storage/gcs"
	localstore "github.com/fundpilot/outreach/internal/storage/local"
	memstore "github.com/fundpilot/outreach/internal/store/memory"
	pgstore "github.com/fundpilot/outreach/internal/store/postgres"
)

var cfgFile string

// env bundles the wired collaborators commands run against.
type env struct {
	cfg       config.Config
	logger    *zap.Logger
	store     outreach.Store
	evidence  outreach.BlobStore
	publisher outreach.Publisher
	closers   []func()
}

func (e *env) close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outreach",
		Short: "Investor outreach pipeline engine",
		Long: `outreach crawls target investor websites, qualifies them against a
sender profile, and prepares (optionally executes) submission-form
outreach. Runs are persisted with full task and log history.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newSubmitCmd())
	return cmd
}

// Execute runs the CLI.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildEnv loads configuration and wires the store, evidence blob
// store and publisher the configuration selects.
func buildEnv(ctx context.Context) (*env, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	e := &env{cfg: cfg, logger: logger}
	e.closers = append(e.closers, func() { _ = logger.Sync() })

	if cfg.DB.DSN != "" {
		pg, err := pgstore.New(ctx, pgstore.Config{DSN: cfg.DB.DSN, MaxConns: cfg.DB.MaxConns})
		if err != nil {
			return nil, err
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		e.store = pg
		e.closers = append(e.closers, pg.Close)
	} else {
		e.store = memstore.New("outreach-store.json")
	}

	if cfg.Storage.GCSBucket != "" {
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client: %w", err)
		}
		blob, err := gcsstore.New(client, gcsstore.Config{Bucket: cfg.Storage.GCSBucket})
		if err != nil {
			return nil, err
		}
		e.evidence = blob
		e.closers = append(e.closers, func() { _ = client.Close() })
	} else {
		blob, err := localstore.New(localstore.Config{BaseDir: cfg.Storage.EvidenceDir})
		if err != nil {
			return nil, err
		}
		e.evidence = blob
	}

	if cfg.PubSub.TopicName != "" {
		client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("pubsub client: %w", err)
		}
		e.publisher = pubsubpublisher.New(client.Topic(cfg.PubSub.TopicName))
		e.closers = append(e.closers, func() { _ = client.Close() })
	}

	return e, nil
}

// senderProfile converts the config section into the domain profile.
func senderProfile(cfg config.SenderConfig) outreach.SenderProfile {
	return outreach.SenderProfile{
		ContactName:    cfg.ContactName,
		ContactEmail:   cfg.ContactEmail,
		ContactPhone:   cfg.ContactPhone,
		CompanyName:    cfg.CompanyName,
		CompanyWebsite: cfg.CompanyWebsite,
		CompanySummary: cfg.CompanySummary,
		DeckURL:        cfg.DeckURL,
		DataRoomURL:    cfg.DataRoomURL,
		Round:          cfg.Round,
		ProfileText:    cfg.ProfileText,
	}
}
