package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	require.NoError(t, err)

	require.True(t, cfg.Logging.Development)
	require.Equal(t, 6, cfg.Crawler.MaxPages)
	require.Equal(t, 5500, cfg.Crawler.FetchTimeoutMs)
	require.Equal(t, 5500*time.Millisecond, cfg.Crawler.FetchTimeout())
	require.Equal(t, 2, cfg.Pipeline.MaxTaskAttempts)
	require.Equal(t, 3, cfg.Pipeline.MaxSubmissionAttempts)
	require.InDelta(t, 0.55, cfg.Pipeline.QualifyThreshold, 0.0001)
	require.Equal(t, "default", cfg.Pipeline.Workspace)
	require.False(t, cfg.Automation.Enabled)
	require.False(t, cfg.Automation.FinalSubmitClick)
	require.Equal(t, 25*time.Second, cfg.Automation.NavTimeout())
	require.Equal(t, 2*time.Second, cfg.Automation.Settle())
	require.Equal(t, "Seed", cfg.Sender.Round)
	require.Empty(t, cfg.DB.DSN)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
crawler:
  max_pages: 10
pipeline:
  qualify_threshold: 0.7
  workspace: growth
automation:
  enabled: true
sender:
  company_name: Acme Robotics
  contact_email: dana@acme.example
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 10, cfg.Crawler.MaxPages)
	require.InDelta(t, 0.7, cfg.Pipeline.QualifyThreshold, 0.0001)
	require.Equal(t, "growth", cfg.Pipeline.Workspace)
	require.True(t, cfg.Automation.Enabled)
	require.Equal(t, "Acme Robotics", cfg.Sender.CompanyName)
	// Untouched sections keep defaults.
	require.Equal(t, 2, cfg.Pipeline.MaxTaskAttempts)
}

func TestLoad_ClampsOutOfRangeValues(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
crawler:
  max_pages: 0
  fetch_timeout_ms: 5
pipeline:
  max_task_attempts: -3
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 1, cfg.Crawler.MaxPages)
	require.Equal(t, 100, cfg.Crawler.FetchTimeoutMs)
	require.Equal(t, 1, cfg.Pipeline.MaxTaskAttempts)
}

func TestLoad_RejectsInvalidThreshold(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
pipeline:
  qualify_threshold: 1.4
`)

	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "qualify_threshold")
}

func TestLoad_RejectsIncompletePubSub(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
pubsub:
  topic_name: outreach-runs
`)

	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "pubsub.project_id")
}

func TestLoad_MissingFileFails(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
