package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/domainrag/internal/core/domain"
)

// execute runs the root command with args and returns everything written
// to stdout and stderr.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
	}()

	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestRootCmd_Use(t *testing.T) {
	assert.Equal(t, "domainrag", rootCmd.Use)
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	names := make([]string, 0, len(rootCmd.Commands()))
	for _, cmd := range rootCmd.Commands() {
		names = append(names, cmd.Name())
	}

	for _, want := range []string{"domain", "ingest", "query", "reconcile", "health", "config", "mcp", "tui", "version"} {
		assert.Contains(t, names, want)
	}
}

func TestRootCmd_NoFlagsShowsHelp(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t)

	require.NoError(t, err)
	assert.Contains(t, out, "Usage:")
	assert.False(t, mocks.ingestion.invoked)
}

func TestRootCmd_IngestFlag(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "-i", "./reports", "-d", "Finance")

	require.NoError(t, err)
	assert.Equal(t, "./reports", mocks.ingestion.dir)
	assert.Equal(t, "Finance", mocks.ingestion.domain)
	assert.Contains(t, out, "Ingestion into Finance")
}

func TestRootCmd_QueryFlag(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := execute(t, "-q", "What was Q3 revenue?", "-d", "Finance", "-d", "HR")

	require.NoError(t, err)
	assert.Equal(t, "What was Q3 revenue?", mocks.query.question)
	assert.Equal(t, []string{"Finance", "HR"}, mocks.query.domains)
	assert.Contains(t, out, "Q3 revenue was 4.2 million.")
}

func TestRootCmd_IngestAndQueryConflict(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	_, err := execute(t, "-i", "./reports", "-q", "why?", "-d", "Finance")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be used together")
}

func TestSelectedDomains_DefaultDomain(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	assert.Nil(t, selectedDomains())

	appConfig.System.DefaultDomain = "HR"
	assert.Equal(t, []string{"HR"}, selectedDomains())

	domainNames = []string{"Finance"}
	assert.Equal(t, []string{"Finance"}, selectedDomains())
}

func TestSingleDomain(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	_, err := singleDomain()
	assert.ErrorContains(t, err, "no domain given")

	domainNames = []string{"Finance", "HR"}
	_, err = singleDomain()
	assert.ErrorContains(t, err, "expected one domain")

	domainNames = []string{"Finance"}
	name, err := singleDomain()
	require.NoError(t, err)
	assert.Equal(t, "Finance", name)
}

func TestPrepareServices_UsesBootstrap(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	SetServices(&Services{AppConfig: domain.DefaultAppConfig()})

	var got Options
	closed := false
	SetBootstrap(func(_ context.Context, opts Options) (*Services, func() error, error) {
		got = opts
		return &Services{
			Query:     mocks.query,
			AppConfig: domain.DefaultAppConfig(),
		}, func() error { closed = true; return nil }, nil
	})
	defer func() {
		SetBootstrap(nil)
		release = nil
	}()

	_, err := execute(t, "--config", "/tmp/custom.toml", "--debug", "health")
	require.NoError(t, err)
	assert.Equal(t, Options{ConfigPath: "/tmp/custom.toml", Debug: true}, got)
	require.NotNil(t, release)

	require.NoError(t, release())
	assert.True(t, closed)
}

func TestPrepareServices_BootstrapError(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	SetBootstrap(func(context.Context, Options) (*Services, func() error, error) {
		return nil, nil, errors.New("config broken")
	})
	defer SetBootstrap(nil)

	_, err := execute(t, "health")
	assert.EqualError(t, err, "config broken")
}

func TestPrepareServices_VersionSkipsBootstrap(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	called := false
	SetBootstrap(func(context.Context, Options) (*Services, func() error, error) {
		called = true
		return nil, nil, errors.New("should not run")
	})
	defer SetBootstrap(nil)

	_, err := execute(t, "version")
	require.NoError(t, err)
	assert.False(t, called)
}

func TestCommands_NotConfigured(t *testing.T) {
	SetServices(&Services{AppConfig: domain.DefaultAppConfig()})
	resetFlags()
	defer resetFlags()

	tests := []struct {
		args []string
		want string
	}{
		{[]string{"domain", "list"}, "domain service not configured"},
		{[]string{"ingest", "./docs", "-d", "Finance"}, "ingestion service not configured"},
		{[]string{"query", "why?"}, "query service not configured"},
		{[]string{"reconcile"}, "reconciler not configured"},
		{[]string{"health"}, "query service not configured"},
		{[]string{"config", "show"}, "config store not configured"},
	}
	for _, tt := range tests {
		t.Run(tt.args[0], func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			resetFlags()
		})
	}
}
