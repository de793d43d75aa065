// Command domainrag ingests documents into knowledge domains and answers
// questions from them.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/domainrag/internal/adapters/driving/cli"
	"github.com/custodia-labs/domainrag/internal/app"
)

// version is set with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// Provider API keys may come from a .env file in the working directory.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "loading .env: %v\n", err)
	}

	cli.SetVersion(version)
	cli.SetBootstrap(bootstrap)

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

func bootstrap(ctx context.Context, opts cli.Options) (*cli.Services, func() error, error) {
	a, err := app.New(ctx, app.Options{
		ConfigPath: opts.ConfigPath,
		Debug:      opts.Debug,
	})
	if err != nil {
		return nil, nil, err
	}

	return &cli.Services{
		Domains:    a.Domains,
		Ingestion:  a.Ingestion,
		Query:      a.Query,
		Reconciler: a.Reconciler,
		Config:     a.Store,
		AppConfig:  a.Config(),
		Logger:     a.Logger,
		Watch:      a.Watch,
	}, a.Close, nil
}
