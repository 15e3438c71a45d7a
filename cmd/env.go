package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/scholium/extract-cli/internal/pipeline"
	"github.com/scholium/extract-cli/internal/store"
	anthropicpkg "github.com/scholium/extract-cli/pkg/anthropic"
)

// pipelineEnv holds the initialized store and pipeline needed by the
// extract and batch commands.
type pipelineEnv struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		path := cfg.Store.SQLitePath
		if path == "" {
			path = "extract.db"
		}
		return store.NewSQLite(path)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initPipeline sets up the store and the Anthropic client and builds the
// pipeline. Callers should defer env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	if cfg.Anthropic.Key == "" {
		return nil, eris.New("anthropic API key is required (EXTRACT_ANTHROPIC_KEY)")
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	client := anthropicpkg.NewRateLimited(
		anthropicpkg.NewClient(cfg.Anthropic.Key),
		cfg.Anthropic.RequestsPerSecond,
		cfg.Anthropic.Burst,
	)

	p, err := pipeline.New(cfg, st, client)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	return &pipelineEnv{Store: st, Pipeline: p}, nil
}
