package pages

import (
	"context"
	"fmt"
	"time"

	"github.com/de-tools/secboard/pkg/services/config"
	"github.com/de-tools/secboard/pkg/store/client"
)

const defaultLongTimeout = 2 * time.Minute

// Connect opens a session against the backend at cfg.Host.
func Connect(ctx context.Context, cfg *config.Config) (*Session, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("no backend host configured: pass --host, set SECBOARD_HOST or add a profile")
	}

	// A single attempt may last as long as the slowest mutation allows.
	attemptTimeout := cfg.Mutation.LongTimeout
	if attemptTimeout <= 0 {
		attemptTimeout = defaultLongTimeout
	}

	backend, err := client.New(client.Config{
		BaseURL: cfg.Host,
		Timeout: attemptTimeout,
		Retry:   client.DefaultRetryPolicy(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create backend client: %w", err)
	}

	return NewSession(ctx, backend, nil, SessionOptions(cfg))
}

func SessionOptions(cfg *config.Config) Options {
	return Options{
		FetchTimeout:    cfg.Cache.FetchTimeout,
		MutationTimeout: cfg.Mutation.Timeout,
		LongTimeout:     cfg.Mutation.LongTimeout,
	}
}
