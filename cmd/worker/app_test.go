package main

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"natrail-bot/internal/config"
)

func TestNewApp_ReleasesStoreOnWiringError(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name   string
		mutate func(cfg *config.Config)
		errMsg string
	}{
		{
			name:   "unknown link mode",
			mutate: func(cfg *config.Config) { cfg.Post.LinkMode = "thread" },
			errMsg: "unknown link mode",
		},
		{
			name:   "bad schedule",
			mutate: func(cfg *config.Config) { cfg.Post.Schedule = "every now and then" },
		},
		{
			name:   "unknown timezone",
			mutate: func(cfg *config.Config) { cfg.Post.Timezone = "Mars/Olympus_Mons" },
			errMsg: "load timezone",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Store.DSN = filepath.Join(t.TempDir(), "disruptions.db")
			tt.mutate(&cfg)

			a, err := newApp(context.Background(), &cfg, logger, nil)
			require.Error(t, err)
			assert.Nil(t, a)
			if tt.errMsg != "" {
				assert.Contains(t, err.Error(), tt.errMsg)
			}
		})
	}
}

func TestApp_CloseWithoutDatabase(t *testing.T) {
	a := &app{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	assert.NoError(t, a.Close())
}
