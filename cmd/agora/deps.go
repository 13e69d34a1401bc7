package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/agorahq/agora/pkg/channels/gochannel"
	"github.com/agorahq/agora/pkg/channels/kafka"
	"github.com/agorahq/agora/pkg/eventbus"
	"github.com/agorahq/agora/pkg/kv"
	"github.com/agorahq/agora/pkg/persistence/file"
	"github.com/agorahq/agora/pkg/persistence/postgresql"
	"github.com/agorahq/agora/pkg/process"
)

// newRepository picks the process repository from the database URL scheme:
// postgres for production, a file tree for local development.
func newRepository(
	ctx context.Context,
	logger *slog.Logger,
	databaseURL string,
) (process.Repository, func(), error) {
	if strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://") {
		repo, err := postgresql.NewRepository(ctx, logger, databaseURL)
		if err != nil {
			return nil, nil, err
		}

		return repo, func() { _ = repo.Close(ctx) }, nil
	}

	repo, err := file.NewRepository(strings.TrimPrefix(databaseURL, "file://"))
	if err != nil {
		return nil, nil, err
	}

	return repo, func() {}, nil
}

// newStateStore backs plugin and process private state with redis when a URL
// is configured, otherwise a local file.
func newStateStore(
	ctx context.Context,
	logger *slog.Logger,
	redisURL, dataPath string,
) (kv.Store, func(), error) {
	if redisURL != "" {
		store, err := kv.NewRedis(ctx, redisURL, "agora", logger)
		if err != nil {
			return nil, nil, err
		}

		return store, func() { _ = store.Close() }, nil
	}

	store, err := kv.NewFile(filepath.Join(dataPath, "state.json"))
	if err != nil {
		return nil, nil, err
	}

	return store, func() {}, nil
}

func newEventBus(provider, brokers string, logger *slog.Logger) (*eventbus.WatermillEventBus, error) {
	wmLogger := watermill.NewSlogLogger(logger)

	switch provider {
	case "kafka":
		pub, sub, err := kafka.CreateChannel(wmLogger, "agora", brokers)
		if err != nil {
			return nil, fmt.Errorf("failed to create kafka channel: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub), nil

	case "gochannel":
		pub, sub, err := gochannel.CreateChannel(wmLogger)
		if err != nil {
			return nil, fmt.Errorf("failed to create gochannel: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub), nil

	default:
		return nil, fmt.Errorf("unsupported event bus provider %q", provider)
	}
}
