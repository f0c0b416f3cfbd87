package worker

import (
	"context"
	"errors"
	"log/slog"

	"bookshelf/internal/assets"
	"bookshelf/pkg/rabbitmq"
)

// Consumer delivers asset removal requests to a handler.
type Consumer interface {
	ConsumeAssetRemovals(ctx context.Context, handler rabbitmq.Handler) error
}

// AssetCleaner removes assets that were orphaned by a failed write or
// replaced by an update.
type AssetCleaner struct {
	store  assets.Store
	logger *slog.Logger
}

// NewAssetCleaner creates a new AssetCleaner.
func NewAssetCleaner(store assets.Store, logger *slog.Logger) *AssetCleaner {
	if logger == nil {
		logger = slog.Default()
	}
	return &AssetCleaner{store: store, logger: logger}
}

// Start registers the cleaner with consumer. Processing stops when ctx is
// done.
func (w *AssetCleaner) Start(ctx context.Context, consumer Consumer) error {
	return consumer.ConsumeAssetRemovals(ctx, w.Handle)
}

// Handle removes the asset named by msg. Requests that can never succeed are
// dropped; a failed removal is returned so the message is redelivered.
func (w *AssetCleaner) Handle(ctx context.Context, msg rabbitmq.AssetRemoval) error {
	kind := assets.Kind(msg.Kind)
	if !kind.Valid() || msg.Ref == "" {
		w.logger.Warn("dropping asset removal", "ref", msg.Ref, "kind", msg.Kind, "reason", msg.Reason)
		return nil
	}

	if err := w.store.Remove(ctx, msg.Ref, kind); err != nil {
		if errors.Is(err, assets.ErrInvalidRef) {
			w.logger.Warn("dropping asset removal with invalid reference", "ref", msg.Ref, "kind", msg.Kind, "error", err)
			return nil
		}
		return err
	}

	w.logger.Info("asset removed", "ref", msg.Ref, "kind", msg.Kind, "reason", msg.Reason)
	return nil
}
