// Package storage persists the upload state and the per-session chat history.
package storage

import (
	"context"

	"github.com/hyperjump/regubot/internal/models"
)

// StateStore persists which documents have been ingested.
type StateStore interface {
	Load(ctx context.Context) (models.UploadState, error)
	Save(ctx context.Context, state models.UploadState) error
}

// HistoryStore persists chat messages per session.
type HistoryStore interface {
	Append(ctx context.Context, msg *models.Message) error
	Messages(ctx context.Context, sessionID string, limit int) ([]models.Message, error)
	Clear(ctx context.Context, sessionID string) error
	CountMessages(ctx context.Context) (int64, error)
	Close() error
}
