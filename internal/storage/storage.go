// Package storage persists the ingestion ledger and measures index disk usage.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/hyperjump/iasistente/internal/models"
)

// IngestionLog records the outcome of every ingestion attempt.
type IngestionLog interface {
	Record(ctx context.Context, r *models.IngestionResult) error
	// List returns the most recent results first. An empty name lists every domain.
	List(ctx context.Context, name string, limit int) ([]*models.IngestionResult, error)
	// LastSuccess returns the newest successful result for name, or nil when there is none.
	LastSuccess(ctx context.Context, name string) (*models.IngestionResult, error)
	Close() error
}

// AnnotateLastSuccess fills the last successful ingestion of every domain from log.
// Domains the ledger has never seen are left as they are.
func AnnotateLastSuccess(ctx context.Context, log IngestionLog, domains []models.DomainInfo) error {
	for i := range domains {
		last, err := log.LastSuccess(ctx, domains[i].Name)
		if err != nil {
			return fmt.Errorf("last ingestion of %s: %w", domains[i].Name, err)
		}
		if last == nil {
			continue
		}
		domains[i].LastIngestionID = last.ID
		domains[i].LastIngestedAt = last.StartedAt.UTC().Format(time.RFC3339)
	}
	return nil
}
