// Package records keeps the per-entity contract records updated after each
// generation.
package records

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned when an entity has no record.
var ErrNotFound = errors.New("contract record not found")

// Repository stores contract records.
type Repository interface {
	// MarkGenerated records a new document for the entity, creating the
	// record if needed.
	MarkGenerated(ctx context.Context, entityID, templateKey string, documentKey, documentURL string) (*Contract, error)

	// MarkFailed records a failed generation. The last good document is kept.
	MarkFailed(ctx context.Context, entityID, reason string) error

	// Get returns the record of an entity.
	Get(ctx context.Context, entityID string) (*Contract, error)
}

type contractRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewRepository creates a repository over db.
func NewRepository(db *gorm.DB) Repository {
	return &contractRepository{db: db, now: time.Now}
}

func (r *contractRepository) MarkGenerated(ctx context.Context, entityID, templateKey, documentKey, documentURL string) (*Contract, error) {
	now := r.now().UTC()
	record := &Contract{
		EntityID:    entityID,
		TemplateKey: templateKey,
		DocumentKey: documentKey,
		DocumentURL: documentURL,
		Status:      StatusGenerated,
		GeneratedAt: &now,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "entity_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"template_key":   templateKey,
			"document_key":   documentKey,
			"document_url":   documentURL,
			"status":         StatusGenerated,
			"generated_at":   now,
			"failure_reason": "",
			"updated_at":     now,
		}),
	}).Create(record).Error
	if err != nil {
		return nil, fmt.Errorf("failed to record generated contract: %w", err)
	}
	return r.Get(ctx, entityID)
}

func (r *contractRepository) MarkFailed(ctx context.Context, entityID, reason string) error {
	now := r.now().UTC()
	record := &Contract{
		EntityID:      entityID,
		Status:        StatusFailed,
		FailureReason: reason,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "entity_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"status":         StatusFailed,
			"failure_reason": reason,
			"updated_at":     now,
		}),
	}).Create(record).Error
	if err != nil {
		return fmt.Errorf("failed to record failed contract: %w", err)
	}
	return nil
}

func (r *contractRepository) Get(ctx context.Context, entityID string) (*Contract, error) {
	var record Contract
	err := r.db.WithContext(ctx).Where("entity_id = ?", entityID).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get contract record: %w", err)
	}
	return &record, nil
}
