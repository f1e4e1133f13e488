package alerting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a warning id does not exist.
var ErrNotFound = errors.New("warning not found")

// Store is the durable record of warnings with their dismissal lifecycle.
type Store struct {
	orm *gorm.DB
}

// NewStore wraps the provided GORM handle. The handle is the store's only
// persistence dependency; nothing here reaches for ambient state.
func NewStore(orm *gorm.DB) (*Store, error) {
	if orm == nil {
		return nil, errors.New("orm is required")
	}
	return &Store{orm: orm}, nil
}

// Create persists a new active warning and returns it with its assigned id
// and creation timestamp.
func (s *Store) Create(ctx context.Context, potID uuid.UUID, measurementType string, thresholdType ThresholdType, thresholdValue, measuredValue float64, measurementID uuid.UUID) (Warning, error) {
	model := warningModel{
		ID:              uuid.New(),
		PotID:           potID,
		MeasurementType: measurementType,
		ThresholdType:   string(thresholdType),
		ThresholdValue:  thresholdValue,
		MeasuredValue:   measuredValue,
		MeasurementID:   measurementID,
		CreatedAt:       time.Now().UTC(),
	}

	if err := s.orm.WithContext(ctx).Create(&model).Error; err != nil {
		return Warning{}, fmt.Errorf("create warning: %w", err)
	}
	return model.toAPI(), nil
}

// Get fetches a single warning regardless of lifecycle state.
func (s *Store) Get(ctx context.Context, warningID uuid.UUID) (Warning, error) {
	var model warningModel
	err := s.orm.WithContext(ctx).First(&model, "id = ?", warningID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return Warning{}, ErrNotFound
	case err != nil:
		return Warning{}, fmt.Errorf("get warning: %w", err)
	}
	return model.toAPI(), nil
}

// ListActiveByPot returns the pot's un-dismissed warnings, newest first.
// A persistence error is returned as-is and is never collapsed into an
// empty result.
func (s *Store) ListActiveByPot(ctx context.Context, potID uuid.UUID) ([]Warning, error) {
	var models []warningModel
	err := s.orm.WithContext(ctx).
		Where("pot_id = ? AND dismissed_at IS NULL", potID).
		Order("created_at DESC, id DESC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("list warnings by pot: %w", err)
	}
	return toAPIList(models), nil
}

// ListActiveByNode aggregates active warnings across every pot belonging to
// the node, newest first.
func (s *Store) ListActiveByNode(ctx context.Context, nodeID uuid.UUID) ([]Warning, error) {
	var models []warningModel
	err := s.orm.WithContext(ctx).
		Joins("JOIN pots ON pots.id = warnings.pot_id").
		Where("pots.node_id = ? AND warnings.dismissed_at IS NULL", nodeID).
		Order("warnings.created_at DESC, warnings.id DESC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("list warnings by node: %w", err)
	}
	return toAPIList(models), nil
}

// Dismiss marks an active warning as dismissed. It reports false when the
// warning was already dismissed, leaving the original dismissal timestamp
// untouched. An unknown id yields ErrNotFound.
func (s *Store) Dismiss(ctx context.Context, warningID uuid.UUID) (bool, error) {
	now := time.Now().UTC()
	res := s.orm.WithContext(ctx).
		Model(&warningModel{}).
		Where("id = ? AND dismissed_at IS NULL", warningID).
		Update("dismissed_at", now)
	if res.Error != nil {
		return false, fmt.Errorf("dismiss warning: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		return true, nil
	}

	// Nothing changed: distinguish the benign already-dismissed case from a
	// missing warning.
	if _, err := s.Get(ctx, warningID); err != nil {
		return false, err
	}
	return false, nil
}

// DismissAll dismisses every active warning for the pot. Zero active
// warnings is a success; there is nothing to fail.
func (s *Store) DismissAll(ctx context.Context, potID uuid.UUID) error {
	now := time.Now().UTC()
	res := s.orm.WithContext(ctx).
		Model(&warningModel{}).
		Where("pot_id = ? AND dismissed_at IS NULL", potID).
		Update("dismissed_at", now)
	if res.Error != nil {
		return fmt.Errorf("dismiss warnings for pot: %w", res.Error)
	}
	return nil
}

func toAPIList(models []warningModel) []Warning {
	out := make([]Warning, 0, len(models))
	for _, m := range models {
		out = append(out, m.toAPI())
	}
	return out
}
