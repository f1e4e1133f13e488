package api

import (
	"time"

	"github.com/google/uuid"
)

type measurementModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	PotID     uuid.UUID `gorm:"type:uuid;not null;index"`
	Timestamp time.Time `gorm:"not null;index"`
	Value     float64   `gorm:"not null"`
	Type      string    `gorm:"type:text;not null"`
}

func (measurementModel) TableName() string { return "measurements" }

func (m measurementModel) toAPI() Measurement {
	return Measurement{
		ID:        m.ID,
		PotID:     m.PotID,
		Timestamp: m.Timestamp,
		Value:     m.Value,
		Type:      m.Type,
	}
}
