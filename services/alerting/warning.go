package alerting

import (
	"time"

	"github.com/google/uuid"
)

// ThresholdType names the bound a warning was raised for.
type ThresholdType string

const (
	// ThresholdMin marks a value that fell below the configured minimum.
	ThresholdMin ThresholdType = "min"
	// ThresholdMax marks a value that rose above the configured maximum.
	ThresholdMax ThresholdType = "max"
)

// Warning records a single measurement breaching one configured bound.
// ThresholdValue is a snapshot of the bound at breach time; later threshold
// edits do not alter existing warnings.
type Warning struct {
	ID              uuid.UUID     `json:"id"`
	PotID           uuid.UUID     `json:"potId"`
	MeasurementType string        `json:"measurementType"`
	ThresholdType   ThresholdType `json:"thresholdType"`
	ThresholdValue  float64       `json:"thresholdValue"`
	MeasuredValue   float64       `json:"measuredValue"`
	MeasurementID   uuid.UUID     `json:"measurementId"`
	CreatedAt       time.Time     `json:"createdAt"`
	DismissedAt     *time.Time    `json:"dismissedAt,omitempty"`
}

type warningModel struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey"`
	PotID           uuid.UUID  `gorm:"type:uuid;not null;index"`
	MeasurementType string     `gorm:"type:text;not null"`
	ThresholdType   string     `gorm:"type:text;not null"`
	ThresholdValue  float64    `gorm:"not null"`
	MeasuredValue   float64    `gorm:"not null"`
	MeasurementID   uuid.UUID  `gorm:"type:uuid;not null"`
	CreatedAt       time.Time  `gorm:"not null;autoCreateTime"`
	DismissedAt     *time.Time `gorm:"index"`
}

func (warningModel) TableName() string { return "warnings" }

func (m warningModel) toAPI() Warning {
	return Warning{
		ID:              m.ID,
		PotID:           m.PotID,
		MeasurementType: m.MeasurementType,
		ThresholdType:   ThresholdType(m.ThresholdType),
		ThresholdValue:  m.ThresholdValue,
		MeasuredValue:   m.MeasuredValue,
		MeasurementID:   m.MeasurementID,
		CreatedAt:       m.CreatedAt,
		DismissedAt:     m.DismissedAt,
	}
}
