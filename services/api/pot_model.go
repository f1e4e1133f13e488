package api

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type potModel struct {
	ID            uuid.UUID         `gorm:"type:uuid;primaryKey"`
	NodeID        uuid.UUID         `gorm:"type:uuid;not null;index"`
	Name          string            `gorm:"type:text;not null"`
	Note          string            `gorm:"type:text"`
	Status        string            `gorm:"type:text;not null"`
	ReportingTime string            `gorm:"type:text"`
	Thresholds    datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt     time.Time         `gorm:"not null;autoCreateTime"`
}

func (potModel) TableName() string { return "pots" }

func (m potModel) toAPI() Pot {
	return Pot{
		ID:            m.ID,
		NodeID:        m.NodeID,
		Name:          m.Name,
		Note:          m.Note,
		Status:        m.Status,
		ReportingTime: m.ReportingTime,
		Thresholds:    mapFromJSONMap(m.Thresholds),
		CreatedAt:     m.CreatedAt,
	}
}
