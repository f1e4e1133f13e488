package api

import (
	"time"

	"github.com/google/uuid"
)

type nodeModel struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey"`
	UserID        *uuid.UUID `gorm:"type:uuid;index"`
	Name          string     `gorm:"type:text;not null"`
	Note          string     `gorm:"type:text"`
	Status        string     `gorm:"type:text;not null"`
	DataArchiving string     `gorm:"type:text"`
	CreatedAt     time.Time  `gorm:"not null;autoCreateTime"`
}

func (nodeModel) TableName() string { return "nodes" }

func (m nodeModel) toAPI() Node {
	return Node{
		ID:            m.ID,
		UserID:        m.UserID,
		Name:          m.Name,
		Note:          m.Note,
		Status:        m.Status,
		DataArchiving: m.DataArchiving,
		CreatedAt:     m.CreatedAt,
	}
}

// ownedBy reports whether the node belongs to the given user. Unclaimed
// nodes belong to nobody.
func (m nodeModel) ownedBy(userID uuid.UUID) bool {
	return m.UserID != nil && *m.UserID == userID
}

type nodeTokenModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	NodeID    uuid.UUID `gorm:"type:uuid;not null;index"`
	Token     string    `gorm:"type:text;uniqueIndex;not null"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
}

func (nodeTokenModel) TableName() string { return "node_tokens" }

type nodeErrorModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	NodeID    uuid.UUID `gorm:"type:uuid;not null;index"`
	Code      string    `gorm:"type:text;not null"`
	Message   string    `gorm:"type:text;not null"`
	Severity  string    `gorm:"type:text;not null"`
	Timestamp time.Time `gorm:"not null"`
}

func (nodeErrorModel) TableName() string { return "node_errors" }

func (m nodeErrorModel) toAPI() NodeError {
	return NodeError{
		ID:        m.ID,
		NodeID:    m.NodeID,
		Code:      m.Code,
		Message:   m.Message,
		Severity:  m.Severity,
		Timestamp: m.Timestamp,
	}
}
