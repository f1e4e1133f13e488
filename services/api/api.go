package api

import (
	"time"

	"github.com/google/uuid"
)

// Statuses shared by nodes and pots. Devices report "unknown" until their
// first heartbeat.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusUnknown  = "unknown"
)

// User is an account owning nodes.
type User struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
}

// Node models a gateway device owned by a user, hosting pots. UserID is nil
// for devices that enrolled themselves but have not been claimed yet.
type Node struct {
	ID            uuid.UUID  `json:"id"`
	UserID        *uuid.UUID `json:"userId,omitempty"`
	Name          string     `json:"name"`
	Note          string     `json:"note"`
	Status        string     `json:"status"`
	DataArchiving string     `json:"dataArchiving,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// Pot is a monitored plant under a node. Thresholds maps a measurement type
// to its configured {min, max} bounds and is persisted verbatim; validating
// the bounds against each other is deliberately left to the operator.
type Pot struct {
	ID            uuid.UUID      `json:"id"`
	NodeID        uuid.UUID      `json:"nodeId"`
	Name          string         `json:"name"`
	Note          string         `json:"note"`
	Status        string         `json:"status"`
	ReportingTime string         `json:"reportingTime,omitempty"`
	Thresholds    map[string]any `json:"thresholds,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
}

// Measurement is a single timestamped reading for a pot. Immutable once
// created.
type Measurement struct {
	ID        uuid.UUID `json:"id"`
	PotID     uuid.UUID `json:"potId"`
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	Type      string    `json:"type"`
}

// NodeError is a fault report pushed by a node.
type NodeError struct {
	ID        uuid.UUID `json:"id"`
	NodeID    uuid.UUID `json:"nodeId"`
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Severity  string    `json:"severity"`
	Timestamp time.Time `json:"timestamp"`
}
