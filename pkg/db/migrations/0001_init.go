package migrations

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

func init() {
	goose.AddMigrationContext(upInit, downInit)
}

type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Username     string    `gorm:"type:text;not null"`
	Email        string    `gorm:"type:text;uniqueIndex;not null"`
	PasswordHash string    `gorm:"type:text;not null"`
	CreatedAt    time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
}

type UserToken struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index"`
	Token     string    `gorm:"type:text;uniqueIndex;not null"`
	ExpiresAt time.Time `gorm:"type:timestamptz;not null"`
	CreatedAt time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	User      User      `gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

type Node struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey"`
	UserID        *uuid.UUID `gorm:"type:uuid;index"`
	Name          string     `gorm:"type:text;not null"`
	Note          string     `gorm:"type:text"`
	Status        string     `gorm:"type:text;not null"`
	DataArchiving string     `gorm:"type:text"`
	CreatedAt     time.Time  `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	User          User       `gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
}

type NodeToken struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	NodeID    uuid.UUID `gorm:"type:uuid;not null;index"`
	Token     string    `gorm:"type:text;uniqueIndex;not null"`
	CreatedAt time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	Node      Node      `gorm:"foreignKey:NodeID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

type Pot struct {
	ID            uuid.UUID         `gorm:"type:uuid;primaryKey"`
	NodeID        uuid.UUID         `gorm:"type:uuid;not null;index"`
	Name          string            `gorm:"type:text;not null"`
	Note          string            `gorm:"type:text"`
	Status        string            `gorm:"type:text;not null"`
	ReportingTime string            `gorm:"type:text"`
	Thresholds    datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt     time.Time         `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	Node          Node              `gorm:"foreignKey:NodeID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

type Measurement struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	PotID     uuid.UUID `gorm:"type:uuid;not null;index"`
	Timestamp time.Time `gorm:"type:timestamptz;not null;index"`
	Value     float64   `gorm:"not null"`
	Type      string    `gorm:"type:text;not null"`
	Pot       Pot       `gorm:"foreignKey:PotID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

type NodeError struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	NodeID    uuid.UUID `gorm:"type:uuid;not null;index"`
	Code      string    `gorm:"type:text;not null"`
	Message   string    `gorm:"type:text;not null"`
	Severity  string    `gorm:"type:text;not null"`
	Timestamp time.Time `gorm:"type:timestamptz;not null"`
	Node      Node      `gorm:"foreignKey:NodeID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

type Warning struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey"`
	PotID           uuid.UUID  `gorm:"type:uuid;not null;index"`
	MeasurementType string     `gorm:"type:text;not null"`
	ThresholdType   string     `gorm:"type:text;not null"`
	ThresholdValue  float64    `gorm:"not null"`
	MeasuredValue   float64    `gorm:"not null"`
	MeasurementID   uuid.UUID  `gorm:"type:uuid;not null"`
	CreatedAt       time.Time  `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	DismissedAt     *time.Time `gorm:"type:timestamptz;index"`
	Pot             Pot        `gorm:"foreignKey:PotID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func upInit(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: tx, PreferSimpleProtocol: true}), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{SingularTable: false},
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return err
	}

	if err := gormDB.WithContext(ctx).AutoMigrate(
		&User{},
		&UserToken{},
		&Node{},
		&NodeToken{},
		&Pot{},
		&Measurement{},
		&NodeError{},
		&Warning{},
	); err != nil {
		return err
	}

	m := gormDB.WithContext(ctx).Migrator()
	if err := m.CreateConstraint(&UserToken{}, "User"); err != nil {
		return err
	}
	if err := m.CreateConstraint(&Node{}, "User"); err != nil {
		return err
	}
	if err := m.CreateConstraint(&NodeToken{}, "Node"); err != nil {
		return err
	}
	if err := m.CreateConstraint(&Pot{}, "Node"); err != nil {
		return err
	}
	if err := m.CreateConstraint(&Measurement{}, "Pot"); err != nil {
		return err
	}
	if err := m.CreateConstraint(&NodeError{}, "Node"); err != nil {
		return err
	}
	if err := m.CreateConstraint(&Warning{}, "Pot"); err != nil {
		return err
	}

	return nil
}

func downInit(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: tx, PreferSimpleProtocol: true}), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{SingularTable: false},
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return err
	}

	if err := gormDB.WithContext(ctx).Migrator().DropTable(
		&Warning{},
		&NodeError{},
		&Measurement{},
		&Pot{},
		&NodeToken{},
		&Node{},
		&UserToken{},
		&User{},
	); err != nil {
		return err
	}

	return nil
}
