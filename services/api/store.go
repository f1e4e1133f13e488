package api

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"gorm.io/gorm"
)

// Store holds external dependencies required by the API layer. DB is the raw
// pool used for readiness checks; ORM carries all entity persistence; Bus is
// optional and nil disables event publishing.
type Store struct {
	DB  *pgxpool.Pool
	ORM *gorm.DB
	Bus *nats.Conn
}
