package archiver

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog"

	"sproutd/pkg/bus"
	"sproutd/pkg/db"
	"sproutd/pkg/s3"
)

const archiveCompletedTopic = "sproutd.archives.completed"

// Config controls what gets archived and how often.
type Config struct {
	Bucket    string
	Retention time.Duration
	Interval  time.Duration
}

// Archiver moves cold measurements for opted-in nodes out of the primary
// database into compressed object storage.
type Archiver struct {
	pool *pgxpool.Pool
	s3c  *s3.Client
	bus  *bus.Bus
	cfg  Config
	log  zerolog.Logger
}

// New validates dependencies and returns an Archiver. The bus is optional;
// nil disables completion events.
func New(pool *pgxpool.Pool, s3c *s3.Client, b *bus.Bus, cfg Config, log zerolog.Logger) (*Archiver, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	if s3c == nil {
		return nil, errors.New("s3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("bucket is required")
	}
	if cfg.Retention <= 0 {
		return nil, errors.New("retention must be positive")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 24 * time.Hour
	}
	return &Archiver{pool: pool, s3c: s3c, bus: b, cfg: cfg, log: log}, nil
}

// Run executes archive sweeps on the configured interval until ctx ends.
func (a *Archiver) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.cfg.Interval)
	defer ticker.Stop()

	for {
		if n, err := a.RunOnce(ctx); err != nil {
			a.log.Error().Err(err).Msg("archive sweep failed")
		} else if n > 0 {
			a.log.Info().Int("measurements", n).Msg("archive sweep complete")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

type archivedMeasurement struct {
	ID        uuid.UUID `db:"id" json:"id"`
	PotID     uuid.UUID `db:"pot_id" json:"potId"`
	Timestamp time.Time `db:"timestamp" json:"timestamp"`
	Value     float64   `db:"value" json:"value"`
	Type      string    `db:"type" json:"type"`
}

// RunOnce performs a single sweep over every node that opted into archiving
// and returns the number of measurements moved to object storage.
func (a *Archiver) RunOnce(ctx context.Context) (int, error) {
	var nodeIDs []uuid.UUID
	err := db.Select(ctx, a.pool, &nodeIDs,
		`SELECT id FROM nodes WHERE data_archiving IS NOT NULL AND data_archiving <> ''`)
	if err != nil {
		return 0, fmt.Errorf("list archiving nodes: %w", err)
	}

	cutoff := time.Now().UTC().Add(-a.cfg.Retention)
	total := 0
	var errs []error
	for _, nodeID := range nodeIDs {
		n, err := a.archiveNode(ctx, nodeID, cutoff)
		if err != nil {
			errs = append(errs, fmt.Errorf("node %s: %w", nodeID, err))
			continue
		}
		total += n
	}
	return total, errors.Join(errs...)
}

func (a *Archiver) archiveNode(ctx context.Context, nodeID uuid.UUID, cutoff time.Time) (int, error) {
	var rows []archivedMeasurement
	err := db.Select(ctx, a.pool, &rows,
		`SELECT m.id, m.pot_id, m.timestamp, m.value, m.type
		 FROM measurements m
		 JOIN pots p ON p.id = m.pot_id
		 WHERE p.node_id = $1 AND m.timestamp < $2
		 ORDER BY m.timestamp`, nodeID, cutoff)
	if err != nil {
		return 0, fmt.Errorf("select cold measurements: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	key := archiveKey(nodeID, time.Now().UTC())
	payload, digest, err := encodeArchive(rows)
	if err != nil {
		return 0, err
	}

	if err := a.s3c.PutObject(ctx, a.cfg.Bucket, key, bytes.NewReader(payload), int64(len(payload)), digest); err != nil {
		return 0, fmt.Errorf("upload archive: %w", err)
	}

	// Rows are deleted only after the upload succeeded. A crash between
	// upload and delete re-archives the same rows, which is harmless.
	ids := make([]uuid.UUID, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	if _, err := db.Exec(ctx, a.pool, `DELETE FROM measurements WHERE id = ANY($1)`, ids); err != nil {
		return 0, fmt.Errorf("delete archived measurements: %w", err)
	}

	if a.bus != nil {
		event := map[string]any{
			"nodeId":       nodeID,
			"bucket":       a.cfg.Bucket,
			"key":          key,
			"measurements": len(rows),
			"sha256":       digest,
		}
		if err := a.bus.Publish(ctx, archiveCompletedTopic, event); err != nil {
			a.log.Warn().Err(err).Str("key", key).Msg("archive event publish failed")
		}
	}

	a.log.Info().
		Str("node_id", nodeID.String()).
		Str("key", key).
		Int("measurements", len(rows)).
		Msg("archived cold measurements")
	return len(rows), nil
}

func archiveKey(nodeID uuid.UUID, at time.Time) string {
	return fmt.Sprintf("archives/%s/%s.json.zst", nodeID, at.Format("20060102T150405Z"))
}

// encodeArchive renders rows as a zstd-compressed JSON array and returns the
// compressed bytes with their hex sha256 digest.
func encodeArchive(rows []archivedMeasurement) ([]byte, string, error) {
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	if err != nil {
		return nil, "", err
	}
	if err := json.NewEncoder(enc).Encode(rows); err != nil {
		enc.Close()
		return nil, "", fmt.Errorf("encode archive: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, "", fmt.Errorf("compress archive: %w", err)
	}

	sum := sha256.Sum256(buf.Bytes())
	return buf.Bytes(), hex.EncodeToString(sum[:]), nil
}
