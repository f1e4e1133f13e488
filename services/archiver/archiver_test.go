package archiver

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/require"
)

func TestEncodeArchiveRoundTrip(t *testing.T) {
	rows := []archivedMeasurement{
		{ID: uuid.New(), PotID: uuid.New(), Timestamp: time.Now().UTC().Truncate(time.Second), Value: 42.5, Type: "moisture"},
		{ID: uuid.New(), PotID: uuid.New(), Timestamp: time.Now().UTC().Truncate(time.Second), Value: 17, Type: "temperature"},
	}

	payload, digest, err := encodeArchive(rows)
	require.NoError(t, err)

	sum := sha256.Sum256(payload)
	require.Equal(t, hex.EncodeToString(sum[:]), digest)

	dec, err := zstd.NewReader(bytes.NewReader(payload))
	require.NoError(t, err)
	defer dec.Close()

	raw, err := io.ReadAll(dec)
	require.NoError(t, err)

	var decoded []archivedMeasurement
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Len(t, decoded, 2)
	require.Equal(t, rows[0].ID, decoded[0].ID)
	require.Equal(t, rows[1].Type, decoded[1].Type)
}

func TestArchiveKeyLayout(t *testing.T) {
	nodeID := uuid.MustParse("6d1f3f7a-9e17-4a3b-8b7b-111111111111")
	at := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	key := archiveKey(nodeID, at)
	require.Equal(t, "archives/6d1f3f7a-9e17-4a3b-8b7b-111111111111/20260314T092653Z.json.zst", key)
}
