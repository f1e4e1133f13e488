package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testWarning mirrors the warnings table owned by the alerting package.
type testWarning struct {
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

func (testWarning) TableName() string { return "warnings" }

type testEnv struct {
	orm     *gorm.DB
	handler http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	orm, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, orm.AutoMigrate(
		&userModel{},
		&userTokenModel{},
		&nodeModel{},
		&nodeTokenModel{},
		&potModel{},
		&measurementModel{},
		&nodeErrorModel{},
		&testWarning{},
	))

	apiSrv, err := New(&Store{ORM: orm}, Config{}, zerolog.Nop())
	require.NoError(t, err)

	handler, err := apiSrv.Routes()
	require.NoError(t, err)

	return &testEnv{orm: orm, handler: handler}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dest))
}

// addUser creates a user plus a valid session token.
func (e *testEnv) addUser(t *testing.T) (userModel, string) {
	t.Helper()

	user := userModel{
		ID:           uuid.New(),
		Username:     "gardener",
		Email:        fmt.Sprintf("%s@example.com", uuid.NewString()[:8]),
		PasswordHash: "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef",
	}
	require.NoError(t, e.orm.Create(&user).Error)

	token := userTokenModel{
		ID:        uuid.New(),
		UserID:    user.ID,
		Token:     uuid.NewString(),
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	}
	require.NoError(t, e.orm.Create(&token).Error)
	return user, token.Token
}

// addNode creates a claimed node for the user plus its device token.
func (e *testEnv) addNode(t *testing.T, userID uuid.UUID) (nodeModel, string) {
	t.Helper()

	uid := userID
	node := nodeModel{
		ID:     uuid.New(),
		UserID: &uid,
		Name:   "greenhouse-node",
		Status: StatusActive,
	}
	require.NoError(t, e.orm.Create(&node).Error)

	token := nodeTokenModel{
		ID:     uuid.New(),
		NodeID: node.ID,
		Token:  uuid.NewString(),
	}
	require.NoError(t, e.orm.Create(&token).Error)
	return node, token.Token
}

func (e *testEnv) addPot(t *testing.T, nodeID uuid.UUID, thresholds map[string]any) potModel {
	t.Helper()

	pot := potModel{
		ID:         uuid.New(),
		NodeID:     nodeID,
		Name:       "basil",
		Status:     StatusActive,
		Thresholds: toJSONMap(thresholds),
	}
	require.NoError(t, e.orm.Create(&pot).Error)
	return pot
}
