package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"sproutd/services/alerting"
)

func (e *testEnv) addWarning(t *testing.T, potID uuid.UUID, createdAt time.Time) testWarning {
	t.Helper()

	w := testWarning{
		ID:              uuid.New(),
		PotID:           potID,
		MeasurementType: "moisture",
		ThresholdType:   "min",
		ThresholdValue:  30,
		MeasuredValue:   10,
		MeasurementID:   uuid.New(),
		CreatedAt:       createdAt,
	}
	require.NoError(t, e.orm.Create(&w).Error)
	return w
}

func TestListPotWarnings(t *testing.T) {
	env := newTestEnv(t)
	user, userToken := env.addUser(t)
	node, _ := env.addNode(t, user.ID)
	pot := env.addPot(t, node.ID, nil)

	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	older := env.addWarning(t, pot.ID, base)
	newer := env.addWarning(t, pot.ID, base.Add(time.Hour))

	rec := env.do(t, http.MethodGet, "/api/v1/pot/"+pot.ID.String()+"/warning", userToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var warnings []alerting.Warning
	decodeBody(t, rec, &warnings)
	require.Len(t, warnings, 2)
	require.Equal(t, newer.ID, warnings[0].ID, "newest first")
	require.Equal(t, older.ID, warnings[1].ID)
}

func TestListPotWarningsExcludesDismissed(t *testing.T) {
	env := newTestEnv(t)
	user, userToken := env.addUser(t)
	node, _ := env.addNode(t, user.ID)
	pot := env.addPot(t, node.ID, nil)

	active := env.addWarning(t, pot.ID, time.Now().UTC())
	dismissed := env.addWarning(t, pot.ID, time.Now().UTC())
	now := time.Now().UTC()
	require.NoError(t, env.orm.Model(&testWarning{}).Where("id = ?", dismissed.ID).Update("dismissed_at", now).Error)

	rec := env.do(t, http.MethodGet, "/api/v1/pot/"+pot.ID.String()+"/warning", userToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var warnings []alerting.Warning
	decodeBody(t, rec, &warnings)
	require.Len(t, warnings, 1)
	require.Equal(t, active.ID, warnings[0].ID)
}

func TestListNodeWarningsAggregatesPots(t *testing.T) {
	env := newTestEnv(t)
	user, userToken := env.addUser(t)
	node, _ := env.addNode(t, user.ID)
	potA := env.addPot(t, node.ID, nil)
	potB := env.addPot(t, node.ID, nil)

	otherNode, _ := env.addNode(t, user.ID)
	foreignPot := env.addPot(t, otherNode.ID, nil)

	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	wa := env.addWarning(t, potA.ID, base)
	wb := env.addWarning(t, potB.ID, base.Add(time.Hour))
	env.addWarning(t, foreignPot.ID, base.Add(2*time.Hour))

	rec := env.do(t, http.MethodGet, "/api/v1/node/"+node.ID.String()+"/warning", userToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var warnings []alerting.Warning
	decodeBody(t, rec, &warnings)
	require.Len(t, warnings, 2)
	require.Equal(t, wb.ID, warnings[0].ID)
	require.Equal(t, wa.ID, warnings[1].ID)
}

func TestListNodeWarningsForeignUser(t *testing.T) {
	env := newTestEnv(t)
	owner, _ := env.addUser(t)
	node, _ := env.addNode(t, owner.ID)

	_, strangerToken := env.addUser(t)
	rec := env.do(t, http.MethodGet, "/api/v1/node/"+node.ID.String()+"/warning", strangerToken, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDismissWarning(t *testing.T) {
	env := newTestEnv(t)
	user, userToken := env.addUser(t)
	node, _ := env.addNode(t, user.ID)
	pot := env.addPot(t, node.ID, nil)
	warning := env.addWarning(t, pot.ID, time.Now().UTC())

	path := "/api/v1/pot/" + pot.ID.String() + "/warning/" + warning.ID.String() + "/dismiss"

	rec := env.do(t, http.MethodPost, path, userToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Dismissed bool `json:"dismissed"`
	}
	decodeBody(t, rec, &body)
	require.True(t, body.Dismissed)

	// Repeat dismissal succeeds but reports no change.
	rec = env.do(t, http.MethodPost, path, userToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &body)
	require.False(t, body.Dismissed)
}

func TestDismissWarningWrongPot(t *testing.T) {
	env := newTestEnv(t)
	user, userToken := env.addUser(t)
	node, _ := env.addNode(t, user.ID)
	pot := env.addPot(t, node.ID, nil)
	otherPot := env.addPot(t, node.ID, nil)
	warning := env.addWarning(t, otherPot.ID, time.Now().UTC())

	// The warning exists but belongs to a different pot than the URL names.
	rec := env.do(t, http.MethodPost, "/api/v1/pot/"+pot.ID.String()+"/warning/"+warning.ID.String()+"/dismiss", userToken, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDismissWarningUnknown(t *testing.T) {
	env := newTestEnv(t)
	user, userToken := env.addUser(t)
	node, _ := env.addNode(t, user.ID)
	pot := env.addPot(t, node.ID, nil)

	rec := env.do(t, http.MethodPost, "/api/v1/pot/"+pot.ID.String()+"/warning/"+uuid.NewString()+"/dismiss", userToken, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDismissWarningForeignUser(t *testing.T) {
	env := newTestEnv(t)
	owner, _ := env.addUser(t)
	node, _ := env.addNode(t, owner.ID)
	pot := env.addPot(t, node.ID, nil)
	warning := env.addWarning(t, pot.ID, time.Now().UTC())

	_, strangerToken := env.addUser(t)
	rec := env.do(t, http.MethodPost, "/api/v1/pot/"+pot.ID.String()+"/warning/"+warning.ID.String()+"/dismiss", strangerToken, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDismissAllWarnings(t *testing.T) {
	env := newTestEnv(t)
	user, userToken := env.addUser(t)
	node, _ := env.addNode(t, user.ID)
	pot := env.addPot(t, node.ID, nil)

	for i := 0; i < 3; i++ {
		env.addWarning(t, pot.ID, time.Now().UTC())
	}

	rec := env.do(t, http.MethodPost, "/api/v1/pot/"+pot.ID.String()+"/warning/dismiss-all", userToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Dismissed bool `json:"dismissed"`
	}
	decodeBody(t, rec, &body)
	require.True(t, body.Dismissed)

	var active int64
	require.NoError(t, env.orm.Model(&testWarning{}).Where("dismissed_at IS NULL").Count(&active).Error)
	require.EqualValues(t, 0, active)
}

func TestDismissAllWarningsEmptyPot(t *testing.T) {
	env := newTestEnv(t)
	user, userToken := env.addUser(t)
	node, _ := env.addNode(t, user.ID)
	pot := env.addPot(t, node.ID, nil)

	// No active warnings is still a success.
	rec := env.do(t, http.MethodPost, "/api/v1/pot/"+pot.ID.String()+"/warning/dismiss-all", userToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}
