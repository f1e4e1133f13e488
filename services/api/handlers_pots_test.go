package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreatePot(t *testing.T) {
	env := newTestEnv(t)
	owner, token := env.addUser(t)
	node, _ := env.addNode(t, owner.ID)

	rec := env.do(t, http.MethodPost, "/api/v1/node/"+node.ID.String()+"/pot", token, map[string]any{
		"name":          "basil",
		"note":          "kitchen window",
		"reportingTime": "06:00",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created Pot
	decodeBody(t, rec, &created)
	require.Equal(t, "basil", created.Name)
	require.Equal(t, node.ID, created.NodeID)
	require.Equal(t, StatusUnknown, created.Status)
	require.Nil(t, created.Thresholds, "new pots start without thresholds")
}

func TestCreatePotForeignNode(t *testing.T) {
	env := newTestEnv(t)
	owner, _ := env.addUser(t)
	node, _ := env.addNode(t, owner.ID)

	_, strangerToken := env.addUser(t)
	rec := env.do(t, http.MethodPost, "/api/v1/node/"+node.ID.String()+"/pot", strangerToken, map[string]any{
		"name": "basil",
	})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListPots(t *testing.T) {
	env := newTestEnv(t)
	owner, token := env.addUser(t)
	node, _ := env.addNode(t, owner.ID)
	env.addPot(t, node.ID, nil)
	env.addPot(t, node.ID, nil)

	otherNode, _ := env.addNode(t, owner.ID)
	env.addPot(t, otherNode.ID, nil)

	rec := env.do(t, http.MethodGet, "/api/v1/node/"+node.ID.String()+"/pot", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var pots []Pot
	decodeBody(t, rec, &pots)
	require.Len(t, pots, 2)
}

func TestGetPotThroughOwnershipChain(t *testing.T) {
	env := newTestEnv(t)
	owner, ownerToken := env.addUser(t)
	node, _ := env.addNode(t, owner.ID)
	pot := env.addPot(t, node.ID, map[string]any{
		"moisture": map[string]any{"min": 30.0, "max": 70.0},
	})

	rec := env.do(t, http.MethodGet, "/api/v1/pot/"+pot.ID.String(), ownerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got Pot
	decodeBody(t, rec, &got)
	require.Equal(t, pot.ID, got.ID)
	require.Contains(t, got.Thresholds, "moisture")

	_, strangerToken := env.addUser(t)
	rec = env.do(t, http.MethodGet, "/api/v1/pot/"+pot.ID.String(), strangerToken, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdatePotThresholdsStoredVerbatim(t *testing.T) {
	env := newTestEnv(t)
	owner, token := env.addUser(t)
	node, _ := env.addNode(t, owner.ID)
	pot := env.addPot(t, node.ID, nil)

	// Inverted bounds are accepted as-is; the evaluator deals with them.
	rec := env.do(t, http.MethodPatch, "/api/v1/pot/"+pot.ID.String(), token, map[string]any{
		"thresholds": map[string]any{
			"moisture": map[string]any{"min": 60.0, "max": 40.0},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var updated Pot
	decodeBody(t, rec, &updated)
	moisture, ok := updated.Thresholds["moisture"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, 60.0, moisture["min"])
	require.Equal(t, 40.0, moisture["max"])
}

func TestUpdatePotEmptyPatch(t *testing.T) {
	env := newTestEnv(t)
	owner, token := env.addUser(t)
	node, _ := env.addNode(t, owner.ID)
	pot := env.addPot(t, node.ID, nil)

	rec := env.do(t, http.MethodPatch, "/api/v1/pot/"+pot.ID.String(), token, map[string]any{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeletePot(t *testing.T) {
	env := newTestEnv(t)
	owner, token := env.addUser(t)
	node, _ := env.addNode(t, owner.ID)
	pot := env.addPot(t, node.ID, nil)

	rec := env.do(t, http.MethodDelete, "/api/v1/pot/"+pot.ID.String(), token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	var count int64
	require.NoError(t, env.orm.Model(&potModel{}).Where("id = ?", pot.ID).Count(&count).Error)
	require.EqualValues(t, 0, count)
}
