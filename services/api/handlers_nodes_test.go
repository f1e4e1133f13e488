package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestEnrollNode(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPut, "/api/v1/node", "", nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var body struct {
		NodeID string `json:"nodeId"`
		Token  string `json:"token"`
	}
	decodeBody(t, rec, &body)
	require.NotEmpty(t, body.Token)

	nodeID, err := uuid.Parse(body.NodeID)
	require.NoError(t, err)

	var node nodeModel
	require.NoError(t, env.orm.First(&node, "id = ?", nodeID).Error)
	require.Nil(t, node.UserID, "enrolled node starts unclaimed")
	require.Equal(t, StatusUnknown, node.Status)

	// The issued token works as a device credential immediately.
	rec = env.do(t, http.MethodPost, "/api/v1/node/"+body.NodeID+"/heartbeat", body.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateAndListNodes(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.addUser(t)

	rec := env.do(t, http.MethodPost, "/api/v1/node", token, map[string]any{
		"name": "balcony",
		"note": "south side",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created Node
	decodeBody(t, rec, &created)
	require.Equal(t, "balcony", created.Name)
	require.NotNil(t, created.UserID)

	rec = env.do(t, http.MethodGet, "/api/v1/node", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var nodes []Node
	decodeBody(t, rec, &nodes)
	require.Len(t, nodes, 1)
	require.Equal(t, created.ID, nodes[0].ID)
}

func TestGetNodeOwnership(t *testing.T) {
	env := newTestEnv(t)
	owner, ownerToken := env.addUser(t)
	node, _ := env.addNode(t, owner.ID)

	rec := env.do(t, http.MethodGet, "/api/v1/node/"+node.ID.String(), ownerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Someone else's node reads as missing, not forbidden.
	_, strangerToken := env.addUser(t)
	rec = env.do(t, http.MethodGet, "/api/v1/node/"+node.ID.String(), strangerToken, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateNode(t *testing.T) {
	env := newTestEnv(t)
	owner, token := env.addUser(t)
	node, _ := env.addNode(t, owner.ID)

	rec := env.do(t, http.MethodPatch, "/api/v1/node/"+node.ID.String(), token, map[string]any{
		"note":          "moved indoors",
		"dataArchiving": "s3",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var updated Node
	decodeBody(t, rec, &updated)
	require.Equal(t, "moved indoors", updated.Note)
	require.Equal(t, "s3", updated.DataArchiving)
	require.Equal(t, node.Name, updated.Name)
}

func TestDeleteNode(t *testing.T) {
	env := newTestEnv(t)
	owner, token := env.addUser(t)
	node, _ := env.addNode(t, owner.ID)

	rec := env.do(t, http.MethodDelete, "/api/v1/node/"+node.ID.String(), token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	var count int64
	require.NoError(t, env.orm.Model(&nodeModel{}).Where("id = ?", node.ID).Count(&count).Error)
	require.EqualValues(t, 0, count)
}

func TestHeartbeatReturnsPots(t *testing.T) {
	env := newTestEnv(t)
	owner, _ := env.addUser(t)
	node, nodeToken := env.addNode(t, owner.ID)
	pot := env.addPot(t, node.ID, map[string]any{
		"moisture": map[string]any{"min": 30.0, "max": 70.0},
	})

	rec := env.do(t, http.MethodPost, "/api/v1/node/"+node.ID.String()+"/heartbeat", nodeToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Node Node  `json:"node"`
		Pots []Pot `json:"pots"`
	}
	decodeBody(t, rec, &body)
	require.Equal(t, StatusActive, body.Node.Status)
	require.Len(t, body.Pots, 1)
	require.Equal(t, pot.ID, body.Pots[0].ID)
	require.NotNil(t, body.Pots[0].Thresholds)
}

func TestHeartbeatWrongNodeInURL(t *testing.T) {
	env := newTestEnv(t)
	owner, _ := env.addUser(t)
	_, nodeToken := env.addNode(t, owner.ID)
	other, _ := env.addNode(t, owner.ID)

	// A device cannot beat on behalf of a different node id.
	rec := env.do(t, http.MethodPost, "/api/v1/node/"+other.ID.String()+"/heartbeat", nodeToken, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReportAndListNodeErrors(t *testing.T) {
	env := newTestEnv(t)
	owner, userToken := env.addUser(t)
	node, nodeToken := env.addNode(t, owner.ID)

	rec := env.do(t, http.MethodPost, "/api/v1/node/"+node.ID.String()+"/error", nodeToken, map[string]any{
		"code":      "SENSOR_FAIL",
		"message":   "moisture probe unresponsive",
		"severity":  "high",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	// Severity defaults to medium when omitted.
	rec = env.do(t, http.MethodPost, "/api/v1/node/"+node.ID.String()+"/error", nodeToken, map[string]any{
		"code":    "LOW_BATTERY",
		"message": "battery at 9%",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var reported NodeError
	decodeBody(t, rec, &reported)
	require.Equal(t, "medium", reported.Severity)

	rec = env.do(t, http.MethodGet, "/api/v1/node/error?nodeId="+node.ID.String(), userToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var errs []NodeError
	decodeBody(t, rec, &errs)
	require.Len(t, errs, 2)
}

func TestReportNodeErrorValidation(t *testing.T) {
	env := newTestEnv(t)
	owner, _ := env.addUser(t)
	node, nodeToken := env.addNode(t, owner.ID)
	path := "/api/v1/node/" + node.ID.String() + "/error"

	rec := env.do(t, http.MethodPost, path, nodeToken, map[string]any{"message": "no code"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, path, nodeToken, map[string]any{
		"code":     "X",
		"message":  "bad severity",
		"severity": "catastrophic",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListNodeErrorsScopedToOwner(t *testing.T) {
	env := newTestEnv(t)
	owner, _ := env.addUser(t)
	node, nodeToken := env.addNode(t, owner.ID)

	rec := env.do(t, http.MethodPost, "/api/v1/node/"+node.ID.String()+"/error", nodeToken, map[string]any{
		"code":    "SENSOR_FAIL",
		"message": "probe down",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	_, strangerToken := env.addUser(t)
	rec = env.do(t, http.MethodGet, "/api/v1/node/error", strangerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var errs []NodeError
	decodeBody(t, rec, &errs)
	require.Empty(t, errs)
}
