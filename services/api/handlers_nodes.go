package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"sproutd/pkg/metrics"
)

var errNodeNotFound = errors.New("node not found")

func validateName(name string) error {
	if len(name) < 3 || len(name) > 50 {
		return errors.New("name must be 3-50 characters")
	}
	return nil
}

func validateNote(note string) error {
	if len(note) > 200 {
		return errors.New("note must be at most 200 characters")
	}
	return nil
}

func validSeverity(severity string) bool {
	switch severity {
	case "low", "medium", "high":
		return true
	}
	return false
}

// fetchOwnedNode resolves a node id for the given user. Foreign and unknown
// nodes are indistinguishable to the caller by design.
func (a *API) fetchOwnedNode(ctx context.Context, nodeID, userID uuid.UUID) (nodeModel, error) {
	var node nodeModel
	err := a.store.ORM.WithContext(ctx).First(&node, "id = ?", nodeID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nodeModel{}, errNodeNotFound
	case err != nil:
		return nodeModel{}, err
	}
	if !node.ownedBy(userID) {
		return nodeModel{}, errNodeNotFound
	}
	return node, nil
}

func nodeIDParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "nodeID"))
	if err != nil {
		return uuid.Nil, errors.New("valid node id is required")
	}
	return id, nil
}

// handleEnrollNode registers a factory-fresh device: an unowned node plus
// its permanent bearer token.
func (a *API) handleEnrollNode(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()
	orm := a.store.ORM.WithContext(ctx)

	node := nodeModel{
		ID:     uuid.New(),
		Name:   "",
		Status: StatusUnknown,
	}
	node.Name = fmt.Sprintf("node-%s", node.ID)
	if err := orm.Create(&node).Error; err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	token := nodeTokenModel{
		ID:     uuid.New(),
		NodeID: node.ID,
		Token:  uuid.New().String(),
	}
	if err := orm.Create(&token).Error; err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	a.publishJSON(nodesEnrolledTopic, map[string]any{"nodeId": node.ID})
	respondJSON(w, http.StatusCreated, map[string]any{
		"nodeId": node.ID,
		"token":  token.Token,
	})
}

func (a *API) handleCreateNode(w http.ResponseWriter, r *http.Request) {
	user, _ := userFrom(r.Context())

	var req struct {
		Name          string `json:"name"`
		Note          string `json:"note"`
		Status        string `json:"status"`
		DataArchiving string `json:"dataArchiving"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if err := validateName(req.Name); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if err := validateNote(req.Note); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if req.Status == "" {
		req.Status = StatusUnknown
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	userID := user.ID
	model := nodeModel{
		ID:            uuid.New(),
		UserID:        &userID,
		Name:          req.Name,
		Note:          req.Note,
		Status:        req.Status,
		DataArchiving: req.DataArchiving,
	}
	if err := a.store.ORM.WithContext(ctx).Create(&model).Error; err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	respondJSON(w, http.StatusCreated, model.toAPI())
}

func (a *API) handleListNodes(w http.ResponseWriter, r *http.Request) {
	user, _ := userFrom(r.Context())

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	var models []nodeModel
	if err := a.store.ORM.WithContext(ctx).Where("user_id = ?", user.ID).Find(&models).Error; err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	nodes := make([]Node, 0, len(models))
	for _, m := range models {
		nodes = append(nodes, m.toAPI())
	}
	respondJSON(w, http.StatusOK, nodes)
}

func (a *API) handleGetNode(w http.ResponseWriter, r *http.Request) {
	user, _ := userFrom(r.Context())
	nodeID, err := nodeIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	node, err := a.fetchOwnedNode(ctx, nodeID, user.ID)
	if err != nil {
		if errors.Is(err, errNodeNotFound) {
			respondError(w, http.StatusNotFound, err)
			return
		}
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, node.toAPI())
}

func (a *API) handleUpdateNode(w http.ResponseWriter, r *http.Request) {
	user, _ := userFrom(r.Context())
	nodeID, err := nodeIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	var req struct {
		Name          *string `json:"name"`
		Note          *string `json:"note"`
		DataArchiving *string `json:"dataArchiving"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	updates := map[string]any{}
	if req.Name != nil {
		if err := validateName(*req.Name); err != nil {
			respondError(w, http.StatusBadRequest, err)
			return
		}
		updates["name"] = *req.Name
	}
	if req.Note != nil {
		if err := validateNote(*req.Note); err != nil {
			respondError(w, http.StatusBadRequest, err)
			return
		}
		updates["note"] = *req.Note
	}
	if req.DataArchiving != nil {
		updates["data_archiving"] = *req.DataArchiving
	}
	if len(updates) == 0 {
		respondError(w, http.StatusBadRequest, errors.New("no updatable fields provided"))
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()
	orm := a.store.ORM.WithContext(ctx)

	node, err := a.fetchOwnedNode(ctx, nodeID, user.ID)
	if err != nil {
		if errors.Is(err, errNodeNotFound) {
			respondError(w, http.StatusNotFound, err)
			return
		}
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	if err := orm.Model(&node).Updates(updates).Error; err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	if err := orm.First(&node, "id = ?", nodeID).Error; err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, node.toAPI())
}

func (a *API) handleDeleteNode(w http.ResponseWriter, r *http.Request) {
	user, _ := userFrom(r.Context())
	nodeID, err := nodeIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()
	orm := a.store.ORM.WithContext(ctx)

	if _, err := a.fetchOwnedNode(ctx, nodeID, user.ID); err != nil {
		if errors.Is(err, errNodeNotFound) {
			respondError(w, http.StatusNotFound, err)
			return
		}
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	if err := orm.Delete(&nodeModel{}, "id = ?", nodeID).Error; err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleHeartbeat lets a node check in and discover its pots, including any
// threshold configuration updated since the last beat.
func (a *API) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	node, _ := nodeFrom(r.Context())
	nodeID, err := nodeIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if node.ID != nodeID {
		respondError(w, http.StatusNotFound, errNodeNotFound)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()
	orm := a.store.ORM.WithContext(ctx)

	if err := orm.Model(&nodeModel{}).Where("id = ?", node.ID).Update("status", StatusActive).Error; err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	node.Status = StatusActive

	var pots []potModel
	if err := orm.Where("node_id = ?", node.ID).Find(&pots).Error; err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	out := make([]Pot, 0, len(pots))
	for _, p := range pots {
		out = append(out, p.toAPI())
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"node": node.toAPI(),
		"pots": out,
	})
}

func (a *API) handleReportNodeError(w http.ResponseWriter, r *http.Request) {
	node, _ := nodeFrom(r.Context())
	nodeID, err := nodeIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if node.ID != nodeID {
		respondError(w, http.StatusNotFound, errNodeNotFound)
		return
	}

	var req struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		Severity  string `json:"severity"`
		Timestamp string `json:"timestamp"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if req.Code == "" || req.Message == "" {
		respondError(w, http.StatusBadRequest, errors.New("code and message are required"))
		return
	}
	if req.Severity == "" {
		req.Severity = "medium"
	}
	if !validSeverity(req.Severity) {
		respondError(w, http.StatusBadRequest, errors.New("severity must be low, medium or high"))
		return
	}

	ts := time.Now().UTC()
	if req.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339, req.Timestamp)
		if err != nil {
			respondError(w, http.StatusBadRequest, errors.New("timestamp must be RFC3339"))
			return
		}
		ts = parsed.UTC()
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	model := nodeErrorModel{
		ID:        uuid.New(),
		NodeID:    node.ID,
		Code:      req.Code,
		Message:   req.Message,
		Severity:  req.Severity,
		Timestamp: ts,
	}
	if err := a.store.ORM.WithContext(ctx).Create(&model).Error; err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	metrics.NodeErrorsReportedTotal.WithLabelValues(req.Severity).Inc()
	a.publishJSON(nodeErrorsTopic, map[string]any{
		"nodeId":   node.ID,
		"code":     req.Code,
		"severity": req.Severity,
	})
	respondJSON(w, http.StatusCreated, model.toAPI())
}

func (a *API) handleListNodeErrors(w http.ResponseWriter, r *http.Request) {
	user, _ := userFrom(r.Context())

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	q := a.store.ORM.WithContext(ctx).
		Model(&nodeErrorModel{}).
		Joins("JOIN nodes ON nodes.id = node_errors.node_id").
		Where("nodes.user_id = ?", user.ID)

	if raw := r.URL.Query().Get("nodeId"); raw != "" {
		nodeID, err := uuid.Parse(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, errors.New("valid nodeId is required"))
			return
		}
		q = q.Where("node_errors.node_id = ?", nodeID)
	}
	if raw := r.URL.Query().Get("timeStart"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, errors.New("timeStart must be RFC3339"))
			return
		}
		q = q.Where("node_errors.timestamp >= ?", ts)
	}
	if raw := r.URL.Query().Get("timeEnd"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, errors.New("timeEnd must be RFC3339"))
			return
		}
		q = q.Where("node_errors.timestamp <= ?", ts)
	}

	var models []nodeErrorModel
	if err := q.Order("node_errors.timestamp DESC").Limit(listLimit).Find(&models).Error; err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	out := make([]NodeError, 0, len(models))
	for _, m := range models {
		out = append(out, m.toAPI())
	}
	respondJSON(w, http.StatusOK, out)
}
