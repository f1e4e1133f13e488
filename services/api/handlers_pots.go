package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var errPotNotFound = errors.New("pot not found")

func potIDParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "potID"))
	if err != nil {
		return uuid.Nil, errors.New("valid pot id is required")
	}
	return id, nil
}

// fetchUserPot resolves a pot for a user through the pot -> node -> user
// ownership chain. Any break in the chain is a plain not-found so callers
// cannot probe for foreign pots.
func (a *API) fetchUserPot(ctx context.Context, potID, userID uuid.UUID) (potModel, error) {
	var pot potModel
	err := a.store.ORM.WithContext(ctx).First(&pot, "id = ?", potID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return potModel{}, errPotNotFound
	case err != nil:
		return potModel{}, err
	}

	var node nodeModel
	err = a.store.ORM.WithContext(ctx).First(&node, "id = ?", pot.NodeID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return potModel{}, errPotNotFound
	case err != nil:
		return potModel{}, err
	}
	if !node.ownedBy(userID) {
		return potModel{}, errPotNotFound
	}
	return pot, nil
}

func (a *API) handleCreatePot(w http.ResponseWriter, r *http.Request) {
	user, _ := userFrom(r.Context())
	nodeID, err := nodeIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	var req struct {
		Name          string `json:"name"`
		Note          string `json:"note"`
		Status        string `json:"status"`
		ReportingTime string `json:"reportingTime"`
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

	if _, err := a.fetchOwnedNode(ctx, nodeID, user.ID); err != nil {
		if errors.Is(err, errNodeNotFound) {
			respondError(w, http.StatusNotFound, err)
			return
		}
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	model := potModel{
		ID:            uuid.New(),
		NodeID:        nodeID,
		Name:          req.Name,
		Note:          req.Note,
		Status:        req.Status,
		ReportingTime: req.ReportingTime,
		Thresholds:    toJSONMap(nil),
	}
	if err := a.store.ORM.WithContext(ctx).Create(&model).Error; err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	respondJSON(w, http.StatusCreated, model.toAPI())
}

func (a *API) handleListPots(w http.ResponseWriter, r *http.Request) {
	user, _ := userFrom(r.Context())
	nodeID, err := nodeIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	if _, err := a.fetchOwnedNode(ctx, nodeID, user.ID); err != nil {
		if errors.Is(err, errNodeNotFound) {
			respondError(w, http.StatusNotFound, err)
			return
		}
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	var models []potModel
	if err := a.store.ORM.WithContext(ctx).Where("node_id = ?", nodeID).Find(&models).Error; err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	pots := make([]Pot, 0, len(models))
	for _, m := range models {
		pots = append(pots, m.toAPI())
	}
	respondJSON(w, http.StatusOK, pots)
}

func (a *API) handleGetPot(w http.ResponseWriter, r *http.Request) {
	user, _ := userFrom(r.Context())
	potID, err := potIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	pot, err := a.fetchUserPot(ctx, potID, user.ID)
	if err != nil {
		if errors.Is(err, errPotNotFound) {
			respondError(w, http.StatusNotFound, err)
			return
		}
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, pot.toAPI())
}

func (a *API) handleUpdatePot(w http.ResponseWriter, r *http.Request) {
	user, _ := userFrom(r.Context())
	potID, err := potIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	var req struct {
		Name          *string        `json:"name"`
		Note          *string        `json:"note"`
		ReportingTime *string        `json:"reportingTime"`
		Thresholds    map[string]any `json:"thresholds"`
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
	if req.ReportingTime != nil {
		updates["reporting_time"] = *req.ReportingTime
	}
	if req.Thresholds != nil {
		// Stored verbatim. A min above its max is an operator mistake the
		// evaluator knowingly honours, not something to reject here.
		updates["thresholds"] = toJSONMap(req.Thresholds)
	}
	if len(updates) == 0 {
		respondError(w, http.StatusBadRequest, errors.New("no updatable fields provided"))
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()
	orm := a.store.ORM.WithContext(ctx)

	pot, err := a.fetchUserPot(ctx, potID, user.ID)
	if err != nil {
		if errors.Is(err, errPotNotFound) {
			respondError(w, http.StatusNotFound, err)
			return
		}
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	if err := orm.Model(&pot).Updates(updates).Error; err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	if err := orm.First(&pot, "id = ?", potID).Error; err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, pot.toAPI())
}

func (a *API) handleDeletePot(w http.ResponseWriter, r *http.Request) {
	user, _ := userFrom(r.Context())
	potID, err := potIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	if _, err := a.fetchUserPot(ctx, potID, user.ID); err != nil {
		if errors.Is(err, errPotNotFound) {
			respondError(w, http.StatusNotFound, err)
			return
		}
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	if err := a.store.ORM.WithContext(ctx).Delete(&potModel{}, "id = ?", potID).Error; err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
