package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"sproutd/pkg/metrics"
	"sproutd/services/alerting"
)

var errWarningNotFound = errors.New("warning not found")

func warningIDParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "warningID"))
	if err != nil {
		return uuid.Nil, errors.New("valid warning id is required")
	}
	return id, nil
}

func (a *API) handleListPotWarnings(w http.ResponseWriter, r *http.Request) {
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

	warnings, err := a.warnings.ListActiveByPot(ctx, potID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, warnings)
}

func (a *API) handleListNodeWarnings(w http.ResponseWriter, r *http.Request) {
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

	warnings, err := a.warnings.ListActiveByNode(ctx, nodeID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, warnings)
}

func (a *API) handleDismissWarning(w http.ResponseWriter, r *http.Request) {
	user, _ := userFrom(r.Context())
	potID, err := potIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	warningID, err := warningIDParam(r)
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

	// The warning must live under the pot named in the URL; a mismatch is
	// indistinguishable from a missing warning to the caller.
	warning, err := a.warnings.Get(ctx, warningID)
	switch {
	case errors.Is(err, alerting.ErrNotFound):
		respondError(w, http.StatusNotFound, errWarningNotFound)
		return
	case err != nil:
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	if warning.PotID != potID {
		respondError(w, http.StatusNotFound, errWarningNotFound)
		return
	}

	dismissed, err := a.warnings.Dismiss(ctx, warningID)
	switch {
	case errors.Is(err, alerting.ErrNotFound):
		respondError(w, http.StatusNotFound, errWarningNotFound)
		return
	case err != nil:
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	if dismissed {
		metrics.WarningsDismissedTotal.Inc()
	}

	respondJSON(w, http.StatusOK, map[string]any{"dismissed": dismissed})
}

func (a *API) handleDismissAllWarnings(w http.ResponseWriter, r *http.Request) {
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

	if err := a.warnings.DismissAll(ctx, potID); err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"dismissed": true})
}
