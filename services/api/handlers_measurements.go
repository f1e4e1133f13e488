package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"sproutd/pkg/metrics"
	"sproutd/services/alerting"
)

const listLimit = 1000

func validateMeasurementValue(v float64) error {
	if v < 0 || v > 100 {
		return errors.New("value must be between 0 and 100")
	}
	return nil
}

// timeRange reads optional timeStart/timeEnd query parameters.
func timeRange(r *http.Request) (start, end *time.Time, err error) {
	if raw := r.URL.Query().Get("timeStart"); raw != "" {
		t, perr := time.Parse(time.RFC3339, raw)
		if perr != nil {
			return nil, nil, errors.New("timeStart must be RFC3339")
		}
		start = &t
	}
	if raw := r.URL.Query().Get("timeEnd"); raw != "" {
		t, perr := time.Parse(time.RFC3339, raw)
		if perr != nil {
			return nil, nil, errors.New("timeEnd must be RFC3339")
		}
		end = &t
	}
	return start, end, nil
}

func (a *API) handleCreateMeasurement(w http.ResponseWriter, r *http.Request) {
	node, ok := nodeFrom(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, errors.New("missing node"))
		return
	}
	potID, err := potIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	var req struct {
		Timestamp string  `json:"timestamp"`
		Value     float64 `json:"value"`
		Type      string  `json:"type"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if req.Type == "" {
		respondError(w, http.StatusBadRequest, errors.New("type is required"))
		return
	}
	if err := validateMeasurementValue(req.Value); err != nil {
		respondError(w, http.StatusBadRequest, err)
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
	orm := a.store.ORM.WithContext(ctx)

	var pot potModel
	err = orm.First(&pot, "id = ?", potID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		respondError(w, http.StatusNotFound, errPotNotFound)
		return
	case err != nil:
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	if pot.NodeID != node.ID {
		respondError(w, http.StatusNotFound, errPotNotFound)
		return
	}

	model := measurementModel{
		ID:        uuid.New(),
		PotID:     potID,
		Timestamp: ts,
		Value:     req.Value,
		Type:      req.Type,
	}
	if err := orm.Create(&model).Error; err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	metrics.MeasurementsIngestedTotal.WithLabelValues(model.Type).Inc()
	a.publishJSON(measurementCreatedTopic, model.toAPI())

	// Threshold evaluation is bookkeeping on top of the ingest. A failure
	// here must never turn a stored measurement into a client-visible error.
	warnings, evalErr := a.evaluator.Evaluate(ctx, alerting.Measurement{
		ID:    model.ID,
		PotID: model.PotID,
		Value: model.Value,
		Type:  model.Type,
	}, alerting.Pot{
		ID:         pot.ID,
		Thresholds: mapFromJSONMap(pot.Thresholds),
	})
	if evalErr != nil {
		a.log.Warn().Err(evalErr).
			Str("pot_id", potID.String()).
			Str("measurement_id", model.ID.String()).
			Msg("threshold evaluation incomplete")
	}
	for _, warning := range warnings {
		a.publishJSON(warningCreatedTopic, warning)
	}

	respondJSON(w, http.StatusCreated, model.toAPI())
}

func (a *API) handleListMeasurements(w http.ResponseWriter, r *http.Request) {
	user, _ := userFrom(r.Context())
	potID, err := potIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	start, end, err := timeRange(r)
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

	q := a.store.ORM.WithContext(ctx).Where("pot_id = ?", potID)
	if start != nil {
		q = q.Where("timestamp >= ?", *start)
	}
	if end != nil {
		q = q.Where("timestamp <= ?", *end)
	}

	var models []measurementModel
	if err := q.Order("timestamp DESC").Limit(listLimit).Find(&models).Error; err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	measurements := make([]Measurement, 0, len(models))
	for _, m := range models {
		measurements = append(measurements, m.toAPI())
	}
	respondJSON(w, http.StatusOK, measurements)
}
