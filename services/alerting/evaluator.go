package alerting

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"sproutd/pkg/metrics"
)

// Measurement carries the fields of an already-persisted measurement that
// threshold evaluation needs.
type Measurement struct {
	ID    uuid.UUID
	PotID uuid.UUID
	Value float64
	Type  string
}

// Pot carries the owning pot's identity and its raw thresholds blob as
// stored. The caller has already fetched the pot; the evaluator performs no
// lookups of its own.
type Pot struct {
	ID         uuid.UUID
	Thresholds map[string]any
}

// Evaluator compares accepted measurements against the owning pot's
// configured thresholds and records a warning per crossed bound.
type Evaluator struct {
	store *Store
	log   zerolog.Logger
}

// NewEvaluator builds an Evaluator writing to the given warning store.
func NewEvaluator(store *Store, log zerolog.Logger) (*Evaluator, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	return &Evaluator{store: store, log: log}, nil
}

// Evaluate checks the measurement against the threshold configured for its
// type and creates one warning per violated bound. Comparison is strict: a
// value exactly on a bound does not breach it. An inverted configuration
// (min > max) can legitimately produce two warnings.
//
// Warning creation is best-effort bookkeeping on top of an already-committed
// measurement write: a failure on one bound does not stop the other, and the
// ingest path is expected to log and discard the returned error rather than
// fail the device's request.
func (e *Evaluator) Evaluate(ctx context.Context, m Measurement, pot Pot) ([]Warning, error) {
	threshold, ok := ParseThresholds(pot.Thresholds)[m.Type]
	if !ok {
		return nil, nil
	}

	var (
		created []Warning
		errs    []error
	)

	if threshold.Min != nil && m.Value < *threshold.Min {
		w, err := e.create(ctx, m, ThresholdMin, *threshold.Min)
		if err != nil {
			errs = append(errs, err)
		} else {
			created = append(created, w)
		}
	}

	if threshold.Max != nil && m.Value > *threshold.Max {
		w, err := e.create(ctx, m, ThresholdMax, *threshold.Max)
		if err != nil {
			errs = append(errs, err)
		} else {
			created = append(created, w)
		}
	}

	return created, errors.Join(errs...)
}

func (e *Evaluator) create(ctx context.Context, m Measurement, thresholdType ThresholdType, bound float64) (Warning, error) {
	w, err := e.store.Create(ctx, m.PotID, m.Type, thresholdType, bound, m.Value, m.ID)
	if err != nil {
		e.log.Error().Err(err).
			Str("pot_id", m.PotID.String()).
			Str("measurement_id", m.ID.String()).
			Str("threshold_type", string(thresholdType)).
			Msg("record threshold warning")
		return Warning{}, err
	}

	metrics.WarningsCreatedTotal.WithLabelValues(string(thresholdType)).Inc()
	e.log.Info().
		Str("pot_id", m.PotID.String()).
		Str("type", m.Type).
		Str("threshold_type", string(thresholdType)).
		Float64("threshold_value", bound).
		Float64("measured_value", m.Value).
		Msg("threshold breached")
	return w, nil
}
