package reconcile

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/spinalcom/spinal-organ-connector-azur/capability"
	"github.com/spinalcom/spinal-organ-connector-azur/errors"
	"github.com/spinalcom/spinal-organ-connector-azur/graphstore"
	"github.com/spinalcom/spinal-organ-connector-azur/timeseries"
)

// Outcome is the terminal state of one event's reconciliation
type Outcome int

// Reconciliation outcomes
const (
	OutcomeApplied Outcome = iota
	OutcomeDropped
	OutcomeFailed
)

// String returns the outcome label used in logs and metrics
func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeDropped:
		return "dropped"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Reconciler applies capability events to the graph. One event resolves its
// device and endpoint (creating either on first sight), stamps the device
// with the originating asset id, updates the endpoint's current value, and
// appends the value to the sample history when it is truthy.
type Reconciler struct {
	resolver      *Resolver
	store         graphstore.Store
	recorder      timeseries.Recorder
	retentionDays int
	logger        *slog.Logger
}

// NewReconciler wires the reconciler to its graph and history collaborators
func NewReconciler(
	resolver *Resolver,
	store graphstore.Store,
	recorder timeseries.Recorder,
	retentionDays int,
	logger *slog.Logger,
) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		resolver:      resolver,
		store:         store,
		recorder:      recorder,
		retentionDays: retentionDays,
		logger:        logger,
	}
}

// Apply reconciles one event. Failures are contained to the event: the
// returned outcome is OutcomeFailed together with the cause, and the graph
// is left in whatever consistent prefix of the steps completed.
func (r *Reconciler) Apply(ctx context.Context, evt capability.Event) (Outcome, error) {
	obs, err := capability.ParseObservation(evt.RawValue)
	if err != nil {
		return OutcomeFailed, err
	}

	device, deviceCreated, err := r.resolver.ResolveDevice(ctx, evt.AssetName)
	if err != nil {
		return OutcomeFailed, err
	}
	if deviceCreated {
		r.logger.Info("Created device", "name", evt.AssetName)
	}

	// The asset id is restamped on every event; upstream may reassign it
	if evt.AssetID != "" {
		err = r.store.UpsertAttribute(ctx, device.ID, graphstore.Attribute{
			Category: graphstore.CategoryKardham,
			Key:      graphstore.KeyAssetID,
			Value:    evt.AssetID,
		})
		if err != nil {
			return OutcomeFailed, err
		}
	}

	endpoint, created, err := r.resolver.ResolveEndpoint(ctx, device.ID, evt.CapabilityClass)
	if err != nil {
		return OutcomeFailed, err
	}

	if err := r.store.SetCurrentValue(ctx, endpoint.ID, obs.Value); err != nil {
		return OutcomeFailed, err
	}

	if capability.Truthy(obs.Value) {
		if err := r.recorder.Append(ctx, endpoint.ID, obs.Value, observedAt(obs)); err != nil {
			return OutcomeFailed, errors.Wrap(err, "Reconciler", "Apply", "append sample")
		}
	}

	if created {
		// Retention is advisory metadata attached after the first value lands;
		// a failed write does not fail the event
		attr := graphstore.Attribute{
			Category: graphstore.CategoryDefault,
			Key:      graphstore.KeyMaxDay,
			Value:    strconv.Itoa(r.retentionDays),
		}
		if err := r.store.UpsertAttribute(ctx, endpoint.ID, attr); err != nil {
			r.logger.Warn("Failed to set endpoint retention attribute",
				"endpoint", endpoint.ID, "error", err)
		}
	}

	r.logger.Info("Updated endpoint",
		"device", evt.AssetName,
		"endpoint", evt.CapabilityClass,
		"value", obs.Value)

	return OutcomeApplied, nil
}

func observedAt(obs capability.Observation) time.Time {
	if !obs.ObservationTime.IsZero() {
		return obs.ObservationTime
	}
	return time.Now().UTC()
}
