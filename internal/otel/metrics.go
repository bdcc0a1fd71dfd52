package otel

import "go.opentelemetry.io/otel/metric"

// Metrics holds all Greenlight metrics instruments.
type Metrics struct {
	MessagesReceived  metric.Int64Counter
	MessagesPersisted metric.Int64Counter
	PersistErrors     metric.Int64Counter
	CallsRegistered   metric.Int64Counter
	CallsResolved     metric.Int64Counter
	CallsTimedOut     metric.Int64Counter
	CallsPending      metric.Int64UpDownCounter
	InlineApprovals   metric.Int64Counter
	Navigations       metric.Int64Counter
	InvalidEnvelopes  metric.Int64Counter
	PushReconnects    metric.Int64Counter
	ResolveDuration   metric.Float64Histogram
	DispatchDuration  metric.Float64Histogram
}

// NewMetrics creates all metric instruments from the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.MessagesReceived, err = meter.Int64Counter("greenlight.messages.received",
		metric.WithDescription("Push messages received, by kind"),
	)
	if err != nil {
		return nil, err
	}

	m.MessagesPersisted, err = meter.Int64Counter("greenlight.messages.persisted",
		metric.WithDescription("Messages written to the store"),
	)
	if err != nil {
		return nil, err
	}

	m.PersistErrors, err = meter.Int64Counter("greenlight.messages.persist_errors",
		metric.WithDescription("Message store write failures"),
	)
	if err != nil {
		return nil, err
	}

	m.CallsRegistered, err = meter.Int64Counter("greenlight.calls.registered",
		metric.WithDescription("Tool calls registered for approval"),
	)
	if err != nil {
		return nil, err
	}

	m.CallsResolved, err = meter.Int64Counter("greenlight.calls.resolved",
		metric.WithDescription("Tool calls resolved by an approval or result message"),
	)
	if err != nil {
		return nil, err
	}

	m.CallsTimedOut, err = meter.Int64Counter("greenlight.calls.timeouts",
		metric.WithDescription("Tool calls rejected by the stale sweep"),
	)
	if err != nil {
		return nil, err
	}

	m.CallsPending, err = meter.Int64UpDownCounter("greenlight.calls.pending",
		metric.WithDescription("Tool calls currently awaiting an outcome"),
	)
	if err != nil {
		return nil, err
	}

	m.InlineApprovals, err = meter.Int64Counter("greenlight.route.inline",
		metric.WithDescription("Approvals surfaced inline in the active conversation"),
	)
	if err != nil {
		return nil, err
	}

	m.Navigations, err = meter.Int64Counter("greenlight.route.navigations",
		metric.WithDescription("Navigations to a message detail view"),
	)
	if err != nil {
		return nil, err
	}

	m.InvalidEnvelopes, err = meter.Int64Counter("greenlight.push.invalid",
		metric.WithDescription("Push frames rejected by envelope validation"),
	)
	if err != nil {
		return nil, err
	}

	m.PushReconnects, err = meter.Int64Counter("greenlight.push.reconnects",
		metric.WithDescription("Push connection reconnect attempts"),
	)
	if err != nil {
		return nil, err
	}

	m.ResolveDuration, err = meter.Float64Histogram("greenlight.calls.resolve_duration",
		metric.WithDescription("Time from call registration to resolution in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.DispatchDuration, err = meter.Float64Histogram("greenlight.dispatch.duration",
		metric.WithDescription("Remote dispatch round trip duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}
