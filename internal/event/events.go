package event

import (
	"time"

	"crypto_dash/internal/domain"
)

// Type defines the type of event.
type Type string

const (
	EvAlertFired      Type = "alert_fired"
	EvFetchError      Type = "fetch_error"
	EvSnapshotUpdated Type = "snapshot_updated"
	EvPrediction      Type = "prediction"
)

// Event is the interface for all notifications pushed to the presentation layer.
type Event interface {
	GetType() Type
	GetTs() time.Time
}

// BaseEvent contains common fields for all events.
type BaseEvent struct {
	Ts time.Time `json:"ts"`
}

func (e BaseEvent) GetTs() time.Time { return e.Ts }

// AlertFiredEvent is emitted once per one-shot rule that fired.
type AlertFiredEvent struct {
	BaseEvent
	Alert domain.FiredAlert `json:"alert"`
}

func (e AlertFiredEvent) GetType() Type { return EvAlertFired }

// FetchErrorEvent is emitted once per failed refresh or chart load.
type FetchErrorEvent struct {
	BaseEvent
	Op        string `json:"op"`
	Message   string `json:"message"`
	Retriable bool   `json:"retriable"`
}

func (e FetchErrorEvent) GetType() Type { return EvFetchError }

// SnapshotEvent announces that a new snapshot went live.
type SnapshotEvent struct {
	BaseEvent
	FetchedAt     time.Time `json:"fetched_at"`
	ListingSize   int       `json:"listing_size"`
	UniverseSize  int       `json:"universe_size"`
	AlertsFired   int       `json:"alerts_fired"`
	PortfolioSize int       `json:"portfolio_size"`
}

func (e SnapshotEvent) GetType() Type { return EvSnapshotUpdated }

// PredictionEvent carries a refreshed chart projection for a watched asset.
type PredictionEvent struct {
	BaseEvent
	Result domain.PredictionResult `json:"result"`
}

func (e PredictionEvent) GetType() Type { return EvPrediction }

// NewFetchError builds a FetchErrorEvent from an upstream error.
func NewFetchError(op string, err error, now time.Time) FetchErrorEvent {
	return FetchErrorEvent{
		BaseEvent: BaseEvent{Ts: now},
		Op:        op,
		Message:   err.Error(),
		Retriable: domain.IsRetriable(err),
	}
}

// Sink accepts structured events. Implementations must not block the caller
// for longer than it takes to enqueue the event.
type Sink interface {
	Publish(ev Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

func (f SinkFunc) Publish(ev Event) { f(ev) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})

// Envelope is the wire form of an event.
type Envelope struct {
	Seq     uint64 `json:"seq"`
	Type    Type   `json:"type"`
	Ts      int64  `json:"ts"` // unix millis
	Payload Event  `json:"payload"`
}

// Wrap puts ev in an Envelope with the given sequence number.
func Wrap(seq uint64, ev Event) Envelope {
	return Envelope{Seq: seq, Type: ev.GetType(), Ts: ev.GetTs().UnixMilli(), Payload: ev}
}
