package notify

import (
	"log/slog"

	"crypto_dash/internal/event"
	"crypto_dash/internal/infra"

	"github.com/dustin/go-humanize"
)

// LogSink writes every event to the structured log.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Publish(ev event.Event) {
	switch e := ev.(type) {
	case event.AlertFiredEvent:
		a := e.Alert
		s.logger.Info("🔔 Price alert fired",
			slog.String("asset", a.AssetName),
			slog.String("label", a.Label),
			slog.String("threshold", "$"+humanize.CommafWithDigits(a.Threshold.InexactFloat64(), 2)),
			slog.String("price", "$"+humanize.CommafWithDigits(a.CurrentPrice.InexactFloat64(), 2)),
		)
	case event.FetchErrorEvent:
		s.logger.Warn("⚠️ Market data fetch failed",
			slog.String("op", e.Op),
			slog.String("error", e.Message),
			slog.Bool("retriable", e.Retriable),
		)
	case event.SnapshotEvent:
		s.logger.Info("📊 Snapshot updated",
			slog.Int("listing", e.ListingSize),
			slog.Int("universe", e.UniverseSize),
			slog.Int("alerts_fired", e.AlertsFired),
			slog.String("fetched", humanize.Time(e.FetchedAt)),
		)
	case event.PredictionEvent:
		r := e.Result
		s.logger.Debug("Prediction updated",
			slog.String("asset", r.AssetID),
			slog.String("direction", string(r.Direction)),
			slog.Float64("confidence", r.ConfidencePct),
		)
	default:
		s.logger.Debug("Event", slog.String("type", string(ev.GetType())))
	}
}

// Fanout publishes each event to every sink in order and counts it.
type Fanout struct {
	sinks   []event.Sink
	metrics *infra.Metrics
}

// NewFanout creates a fan-out sink. nil sinks are skipped; metrics may be nil.
func NewFanout(metrics *infra.Metrics, sinks ...event.Sink) *Fanout {
	f := &Fanout{metrics: metrics}
	for _, s := range sinks {
		if s != nil {
			f.sinks = append(f.sinks, s)
		}
	}
	return f
}

func (f *Fanout) Publish(ev event.Event) {
	if f.metrics != nil {
		f.metrics.RecordEvent()
	}
	for _, s := range f.sinks {
		s.Publish(ev)
	}
}
