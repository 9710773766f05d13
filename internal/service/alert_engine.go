package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"crypto_dash/internal/domain"
	"crypto_dash/internal/event"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AlertEngine stores one-shot price alerts and evaluates them against snapshots.
// The in-memory book is a write-through cache of the persisted one.
type AlertEngine struct {
	mu    sync.Mutex
	store domain.KeyValueStore
	sink  event.Sink
	rules domain.AlertBook
	now   func() time.Time
}

// NewAlertEngine creates an engine with an empty book. Call Load to restore
// persisted rules. sink may be nil.
func NewAlertEngine(store domain.KeyValueStore, sink event.Sink) *AlertEngine {
	if sink == nil {
		sink = event.Discard
	}
	return &AlertEngine{
		store: store,
		sink:  sink,
		rules: make(domain.AlertBook),
		now:   time.Now,
	}
}

// Load replaces the in-memory book with the persisted one.
func (e *AlertEngine) Load(ctx context.Context) error {
	var book domain.AlertBook
	found, err := e.store.Get(ctx, domain.KeyAlerts, &book)
	if err != nil {
		return fmt.Errorf("load alerts: %w", err)
	}
	if !found || book == nil {
		book = make(domain.AlertBook)
	}

	e.mu.Lock()
	e.rules = book
	e.mu.Unlock()
	return nil
}

// AddRule arms a new threshold for assetID and persists the book.
func (e *AlertEngine) AddRule(ctx context.Context, assetID string, threshold decimal.Decimal, label string) (domain.AlertRule, error) {
	assetID = strings.TrimSpace(assetID)
	if assetID == "" {
		return domain.AlertRule{}, &domain.ValidationError{Field: "asset", Reason: "required"}
	}
	if !threshold.IsPositive() {
		return domain.AlertRule{}, &domain.ValidationError{Field: "threshold", Reason: "must be greater than zero"}
	}

	rule := domain.AlertRule{
		ID:        uuid.NewString(),
		AssetID:   assetID,
		Threshold: threshold,
		Label:     strings.TrimSpace(label),
		CreatedAt: e.now(),
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	next := e.rules.Clone()
	next[assetID] = append(next[assetID], rule)
	if err := e.store.Set(ctx, domain.KeyAlerts, next); err != nil {
		return domain.AlertRule{}, fmt.Errorf("persist alerts: %w", err)
	}
	e.rules = next

	slog.Info("Alert armed", slog.String("asset", assetID), slog.String("threshold", threshold.String()))
	return rule, nil
}

// RemoveRule disarms a rule by id.
func (e *AlertEngine) RemoveRule(ctx context.Context, ruleID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	next := e.rules.Clone()
	removed := false
	for assetID, rules := range next {
		for i, r := range rules {
			if r.ID != ruleID {
				continue
			}
			rules = append(rules[:i:i], rules[i+1:]...)
			if len(rules) == 0 {
				delete(next, assetID)
			} else {
				next[assetID] = rules
			}
			removed = true
			break
		}
		if removed {
			break
		}
	}
	if !removed {
		return &domain.NotFoundError{Query: ruleID}
	}

	if err := e.store.Set(ctx, domain.KeyAlerts, next); err != nil {
		return fmt.Errorf("persist alerts: %w", err)
	}
	e.rules = next
	return nil
}

// Rules returns a copy of the armed book.
func (e *AlertEngine) Rules() domain.AlertBook {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rules.Clone()
}

// Evaluate fires every armed rule whose asset price in snap has reached its
// threshold. Assets are visited in snap.All() order and rules in insertion
// order. Fired rules are removed and the book is persisted once.
func (e *AlertEngine) Evaluate(ctx context.Context, snap *domain.MarketSnapshot) []domain.FiredAlert {
	if snap == nil {
		return nil
	}

	e.mu.Lock()
	var fired []domain.FiredAlert
	now := e.now()
	for _, a := range snap.All() {
		rules, ok := e.rules[a.ID]
		if !ok {
			continue
		}
		armed := rules[:0:0]
		for _, r := range rules {
			if !r.CheckCondition(a.CurrentPrice) {
				armed = append(armed, r)
				continue
			}
			fired = append(fired, domain.FiredAlert{
				RuleID:       r.ID,
				AssetID:      a.ID,
				AssetName:    a.Name,
				Label:        r.Label,
				Threshold:    r.Threshold,
				CurrentPrice: a.CurrentPrice,
				FiredAt:      now,
			})
		}
		if len(armed) == 0 {
			delete(e.rules, a.ID)
		} else {
			e.rules[a.ID] = armed
		}
	}

	var persistErr error
	if len(fired) > 0 {
		persistErr = e.store.Set(ctx, domain.KeyAlerts, e.rules)
	}
	e.mu.Unlock()

	if persistErr != nil {
		// Fired rules stay disarmed in memory; the next mutation retries the write.
		slog.Error("Failed to persist alerts after evaluation", slog.Any("error", persistErr))
	}

	for _, f := range fired {
		e.sink.Publish(event.AlertFiredEvent{BaseEvent: event.BaseEvent{Ts: now}, Alert: f})
	}
	return fired
}
