package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AlertRule is a one-shot price threshold on a single asset.
// A rule is armed until the asset price reaches the threshold, then it is removed.
type AlertRule struct {
	ID        string          `json:"id"`
	AssetID   string          `json:"asset_id"`
	Threshold decimal.Decimal `json:"threshold"`
	Label     string          `json:"label"`
	CreatedAt time.Time       `json:"created_at"`
}

// CheckCondition reports whether the rule fires at currentPrice.
// Only the upward crossing exists: currentPrice >= Threshold.
func (r AlertRule) CheckCondition(currentPrice decimal.Decimal) bool {
	return currentPrice.GreaterThanOrEqual(r.Threshold)
}

// AlertBook maps asset id to its armed rules in insertion order.
type AlertBook map[string][]AlertRule

// Count returns the number of armed rules across all assets.
func (b AlertBook) Count() int {
	n := 0
	for _, rules := range b {
		n += len(rules)
	}
	return n
}

// Clone returns a deep copy safe to hand out of a lock.
func (b AlertBook) Clone() AlertBook {
	out := make(AlertBook, len(b))
	for id, rules := range b {
		out[id] = append([]AlertRule(nil), rules...)
	}
	return out
}

// FiredAlert describes a rule that fired during one evaluation pass.
type FiredAlert struct {
	RuleID       string          `json:"rule_id"`
	AssetID      string          `json:"asset_id"`
	AssetName    string          `json:"asset_name"`
	Label        string          `json:"label"`
	Threshold    decimal.Decimal `json:"threshold"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	FiredAt      time.Time       `json:"fired_at"`
}
