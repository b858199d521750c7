// Package models defines the domain entities: trades, companies, share groups,
// subscriptions, and the result records returned by analytics queries.
package models

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ProcessType is the trade side as recorded by the trading system.
type ProcessType string

const (
	ProcessBuy  ProcessType = "buy"
	ProcessSell ProcessType = "sell"
)

// InterestAll is the wildcard subscription interest matching every company.
const InterestAll = "ALL"

// Trade is one placard row joined with its company alias and share group.
// Rows are created by the external trading system and never modified here.
type Trade struct {
	ID               int64           `json:"id"`
	CompanyID        int64           `json:"company_id"`
	Company          string          `json:"company"`
	ProcessType      ProcessType     `json:"process_type"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	ShareCount       int64           `json:"share_count"`
	ListingAt        time.Time       `json:"listing_at"`
	ShareGroupID     int64           `json:"share_group_id"`
	ShareGroupLetter string          `json:"share_group_letter"`
	ShareGroupISIN   string          `json:"share_group_isin"`
}

// Validate checks trade field constraints.
func (t *Trade) Validate() error {
	if t.ID <= 0 {
		return errors.New("trade ID must be positive")
	}
	if strings.TrimSpace(t.Company) == "" {
		return errors.New("company alias must not be empty")
	}
	if t.ProcessType != ProcessBuy && t.ProcessType != ProcessSell {
		return errors.New("process type must be buy or sell")
	}
	if !t.UnitPrice.IsPositive() {
		return errors.New("unit price must be positive")
	}
	if t.ShareCount < 0 {
		return errors.New("share count must not be negative")
	}
	if t.ListingAt.IsZero() {
		return errors.New("listing time must be set")
	}
	return nil
}

// Price returns the unit price as a float for statistics.
func (t *Trade) Price() float64 {
	return t.UnitPrice.InexactFloat64()
}

// Amount is share count × unit price.
func (t *Trade) Amount() decimal.Decimal {
	return t.UnitPrice.Mul(decimal.NewFromInt(t.ShareCount))
}

// Company is a listed company. Alias is the human-readable name users type.
type Company struct {
	ID    int64  `json:"id"`
	Alias string `json:"alias"`
}

// ShareGroup classifies a block of shares.
type ShareGroup struct {
	ID     int64  `json:"id"`
	Letter string `json:"letter"`
	ISIN   string `json:"isin"`
}

// Subscription pairs a chat user with a company alias or InterestAll.
type Subscription struct {
	UserID   int64  `json:"user_id"`
	Interest string `json:"interest"`
}

// IsWildcard reports whether the subscription matches every company.
func (s Subscription) IsWildcard() bool {
	return s.Interest == InterestAll
}

// TradeQuery filters trade reads. Zero values leave a dimension unbounded.
type TradeQuery struct {
	CompanyLike string // case-insensitive substring of the alias
	Since       time.Time
	Until       time.Time
	Limit       int
	NewestFirst bool
}
