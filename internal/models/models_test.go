package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestTradeValidate(t *testing.T) {
	valid := func() Trade {
		return Trade{
			ID:          1,
			Company:     "ACME",
			ProcessType: ProcessBuy,
			UnitPrice:   decimal.RequireFromString("12.50"),
			ShareCount:  100,
			ListingAt:   time.Now(),
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Trade)
		wantErr bool
	}{
		{name: "valid trade", mutate: func(*Trade) {}, wantErr: false},
		{name: "zero share count allowed", mutate: func(tr *Trade) { tr.ShareCount = 0 }, wantErr: false},
		{name: "zero ID", mutate: func(tr *Trade) { tr.ID = 0 }, wantErr: true},
		{name: "empty company", mutate: func(tr *Trade) { tr.Company = "  " }, wantErr: true},
		{name: "unknown process type", mutate: func(tr *Trade) { tr.ProcessType = "hold" }, wantErr: true},
		{name: "zero price", mutate: func(tr *Trade) { tr.UnitPrice = decimal.Zero }, wantErr: true},
		{name: "negative shares", mutate: func(tr *Trade) { tr.ShareCount = -1 }, wantErr: true},
		{name: "missing listing time", mutate: func(tr *Trade) { tr.ListingAt = time.Time{} }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := valid()
			tt.mutate(&tr)
			err := tr.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Trade.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTradeAmount(t *testing.T) {
	tr := Trade{UnitPrice: decimal.RequireFromString("0.10"), ShareCount: 3}
	if got := tr.Amount().StringFixed(2); got != "0.30" {
		t.Errorf("Amount() = %s, want 0.30", got)
	}
}

func TestSubscriptionIsWildcard(t *testing.T) {
	if !(Subscription{UserID: 1, Interest: InterestAll}).IsWildcard() {
		t.Error("ALL should be wildcard")
	}
	if (Subscription{UserID: 1, Interest: "all"}).IsWildcard() {
		t.Error("lowercase all is an ordinary alias")
	}
}
