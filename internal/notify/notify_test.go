package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rewired-gh/placardwatch/internal/models"
	"github.com/shopspring/decimal"
)

type staticResolver struct {
	users []int64
	err   error
}

func (r staticResolver) SubscribersOf(context.Context, string) ([]int64, error) {
	return r.users, r.err
}

type fakeSender struct {
	mu     sync.Mutex
	failOn map[int64]bool
	got    map[int64][]string
}

func (s *fakeSender) SendText(_ context.Context, chatID int64, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOn[chatID] {
		return errors.New("bot was blocked by the user")
	}
	if s.got == nil {
		s.got = make(map[int64][]string)
	}
	s.got[chatID] = append(s.got[chatID], text)
	return nil
}

func sampleTrade() models.Trade {
	return models.Trade{
		ID:               11,
		Company:          "Acme Robotics",
		ProcessType:      models.ProcessSell,
		UnitPrice:        decimal.RequireFromString("12.5"),
		ShareCount:       1000,
		ListingAt:        time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC),
		ShareGroupLetter: "A",
	}
}

func TestFormatTrade(t *testing.T) {
	want := "Buy - Acme Robotics - A\n\nShares: 1,000\nPrice: 12.50\nTotal: 12,500.00"
	if got := FormatTrade(sampleTrade()); got != want {
		t.Errorf("FormatTrade =\n%q\nwant\n%q", got, want)
	}
}

func TestSideLabel_Inverted(t *testing.T) {
	if got := SideLabel(models.ProcessSell); got != "Buy" {
		t.Errorf("sell -> %q, want Buy", got)
	}
	if got := SideLabel(models.ProcessBuy); got != "Sell" {
		t.Errorf("buy -> %q, want Sell", got)
	}
}

func TestMoney(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0.00"},
		{12.5, "12.50"},
		{1234567.891, "1,234,567.89"},
	}
	for _, tt := range tests {
		if got := Money(tt.in); got != tt.want {
			t.Errorf("Money(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDeliver_PartialFailure(t *testing.T) {
	sender := &fakeSender{failOn: map[int64]bool{2: true}}
	d := NewDispatcher(staticResolver{users: []int64{1, 2, 3}}, sender, nil)

	sent, failed, err := d.Deliver(context.Background(), sampleTrade())
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if sent != 2 || failed != 1 {
		t.Errorf("sent=%d failed=%d, want 2/1", sent, failed)
	}
	for _, id := range []int64{1, 3} {
		if len(sender.got[id]) != 1 {
			t.Errorf("user %d got %d messages, want 1", id, len(sender.got[id]))
		}
	}
	if len(sender.got[2]) != 0 {
		t.Error("user 2 should have no recorded message")
	}
}

func TestDeliver_ResolverError(t *testing.T) {
	sender := &fakeSender{}
	d := NewDispatcher(staticResolver{err: errors.New("db down")}, sender, nil)

	_, _, err := d.Deliver(context.Background(), sampleTrade())
	if err == nil {
		t.Fatal("expected resolver error")
	}
	if len(sender.got) != 0 {
		t.Error("nothing should be sent when subscribers cannot be resolved")
	}

	// HandleTrade swallows the error
	d.HandleTrade(context.Background(), sampleTrade())
}

func TestDeliver_NoSubscribers(t *testing.T) {
	sender := &fakeSender{}
	d := NewDispatcher(staticResolver{}, sender, nil)

	sent, failed, err := d.Deliver(context.Background(), sampleTrade())
	if err != nil || sent != 0 || failed != 0 {
		t.Errorf("Deliver = (%d, %d, %v)", sent, failed, err)
	}
}
