package commands

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rewired-gh/placardwatch/internal/analytics"
	"github.com/rewired-gh/placardwatch/internal/models"
	"github.com/rewired-gh/placardwatch/internal/storage"
	"github.com/rewired-gh/placardwatch/internal/subscription"
	"github.com/shopspring/decimal"
)

var testNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

type fakeReader struct {
	trades []models.Trade
	err    error
	last   models.TradeQuery
}

func (f *fakeReader) Trades(_ context.Context, q models.TradeQuery) ([]models.Trade, error) {
	f.last = q
	if f.err != nil {
		return nil, f.err
	}
	var out []models.Trade
	for _, t := range f.trades {
		if q.CompanyLike != "" && !strings.Contains(strings.ToLower(t.Company), strings.ToLower(q.CompanyLike)) {
			continue
		}
		if !q.Since.IsZero() && t.ListingAt.Before(q.Since) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeReader) Companies(context.Context) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	seen := map[string]bool{}
	var out []string
	for _, t := range f.trades {
		if !seen[t.Company] {
			seen[t.Company] = true
			out = append(out, t.Company)
		}
	}
	return out, nil
}

func sampleTrades() []models.Trade {
	mk := func(id int64, company string, side models.ProcessType, price string, shares int64, daysAgo int) models.Trade {
		return models.Trade{
			ID:               id,
			Company:          company,
			ProcessType:      side,
			UnitPrice:        decimal.RequireFromString(price),
			ShareCount:       shares,
			ListingAt:        testNow.AddDate(0, 0, -daysAgo),
			ShareGroupLetter: "A",
		}
	}
	return []models.Trade{
		mk(1, "Acme Robotics", models.ProcessBuy, "10", 100, 3),
		mk(2, "Acme Robotics", models.ProcessSell, "12.5", 1000, 2),
		mk(3, "Beta Foods", models.ProcessBuy, "3", 10, 1),
	}
}

func newTestRouter(t *testing.T, reader *fakeReader) *Router {
	t.Helper()
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test storage: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	a := analytics.New(reader, analytics.WithClock(func() time.Time { return testNow }))
	isAdmin := func(id int64) bool { return id == 1 }
	return NewRouter(a, subscription.New(store), isAdmin)
}

func run(r *Router, user int64, line string) Response {
	fields := strings.Fields(line)
	return r.Handle(context.Background(), Request{UserID: user, ChatID: user, Command: fields[0], Args: fields[1:]})
}

func TestHandle_Basics(t *testing.T) {
	r := newTestRouter(t, &fakeReader{trades: sampleTrades()})

	tests := []struct {
		line string
		want string
	}{
		{"ping", "Pong"},
		{"nope", msgUnknown},
		{"query", "Please enter a company name"},
		{"query acme", "Latest 2 trades for acme"},
		{"query zeta", "No results found for zeta."},
		{"companies", "Acme Robotics\nBeta Foods"},
		{"stats acme", "Average price: 11.25"},
		{"top_companies", "1. Acme Robotics: 2 trades, volume 13,500.00"},
		{"top_companies 1000", "Invalid arguments. Usage: /top_companies [limit]"},
		{"top_companies abc", "Usage: /top_companies"},
		{"price_trend acme hourly", "Interval must be daily, weekly, or monthly."},
		{"price_trend acme", "Usage: /price_trend"},
		{"compare_companies acme", "at least two companies"},
		{"market_anomalies -1", "Usage: /market_anomalies"},
		{"market_efficiency", "Not enough data"},
		{"correlated_companies 2", "Invalid arguments"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got := run(r, 5, tt.line)
			if !strings.Contains(got.Text, tt.want) {
				t.Errorf("/%s = %q, want it to contain %q", tt.line, got.Text, tt.want)
			}
		})
	}
}

func TestHandle_HelpListsEveryCommand(t *testing.T) {
	r := newTestRouter(t, &fakeReader{})
	help := run(r, 5, "help").Text
	for _, c := range r.Commands() {
		if !strings.Contains(help, "/"+c.Name) {
			t.Errorf("help is missing /%s", c.Name)
		}
	}
}

func TestHandle_PriceHistoryDaysArgument(t *testing.T) {
	reader := &fakeReader{trades: sampleTrades()}
	r := newTestRouter(t, reader)

	got := run(r, 5, "price_history Acme Robotics 7")
	if !strings.Contains(got.Text, "Price history of Acme Robotics over the last 7 days") {
		t.Errorf("got %q", got.Text)
	}
	if reader.last.CompanyLike != "Acme Robotics" || !reader.last.Since.Equal(testNow.AddDate(0, 0, -7)) {
		t.Errorf("query = %+v", reader.last)
	}
}

func TestHandle_SubscriptionFlow(t *testing.T) {
	r := newTestRouter(t, &fakeReader{})

	steps := []struct {
		line string
		want string
	}{
		{"subscriptions", "You have no subscriptions"},
		{"subscribe", "Please enter the company"},
		{"subscribe Acme Robotics", "subscribed to Acme Robotics"},
		{"subscribe_all", "all companies are now enabled"},
		{"subscriptions", "All companies\nAcme Robotics"},
		{"unsubscribe ALL", "Per-company subscriptions are kept"},
		{"subscriptions", "Acme Robotics"},
		{"unsubscribe_all", "All of your notifications are disabled"},
		{"subscriptions", "You have no subscriptions"},
	}
	for _, s := range steps {
		got := run(r, 42, s.line)
		if !strings.Contains(got.Text, s.want) {
			t.Fatalf("/%s = %q, want it to contain %q", s.line, got.Text, s.want)
		}
	}
}

type brokenRepo struct{ subscription.Repository }

func (brokenRepo) AddSubscription(context.Context, int64, string) error {
	return errors.New("database is locked")
}

func TestHandle_PersistenceFailure(t *testing.T) {
	a := analytics.New(&fakeReader{})
	r := NewRouter(a, subscription.New(brokenRepo{}), func(int64) bool { return false })

	got := run(r, 42, "subscribe Acme")
	if got.Text != msgPersistFailure {
		t.Errorf("got %q, want %q", got.Text, msgPersistFailure)
	}
}

func TestHandle_ReaderFailure(t *testing.T) {
	r := newTestRouter(t, &fakeReader{err: errors.New("connection reset")})
	if got := run(r, 5, "liquidity_analysis"); got.Text != msgFailure {
		t.Errorf("got %q, want %q", got.Text, msgFailure)
	}
}

func TestAdmin(t *testing.T) {
	r := newTestRouter(t, &fakeReader{trades: sampleTrades()})
	ctx := context.Background()

	if got := run(r, 5, "admin"); got.Text != msgUnauthorized || len(got.Actions) != 0 {
		t.Errorf("non-admin got %+v", got)
	}
	got := run(r, 1, "admin")
	if len(got.Actions) != 1 || got.Actions[0].Data != ActionGenerateReport {
		t.Fatalf("admin got %+v", got)
	}

	if resp := r.HandleCallback(ctx, 5, ActionGenerateReport); resp.Text != msgUnauthorized {
		t.Errorf("non-admin callback got %q", resp.Text)
	}
	report := r.HandleCallback(ctx, 1, ActionGenerateReport).Text
	for _, want := range []string{"Companies: 2", "1. Acme Robotics: 13,500.00 (2 trades)", "positive (buys 1, sells 0)"} {
		if !strings.Contains(report, want) {
			t.Errorf("report missing %q:\n%s", want, report)
		}
	}
	if resp := r.HandleCallback(ctx, 1, "bogus"); resp.Text != msgUnknown {
		t.Errorf("unknown callback got %q", resp.Text)
	}
}

func TestHandleInline(t *testing.T) {
	r := newTestRouter(t, &fakeReader{})

	if got := r.HandleInline("   "); got != nil {
		t.Errorf("empty query got %+v", got)
	}
	got := r.HandleInline("acme")
	if len(got) != 1 {
		t.Fatalf("got %d results, want 1", len(got))
	}
	if _, err := uuid.Parse(got[0].ID); err != nil {
		t.Errorf("result id %q is not a uuid: %v", got[0].ID, err)
	}
	if got[0].Text != "/query acme" {
		t.Errorf("text = %q", got[0].Text)
	}
}
