// Package poller detects newly inserted trades by comparing ids against a watermark and hands
// each new trade, in id order, to a Handler.
package poller

import (
	"context"
	"fmt"

	"github.com/rewired-gh/placardwatch/internal/models"
)

// Watermark is the highest trade id already handed off. It only moves forward.
type Watermark int64

// Source reads the trade table.
type Source interface {
	LatestTradeID(ctx context.Context) (int64, error)
	TradesAfter(ctx context.Context, afterID int64) ([]models.Trade, error)
}

// Handler receives every new trade exactly once per process lifetime.
// It must not block indefinitely; delivery failures are its own concern.
type Handler interface {
	HandleTrade(ctx context.Context, trade models.Trade)
}

type HandlerFunc func(ctx context.Context, trade models.Trade)

func (f HandlerFunc) HandleTrade(ctx context.Context, trade models.Trade) { f(ctx, trade) }

type Poller struct {
	source  Source
	handler Handler
}

func New(source Source, handler Handler) *Poller {
	return &Poller{source: source, handler: handler}
}

// Poll fetches trades with id > w, hands them to the handler in ascending id order, and
// returns the new watermark with the number of trades handled. On a storage error it returns
// w unchanged and nothing is handed off.
func (p *Poller) Poll(ctx context.Context, w Watermark) (Watermark, int, error) {
	trades, err := p.source.TradesAfter(ctx, int64(w))
	if err != nil {
		return w, 0, fmt.Errorf("failed to fetch new trades: %w", err)
	}

	next := w
	for _, t := range trades {
		p.handler.HandleTrade(ctx, t)
		if Watermark(t.ID) > next {
			next = Watermark(t.ID)
		}
	}
	return next, len(trades), nil
}
