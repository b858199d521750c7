// Package notify fans each new trade out to its subscribers as a chat message.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/rewired-gh/placardwatch/internal/logger"
	"github.com/rewired-gh/placardwatch/internal/metrics"
	"github.com/rewired-gh/placardwatch/internal/models"
)

// Sender delivers one text message to one chat.
type Sender interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

// Resolver returns the users subscribed to a company alias.
type Resolver interface {
	SubscribersOf(ctx context.Context, alias string) ([]int64, error)
}

// Dispatcher implements poller.Handler.
type Dispatcher struct {
	resolver Resolver
	sender   Sender
	recorder *metrics.Recorder
}

func NewDispatcher(resolver Resolver, sender Sender, recorder *metrics.Recorder) *Dispatcher {
	return &Dispatcher{resolver: resolver, sender: sender, recorder: recorder}
}

// HandleTrade notifies every subscriber of the trade's company. Failures are logged and never
// stop the poller.
func (d *Dispatcher) HandleTrade(ctx context.Context, trade models.Trade) {
	_, _, _ = d.Deliver(ctx, trade)
}

// Deliver sends the formatted trade to each subscriber and reports how many sends succeeded
// and failed. A failed send does not prevent delivery to the remaining subscribers.
func (d *Dispatcher) Deliver(ctx context.Context, trade models.Trade) (sent, failed int, err error) {
	users, err := d.resolver.SubscribersOf(ctx, trade.Company)
	if err != nil {
		logger.Error("Failed to resolve subscribers for trade %d (%s): %v", trade.ID, trade.Company, err)
		return 0, 0, err
	}
	if len(users) == 0 {
		logger.Debug("Trade %d (%s) has no subscribers", trade.ID, trade.Company)
		return 0, 0, nil
	}

	text := FormatTrade(trade)
	for _, userID := range users {
		sendErr := d.sender.SendText(ctx, userID, text)
		d.recorder.ObserveDelivery(sendErr)
		if sendErr != nil {
			failed++
			logger.Error("Failed to notify user %d of trade %d: %v", userID, trade.ID, sendErr)
			continue
		}
		sent++
	}
	logger.Debug("Trade %d (%s) delivered to %d/%d subscribers", trade.ID, trade.Company, sent, len(users))
	return sent, failed, nil
}

// SideLabel is the side shown to users. The stored process type is the counterparty's view,
// so a stored sell is announced as a buy opportunity and vice versa.
func SideLabel(p models.ProcessType) string {
	if p == models.ProcessSell {
		return "Buy"
	}
	return "Sell"
}

// FormatTrade renders the notification body for a trade.
func FormatTrade(t models.Trade) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s - %s - %s\n\n", SideLabel(t.ProcessType), t.Company, t.ShareGroupLetter)
	fmt.Fprintf(&b, "Shares: %s\n", humanize.Comma(t.ShareCount))
	fmt.Fprintf(&b, "Price: %s\n", Money(t.UnitPrice.Round(2).InexactFloat64()))
	fmt.Fprintf(&b, "Total: %s", Money(t.Amount().Round(2).InexactFloat64()))
	return b.String()
}

// Money formats v with thousands separators and two decimals.
func Money(v float64) string {
	return humanize.FormatFloat("#,###.##", v)
}
