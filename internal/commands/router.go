// Package commands maps chat commands to analytics and subscription calls and renders
// their replies as plain text. It knows nothing about the chat transport.
package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rewired-gh/placardwatch/internal/analytics"
	"github.com/rewired-gh/placardwatch/internal/logger"
	"github.com/rewired-gh/placardwatch/internal/models"
	"github.com/rewired-gh/placardwatch/internal/subscription"
)

// ActionGenerateReport is the callback data of the admin report button.
const ActionGenerateReport = "generate_report"

const (
	msgFailure        = "Something went wrong while processing your request. Please try again later."
	msgPersistFailure = "Your subscriptions could not be updated. Please try again."
	msgUnknown        = "Unknown command. Send /help for the list of commands."
	msgUnauthorized   = "You are not authorized to use this command."
)

// Request is one parsed command invocation.
type Request struct {
	UserID  int64
	ChatID  int64
	Command string
	Args    []string
}

// Action is a button attached to a reply; Data comes back through HandleCallback.
type Action struct {
	Label string
	Data  string
}

type Response struct {
	Text    string
	Actions []Action
}

// InlineResult is one article offered for an inline query.
type InlineResult struct {
	ID    string
	Title string
	Text  string
}

// Command describes one registered command.
type Command struct {
	Name        string
	Usage       string
	Description string
	run         func(ctx context.Context, req Request) (Response, error)
}

// Router dispatches requests to command handlers.
type Router struct {
	analytics *analytics.Service
	subs      *subscription.Service
	isAdmin   func(userID int64) bool

	commands []Command
	byName   map[string]int
}

func NewRouter(a *analytics.Service, subs *subscription.Service, isAdmin func(userID int64) bool) *Router {
	r := &Router{analytics: a, subs: subs, isAdmin: isAdmin, byName: make(map[string]int)}
	r.register()
	return r
}

// usageError is returned by handlers for malformed arguments; its text goes back verbatim.
type usageError struct{ usage string }

func (e usageError) Error() string { return e.usage }

// Commands lists the registered commands in help order.
func (r *Router) Commands() []Command {
	return append([]Command(nil), r.commands...)
}

// Handle runs one command and always returns a reply.
func (r *Router) Handle(ctx context.Context, req Request) Response {
	i, ok := r.byName[strings.ToLower(req.Command)]
	if !ok {
		return Response{Text: msgUnknown}
	}
	cmd := r.commands[i]

	resp, err := cmd.run(ctx, req)
	if err == nil {
		return resp
	}

	var ue usageError
	var pe *subscription.PersistenceError
	switch {
	case errors.As(err, &ue):
		return Response{Text: ue.usage}
	case errors.Is(err, analytics.ErrUnknownInterval):
		return Response{Text: "Interval must be daily, weekly, or monthly."}
	case errors.Is(err, analytics.ErrInvalidParams):
		return Response{Text: fmt.Sprintf("Invalid arguments. Usage: /%s %s", cmd.Name, cmd.Usage)}
	case errors.As(err, &pe):
		logger.Error("Command /%s by user %d failed: %v", cmd.Name, req.UserID, err)
		return Response{Text: msgPersistFailure}
	default:
		logger.Error("Command /%s by user %d failed: %v", cmd.Name, req.UserID, err)
		return Response{Text: msgFailure}
	}
}

// HandleCallback answers a button press.
func (r *Router) HandleCallback(ctx context.Context, userID int64, data string) Response {
	switch data {
	case ActionGenerateReport:
		if !r.isAdmin(userID) {
			return Response{Text: msgUnauthorized}
		}
		text, err := r.summaryReport(ctx)
		if err != nil {
			logger.Error("Failed to build summary report: %v", err)
			return Response{Text: msgFailure}
		}
		return Response{Text: text}
	default:
		logger.Warn("Unknown callback %q from user %d", data, userID)
		return Response{Text: msgUnknown}
	}
}

// HandleInline offers a company lookup for a non-empty inline query.
func (r *Router) HandleInline(query string) []InlineResult {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	return []InlineResult{{
		ID:    uuid.NewString(),
		Title: "Query company: " + query,
		Text:  "/query " + query,
	}}
}

func (r *Router) add(name, usage, description string, run func(context.Context, Request) (Response, error)) {
	r.byName[name] = len(r.commands)
	r.commands = append(r.commands, Command{Name: name, Usage: usage, Description: description, run: run})
}

func (r *Router) register() {
	r.add("start", "", "Start the bot", r.start)
	r.add("help", "", "Show this help message", r.help)
	r.add("about", "", "About this bot", r.about)
	r.add("ping", "", "Check that the bot is alive", r.ping)
	r.add("query", "<company>", "Show the latest 5 trades of a company", r.query)
	r.add("companies", "", "List all companies", r.companies)
	r.add("stats", "<company>", "Statistics for a company", r.stats)
	r.add("price_history", "<company> [days]", "Price history of a company", r.priceHistory)
	r.add("top_companies", "[limit]", "Companies with the highest traded volume", r.topCompanies)
	r.add("price_trend", "<company> <daily|weekly|monthly>", "Price trend of a company", r.priceTrend)
	r.add("share_distribution", "<company>", "Share group distribution of a company", r.shareDistribution)
	r.add("compare_companies", "<company1> <company2> ...", "Compare several companies", r.compareCompanies)
	r.add("market_sentiment", "[days]", "Buy/sell sentiment per day", r.marketSentiment)
	r.add("market_anomalies", "[threshold]", "Detect abnormal price moves", r.marketAnomalies)
	r.add("price_predictions", "[days]", "Forecast prices with a linear trend", r.pricePredictions)
	r.add("correlated_companies", "[threshold]", "Find highly correlated companies", r.correlatedCompanies)
	r.add("market_efficiency", "", "Measure market efficiency (Hurst exponent)", r.marketEfficiency)
	r.add("liquidity_analysis", "", "Analyze market liquidity", r.liquidityAnalysis)
	r.add("subscribe", "<company>", "Get notified of trades of a company", r.subscribe)
	r.add("subscribe_all", "", "Get notified of trades of every company", r.subscribeAll)
	r.add("unsubscribe", "<company|ALL>", "Stop one subscription", r.unsubscribe)
	r.add("unsubscribe_all", "", "Stop all notifications", r.unsubscribeAll)
	r.add("subscriptions", "", "List your subscriptions", r.subscriptions)
	r.add("admin", "", "Admin panel (admins only)", r.admin)
}

// joined returns all args as one name, or a usage error.
func joined(req Request, usage string) (string, error) {
	name := strings.TrimSpace(strings.Join(req.Args, " "))
	if name == "" {
		return "", usageError{usage}
	}
	return name, nil
}

// optionalInt parses args[i] as a positive int, returning 0 when absent.
func optionalInt(args []string, i int, usage string) (int, error) {
	if len(args) <= i {
		return 0, nil
	}
	n, err := strconv.Atoi(args[i])
	if err != nil || n <= 0 {
		return 0, usageError{usage}
	}
	return n, nil
}

// optionalFloat parses args[i] as a positive float, returning 0 when absent.
func optionalFloat(args []string, i int, usage string) (float64, error) {
	if len(args) <= i {
		return 0, nil
	}
	f, err := strconv.ParseFloat(strings.Replace(args[i], ",", ".", 1), 64)
	if err != nil || f <= 0 {
		return 0, usageError{usage}
	}
	return f, nil
}

func (r *Router) start(context.Context, Request) (Response, error) {
	return Response{Text: "Hello! I track placard trades. Send /help to see what I can do."}, nil
}

func (r *Router) help(context.Context, Request) (Response, error) {
	var b strings.Builder
	b.WriteString("Available commands:\n")
	for _, c := range r.commands {
		b.WriteString("/" + c.Name)
		if c.Usage != "" {
			b.WriteString(" " + c.Usage)
		}
		b.WriteString(" - " + c.Description + "\n")
	}
	return Response{Text: b.String()}, nil
}

func (r *Router) about(context.Context, Request) (Response, error) {
	return Response{Text: "This bot follows placard trades, analyzes them, and notifies subscribers as new trades are listed."}, nil
}

func (r *Router) ping(context.Context, Request) (Response, error) {
	return Response{Text: "Pong"}, nil
}

func (r *Router) query(ctx context.Context, req Request) (Response, error) {
	name, err := joined(req, "Please enter a company name. Example: /query Acme")
	if err != nil {
		return Response{}, err
	}
	trades, err := r.analytics.LatestTrades(ctx, analytics.LatestParams{Company: name})
	if err != nil {
		return Response{}, err
	}
	return Response{Text: renderLatest(name, trades)}, nil
}

func (r *Router) companies(ctx context.Context, _ Request) (Response, error) {
	aliases, err := r.analytics.Companies(ctx)
	if err != nil {
		return Response{}, err
	}
	return Response{Text: renderCompanies(aliases)}, nil
}

func (r *Router) stats(ctx context.Context, req Request) (Response, error) {
	name, err := joined(req, "Please enter a company name. Example: /stats Acme")
	if err != nil {
		return Response{}, err
	}
	rows, err := r.analytics.CompanyStats(ctx, name)
	if err != nil {
		return Response{}, err
	}
	return Response{Text: renderStats(name, rows)}, nil
}

func (r *Router) priceHistory(ctx context.Context, req Request) (Response, error) {
	const usage = "Usage: /price_history <company> [days]. Example: /price_history Acme 30"
	args := req.Args
	days := 0
	if n := len(args); n > 1 {
		if d, err := strconv.Atoi(args[n-1]); err == nil {
			if d <= 0 {
				return Response{}, usageError{usage}
			}
			days, args = d, args[:n-1]
		}
	}
	name, err := joined(Request{Args: args}, usage)
	if err != nil {
		return Response{}, err
	}
	p := analytics.WindowParams{Company: name, Days: days}
	points, err := r.analytics.PriceHistory(ctx, p)
	if err != nil {
		return Response{}, err
	}
	if days == 0 {
		days = 30
	}
	return Response{Text: renderPriceHistory(name, days, points)}, nil
}

func (r *Router) topCompanies(ctx context.Context, req Request) (Response, error) {
	limit, err := optionalInt(req.Args, 0, "Usage: /top_companies [limit]. Example: /top_companies 10")
	if err != nil {
		return Response{}, err
	}
	rows, err := r.analytics.TopCompanies(ctx, analytics.TopCompaniesParams{Limit: limit})
	if err != nil {
		return Response{}, err
	}
	return Response{Text: renderTopCompanies(rows)}, nil
}

func (r *Router) priceTrend(ctx context.Context, req Request) (Response, error) {
	const usage = "Usage: /price_trend <company> <daily|weekly|monthly>. Example: /price_trend Acme weekly"
	if len(req.Args) < 2 {
		return Response{}, usageError{usage}
	}
	n := len(req.Args)
	iv, err := analytics.ParseInterval(req.Args[n-1])
	if err != nil {
		return Response{}, err
	}
	name, err := joined(Request{Args: req.Args[:n-1]}, usage)
	if err != nil {
		return Response{}, err
	}
	buckets, err := r.analytics.PriceTrend(ctx, name, iv)
	if err != nil {
		return Response{}, err
	}
	return Response{Text: renderPriceTrend(name, iv, buckets)}, nil
}

func (r *Router) shareDistribution(ctx context.Context, req Request) (Response, error) {
	name, err := joined(req, "Please enter a company name. Example: /share_distribution Acme")
	if err != nil {
		return Response{}, err
	}
	rows, err := r.analytics.ShareGroupDistribution(ctx, name)
	if err != nil {
		return Response{}, err
	}
	return Response{Text: renderShareDistribution(name, rows)}, nil
}

func (r *Router) compareCompanies(ctx context.Context, req Request) (Response, error) {
	if len(req.Args) < 2 {
		return Response{}, usageError{"Please enter at least two companies. Example: /compare_companies Acme Beta"}
	}
	rows, err := r.analytics.CompareCompanies(ctx, req.Args)
	if err != nil {
		return Response{}, err
	}
	return Response{Text: renderComparison(rows)}, nil
}

func (r *Router) marketSentiment(ctx context.Context, req Request) (Response, error) {
	days, err := optionalInt(req.Args, 0, "Usage: /market_sentiment [days]. Example: /market_sentiment 30")
	if err != nil {
		return Response{}, err
	}
	rows, err := r.analytics.MarketSentiment(ctx, analytics.WindowParams{Days: days})
	if err != nil {
		return Response{}, err
	}
	if days == 0 {
		days = 30
	}
	return Response{Text: renderSentiment(days, rows)}, nil
}

func (r *Router) marketAnomalies(ctx context.Context, req Request) (Response, error) {
	threshold, err := optionalFloat(req.Args, 0, "Usage: /market_anomalies [threshold]. Example: /market_anomalies 2")
	if err != nil {
		return Response{}, err
	}
	p := analytics.AnomalyParams{Threshold: threshold}
	rows, err := r.analytics.MarketAnomalies(ctx, p)
	if err != nil {
		return Response{}, err
	}
	if threshold == 0 {
		threshold = 2
	}
	return Response{Text: renderAnomalies(threshold, rows)}, nil
}

func (r *Router) pricePredictions(ctx context.Context, req Request) (Response, error) {
	days, err := optionalInt(req.Args, 0, "Usage: /price_predictions [days]. Example: /price_predictions 30")
	if err != nil {
		return Response{}, err
	}
	rows, err := r.analytics.PricePredictions(ctx, analytics.PredictionParams{Horizon: days})
	if err != nil {
		return Response{}, err
	}
	if days == 0 {
		days = 30
	}
	return Response{Text: renderPredictions(days, rows)}, nil
}

func (r *Router) correlatedCompanies(ctx context.Context, req Request) (Response, error) {
	threshold, err := optionalFloat(req.Args, 0, "Usage: /correlated_companies [threshold]. Example: /correlated_companies 0.7")
	if err != nil {
		return Response{}, err
	}
	rows, err := r.analytics.CorrelatedCompanies(ctx, analytics.CorrelationParams{Threshold: threshold})
	if err != nil {
		return Response{}, err
	}
	if threshold == 0 {
		threshold = 0.7
	}
	return Response{Text: renderCorrelations(threshold, rows)}, nil
}

func (r *Router) marketEfficiency(ctx context.Context, _ Request) (Response, error) {
	res, err := r.analytics.MarketEfficiency(ctx)
	if err != nil {
		return Response{}, err
	}
	return Response{Text: renderEfficiency(res)}, nil
}

func (r *Router) liquidityAnalysis(ctx context.Context, _ Request) (Response, error) {
	rows, err := r.analytics.LiquidityAnalysis(ctx)
	if err != nil {
		return Response{}, err
	}
	return Response{Text: renderLiquidity(rows)}, nil
}

func (r *Router) subscribe(ctx context.Context, req Request) (Response, error) {
	name, err := joined(req, "Please enter the company you want to follow. Example: /subscribe Acme")
	if err != nil {
		return Response{}, err
	}
	if err := r.subs.Subscribe(ctx, req.UserID, name); err != nil {
		return Response{}, err
	}
	return Response{Text: fmt.Sprintf("You are now subscribed to %s.", name)}, nil
}

func (r *Router) subscribeAll(ctx context.Context, req Request) (Response, error) {
	if err := r.subs.Subscribe(ctx, req.UserID, models.InterestAll); err != nil {
		return Response{}, err
	}
	return Response{Text: "Notifications for all companies are now enabled."}, nil
}

func (r *Router) unsubscribe(ctx context.Context, req Request) (Response, error) {
	name, err := joined(req, "Please enter the company to stop following. Example: /unsubscribe Acme")
	if err != nil {
		return Response{}, err
	}
	if err := r.subs.Unsubscribe(ctx, req.UserID, name); err != nil {
		return Response{}, err
	}
	if name == models.InterestAll {
		return Response{Text: "Notifications for all companies are disabled. Per-company subscriptions are kept."}, nil
	}
	return Response{Text: fmt.Sprintf("You are no longer subscribed to %s.", name)}, nil
}

func (r *Router) unsubscribeAll(ctx context.Context, req Request) (Response, error) {
	if err := r.subs.UnsubscribeAll(ctx, req.UserID); err != nil {
		return Response{}, err
	}
	return Response{Text: "All of your notifications are disabled."}, nil
}

func (r *Router) subscriptions(ctx context.Context, req Request) (Response, error) {
	subs, err := r.subs.List(ctx, req.UserID)
	if err != nil {
		return Response{}, err
	}
	return Response{Text: renderSubscriptions(subs)}, nil
}

func (r *Router) admin(_ context.Context, req Request) (Response, error) {
	if !r.isAdmin(req.UserID) {
		return Response{Text: msgUnauthorized}, nil
	}
	return Response{
		Text:    "Admin panel:",
		Actions: []Action{{Label: "Generate summary report", Data: ActionGenerateReport}},
	}, nil
}

func (r *Router) summaryReport(ctx context.Context) (string, error) {
	aliases, err := r.analytics.Companies(ctx)
	if err != nil {
		return "", err
	}
	top, err := r.analytics.TopCompanies(ctx, analytics.TopCompaniesParams{Limit: 5})
	if err != nil {
		return "", err
	}
	sentiment, err := r.analytics.MarketSentiment(ctx, analytics.WindowParams{Days: 7})
	if err != nil {
		return "", err
	}
	return renderReport(len(aliases), top, sentiment), nil
}
