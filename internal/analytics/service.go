// Package analytics answers read-only analytical queries over the trade table.
//
// Rows are fetched through a TradeReader and aggregated in Go, so PostgreSQL and SQLite
// produce identical results. All day bucketing happens in UTC against the injected clock.
package analytics

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rewired-gh/placardwatch/internal/metrics"
	"github.com/rewired-gh/placardwatch/internal/models"
	"github.com/shopspring/decimal"
)

const (
	anomalyWindowDays    = 30
	predictionWindowDays = 90
	correlationWindow    = 90
	efficiencyWindowDays = 365
	liquidityWindowDays  = 30

	day = 24 * time.Hour
)

// TradeReader is the storage surface analytics needs.
type TradeReader interface {
	Trades(ctx context.Context, q models.TradeQuery) ([]models.Trade, error)
	Companies(ctx context.Context) ([]string, error)
}

// Service runs analytics queries. It holds no mutable state and is safe for concurrent use.
type Service struct {
	reader  TradeReader
	now     func() time.Time
	metrics *metrics.Recorder
}

type Option func(*Service)

// WithClock overrides the wall clock used for trailing windows.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithRecorder(r *metrics.Recorder) Option {
	return func(s *Service) { s.metrics = r }
}

func New(reader TradeReader, opts ...Option) *Service {
	s := &Service{reader: reader, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) since(days int) time.Time {
	return s.now().UTC().AddDate(0, 0, -days)
}

// observe times a query; call the returned func on exit with the query's named error.
func (s *Service) observe(query string, err *error) func() {
	started := time.Now()
	return func() { s.metrics.ObserveQuery(query, started, *err) }
}

// LatestTrades returns the newest trades of companies matching p.Company.
func (s *Service) LatestTrades(ctx context.Context, p LatestParams) (trades []models.Trade, err error) {
	defer s.observe("latest_trades", &err)()
	if err := Normalize(&p); err != nil {
		return nil, err
	}
	trades, err = s.reader.Trades(ctx, models.TradeQuery{
		CompanyLike: p.Company,
		Limit:       p.Limit,
		NewestFirst: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch latest trades: %w", err)
	}
	return trades, nil
}

// Companies lists every company alias.
func (s *Service) Companies(ctx context.Context) (aliases []string, err error) {
	defer s.observe("companies", &err)()
	aliases, err = s.reader.Companies(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch companies: %w", err)
	}
	return aliases, nil
}

// CompanyStats rolls up every trade of each company matching name.
func (s *Service) CompanyStats(ctx context.Context, name string) (result []models.CompanyStats, err error) {
	defer s.observe("company_stats", &err)()
	trades, err := s.reader.Trades(ctx, models.TradeQuery{CompanyLike: name})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch trades: %w", err)
	}

	groups := groupByCompany(trades)
	result = make([]models.CompanyStats, 0, len(groups))
	for _, g := range groups {
		var acc running
		var shares int64
		for _, t := range g.trades {
			acc.add(t.Price())
			shares += t.ShareCount
		}
		first, last := listingRange(g.trades)
		result = append(result, models.CompanyStats{
			Company:      g.company,
			TradeCount:   acc.count,
			AvgPrice:     acc.mean,
			TotalShares:  shares,
			FirstListing: first,
			LastListing:  last,
		})
	}
	return result, nil
}

// PriceHistory returns every trade price within the trailing window, oldest first.
func (s *Service) PriceHistory(ctx context.Context, p WindowParams) (points []models.PricePoint, err error) {
	defer s.observe("price_history", &err)()
	if err := Normalize(&p); err != nil {
		return nil, err
	}
	trades, err := s.reader.Trades(ctx, models.TradeQuery{CompanyLike: p.Company, Since: s.since(p.Days)})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch price history: %w", err)
	}

	points = make([]models.PricePoint, 0, len(trades))
	for _, t := range trades {
		points = append(points, models.PricePoint{Company: t.Company, ListingAt: t.ListingAt, Price: t.Price()})
	}
	return points, nil
}

// TopCompanies ranks companies by traded amount (shares × price) within an optional range.
func (s *Service) TopCompanies(ctx context.Context, p TopCompaniesParams) (result []models.CompanyVolume, err error) {
	defer s.observe("top_companies", &err)()
	if err := Normalize(&p); err != nil {
		return nil, err
	}
	trades, err := s.reader.Trades(ctx, models.TradeQuery{Since: p.From, Until: p.To})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch trades: %w", err)
	}

	for _, g := range groupByCompany(trades) {
		result = append(result, models.CompanyVolume{
			Company:     g.company,
			TradeCount:  len(g.trades),
			TotalVolume: totalAmount(g.trades),
		})
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].TotalVolume > result[j].TotalVolume
	})
	if len(result) > p.Limit {
		result = result[:p.Limit]
	}
	return result, nil
}

// PriceTrend buckets the prices of companies matching name by day, ISO week, or month.
func (s *Service) PriceTrend(ctx context.Context, name string, iv Interval) (buckets []models.TrendBucket, err error) {
	defer s.observe("price_trend", &err)()
	if iv, err = ParseInterval(string(iv)); err != nil {
		return nil, err
	}
	trades, err := s.reader.Trades(ctx, models.TradeQuery{CompanyLike: name})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch trades: %w", err)
	}

	acc := make(map[time.Time]*running)
	for _, t := range trades {
		key := iv.truncate(t.ListingAt)
		r, ok := acc[key]
		if !ok {
			r = &running{}
			acc[key] = r
		}
		r.add(t.Price())
	}
	buckets = make([]models.TrendBucket, 0, len(acc))
	for key, r := range acc {
		buckets = append(buckets, models.TrendBucket{Bucket: key, AvgPrice: r.mean, MinPrice: r.min, MaxPrice: r.max})
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Bucket.Before(buckets[j].Bucket) })
	return buckets, nil
}

// ShareGroupDistribution splits the trades of companies matching name by share group letter.
// Trades without a share group are left out.
func (s *Service) ShareGroupDistribution(ctx context.Context, name string) (result []models.ShareGroupStats, err error) {
	defer s.observe("share_distribution", &err)()
	trades, err := s.reader.Trades(ctx, models.TradeQuery{CompanyLike: name})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch trades: %w", err)
	}

	type groupAcc struct {
		prices running
		shares int64
	}
	byLetter := make(map[string]*groupAcc)
	for _, t := range trades {
		if t.ShareGroupLetter == "" {
			continue
		}
		g, ok := byLetter[t.ShareGroupLetter]
		if !ok {
			g = &groupAcc{}
			byLetter[t.ShareGroupLetter] = g
		}
		g.prices.add(t.Price())
		g.shares += t.ShareCount
	}
	result = make([]models.ShareGroupStats, 0, len(byLetter))
	for letter, g := range byLetter {
		result = append(result, models.ShareGroupStats{
			Letter:      letter,
			TradeCount:  g.prices.count,
			TotalShares: g.shares,
			AvgPrice:    g.prices.mean,
		})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].TotalShares != result[j].TotalShares {
			return result[i].TotalShares > result[j].TotalShares
		}
		return result[i].Letter < result[j].Letter
	})
	return result, nil
}

// CompareCompanies rolls up every company matching any of names, ordered by traded amount.
func (s *Service) CompareCompanies(ctx context.Context, names []string) (result []models.CompanyComparison, err error) {
	defer s.observe("compare_companies", &err)()
	seen := make(map[int64]bool)
	var trades []models.Trade
	for _, name := range names {
		batch, err := s.reader.Trades(ctx, models.TradeQuery{CompanyLike: name})
		if err != nil {
			return nil, fmt.Errorf("failed to fetch trades for %q: %w", name, err)
		}
		for _, t := range batch {
			if !seen[t.ID] {
				seen[t.ID] = true
				trades = append(trades, t)
			}
		}
	}

	for _, g := range groupByCompany(trades) {
		var acc running
		var shares int64
		for _, t := range g.trades {
			acc.add(t.Price())
			shares += t.ShareCount
		}
		first, last := listingRange(g.trades)
		result = append(result, models.CompanyComparison{
			Company:      g.company,
			TradeCount:   acc.count,
			AvgPrice:     acc.mean,
			TotalShares:  shares,
			TotalVolume:  totalAmount(g.trades),
			FirstListing: first,
			LastListing:  last,
		})
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].TotalVolume > result[j].TotalVolume })
	return result, nil
}

// MarketSentiment counts buys and sells per day over the trailing window.
// Counts use the stored process type.
func (s *Service) MarketSentiment(ctx context.Context, p WindowParams) (result []models.SentimentDay, err error) {
	defer s.observe("market_sentiment", &err)()
	if err := Normalize(&p); err != nil {
		return nil, err
	}
	trades, err := s.reader.Trades(ctx, models.TradeQuery{CompanyLike: p.Company, Since: s.since(p.Days)})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch trades: %w", err)
	}

	type dayAcc struct {
		buys, sells int
		prices      running
	}
	byDay := make(map[time.Time]*dayAcc)
	for _, t := range trades {
		key := Daily.truncate(t.ListingAt)
		d, ok := byDay[key]
		if !ok {
			d = &dayAcc{}
			byDay[key] = d
		}
		switch t.ProcessType {
		case models.ProcessBuy:
			d.buys++
		case models.ProcessSell:
			d.sells++
		}
		d.prices.add(t.Price())
	}

	result = make([]models.SentimentDay, 0, len(byDay))
	for key, d := range byDay {
		sentiment := models.SentimentNeutral
		switch {
		case d.buys > d.sells:
			sentiment = models.SentimentPositive
		case d.sells > d.buys:
			sentiment = models.SentimentNegative
		}
		result = append(result, models.SentimentDay{
			Date:      key,
			BuyCount:  d.buys,
			SellCount: d.sells,
			Sentiment: sentiment,
			AvgPrice:  d.prices.mean,
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date.Before(result[j].Date) })
	return result, nil
}

// MarketAnomalies flags companies whose 30-day price extremes sit more than p.Threshold
// sample standard deviations from their mean.
func (s *Service) MarketAnomalies(ctx context.Context, p AnomalyParams) (result []models.Anomaly, err error) {
	defer s.observe("market_anomalies", &err)()
	if err := Normalize(&p); err != nil {
		return nil, err
	}
	trades, err := s.reader.Trades(ctx, models.TradeQuery{Since: s.since(anomalyWindowDays)})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch trades: %w", err)
	}

	for _, g := range groupByCompany(trades) {
		var acc running
		for _, t := range g.trades {
			acc.add(t.Price())
		}
		sd := acc.sampleStdDev()
		if acc.count < 2 || sd == 0 || math.IsNaN(sd) {
			continue
		}
		a := models.Anomaly{
			Company:     g.company,
			AvgPrice:    acc.mean,
			StdDevPrice: sd,
			MaxPrice:    acc.max,
			MinPrice:    acc.min,
			RiseScore:   (acc.max - acc.mean) / sd,
			DropScore:   (acc.mean - acc.min) / sd,
		}
		switch {
		case a.RiseScore > p.Threshold:
			a.Status = models.AbnormalRise
		case a.DropScore > p.Threshold:
			a.Status = models.AbnormalDrop
		default:
			continue
		}
		result = append(result, a)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return math.Abs(result[i].RiseScore) > math.Abs(result[j].RiseScore)
	})
	return result, nil
}

// PricePredictions fits a straight line to each company's prices over the last 90 days and
// extrapolates p.Horizon days past its latest trade.
func (s *Service) PricePredictions(ctx context.Context, p PredictionParams) (result []models.PricePrediction, err error) {
	defer s.observe("price_predictions", &err)()
	if err := Normalize(&p); err != nil {
		return nil, err
	}
	trades, err := s.reader.Trades(ctx, models.TradeQuery{Since: s.since(predictionWindowDays)})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch trades: %w", err)
	}

	for _, g := range groupByCompany(trades) {
		if len(g.trades) < 2 {
			continue
		}
		first, last := listingRange(g.trades)
		xs := make([]float64, len(g.trades))
		ys := make([]float64, len(g.trades))
		for i, t := range g.trades {
			xs[i] = float64(dayOffset(first, t.ListingAt))
			ys[i] = t.Price()
		}
		slope, intercept := fitLine(xs, ys)

		lastOffset := dayOffset(first, last)
		for k := 1; k <= p.Horizon; k++ {
			offset := lastOffset + k
			result = append(result, models.PricePrediction{
				Company:        g.company,
				Date:           last.Add(time.Duration(k) * day),
				DayOffset:      offset,
				PredictedPrice: intercept + slope*float64(offset),
			})
		}
	}
	return result, nil
}

// CorrelatedCompanies reports company pairs whose daily mean prices over the last 90 days
// have a Pearson coefficient above p.Threshold in absolute value.
func (s *Service) CorrelatedCompanies(ctx context.Context, p CorrelationParams) (result []models.Correlation, err error) {
	defer s.observe("correlated_companies", &err)()
	if err := Normalize(&p); err != nil {
		return nil, err
	}
	trades, err := s.reader.Trades(ctx, models.TradeQuery{Since: s.since(correlationWindow)})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch trades: %w", err)
	}

	groups := groupByCompany(trades)
	daily := make([]map[time.Time]float64, len(groups))
	for i, g := range groups {
		daily[i] = dailyMeans(g.trades)
	}

	for i := 0; i < len(groups); i++ {
		for j := i + 1; j < len(groups); j++ {
			var a, b []float64
			for d, pa := range daily[i] {
				if pb, ok := daily[j][d]; ok {
					a = append(a, pa)
					b = append(b, pb)
				}
			}
			r, ok := pearson(a, b)
			if !ok || math.Abs(r) <= p.Threshold {
				continue
			}
			result = append(result, models.Correlation{
				Company1:    groups[i].company,
				Company2:    groups[j].company,
				Coefficient: r,
				Overlap:     len(a),
			})
		}
	}
	return result, nil
}

// MarketEfficiency estimates the Hurst exponent of the market-wide daily mean price over the
// last year. It returns nil when there are too few days for a defined estimate.
func (s *Service) MarketEfficiency(ctx context.Context) (result *models.MarketEfficiency, err error) {
	defer s.observe("market_efficiency", &err)()
	trades, err := s.reader.Trades(ctx, models.TradeQuery{Since: s.since(efficiencyWindowDays)})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch trades: %w", err)
	}

	means := dailyMeans(trades)
	days := make([]time.Time, 0, len(means))
	for d := range means {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	prices := make([]float64, len(days))
	for i, d := range days {
		prices[i] = means[d]
	}

	h, ok := hurstExponent(prices)
	if !ok {
		return nil, nil
	}
	return &models.MarketEfficiency{Hurst: h, Regime: ClassifyRegime(h), Days: len(prices)}, nil
}

// ClassifyRegime maps a Hurst exponent to its market regime.
func ClassifyRegime(h float64) models.Regime {
	switch {
	case h >= 0.45 && h <= 0.55:
		return models.RegimeEfficient
	case h > 0.55:
		return models.RegimeTrendFollowing
	default:
		return models.RegimeMeanReverting
	}
}

// LiquidityAnalysis averages per-day volume, price, trade count, and turnover over the last
// 30 days. Turnover is computed per day before averaging across days.
func (s *Service) LiquidityAnalysis(ctx context.Context) (result []models.Liquidity, err error) {
	defer s.observe("liquidity_analysis", &err)()
	trades, err := s.reader.Trades(ctx, models.TradeQuery{Since: s.since(liquidityWindowDays)})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch trades: %w", err)
	}

	type dayAcc struct {
		volume int64
		prices running
		ids    map[int64]struct{}
	}
	for _, g := range groupByCompany(trades) {
		byDay := make(map[time.Time]*dayAcc)
		for _, t := range g.trades {
			key := Daily.truncate(t.ListingAt)
			d, ok := byDay[key]
			if !ok {
				d = &dayAcc{ids: make(map[int64]struct{})}
				byDay[key] = d
			}
			d.volume += t.ShareCount
			d.prices.add(t.Price())
			d.ids[t.ID] = struct{}{}
		}

		var volume, price, count, turnover float64
		for _, d := range byDay {
			volume += float64(d.volume)
			price += d.prices.mean
			count += float64(len(d.ids))
			turnover += float64(d.volume) * d.prices.mean
		}
		n := float64(len(byDay))
		result = append(result, models.Liquidity{
			Company:              g.company,
			AvgDailyVolume:       volume / n,
			AvgPrice:             price / n,
			AvgDailyTransactions: count / n,
			AvgDailyTurnover:     turnover / n,
			Days:                 len(byDay),
		})
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].AvgDailyTurnover > result[j].AvgDailyTurnover })
	return result, nil
}

type companyTrades struct {
	company string
	trades  []models.Trade
}

// groupByCompany splits trades per alias, sorted by alias, keeping input order within a company.
func groupByCompany(trades []models.Trade) []companyTrades {
	index := make(map[string]int)
	var groups []companyTrades
	for _, t := range trades {
		i, ok := index[t.Company]
		if !ok {
			i = len(groups)
			index[t.Company] = i
			groups = append(groups, companyTrades{company: t.Company})
		}
		groups[i].trades = append(groups[i].trades, t)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].company < groups[j].company })
	return groups
}

func listingRange(trades []models.Trade) (first, last time.Time) {
	for i, t := range trades {
		if i == 0 || t.ListingAt.Before(first) {
			first = t.ListingAt
		}
		if i == 0 || t.ListingAt.After(last) {
			last = t.ListingAt
		}
	}
	return first, last
}

func totalAmount(trades []models.Trade) float64 {
	sum := decimal.Zero
	for _, t := range trades {
		sum = sum.Add(t.Amount())
	}
	return sum.InexactFloat64()
}

// dailyMeans averages prices per UTC day.
func dailyMeans(trades []models.Trade) map[time.Time]float64 {
	acc := make(map[time.Time]*running)
	for _, t := range trades {
		key := Daily.truncate(t.ListingAt)
		r, ok := acc[key]
		if !ok {
			r = &running{}
			acc[key] = r
		}
		r.add(t.Price())
	}
	means := make(map[time.Time]float64, len(acc))
	for k, r := range acc {
		means[k] = r.mean
	}
	return means
}

// dayOffset counts whole days elapsed from first to t.
func dayOffset(first, t time.Time) int {
	return int(t.Sub(first) / day)
}
