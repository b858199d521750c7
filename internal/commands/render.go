package commands

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/rewired-gh/placardwatch/internal/analytics"
	"github.com/rewired-gh/placardwatch/internal/models"
)

const (
	dateFormat     = "2006-01-02"
	dateTimeFormat = "2006-01-02 15:04"
)

func num(v float64) string {
	return humanize.FormatFloat("#,###.##", v)
}

func renderLatest(name string, trades []models.Trade) string {
	if len(trades) == 0 {
		return fmt.Sprintf("No results found for %s.", name)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Latest %d trades for %s:\n\n", len(trades), name)
	for _, t := range trades {
		fmt.Fprintf(&b, "ID: %d, Company: %s, Side: %s, Price: %s, Shares: %s, Date: %s\n",
			t.ID, t.Company, t.ProcessType, num(t.Price()), humanize.Comma(t.ShareCount), t.ListingAt.Format(dateTimeFormat))
	}
	return b.String()
}

func renderCompanies(aliases []string) string {
	if len(aliases) == 0 {
		return "No companies found."
	}
	return "Companies:\n\n" + strings.Join(aliases, "\n")
}

func renderStats(name string, rows []models.CompanyStats) string {
	if len(rows) == 0 {
		return fmt.Sprintf("No statistics found for %s.", name)
	}
	var b strings.Builder
	for _, r := range rows {
		fmt.Fprintf(&b, "%s statistics:\n\n", r.Company)
		fmt.Fprintf(&b, "Trades: %d\n", r.TradeCount)
		fmt.Fprintf(&b, "Average price: %s\n", num(r.AvgPrice))
		fmt.Fprintf(&b, "Total shares: %s\n", humanize.Comma(r.TotalShares))
		fmt.Fprintf(&b, "First trade: %s\n", r.FirstListing.Format(dateTimeFormat))
		fmt.Fprintf(&b, "Last trade: %s\n\n", r.LastListing.Format(dateTimeFormat))
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderPriceHistory(name string, days int, points []models.PricePoint) string {
	if len(points) == 0 {
		return fmt.Sprintf("No price history found for %s.", name)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Price history of %s over the last %d days:\n\n", name, days)
	for _, p := range points {
		fmt.Fprintf(&b, "%s  %s  %s\n", p.ListingAt.Format(dateTimeFormat), p.Company, num(p.Price))
	}
	return b.String()
}

func renderTopCompanies(rows []models.CompanyVolume) string {
	if len(rows) == 0 {
		return "No trades found."
	}
	var b strings.Builder
	b.WriteString("Top companies by traded volume:\n\n")
	for i, r := range rows {
		fmt.Fprintf(&b, "%d. %s: %d trades, volume %s\n", i+1, r.Company, r.TradeCount, num(r.TotalVolume))
	}
	return b.String()
}

func renderPriceTrend(name string, iv analytics.Interval, buckets []models.TrendBucket) string {
	if len(buckets) == 0 {
		return fmt.Sprintf("No price trend found for %s.", name)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s price trend of %s:\n\n", iv, name)
	for _, t := range buckets {
		fmt.Fprintf(&b, "%s  avg %s, min %s, max %s\n",
			t.Bucket.Format(dateFormat), num(t.AvgPrice), num(t.MinPrice), num(t.MaxPrice))
	}
	return b.String()
}

func renderShareDistribution(name string, rows []models.ShareGroupStats) string {
	if len(rows) == 0 {
		return fmt.Sprintf("No share group data found for %s.", name)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Share group distribution of %s:\n\n", name)
	for _, r := range rows {
		fmt.Fprintf(&b, "Group %s: %d trades, %s shares, avg price %s\n",
			r.Letter, r.TradeCount, humanize.Comma(r.TotalShares), num(r.AvgPrice))
	}
	return b.String()
}

func renderComparison(rows []models.CompanyComparison) string {
	if len(rows) == 0 {
		return "None of these companies have trades."
	}
	var b strings.Builder
	b.WriteString("Company comparison:\n\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "%s\n", r.Company)
		fmt.Fprintf(&b, "Trades: %d\n", r.TradeCount)
		fmt.Fprintf(&b, "Average price: %s\n", num(r.AvgPrice))
		fmt.Fprintf(&b, "Total shares: %s\n", humanize.Comma(r.TotalShares))
		fmt.Fprintf(&b, "Total volume: %s\n\n", num(r.TotalVolume))
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderSentiment(days int, rows []models.SentimentDay) string {
	if len(rows) == 0 {
		return fmt.Sprintf("No market sentiment data for the last %d days.", days)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Market sentiment over the last %d days:\n\n", days)
	for _, r := range rows {
		fmt.Fprintf(&b, "%s: %s (buys %d, sells %d), avg price %s\n",
			r.Date.Format(dateFormat), r.Sentiment, r.BuyCount, r.SellCount, num(r.AvgPrice))
	}
	return b.String()
}

func renderAnomalies(threshold float64, rows []models.Anomaly) string {
	if len(rows) == 0 {
		return fmt.Sprintf("No anomalies above threshold %g.", threshold)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Market anomalies (threshold %g):\n\n", threshold)
	for _, a := range rows {
		fmt.Fprintf(&b, "%s: %s\n", a.Company, a.Status)
		fmt.Fprintf(&b, "Avg price: %.2f, std dev: %.2f\n", a.AvgPrice, a.StdDevPrice)
		fmt.Fprintf(&b, "Max: %.2f, min: %.2f\n\n", a.MaxPrice, a.MinPrice)
	}
	return strings.TrimRight(b.String(), "\n")
}

// renderPredictions summarizes each company's forecast by its first and last predicted price.
func renderPredictions(days int, rows []models.PricePrediction) string {
	if len(rows) == 0 {
		return "Not enough data for a forecast."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Price forecast for the next %d days:\n\n", days)
	for i := 0; i < len(rows); {
		j := i
		for j < len(rows) && rows[j].Company == rows[i].Company {
			j++
		}
		first, last := rows[i].PredictedPrice, rows[j-1].PredictedPrice
		fmt.Fprintf(&b, "%s: start %.2f, end %.2f", rows[i].Company, first, last)
		if first != 0 {
			fmt.Fprintf(&b, ", change %.2f%%", (last-first)/first*100)
		}
		b.WriteString("\n")
		i = j
	}
	return b.String()
}

func renderCorrelations(threshold float64, rows []models.Correlation) string {
	if len(rows) == 0 {
		return fmt.Sprintf("No company pairs correlated above %g.", threshold)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Highly correlated companies (threshold %g):\n\n", threshold)
	for _, c := range rows {
		fmt.Fprintf(&b, "%s - %s: %.2f (%d days)\n", c.Company1, c.Company2, c.Coefficient, c.Overlap)
	}
	return b.String()
}

func renderEfficiency(res *models.MarketEfficiency) string {
	if res == nil {
		return fmt.Sprintf("Not enough data to measure market efficiency (at least %d trading days are needed).",
			analytics.MinEfficiencyDays)
	}
	return fmt.Sprintf("Market efficiency analysis:\n\nHurst exponent: %.2f\nInterpretation: %s\nTrading days: %d",
		res.Hurst, res.Regime, res.Days)
}

func renderLiquidity(rows []models.Liquidity) string {
	if len(rows) == 0 {
		return "No trades in the last 30 days."
	}
	var b strings.Builder
	b.WriteString("Liquidity over the last 30 days:\n\n")
	for _, l := range rows {
		fmt.Fprintf(&b, "%s\n", l.Company)
		fmt.Fprintf(&b, "Avg daily volume: %.2f\n", l.AvgDailyVolume)
		fmt.Fprintf(&b, "Avg price: %.2f\n", l.AvgPrice)
		fmt.Fprintf(&b, "Avg daily trades: %.2f\n", l.AvgDailyTransactions)
		fmt.Fprintf(&b, "Avg daily turnover: %.2f\n\n", l.AvgDailyTurnover)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderSubscriptions(subs []models.Subscription) string {
	if len(subs) == 0 {
		return "You have no subscriptions. Use /subscribe <company> or /subscribe_all."
	}
	var b strings.Builder
	b.WriteString("Your subscriptions:\n\n")
	for _, s := range subs {
		if s.IsWildcard() {
			b.WriteString("All companies\n")
			continue
		}
		b.WriteString(s.Interest + "\n")
	}
	return b.String()
}

func renderReport(companies int, top []models.CompanyVolume, sentiment []models.SentimentDay) string {
	var b strings.Builder
	b.WriteString("Summary report\n\n")
	fmt.Fprintf(&b, "Companies: %d\n\n", companies)

	b.WriteString("Top 5 by traded volume:\n")
	if len(top) == 0 {
		b.WriteString("none\n")
	}
	for i, r := range top {
		fmt.Fprintf(&b, "%d. %s: %s (%d trades)\n", i+1, r.Company, num(r.TotalVolume), r.TradeCount)
	}

	b.WriteString("\nSentiment over the last 7 days:\n")
	if len(sentiment) == 0 {
		b.WriteString("none\n")
	}
	for _, d := range sentiment {
		fmt.Fprintf(&b, "%s: %s (buys %d, sells %d)\n", d.Date.Format(dateFormat), d.Sentiment, d.BuyCount, d.SellCount)
	}
	return b.String()
}
