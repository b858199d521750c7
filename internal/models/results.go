package models

import "time"

type CompanyStats struct {
	Company      string
	TradeCount   int
	AvgPrice     float64
	TotalShares  int64
	FirstListing time.Time
	LastListing  time.Time
}

type PricePoint struct {
	Company   string
	ListingAt time.Time
	Price     float64
}

type CompanyVolume struct {
	Company     string
	TradeCount  int
	TotalVolume float64
}

// TrendBucket aggregates prices within one truncated day, week, or month.
type TrendBucket struct {
	Bucket   time.Time
	AvgPrice float64
	MinPrice float64
	MaxPrice float64
}

type ShareGroupStats struct {
	Letter      string
	TradeCount  int
	TotalShares int64
	AvgPrice    float64
}

type CompanyComparison struct {
	Company      string
	TradeCount   int
	AvgPrice     float64
	TotalShares  int64
	TotalVolume  float64
	FirstListing time.Time
	LastListing  time.Time
}

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

type SentimentDay struct {
	Date      time.Time
	BuyCount  int
	SellCount int
	Sentiment Sentiment
	AvgPrice  float64
}

type AnomalyStatus string

const (
	AbnormalRise AnomalyStatus = "abnormal rise"
	AbnormalDrop AnomalyStatus = "abnormal drop"
)

// Anomaly is a company whose 30-day price extremes sit far from its mean.
// RiseScore is (max-mean)/stddev, DropScore is (mean-min)/stddev.
type Anomaly struct {
	Company     string
	AvgPrice    float64
	StdDevPrice float64
	MaxPrice    float64
	MinPrice    float64
	RiseScore   float64
	DropScore   float64
	Status      AnomalyStatus
}

type PricePrediction struct {
	Company        string
	Date           time.Time
	DayOffset      int
	PredictedPrice float64
}

type Correlation struct {
	Company1    string
	Company2    string
	Coefficient float64
	Overlap     int
}

type Regime string

const (
	RegimeEfficient      Regime = "efficient market"
	RegimeTrendFollowing Regime = "trend-following"
	RegimeMeanReverting  Regime = "mean-reverting"
)

type MarketEfficiency struct {
	Hurst  float64
	Regime Regime
	Days   int
}

type Liquidity struct {
	Company              string
	AvgDailyVolume       float64
	AvgPrice             float64
	AvgDailyTransactions float64
	AvgDailyTurnover     float64
	Days                 int
}
