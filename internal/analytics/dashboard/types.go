package dashboard

import (
	"time"

	"github.com/shopspring/decimal"
)

// Summary is the dashboard payload. It is built fresh per request and not modified afterwards.
type Summary struct {
	RealtimeActiveUsers int             `json:"realtimeActiveUsers"`
	Overview            Overview        `json:"overview"`
	Ecommerce           Ecommerce       `json:"ecommerce"`
	Growth              Growth          `json:"growth"`
	TopPages            []PageStat      `json:"topPages"`
	TrafficSources      []TrafficSource `json:"trafficSources"`
	Devices             []DeviceStat    `json:"devices"`
	Cities              []CityStat      `json:"cities"`
	Period              string          `json:"period"`
	GeneratedAt         time.Time       `json:"generatedAt"`

	// Warnings lists the optional reports that failed. Logged, never serialized.
	Warnings []string `json:"-"`
}

// Overview holds 30-day site totals. Rates are percentages.
type Overview struct {
	Sessions           int     `json:"sessions"`
	Users              int     `json:"users"`
	NewUsers           int     `json:"newUsers"`
	PageViews          int     `json:"pageViews"`
	BounceRate         float64 `json:"bounceRate"`
	AvgSessionDuration float64 `json:"avgSessionDuration"` // seconds
	EngagementRate     float64 `json:"engagementRate"`
}

// Ecommerce holds 30-day sales totals. Available is false when the report could not be fetched,
// which tells an outage apart from a period without sales.
type Ecommerce struct {
	Available      bool            `json:"available"`
	Purchases      int             `json:"purchases"`
	Revenue        decimal.Decimal `json:"revenue"`
	Transactions   int             `json:"transactions"`
	ConversionRate float64         `json:"conversionRate"`
}

// Growth is the change against the previous 30 days, in percent.
type Growth struct {
	Sessions  float64 `json:"sessions"`
	Users     float64 `json:"users"`
	PageViews float64 `json:"pageViews"`
}

type PageStat struct {
	Path      string `json:"path"`
	Title     string `json:"title"`
	PageViews int    `json:"pageViews"`
}

type TrafficSource struct {
	Source   string `json:"source"`
	Sessions int    `json:"sessions"`
	Users    int    `json:"users"`
}

type DeviceStat struct {
	Category string `json:"category"` // mobile, desktop, tablet
	Sessions int    `json:"sessions"`
	Users    int    `json:"users"`
}

type CityStat struct {
	City     string `json:"city"`
	Sessions int    `json:"sessions"`
	Users    int    `json:"users"`
}
