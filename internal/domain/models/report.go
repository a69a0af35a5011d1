package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DailySummary aggregates one company's entries for a calendar day.
type DailySummary struct {
	Date           time.Time       `json:"date"`
	Company        Company         `json:"company"`
	Entries        int             `json:"entries"`
	Birds          int64           `json:"birds"`
	Weight         decimal.Decimal `json:"weight"`
	Value          decimal.Decimal `json:"value"`
	Collection     int64           `json:"collection"`
	ClosingBalance decimal.Decimal `json:"closing_balance"`
}
