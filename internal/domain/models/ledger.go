package models

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the canonical calendar date representation used across the app.
const DateLayout = "2006-01-02"

// ErrUnknownCompany indicates the requested company has no ledger.
var ErrUnknownCompany = errors.New("unknown company")

// Company identifies which ledger file is active.
type Company string

const (
	CompanySneha         Company = "sneha"
	CompanyVHSL          Company = "vhsl"
	CompanySatyanarayana Company = "satyanarayana"
)

// Companies lists every company in selector order.
func Companies() []Company {
	return []Company{CompanySneha, CompanyVHSL, CompanySatyanarayana}
}

// ParseCompany resolves a user supplied identifier into a known Company.
func ParseCompany(value string) (Company, error) {
	normalized := Company(strings.ToLower(strings.TrimSpace(value)))
	for _, c := range Companies() {
		if c == normalized {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCompany, value)
}

// FileName is the workbook name holding the company ledger.
func (c Company) FileName() string {
	return fmt.Sprintf("%s_daily_values.xlsx", c)
}

// Columns is the fixed header of a ledger workbook.
var Columns = []string{"Date", "S.No.", "Birds", "Weight", "Rate", "Value", "Collection", "Balance"}

// Entry is one purchase transaction row. A zero Date means the stored date
// could not be read.
type Entry struct {
	Date         time.Time       `json:"date"`
	SerialNumber int64           `json:"serial_no"`
	Birds        int64           `json:"birds"`
	Weight       decimal.Decimal `json:"weight"`
	Rate         decimal.Decimal `json:"rate"`
	Value        decimal.Decimal `json:"value"`
	Collection   int64           `json:"collection"`
	Balance      decimal.Decimal `json:"balance"`
}

// HasDate reports whether the entry carries a readable date.
func (e Entry) HasDate() bool {
	return !e.Date.IsZero()
}

// DateString renders the entry date or an empty string when unknown.
func (e Entry) DateString() string {
	if !e.HasDate() {
		return ""
	}
	return e.Date.Format(DateLayout)
}

// EntryInput carries the user entered fields of a new entry.
type EntryInput struct {
	Date         time.Time
	SerialNumber int64
	Birds        int64
	Weight       decimal.Decimal
	Rate         decimal.Decimal
	Collection   int64
}

// Validate checks the input ranges accepted by the entry form.
func (in EntryInput) Validate() error {
	switch {
	case in.Date.IsZero():
		return errors.New("date must be provided")
	case in.SerialNumber < 1:
		return errors.New("serial number must be at least 1")
	case in.Birds < 0:
		return errors.New("birds must not be negative")
	case in.Weight.IsNegative():
		return errors.New("weight must not be negative")
	case in.Rate.IsNegative():
		return errors.New("rate must not be negative")
	case !storable(in.Weight):
		return errors.New("weight has more digits than a workbook cell can hold")
	case !storable(in.Rate):
		return errors.New("rate has more digits than a workbook cell can hold")
	case in.Collection < 0:
		return errors.New("collection must not be negative")
	}
	return nil
}

// storable reports whether d survives a round trip through a numeric workbook cell.
func storable(d decimal.Decimal) bool {
	f := d.InexactFloat64()
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return false
	}
	return decimal.NewFromFloat(f).Equal(d)
}

// Ledger is the ordered table of entries kept for one company.
type Ledger struct {
	Company Company `json:"company"`
	Entries []Entry `json:"entries"`
}

// NewLedger returns an empty ledger for the company.
func NewLedger(company Company) *Ledger {
	return &Ledger{Company: company, Entries: []Entry{}}
}

// Len returns the number of rows.
func (l *Ledger) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Entries)
}

// LastBalance is the balance carried by the last row, zero for an empty ledger.
func (l *Ledger) LastBalance() decimal.Decimal {
	if l.Len() == 0 {
		return decimal.Zero
	}
	return l.Entries[len(l.Entries)-1].Balance
}

// Contains reports whether an entry with the same date and serial number exists.
func (l *Ledger) Contains(date time.Time, serial int64) bool {
	if l == nil {
		return false
	}
	day := TruncateDate(date)
	for _, e := range l.Entries {
		if e.SerialNumber == serial && e.Date.Equal(day) {
			return true
		}
	}
	return false
}

// WithEntry returns a copy of the ledger with entry appended as the last row.
func (l *Ledger) WithEntry(entry Entry) *Ledger {
	entries := make([]Entry, 0, l.Len()+1)
	entries = append(entries, l.Entries...)
	entries = append(entries, entry)
	return &Ledger{Company: l.Company, Entries: entries}
}

// WithoutRows returns a copy of the ledger without the given row positions.
// Positions must already be validated against Len.
func (l *Ledger) WithoutRows(positions []int) *Ledger {
	drop := make(map[int]struct{}, len(positions))
	for _, p := range positions {
		drop[p] = struct{}{}
	}

	entries := make([]Entry, 0, l.Len())
	for i, e := range l.Entries {
		if _, ok := drop[i]; ok {
			continue
		}
		entries = append(entries, e)
	}
	return &Ledger{Company: l.Company, Entries: entries}
}

// TruncateDate drops the time of day, keeping the calendar date in UTC.
func TruncateDate(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
