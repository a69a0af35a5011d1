package reporting

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mamadbah2/chickenstock/internal/domain/models"
	"github.com/mamadbah2/chickenstock/internal/service/balance"
)

// LedgerReader loads the persisted ledger of a company.
type LedgerReader interface {
	Load(ctx context.Context, company models.Company) (*models.Ledger, error)
}

// Archive stores generated summaries.
type Archive interface {
	SaveDailySummaries(ctx context.Context, summaries []models.DailySummary) error
}

// Notifier pushes a text report to an operator.
type Notifier interface {
	SendOutbound(ctx context.Context, req models.OutboundMessageRequest) error
}

// Service builds per-day summaries across all company ledgers.
type Service struct {
	ledgers   LedgerReader
	archive   Archive
	notifier  Notifier
	recipient string
	logger    *zap.Logger
}

// Option customizes optional collaborators of the Service.
type Option func(*Service)

// WithArchive stores every published summary.
func WithArchive(archive Archive) Option {
	return func(s *Service) { s.archive = archive }
}

// WithNotifier sends every published report to recipient.
func WithNotifier(notifier Notifier, recipient string) Option {
	return func(s *Service) {
		s.notifier = notifier
		s.recipient = recipient
	}
}

// NewService wires a new reporting service instance.
func NewService(ledgers LedgerReader, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{ledgers: ledgers, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DailySummaries aggregates the entries dated day for every company. The
// closing balance is the balance of the last row dated on or before day.
func (s *Service) DailySummaries(ctx context.Context, day time.Time) ([]models.DailySummary, error) {
	day = models.TruncateDate(day)
	summaries := make([]models.DailySummary, 0, len(models.Companies()))

	for _, company := range models.Companies() {
		ledger, err := s.ledgers.Load(ctx, company)
		if err != nil {
			return nil, fmt.Errorf("load %s ledger: %w", company, err)
		}
		summaries = append(summaries, summarize(ledger, day))
	}

	return summaries, nil
}

func summarize(ledger *models.Ledger, day time.Time) models.DailySummary {
	summary := models.DailySummary{
		Date:           day,
		Company:        ledger.Company,
		Weight:         decimal.Zero,
		Value:          decimal.Zero,
		ClosingBalance: decimal.Zero,
	}

	for _, e := range ledger.Entries {
		if !e.HasDate() || e.Date.After(day) {
			continue
		}
		summary.ClosingBalance = e.Balance
		if !e.Date.Equal(day) {
			continue
		}
		summary.Entries++
		summary.Birds += e.Birds
		summary.Weight = summary.Weight.Add(e.Weight)
		summary.Value = summary.Value.Add(e.Value)
		summary.Collection += e.Collection
	}

	return summary
}

// FormatDailyReport renders summaries as a plain text message.
func FormatDailyReport(day time.Time, summaries []models.DailySummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Daily purchases %s", day.Format(models.DateLayout))

	for _, sm := range summaries {
		if sm.Entries == 0 {
			fmt.Fprintf(&b, "\n%s: no entries. Balance %s.", sm.Company, sm.ClosingBalance.StringFixed(balance.Places))
			continue
		}
		fmt.Fprintf(&b, "\n%s: %d entries, %d birds, %s kg, value %s, collection %d. Balance %s.",
			sm.Company,
			sm.Entries,
			sm.Birds,
			sm.Weight.String(),
			sm.Value.StringFixed(balance.Places),
			sm.Collection,
			sm.ClosingBalance.StringFixed(balance.Places))
	}

	return b.String()
}

// PublishDaily builds the day report, archives it and notifies the operator
// when those collaborators are configured. Archive and notification failures
// are logged and do not prevent the report from being returned.
func (s *Service) PublishDaily(ctx context.Context, day time.Time) (string, error) {
	summaries, err := s.DailySummaries(ctx, day)
	if err != nil {
		return "", err
	}

	report := FormatDailyReport(models.TruncateDate(day), summaries)

	if s.archive != nil {
		if err := s.archive.SaveDailySummaries(ctx, summaries); err != nil {
			s.logger.Error("failed to archive daily summaries", zap.Error(err))
		}
	}

	if s.notifier != nil && s.recipient != "" {
		req := models.OutboundMessageRequest{To: s.recipient, Message: report}
		if err := s.notifier.SendOutbound(ctx, req); err != nil {
			s.logger.Error("failed to send daily report", zap.Error(err))
		}
	}

	return report, nil
}
