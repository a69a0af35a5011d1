package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/chickenstock/internal/domain/models"
	repo "github.com/mamadbah2/chickenstock/internal/repository/xlsx"
	"github.com/mamadbah2/chickenstock/internal/service/balance"
)

// ErrDuplicateEntry indicates an entry with the same date and serial number exists.
var ErrDuplicateEntry = errors.New("an entry with the same date and serial number already exists")

// ErrNoRowsSelected indicates a delete command without any row positions.
var ErrNoRowsSelected = errors.New("no rows selected for deletion")

// ErrRowOutOfRange indicates a delete command referencing a row that does not exist.
var ErrRowOutOfRange = errors.New("selected row does not exist")

// ErrInvalidEntry indicates the entry input failed range validation.
var ErrInvalidEntry = errors.New("invalid entry")

// PersistError reports a failed write of the ledger workbook. The mutation
// that triggered it has been discarded.
type PersistError struct {
	Path string
	Err  error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist ledger %s: %v", e.Path, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

// Locked reports whether the workbook was held by another program.
func (e *PersistError) Locked() bool {
	return errors.Is(e.Err, repo.ErrLedgerLocked)
}

// Preview is the live computation shown before an entry is committed.
type Preview struct {
	PreviousBalance string `json:"previous_balance"`
	balance.Result
}

// Manager describes the commands available to the presentation layer.
type Manager interface {
	Load(ctx context.Context, company models.Company) (*models.Ledger, error)
	Preview(ctx context.Context, company models.Company, input models.EntryInput) (*models.Ledger, Preview, error)
	AddEntry(ctx context.Context, company models.Company, input models.EntryInput) (*models.Ledger, models.Entry, error)
	DeleteRows(ctx context.Context, company models.Company, positions []int) (*models.Ledger, error)
	Path(company models.Company) string
}

// Service executes ledger commands against the workbook repository. Each
// command reloads the persisted ledger, so storage stays the source of truth.
type Service struct {
	repo   repo.Repository
	logger *zap.Logger
	mu     sync.Mutex
}

// NewService constructs the ledger command service.
func NewService(repository repo.Repository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repository, logger: logger}
}

// Path exposes the workbook location for user facing messages.
func (s *Service) Path(company models.Company) string {
	return s.repo.Path(company)
}

// Load returns the persisted ledger of the company.
func (s *Service) Load(ctx context.Context, company models.Company) (*models.Ledger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx, company)
}

// Preview computes Value and Balance for the input against the last stored row.
func (s *Service) Preview(ctx context.Context, company models.Company, input models.EntryInput) (*models.Ledger, Preview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ledger, err := s.load(ctx, company)
	if err != nil {
		return nil, Preview{}, err
	}

	prev := ledger.LastBalance()
	return ledger, Preview{
		PreviousBalance: prev.StringFixed(balance.Places),
		Result:          balance.Calculate(input.Weight, input.Rate, input.Collection, prev),
	}, nil
}

// AddEntry derives the computed columns, rejects duplicates, appends and persists.
// On failure the returned ledger is the one still on storage.
func (s *Service) AddEntry(ctx context.Context, company models.Company, input models.EntryInput) (*models.Ledger, models.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ledger, err := s.load(ctx, company)
	if err != nil {
		return nil, models.Entry{}, err
	}

	if err := input.Validate(); err != nil {
		return ledger, models.Entry{}, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	date := models.TruncateDate(input.Date)
	if ledger.Contains(date, input.SerialNumber) {
		s.logger.Info("duplicate entry rejected",
			zap.String("company", string(company)),
			zap.String("date", date.Format(models.DateLayout)),
			zap.Int64("serial_no", input.SerialNumber))
		return ledger, models.Entry{}, ErrDuplicateEntry
	}

	computed := balance.Calculate(input.Weight, input.Rate, input.Collection, ledger.LastBalance())
	entry := models.Entry{
		Date:         date,
		SerialNumber: input.SerialNumber,
		Birds:        input.Birds,
		Weight:       input.Weight,
		Rate:         input.Rate,
		Value:        computed.Value,
		Collection:   input.Collection,
		Balance:      computed.Balance,
	}

	next := ledger.WithEntry(entry)
	if err := s.persist(ctx, next); err != nil {
		return ledger, models.Entry{}, err
	}

	s.logger.Info("entry added",
		zap.String("company", string(company)),
		zap.String("date", entry.DateString()),
		zap.Int64("serial_no", entry.SerialNumber),
		zap.String("value", entry.Value.String()),
		zap.String("balance", entry.Balance.String()))
	return next, entry, nil
}

// DeleteRows removes the rows at the given positions and persists the rest in order.
// On failure the returned ledger is the one still on storage.
func (s *Service) DeleteRows(ctx context.Context, company models.Company, positions []int) (*models.Ledger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ledger, err := s.load(ctx, company)
	if err != nil {
		return nil, err
	}

	if len(positions) == 0 {
		return ledger, ErrNoRowsSelected
	}

	unique := dedupe(positions)
	for _, p := range unique {
		if p < 0 || p >= ledger.Len() {
			return ledger, fmt.Errorf("%w: %d", ErrRowOutOfRange, p)
		}
	}

	next := ledger.WithoutRows(unique)
	if err := s.persist(ctx, next); err != nil {
		return ledger, err
	}

	s.logger.Info("rows deleted", zap.String("company", string(company)), zap.Ints("positions", unique))
	return next, nil
}

// Backup snapshots every company workbook into destDir and returns the written paths.
// A failing company does not stop the others; the first error is returned.
func (s *Service) Backup(ctx context.Context, destDir string, at time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var written []string
	var firstErr error
	for _, company := range models.Companies() {
		path, err := s.repo.Backup(ctx, company, destDir, at)
		if err != nil {
			s.logger.Error("ledger backup failed", zap.String("company", string(company)), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if path != "" {
			written = append(written, path)
		}
	}
	return written, firstErr
}

func (s *Service) load(ctx context.Context, company models.Company) (*models.Ledger, error) {
	ledger, err := s.repo.Load(ctx, company)
	if err != nil {
		s.logger.Error("failed to load ledger", zap.String("company", string(company)), zap.Error(err))
		return nil, fmt.Errorf("load %s ledger: %w", company, err)
	}
	return ledger, nil
}

func (s *Service) persist(ctx context.Context, ledger *models.Ledger) error {
	if err := s.repo.Save(ctx, ledger); err != nil {
		path := s.repo.Path(ledger.Company)
		s.logger.Error("failed to persist ledger", zap.String("path", path), zap.Error(err))
		return &PersistError{Path: path, Err: err}
	}
	return nil
}

func dedupe(positions []int) []int {
	seen := make(map[int]struct{}, len(positions))
	out := make([]int, 0, len(positions))
	for _, p := range positions {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Ints(out)
	return out
}
