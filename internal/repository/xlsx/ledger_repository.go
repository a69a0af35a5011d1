package xlsx

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/mamadbah2/chickenstock/internal/domain/models"
)

// ErrLedgerLocked indicates the workbook is held by another program.
var ErrLedgerLocked = errors.New("ledger file is locked")

const dateNumFmt = "yyyy-mm-dd"

// Layouts accepted for text dates, in order of preference.
var textDateLayouts = []string{
	models.DateLayout,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"01/02/2006",
	"1/2/06",
	"02.01.2006",
}

// Repository loads and persists company ledgers.
type Repository interface {
	Path(company models.Company) string
	Load(ctx context.Context, company models.Company) (*models.Ledger, error)
	Save(ctx context.Context, ledger *models.Ledger) error
	Backup(ctx context.Context, company models.Company, destDir string, at time.Time) (string, error)
}

// LedgerRepository stores one workbook per company inside a base directory.
type LedgerRepository struct {
	dir    string
	logger *zap.Logger
}

// NewLedgerRepository creates the base directory when absent and returns a repository rooted there.
func NewLedgerRepository(dir string, logger *zap.Logger) (*LedgerRepository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("ledger directory must not be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create ledger directory %s: %w", dir, err)
	}
	return &LedgerRepository{dir: dir, logger: logger}, nil
}

// Dir returns the base directory.
func (r *LedgerRepository) Dir() string {
	return r.dir
}

// Path resolves the workbook location of the company ledger.
func (r *LedgerRepository) Path(company models.Company) string {
	return filepath.Join(r.dir, company.FileName())
}

// Load reads the company ledger, initializing an empty workbook on first access.
// Cells that cannot be parsed degrade to zero values.
func (r *LedgerRepository) Load(ctx context.Context, company models.Company) (*models.Ledger, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := r.Path(company)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		ledger := models.NewLedger(company)
		if err := r.Save(ctx, ledger); err != nil {
			r.logger.Warn("failed to initialize ledger file", zap.String("path", path), zap.Error(err))
		} else {
			r.logger.Info("ledger file initialized", zap.String("path", path))
		}
		return ledger, nil
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return models.NewLedger(company), nil
	}

	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read ledger %s: %w", path, err)
	}

	ledger := r.parseRows(company, rows)
	r.logger.Debug("ledger loaded", zap.String("path", path), zap.Int("rows", ledger.Len()))
	return ledger, nil
}

func (r *LedgerRepository) parseRows(company models.Company, rows [][]string) *models.Ledger {
	ledger := models.NewLedger(company)
	if len(rows) == 0 {
		return ledger
	}

	colIndex := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		colIndex[strings.TrimSpace(name)] = i
	}
	if _, ok := colIndex["Date"]; !ok {
		r.logger.Warn("ledger header has no Date column, treating as empty", zap.String("company", string(company)))
		return ledger
	}

	cell := func(row []string, column string) string {
		idx, ok := colIndex[column]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	for _, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		ledger.Entries = append(ledger.Entries, models.Entry{
			Date:         parseDate(cell(row, "Date")),
			SerialNumber: parseInt(cell(row, "S.No.")),
			Birds:        parseInt(cell(row, "Birds")),
			Weight:       parseDecimal(cell(row, "Weight")),
			Rate:         parseDecimal(cell(row, "Rate")),
			Value:        parseDecimal(cell(row, "Value")),
			Collection:   parseInt(cell(row, "Collection")),
			Balance:      parseDecimal(cell(row, "Balance")),
		})
	}
	return ledger
}

// Save overwrites the company workbook with the full ledger.
func (r *LedgerRepository) Save(ctx context.Context, ledger *models.Ledger) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ledger == nil {
		return errors.New("ledger must not be nil")
	}

	f, err := buildWorkbook(ledger)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	path := r.Path(ledger.Company)
	tmp := filepath.Join(r.dir, ".~"+ledger.Company.FileName())
	if err := f.SaveAs(tmp); err != nil {
		_ = os.Remove(tmp)
		return classifyWriteError(path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return classifyWriteError(path, err)
	}

	r.logger.Debug("ledger saved", zap.String("path", path), zap.Int("rows", ledger.Len()))
	return nil
}

// Backup copies the company workbook into destDir, returning the snapshot path.
// Companies without a workbook yet are skipped.
func (r *LedgerRepository) Backup(ctx context.Context, company models.Company, destDir string, at time.Time) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	src := r.Path(company)
	if _, err := os.Stat(src); errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("create backup directory %s: %w", destDir, err)
	}

	f, err := excelize.OpenFile(src)
	if err != nil {
		return "", fmt.Errorf("open ledger %s: %w", src, err)
	}
	defer func() { _ = f.Close() }()

	name := fmt.Sprintf("%s_daily_values_%s.xlsx", company, at.Format("20060102T150405"))
	dest := filepath.Join(destDir, name)
	if err := f.SaveAs(dest); err != nil {
		return "", fmt.Errorf("write backup %s: %w", dest, err)
	}
	return dest, nil
}

func buildWorkbook(ledger *models.Ledger) (*excelize.File, error) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	header := make([]interface{}, len(models.Columns))
	for i, name := range models.Columns {
		header[i] = name
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write header: %w", err)
	}

	for i, e := range ledger.Entries {
		var date interface{}
		if e.HasDate() {
			date = models.TruncateDate(e.Date)
		}
		values := []interface{}{
			date,
			e.SerialNumber,
			e.Birds,
			e.Weight.InexactFloat64(),
			e.Rate.InexactFloat64(),
			e.Value.InexactFloat64(),
			e.Collection,
			e.Balance.InexactFloat64(),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if n := len(ledger.Entries); n > 0 {
		numFmt := dateNumFmt
		style, err := f.NewStyle(&excelize.Style{CustomNumFmt: &numFmt})
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("create date style: %w", err)
		}
		last, _ := excelize.CoordinatesToCellName(1, n+1)
		if err := f.SetCellStyle(sheet, "A2", last, style); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("apply date style: %w", err)
		}
	}

	_ = f.SetColWidth(sheet, "A", "A", 12)
	return f, nil
}

func classifyWriteError(path string, err error) error {
	if errors.Is(err, fs.ErrPermission) {
		return fmt.Errorf("%w: %s: %v", ErrLedgerLocked, path, err)
	}
	return fmt.Errorf("save ledger %s: %w", path, err)
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// parseDate accepts Excel serial dates and common text layouts; anything else
// yields the zero date.
func parseDate(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if serial, err := strconv.ParseFloat(value, 64); err == nil {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return time.Time{}
		}
		return models.TruncateDate(t)
	}
	for _, layout := range textDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return models.TruncateDate(t)
		}
	}
	return time.Time{}
}

func parseDecimal(value string) decimal.Decimal {
	if value == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// parseInt truncates fractions; values outside int64 degrade to zero.
func parseInt(value string) int64 {
	n := parseDecimal(value).BigInt()
	if !n.IsInt64() {
		return 0
	}
	return n.Int64()
}
