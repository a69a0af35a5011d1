package xlsx

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/mamadbah2/chickenstock/internal/domain/models"
)

func newTestRepo(t *testing.T) *LedgerRepository {
	t.Helper()

	repo, err := NewLedgerRepository(filepath.Join(t.TempDir(), "chicken_stock"), nil)
	require.NoError(t, err)
	return repo
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func writeWorkbook(t *testing.T, path string, rows [][]interface{}) {
	t.Helper()

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &r))
	}
	require.NoError(t, f.SaveAs(path))
}

func TestNewLedgerRepository_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "chicken_stock")

	repo, err := NewLedgerRepository(dir, nil)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, filepath.Join(dir, "sneha_daily_values.xlsx"), repo.Path(models.CompanySneha))
}

func TestNewLedgerRepository_RejectsEmptyDir(t *testing.T) {
	_, err := NewLedgerRepository("  ", nil)
	assert.Error(t, err)
}

func TestLoad_InitializesMissingFile(t *testing.T) {
	repo := newTestRepo(t)

	ledger, err := repo.Load(context.Background(), models.CompanyVHSL)
	require.NoError(t, err)
	assert.Equal(t, models.CompanyVHSL, ledger.Company)
	assert.Equal(t, 0, ledger.Len())

	f, err := excelize.OpenFile(repo.Path(models.CompanyVHSL))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(f.GetSheetList()[0])
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, models.Columns, rows[0])
}

func TestSaveThenLoad_RoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	want := models.NewLedger(models.CompanySneha).
		WithEntry(models.Entry{
			Date:         date(2024, 1, 1),
			SerialNumber: 1,
			Birds:        10,
			Weight:       decimal.RequireFromString("5.0"),
			Rate:         decimal.RequireFromString("100.0"),
			Value:        decimal.RequireFromString("500"),
			Collection:   600,
			Balance:      decimal.RequireFromString("100"),
		}).
		WithEntry(models.Entry{
			Date:         date(2024, 1, 2),
			SerialNumber: 2,
			Birds:        8,
			Weight:       decimal.RequireFromString("4.35"),
			Rate:         decimal.RequireFromString("98.5"),
			Value:        decimal.RequireFromString("428.48"),
			Collection:   300,
			Balance:      decimal.RequireFromString("-28.48"),
		})

	require.NoError(t, repo.Save(ctx, want))

	got, err := repo.Load(ctx, models.CompanySneha)
	require.NoError(t, err)
	require.Equal(t, want.Len(), got.Len())

	for i := range want.Entries {
		w, g := want.Entries[i], got.Entries[i]
		assert.True(t, w.Date.Equal(g.Date), "row %d date %s != %s", i, w.Date, g.Date)
		assert.Equal(t, w.SerialNumber, g.SerialNumber)
		assert.Equal(t, w.Birds, g.Birds)
		assert.True(t, w.Weight.Equal(g.Weight), "row %d weight %s != %s", i, w.Weight, g.Weight)
		assert.True(t, w.Rate.Equal(g.Rate), "row %d rate %s != %s", i, w.Rate, g.Rate)
		assert.True(t, w.Value.Equal(g.Value), "row %d value %s != %s", i, w.Value, g.Value)
		assert.Equal(t, w.Collection, g.Collection)
		assert.True(t, w.Balance.Equal(g.Balance), "row %d balance %s != %s", i, w.Balance, g.Balance)
	}

	_, err = os.Stat(filepath.Join(repo.Dir(), ".~sneha_daily_values.xlsx"))
	assert.True(t, os.IsNotExist(err), "temporary workbook must not remain")
}

func TestSave_WritesDateOnlyCells(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	ledger := models.NewLedger(models.CompanySneha).WithEntry(models.Entry{
		Date:         time.Date(2024, 2, 29, 17, 30, 0, 0, time.UTC),
		SerialNumber: 3,
	})
	require.NoError(t, repo.Save(ctx, ledger))

	f, err := excelize.OpenFile(repo.Path(models.CompanySneha))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	formatted, err := f.GetCellValue("Sheet1", "A2")
	require.NoError(t, err)
	assert.Equal(t, "2024-02-29", formatted)
}

func TestLoad_CoercesDates(t *testing.T) {
	repo := newTestRepo(t)
	path := repo.Path(models.CompanySatyanarayana)

	writeWorkbook(t, path, [][]interface{}{
		{"Date", "S.No.", "Birds", "Weight", "Rate", "Value", "Collection", "Balance"},
		{"2024-01-05 13:45:00", 1, 10, 5, 100, 500, 600, 100},
		{"2024-01-06", 2, 8, 4, 100, 400, 300, 0},
		{45292.75, 3, 1, 1, 1, 1, 1, 0},
		{"not a date", 4, 1, 1, 1, 1, 1, 0},
		{"", 5, 1, 1, 1, 1, 1, 0},
	})

	ledger, err := repo.Load(context.Background(), models.CompanySatyanarayana)
	require.NoError(t, err)
	require.Equal(t, 5, ledger.Len())

	assert.Equal(t, date(2024, 1, 5), ledger.Entries[0].Date)
	assert.Equal(t, date(2024, 1, 6), ledger.Entries[1].Date)
	assert.Equal(t, date(2024, 1, 1), ledger.Entries[2].Date)
	assert.False(t, ledger.Entries[3].HasDate())
	assert.False(t, ledger.Entries[4].HasDate())
	assert.Equal(t, int64(4), ledger.Entries[3].SerialNumber)
}

func TestLoad_DegradesUnparseableNumbers(t *testing.T) {
	repo := newTestRepo(t)
	path := repo.Path(models.CompanySneha)

	writeWorkbook(t, path, [][]interface{}{
		{"Date", "S.No.", "Birds", "Weight", "Rate", "Value", "Collection", "Balance"},
		{"2024-01-05", "x", "ten", "heavy", 100, 500, "", "12.5"},
	})

	ledger, err := repo.Load(context.Background(), models.CompanySneha)
	require.NoError(t, err)
	require.Equal(t, 1, ledger.Len())

	e := ledger.Entries[0]
	assert.Equal(t, int64(0), e.SerialNumber)
	assert.Equal(t, int64(0), e.Birds)
	assert.True(t, e.Weight.IsZero())
	assert.Equal(t, int64(0), e.Collection)
	assert.Equal(t, "12.5", e.Balance.String())
}

func TestLoad_MapsColumnsByHeader(t *testing.T) {
	repo := newTestRepo(t)
	path := repo.Path(models.CompanyVHSL)

	writeWorkbook(t, path, [][]interface{}{
		{"Balance", "Date", "S.No.", "Unnamed: 0"},
		{250, "2024-03-01", 7, "junk"},
	})

	ledger, err := repo.Load(context.Background(), models.CompanyVHSL)
	require.NoError(t, err)
	require.Equal(t, 1, ledger.Len())
	assert.Equal(t, int64(7), ledger.Entries[0].SerialNumber)
	assert.Equal(t, "250", ledger.Entries[0].Balance.String())
	assert.True(t, ledger.Entries[0].Weight.IsZero())
}

func TestLoad_WithoutDateHeaderIsEmpty(t *testing.T) {
	repo := newTestRepo(t)
	path := repo.Path(models.CompanyVHSL)

	writeWorkbook(t, path, [][]interface{}{
		{"Foo", "Bar"},
		{1, 2},
	})

	ledger, err := repo.Load(context.Background(), models.CompanyVHSL)
	require.NoError(t, err)
	assert.Equal(t, 0, ledger.Len())
}

func TestLoad_SkipsBlankRows(t *testing.T) {
	repo := newTestRepo(t)
	path := repo.Path(models.CompanySneha)

	writeWorkbook(t, path, [][]interface{}{
		{"Date", "S.No.", "Birds", "Weight", "Rate", "Value", "Collection", "Balance"},
		{"2024-01-01", 1, 1, 1, 1, 1, 1, 0},
		{nil, nil, nil},
		{"2024-01-02", 2, 1, 1, 1, 1, 1, 0},
	})

	ledger, err := repo.Load(context.Background(), models.CompanySneha)
	require.NoError(t, err)
	assert.Equal(t, 2, ledger.Len())
}

func TestLoad_CorruptFileFails(t *testing.T) {
	repo := newTestRepo(t)
	require.NoError(t, os.WriteFile(repo.Path(models.CompanySneha), []byte("not a workbook"), 0o644))

	_, err := repo.Load(context.Background(), models.CompanySneha)
	assert.Error(t, err)
}

func TestLoad_HonorsCanceledContext(t *testing.T) {
	repo := newTestRepo(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.Load(ctx, models.CompanySneha)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBackup(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	dest := filepath.Join(t.TempDir(), "backups")
	at := time.Date(2024, 1, 2, 21, 0, 0, 0, time.UTC)

	path, err := repo.Backup(ctx, models.CompanySneha, dest, at)
	require.NoError(t, err)
	assert.Empty(t, path, "missing ledgers are skipped")

	ledger := models.NewLedger(models.CompanySneha).WithEntry(models.Entry{Date: date(2024, 1, 2), SerialNumber: 1})
	require.NoError(t, repo.Save(ctx, ledger))

	path, err = repo.Backup(ctx, models.CompanySneha, dest, at)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dest, "sneha_daily_values_20240102T210000.xlsx"), path)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	rows, err := f.GetRows("Sheet1")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestClassifyWriteError(t *testing.T) {
	err := classifyWriteError("/tmp/x.xlsx", &os.PathError{Op: "open", Path: "/tmp/x.xlsx", Err: os.ErrPermission})
	assert.ErrorIs(t, err, ErrLedgerLocked)
	assert.Contains(t, err.Error(), "/tmp/x.xlsx")

	err = classifyWriteError("/tmp/x.xlsx", os.ErrClosed)
	assert.NotErrorIs(t, err, ErrLedgerLocked)
	assert.ErrorIs(t, err, os.ErrClosed)
}

func TestParseInt(t *testing.T) {
	cases := map[string]int64{
		"7":                   7,
		"10.9":                10,
		"-3":                  -3,
		"":                    0,
		"x":                   0,
		"1e20":                0,
		"-1e20":               0,
		"9223372036854775807": 9223372036854775807,
		"9223372036854775808": 0,
	}
	for in, want := range cases {
		assert.Equal(t, want, parseInt(in), in)
	}
}

func TestLoad_OversizedSerialDegradesToZero(t *testing.T) {
	repo := newTestRepo(t)
	path := repo.Path(models.CompanySneha)

	writeWorkbook(t, path, [][]interface{}{
		{"Date", "S.No.", "Birds"},
		{"2024-01-05", "1e20", 4},
	})

	ledger, err := repo.Load(context.Background(), models.CompanySneha)
	require.NoError(t, err)
	require.Equal(t, 1, ledger.Len())
	assert.Equal(t, int64(0), ledger.Entries[0].SerialNumber)
	assert.Equal(t, int64(4), ledger.Entries[0].Birds)
}
