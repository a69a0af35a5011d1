package handlers

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mamadbah2/chickenstock/internal/domain/models"
	"github.com/mamadbah2/chickenstock/internal/service/balance"
	"github.com/mamadbah2/chickenstock/internal/service/ledger"
	"github.com/mamadbah2/chickenstock/internal/service/reporting"
)

//go:embed templates/*.html
var templateFS embed.FS

// PageTemplate is the name of the ledger form template.
const PageTemplate = "ledger.html"

// Templates parses the embedded HTML templates.
func Templates() *template.Template {
	return template.Must(template.New("").ParseFS(templateFS, "templates/*.html"))
}

const (
	levelSuccess = "success"
	levelWarning = "warning"
	levelError   = "error"
)

// DailyReporter exposes the per-day ledger summaries.
type DailyReporter interface {
	DailySummaries(ctx context.Context, day time.Time) ([]models.DailySummary, error)
}

// LedgerHandler serves the ledger form and its JSON API.
type LedgerHandler struct {
	svc     ledger.Manager
	reports DailyReporter
	logger  *zap.Logger
	now     func() time.Time
}

// NewLedgerHandler constructs the HTTP handler adapter. Default dates are
// taken from the current day in loc.
func NewLedgerHandler(svc ledger.Manager, reports DailyReporter, loc *time.Location, logger *zap.Logger) *LedgerHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.Local
	}
	return &LedgerHandler{
		svc:     svc,
		reports: reports,
		logger:  logger,
		now:     func() time.Time { return time.Now().In(loc) },
	}
}

type entryRequest struct {
	Date         string      `form:"date" json:"date" binding:"required"`
	SerialNumber int64       `form:"serial_no" json:"serial_no" binding:"min=1"`
	Birds        int64       `form:"birds" json:"birds" binding:"min=0"`
	Weight       json.Number `form:"weight" json:"weight"`
	Rate         json.Number `form:"rate" json:"rate"`
	Collection   int64       `form:"collection" json:"collection" binding:"min=0"`
	Action       string      `form:"action" json:"-"`
}

func (r entryRequest) toInput() (models.EntryInput, error) {
	date, err := time.Parse(models.DateLayout, r.Date)
	if err != nil {
		return models.EntryInput{}, fmt.Errorf("date must use the YYYY-MM-DD format")
	}
	weight, err := parseAmount("weight", r.Weight)
	if err != nil {
		return models.EntryInput{}, err
	}
	rate, err := parseAmount("rate", r.Rate)
	if err != nil {
		return models.EntryInput{}, err
	}

	input := models.EntryInput{
		Date:         date,
		SerialNumber: r.SerialNumber,
		Birds:        r.Birds,
		Weight:       weight,
		Rate:         rate,
		Collection:   r.Collection,
	}
	if err := input.Validate(); err != nil {
		return models.EntryInput{}, err
	}
	return input, nil
}

// parseAmount reads a decimal field exactly as typed; blank means zero.
func parseAmount(field string, raw json.Number) (decimal.Decimal, error) {
	value := strings.TrimSpace(raw.String())
	if value == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s must be a number", field)
	}
	return d, nil
}

type deleteRequest struct {
	Rows []int `form:"rows" json:"rows"`
}

type flash struct {
	Level string `json:"level"`
	Text  string `json:"message"`
}

type rowView struct {
	Index        int    `json:"index"`
	Date         string `json:"date"`
	SerialNumber int64  `json:"serial_no"`
	Birds        int64  `json:"birds"`
	Weight       string `json:"weight"`
	Rate         string `json:"rate"`
	Value        string `json:"value"`
	Collection   int64  `json:"collection"`
	Balance      string `json:"balance"`
}

type ledgerView struct {
	Company models.Company `json:"company"`
	Path    string         `json:"path"`
	Rows    []rowView      `json:"entries"`
}

type formView struct {
	Date         string
	SerialNumber int64
	Birds        int64
	Weight       string
	Rate         string
	Collection   int64
}

type pageView struct {
	Companies []models.Company
	Company   models.Company
	Form      formView
	Value     string
	Balance   string
	Ledger    ledgerView
	Flash     *flash
}

// SelectCompany redirects the selector form to the company page.
func (h *LedgerHandler) SelectCompany(c *gin.Context) {
	company, err := models.ParseCompany(c.Query("company"))
	if err != nil {
		company = models.CompanySneha
	}
	c.Redirect(http.StatusSeeOther, "/ledger/"+string(company))
}

// Page renders the entry form with values computed from default inputs.
func (h *LedgerHandler) Page(c *gin.Context) {
	company, ok := h.company(c, true)
	if !ok {
		return
	}

	req := entryRequest{Date: h.now().Format(models.DateLayout), SerialNumber: 1}
	input, _ := req.toInput()
	book, preview, err := h.svc.Preview(c.Request.Context(), company, input)
	if err != nil {
		h.renderError(c, company, req, err)
		return
	}

	h.render(c, http.StatusOK, company, req, book, &preview.Result, nil)
}

// SubmitEntryForm handles the Calculate and Add Entry buttons.
func (h *LedgerHandler) SubmitEntryForm(c *gin.Context) {
	company, ok := h.company(c, true)
	if !ok {
		return
	}

	var req entryRequest
	bindErr := c.ShouldBind(&req)
	input, err := req.toInput()
	if bindErr != nil || err != nil {
		book, _ := h.svc.Load(c.Request.Context(), company)
		h.render(c, http.StatusBadRequest, company, req, book, nil, &flash{Level: levelWarning, Text: "Please correct the entry fields: " + firstErr(bindErr, err).Error()})
		return
	}

	ctx := c.Request.Context()
	if req.Action != "add" {
		book, preview, err := h.svc.Preview(ctx, company, input)
		if err != nil {
			h.renderError(c, company, req, err)
			return
		}
		h.render(c, http.StatusOK, company, req, book, &preview.Result, nil)
		return
	}

	book, entry, err := h.svc.AddEntry(ctx, company, input)
	if err != nil {
		status, msg := h.classify(company, err)
		h.render(c, status, company, req, book, h.recompute(input, book), msg)
		return
	}

	h.render(c, http.StatusOK, company, req, book, &balance.Result{Value: entry.Value, Balance: entry.Balance},
		&flash{Level: levelSuccess, Text: "Entry added successfully!"})
}

// SubmitDeleteForm handles the Delete Selected button.
func (h *LedgerHandler) SubmitDeleteForm(c *gin.Context) {
	company, ok := h.company(c, true)
	if !ok {
		return
	}

	var req deleteRequest
	if err := c.ShouldBind(&req); err != nil {
		h.logger.Warn("invalid delete form", zap.Error(err))
	}

	form := entryRequest{Date: h.now().Format(models.DateLayout), SerialNumber: 1}
	book, err := h.svc.DeleteRows(c.Request.Context(), company, req.Rows)
	if err != nil {
		status, msg := h.classify(company, err)
		h.render(c, status, company, form, book, nil, msg)
		return
	}

	h.render(c, http.StatusOK, company, form, book, nil, &flash{Level: levelSuccess, Text: "Selected rows deleted successfully."})
}

// ListCompanies returns the selectable companies.
func (h *LedgerHandler) ListCompanies(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"companies": models.Companies()})
}

// GetLedger returns the full table of a company.
func (h *LedgerHandler) GetLedger(c *gin.Context) {
	company, ok := h.company(c, false)
	if !ok {
		return
	}

	book, err := h.svc.Load(c.Request.Context(), company)
	if err != nil {
		h.jsonError(c, company, err, nil)
		return
	}
	c.JSON(http.StatusOK, h.view(company, book))
}

// PreviewEntry computes Value and Balance without persisting.
func (h *LedgerHandler) PreviewEntry(c *gin.Context) {
	company, ok := h.company(c, false)
	if !ok {
		return
	}

	input, ok := h.bindEntryJSON(c)
	if !ok {
		return
	}

	_, preview, err := h.svc.Preview(c.Request.Context(), company, input)
	if err != nil {
		h.jsonError(c, company, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"value":            preview.Value.StringFixed(balance.Places),
		"balance":          preview.Balance.StringFixed(balance.Places),
		"previous_balance": preview.PreviousBalance,
	})
}

// AddEntry appends an entry and returns the updated table.
func (h *LedgerHandler) AddEntry(c *gin.Context) {
	company, ok := h.company(c, false)
	if !ok {
		return
	}

	input, ok := h.bindEntryJSON(c)
	if !ok {
		return
	}

	book, entry, err := h.svc.AddEntry(c.Request.Context(), company, input)
	if err != nil {
		h.jsonError(c, company, err, book)
		return
	}

	view := h.view(company, book)
	c.JSON(http.StatusCreated, gin.H{
		"message": "Entry added successfully!",
		"entry":   view.Rows[len(view.Rows)-1],
		"ledger":  view,
		"value":   entry.Value.StringFixed(balance.Places),
		"balance": entry.Balance.StringFixed(balance.Places),
	})
}

// DeleteRows removes the selected row positions.
func (h *LedgerHandler) DeleteRows(c *gin.Context) {
	company, ok := h.company(c, false)
	if !ok {
		return
	}

	var req deleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid delete payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"level": levelWarning, "message": "invalid request body"})
		return
	}

	book, err := h.svc.DeleteRows(c.Request.Context(), company, req.Rows)
	if err != nil {
		h.jsonError(c, company, err, book)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Selected rows deleted successfully.",
		"ledger":  h.view(company, book),
	})
}

// DailyReport returns the per-company summaries of a day (default today).
func (h *LedgerHandler) DailyReport(c *gin.Context) {
	if h.reports == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "reporting disabled"})
		return
	}

	day := h.now()
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.Parse(models.DateLayout, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must use the YYYY-MM-DD format"})
			return
		}
		day = parsed
	}
	day = models.TruncateDate(day)

	summaries, err := h.reports.DailySummaries(c.Request.Context(), day)
	if err != nil {
		h.logger.Error("failed building daily report", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build report"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"date":      day.Format(models.DateLayout),
		"summaries": summaries,
		"report":    reporting.FormatDailyReport(day, summaries),
	})
}

func (h *LedgerHandler) company(c *gin.Context, html bool) (models.Company, bool) {
	company, err := models.ParseCompany(c.Param("company"))
	if err != nil {
		if html {
			c.String(http.StatusNotFound, "unknown company")
		} else {
			c.JSON(http.StatusNotFound, gin.H{"level": levelError, "message": err.Error()})
		}
		return "", false
	}
	return company, true
}

func (h *LedgerHandler) bindEntryJSON(c *gin.Context) (models.EntryInput, bool) {
	var req entryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid entry payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"level": levelWarning, "message": "invalid request body"})
		return models.EntryInput{}, false
	}
	input, err := req.toInput()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"level": levelWarning, "message": err.Error()})
		return models.EntryInput{}, false
	}
	return input, true
}

// classify maps command errors onto the user visible status.
func (h *LedgerHandler) classify(company models.Company, err error) (int, *flash) {
	var persistErr *ledger.PersistError
	switch {
	case errors.Is(err, ledger.ErrDuplicateEntry):
		return http.StatusConflict, &flash{Level: levelWarning, Text: "An entry with the same date and serial number already exists."}
	case errors.Is(err, ledger.ErrNoRowsSelected):
		return http.StatusBadRequest, &flash{Level: levelWarning, Text: "No rows selected for deletion."}
	case errors.Is(err, ledger.ErrRowOutOfRange), errors.Is(err, ledger.ErrInvalidEntry):
		return http.StatusBadRequest, &flash{Level: levelWarning, Text: err.Error()}
	case errors.As(err, &persistErr) && persistErr.Locked():
		return http.StatusLocked, &flash{Level: levelError, Text: fmt.Sprintf("Permission denied: Ensure '%s' is not open in another program.", persistErr.Path)}
	case errors.As(err, &persistErr):
		return http.StatusInternalServerError, &flash{Level: levelError, Text: fmt.Sprintf("Error saving to Excel: %v", persistErr.Err)}
	default:
		h.logger.Error("ledger command failed", zap.String("company", string(company)), zap.Error(err))
		return http.StatusInternalServerError, &flash{Level: levelError, Text: fmt.Sprintf("Error reading %s: %v", h.svc.Path(company), err)}
	}
}

func (h *LedgerHandler) jsonError(c *gin.Context, company models.Company, err error, book *models.Ledger) {
	status, msg := h.classify(company, err)
	body := gin.H{"level": msg.Level, "message": msg.Text}
	if book != nil {
		body["ledger"] = h.view(company, book)
	}
	c.JSON(status, body)
}

func (h *LedgerHandler) renderError(c *gin.Context, company models.Company, req entryRequest, err error) {
	status, msg := h.classify(company, err)
	h.render(c, status, company, req, nil, nil, msg)
}

func (h *LedgerHandler) recompute(input models.EntryInput, book *models.Ledger) *balance.Result {
	if book == nil {
		return nil
	}
	r := balance.Calculate(input.Weight, input.Rate, input.Collection, book.LastBalance())
	return &r
}

func (h *LedgerHandler) render(c *gin.Context, status int, company models.Company, req entryRequest, book *models.Ledger, computed *balance.Result, msg *flash) {
	page := pageView{
		Companies: models.Companies(),
		Company:   company,
		Form: formView{
			Date:         req.Date,
			SerialNumber: req.SerialNumber,
			Birds:        req.Birds,
			Weight:       req.Weight.String(),
			Rate:         req.Rate.String(),
			Collection:   req.Collection,
		},
		Ledger: h.view(company, book),
		Flash:  msg,
	}
	if computed != nil {
		page.Value = computed.Value.StringFixed(balance.Places)
		page.Balance = computed.Balance.StringFixed(balance.Places)
	}
	c.HTML(status, PageTemplate, page)
}

func (h *LedgerHandler) view(company models.Company, book *models.Ledger) ledgerView {
	view := ledgerView{Company: company, Path: h.svc.Path(company), Rows: []rowView{}}
	if book == nil {
		return view
	}
	for i, e := range book.Entries {
		view.Rows = append(view.Rows, rowView{
			Index:        i,
			Date:         e.DateString(),
			SerialNumber: e.SerialNumber,
			Birds:        e.Birds,
			Weight:       e.Weight.String(),
			Rate:         e.Rate.String(),
			Value:        e.Value.StringFixed(balance.Places),
			Collection:   e.Collection,
			Balance:      e.Balance.StringFixed(balance.Places),
		})
	}
	return view
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
