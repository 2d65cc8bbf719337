package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"kharcha/internal/core"
	"kharcha/internal/log"
)

const maxBodyBytes = 64 * 1024

// expenseRequest is the mutation payload. Amount is a decimal string so
// clients never send binary floats for money.
type expenseRequest struct {
	Date     string `json:"date"`
	Amount   string `json:"amount"`
	Note     string `json:"note"`
	Category string `json:"category"`
}

func (s *Server) handleSidebar(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, s.surfaces.Sidebar.Model())
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, s.surfaces.Summary.Model())
}

func (s *Server) handleCharts(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, s.surfaces.Charts.Model())
}

func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, s.surfaces.Table.Model())
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, s.surfaces.Settings.Model())
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.Notices())
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="expenses.csv"`)
	if err := s.ctrl.ExportCSV(w); err != nil {
		s.logger.ErrorContext(r.Context(), "csv export failed",
			log.FieldOperation, log.OpExport, log.FieldError, err)
	}
}

func (s *Server) handleExpenses(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	e, ok := s.decodeExpense(w, r)
	if !ok {
		return
	}
	if err := s.ctrl.AddExpense(r.Context(), e); err != nil {
		writeMutationError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]bool{"ok": true})
}

func (s *Server) handleExpenseByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/expenses/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "unknown expense path")
		return
	}

	switch r.Method {
	case http.MethodPut:
		e, ok := s.decodeExpense(w, r)
		if !ok {
			return
		}
		e.ID = id
		if err := s.ctrl.UpdateExpense(r.Context(), e); err != nil {
			writeMutationError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	case http.MethodDelete:
		if err := s.ctrl.DeleteExpense(r.Context(), id); err != nil {
			writeMutationError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	default:
		w.Header().Set("Allow", "PUT, DELETE")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req struct {
			Name string `json:"name"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		if err := s.ctrl.AddCategory(r.Context(), req.Name); err != nil {
			writeMutationError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]bool{"ok": true})
	case http.MethodDelete:
		name := r.URL.Query().Get("name")
		if name == "" {
			writeError(w, http.StatusBadRequest, "missing name parameter")
			return
		}
		if err := s.ctrl.DeleteCategory(r.Context(), name); err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	default:
		w.Header().Set("Allow", "POST, DELETE")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleBudget(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req struct {
		Amount string `json:"amount"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	paise, err := parseBudgetAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid amount")
		return
	}
	if err := s.ctrl.SetInitialBalance(r.Context(), core.Money{Paise: paise}); err != nil {
		writeMutationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleMonth(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req struct {
		Index int `json:"index"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.ctrl.SelectMonth(r.Context(), req.Index); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleMode(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req struct {
		Mode string `json:"mode"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.ctrl.SetMode(r.Context(), core.Mode(req.Mode)); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req struct {
		Name      string `json:"name"`
		AvatarURL string `json:"avatarUrl"`
		Theme     string `json:"theme"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.ctrl.SetProfile(r.Context(), req.Name, req.AvatarURL, req.Theme); err != nil {
		writeMutationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// decodeExpense parses and converts the expense payload; a false return
// means the response has already been written.
func (s *Server) decodeExpense(w http.ResponseWriter, r *http.Request) (core.Expense, bool) {
	var req expenseRequest
	if !decodeBody(w, r, &req) {
		return core.Expense{}, false
	}

	parsed, err := time.Parse("2006-01-02", strings.TrimSpace(req.Date))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid date, expected YYYY-MM-DD")
		return core.Expense{}, false
	}
	paise, err := core.ParseDecimalToPaise(req.Amount)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid amount")
		return core.Expense{}, false
	}

	return core.Expense{
		Date:     core.Date{Time: parsed},
		Amount:   core.Money{Paise: paise},
		Note:     sanitizeInput(req.Note),
		Category: sanitizeInput(req.Category),
	}, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		w.Header().Set("Allow", method)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return true
}

// writeMutationError maps controller errors onto HTTP statuses: validation
// problems are the client's fault, anything else is an upstream failure.
func writeMutationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrEmptyCategory),
		errors.Is(err, core.ErrZeroDate),
		errors.Is(err, core.ErrEmptyCategoryName):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, core.ErrDuplicateCategory):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

// parseBudgetAmount parses the budget payload. Unlike expense amounts a
// budget of zero is legal.
func parseBudgetAmount(s string) (int64, error) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", "."), 64)
	if err == nil && v == 0 {
		return 0, nil
	}
	return core.ParseDecimalToPaise(s)
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
