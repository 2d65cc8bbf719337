package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"kharcha/internal/core"
	"kharcha/internal/memstore"
	"kharcha/internal/notify"
	"kharcha/internal/prefs"
	"kharcha/internal/state"
	"kharcha/internal/views"
)

func newTestServer(t *testing.T) (*httptest.Server, *state.Controller) {
	t.Helper()

	now := time.Now().UTC()
	backend := memstore.New()
	backend.Seed(
		core.Expense{ID: "1", Date: core.NewDate(now.Year(), int(now.Month()), 1), Note: "lunch", Amount: core.Money{Paise: 20000}, Category: "Food"},
		core.Expense{ID: "2", Date: core.NewDate(now.Year(), int(now.Month()), 2), Note: "bus", Amount: core.Money{Paise: 5000}, Category: "Transport"},
	)

	store, err := prefs.NewStore(filepath.Join(t.TempDir(), "prefs.db"), nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	ctrl := state.NewController(backend, store, notify.New(time.Minute), nil, nil)
	surfaces := Surfaces{
		Sidebar:  &views.Sidebar{},
		Summary:  &views.Summary{},
		Charts:   &views.Charts{},
		Table:    &views.Table{},
		Settings: &views.Settings{},
	}
	ctrl.RegisterSurface(surfaces.Sidebar)
	ctrl.RegisterSurface(surfaces.Summary)
	ctrl.RegisterSurface(surfaces.Charts)
	ctrl.RegisterSurface(surfaces.Table)
	ctrl.RegisterSurface(surfaces.Settings)
	ctrl.Init(context.Background())

	srv := NewServer(":0", ctrl, surfaces, nil)
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(func() {
		ts.Close()
		srv.Shutdown(context.Background())
	})
	return ts, ctrl
}

func getJSON(t *testing.T, url string, v any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s: status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatal(err)
	}
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestSummaryEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	var m views.SummaryModel
	getJSON(t, ts.URL+"/views/summary", &m)
	if m.PeriodTotal != "₹250.00" {
		t.Errorf("period total = %q", m.PeriodTotal)
	}
	if m.TxnCount != 2 {
		t.Errorf("txn count = %d", m.TxnCount)
	}
	if m.TopCategory != "Food" {
		t.Errorf("top category = %q", m.TopCategory)
	}
}

func TestCreateExpenseUpdatesAllViews(t *testing.T) {
	ts, _ := newTestServer(t)

	now := time.Now().UTC()
	body := `{"date":"` + now.Format("2006-01-02") + `","amount":"50","note":"chai","category":"Food"}`
	resp := postJSON(t, ts.URL+"/expenses", body)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var summary views.SummaryModel
	getJSON(t, ts.URL+"/views/summary", &summary)
	if summary.PeriodTotal != "₹300.00" {
		t.Errorf("period total = %q after create", summary.PeriodTotal)
	}

	var table views.TableModel
	getJSON(t, ts.URL+"/views/table", &table)
	if len(table.Rows) != 3 {
		t.Errorf("table has %d rows after create", len(table.Rows))
	}
}

func TestCreateExpenseValidation(t *testing.T) {
	ts, _ := newTestServer(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"bad amount", `{"date":"2024-06-01","amount":"abc","category":"Food"}`, http.StatusUnprocessableEntity},
		{"zero amount", `{"date":"2024-06-01","amount":"0","category":"Food"}`, http.StatusUnprocessableEntity},
		{"bad date", `{"date":"June 1","amount":"10","category":"Food"}`, http.StatusUnprocessableEntity},
		{"blank category", `{"date":"2024-06-01","amount":"10","category":"  "}`, http.StatusUnprocessableEntity},
		{"garbage body", `{`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, ts.URL+"/expenses", tt.body)
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestDeleteExpense(t *testing.T) {
	ts, _ := newTestServer(t)

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/expenses/1", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var table views.TableModel
	getJSON(t, ts.URL+"/views/table", &table)
	if len(table.Rows) != 1 {
		t.Errorf("table has %d rows after delete", len(table.Rows))
	}
}

func TestDuplicateCategoryConflict(t *testing.T) {
	ts, _ := newTestServer(t)

	if resp := postJSON(t, ts.URL+"/categories", `{"name":"Travel"}`); resp.StatusCode != http.StatusCreated {
		t.Fatalf("first add status = %d", resp.StatusCode)
	}
	if resp := postJSON(t, ts.URL+"/categories", `{"name":"Travel"}`); resp.StatusCode != http.StatusConflict {
		t.Errorf("duplicate add status = %d, want 409", resp.StatusCode)
	}
}

func TestMonthSelectionValidation(t *testing.T) {
	ts, _ := newTestServer(t)

	if resp := postJSON(t, ts.URL+"/month", `{"index":3}`); resp.StatusCode != http.StatusOK {
		t.Errorf("valid index status = %d", resp.StatusCode)
	}
	if resp := postJSON(t, ts.URL+"/month", `{"index":12}`); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("out-of-range index status = %d, want 400", resp.StatusCode)
	}
}

func TestExportCSV(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/export.csv")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if got := resp.Header.Get("Content-Type"); !strings.HasPrefix(got, "text/csv") {
		t.Errorf("content type = %q", got)
	}

	var buf strings.Builder
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(buf.String(), "\n")
	if lines[0] != "Date,Category,Note,Amount,Id" {
		t.Errorf("header = %q", lines[0])
	}
	if len(lines) != 3 {
		t.Errorf("got %d lines, want header plus two rows", len(lines))
	}
}

func TestMethodNotAllowed(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/views/summary", `{}`)
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}

func TestHealthEndpoints(t *testing.T) {
	ts, _ := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s status = %d", path, resp.StatusCode)
		}
	}
}
