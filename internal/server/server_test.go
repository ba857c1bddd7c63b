package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javiermolinar/airtime/internal/command"
	"github.com/javiermolinar/airtime/internal/grid"
	"github.com/javiermolinar/airtime/internal/lifecycle"
	"github.com/javiermolinar/airtime/internal/logging"
	"github.com/javiermolinar/airtime/internal/report"
	"github.com/javiermolinar/airtime/internal/scheduler"
	"github.com/javiermolinar/airtime/internal/session"
	"github.com/javiermolinar/airtime/internal/slot"
)

type response struct {
	Report   string         `json:"report"`
	Error    string         `json:"error"`
	Outcomes []slot.Outcome `json:"outcomes"`
}

func newTestServer(t *testing.T) (http.Handler, *grid.MemStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := grid.NewMemStore()
	layout := grid.DefaultLayout()
	catalog, err := slot.NewCatalog([]slot.Channel{{Name: "Alpha"}, {Name: "Beta"}})
	require.NoError(t, err)

	lc, err := lifecycle.New(store, layout, catalog, lifecycle.Options{})
	require.NoError(t, err)

	d := command.NewDispatcher(command.Config{
		Lifecycle: lc,
		Scheduler: scheduler.New(store, layout, catalog, scheduler.Options{Sleep: func(time.Duration) {}}),
		Report:    report.New(catalog, nil, report.DefaultHeadings()),
		Sessions:  session.NewMemoryStore(),
		Palette:   slot.NewPalette(map[string]slot.Color{"голубой": slot.ColorCyan}),
		Now:       func() time.Time { return time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC) },
		Logger:    logging.Discard(),
	})
	return New(d, logging.Discard(), true).Handler(), store
}

func do(t *testing.T, h http.Handler, method, path, user string, body any) (int, response) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(UserHeader, user)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var resp response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), "body: %s", w.Body.String())
	return w.Code, resp
}

func TestHealth(t *testing.T) {
	h, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestReserveFlow(t *testing.T) {
	h, store := newTestServer(t)

	code, resp := do(t, h, http.MethodPost, "/api/v1/periods/select", "u1", command.SelectPeriod{Year: 2025, Month: 3})
	require.Equal(t, http.StatusOK, code, resp.Error)
	assert.Equal(t, "✅ Sheet for March 2025 is ready!", resp.Report)

	code, resp = do(t, h, http.MethodPost, "/api/v1/reserve", "u1", command.Reserve{
		Day:     4,
		Color:   "red",
		Text:    "News @",
		Entries: []slot.Entry{{Channel: "Alpha", Time: "20:00"}},
	})
	require.Equal(t, http.StatusOK, code, resp.Error)
	require.Len(t, resp.Outcomes, 1)
	assert.Equal(t, slot.StatusSuccess, resp.Outcomes[0].Status)
	assert.Equal(t, "✅ Success:\nAlpha (20:00): text written", resp.Report)

	g, err := store.GetGrid(t.Context(), "March2025")
	require.NoError(t, err)
	cell := store.Cell(g, grid.DefaultLayout().Address(0, 4, slot.Evening))
	assert.Equal(t, "News 20:00", cell.Value)
}

func TestReserve_WithoutPeriodIsConflict(t *testing.T) {
	h, _ := newTestServer(t)

	code, resp := do(t, h, http.MethodPost, "/api/v1/cancel", "u1", command.Cancel{
		Day:     4,
		Entries: []slot.Entry{{Channel: "Alpha", Time: "20:00"}},
	})
	assert.Equal(t, http.StatusConflict, code)
	assert.Contains(t, resp.Error, "no month selected")
}

func TestReserve_MalformedTimeIsBadRequest(t *testing.T) {
	h, store := newTestServer(t)

	code, resp := do(t, h, http.MethodPost, "/api/v1/periods/select", "u1", command.SelectPeriod{Year: 2025, Month: 3})
	require.Equal(t, http.StatusOK, code, resp.Error)
	writes := store.Calls("WriteCells")

	code, resp = do(t, h, http.MethodPost, "/api/v1/reserve", "u1", command.Reserve{
		Day:     4,
		Color:   "red",
		Text:    "News",
		Entries: []slot.Entry{{Channel: "Alpha", Time: "garbage"}},
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, resp.Error, "garbage")
	assert.Empty(t, resp.Report)
	assert.Equal(t, writes, store.Calls("WriteCells"))

	g, err := store.GetGrid(t.Context(), "March2025")
	require.NoError(t, err)
	assert.Empty(t, store.Cell(g, grid.DefaultLayout().Address(0, 4, slot.Evening)).Value)
}

func TestErrorStatuses(t *testing.T) {
	h, _ := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		user   string
		body   any
		want   int
	}{
		{"invalid month", http.MethodPost, "/api/v1/periods/select", "u1", command.SelectPeriod{Year: 2025, Month: 13}, http.StatusBadRequest},
		{"missing user", http.MethodPost, "/api/v1/periods/select", "", command.SelectPeriod{Year: 2025, Month: 3}, http.StatusBadRequest},
		{"malformed body", http.MethodPost, "/api/v1/reserve", "u1", "not an object", http.StatusBadRequest},
		{"non-numeric day", http.MethodGet, "/api/v1/days/2025/3/x", "u1", nil, http.StatusBadRequest},
		{"day past month end", http.MethodGet, "/api/v1/days/2025/2/30", "u1", nil, http.StatusBadRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			code, resp := do(t, h, tc.method, tc.path, tc.user, tc.body)
			assert.Equal(t, tc.want, code)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestStoreFailureIsInternal(t *testing.T) {
	h, store := newTestServer(t)
	store.Fail = func(op string) error {
		if op == "CreateGrid" {
			return assert.AnError
		}
		return nil
	}

	code, resp := do(t, h, http.MethodPost, "/api/v1/periods/select", "u1", command.SelectPeriod{Year: 2025, Month: 3})
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Contains(t, resp.Error, assert.AnError.Error())
}

func TestDayView(t *testing.T) {
	h, _ := newTestServer(t)

	code, resp := do(t, h, http.MethodGet, "/api/v1/days/2025/3/20?user=u2", "", nil)
	require.Equal(t, http.StatusOK, code, resp.Error)
	assert.Equal(t, "Data for 20.03.2025:\n\nAlpha ⭕️⭕️⭕️ 18\nBeta ⭕️⭕️⭕️ 18", resp.Report)
}

func TestMessage(t *testing.T) {
	h, _ := newTestServer(t)

	code, resp := do(t, h, http.MethodPost, "/api/v1/messages", "u1", map[string]string{
		"text": "Promo @\n5\nголубой\nBeta 9:00",
	})
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Select a month first.", resp.Report)

	_, _ = do(t, h, http.MethodPost, "/api/v1/periods/select", "u1", command.SelectPeriod{Year: 2025, Month: 3})

	code, resp = do(t, h, http.MethodPost, "/api/v1/messages", "u1", map[string]string{
		"text": "Promo @\n5\nголубой\nBeta 9:00",
	})
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "✅ Success:\nBeta (9:00): text written", resp.Report)
}
