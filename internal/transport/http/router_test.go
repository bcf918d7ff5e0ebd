package httptransport

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doctrine/internal/audit"
	"doctrine/internal/budget"
	"doctrine/internal/intake"
	"doctrine/internal/platform/config"
	"doctrine/internal/validation"
)

func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := slog.Default()
	store := intake.NewMemoryStore()
	auditPub := audit.NewPublisher(audit.NewMemoryStore())
	engine := validation.NewEngine(store, auditPub)
	governor := budget.New(budget.NewMemoryLedger(), budget.NewMemoryStateStore(), auditPub, config.Budget{
		PerCallCeiling: decimal.RequireFromString("1.50"),
		DailyCeiling:   decimal.RequireFromString("25.00"),
		MonthlyCeiling: decimal.RequireFromString("500.00"),
		CallTimeout:    time.Second,
	})

	router := NewRouter(nil,
		NewIntakeHandler(store, engine, nil, logger),
		NewGovernorHandler(governor, logger),
	)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
}

func TestIntakeCreateAndValidate(t *testing.T) {
	server := testServer(t)

	resp := postJSON(t, server.URL+"/intake/records", map[string]any{
		"kind": "company",
		"fields": map[string]string{
			"company_name": "Acme Corp",
			"state":        "california",
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created struct {
		ID string `json:"ID"`
	}
	decodeBody(t, resp, &created)
	require.NotEmpty(t, created.ID)

	resp = postJSON(t, server.URL+"/intake/records/"+created.ID+"/validate", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var validated struct {
		Record struct {
			Status string `json:"Status"`
		} `json:"record"`
		Errors []validation.FieldError `json:"errors"`
	}
	decodeBody(t, resp, &validated)
	assert.Equal(t, string(intake.StatusFailed), validated.Record.Status)
	require.Len(t, validated.Errors, 1)
	assert.Equal(t, validation.ErrInvalidState, validated.Errors[0].ErrorType)
}

func TestIntakeCreateRejectsUnknownKind(t *testing.T) {
	server := testServer(t)

	resp := postJSON(t, server.URL+"/intake/records", map[string]any{"kind": "starship"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGovernorStatusAndResume(t *testing.T) {
	server := testServer(t)

	resp, err := http.Get(server.URL + "/governor/status")
	require.NoError(t, err)
	var status map[string]string
	decodeBody(t, resp, &status)
	assert.Equal(t, "active", status["state"])

	// Resuming an active governor conflicts.
	resp = postJSON(t, server.URL+"/governor/resume", map[string]string{"resumed_by": "ops"})
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestHealthz(t *testing.T) {
	server := testServer(t)
	resp, err := http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
