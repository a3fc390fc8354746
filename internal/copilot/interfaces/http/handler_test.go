package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/prams2104/opspilot/internal/copilot/application"
	"github.com/prams2104/opspilot/internal/reconciliation/domain"
	"github.com/prams2104/opspilot/internal/reconciliation/infrastructure/persistence"
)

func newTestRouter(t *testing.T) (*gin.Engine, *persistence.Repository) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	path := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Discard,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.Trade{},
		&domain.LedgerEntry{},
		&domain.ReconciliationIssue{},
	))

	repo := persistence.NewRepository(db)
	service := application.NewService(repo, application.NewTemplateExplainer(), "template", nil, 0, nil)

	router := gin.New()
	NewHandler(service).RegisterRoutes(router)
	return router, repo
}

func TestExplainIssueEndpoint(t *testing.T) {
	router, repo := newTestRouter(t)
	ctx := context.Background()

	require.NoError(t, repo.CreateTrade(ctx, &domain.Trade{
		TradeID: "T1", Trader: "alice", Instrument: "AAPL",
		Quantity: decimal.NewFromInt(100), Price: decimal.NewFromInt(150),
		Side: domain.SideBuy, Timestamp: time.Now(), Status: domain.StatusPending,
	}))
	issue := domain.NewMissingLedgerIssue("T1")
	require.NoError(t, repo.CreateIssues(ctx, []*domain.ReconciliationIssue{issue}))

	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/v1/copilot/explain/%d", issue.ID), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Explanation string `json:"explanation"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Explanation, "Issue: MISSING_LEDGER_ENTRY")
	assert.Contains(t, resp.Explanation, "- Trader: alice")
}

func TestExplainIssueEndpointNotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/copilot/explain/42", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "issue not found")
}

func TestExplainIssueEndpointBadID(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/copilot/explain/abc", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid issue id")
}

func TestQueryEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	body, err := json.Marshal(gin.H{"query": "how many open issues?"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/copilot/query", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Answer string `json:"answer"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Answer, "System Status:")
	assert.Contains(t, resp.Answer, "- Open Issues: 0")
}

func TestQueryEndpointMissingBody(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/copilot/query", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
