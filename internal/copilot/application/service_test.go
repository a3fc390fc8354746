package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/prams2104/opspilot/internal/reconciliation/domain"
	"github.com/prams2104/opspilot/internal/reconciliation/infrastructure/persistence"
)

func newTestRepo(t *testing.T) *persistence.Repository {
	t.Helper()

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

	return persistence.NewRepository(db)
}

func seedIssueWithTrade(t *testing.T, repo *persistence.Repository) *domain.ReconciliationIssue {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, repo.CreateTrade(ctx, &domain.Trade{
		TradeID:    "T1",
		Trader:     "alice",
		Instrument: "AAPL",
		Quantity:   decimal.NewFromInt(100),
		Price:      decimal.NewFromInt(10),
		Side:       domain.SideBuy,
		Timestamp:  time.Now(),
		Status:     domain.StatusPending,
	}))

	issue := domain.NewMissingLedgerIssue("T1")
	require.NoError(t, repo.CreateIssues(ctx, []*domain.ReconciliationIssue{issue}))
	return issue
}

func TestExplainIssueTemplateContent(t *testing.T) {
	repo := newTestRepo(t)
	issue := seedIssueWithTrade(t, repo)
	svc := NewService(repo, NewTemplateExplainer(), "template", nil, 0, nil)

	explanation, err := svc.ExplainIssue(context.Background(), issue.ID)
	require.NoError(t, err)

	assert.Contains(t, explanation, "Issue: MISSING_LEDGER_ENTRY")
	assert.Contains(t, explanation, "Severity: HIGH")
	assert.Contains(t, explanation, "Description: Trade T1 has no corresponding ledger entry")
	assert.Contains(t, explanation, "Related Trade:")
	assert.Contains(t, explanation, "- Trader: alice")
	assert.Contains(t, explanation, "- Instrument: AAPL")
	assert.Contains(t, explanation, "- Amount: 100 @ 10")
}

func TestExplainIssuePersistsExplanation(t *testing.T) {
	repo := newTestRepo(t)
	issue := seedIssueWithTrade(t, repo)
	svc := NewService(repo, NewTemplateExplainer(), "template", nil, 0, nil)
	ctx := context.Background()

	explanation, err := svc.ExplainIssue(ctx, issue.ID)
	require.NoError(t, err)

	stored, err := repo.GetIssue(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, explanation, stored.AIExplanation)
}

func TestExplainIssueNotFound(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewService(repo, NewTemplateExplainer(), "template", nil, 0, nil)

	_, err := svc.ExplainIssue(context.Background(), 999)
	assert.ErrorIs(t, err, persistence.ErrIssueNotFound)
}

func TestExplainIssueWithoutRelatedTrade(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	// 外键无约束，问题可以引用不存在的交易
	issue := domain.NewMissingLedgerIssue("GHOST")
	require.NoError(t, repo.CreateIssues(ctx, []*domain.ReconciliationIssue{issue}))

	svc := NewService(repo, NewTemplateExplainer(), "template", nil, 0, nil)
	explanation, err := svc.ExplainIssue(ctx, issue.ID)
	require.NoError(t, err)

	assert.Contains(t, explanation, "Issue: MISSING_LEDGER_ENTRY")
	assert.NotContains(t, explanation, "Related Trade:")
}

type failingExplainer struct{}

func (failingExplainer) ExplainIssue(context.Context, *domain.ReconciliationIssue, *domain.Trade) (string, error) {
	return "", errors.New("backend unavailable")
}

func (failingExplainer) AnswerQuery(context.Context, string, string) (string, error) {
	return "", errors.New("backend unavailable")
}

func TestExplainIssueFallsBackToTemplate(t *testing.T) {
	repo := newTestRepo(t)
	issue := seedIssueWithTrade(t, repo)
	svc := NewService(repo, failingExplainer{}, "claude", nil, 0, nil)

	explanation, err := svc.ExplainIssue(context.Background(), issue.ID)
	require.NoError(t, err)
	assert.Contains(t, explanation, "Issue: MISSING_LEDGER_ENTRY")
}

func TestAnswerQueryStatusSnapshot(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.CreateTrade(ctx, &domain.Trade{
		TradeID: "T1", Trader: "a", Instrument: "X",
		Quantity: decimal.NewFromInt(1), Price: decimal.NewFromInt(1),
		Side: domain.SideBuy, Timestamp: time.Now(), Status: domain.StatusPending,
	}))
	require.NoError(t, repo.CreateTrade(ctx, &domain.Trade{
		TradeID: "T2", Trader: "a", Instrument: "X",
		Quantity: decimal.NewFromInt(1), Price: decimal.NewFromInt(1),
		Side: domain.SideSell, Timestamp: time.Now(), Status: domain.StatusReconciled,
	}))

	// 七条未解决问题，快照只展示最近五条
	issues := make([]*domain.ReconciliationIssue, 0, 7)
	for i := 0; i < 7; i++ {
		issues = append(issues, domain.NewMissingLedgerIssue(fmt.Sprintf("T%d", i)))
	}
	require.NoError(t, repo.CreateIssues(ctx, issues))

	svc := NewService(repo, NewTemplateExplainer(), "template", nil, 0, nil)
	answer, err := svc.AnswerQuery(ctx, "how are things?")
	require.NoError(t, err)

	assert.Contains(t, answer, "- Total Trades: 2")
	assert.Contains(t, answer, "- Pending Trades: 1")
	assert.Contains(t, answer, "- Open Issues: 7")
	assert.Contains(t, answer, "Recent Issues:")
	assert.Equal(t, 5, strings.Count(answer, "MISSING_LEDGER_ENTRY: "), "snapshot lists at most five recent issues")
}

type fakeCache struct {
	store map[string][]byte
	gets  int
	sets  int
}

func (c *fakeCache) GetJSON(_ context.Context, key string, dest interface{}) (bool, error) {
	c.gets++
	data, ok := c.store[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(data, dest)
}

func (c *fakeCache) SetJSON(_ context.Context, key string, value interface{}, _ time.Duration) error {
	c.sets++
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.store[key] = data
	return nil
}

func TestAnswerQueryUsesStatusCache(t *testing.T) {
	repo := newTestRepo(t)
	cache := &fakeCache{store: map[string][]byte{}}
	svc := NewService(repo, NewTemplateExplainer(), "template", cache, 30*time.Second, nil)
	ctx := context.Background()

	_, err := svc.AnswerQuery(ctx, "status?")
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets)

	_, err = svc.AnswerQuery(ctx, "status again?")
	require.NoError(t, err)
	assert.Equal(t, 2, cache.gets)
	assert.Equal(t, 1, cache.sets, "second query served from cache")
}
