package application

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/prams2104/opspilot/internal/reconciliation/domain"
	"github.com/prams2104/opspilot/pkg/logger"
	"github.com/prams2104/opspilot/pkg/metrics"
)

// amountTolerance 金额比较的绝对容差，吸收浮点来源数据的噪声
var amountTolerance = decimal.RequireFromString("0.01")

// IssuePublisher 问题事件发布接口
// 发布失败不影响运行结果，存储提交才是持久化边界
type IssuePublisher interface {
	PublishIssues(ctx context.Context, issues []*domain.ReconciliationIssue) error
}

// IssueSummary 匹配阶段的问题摘要
type IssueSummary struct {
	Type     domain.IssueType `json:"type"`
	TradeID  string           `json:"trade_id"`
	Severity domain.Severity  `json:"severity"`
	Expected *decimal.Decimal `json:"expected,omitempty"`
	Actual   *decimal.Decimal `json:"actual,omitempty"`
}

// AnomalySummary 异常检测阶段的问题摘要
type AnomalySummary struct {
	Type     domain.IssueType `json:"type"`
	TradeID  string           `json:"trade_id"`
	Quantity decimal.Decimal  `json:"quantity"`
	Severity domain.Severity  `json:"severity"`
}

// RunResult 一次对账运行的汇总结果
type RunResult struct {
	RunID     string           `json:"run_id"`
	Issues    []IssueSummary   `json:"issues"`
	Anomalies []AnomalySummary `json:"anomalies"`
	Total     int              `json:"total"`
}

// Engine 对账引擎：台账匹配 + 数量异常检测
type Engine struct {
	repo      domain.Repository
	scorer    domain.AnomalyScorer
	publisher IssuePublisher
	metrics   *metrics.Metrics

	// 并发触发的运行合并为一次执行
	group singleflight.Group
}

// NewEngine 创建对账引擎，publisher 与 m 可为 nil
func NewEngine(repo domain.Repository, scorer domain.AnomalyScorer, publisher IssuePublisher, m *metrics.Metrics) *Engine {
	return &Engine{
		repo:      repo,
		scorer:    scorer,
		publisher: publisher,
		metrics:   m,
	}
}

// CheckTradeLedgerMatch 台账匹配
// 遍历全部 pending 交易：无台账条目报 MISSING_LEDGER_ENTRY，
// 有条目时比较名义金额与带符号合计的绝对值，超出容差报 AMOUNT_MISMATCH。
// 检出的问题在调用结束时作为一个批次提交。
// 重复调用会对未变化的数据重复报告，不做去重
func (e *Engine) CheckTradeLedgerMatch(ctx context.Context) ([]IssueSummary, error) {
	trades, err := e.repo.ListTrades(ctx, domain.StatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending trades: %w", err)
	}

	summaries := make([]IssueSummary, 0)
	issues := make([]*domain.ReconciliationIssue, 0)

	for _, trade := range trades {
		entries, err := e.repo.ListLedgerEntries(ctx, trade.TradeID)
		if err != nil {
			return nil, fmt.Errorf("failed to list ledger entries for trade %s: %w", trade.TradeID, err)
		}

		if len(entries) == 0 {
			issues = append(issues, domain.NewMissingLedgerIssue(trade.TradeID))
			summaries = append(summaries, IssueSummary{
				Type:     domain.IssueMissingLedgerEntry,
				TradeID:  trade.TradeID,
				Severity: domain.SeverityHigh,
			})
			continue
		}

		expected := trade.Notional()
		actual := decimal.Zero
		for _, entry := range entries {
			actual = actual.Add(entry.Amount)
		}

		// 合计金额取绝对值后比较，期望金额不按方向调整符号
		diff := expected.Sub(actual.Abs()).Abs()
		if diff.GreaterThan(amountTolerance) {
			issues = append(issues, domain.NewAmountMismatchIssue(trade.TradeID, expected, actual))
			exp, act := expected, actual
			summaries = append(summaries, IssueSummary{
				Type:     domain.IssueAmountMismatch,
				TradeID:  trade.TradeID,
				Severity: domain.SeverityCritical,
				Expected: &exp,
				Actual:   &act,
			})
		}
	}

	if err := e.persistIssues(ctx, issues); err != nil {
		return nil, err
	}

	return summaries, nil
}

// DetectAnomalies 数量异常检测
// 对全部交易（不分状态）应用评分策略，空交易集直接返回空结果
func (e *Engine) DetectAnomalies(ctx context.Context) ([]AnomalySummary, error) {
	trades, err := e.repo.ListTrades(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list trades: %w", err)
	}

	summaries := make([]AnomalySummary, 0)
	if len(trades) == 0 {
		return summaries, nil
	}

	issues := make([]*domain.ReconciliationIssue, 0)
	for _, trade := range trades {
		if e.scorer.Score(trade, trades) {
			issues = append(issues, domain.NewAnomalousQuantityIssue(trade.TradeID, trade.Quantity))
			summaries = append(summaries, AnomalySummary{
				Type:     domain.IssueAnomalousQuantity,
				TradeID:  trade.TradeID,
				Quantity: trade.Quantity,
				Severity: domain.SeverityMedium,
			})
		}
	}

	if err := e.persistIssues(ctx, issues); err != nil {
		return nil, err
	}

	return summaries, nil
}

// Run 执行一次完整对账：先台账匹配，后异常检测，两个阶段独立提交。
// 并发触发通过 singleflight 合并，返回同一次运行的结果
func (e *Engine) Run(ctx context.Context) (*RunResult, error) {
	result, err, _ := e.group.Do("reconcile", func() (interface{}, error) {
		return e.run(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.(*RunResult), nil
}

func (e *Engine) run(ctx context.Context) (*RunResult, error) {
	runID := fmt.Sprintf("RUN-%s", ulid.Make())
	run := domain.NewRun(runID)
	if err := e.repo.SaveRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to record reconciliation run: %w", err)
	}

	start := time.Now()
	defer logger.LogDuration(ctx, "Reconciliation run finished", "run_id", runID)()

	issues, err := e.CheckTradeLedgerMatch(ctx)
	if err != nil {
		e.failRun(ctx, run)
		return nil, err
	}

	anomalies, err := e.DetectAnomalies(ctx)
	if err != nil {
		e.failRun(ctx, run)
		return nil, err
	}

	run.Complete(len(issues), len(anomalies))
	if err := e.repo.SaveRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to complete reconciliation run: %w", err)
	}

	if e.metrics != nil {
		e.metrics.ReconciliationRunsTotal.Inc()
		e.metrics.ReconciliationRunDuration.Observe(time.Since(start).Seconds())
	}

	return &RunResult{
		RunID:     runID,
		Issues:    issues,
		Anomalies: anomalies,
		Total:     len(issues) + len(anomalies),
	}, nil
}

func (e *Engine) failRun(ctx context.Context, run *domain.ReconciliationRun) {
	run.Fail()
	if err := e.repo.SaveRun(ctx, run); err != nil {
		logger.Error(ctx, "Failed to mark reconciliation run failed", "run_id", run.RunID, "error", err)
	}
}

// persistIssues 整批提交问题记录，随后尽力发布事件
func (e *Engine) persistIssues(ctx context.Context, issues []*domain.ReconciliationIssue) error {
	if len(issues) == 0 {
		return nil
	}

	if err := e.repo.CreateIssues(ctx, issues); err != nil {
		return fmt.Errorf("failed to persist reconciliation issues: %w", err)
	}

	if e.metrics != nil {
		for _, issue := range issues {
			e.metrics.IssuesDetectedTotal.WithLabelValues(string(issue.IssueType)).Inc()
		}
	}

	if e.publisher != nil {
		if err := e.publisher.PublishIssues(ctx, issues); err != nil {
			logger.Warn(ctx, "Failed to publish issue events", "count", len(issues), "error", err)
		}
	}

	return nil
}
