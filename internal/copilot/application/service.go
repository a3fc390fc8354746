// 包 application copilot 的解释与问答服务
package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prams2104/opspilot/internal/reconciliation/domain"
	"github.com/prams2104/opspilot/pkg/logger"
	"github.com/prams2104/opspilot/pkg/metrics"
)

// statusCacheKey copilot 状态快照的缓存键
const statusCacheKey = "copilot:status"

// recentIssueLimit 快照中展示的最近问题条数
const recentIssueLimit = 5

// StatusCache 状态快照缓存接口，pkg/cache.RedisCache 满足该接口
type StatusCache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// statusSnapshot 系统状态快照
type statusSnapshot struct {
	TotalTrades   int64    `json:"total_trades"`
	PendingTrades int64    `json:"pending_trades"`
	OpenIssues    int      `json:"open_issues"`
	RecentIssues  []string `json:"recent_issues"`
}

// Service copilot 应用服务
// explainer 由配置选择；远端后端失败时回退到模板输出
type Service struct {
	repo      domain.Repository
	explainer Explainer
	fallback  *TemplateExplainer
	cache     StatusCache
	cacheTTL  time.Duration
	metrics   *metrics.Metrics
	backend   string
}

// NewService 创建 copilot 服务，cache 与 m 可为 nil
func NewService(repo domain.Repository, explainer Explainer, backend string, cache StatusCache, cacheTTL time.Duration, m *metrics.Metrics) *Service {
	return &Service{
		repo:      repo,
		explainer: explainer,
		fallback:  NewTemplateExplainer(),
		cache:     cache,
		cacheTTL:  cacheTTL,
		metrics:   m,
		backend:   backend,
	}
}

// ExplainIssue 生成问题解释并回填到问题记录
func (s *Service) ExplainIssue(ctx context.Context, issueID uint) (string, error) {
	issue, err := s.repo.GetIssue(ctx, issueID)
	if err != nil {
		return "", err
	}

	var trade *domain.Trade
	if issue.TradeID != "" {
		trade, err = s.repo.GetTradeByTradeID(ctx, issue.TradeID)
		if err != nil {
			// 外键未强约束，问题可能引用已不存在的交易
			logger.Warn(ctx, "Issue references unknown trade", "issue_id", issueID, "trade_id", issue.TradeID)
			trade = nil
		}
	}

	explanation, err := s.explainer.ExplainIssue(ctx, issue, trade)
	if err != nil {
		logger.Warn(ctx, "Explainer backend failed, falling back to template", "issue_id", issueID, "error", err)
		explanation, err = s.fallback.ExplainIssue(ctx, issue, trade)
		if err != nil {
			return "", err
		}
	}

	if s.metrics != nil {
		s.metrics.CopilotRequestsTotal.WithLabelValues(s.backend).Inc()
	}

	if err := s.repo.SaveIssueExplanation(ctx, issueID, explanation); err != nil {
		return "", fmt.Errorf("failed to save explanation: %w", err)
	}

	return explanation, nil
}

// AnswerQuery 回答关于系统状态的自然语言问题
func (s *Service) AnswerQuery(ctx context.Context, query string) (string, error) {
	snapshot, err := s.statusSnapshot(ctx)
	if err != nil {
		return "", err
	}

	status := renderStatus(snapshot)

	answer, err := s.explainer.AnswerQuery(ctx, query, status)
	if err != nil {
		logger.Warn(ctx, "Explainer backend failed, falling back to template", "error", err)
		answer, err = s.fallback.AnswerQuery(ctx, query, status)
		if err != nil {
			return "", err
		}
	}

	if s.metrics != nil {
		s.metrics.CopilotRequestsTotal.WithLabelValues(s.backend).Inc()
	}

	return answer, nil
}

// statusSnapshot 读取状态快照，配置了缓存时带 TTL 缓存
func (s *Service) statusSnapshot(ctx context.Context) (*statusSnapshot, error) {
	if s.cache != nil {
		var cached statusSnapshot
		hit, err := s.cache.GetJSON(ctx, statusCacheKey, &cached)
		if err != nil {
			logger.Warn(ctx, "Status cache read failed", "error", err)
		} else if hit {
			return &cached, nil
		}
	}

	total, err := s.repo.CountTrades(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to count trades: %w", err)
	}
	pending, err := s.repo.CountTrades(ctx, domain.StatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to count pending trades: %w", err)
	}
	issues, err := s.repo.ListOpenIssues(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list open issues: %w", err)
	}

	snapshot := &statusSnapshot{
		TotalTrades:   total,
		PendingTrades: pending,
		OpenIssues:    len(issues),
		RecentIssues:  make([]string, 0, recentIssueLimit),
	}
	for i, issue := range issues {
		if i >= recentIssueLimit {
			break
		}
		snapshot.RecentIssues = append(snapshot.RecentIssues, fmt.Sprintf("%s: %s", issue.IssueType, issue.Description))
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, statusCacheKey, snapshot, s.cacheTTL); err != nil {
			logger.Warn(ctx, "Status cache write failed", "error", err)
		}
	}

	return snapshot, nil
}

// renderStatus 将快照渲染为文本
func renderStatus(s *statusSnapshot) string {
	var b strings.Builder

	b.WriteString("System Status:\n")
	fmt.Fprintf(&b, "- Total Trades: %d\n", s.TotalTrades)
	fmt.Fprintf(&b, "- Pending Trades: %d\n", s.PendingTrades)
	fmt.Fprintf(&b, "- Open Issues: %d\n", s.OpenIssues)

	if len(s.RecentIssues) > 0 {
		b.WriteString("\nRecent Issues:\n")
		for _, line := range s.RecentIssues {
			fmt.Fprintf(&b, "- %s\n", line)
		}
	}

	return b.String()
}
