package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/prams2104/opspilot/internal/reconciliation/domain"
)

// Explainer 解释后端策略
// 两种实现：模板填充与远端模型调用，由配置选择，不做运行时类型判断
type Explainer interface {
	// ExplainIssue 生成问题解释，trade 可为 nil
	ExplainIssue(ctx context.Context, issue *domain.ReconciliationIssue, trade *domain.Trade) (string, error)
	// AnswerQuery 基于系统状态快照回答自然语言问题
	AnswerQuery(ctx context.Context, query string, status string) (string, error)
}

// TemplateExplainer 规则模板解释器，无外部依赖
type TemplateExplainer struct{}

// NewTemplateExplainer 创建模板解释器
func NewTemplateExplainer() *TemplateExplainer {
	return &TemplateExplainer{}
}

// ExplainIssue 按固定模板拼装问题与关联交易信息
func (e *TemplateExplainer) ExplainIssue(_ context.Context, issue *domain.ReconciliationIssue, trade *domain.Trade) (string, error) {
	var b strings.Builder

	fmt.Fprintf(&b, "Issue: %s\n", issue.IssueType)
	fmt.Fprintf(&b, "Severity: %s\n", issue.Severity)
	fmt.Fprintf(&b, "Description: %s\n", issue.Description)

	if trade != nil {
		b.WriteString("\nRelated Trade:\n")
		fmt.Fprintf(&b, "- Trader: %s\n", trade.Trader)
		fmt.Fprintf(&b, "- Instrument: %s\n", trade.Instrument)
		fmt.Fprintf(&b, "- Amount: %s @ %s\n", trade.Quantity, trade.Price)
	}

	b.WriteString("\n[AI explanation will be added when API key is configured]")

	return b.String(), nil
}

// AnswerQuery 模板后端直接返回状态快照
func (e *TemplateExplainer) AnswerQuery(_ context.Context, _ string, status string) (string, error) {
	return status + "\n[Full AI responses will be available when API key is configured]", nil
}
