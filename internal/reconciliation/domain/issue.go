package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// IssueType 问题类型
type IssueType string

// Severity 问题严重程度
type Severity string

const (
	// IssueMissingLedgerEntry 交易缺少对应台账条目
	IssueMissingLedgerEntry IssueType = "MISSING_LEDGER_ENTRY"
	// IssueAmountMismatch 台账金额与交易名义金额不一致
	IssueAmountMismatch IssueType = "AMOUNT_MISMATCH"
	// IssueAnomalousQuantity 交易数量统计异常
	IssueAnomalousQuantity IssueType = "ANOMALOUS_QUANTITY"

	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// ReconciliationIssue 对账问题记录
// 只追加不修改：引擎每次运行只新增问题，从不更新或删除已有记录；
// resolved 由外部流程维护
type ReconciliationIssue struct {
	gorm.Model
	// 问题类型
	IssueType IssueType `gorm:"column:issue_type;type:varchar(32);not null" json:"issue_type"`
	// 可读描述，由触发数据生成
	Description string `gorm:"column:description;type:varchar(255);not null" json:"description"`
	// 严重程度（LOW/MEDIUM/HIGH/CRITICAL）
	Severity Severity `gorm:"column:severity;type:varchar(10);not null" json:"severity"`
	// 关联的交易 ID，可为空
	TradeID string `gorm:"column:trade_id;type:varchar(64);index" json:"trade_id,omitempty"`
	// 检出时间
	DetectedAt time.Time `gorm:"column:detected_at;not null" json:"detected_at"`
	// 是否已解决
	Resolved bool `gorm:"column:resolved;default:false" json:"resolved"`
	// AI 生成的解释，由 copilot 回填
	AIExplanation string `gorm:"column:ai_explanation;type:text" json:"ai_explanation,omitempty"`
}

// TableName 指定表名
func (ReconciliationIssue) TableName() string { return "issues" }

// NewMissingLedgerIssue 构造缺失台账问题
func NewMissingLedgerIssue(tradeID string) *ReconciliationIssue {
	return &ReconciliationIssue{
		IssueType:   IssueMissingLedgerEntry,
		Description: fmt.Sprintf("Trade %s has no corresponding ledger entry", tradeID),
		Severity:    SeverityHigh,
		TradeID:     tradeID,
		DetectedAt:  time.Now(),
	}
}

// NewAmountMismatchIssue 构造金额不一致问题
func NewAmountMismatchIssue(tradeID string, expected, actual decimal.Decimal) *ReconciliationIssue {
	return &ReconciliationIssue{
		IssueType:   IssueAmountMismatch,
		Description: fmt.Sprintf("Trade %s: Expected %s, Got %s", tradeID, expected, actual),
		Severity:    SeverityCritical,
		TradeID:     tradeID,
		DetectedAt:  time.Now(),
	}
}

// NewAnomalousQuantityIssue 构造数量异常问题
func NewAnomalousQuantityIssue(tradeID string, quantity decimal.Decimal) *ReconciliationIssue {
	return &ReconciliationIssue{
		IssueType:   IssueAnomalousQuantity,
		Description: fmt.Sprintf("Trade %s has unusually large quantity: %s", tradeID, quantity),
		Severity:    SeverityMedium,
		TradeID:     tradeID,
		DetectedAt:  time.Now(),
	}
}
