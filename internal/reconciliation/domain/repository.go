package domain

import (
	"context"
)

// Repository 对账记录存储接口
// 交易与台账对引擎只读；问题记录只追加，整批写入构成一次持久化边界
type Repository interface {
	// CreateTrade 保存一笔交易
	CreateTrade(ctx context.Context, trade *Trade) error
	// ListTrades 按默认检索顺序返回交易，status 为空时返回全部
	ListTrades(ctx context.Context, status TradeStatus) ([]*Trade, error)
	// GetTradeByTradeID 按业务主键查询交易
	GetTradeByTradeID(ctx context.Context, tradeID string) (*Trade, error)
	// CountTrades 统计交易数，status 为空时统计全部
	CountTrades(ctx context.Context, status TradeStatus) (int64, error)
	// ReplaceTrades 清空后批量装载交易（数据导入用）
	ReplaceTrades(ctx context.Context, trades []*Trade) error

	// CreateLedgerEntry 保存一条台账条目
	CreateLedgerEntry(ctx context.Context, entry *LedgerEntry) error
	// ListLedgerEntries 返回指定交易 ID 的全部台账条目
	ListLedgerEntries(ctx context.Context, tradeID string) ([]*LedgerEntry, error)
	// ReplaceLedgerEntries 清空后批量装载台账条目（数据导入用）
	ReplaceLedgerEntries(ctx context.Context, entries []*LedgerEntry) error

	// CreateIssues 在单个事务中追加一批问题记录，全部成功或全部失败
	CreateIssues(ctx context.Context, issues []*ReconciliationIssue) error
	// ListOpenIssues 返回全部未解决的问题
	ListOpenIssues(ctx context.Context) ([]*ReconciliationIssue, error)
	// GetIssue 按存储主键查询问题
	GetIssue(ctx context.Context, id uint) (*ReconciliationIssue, error)
	// SaveIssueExplanation 回填 AI 解释
	SaveIssueExplanation(ctx context.Context, id uint, explanation string) error

	// SaveRun 保存或更新运行记录
	SaveRun(ctx context.Context, run *ReconciliationRun) error
}
