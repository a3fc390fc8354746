package persistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/prams2104/opspilot/internal/reconciliation/domain"
)

// ErrTradeNotFound 交易不存在
var ErrTradeNotFound = errors.New("trade not found")

// ErrIssueNotFound 问题记录不存在
var ErrIssueNotFound = errors.New("issue not found")

// Repository domain.Repository 的 GORM 实现
type Repository struct {
	db *gorm.DB
}

// NewRepository 创建仓储实例
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CreateTrade 保存一笔交易
func (r *Repository) CreateTrade(ctx context.Context, trade *domain.Trade) error {
	return r.db.WithContext(ctx).Create(trade).Error
}

// ListTrades 按主键顺序返回交易，status 为空时返回全部
func (r *Repository) ListTrades(ctx context.Context, status domain.TradeStatus) ([]*domain.Trade, error) {
	var trades []*domain.Trade
	query := r.db.WithContext(ctx).Order("id")
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Find(&trades).Error; err != nil {
		return nil, err
	}
	return trades, nil
}

// GetTradeByTradeID 按业务主键查询交易
func (r *Repository) GetTradeByTradeID(ctx context.Context, tradeID string) (*domain.Trade, error) {
	var trade domain.Trade
	err := r.db.WithContext(ctx).Where("trade_id = ?", tradeID).First(&trade).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTradeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &trade, nil
}

// CountTrades 统计交易数，status 为空时统计全部
func (r *Repository) CountTrades(ctx context.Context, status domain.TradeStatus) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&domain.Trade{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// ReplaceTrades 在单个事务中清空并重新装载交易表
func (r *Repository) ReplaceTrades(ctx context.Context, trades []*domain.Trade) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().Delete(&domain.Trade{}).Error; err != nil {
			return fmt.Errorf("failed to clear trades: %w", err)
		}
		if len(trades) == 0 {
			return nil
		}
		return tx.CreateInBatches(trades, 500).Error
	})
}

// CreateLedgerEntry 保存一条台账条目
func (r *Repository) CreateLedgerEntry(ctx context.Context, entry *domain.LedgerEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// ListLedgerEntries 返回指定交易 ID 的台账条目
func (r *Repository) ListLedgerEntries(ctx context.Context, tradeID string) ([]*domain.LedgerEntry, error) {
	var entries []*domain.LedgerEntry
	if err := r.db.WithContext(ctx).Where("trade_id = ?", tradeID).Order("id").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// ReplaceLedgerEntries 在单个事务中清空并重新装载台账表
func (r *Repository) ReplaceLedgerEntries(ctx context.Context, entries []*domain.LedgerEntry) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().Delete(&domain.LedgerEntry{}).Error; err != nil {
			return fmt.Errorf("failed to clear ledger entries: %w", err)
		}
		if len(entries) == 0 {
			return nil
		}
		return tx.CreateInBatches(entries, 500).Error
	})
}

// CreateIssues 在单个事务中追加一批问题记录
func (r *Repository) CreateIssues(ctx context.Context, issues []*domain.ReconciliationIssue) error {
	if len(issues) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(issues).Error
	})
}

// ListOpenIssues 返回全部未解决的问题
func (r *Repository) ListOpenIssues(ctx context.Context) ([]*domain.ReconciliationIssue, error) {
	issues := make([]*domain.ReconciliationIssue, 0)
	if err := r.db.WithContext(ctx).Where("resolved = ?", false).Order("id desc").Find(&issues).Error; err != nil {
		return nil, err
	}
	return issues, nil
}

// GetIssue 按存储主键查询问题
func (r *Repository) GetIssue(ctx context.Context, id uint) (*domain.ReconciliationIssue, error) {
	var issue domain.ReconciliationIssue
	err := r.db.WithContext(ctx).First(&issue, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrIssueNotFound
	}
	if err != nil {
		return nil, err
	}
	return &issue, nil
}

// SaveIssueExplanation 回填 AI 解释
func (r *Repository) SaveIssueExplanation(ctx context.Context, id uint, explanation string) error {
	result := r.db.WithContext(ctx).Model(&domain.ReconciliationIssue{}).
		Where("id = ?", id).
		Update("ai_explanation", explanation)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrIssueNotFound
	}
	return nil
}

// SaveRun 保存或更新运行记录
func (r *Repository) SaveRun(ctx context.Context, run *domain.ReconciliationRun) error {
	return r.db.WithContext(ctx).Save(run).Error
}
