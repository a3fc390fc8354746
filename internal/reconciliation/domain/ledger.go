package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// EntryType 台账记账类型
type EntryType string

const (
	EntryDebit  EntryType = "DEBIT"
	EntryCredit EntryType = "CREDIT"
)

// LedgerEntry 台账条目
// trade_id 是指向 Trade 的逻辑外键，不做数据库级约束：
// 同一笔交易可能对应零条、一条或多条台账记录
type LedgerEntry struct {
	gorm.Model
	// 关联的交易 ID
	TradeID string `gorm:"column:trade_id;type:varchar(64);index;not null" json:"trade_id"`
	// 金额，带符号，借贷方向由符号约定区分
	Amount decimal.Decimal `gorm:"column:amount;type:decimal(32,18);not null" json:"amount"`
	// 货币
	Currency string `gorm:"column:currency;type:varchar(10);not null" json:"currency"`
	// 记账类型（DEBIT/CREDIT）
	EntryType EntryType `gorm:"column:entry_type;type:varchar(10);not null" json:"entry_type"`
	// 记账时间
	Timestamp time.Time `gorm:"column:timestamp;not null" json:"timestamp"`
	// 是否已对账（仅做标记，匹配逻辑不读取该字段）
	Reconciled bool `gorm:"column:reconciled;default:false" json:"reconciled"`
}

// TableName 指定表名
func (LedgerEntry) TableName() string { return "ledger" }
