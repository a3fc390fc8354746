// 包 domain 对账服务的领域模型
package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TradeSide 交易方向
type TradeSide string

// TradeStatus 交易状态
type TradeStatus string

const (
	SideBuy  TradeSide = "BUY"
	SideSell TradeSide = "SELL"

	// StatusPending 待对账，只有该状态的交易参与台账匹配
	StatusPending TradeStatus = "pending"
	// StatusReconciled 已对账
	StatusReconciled TradeStatus = "reconciled"
)

// Trade 交易实体
// 代表一笔已执行的交易，trade_id 是与台账关联的业务主键
type Trade struct {
	gorm.Model
	// 交易 ID (业务主键)，全局唯一
	TradeID string `gorm:"column:trade_id;type:varchar(64);uniqueIndex;not null" json:"trade_id"`
	// 交易员
	Trader string `gorm:"column:trader;type:varchar(64);not null" json:"trader"`
	// 交易标的（如 AAPL, EUR/USD）
	Instrument string `gorm:"column:instrument;type:varchar(32);not null" json:"instrument"`
	// 数量
	Quantity decimal.Decimal `gorm:"column:quantity;type:decimal(32,18);not null" json:"quantity"`
	// 价格
	Price decimal.Decimal `gorm:"column:price;type:decimal(32,18);not null" json:"price"`
	// 方向（BUY/SELL）
	Side TradeSide `gorm:"column:side;type:varchar(10);not null" json:"side"`
	// 成交时间
	Timestamp time.Time `gorm:"column:timestamp;not null" json:"timestamp"`
	// 状态（pending/reconciled）
	Status TradeStatus `gorm:"column:status;type:varchar(20);not null;default:pending" json:"status"`
}

// TableName 指定表名
func (Trade) TableName() string { return "trades" }

// Notional 名义金额 = 数量 * 价格，方向不参与计算
func (t *Trade) Notional() decimal.Decimal {
	return t.Quantity.Mul(t.Price)
}
