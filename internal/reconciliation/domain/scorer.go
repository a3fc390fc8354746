package domain

import (
	"github.com/shopspring/decimal"
)

// AnomalyScorer 异常评分策略
// 判定一笔交易相对全量交易是否异常，替换实现即可切换统计口径
// （截尾均值、z-score、分位数等）而不影响匹配与编排逻辑
type AnomalyScorer interface {
	Score(trade *Trade, population []*Trade) bool
}

// MeanMultipleScorer 均值倍数评分
// 阈值为全量（含被检交易自身）数量均值的固定倍数。
// 单笔极端交易会抬高均值，可能掩盖其他同量级交易
type MeanMultipleScorer struct {
	multiple decimal.Decimal
}

// NewMeanMultipleScorer 创建均值倍数评分器
func NewMeanMultipleScorer(multiple int64) *MeanMultipleScorer {
	return &MeanMultipleScorer{multiple: decimal.NewFromInt(multiple)}
}

// Score 判定 quantity 是否严格大于均值的 multiple 倍
func (s *MeanMultipleScorer) Score(trade *Trade, population []*Trade) bool {
	if len(population) == 0 {
		return false
	}

	sum := decimal.Zero
	for _, t := range population {
		sum = sum.Add(t.Quantity)
	}
	avg := sum.Div(decimal.NewFromInt(int64(len(population))))

	return trade.Quantity.GreaterThan(avg.Mul(s.multiple))
}
