package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func trades(quantities ...int64) []*Trade {
	out := make([]*Trade, 0, len(quantities))
	for i, q := range quantities {
		out = append(out, &Trade{
			TradeID:  string(rune('A' + i)),
			Quantity: decimal.NewFromInt(q),
		})
	}
	return out
}

func TestMeanMultipleScorerEmptyPopulation(t *testing.T) {
	scorer := NewMeanMultipleScorer(5)
	trade := &Trade{Quantity: decimal.NewFromInt(100)}

	assert.False(t, scorer.Score(trade, nil))
}

func TestMeanMultipleScorerStrictThreshold(t *testing.T) {
	scorer := NewMeanMultipleScorer(5)

	// 均值 28，阈值 140：100 不算异常，141 才算
	population := trades(10, 10, 10, 10, 100)
	assert.False(t, scorer.Score(population[4], population))

	population = append(trades(10, 10, 10, 10), &Trade{TradeID: "E", Quantity: decimal.NewFromInt(141)})
	// 均值 (40+141)/5 = 36.2，阈值 181：141 仍不超
	assert.False(t, scorer.Score(population[4], population))

	// 明显离群
	population = trades(10, 10, 10, 10, 10, 1000)
	assert.True(t, scorer.Score(population[5], population))
}

func TestMeanMultipleScorerSelfReferentialMean(t *testing.T) {
	scorer := NewMeanMultipleScorer(5)

	// 被检交易自身计入均值：单笔极端交易抬高阈值，
	// 两笔交易的总体不可能产生异常
	population := trades(1, 1000000)
	assert.False(t, scorer.Score(population[1], population))
}
