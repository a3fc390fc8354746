package ingestion

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/prams2104/opspilot/internal/reconciliation/domain"
	"github.com/prams2104/opspilot/internal/reconciliation/infrastructure/persistence"
)

func newTestRepo(t *testing.T) *persistence.Repository {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Discard,
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&domain.Trade{},
		&domain.LedgerEntry{},
	))

	return persistence.NewRepository(db)
}

func decimalFromString(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func writeCSV(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadTrades(t *testing.T) {
	repo := newTestRepo(t)
	loader := NewLoader(repo)
	ctx := context.Background()

	path := writeCSV(t, "trades.csv", `trade_id,trader,instrument,quantity,price,side,timestamp
T1,alice,AAPL,100,150.5,BUY,2026-01-15T09:30:00Z
T2,bob,MSFT,50,320,sell,2026-01-15 10:00:00
`)

	count, err := loader.LoadTrades(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	trades, err := repo.ListTrades(ctx, "")
	require.NoError(t, err)
	require.Len(t, trades, 2)

	assert.Equal(t, "T1", trades[0].TradeID)
	assert.Equal(t, "alice", trades[0].Trader)
	assert.True(t, trades[0].Quantity.Equal(decimalFromString(t, "100")))
	assert.True(t, trades[0].Price.Equal(decimalFromString(t, "150.5")))
	assert.Equal(t, domain.SideBuy, trades[0].Side)
	assert.Equal(t, domain.StatusPending, trades[0].Status)

	// side 大小写不敏感
	assert.Equal(t, domain.SideSell, trades[1].Side)
}

func TestLoadTradesReplacesExisting(t *testing.T) {
	repo := newTestRepo(t)
	loader := NewLoader(repo)
	ctx := context.Background()

	first := writeCSV(t, "first.csv", `trade_id,trader,instrument,quantity,price,side,timestamp
T1,alice,AAPL,100,150,BUY,2026-01-15T09:30:00Z
T2,bob,MSFT,50,320,SELL,2026-01-15T10:00:00Z
`)
	second := writeCSV(t, "second.csv", `trade_id,trader,instrument,quantity,price,side,timestamp
T3,carol,GOOG,10,180,BUY,2026-01-16T09:30:00Z
`)

	_, err := loader.LoadTrades(ctx, first)
	require.NoError(t, err)
	_, err = loader.LoadTrades(ctx, second)
	require.NoError(t, err)

	trades, err := repo.ListTrades(ctx, "")
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, "T3", trades[0].TradeID)
}

func TestLoadTradesBadRowAborts(t *testing.T) {
	repo := newTestRepo(t)
	loader := NewLoader(repo)
	ctx := context.Background()

	good := writeCSV(t, "good.csv", `trade_id,trader,instrument,quantity,price,side,timestamp
T1,alice,AAPL,100,150,BUY,2026-01-15T09:30:00Z
`)
	_, err := loader.LoadTrades(ctx, good)
	require.NoError(t, err)

	bad := writeCSV(t, "bad.csv", `trade_id,trader,instrument,quantity,price,side,timestamp
T2,bob,MSFT,50,320,SELL,2026-01-15T10:00:00Z
T3,carol,GOOG,-5,180,BUY,2026-01-16T09:30:00Z
`)
	count, err := loader.LoadTrades(ctx, bad)
	require.Error(t, err)
	assert.Zero(t, count)
	assert.Contains(t, err.Error(), "row 3")

	// 失败不得动已有数据
	trades, err := repo.ListTrades(ctx, "")
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, "T1", trades[0].TradeID)
}

func TestLoadTradesHeaderMismatch(t *testing.T) {
	loader := NewLoader(newTestRepo(t))

	path := writeCSV(t, "wrong.csv", `id,trader,instrument,quantity,price,side,timestamp
T1,alice,AAPL,100,150,BUY,2026-01-15T09:30:00Z
`)
	_, err := loader.LoadTrades(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `expected column "trade_id"`)
}

func TestLoadTradesInvalidSide(t *testing.T) {
	loader := NewLoader(newTestRepo(t))

	path := writeCSV(t, "side.csv", `trade_id,trader,instrument,quantity,price,side,timestamp
T1,alice,AAPL,100,150,HOLD,2026-01-15T09:30:00Z
`)
	_, err := loader.LoadTrades(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid side "HOLD"`)
}

func TestLoadTradesInvalidTimestamp(t *testing.T) {
	loader := NewLoader(newTestRepo(t))

	path := writeCSV(t, "ts.csv", `trade_id,trader,instrument,quantity,price,side,timestamp
T1,alice,AAPL,100,150,BUY,15/01/2026
`)
	_, err := loader.LoadTrades(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid timestamp "15/01/2026"`)
}

func TestLoadTradesEmptyFile(t *testing.T) {
	loader := NewLoader(newTestRepo(t))

	path := writeCSV(t, "empty.csv", "")
	_, err := loader.LoadTrades(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is empty")
}

func TestLoadLedger(t *testing.T) {
	repo := newTestRepo(t)
	loader := NewLoader(repo)
	ctx := context.Background()

	path := writeCSV(t, "ledger.csv", `trade_id,amount,currency,entry_type,timestamp
T1,-15050,usd,debit,2026-01-15T09:30:05Z
T1,100,USD,CREDIT,2026-01-15T09:30:06Z
`)

	count, err := loader.LoadLedger(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	entries, err := repo.ListLedgerEntries(ctx, "T1")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.True(t, entries[0].Amount.Equal(decimalFromString(t, "-15050")))
	assert.Equal(t, "USD", entries[0].Currency)
	assert.Equal(t, domain.EntryDebit, entries[0].EntryType)
	assert.False(t, entries[0].Reconciled)
	assert.Equal(t, domain.EntryCredit, entries[1].EntryType)
}

func TestLoadLedgerInvalidEntryType(t *testing.T) {
	loader := NewLoader(newTestRepo(t))

	path := writeCSV(t, "ledger.csv", `trade_id,amount,currency,entry_type,timestamp
T1,100,USD,TRANSFER,2026-01-15T09:30:05Z
`)
	_, err := loader.LoadLedger(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid entry_type "TRANSFER"`)
}
