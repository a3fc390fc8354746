// 包 ingestion CSV 平面文件装载
package ingestion

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/prams2104/opspilot/internal/reconciliation/domain"
	"github.com/prams2104/opspilot/pkg/logger"
)

var tradeHeader = []string{"trade_id", "trader", "instrument", "quantity", "price", "side", "timestamp"}
var ledgerHeader = []string{"trade_id", "amount", "currency", "entry_type", "timestamp"}

// timestampLayouts 支持的时间格式，带时区的 RFC 3339 优先
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Loader CSV 装载器，装载采用整表替换语义：先清空再写入
type Loader struct {
	repo domain.Repository
}

// NewLoader 创建装载器
func NewLoader(repo domain.Repository) *Loader {
	return &Loader{repo: repo}
}

// LoadTrades 从 CSV 装载交易，所有交易以 pending 状态入库；
// 任意一行解析失败则整体失败，不写入任何数据
func (l *Loader) LoadTrades(ctx context.Context, path string) (int, error) {
	rows, err := readCSV(path, tradeHeader)
	if err != nil {
		return 0, err
	}

	trades := make([]*domain.Trade, 0, len(rows))
	for i, row := range rows {
		trade, err := parseTrade(row)
		if err != nil {
			return 0, fmt.Errorf("row %d: %w", i+2, err)
		}
		trades = append(trades, trade)
	}

	if err := l.repo.ReplaceTrades(ctx, trades); err != nil {
		return 0, fmt.Errorf("failed to load trades: %w", err)
	}

	logger.Info(ctx, "Trades loaded", "file", path, "count", len(trades))
	return len(trades), nil
}

// LoadLedger 从 CSV 装载台账条目，语义同 LoadTrades
func (l *Loader) LoadLedger(ctx context.Context, path string) (int, error) {
	rows, err := readCSV(path, ledgerHeader)
	if err != nil {
		return 0, err
	}

	entries := make([]*domain.LedgerEntry, 0, len(rows))
	for i, row := range rows {
		entry, err := parseLedgerEntry(row)
		if err != nil {
			return 0, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, entry)
	}

	if err := l.repo.ReplaceLedgerEntries(ctx, entries); err != nil {
		return 0, fmt.Errorf("failed to load ledger entries: %w", err)
	}

	logger.Info(ctx, "Ledger entries loaded", "file", path, "count", len(entries))
	return len(entries), nil
}

// readCSV 读取文件并校验表头
func readCSV(path string, header []string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = len(header)

	first, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%s is empty", path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header of %s: %w", path, err)
	}
	for i, col := range header {
		if strings.TrimSpace(first[i]) != col {
			return nil, fmt.Errorf("%s: expected column %q at position %d, got %q", path, col, i+1, first[i])
		}
	}

	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseTrade(row []string) (*domain.Trade, error) {
	quantity, err := decimal.NewFromString(strings.TrimSpace(row[3]))
	if err != nil {
		return nil, fmt.Errorf("invalid quantity %q: %w", row[3], err)
	}
	if !quantity.IsPositive() {
		return nil, fmt.Errorf("quantity must be positive, got %s", quantity)
	}

	price, err := decimal.NewFromString(strings.TrimSpace(row[4]))
	if err != nil {
		return nil, fmt.Errorf("invalid price %q: %w", row[4], err)
	}

	side := domain.TradeSide(strings.ToUpper(strings.TrimSpace(row[5])))
	if side != domain.SideBuy && side != domain.SideSell {
		return nil, fmt.Errorf("invalid side %q", row[5])
	}

	ts, err := parseTimestamp(row[6])
	if err != nil {
		return nil, err
	}

	return &domain.Trade{
		TradeID:    strings.TrimSpace(row[0]),
		Trader:     strings.TrimSpace(row[1]),
		Instrument: strings.TrimSpace(row[2]),
		Quantity:   quantity,
		Price:      price,
		Side:       side,
		Timestamp:  ts,
		Status:     domain.StatusPending,
	}, nil
}

func parseLedgerEntry(row []string) (*domain.LedgerEntry, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(row[1]))
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", row[1], err)
	}

	entryType := domain.EntryType(strings.ToUpper(strings.TrimSpace(row[3])))
	if entryType != domain.EntryDebit && entryType != domain.EntryCredit {
		return nil, fmt.Errorf("invalid entry_type %q", row[3])
	}

	ts, err := parseTimestamp(row[4])
	if err != nil {
		return nil, err
	}

	return &domain.LedgerEntry{
		TradeID:    strings.TrimSpace(row[0]),
		Amount:     amount,
		Currency:   strings.ToUpper(strings.TrimSpace(row[2])),
		EntryType:  entryType,
		Timestamp:  ts,
		Reconciled: false,
	}, nil
}

func parseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", value)
}
