package performance

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/marketmind/marketmind/internal/database"
	"github.com/marketmind/marketmind/internal/domain"
)

// TradeRecord is one tracked trade outcome. Exit fields are nil while the
// trade is open.
type TradeRecord struct {
	ID               string
	Symbol           string
	Action           domain.Action
	EntryPrice       float64
	EntryDate        time.Time
	ExitPrice        *float64
	ExitDate         *time.Time
	Quantity         int
	ProfitLoss       *float64
	ProfitLossPct    *float64
	HoldingDays      *int
	SentimentScore   float64
	TechnicalScore   float64
	FundamentalScore float64
	Confidence       float64
	MarketState      domain.MarketState
	Notes            string
}

// Closed reports whether the trade has been exited.
func (t *TradeRecord) Closed() bool {
	return t.ExitPrice != nil
}

// Store persists trade records and computed weight snapshots.
type Store struct {
	db *database.DB
}

func NewStore(db *database.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("failed to initialize performance schema: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS trades (
			id                TEXT PRIMARY KEY,
			symbol            TEXT NOT NULL,
			action            TEXT NOT NULL,
			entry_price       REAL NOT NULL,
			entry_date        TEXT NOT NULL,
			exit_price        REAL,
			exit_date         TEXT,
			quantity          INTEGER NOT NULL DEFAULT 1,
			profit_loss       REAL,
			profit_loss_pct   REAL,
			holding_days      INTEGER,
			sentiment_score   REAL NOT NULL DEFAULT 0,
			technical_score   REAL NOT NULL DEFAULT 0,
			fundamental_score REAL NOT NULL DEFAULT 0,
			confidence        REAL NOT NULL DEFAULT 0,
			market_state      TEXT NOT NULL DEFAULT 'neutral',
			notes             TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades(symbol);
		CREATE INDEX IF NOT EXISTS idx_trades_exit_date ON trades(exit_date);

		CREATE TABLE IF NOT EXISTS weight_snapshots (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			sentiment   REAL NOT NULL,
			technical   REAL NOT NULL,
			fundamental REAL NOT NULL,
			computed_at TEXT NOT NULL
		);
	`)
	return err
}

func (s *Store) InsertTrade(ctx context.Context, t *TradeRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trades (
			id, symbol, action, entry_price, entry_date, quantity,
			sentiment_score, technical_score, fundamental_score,
			confidence, market_state, notes
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Symbol, string(t.Action), t.EntryPrice, t.EntryDate.Format(time.RFC3339),
		t.Quantity, t.SentimentScore, t.TechnicalScore, t.FundamentalScore,
		t.Confidence, string(t.MarketState), t.Notes)
	if err != nil {
		return fmt.Errorf("failed to insert trade %s: %w", t.ID, err)
	}
	return nil
}

func (s *Store) CloseTrade(ctx context.Context, t *TradeRecord) error {
	if t.ExitPrice == nil || t.ExitDate == nil {
		return fmt.Errorf("trade %s has no exit data to record", t.ID)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE trades
		SET exit_price = ?, exit_date = ?, profit_loss = ?, profit_loss_pct = ?,
		    holding_days = ?, notes = ?
		WHERE id = ? AND exit_price IS NULL`,
		t.ExitPrice, t.ExitDate.Format(time.RFC3339), t.ProfitLoss, t.ProfitLossPct,
		t.HoldingDays, t.Notes, t.ID)
	if err != nil {
		return fmt.Errorf("failed to close trade %s: %w", t.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("trade %s not found or already closed", t.ID)
	}
	return nil
}

func (s *Store) TradeByID(ctx context.Context, id string) (*TradeRecord, error) {
	row := s.db.QueryRowContext(ctx, selectTrades+` WHERE id = ?`, id)
	t, err := scanTrade(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

func (s *Store) OpenTrades(ctx context.Context) ([]*TradeRecord, error) {
	return s.queryTrades(ctx, selectTrades+` WHERE exit_price IS NULL ORDER BY entry_date`)
}

// ClosedTrades returns exited trades, optionally bounded by exit date.
func (s *Store) ClosedTrades(ctx context.Context, from, to time.Time) ([]*TradeRecord, error) {
	q := selectTrades + ` WHERE exit_price IS NOT NULL`
	var args []interface{}
	if !from.IsZero() {
		q += ` AND exit_date >= ?`
		args = append(args, from.Format(time.RFC3339))
	}
	if !to.IsZero() {
		q += ` AND exit_date <= ?`
		args = append(args, to.Format(time.RFC3339))
	}
	q += ` ORDER BY exit_date`
	return s.queryTrades(ctx, q, args...)
}

func (s *Store) TradesBySymbol(ctx context.Context, symbol string) ([]*TradeRecord, error) {
	return s.queryTrades(ctx, selectTrades+` WHERE symbol = ? ORDER BY entry_date`, symbol)
}

// SaveWeights appends a computed weight snapshot.
func (s *Store) SaveWeights(ctx context.Context, w domain.WeightTriple, computedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO weight_snapshots (sentiment, technical, fundamental, computed_at)
		VALUES (?, ?, ?, ?)`,
		w.Sentiment, w.Technical, w.Fundamental, computedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save weight snapshot: %w", err)
	}
	return nil
}

// LatestWeights returns the newest weight snapshot, or ok=false when none
// has been computed yet.
func (s *Store) LatestWeights(ctx context.Context) (domain.WeightTriple, bool, error) {
	var w domain.WeightTriple
	err := s.db.QueryRowContext(ctx, `
		SELECT sentiment, technical, fundamental
		FROM weight_snapshots ORDER BY id DESC LIMIT 1`).
		Scan(&w.Sentiment, &w.Technical, &w.Fundamental)
	if err == sql.ErrNoRows {
		return domain.WeightTriple{}, false, nil
	}
	if err != nil {
		return domain.WeightTriple{}, false, fmt.Errorf("failed to load weight snapshot: %w", err)
	}
	return w, true, nil
}

const selectTrades = `
	SELECT id, symbol, action, entry_price, entry_date, exit_price, exit_date,
	       quantity, profit_loss, profit_loss_pct, holding_days,
	       sentiment_score, technical_score, fundamental_score,
	       confidence, market_state, notes
	FROM trades`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTrade(row rowScanner) (*TradeRecord, error) {
	var (
		t                   TradeRecord
		action, state       string
		entryDate           string
		exitPrice, pl, plPc sql.NullFloat64
		exitDate            sql.NullString
		holdingDays         sql.NullInt64
	)

	err := row.Scan(&t.ID, &t.Symbol, &action, &t.EntryPrice, &entryDate,
		&exitPrice, &exitDate, &t.Quantity, &pl, &plPc, &holdingDays,
		&t.SentimentScore, &t.TechnicalScore, &t.FundamentalScore,
		&t.Confidence, &state, &t.Notes)
	if err != nil {
		return nil, err
	}

	t.Action = domain.Action(action)
	t.MarketState = domain.MarketState(state)
	if t.EntryDate, err = time.Parse(time.RFC3339, entryDate); err != nil {
		return nil, fmt.Errorf("invalid entry date on trade %s: %w", t.ID, err)
	}
	if exitPrice.Valid {
		t.ExitPrice = &exitPrice.Float64
	}
	if exitDate.Valid {
		parsed, err := time.Parse(time.RFC3339, exitDate.String)
		if err != nil {
			return nil, fmt.Errorf("invalid exit date on trade %s: %w", t.ID, err)
		}
		t.ExitDate = &parsed
	}
	if pl.Valid {
		t.ProfitLoss = &pl.Float64
	}
	if plPc.Valid {
		t.ProfitLossPct = &plPc.Float64
	}
	if holdingDays.Valid {
		days := int(holdingDays.Int64)
		t.HoldingDays = &days
	}

	return &t, nil
}

func (s *Store) queryTrades(ctx context.Context, query string, args ...interface{}) ([]*TradeRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	var trades []*TradeRecord
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}
