package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vitos/trade_risk_engine/internal/domain"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS position_groups (
			id TEXT PRIMARY KEY,
			symbol TEXT NOT NULL,
			strategy TEXT NOT NULL,
			side TEXT NOT NULL,
			total_target_size REAL NOT NULL,
			num_entries INTEGER NOT NULL,
			scaling_label TEXT NOT NULL,
			group_stop_loss REAL NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS scaled_positions (
			id TEXT PRIMARY KEY,
			group_id TEXT NOT NULL,
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			entry_price REAL NOT NULL,
			target_size REAL NOT NULL,
			role TEXT NOT NULL,
			stop_loss REAL NOT NULL DEFAULT 0,
			state TEXT NOT NULL,
			filled_size REAL NOT NULL DEFAULT 0,
			filled_price REAL NOT NULL DEFAULT 0,
			filled_at DATETIME,
			strategy TEXT NOT NULL,
			magic INTEGER NOT NULL,
			ticket INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_positions_group ON scaled_positions(group_id);`,
		`CREATE TABLE IF NOT EXISTS orders (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			group_id TEXT NOT NULL,
			position_id TEXT NOT NULL,
			symbol TEXT NOT NULL,
			kind TEXT NOT NULL,
			volume REAL NOT NULL,
			price REAL NOT NULL,
			stop_loss REAL NOT NULL DEFAULT 0,
			take_profit REAL NOT NULL DEFAULT 0,
			strategy TEXT NOT NULL,
			magic INTEGER NOT NULL,
			ticket INTEGER NOT NULL DEFAULT 0,
			submit_error TEXT,
			created_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS suspended_items (
			ticket INTEGER PRIMARY KEY,
			kind TEXT NOT NULL,
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			volume REAL NOT NULL,
			price REAL NOT NULL,
			stop_loss REAL NOT NULL DEFAULT 0,
			take_profit REAL NOT NULL DEFAULT 0,
			magic INTEGER NOT NULL,
			suspended_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS risk_snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			closed_pnl REAL NOT NULL,
			floating_pnl REAL NOT NULL,
			total_pnl REAL NOT NULL,
			breached BOOLEAN NOT NULL,
			authorized BOOLEAN NOT NULL,
			at DATETIME NOT NULL
		);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}

	return nil
}

// GroupRepository Implementation

func (s *SQLiteStore) SaveGroup(ctx context.Context, g *domain.PositionGroup) error {
	query := `INSERT INTO position_groups (id, symbol, strategy, side, total_target_size, num_entries, scaling_label, group_stop_loss, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			  ON CONFLICT(id) DO UPDATE SET group_stop_loss = excluded.group_stop_loss`
	_, err := s.db.ExecContext(ctx, query,
		g.ID, g.Symbol, g.Strategy, string(g.Side), g.TotalTargetSize,
		g.NumEntries, g.ScalingLabel, g.GroupStopLoss, g.CreatedAt)
	return err
}

func (s *SQLiteStore) SavePosition(ctx context.Context, p *domain.ScaledPosition) error {
	query := `INSERT INTO scaled_positions (id, group_id, symbol, side, entry_price, target_size, role, stop_loss, state, filled_size, filled_price, filled_at, strategy, magic, ticket)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			  ON CONFLICT(id) DO UPDATE SET
				state = excluded.state,
				filled_size = excluded.filled_size,
				filled_price = excluded.filled_price,
				filled_at = excluded.filled_at,
				ticket = excluded.ticket`
	_, err := s.db.ExecContext(ctx, query,
		p.ID, p.GroupID, p.Symbol, string(p.Side), p.EntryPrice, p.TargetSize,
		string(p.Role), p.StopLoss, string(p.State), p.FilledSize, p.FilledPrice,
		p.FilledAt, p.Strategy, p.Magic, p.Ticket)
	return err
}

func (s *SQLiteStore) ListGroups(ctx context.Context) ([]*domain.PositionGroup, error) {
	query := `SELECT id, symbol, strategy, side, total_target_size, num_entries, scaling_label, group_stop_loss, created_at FROM position_groups`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []*domain.PositionGroup
	byID := make(map[string]*domain.PositionGroup)
	for rows.Next() {
		var g domain.PositionGroup
		var side string
		if err := rows.Scan(&g.ID, &g.Symbol, &g.Strategy, &side, &g.TotalTargetSize,
			&g.NumEntries, &g.ScalingLabel, &g.GroupStopLoss, &g.CreatedAt); err != nil {
			return nil, err
		}
		g.Side = domain.Side(side)
		groups = append(groups, &g)
		byID[g.ID] = &g
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	positions, err := s.listPositions(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range positions {
		if g, ok := byID[p.GroupID]; ok {
			g.Positions = append(g.Positions, p)
		}
	}
	for _, g := range groups {
		g.UpdateMetrics()
	}

	return groups, nil
}

func (s *SQLiteStore) listPositions(ctx context.Context) ([]*domain.ScaledPosition, error) {
	query := `SELECT id, group_id, symbol, side, entry_price, target_size, role, stop_loss, state, filled_size, filled_price, filled_at, strategy, magic, ticket FROM scaled_positions`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []*domain.ScaledPosition
	for rows.Next() {
		var p domain.ScaledPosition
		var side, role, state string
		var filledAt sql.NullTime
		if err := rows.Scan(&p.ID, &p.GroupID, &p.Symbol, &side, &p.EntryPrice,
			&p.TargetSize, &role, &p.StopLoss, &state, &p.FilledSize, &p.FilledPrice,
			&filledAt, &p.Strategy, &p.Magic, &p.Ticket); err != nil {
			return nil, err
		}
		p.Side = domain.Side(side)
		p.Role = domain.PositionRole(role)
		p.State = domain.PositionState(state)
		if filledAt.Valid {
			p.FilledAt = filledAt.Time
		}
		positions = append(positions, &p)
	}
	return positions, rows.Err()
}

// OrderRepository Implementation

func (s *SQLiteStore) SaveOrderOutcome(ctx context.Context, groupID string, spec *domain.OrderSpec, ticket int64, submitErr error) error {
	errText := ""
	if submitErr != nil {
		errText = submitErr.Error()
	}
	query := `INSERT INTO orders (group_id, position_id, symbol, kind, volume, price, stop_loss, take_profit, strategy, magic, ticket, submit_error, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		groupID, spec.PositionID, spec.Symbol, string(spec.Kind), spec.Volume,
		spec.Price, spec.StopLoss, spec.TakeProfit, spec.Strategy, spec.Magic,
		ticket, errText, time.Now())
	return err
}

// SuspensionRepository Implementation

func (s *SQLiteStore) SaveSuspendedItem(ctx context.Context, item *domain.SuspendedItem) error {
	query := `INSERT OR REPLACE INTO suspended_items (ticket, kind, symbol, side, volume, price, stop_loss, take_profit, magic, suspended_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		item.Ticket, string(item.Kind), item.Symbol, string(item.Side), item.Volume,
		item.Price, item.StopLoss, item.TakeProfit, item.Magic, item.SuspendedAt)
	return err
}

func (s *SQLiteStore) DeleteSuspendedItem(ctx context.Context, ticket int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM suspended_items WHERE ticket = ?`, ticket)
	return err
}

func (s *SQLiteStore) ListSuspendedItems(ctx context.Context) ([]*domain.SuspendedItem, error) {
	query := `SELECT ticket, kind, symbol, side, volume, price, stop_loss, take_profit, magic, suspended_at FROM suspended_items`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*domain.SuspendedItem
	for rows.Next() {
		var item domain.SuspendedItem
		var kind, side string
		if err := rows.Scan(&item.Ticket, &kind, &item.Symbol, &side, &item.Volume,
			&item.Price, &item.StopLoss, &item.TakeProfit, &item.Magic, &item.SuspendedAt); err != nil {
			return nil, err
		}
		item.Kind = domain.SuspendedKind(kind)
		item.Side = domain.Side(side)
		items = append(items, &item)
	}
	return items, rows.Err()
}

func (s *SQLiteStore) ClearSuspendedItems(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM suspended_items`)
	return err
}

// RiskSnapshotRepository Implementation

func (s *SQLiteStore) SaveRiskSnapshot(ctx context.Context, snap *domain.RiskSnapshot) error {
	query := `INSERT INTO risk_snapshots (closed_pnl, floating_pnl, total_pnl, breached, authorized, at)
			  VALUES (?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		snap.ClosedPnL, snap.FloatingPnL, snap.TotalPnL, snap.Breached, snap.Authorized, snap.At)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
