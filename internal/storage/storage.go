// Package storage provides SQL access to placards, companies, share groups, and user
// subscriptions. PostgreSQL (via pgx) is the production store; SQLite serves local runs and tests.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/rewired-gh/placardwatch/internal/models"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Storage wraps a SQL database for all persistence operations.
type Storage struct {
	db     *sql.DB
	driver string
}

// New opens or creates the SQLite database at dbPath.
// An empty dbPath defaults to $TMPDIR/placardwatch/data.db.
func New(dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "placardwatch", "data.db")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	s := &Storage{db: db, driver: DriverSQLite}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// NewPostgres connects to the placard database through pgx's database/sql driver.
func NewPostgres(ctx context.Context, cfg PostgresConfig) (*Storage, error) {
	connCfg, err := pgx.ParseConfig(BuildConnString(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	db := stdlib.OpenDB(*connCfg)
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	s := &Storage{db: db, driver: DriverPostgres}
	if err := s.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

// Ping verifies the connection is healthy.
func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// createTables creates whatever is missing. On PostgreSQL the placard tables are owned by
// the trading system and already exist; only user_subscriptions is ours.
func (s *Storage) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS companies (
			id    BIGINT PRIMARY KEY,
			alias TEXT NOT NULL UNIQUE
		)`,
		`CREATE TABLE IF NOT EXISTS share_groups (
			id     BIGINT PRIMARY KEY,
			letter TEXT NOT NULL,
			isin   TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS placards (
			id             BIGINT PRIMARY KEY,
			company_id     BIGINT NOT NULL REFERENCES companies(id),
			share_group_id BIGINT REFERENCES share_groups(id),
			process_type   TEXT NOT NULL,
			unit_price     NUMERIC NOT NULL,
			share_count    BIGINT NOT NULL,
			listing_at     TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_placards_listing_at ON placards(listing_at)`,
		`CREATE TABLE IF NOT EXISTS user_subscriptions (
			user_id      BIGINT NOT NULL,
			company_name TEXT NOT NULL,
			PRIMARY KEY (user_id, company_name)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// LatestTradeID returns the highest placard id, or 0 for an empty table.
func (s *Storage) LatestTradeID(ctx context.Context) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) FROM placards`).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to query latest trade id: %w", err)
	}
	return id, nil
}

// TradesAfter returns every trade with id > afterID, ascending by id.
func (s *Storage) TradesAfter(ctx context.Context, afterID int64) ([]models.Trade, error) {
	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT `+tradeCols+tradeJoins+` WHERE p.id > ? ORDER BY p.id ASC`), afterID)
	if err != nil {
		return nil, fmt.Errorf("failed to query new trades: %w", err)
	}
	return scanTrades(rows)
}

// Trades returns trades matching q ordered by listing time (ties by id).
func (s *Storage) Trades(ctx context.Context, q models.TradeQuery) ([]models.Trade, error) {
	var where []string
	var args []any
	if q.CompanyLike != "" {
		ids, err := s.companyIDsLike(ctx, q.CompanyLike)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			return []models.Trade{}, nil
		}
		marks := make([]string, len(ids))
		for i, id := range ids {
			marks[i] = "?"
			args = append(args, id)
		}
		where = append(where, `p.company_id IN (`+strings.Join(marks, ", ")+`)`)
	}
	if !q.Since.IsZero() {
		where = append(where, `p.listing_at >= ?`)
		args = append(args, q.Since.UTC())
	}
	if !q.Until.IsZero() {
		where = append(where, `p.listing_at <= ?`)
		args = append(args, q.Until.UTC())
	}

	query := `SELECT ` + tradeCols + tradeJoins
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	if q.NewestFirst {
		query += ` ORDER BY p.listing_at DESC, p.id DESC`
	} else {
		query += ` ORDER BY p.listing_at ASC, p.id ASC`
	}
	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	return scanTrades(rows)
}

// companyIDsLike returns the ids of companies whose alias contains name, ignoring case.
func (s *Storage) companyIDsLike(ctx context.Context, name string) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, alias FROM companies ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query companies: %w", err)
	}
	defer rows.Close()

	needle := foldName(name)
	var ids []int64
	for rows.Next() {
		var id int64
		var alias string
		if err := rows.Scan(&id, &alias); err != nil {
			return nil, fmt.Errorf("failed to scan company: %w", err)
		}
		if strings.Contains(foldName(alias), needle) {
			ids = append(ids, id)
		}
	}
	return ids, rows.Err()
}

// Companies returns the distinct company aliases in alphabetical order.
func (s *Storage) Companies(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT alias FROM companies ORDER BY alias`)
	if err != nil {
		return nil, fmt.Errorf("failed to query companies: %w", err)
	}
	defer rows.Close()

	aliases := []string{}
	for rows.Next() {
		var alias string
		if err := rows.Scan(&alias); err != nil {
			return nil, fmt.Errorf("failed to scan company: %w", err)
		}
		aliases = append(aliases, alias)
	}
	return aliases, rows.Err()
}

// AddSubscription inserts (userID, interest); an existing pair is left untouched.
func (s *Storage) AddSubscription(ctx context.Context, userID int64, interest string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, s.rebind(`
			INSERT INTO user_subscriptions (user_id, company_name)
			VALUES (?, ?)
			ON CONFLICT (user_id, company_name) DO NOTHING`),
			userID, interest)
		if err != nil {
			return fmt.Errorf("failed to insert subscription: %w", err)
		}
		return nil
	})
}

// RemoveSubscription deletes exactly the (userID, interest) pair.
func (s *Storage) RemoveSubscription(ctx context.Context, userID int64, interest string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, s.rebind(`
			DELETE FROM user_subscriptions
			WHERE user_id = ? AND company_name = ?`),
			userID, interest)
		if err != nil {
			return fmt.Errorf("failed to delete subscription: %w", err)
		}
		return nil
	})
}

// RemoveAllSubscriptions deletes every subscription held by userID.
func (s *Storage) RemoveAllSubscriptions(ctx context.Context, userID int64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM user_subscriptions WHERE user_id = ?`), userID)
		if err != nil {
			return fmt.Errorf("failed to delete subscriptions: %w", err)
		}
		return nil
	})
}

// SubscribersOf returns users subscribed to ALL or to exactly alias.
func (s *Storage) SubscribersOf(ctx context.Context, alias string) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT DISTINCT user_id FROM user_subscriptions
		WHERE company_name = ? OR company_name = ?
		ORDER BY user_id`),
		models.InterestAll, alias)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscribers: %w", err)
	}
	defer rows.Close()

	users := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan subscriber: %w", err)
		}
		users = append(users, id)
	}
	return users, rows.Err()
}

// SubscriptionsOf returns the interests held by userID.
func (s *Storage) SubscriptionsOf(ctx context.Context, userID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT company_name FROM user_subscriptions
		WHERE user_id = ?
		ORDER BY company_name`), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscriptions: %w", err)
	}
	defer rows.Close()

	interests := []string{}
	for rows.Next() {
		var interest string
		if err := rows.Scan(&interest); err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		interests = append(interests, interest)
	}
	return interests, rows.Err()
}

func (s *Storage) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *Storage) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const tradeCols = `p.id, p.company_id, c.alias, p.process_type, p.unit_price, p.share_count, p.listing_at,
	COALESCE(p.share_group_id, 0), COALESCE(sg.letter, ''), COALESCE(sg.isin, '')`

const tradeJoins = `
	FROM placards p
	JOIN companies c ON p.company_id = c.id
	LEFT JOIN share_groups sg ON p.share_group_id = sg.id`

func scanTrades(rows *sql.Rows) ([]models.Trade, error) {
	defer rows.Close()
	trades := []models.Trade{}
	for rows.Next() {
		var t models.Trade
		var listingAt time.Time
		err := rows.Scan(
			&t.ID, &t.CompanyID, &t.Company, &t.ProcessType, &t.UnitPrice, &t.ShareCount, &listingAt,
			&t.ShareGroupID, &t.ShareGroupLetter, &t.ShareGroupISIN,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		t.ListingAt = listingAt.UTC()
		trades = append(trades, t)
	}
	return trades, rows.Err()
}
