package membership

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "questnotify/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")
	_, _ = db.Exec("PRAGMA foreign_keys = ON")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) SchoolMembers(ctx context.Context, schoolID int64) ([]int64, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM schools WHERE id = ?`, schoolID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("school %d: %w", schoolID, ErrSchoolNotFound)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM users WHERE school_id = ? AND role = 'student'`, schoolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIDs(rows)
}

func (s *sqliteStore) ClanMembers(ctx context.Context, clanID int64) ([]int64, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM clans WHERE id = ?`, clanID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("clan %d: %w", clanID, ErrClanNotFound)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id FROM clan_members WHERE clan_id = ?`, clanID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIDs(rows)
}

func (s *sqliteStore) ExpiredPowerups(ctx context.Context, now time.Time) ([]Powerup, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, kind, expires_at FROM powerups
		 WHERE notified = 0 AND expires_at <= ?`, now.UnixMilli())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Powerup
	for rows.Next() {
		var p Powerup
		var ms int64
		if err := rows.Scan(&p.ID, &p.UserID, &p.Kind, &ms); err != nil {
			return nil, err
		}
		p.ExpiresAt = time.UnixMilli(ms)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *sqliteStore) MarkPowerupNotified(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE powerups SET notified = 1 WHERE id = ?`, id)
	return err
}

func scanIDs(rows *sql.Rows) ([]int64, error) {
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
