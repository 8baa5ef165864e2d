package exception

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

	"rotaplan/internal/calendar"
	"rotaplan/internal/rota"
	logx "rotaplan/pkg/logx"

	_ "modernc.org/sqlite"
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
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")
	_, _ = db.Exec("PRAGMA busy_timeout = 5000")

	st := &sqliteStore{db: db, log: log}
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

func (s *sqliteStore) ActiveForRange(ctx context.Context, userID string, start, end calendar.Date) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, date, kind, status, created_at,
		        shift_type, new_start, new_end, has_times, swap_team, teams, note
		   FROM exceptions
		  WHERE user_id = ? AND status = 'active' AND date >= ? AND date <= ?
		  ORDER BY id ASC`,
		userID, start.String(), end.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return out, nil
}

func scanRecord(rows *sql.Rows) (Record, error) {
	var (
		r                   Record
		dateStr, kindStr    string
		statusStr, created  string
		shiftType, swapTeam sql.NullString
		newStart, newEnd    sql.NullInt64
		hasTimes            int
		teams, note         sql.NullString
	)
	if err := rows.Scan(&r.ID, &r.UserID, &dateStr, &kindStr, &statusStr, &created,
		&shiftType, &newStart, &newEnd, &hasTimes, &swapTeam, &teams, &note); err != nil {
		return Record{}, err
	}

	d, err := calendar.ParseDate(dateStr)
	if err != nil {
		return Record{}, err
	}
	r.Date = d
	if r.Kind, err = ParseKind(kindStr); err != nil {
		return Record{}, err
	}
	if r.Status, err = ParseStatus(statusStr); err != nil {
		return Record{}, err
	}
	if r.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return Record{}, err
	}
	r.ShiftTypeID = shiftType.String
	r.NewStart = minuteOf(newStart)
	r.NewEnd = minuteOf(newEnd)
	r.HasNewTimes = hasTimes != 0
	r.SwapTeam = swapTeam.String
	if teams.String != "" {
		r.Teams = strings.Split(teams.String, ",")
	}
	r.Note = note.String
	return r, nil
}

func minuteOf(v sql.NullInt64) rota.MinuteOfDay {
	if !v.Valid {
		return 0
	}
	return rota.MinuteOfDay(v.Int64)
}

func (s *sqliteStore) Put(ctx context.Context, r Record) (int64, error) {
	if r.Status == 0 {
		r.Status = StatusActive
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO exceptions
		   (user_id, date, kind, status, created_at, shift_type, new_start, new_end, has_times, swap_team, teams, note)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		r.UserID, r.Date.String(), r.Kind.String(), r.Status.String(),
		r.CreatedAt.Format(time.RFC3339Nano),
		nullStr(r.ShiftTypeID), int64(r.NewStart), int64(r.NewEnd), boolInt(r.HasNewTimes),
		nullStr(r.SwapTeam), nullStr(strings.Join(r.Teams, ",")), nullStr(r.Note),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return res.LastInsertId()
}

func (s *sqliteStore) Cancel(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE exceptions SET status = 'cancelled' WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
