package pgstore

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zhouzirui/mindcare/backend/internal/model/chat"
	"github.com/zhouzirui/mindcare/backend/internal/model/user"
	"github.com/zhouzirui/mindcare/backend/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// Store implements store.Store on PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var _ store.Store = (*Store)(nil)

// PoolOptions sizes the connection pool.
type PoolOptions struct {
	MaxConns int32
	MinConns int32
}

func NewPool(ctx context.Context, databaseURL string, opts PoolOptions) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}

	if opts.MaxConns > 0 {
		config.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 {
		config.MinConns = opts.MinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// RunMigrations applies the embedded schema migrations.
func RunMigrations(databaseURL string) error {
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load embedded migrations: %w", err)
	}
	d, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", d, databaseURL)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}

	version, dirty, _ := m.Version()
	slog.Info("migrations applied", "version", version, "dirty", dirty)
	return nil
}

// New wraps an open pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	u = store.PrepareUser(u)
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, username, email, password_hash, created_at) VALUES ($1, $2, $3, $4, $5)`,
		u.ID, u.Username, u.Email, u.PasswordHash, u.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return user.User{}, store.ErrDuplicateUser
		}
		return user.User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (s *Store) UserByID(ctx context.Context, id string) (user.User, error) {
	return s.queryUser(ctx, `SELECT id, username, email, password_hash, created_at FROM users WHERE id = $1`, id)
}

func (s *Store) UserByUsername(ctx context.Context, username string) (user.User, error) {
	return s.queryUser(ctx, `SELECT id, username, email, password_hash, created_at FROM users WHERE username = $1`, username)
}

func (s *Store) queryUser(ctx context.Context, query string, arg any) (user.User, error) {
	var u user.User
	err := s.pool.QueryRow(ctx, query, arg).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return user.User{}, store.ErrUserNotFound
	}
	if err != nil {
		return user.User{}, fmt.Errorf("query user: %w", err)
	}
	return u, nil
}

// DeleteUser relies on ON DELETE CASCADE for the user's records.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrUserNotFound
	}
	return nil
}

const (
	insertChatRecord = `INSERT INTO chat_records (id, user_id, user_input, bot_response, mood, mood_score, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	insertMoodRecord = `INSERT INTO mood_records (id, user_id, mood, created_at) VALUES ($1, $2, $3, $4)`
)

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func execChatRecord(ctx context.Context, db execer, rec chat.ChatRecord) error {
	_, err := db.Exec(ctx, insertChatRecord,
		rec.ID, rec.UserID, rec.UserInput, rec.BotResponse, rec.Mood, rec.MoodScore, rec.CreatedAt)
	return err
}

func execMoodRecord(ctx context.Context, db execer, rec chat.MoodRecord) error {
	_, err := db.Exec(ctx, insertMoodRecord, rec.ID, rec.UserID, rec.Mood, rec.CreatedAt)
	return err
}

func (s *Store) AppendChatRecord(ctx context.Context, rec chat.ChatRecord) (chat.ChatRecord, error) {
	rec = store.PrepareChatRecord(rec)
	if err := execChatRecord(ctx, s.pool, rec); err != nil {
		return chat.ChatRecord{}, fmt.Errorf("insert chat record: %w", err)
	}
	return rec, nil
}

func (s *Store) AppendMoodRecord(ctx context.Context, rec chat.MoodRecord) (chat.MoodRecord, error) {
	rec = store.PrepareMoodRecord(rec)
	if err := execMoodRecord(ctx, s.pool, rec); err != nil {
		return chat.MoodRecord{}, fmt.Errorf("insert mood record: %w", err)
	}
	return rec, nil
}

func (s *Store) AppendTurn(ctx context.Context, chatRec chat.ChatRecord, moodRec chat.MoodRecord) error {
	chatRec = store.PrepareChatRecord(chatRec)
	moodRec = store.PrepareMoodRecord(moodRec)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := execChatRecord(ctx, tx, chatRec); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return store.ErrUserNotFound
		}
		return fmt.Errorf("insert chat record: %w", err)
	}
	if err := execMoodRecord(ctx, tx, moodRec); err != nil {
		return fmt.Errorf("insert mood record: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit turn: %w", err)
	}
	return nil
}

func (s *Store) ChatRecords(ctx context.Context, userID string, limit int) ([]chat.ChatRecord, error) {
	query := `SELECT id, user_id, user_input, bot_response, mood, mood_score, created_at
FROM chat_records WHERE user_id = $1 ORDER BY created_at DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query chat records: %w", err)
	}
	defer rows.Close()

	var records []chat.ChatRecord
	for rows.Next() {
		var rec chat.ChatRecord
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.UserInput, &rec.BotResponse, &rec.Mood, &rec.MoodScore, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *Store) MoodRecords(ctx context.Context, userID string) ([]chat.MoodRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, mood, created_at FROM mood_records WHERE user_id = $1 ORDER BY created_at ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query mood records: %w", err)
	}
	defer rows.Close()

	var records []chat.MoodRecord
	for rows.Next() {
		var rec chat.MoodRecord
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Mood, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan mood record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *Store) MoodScores(ctx context.Context, userID string) ([]store.ScoredAt, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT created_at, mood_score FROM chat_records
WHERE user_id = $1 AND mood_score IS NOT NULL ORDER BY created_at ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query mood scores: %w", err)
	}
	defer rows.Close()

	var scores []store.ScoredAt
	for rows.Next() {
		var sc store.ScoredAt
		if err := rows.Scan(&sc.At, &sc.Score); err != nil {
			return nil, fmt.Errorf("scan mood score: %w", err)
		}
		scores = append(scores, sc)
	}
	return scores, rows.Err()
}
