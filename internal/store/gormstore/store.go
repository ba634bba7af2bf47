package gormstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/zhouzirui/mindcare/backend/internal/model/chat"
	"github.com/zhouzirui/mindcare/backend/internal/model/user"
	"github.com/zhouzirui/mindcare/backend/internal/store"
)

// Store implements store.Store on GORM (SQLite or MySQL).
type Store struct {
	db *gorm.DB
}

var _ store.Store = (*Store)(nil)

// AllModels lists the tables managed by AutoMigrate.
func AllModels() []any {
	return []any{&user.User{}, &chat.ChatRecord{}, &chat.MoodRecord{}}
}

// Open connects to driver ("sqlite" or "mysql") with dsn.
func Open(driver, dsn string) (*Store, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		if err := ensureSQLiteDir(dsn); err != nil {
			return nil, err
		}
		dialector = sqlite.Open(withForeignKeys(dsn))
	case "mysql":
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("db: unsupported driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("db: connect %s: %w", driver, err)
	}
	return New(db), nil
}

// New wraps an open GORM connection.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates the schema.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	u = store.PrepareUser(u)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&user.User{}).
			Where("username = ? OR email = ?", u.Username, u.Email).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return store.ErrDuplicateUser
		}
		return tx.Create(&u).Error
	})
	switch {
	case errors.Is(err, store.ErrDuplicateUser), errors.Is(err, gorm.ErrDuplicatedKey):
		return user.User{}, store.ErrDuplicateUser
	case err != nil:
		return user.User{}, fmt.Errorf("db: create user: %w", err)
	}
	return u, nil
}

func (s *Store) UserByID(ctx context.Context, id string) (user.User, error) {
	return s.findUser(ctx, "id = ?", id)
}

func (s *Store) UserByUsername(ctx context.Context, username string) (user.User, error) {
	return s.findUser(ctx, "username = ?", username)
}

func (s *Store) findUser(ctx context.Context, query string, arg any) (user.User, error) {
	var u user.User
	err := s.db.WithContext(ctx).Where(query, arg).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return user.User{}, store.ErrUserNotFound
	}
	if err != nil {
		return user.User{}, fmt.Errorf("db: find user: %w", err)
	}
	return u, nil
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&chat.ChatRecord{}).Error; err != nil {
			return fmt.Errorf("db: delete chat records: %w", err)
		}
		if err := tx.Where("user_id = ?", id).Delete(&chat.MoodRecord{}).Error; err != nil {
			return fmt.Errorf("db: delete mood records: %w", err)
		}
		res := tx.Where("id = ?", id).Delete(&user.User{})
		if res.Error != nil {
			return fmt.Errorf("db: delete user: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return store.ErrUserNotFound
		}
		return nil
	})
}

func (s *Store) AppendChatRecord(ctx context.Context, rec chat.ChatRecord) (chat.ChatRecord, error) {
	rec = store.PrepareChatRecord(rec)
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return chat.ChatRecord{}, fmt.Errorf("db: append chat record: %w", err)
	}
	return rec, nil
}

func (s *Store) AppendMoodRecord(ctx context.Context, rec chat.MoodRecord) (chat.MoodRecord, error) {
	rec = store.PrepareMoodRecord(rec)
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return chat.MoodRecord{}, fmt.Errorf("db: append mood record: %w", err)
	}
	return rec, nil
}

func (s *Store) AppendTurn(ctx context.Context, chatRec chat.ChatRecord, moodRec chat.MoodRecord) error {
	chatRec = store.PrepareChatRecord(chatRec)
	moodRec = store.PrepareMoodRecord(moodRec)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&chatRec).Error; err != nil {
			return err
		}
		return tx.Create(&moodRec).Error
	})
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return store.ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("db: append turn: %w", err)
	}
	return nil
}

func (s *Store) ChatRecords(ctx context.Context, userID string, limit int) ([]chat.ChatRecord, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var records []chat.ChatRecord
	if err := q.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("db: list chat records: %w", err)
	}
	return records, nil
}

func (s *Store) MoodRecords(ctx context.Context, userID string) ([]chat.MoodRecord, error) {
	var records []chat.MoodRecord
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("db: list mood records: %w", err)
	}
	return records, nil
}

func (s *Store) MoodScores(ctx context.Context, userID string) ([]store.ScoredAt, error) {
	var rows []struct {
		CreatedAt time.Time
		MoodScore float64
	}
	if err := s.db.WithContext(ctx).
		Model(&chat.ChatRecord{}).
		Select("created_at, mood_score").
		Where("user_id = ? AND mood_score IS NOT NULL", userID).
		Order("created_at ASC").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("db: list mood scores: %w", err)
	}

	scores := make([]store.ScoredAt, len(rows))
	for i, r := range rows {
		scores[i] = store.ScoredAt{At: r.CreatedAt, Score: r.MoodScore}
	}
	return scores, nil
}

// withForeignKeys turns on SQLite foreign key enforcement for every pooled
// connection.
func withForeignKeys(dsn string) string {
	if strings.Contains(dsn, "_foreign_keys=") || strings.Contains(dsn, "_fk=") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&_foreign_keys=1"
	}
	return dsn + "?_foreign_keys=1"
}

func ensureSQLiteDir(dsn string) error {
	if dsn == "" || strings.HasPrefix(dsn, ":memory:") || strings.HasPrefix(dsn, "file:") {
		return nil
	}
	dir := filepath.Dir(dsn)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("db: create sqlite directory: %w", err)
	}
	return nil
}
