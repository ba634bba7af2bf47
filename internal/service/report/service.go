package report

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zhouzirui/mindcare/backend/internal/model/chat"
	"github.com/zhouzirui/mindcare/backend/internal/store"
)

const (
	RecentLimit     = 50
	TimestampLayout = "2006-01-02 15:04"
	dateLayout      = "2006-01-02"
)

// Source is the read side of store.Store used for reports.
type Source interface {
	ChatRecords(ctx context.Context, userID string, limit int) ([]chat.ChatRecord, error)
	MoodRecords(ctx context.Context, userID string) ([]chat.MoodRecord, error)
	MoodScores(ctx context.Context, userID string) ([]store.ScoredAt, error)
}

// WeeklyScore is the mean mood score of one ISO week.
type WeeklyScore struct {
	Week    string  `json:"week"`
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

type Dashboard struct {
	Recent     []chat.ChatRecord `json:"recent"`
	WeeklyMood []WeeklyScore     `json:"weeklyMood"`
}

// TrendPoint is one mood record on the trends chart.
type TrendPoint struct {
	Date string `json:"date"`
	Mood string `json:"mood"`
}

type Service struct {
	source Source
}

func NewService(source Source) *Service {
	return &Service{source: source}
}

// Dashboard returns the most recent chat records with weekly mood averages.
func (s *Service) Dashboard(ctx context.Context, userID string) (Dashboard, error) {
	recent, err := s.source.ChatRecords(ctx, userID, RecentLimit)
	if err != nil {
		return Dashboard{}, fmt.Errorf("load recent records: %w", err)
	}
	scores, err := s.source.MoodScores(ctx, userID)
	if err != nil {
		return Dashboard{}, fmt.Errorf("load mood scores: %w", err)
	}
	if recent == nil {
		recent = []chat.ChatRecord{}
	}
	return Dashboard{Recent: recent, WeeklyMood: WeeklyAverages(scores)}, nil
}

func (s *Service) MoodTrends(ctx context.Context, userID string) ([]TrendPoint, error) {
	moods, err := s.source.MoodRecords(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load mood records: %w", err)
	}
	points := make([]TrendPoint, len(moods))
	for i, m := range moods {
		points[i] = TrendPoint{Date: m.CreatedAt.Format(dateLayout), Mood: m.Mood}
	}
	return points, nil
}

// History lists every chat record of the user, newest first.
func (s *Service) History(ctx context.Context, userID string) ([]chat.ChatRecord, error) {
	records, err := s.source.ChatRecords(ctx, userID, 0)
	if err != nil {
		return nil, fmt.Errorf("load chat history: %w", err)
	}
	if records == nil {
		records = []chat.ChatRecord{}
	}
	return records, nil
}

// WeeklyAverages groups scores by ISO year-week, oldest week first.
// Averages are rounded to two decimals.
func WeeklyAverages(scores []store.ScoredAt) []WeeklyScore {
	type bucket struct {
		sum   decimal.Decimal
		count int64
	}
	buckets := make(map[string]*bucket)
	for _, sc := range scores {
		key := weekKey(sc.At)
		b, ok := buckets[key]
		if !ok {
			b = &bucket{}
			buckets[key] = b
		}
		b.sum = b.sum.Add(decimal.NewFromFloat(sc.Score))
		b.count++
	}

	out := make([]WeeklyScore, 0, len(buckets))
	for week, b := range buckets {
		avg := b.sum.Div(decimal.NewFromInt(b.count)).Round(2)
		out = append(out, WeeklyScore{Week: week, Average: avg.InexactFloat64(), Count: int(b.count)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Week < out[j].Week })
	return out
}

func weekKey(t time.Time) string {
	year, week := t.UTC().ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}
