package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/zhouzirui/mindcare/backend/internal/model/chat"
	"github.com/zhouzirui/mindcare/backend/internal/store"
)

type fakeSource struct {
	chats  []chat.ChatRecord // newest first
	moods  []chat.MoodRecord // oldest first
	scores []store.ScoredAt
	limit  int
}

func (f *fakeSource) ChatRecords(_ context.Context, _ string, limit int) ([]chat.ChatRecord, error) {
	f.limit = limit
	if limit > 0 && limit < len(f.chats) {
		return f.chats[:limit], nil
	}
	return f.chats, nil
}

func (f *fakeSource) MoodRecords(context.Context, string) ([]chat.MoodRecord, error) {
	return f.moods, nil
}

func (f *fakeSource) MoodScores(context.Context, string) ([]store.ScoredAt, error) {
	return f.scores, nil
}

var day = time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC) // Monday, ISO week 10

func sampleSource() *fakeSource {
	return &fakeSource{
		chats: []chat.ChatRecord{
			{UserInput: "second, with comma", BotResponse: "reply two", Mood: "joy", CreatedAt: day.Add(time.Hour)},
			{UserInput: "first", BotResponse: "reply one", Mood: "sadness", CreatedAt: day},
		},
		moods: []chat.MoodRecord{
			{Mood: "sadness", CreatedAt: day},
			{Mood: "joy", CreatedAt: day.Add(time.Hour)},
		},
	}
}

func TestWeeklyAverages(t *testing.T) {
	scores := []store.ScoredAt{
		{At: day, Score: 0.5},
		{At: day.AddDate(0, 0, 2), Score: 0.6},
		{At: day.AddDate(0, 0, 2), Score: 0.7},
		{At: day.AddDate(0, 0, -7), Score: 0.25},
	}
	got := WeeklyAverages(scores)
	if len(got) != 2 {
		t.Fatalf("WeeklyAverages() len = %d, want 2", len(got))
	}
	if got[0].Week != "2024-W09" || got[0].Average != 0.25 || got[0].Count != 1 {
		t.Errorf("first week = %+v", got[0])
	}
	if got[1].Week != "2024-W10" || got[1].Average != 0.6 || got[1].Count != 3 {
		t.Errorf("second week = %+v", got[1])
	}
	if len(WeeklyAverages(nil)) != 0 {
		t.Error("no scores should give no weeks")
	}
}

func TestDashboardUsesRecentLimit(t *testing.T) {
	src := sampleSource()
	src.scores = []store.ScoredAt{{At: day, Score: 0.9}}
	svc := NewService(src)

	d, err := svc.Dashboard(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Dashboard() error: %v", err)
	}
	if src.limit != RecentLimit {
		t.Errorf("limit = %d, want %d", src.limit, RecentLimit)
	}
	if len(d.Recent) != 2 || len(d.WeeklyMood) != 1 {
		t.Errorf("unexpected dashboard %+v", d)
	}
}

func TestMoodTrends(t *testing.T) {
	svc := NewService(sampleSource())
	points, err := svc.MoodTrends(context.Background(), "u1")
	if err != nil {
		t.Fatalf("MoodTrends() error: %v", err)
	}
	want := []TrendPoint{{Date: "2024-03-04", Mood: "sadness"}, {Date: "2024-03-04", Mood: "joy"}}
	if len(points) != len(want) || points[0] != want[0] || points[1] != want[1] {
		t.Fatalf("MoodTrends() = %+v, want %+v", points, want)
	}
}

func TestExportChatCSVOldestFirst(t *testing.T) {
	svc := NewService(sampleSource())
	var buf bytes.Buffer
	if err := svc.Export(context.Background(), "u1", KindChat, FormatCSV, &buf); err != nil {
		t.Fatalf("Export() error: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header + 2", len(rows))
	}
	if strings.Join(rows[0], "|") != "Timestamp|User Message|Bot Response" {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][0] != "2024-03-04 09:30" || rows[1][1] != "first" {
		t.Errorf("first row = %v", rows[1])
	}
	if rows[2][1] != "second, with comma" {
		t.Errorf("second row = %v", rows[2])
	}
}

func TestExportMoodJSON(t *testing.T) {
	svc := NewService(sampleSource())
	var buf bytes.Buffer
	if err := svc.Export(context.Background(), "u1", KindMood, FormatJSON, &buf); err != nil {
		t.Fatalf("Export() error: %v", err)
	}
	var rows []map[string]string
	if err := json.Unmarshal(buf.Bytes(), &rows); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if len(rows) != 2 || rows[0]["mood"] != "sadness" || rows[0]["timestamp"] != "2024-03-04 09:30" {
		t.Fatalf("unexpected rows %v", rows)
	}
}

func TestExportPDF(t *testing.T) {
	for _, k := range []Kind{KindChat, KindMood} {
		t.Run(string(k), func(t *testing.T) {
			svc := NewService(sampleSource())
			var buf bytes.Buffer
			if err := svc.Export(context.Background(), "u1", k, FormatPDF, &buf); err != nil {
				t.Fatalf("Export() error: %v", err)
			}
			if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
				t.Fatalf("output is not a PDF: %q", buf.Bytes()[:min(8, buf.Len())])
			}
		})
	}

	var buf bytes.Buffer
	if err := NewService(&fakeSource{}).Export(context.Background(), "u1", KindChat, FormatPDF, &buf); err != nil {
		t.Fatalf("empty export error: %v", err)
	}
}

func TestParseAndFilename(t *testing.T) {
	if _, err := ParseKind("audio"); err == nil {
		t.Error("ParseKind(audio) should fail")
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("ParseFormat(xml) should fail")
	}
	if got := Filename(KindMood, FormatCSV); got != "mood_logs.csv" {
		t.Errorf("Filename() = %q, want %q", got, "mood_logs.csv")
	}
	if got := FormatPDF.ContentType(); got != "application/pdf" {
		t.Errorf("ContentType() = %q", got)
	}
}
