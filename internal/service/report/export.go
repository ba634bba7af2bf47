package report

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/go-pdf/fpdf"

	"github.com/zhouzirui/mindcare/backend/internal/model/chat"
)

// Kind selects the log exported.
type Kind string

const (
	KindChat Kind = "chat"
	KindMood Kind = "mood"
)

// Format selects the export encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatPDF  Format = "pdf"
)

func ParseKind(raw string) (Kind, error) {
	switch k := Kind(raw); k {
	case KindChat, KindMood:
		return k, nil
	}
	return "", fmt.Errorf("unsupported export kind %q", raw)
}

func ParseFormat(raw string) (Format, error) {
	switch f := Format(raw); f {
	case FormatJSON, FormatCSV, FormatPDF:
		return f, nil
	}
	return "", fmt.Errorf("unsupported export format %q", raw)
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatPDF:
		return "application/pdf"
	default:
		return "application/json"
	}
}

// Filename is the attachment name, e.g. chat_logs.csv.
func Filename(k Kind, f Format) string {
	return fmt.Sprintf("%s_logs.%s", k, f)
}

type chatRow struct {
	Timestamp   string `json:"timestamp"`
	UserMessage string `json:"user_message"`
	BotResponse string `json:"bot_response"`
}

type moodRow struct {
	Timestamp string `json:"timestamp"`
	Mood      string `json:"mood"`
}

// Export writes the user's chat or mood log, oldest first, to w.
func (s *Service) Export(ctx context.Context, userID string, k Kind, f Format, w io.Writer) error {
	switch k {
	case KindChat:
		records, err := s.source.ChatRecords(ctx, userID, 0)
		if err != nil {
			return fmt.Errorf("load chat records: %w", err)
		}
		records = slices.Clone(records)
		slices.Reverse(records)
		return writeChat(w, f, records)
	case KindMood:
		records, err := s.source.MoodRecords(ctx, userID)
		if err != nil {
			return fmt.Errorf("load mood records: %w", err)
		}
		return writeMood(w, f, records)
	default:
		return fmt.Errorf("unsupported export kind %q", k)
	}
}

// ExportAll writes every chat record with all fields as JSON.
func (s *Service) ExportAll(ctx context.Context, userID string, w io.Writer) error {
	records, err := s.source.ChatRecords(ctx, userID, 0)
	if err != nil {
		return fmt.Errorf("load chat records: %w", err)
	}
	if records == nil {
		records = []chat.ChatRecord{}
	}
	return json.NewEncoder(w).Encode(records)
}

func writeChat(w io.Writer, f Format, records []chat.ChatRecord) error {
	switch f {
	case FormatJSON:
		rows := make([]chatRow, len(records))
		for i, r := range records {
			rows[i] = chatRow{Timestamp: r.CreatedAt.Format(TimestampLayout), UserMessage: r.UserInput, BotResponse: r.BotResponse}
		}
		return json.NewEncoder(w).Encode(rows)
	case FormatCSV:
		cw := csv.NewWriter(w)
		_ = cw.Write([]string{"Timestamp", "User Message", "Bot Response"})
		for _, r := range records {
			_ = cw.Write([]string{r.CreatedAt.Format(TimestampLayout), r.UserInput, r.BotResponse})
		}
		cw.Flush()
		return cw.Error()
	case FormatPDF:
		doc := newDocument("Chat Logs")
		for _, r := range records {
			doc.entry(fmt.Sprintf("[%s]\nYou: %s\nBot: %s\nMood: %s",
				r.CreatedAt.Format(TimestampLayout), r.UserInput, r.BotResponse, r.Mood))
		}
		return doc.output(w, len(records) == 0)
	default:
		return fmt.Errorf("unsupported export format %q", f)
	}
}

func writeMood(w io.Writer, f Format, records []chat.MoodRecord) error {
	switch f {
	case FormatJSON:
		rows := make([]moodRow, len(records))
		for i, r := range records {
			rows[i] = moodRow{Timestamp: r.CreatedAt.Format(TimestampLayout), Mood: r.Mood}
		}
		return json.NewEncoder(w).Encode(rows)
	case FormatCSV:
		cw := csv.NewWriter(w)
		_ = cw.Write([]string{"Timestamp", "Mood"})
		for _, r := range records {
			_ = cw.Write([]string{r.CreatedAt.Format(TimestampLayout), r.Mood})
		}
		cw.Flush()
		return cw.Error()
	case FormatPDF:
		doc := newDocument("Mood Logs")
		for _, r := range records {
			doc.entry(fmt.Sprintf("[%s] Mood: %s", r.CreatedAt.Format(TimestampLayout), r.Mood))
		}
		return doc.output(w, len(records) == 0)
	default:
		return fmt.Errorf("unsupported export format %q", f)
	}
}

const separator = "--------------------------------------------"

type document struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

func newDocument(title string) *document {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()
	pdf.SetTitle(title, true)

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 10, title, "", 1, "C", false, 0, "")
	pdf.Ln(5)
	pdf.SetFont("Arial", "", 11)

	return &document{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
}

func (d *document) entry(text string) {
	d.pdf.MultiCell(0, 8, d.tr(text+"\n"+separator), "", "L", false)
	d.pdf.Ln(2)
}

func (d *document) output(w io.Writer, empty bool) error {
	if empty {
		d.pdf.CellFormat(0, 10, "No data available.", "", 1, "L", false, 0, "")
	}
	if err := d.pdf.Output(w); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return nil
}
