package therapist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/robfig/cron/v3"
)

// Directory refreshes and serves the therapist list stored as a JSON file.
type Directory struct {
	path    string
	sources []Source
	logger  *slog.Logger
}

func NewDirectory(path string, logger *slog.Logger, sources ...Source) *Directory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Directory{
		path:    path,
		sources: sources,
		logger:  logger.With("component", "therapist"),
	}
}

// Refresh queries every source and rewrites the file with the merged result.
// The file is left untouched when all sources fail.
func (d *Directory) Refresh(ctx context.Context) ([]Therapist, error) {
	if len(d.sources) == 0 {
		return nil, errors.New("no therapist sources configured")
	}

	var (
		merged []Therapist
		errs   []error
	)
	for _, src := range d.sources {
		items, err := src.Fetch(ctx)
		if err != nil {
			d.logger.Warn("therapist source failed", "source", src.Name(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
			continue
		}
		merged = append(merged, items...)
	}
	if len(errs) == len(d.sources) {
		return nil, errors.Join(errs...)
	}
	if merged == nil {
		merged = []Therapist{}
	}

	if err := d.write(merged); err != nil {
		return nil, err
	}
	d.logger.Info("therapist directory updated", "count", len(merged), "path", d.path)
	return merged, nil
}

// Load reads the stored directory. A missing or corrupt file yields an empty list.
func (d *Directory) Load() []Therapist {
	raw, err := os.ReadFile(d.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			d.logger.Error("read therapist directory failed", "error", err)
		}
		return []Therapist{}
	}

	var list []Therapist
	if err := json.Unmarshal(raw, &list); err != nil {
		d.logger.Error("decode therapist directory failed", "error", err)
		return []Therapist{}
	}
	if list == nil {
		list = []Therapist{}
	}
	return list
}

// Exists reports whether the directory file is present.
func (d *Directory) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// Schedule registers the periodic refresh on c. spec accepts standard cron
// expressions and descriptors such as "@every 360h".
func (d *Directory) Schedule(ctx context.Context, c *cron.Cron, spec string) (cron.EntryID, error) {
	id, err := c.AddFunc(spec, func() {
		if _, err := d.Refresh(ctx); err != nil {
			d.logger.Error("scheduled therapist refresh failed", "error", err)
		}
	})
	if err != nil {
		return 0, fmt.Errorf("schedule therapist refresh %q: %w", spec, err)
	}
	return id, nil
}

func (d *Directory) write(list []Therapist) error {
	if err := os.MkdirAll(filepath.Dir(d.path), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	raw, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("encode therapists: %w", err)
	}

	tmp := d.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write therapists: %w", err)
	}
	if err := os.Rename(tmp, d.path); err != nil {
		return fmt.Errorf("replace therapists: %w", err)
	}
	return nil
}
