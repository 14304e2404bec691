package sessions

import (
	"context"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/joescharf/focus/internal/models"
)

// ExportRecord is the portable form of a session.
type ExportRecord struct {
	ID       string     `yaml:"id"`
	Start    time.Time  `yaml:"start"`
	EndedAt  *time.Time `yaml:"ended_at,omitempty"`
	Duration int        `yaml:"duration_seconds"`
	Mode     string     `yaml:"mode"`
	Category string     `yaml:"category,omitempty"`
}

// Export writes the user's sessions in the window as a YAML document,
// naming categories instead of referencing their ids.
func (m *Manager) Export(ctx context.Context, w io.Writer, filter models.SessionFilter) (int, error) {
	list, err := m.ListSessions(ctx, filter)
	if err != nil {
		return 0, err
	}
	cats, err := m.store.ListCategories(ctx, filter.UserID)
	if err != nil {
		return 0, err
	}
	names := make(map[string]string, len(cats))
	for _, c := range cats {
		names[c.ID] = c.Name
	}

	records := make([]ExportRecord, 0, len(list))
	for _, s := range list {
		r := ExportRecord{
			ID:       s.ID,
			Start:    s.Start,
			EndedAt:  s.EndedAt,
			Duration: s.Duration,
			Mode:     string(s.Mode),
		}
		if s.CategoryID != nil {
			r.Category = names[*s.CategoryID]
		}
		records = append(records, r)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(map[string]any{"user": filter.UserID, "sessions": records}); err != nil {
		return 0, fmt.Errorf("encode export: %w", err)
	}
	if err := enc.Close(); err != nil {
		return 0, fmt.Errorf("encode export: %w", err)
	}
	return len(records), nil
}
