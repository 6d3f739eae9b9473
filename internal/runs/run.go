package runs

import (
	"time"

	"github.com/KaramelBytes/insighto-cli/internal/pipeline"
)

// Run is a saved pipeline result.
type Run struct {
	ID        string          `json:"id"`
	Source    string          `json:"source"`
	CreatedAt time.Time       `json:"created_at"`
	State     *pipeline.State `json:"state"`
}

// Summary is the listing view of a run.
type Summary struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Dataset   string    `json:"dataset"`
	Template  string    `json:"template"`
	Title     string    `json:"title"`
	Rows      int       `json:"rows"`
	Insights  int       `json:"insights"`
	CreatedAt time.Time `json:"created_at"`
}

// Summary condenses r for listings.
func (r *Run) Summary() Summary {
	s := Summary{ID: r.ID, Source: r.Source, CreatedAt: r.CreatedAt}
	if r.State != nil {
		s.Dataset = r.State.DatasetName
		s.Template = r.State.TemplateName
		s.Title = r.State.Title
		s.Rows = r.State.Rows
		s.Insights = len(r.State.Insights.Insights)
	}
	return s
}
