package cli

import (
	"encoding/json"
	"io"

	"github.com/davarch/gitlab-ci-runner/internal/domain"
)

// pipelineView and jobView are the --json output shapes, keyed like the
// GitLab API.
type pipelineView struct {
	ID     int64  `json:"id"`
	Ref    string `json:"ref"`
	SHA    string `json:"sha"`
	Status string `json:"status"`
	WebURL string `json:"web_url"`
}

type jobView struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Stage      string `json:"stage"`
	Status     string `json:"status"`
	WebURL     string `json:"web_url"`
	PipelineID int64  `json:"pipeline_id,omitempty"`
}

func viewPipeline(p domain.Pipeline) pipelineView {
	return pipelineView{ID: p.ID, Ref: p.Ref, SHA: p.SHA, Status: string(p.Status), WebURL: p.WebURL}
}

func viewJobs(jobs []domain.Job) []jobView {
	out := make([]jobView, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, jobView{
			ID:         j.ID,
			Name:       j.Name,
			Stage:      j.Stage,
			Status:     string(j.Status),
			WebURL:     j.WebURL,
			PipelineID: j.Pipeline.ID,
		})
	}
	return out
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
