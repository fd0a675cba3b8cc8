package gitlab_http

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/davarch/gitlab-ci-runner/internal/domain"
)

// MinTime is what a null or missing timestamp decodes to.
var MinTime = time.Time{}

// NullableTime is a timestamp where JSON null and MinTime are the same value:
// null decodes to MinTime and MinTime encodes as null.
type NullableTime struct {
	time.Time
}

func (t *NullableTime) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		t.Time = MinTime
		return nil
	}
	return t.Time.UnmarshalJSON(b)
}

func (t NullableTime) MarshalJSON() ([]byte, error) {
	if t.Time.Equal(MinTime) {
		return []byte("null"), nil
	}
	return t.Time.MarshalJSON()
}

type userDTO struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// triggerPipelineDTO is the body of both the trigger call and GET pipeline.
type triggerPipelineDTO struct {
	ID          int64        `json:"id"`
	SHA         string       `json:"sha"`
	Ref         string       `json:"ref"`
	Status      string       `json:"status"`
	BeforeSHA   string       `json:"before_sha"`
	Tag         bool         `json:"tag"`
	YamlErrors  *string      `json:"yaml_errors"`
	User        *userDTO     `json:"user"`
	CreatedAt   NullableTime `json:"created_at"`
	UpdatedAt   NullableTime `json:"updated_at"`
	StartedAt   NullableTime `json:"started_at"`
	FinishedAt  NullableTime `json:"finished_at"`
	CommittedAt NullableTime `json:"committed_at"`
	Duration    *float64     `json:"duration"`
	Coverage    *string      `json:"coverage"`
	WebURL      string       `json:"web_url"`
}

type pipelineDTO struct {
	ID     int64  `json:"id"`
	SHA    string `json:"sha"`
	Ref    string `json:"ref"`
	Status string `json:"status"`
	WebURL string `json:"web_url"`
}

type commitDTO struct {
	ID             string    `json:"id"`
	ShortID        string    `json:"short_id"`
	Title          string    `json:"title"`
	CreatedAt      time.Time `json:"created_at"`
	ParentIDs      []string  `json:"parent_ids"`
	Message        string    `json:"message"`
	AuthorName     string    `json:"author_name"`
	AuthorEmail    string    `json:"author_email"`
	AuthoredDate   time.Time `json:"authored_date"`
	CommitterName  string    `json:"committer_name"`
	CommitterEmail string    `json:"committer_email"`
	CommittedDate  time.Time `json:"committed_date"`
}

type jobDTO struct {
	ID       int64       `json:"id"`
	Status   string      `json:"status"`
	Stage    string      `json:"stage"`
	Name     string      `json:"name"`
	WebURL   string      `json:"web_url"`
	User     *userDTO    `json:"user"`
	Commit   *commitDTO  `json:"commit"`
	Pipeline pipelineDTO `json:"pipeline"`
}

func decodePipeline(b []byte) (domain.Pipeline, error) {
	var d triggerPipelineDTO
	if err := json.Unmarshal(b, &d); err != nil {
		return domain.Pipeline{}, err
	}
	return domain.Pipeline{
		ID:     d.ID,
		Ref:    d.Ref,
		SHA:    d.SHA,
		Status: domain.Status(d.Status),
		WebURL: d.WebURL,
	}, nil
}

func decodeJob(b []byte) (domain.Job, error) {
	var d jobDTO
	if err := json.Unmarshal(b, &d); err != nil {
		return domain.Job{}, err
	}
	return d.toDomain(), nil
}

func decodeJobs(b []byte) ([]domain.Job, error) {
	var list []jobDTO
	if err := json.Unmarshal(b, &list); err != nil {
		return nil, err
	}
	out := make([]domain.Job, 0, len(list))
	for _, d := range list {
		out = append(out, d.toDomain())
	}
	return out, nil
}

func (d jobDTO) toDomain() domain.Job {
	j := domain.Job{
		ID:     d.ID,
		Name:   d.Name,
		Stage:  d.Stage,
		Status: domain.Status(d.Status),
		WebURL: d.WebURL,
		Pipeline: domain.Pipeline{
			ID:     d.Pipeline.ID,
			Ref:    d.Pipeline.Ref,
			SHA:    d.Pipeline.SHA,
			Status: domain.Status(d.Pipeline.Status),
			WebURL: d.Pipeline.WebURL,
		},
	}
	if d.User != nil {
		j.User = d.User.toDomain()
	}
	if c := d.Commit; c != nil {
		j.Commit = domain.Commit{
			ID:             c.ID,
			ShortID:        c.ShortID,
			Title:          c.Title,
			Message:        c.Message,
			ParentIDs:      c.ParentIDs,
			AuthorName:     c.AuthorName,
			AuthorEmail:    c.AuthorEmail,
			AuthoredDate:   c.AuthoredDate,
			CommitterName:  c.CommitterName,
			CommitterEmail: c.CommitterEmail,
			CommittedDate:  c.CommittedDate,
			CreatedAt:      c.CreatedAt,
		}
	}
	return j
}

func (u userDTO) toDomain() domain.User {
	return domain.User{ID: u.ID, Name: u.Name, Username: u.Username, Email: u.Email}
}
