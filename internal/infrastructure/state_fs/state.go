package state_fs

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"syscall"

	"github.com/davarch/gitlab-ci-runner/internal/domain"
)

// FSState keeps the last pipeline run per project and ref in one JSON file.
type FSState struct {
	path string
}

func New(path string) *FSState { return &FSState{path: path} }

type entry struct {
	ProjectID int64  `json:"project_id"`
	Ref       string `json:"ref"`
	Pipeline  int64  `json:"pipeline_id"`
	SHA       string `json:"sha,omitempty"`
	Status    string `json:"status"`
	URL       string `json:"url,omitempty"`
	Retrieved int64  `json:"retrieved"`
}

func key(pr domain.ProjectRef) string {
	return strconv.FormatInt(pr.ProjectID, 10) + ":" + pr.Ref
}

func (c *FSState) Write(_ context.Context, s domain.Snapshot) error {
	if c.path == "" {
		return errors.New("state path is empty")
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return err
	}

	lf, err := os.OpenFile(c.path+".lock", os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return err
	}
	defer func() { _ = lf.Close() }()

	if runtime.GOOS != "windows" {
		if err := syscall.Flock(int(lf.Fd()), syscall.LOCK_EX); err != nil {
			return err
		}
		defer func() { _ = syscall.Flock(int(lf.Fd()), syscall.LOCK_UN) }()
	}

	all, err := c.read()
	if err != nil {
		return err
	}

	all[key(s.Project)] = entry{
		ProjectID: s.Project.ProjectID,
		Ref:       s.Project.Ref,
		Pipeline:  s.Pipeline.ID,
		SHA:       s.Pipeline.SHA,
		Status:    string(s.Pipeline.Status),
		URL:       s.Pipeline.WebURL,
		Retrieved: s.Retrieved,
	}

	tmp := c.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(all); err != nil {
		return err
	}

	if err := f.Sync(); err != nil {
		return err
	}

	return os.Rename(tmp, c.path)
}

func (c *FSState) Last(_ context.Context, pr domain.ProjectRef) (domain.Snapshot, bool, error) {
	all, err := c.read()
	if err != nil {
		return domain.Snapshot{}, false, err
	}

	e, ok := all[key(pr)]
	if !ok {
		return domain.Snapshot{}, false, nil
	}

	return domain.Snapshot{
		Project: pr,
		Pipeline: domain.Pipeline{
			ID:     e.Pipeline,
			Ref:    e.Ref,
			SHA:    e.SHA,
			Status: domain.Status(e.Status),
			WebURL: e.URL,
		},
		Retrieved: e.Retrieved,
	}, true, nil
}

func (c *FSState) read() (map[string]entry, error) {
	all := map[string]entry{}
	if c.path == "" {
		return all, nil
	}

	b, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return all, nil
	}
	if err != nil {
		return nil, err
	}

	if len(b) == 0 {
		return all, nil
	}
	if err := json.Unmarshal(b, &all); err != nil {
		return nil, err
	}
	return all, nil
}
