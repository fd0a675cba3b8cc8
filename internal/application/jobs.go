package application

import (
	"strings"

	"github.com/davarch/gitlab-ci-runner/internal/domain"
)

// FindJobByName returns the first job whose name equals name ignoring case.
// GitLab's listing order decides between duplicates.
func FindJobByName(jobs []domain.Job, name string, pipelineID int64) (domain.Job, error) {
	for _, j := range jobs {
		if strings.EqualFold(j.Name, name) {
			return j, nil
		}
	}
	return domain.Job{}, &domain.JobNotFoundError{Name: name, PipelineID: pipelineID}
}
