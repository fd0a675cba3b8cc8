package domain

import "time"

// Status is the lifecycle state GitLab reports for pipelines and jobs.
type Status string

const (
	StatusCreated            Status = "created"
	StatusWaitingForResource Status = "waiting_for_resource"
	StatusPreparing          Status = "preparing"
	StatusPending            Status = "pending"
	StatusRunning            Status = "running"
	StatusSuccess            Status = "success"
	StatusFailed             Status = "failed"
	StatusCanceled           Status = "canceled"
	StatusSkipped            Status = "skipped"
	StatusManual             Status = "manual"
	StatusScheduled          Status = "scheduled"
)

// PollState is the outcome of interpreting one observed Status.
type PollState int

const (
	InProgress PollState = iota
	Succeeded
	Failed
	Canceled
	Skipped
)

func (s PollState) String() string {
	switch s {
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case Canceled:
		return "canceled"
	case Skipped:
		return "skipped"
	default:
		return "in_progress"
	}
}

// Terminal reports whether polling stops at this state.
func (s PollState) Terminal() bool { return s != InProgress }

// OK reports whether the state counts as a successful run. Skipped does.
func (s PollState) OK() bool { return s == Succeeded || s == Skipped }

// Transition maps a reported status onto the poll state machine. Anything
// not explicitly terminal, including values GitLab may add later, keeps the
// resource in progress.
func Transition(s Status) PollState {
	switch s {
	case StatusSuccess:
		return Succeeded
	case StatusFailed:
		return Failed
	case StatusCanceled:
		return Canceled
	case StatusSkipped:
		return Skipped
	default:
		return InProgress
	}
}

type Pipeline struct {
	ID     int64
	Ref    string
	SHA    string
	Status Status
	WebURL string
}

type Commit struct {
	ID             string
	ShortID        string
	Title          string
	Message        string
	ParentIDs      []string
	AuthorName     string
	AuthorEmail    string
	AuthoredDate   time.Time
	CommitterName  string
	CommitterEmail string
	CommittedDate  time.Time
	CreatedAt      time.Time
}

type User struct {
	ID       int64
	Name     string
	Username string
	Email    string
}

type Job struct {
	ID       int64
	Name     string
	Stage    string
	Status   Status
	WebURL   string
	Commit   Commit
	User     User
	Pipeline Pipeline
}

// Outcome is the final observation of a finished wait.
type Outcome struct {
	Status Status
	State  PollState
}

func (o Outcome) OK() bool { return o.State.OK() }

type ProjectRef struct {
	ProjectID int64
	Ref       string
}

// Snapshot is what the state store keeps about the last pipeline run of a ref.
type Snapshot struct {
	Project   ProjectRef
	Pipeline  Pipeline
	Retrieved int64
}
