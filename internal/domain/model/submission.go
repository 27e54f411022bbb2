package model

import "time"

type SubmissionStatus string

const (
	StatusPending           SubmissionStatus = "pending"
	StatusAccepted          SubmissionStatus = "accepted"
	StatusWrongAnswer       SubmissionStatus = "wrong_answer"
	StatusTimeLimitExceeded SubmissionStatus = "time_limit_exceeded"
	StatusRuntimeError      SubmissionStatus = "runtime_error"
)

// Terminal reports whether the status is a final grading verdict.
// A submission transitions pending -> terminal exactly once and is never
// re-graded.
func (s SubmissionStatus) Terminal() bool {
	return s != StatusPending
}

type Submission struct {
	ID          string           `json:"id"`
	UserID      string           `json:"user_id"`
	ProblemID   string           `json:"problem_id"`
	ContestID   *string          `json:"contest_id,omitempty"`
	Code        string           `json:"code"`
	Language    string           `json:"language"`
	Status      SubmissionStatus `json:"status"`
	Score       int              `json:"score"` // 0-100
	RuntimeMs   int              `json:"runtime_ms"`
	SubmittedAt time.Time        `json:"submitted_at"`

	UserUsername *string `json:"user_username,omitempty"` // For display
	ProblemTitle *string `json:"problem_title,omitempty"` // For display
}

type TestCaseStatus string

const (
	CasePassed TestCaseStatus = "passed"
	CaseFailed TestCaseStatus = "failed"
	CaseError  TestCaseStatus = "error"
)

// TestCaseResult is one graded case of one submission, append-only.
type TestCaseResult struct {
	ID           string         `json:"id"`
	SubmissionID string         `json:"submission_id"`
	TestCaseID   string         `json:"test_case_id"`
	Status       TestCaseStatus `json:"status"`
	Output       string         `json:"output"`
	Error        string         `json:"error,omitempty"`
	RuntimeMs    int            `json:"runtime_ms"`
	CreatedAt    time.Time      `json:"created_at"`
}
