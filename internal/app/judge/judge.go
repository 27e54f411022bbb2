// Package judge talks to the external code-execution collaborator. The
// client fails closed: any transport error, unsupported language or timeout
// comes back as an unsuccessful ExecutionResult, never as an error, so a
// broken judge degrades to failed test cases instead of failed submissions.
package judge

import "context"

// ExecutionResult is the normalized outcome of running one (code, language,
// stdin) tuple.
type ExecutionResult struct {
	Success   bool   `json:"success"`
	Stdout    string `json:"stdout"`
	Error     string `json:"error,omitempty"`
	RuntimeMs int    `json:"runtime_ms"`
}

type Client interface {
	Execute(ctx context.Context, code, language, stdin string) ExecutionResult
}
