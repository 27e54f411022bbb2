package grader

import (
	"context"
	"testing"
	"time"

	"codearena/internal/app/judge"
	"codearena/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// scriptedClient replays canned results keyed by stdin.
type scriptedClient struct {
	results map[string]judge.ExecutionResult
}

func (c *scriptedClient) Execute(_ context.Context, _, _, stdin string) judge.ExecutionResult {
	if r, ok := c.results[stdin]; ok {
		return r
	}
	return judge.ExecutionResult{Success: false, Error: "no script for input"}
}

func newTestGrader(client judge.Client) *Grader {
	return New(client, time.Second, 2, zap.NewNop())
}

func tc(id, input, expected string) model.TestCase {
	return model.TestCase{ID: id, Input: input, ExpectedOutput: expected}
}

func TestGradeAllPassing(t *testing.T) {
	client := &scriptedClient{results: map[string]judge.ExecutionResult{
		"1 2": {Success: true, Stdout: "3", RuntimeMs: 12},
		"4 5": {Success: true, Stdout: "9\n", RuntimeMs: 30},
	}}
	report := newTestGrader(client).Grade(context.Background(), "code", "python", []model.TestCase{
		tc("a", "1 2", "3"),
		tc("b", "4 5", "9"),
	})

	assert.Equal(t, 2, report.Passed)
	assert.Equal(t, 2, report.Total)
	assert.True(t, report.AllPassed())
	assert.Equal(t, 100, report.Score())
	assert.Equal(t, model.StatusAccepted, report.Verdict())
	assert.Equal(t, 30, report.MaxRuntimeMs())
}

func TestGradeMismatchIsWrongAnswer(t *testing.T) {
	client := &scriptedClient{results: map[string]judge.ExecutionResult{
		"1 2": {Success: true, Stdout: "4"},
		"4 5": {Success: true, Stdout: "9"},
	}}
	report := newTestGrader(client).Grade(context.Background(), "code", "python", []model.TestCase{
		tc("a", "1 2", "3"),
		tc("b", "4 5", "9"),
	})

	assert.Equal(t, 1, report.Passed)
	assert.Equal(t, 50, report.Score())
	assert.Equal(t, model.StatusWrongAnswer, report.Verdict())
}

func TestGradeTimeoutVerdict(t *testing.T) {
	client := &scriptedClient{results: map[string]judge.ExecutionResult{
		"in": {Success: false, Error: "Time Limit Exceeded"},
	}}
	report := newTestGrader(client).Grade(context.Background(), "code", "go", []model.TestCase{
		tc("a", "in", "out"),
	})

	require.Len(t, report.Cases, 1)
	assert.Equal(t, model.CaseError, report.Cases[0].Status)
	assert.Equal(t, model.StatusTimeLimitExceeded, report.Verdict())
}

func TestGradeExecutionErrorVerdict(t *testing.T) {
	client := &scriptedClient{results: map[string]judge.ExecutionResult{
		"in": {Success: false, Error: "segmentation fault"},
	}}
	report := newTestGrader(client).Grade(context.Background(), "code", "cpp", []model.TestCase{
		tc("a", "in", "out"),
	})
	assert.Equal(t, model.StatusRuntimeError, report.Verdict())
}

// "Runtime Error (NZEC)" contains "time"; it must still grade as a runtime
// error, not a timeout.
func TestGradeVerdictErrorClassification(t *testing.T) {
	cases := []struct {
		errMsg string
		want   model.SubmissionStatus
	}{
		{"Runtime Error (NZEC)", model.StatusRuntimeError},
		{"Runtime Error (SIGSEGV)", model.StatusRuntimeError},
		{"Time Limit Exceeded", model.StatusTimeLimitExceeded},
		{"code execution timed out after 10 polls", model.StatusTimeLimitExceeded},
		{"code execution timed out: context deadline exceeded", model.StatusTimeLimitExceeded},
		{"execution failed", model.StatusRuntimeError},
	}
	for _, c := range cases {
		client := &scriptedClient{results: map[string]judge.ExecutionResult{
			"in": {Success: false, Error: c.errMsg},
		}}
		report := newTestGrader(client).Grade(context.Background(), "code", "python", []model.TestCase{
			tc("a", "in", "out"),
		})
		assert.Equal(t, c.want, report.Verdict(), "error %q", c.errMsg)
	}
}

// A mismatch outranks an execution error when both are present.
func TestGradeMismatchOutranksError(t *testing.T) {
	client := &scriptedClient{results: map[string]judge.ExecutionResult{
		"x": {Success: true, Stdout: "wrong"},
		"y": {Success: false, Error: "crashed"},
	}}
	report := newTestGrader(client).Grade(context.Background(), "code", "python", []model.TestCase{
		tc("a", "x", "right"),
		tc("b", "y", "out"),
	})
	assert.Equal(t, model.StatusWrongAnswer, report.Verdict())
}

func TestGradeEmptyCaseSetIsFullScore(t *testing.T) {
	report := newTestGrader(&scriptedClient{}).Grade(context.Background(), "code", "python", nil)

	assert.Equal(t, 0, report.Total)
	assert.Equal(t, 100, report.Score())
	assert.True(t, report.AllPassed())
	assert.Equal(t, model.StatusAccepted, report.Verdict())
}

func TestGradePreservesCaseOrder(t *testing.T) {
	client := &scriptedClient{results: map[string]judge.ExecutionResult{
		"1": {Success: true, Stdout: "one"},
		"2": {Success: true, Stdout: "two"},
		"3": {Success: true, Stdout: "three"},
	}}
	cases := []model.TestCase{
		tc("a", "1", "one"),
		tc("b", "2", "two"),
		tc("c", "3", "three"),
	}
	report := newTestGrader(client).Grade(context.Background(), "code", "python", cases)

	require.Len(t, report.Cases, 3)
	for i, c := range report.Cases {
		assert.Equal(t, cases[i].ID, c.TestCase.ID)
	}
}

func TestNormalizeOutput(t *testing.T) {
	assert.Equal(t, "a\nb", NormalizeOutput("a\r\nb\r\n"))
	assert.Equal(t, "x", NormalizeOutput("x  \t\n"))
	assert.Equal(t, NormalizeOutput("3\n"), NormalizeOutput("3"))
	assert.Equal(t, "", NormalizeOutput("\n\n"))
	// Leading whitespace is significant.
	assert.NotEqual(t, NormalizeOutput(" x"), NormalizeOutput("x"))
}
