// Package grader scores a piece of code against a set of test cases by
// driving the execution client once per case. It produces per-case verdicts
// and an aggregate report; persisting anything is the caller's business.
package grader

import (
	"context"
	"math"
	"strings"
	"time"

	"codearena/internal/app/judge"
	"codearena/internal/domain/model"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type CaseResult struct {
	TestCase  model.TestCase
	Status    model.TestCaseStatus
	Output    string
	Error     string
	RuntimeMs int
}

func (c CaseResult) Passed() bool { return c.Status == model.CasePassed }

type Report struct {
	Cases  []CaseResult
	Passed int
	Total  int
}

func (r Report) AllPassed() bool { return r.Passed == r.Total }

// Score is the pass ratio in whole percent. An empty case set scores 100;
// see Verdict.
func (r Report) Score() int {
	if r.Total == 0 {
		return 100
	}
	return int(math.Round(float64(r.Passed) / float64(r.Total) * 100))
}

// Verdict maps the aggregate outcome onto a terminal submission status.
// A problem with no test cases grades as accepted.
func (r Report) Verdict() model.SubmissionStatus {
	if r.AllPassed() {
		return model.StatusAccepted
	}

	sawMismatch, sawTimeout := false, false
	for _, c := range r.Cases {
		switch c.Status {
		case model.CaseFailed:
			sawMismatch = true
		case model.CaseError:
			if isTimeoutError(c.Error) {
				sawTimeout = true
			}
		}
	}
	if sawMismatch {
		return model.StatusWrongAnswer
	}
	if sawTimeout {
		return model.StatusTimeLimitExceeded
	}
	return model.StatusRuntimeError
}

// isTimeoutError recognizes the timeout shapes the execution client can
// surface: Judge0's "Time Limit Exceeded" status description, the client's
// own polling-exhausted error, and a context deadline hit mid-execution.
// A bare "time" substring is not enough; "Runtime Error (NZEC)" contains it.
func isTimeoutError(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "time limit") ||
		strings.Contains(lower, "timed out") ||
		strings.Contains(lower, "deadline exceeded")
}

// MaxRuntimeMs is the slowest case, used as the submission's headline runtime.
func (r Report) MaxRuntimeMs() int {
	max := 0
	for _, c := range r.Cases {
		if c.RuntimeMs > max {
			max = c.RuntimeMs
		}
	}
	return max
}

type Grader struct {
	client      judge.Client
	caseTimeout time.Duration
	concurrency int
	logger      *zap.Logger
}

func New(client judge.Client, caseTimeout time.Duration, concurrency int, logger *zap.Logger) *Grader {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Grader{
		client:      client,
		caseTimeout: caseTimeout,
		concurrency: concurrency,
		logger:      logger.Named("grader"),
	}
}

// Grade runs every test case and reports per-case verdicts in input order.
// Cases fan out to the execution client with bounded parallelism; a case
// whose execution never returns within the per-case budget is scored failed
// and grading proceeds with the rest.
func (g *Grader) Grade(ctx context.Context, code, language string, cases []model.TestCase) Report {
	report := Report{
		Cases: make([]CaseResult, len(cases)),
		Total: len(cases),
	}
	if len(cases) == 0 {
		g.logger.Info("grading with empty test case set, treating as fully passed")
		return report
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.concurrency)
	for i, tc := range cases {
		eg.Go(func() error {
			caseCtx, cancel := context.WithTimeout(egCtx, g.caseTimeout)
			defer cancel()
			report.Cases[i] = g.gradeCase(caseCtx, code, language, tc)
			return nil
		})
	}
	eg.Wait() // Workers never return errors; failures are per-case verdicts.

	for _, c := range report.Cases {
		if c.Passed() {
			report.Passed++
		}
	}
	return report
}

func (g *Grader) gradeCase(ctx context.Context, code, language string, tc model.TestCase) CaseResult {
	result := g.client.Execute(ctx, code, language, tc.Input)

	out := CaseResult{
		TestCase:  tc,
		Output:    result.Stdout,
		Error:     result.Error,
		RuntimeMs: result.RuntimeMs,
	}
	switch {
	case !result.Success:
		out.Status = model.CaseError
	case NormalizeOutput(result.Stdout) == NormalizeOutput(tc.ExpectedOutput):
		out.Status = model.CasePassed
	default:
		out.Status = model.CaseFailed
	}
	return out
}

// NormalizeOutput strips trailing whitespace and normalizes line endings so
// cosmetic differences do not fail a case. Comparison is byte-equality of
// the normalized forms.
func NormalizeOutput(s string) string {
	return strings.TrimRight(strings.ReplaceAll(s, "\r\n", "\n"), " \t\n")
}
