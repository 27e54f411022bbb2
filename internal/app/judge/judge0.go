package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
)

const (
	judge0StatusProcessingMax = 2 // status.id <= 2 means still queued/running
	judge0StatusAccepted      = 3
)

type judge0Submission struct {
	SourceCode             string `json:"source_code"`
	LanguageID             int    `json:"language_id"`
	Stdin                  string `json:"stdin"`
	RedirectStderrToStdout bool   `json:"redirect_stderr_to_stdout"`
}

type judge0Token struct {
	Token string `json:"token"`
}

type judge0Status struct {
	ID          int    `json:"id"`
	Description string `json:"description"`
}

type judge0Result struct {
	Status        judge0Status `json:"status"`
	Stdout        *string      `json:"stdout"`
	Stderr        *string      `json:"stderr"`
	CompileOutput *string      `json:"compile_output"`
	Time          *string      `json:"time"`   // Seconds, as a decimal string
	Memory        *int         `json:"memory"` // KB
}

// Judge0Client submits code to a Judge0 instance and polls for the result.
// Polling is bounded by maxPolls and by the caller's context, whichever
// ends first.
type Judge0Client struct {
	baseURL      string
	apiKey       string
	pollInterval time.Duration
	maxPolls     int
	httpClient   *http.Client
	logger       *zap.Logger
}

func NewJudge0Client(baseURL, apiKey string, pollInterval time.Duration, maxPolls int, logger *zap.Logger) *Judge0Client {
	return &Judge0Client{
		baseURL:      baseURL,
		apiKey:       apiKey,
		pollInterval: pollInterval,
		maxPolls:     maxPolls,
		httpClient:   &http.Client{Timeout: 15 * time.Second},
		logger:       logger.Named("judge0"),
	}
}

func (c *Judge0Client) Execute(ctx context.Context, code, language, stdin string) ExecutionResult {
	languageID := LanguageID(language)
	if languageID == 0 {
		return failedResult("unsupported language: " + language)
	}

	token, err := c.submit(ctx, code, languageID, stdin)
	if err != nil {
		c.logger.Warn("judge0 submit failed", zap.String("language", language), zap.Error(err))
		return failedResult(err.Error())
	}

	result, err := c.poll(ctx, token)
	if err != nil {
		c.logger.Warn("judge0 poll failed", zap.String("token", token), zap.Error(err))
		return failedResult(err.Error())
	}

	return normalize(result)
}

func (c *Judge0Client) submit(ctx context.Context, code string, languageID int, stdin string) (string, error) {
	body, err := json.Marshal(judge0Submission{
		SourceCode:             code,
		LanguageID:             languageID,
		Stdin:                  stdin,
		RedirectStderrToStdout: false,
	})
	if err != nil {
		return "", fmt.Errorf("marshal judge0 submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/submissions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build judge0 request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("judge0 unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("judge0 submission rejected with status %d", resp.StatusCode)
	}

	var tok judge0Token
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil || tok.Token == "" {
		return "", fmt.Errorf("judge0 returned no token")
	}
	return tok.Token, nil
}

func (c *Judge0Client) poll(ctx context.Context, token string) (*judge0Result, error) {
	for attempt := 0; attempt < c.maxPolls; attempt++ {
		result, err := c.fetch(ctx, token)
		if err == nil && result.Status.ID > judge0StatusProcessingMax {
			return result, nil
		}
		if err != nil {
			c.logger.Debug("judge0 poll attempt failed", zap.Int("attempt", attempt), zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("code execution timed out: %w", ctx.Err())
		case <-time.After(c.pollInterval):
		}
	}
	return nil, fmt.Errorf("code execution timed out after %d polls", c.maxPolls)
}

func (c *Judge0Client) fetch(ctx context.Context, token string) (*judge0Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/submissions/"+token, nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("judge0 result fetch returned status %d", resp.StatusCode)
	}

	var result judge0Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode judge0 result: %w", err)
	}
	return &result, nil
}

func (c *Judge0Client) setHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("X-RapidAPI-Key", c.apiKey)
		req.Header.Set("X-RapidAPI-Host", "judge0-ce.p.rapidapi.com")
	}
}

func normalize(result *judge0Result) ExecutionResult {
	out := ExecutionResult{
		Success: result.Status.ID == judge0StatusAccepted,
		Stdout:  deref(result.Stdout),
	}
	if result.Time != nil {
		if secs, err := strconv.ParseFloat(*result.Time, 64); err == nil {
			out.RuntimeMs = int(secs * 1000)
		}
	}
	if !out.Success {
		switch {
		case deref(result.Stderr) != "":
			out.Error = deref(result.Stderr)
		case deref(result.CompileOutput) != "":
			out.Error = deref(result.CompileOutput)
		case result.Status.Description != "":
			out.Error = result.Status.Description
		default:
			out.Error = "execution failed"
		}
	}
	return out
}

func failedResult(reason string) ExecutionResult {
	return ExecutionResult{Success: false, Stdout: "", Error: reason, RuntimeMs: 0}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
