package judge

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

var numberPattern = regexp.MustCompile(`\d+`)

// StandInClient is the documented fallback when no Judge0 instance is
// configured: a deterministic scorer that never leaves the process. It keeps
// development and CI environments grading instead of hard-failing every
// submission. It is not a sandbox and must never be selected in production.
type StandInClient struct {
	logger *zap.Logger
}

func NewStandInClient(logger *zap.Logger) *StandInClient {
	return &StandInClient{logger: logger.Named("standin-judge")}
}

func (c *StandInClient) Execute(_ context.Context, code, language, stdin string) ExecutionResult {
	if !Supported(language) {
		return failedResult("unsupported language: " + language)
	}
	if !looksLikeProgram(code, language) {
		return failedResult("code structure issue")
	}

	output := simulatedOutput(code, language, stdin)
	return ExecutionResult{
		Success:   true,
		Stdout:    output,
		RuntimeMs: 10 + len(code)%50,
	}
}

func looksLikeProgram(code, language string) bool {
	if len(strings.TrimSpace(code)) < 10 {
		return false
	}
	switch strings.ToLower(language) {
	case "javascript":
		return strings.Contains(code, "function") || strings.Contains(code, "=>") || strings.Contains(code, "console.log")
	case "python":
		return strings.Contains(code, "def ") || strings.Contains(code, "print(")
	case "java":
		return strings.Contains(code, "public class") || strings.Contains(code, "System.out.print")
	case "cpp", "c":
		return strings.Contains(code, "int main") || strings.Contains(code, "cout") || strings.Contains(code, "printf")
	default:
		return len(code) > 20
	}
}

// simulatedOutput mirrors the behavior the platform shipped with before a
// real judge was wired up: numeric inputs are summed (or doubled when there
// is a single number), everything else yields a fixed string.
func simulatedOutput(code, language, stdin string) string {
	if numberPattern.MatchString(stdin) {
		numbers := numberPattern.FindAllString(stdin, -1)
		if len(numbers) >= 2 {
			sum := 0
			for _, n := range numbers {
				v, _ := strconv.Atoi(n)
				sum += v
			}
			return strconv.Itoa(sum)
		}
		v, _ := strconv.Atoi(numbers[0])
		return strconv.Itoa(v * 2)
	}

	lang := strings.ToLower(language)
	if lang == "javascript" && strings.Contains(code, "console.log") {
		return "Hello World"
	}
	if lang == "python" && strings.Contains(code, "print") {
		return "Hello World"
	}
	return "42"
}
