package judge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestStandInDeterministic(t *testing.T) {
	client := NewStandInClient(zap.NewNop())
	code := "def solve():\n    print(sum(map(int, input().split())))"

	first := client.Execute(context.Background(), code, "python", "3 4")
	second := client.Execute(context.Background(), code, "python", "3 4")

	assert.Equal(t, first, second)
	assert.True(t, first.Success)
	assert.Equal(t, "7", first.Stdout)
}

func TestStandInSumsNumericInput(t *testing.T) {
	client := NewStandInClient(zap.NewNop())
	code := "def solve():\n    pass  # padding to look like a program"

	result := client.Execute(context.Background(), code, "python", "10 20 30")
	assert.True(t, result.Success)
	assert.Equal(t, "60", result.Stdout)
}

func TestStandInDoublesSingleNumber(t *testing.T) {
	client := NewStandInClient(zap.NewNop())
	code := "def solve():\n    pass  # padding to look like a program"

	result := client.Execute(context.Background(), code, "python", "21")
	assert.True(t, result.Success)
	assert.Equal(t, "42", result.Stdout)
}

func TestStandInRejectsTrivialCode(t *testing.T) {
	client := NewStandInClient(zap.NewNop())

	result := client.Execute(context.Background(), "x = 1", "python", "1 2")
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "code structure")
}

func TestStandInUnsupportedLanguage(t *testing.T) {
	client := NewStandInClient(zap.NewNop())

	result := client.Execute(context.Background(), "whatever program text here", "fortran77", "")
	assert.False(t, result.Success)
}
