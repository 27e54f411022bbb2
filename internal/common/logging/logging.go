package logging

import (
	"log"

	"go.uber.org/zap"
)

// New builds the process-wide logger. Services receive named children of
// this logger rather than reaching for a global.
func New() *zap.Logger {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	return logger
}
