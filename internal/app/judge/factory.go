package judge

import (
	"codearena/internal/platform/config"

	"go.uber.org/zap"
)

// NewFromConfig selects the real Judge0 client when an API key is present
// and otherwise degrades to the deterministic stand-in scorer. The choice
// is logged once at startup so a misconfigured judge is visible, not silent.
func NewFromConfig(cfg *config.Config, logger *zap.Logger) Client {
	if cfg.Judge0APIKey == "" {
		logger.Warn("judge0 API key not configured, using deterministic stand-in scorer")
		return NewStandInClient(logger)
	}
	logger.Info("using judge0 execution client", zap.String("url", cfg.Judge0URL))
	return NewJudge0Client(cfg.Judge0URL, cfg.Judge0APIKey, cfg.Judge0PollInterval, cfg.Judge0MaxPolls, logger)
}
