package utils

import (
	"fmt"

	"go.uber.org/zap"
)

// NewSugaredLogger creates a named sugared logger writing to stderr, keeping stdout free
// for command output. Verbose selects the development encoder at debug level, otherwise
// JSON at info level.
//
// Sampling is disabled: per-message warnings such as rejected batch entries must all be
// logged.
func NewSugaredLogger(name string, verbose bool) (*zap.SugaredLogger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Sampling = nil
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	l, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	if name != "" {
		l = l.Named(name)
	}
	return l.Sugar(), nil
}
