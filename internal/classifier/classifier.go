// Package classifier turns a release filename into a tentative MediaInfo.
package classifier

import (
	"context"
	"errors"
	"time"

	"github.com/fuunylmz/Re-aniname/internal/config"
	"github.com/fuunylmz/Re-aniname/internal/logging"
	"github.com/fuunylmz/Re-aniname/internal/media"
	"github.com/fuunylmz/Re-aniname/internal/naming"
)

// MaxSiblings caps how many neighbouring filenames are sent as context.
const MaxSiblings = 20

// ErrCircuitOpen is returned while the breaker is rejecting calls.
var ErrCircuitOpen = errors.New("classifier circuit breaker is open")

// Hints is optional context about where the file lives.
type Hints struct {
	ParentFolder string
	Siblings     []string
}

// Classifier extracts a metadata guess from a filename. Implementations do
// not retry; callers decide the retry policy.
type Classifier interface {
	Classify(ctx context.Context, filename string, hints Hints) (media.MediaInfo, error)
}

// Heuristic classifies offline with filename patterns. It is used when no
// classifier API key is configured.
type Heuristic struct{}

func (Heuristic) Classify(ctx context.Context, filename string, hints Hints) (media.MediaInfo, error) {
	if err := ctx.Err(); err != nil {
		return media.MediaInfo{}, err
	}
	return naming.Guess(filename, hints.ParentFolder)
}

// FromConfig returns the OpenAI classifier when an API key is configured,
// otherwise the offline heuristic.
func FromConfig(cfg config.ClassifierConfig, logger *logging.Logger) Classifier {
	if cfg.APIKey == "" {
		logger.Info("classifier", "No classifier API key configured, using filename heuristics")
		return Heuristic{}
	}
	cb := cfg.CircuitBreaker
	return NewOpenAI(OpenAIConfig{
		APIKey:            cfg.APIKey,
		BaseURL:           cfg.BaseURL,
		Model:             cfg.Model,
		Timeout:           time.Duration(cfg.TimeoutSeconds) * time.Second,
		RequestsPerMinute: cfg.RequestsPerMinute,
	},
		WithLogger(logger),
		WithCircuitBreaker(NewCircuitBreaker(
			cb.FailureThreshold,
			time.Duration(cb.FailureWindowSeconds)*time.Second,
			time.Duration(cb.CooldownSeconds)*time.Second,
		)),
	)
}
