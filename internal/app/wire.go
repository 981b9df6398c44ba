package app

import (
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/nathanbogale/CrediSynth/internal/ai"
	"github.com/nathanbogale/CrediSynth/internal/config"
	"github.com/nathanbogale/CrediSynth/internal/engine"
	"github.com/nathanbogale/CrediSynth/internal/scoring"
	"github.com/nathanbogale/CrediSynth/internal/store"
)

// SetupLogging applies the configured level and format to the package logger.
func SetupLogging(cfg *config.Config) error {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	logrus.SetLevel(level)
	logrus.SetOutput(os.Stdout)
	if cfg.LogFormat == "text" {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
	return nil
}

// Heuristic builds the deterministic synthesizer from the configured thresholds.
func Heuristic(cfg *config.Config) *scoring.Heuristic {
	return scoring.NewHeuristic(scoring.Thresholds{
		MaxDTI:            cfg.Heuristic.MaxDTI,
		MinResidualIncome: cfg.Heuristic.MinResidualIncome,
		MaxDSTI:           cfg.Heuristic.MaxDSTI,
	})
}

// Generation builds the generation client and the degrade chain around it. A disabled
// or unconfigured client is not an error: the chain answers from the heuristic.
func Generation(cfg *config.Config) (*ai.Generator, *ai.Chain, error) {
	breaker := ai.NewBreaker("generation", ai.BreakerSettings{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		Cooldown:         cfg.Breaker.Cooldown,
	})
	genCfg := ai.GeneratorConfig{
		Model:          cfg.Generation.Model,
		CallTimeout:    cfg.Generation.CallTimeout,
		TotalBudget:    cfg.Generation.TotalBudget,
		MaxAttempts:    cfg.Generation.MaxAttempts,
		BackoffInitial: cfg.Generation.BackoffInitial,
		BackoffMax:     cfg.Generation.BackoffMax,
	}

	var completer ai.Completer
	switch {
	case cfg.Generation.Disabled:
		logrus.Info("report generation disabled via configuration, using heuristics")
	default:
		client, err := ai.NewOpenAI(ai.OpenAIConfig{
			APIKey:      cfg.Generation.APIKey,
			Model:       cfg.Generation.Model,
			BaseURL:     cfg.Generation.BaseURL,
			Temperature: cfg.Generation.Temperature,
			MaxTokens:   cfg.Generation.MaxTokens,
		})
		switch {
		case errors.Is(err, ai.ErrDisabled):
			logrus.Warn("OPENAI_API_KEY not set, report generation degrades to heuristics")
		case err != nil:
			return nil, nil, fmt.Errorf("generation client: %w", err)
		default:
			completer = client
			genCfg.Model = client.Model()
		}
	}

	generator := ai.NewGenerator(completer, breaker, genCfg)
	chain := ai.WithFallback(generator, Heuristic(cfg), cfg.Generation.FallbackOnError)
	return generator, chain, nil
}

// Audit opens the audit store unless auditing is disabled; a nil store means no audit.
func Audit(cfg *config.Config) (*store.Database, error) {
	if cfg.AuditDisabled {
		logrus.Info("analysis auditing disabled via configuration")
		return nil, nil
	}
	db, err := store.Open(cfg.DatabaseURL, cfg.LogLevel != "debug")
	if err != nil {
		return nil, err
	}
	logrus.WithField("driver", db.Driver()).Info("audit store ready")
	return db, nil
}

// Engine assembles the analysis engine; db may be nil.
func Engine(chain *ai.Chain, db *store.Database) *engine.Engine {
	if db == nil {
		return engine.New(chain, nil)
	}
	return engine.New(chain, db)
}
