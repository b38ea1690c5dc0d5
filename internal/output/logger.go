package output

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/devlongs/trade-guardian/internal/config"
	"github.com/devlongs/trade-guardian/pkg/types"
)

// Logger handles output for assessed trades
type Logger struct {
	mu    sync.Mutex
	stats Stats
}

// Stats tracks assessment statistics
type Stats struct {
	Assessments  uint64
	SafeCount    uint64
	WarningCount uint64
	RiskyCount   uint64
	ExactChecks  uint64
	Disagreed    uint64 // exact engine tiered the trade differently
	Ladders      uint64
	WorstImpact  float64
	WorstPair    string
	StartTime    time.Time
}

// NewLogger configures the global zerolog logger and returns a trade logger
func NewLogger(cfg config.LoggingConfig) *Logger {
	return newLogger(cfg, os.Stderr)
}

func newLogger(cfg config.LoggingConfig, out io.Writer) *Logger {
	switch cfg.Format {
	case "console":
		log.Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: "15:04:05",
		}).With().Timestamp().Logger()
	default:
		log.Logger = zerolog.New(out).With().Timestamp().Logger()
	}

	switch cfg.Level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	}

	return &Logger{stats: Stats{StartTime: time.Now()}}
}

// LogAssessment records and logs a completed assessment
func (l *Logger) LogAssessment(a *types.Assessment) {
	l.mu.Lock()
	l.stats.Assessments++
	switch a.Analysis.Health {
	case types.Safe:
		l.stats.SafeCount++
	case types.Warning:
		l.stats.WarningCount++
	case types.Risky:
		l.stats.RiskyCount++
	}
	if a.Exact != nil {
		l.stats.ExactChecks++
		if a.Exact.Health != a.Analysis.Health {
			l.stats.Disagreed++
		}
	}
	if a.Analysis.PriceImpact > l.stats.WorstImpact {
		l.stats.WorstImpact = a.Analysis.PriceImpact
		l.stats.WorstPair = a.Pair
	}
	l.mu.Unlock()

	event := log.Info()
	if a.Analysis.Health == types.Risky {
		event = log.Warn()
	}
	event = event.
		Str("id", a.ID.String()).
		Str("pair", a.Pair).
		Float64("amount", a.Amount).
		Float64("expectedOutput", a.Analysis.ExpectedOutput).
		Float64("priceImpact", a.Analysis.PriceImpact).
		Float64("slippage", a.Analysis.Slippage).
		Str("health", a.Analysis.Health.String()).
		Float64("maxRecommendedSize", a.Analysis.MaxRecommendedSize)
	if a.Exact != nil {
		event = event.
			Uint64("impactBps", a.Exact.ImpactBps).
			Bool("exactSafe", a.Exact.Safe)
	}
	event.Msg("Trade assessed")
}

// LogLadder logs a size ladder at debug level
func (l *Logger) LogLadder(pair string, steps []types.LadderStep) {
	l.mu.Lock()
	l.stats.Ladders++
	l.mu.Unlock()

	for _, s := range steps {
		log.Debug().
			Str("pair", pair).
			Float64("amount", s.Amount).
			Float64("priceImpact", s.Analysis.PriceImpact).
			Str("health", s.Analysis.Health.String()).
			Msg("Ladder step")
	}
}

// LogStats logs current statistics
func (l *Logger) LogStats() {
	s := l.GetStats()
	elapsed := time.Since(s.StartTime)

	log.Info().
		Uint64("assessments", s.Assessments).
		Uint64("safe", s.SafeCount).
		Uint64("warning", s.WarningCount).
		Uint64("risky", s.RiskyCount).
		Uint64("exactChecks", s.ExactChecks).
		Uint64("disagreed", s.Disagreed).
		Uint64("ladders", s.Ladders).
		Float64("worstImpact", s.WorstImpact).
		Str("worstPair", s.WorstPair).
		Dur("uptime", elapsed).
		Msg("Trade Guardian Stats")
}

// LogError logs an error
func (l *Logger) LogError(err error, context string) {
	log.Error().
		Err(err).
		Str("context", context).
		Msg("Error occurred")
}

// GetStats returns a copy of the current statistics
func (l *Logger) GetStats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}
