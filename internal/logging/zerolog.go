package logging

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ParseZerologLevel converts a string log level to a zerolog.Level.
func ParseZerologLevel(level string) zerolog.Level {
	switch strings.ToUpper(level) {
	case "TRACE":
		return zerolog.TraceLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "WARN":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewZerolog builds the zerolog logger used by the database, telemetry and
// dispatcher components. It writes console format to out (without colors)
// and raw JSON to each extra writer, and adds the provider's attributes to
// every event.
func NewZerolog(out io.Writer, level string, provider ContextProvider, extra ...io.Writer) zerolog.Logger {
	zerolog.TimestampFunc = func() time.Time {
		return time.Now().UTC()
	}

	writers := []io.Writer{
		zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
			NoColor:    true,
		},
	}
	for _, w := range extra {
		if w != nil {
			writers = append(writers, w)
		}
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(ParseZerologLevel(level)).
		With().Timestamp().Logger()

	if provider != nil {
		logger = logger.Hook(ZerologContextHook(provider))
	}
	return logger
}

// ZerologContextHook copies the provider's attributes onto each event.
func ZerologContextHook(provider ContextProvider) zerolog.HookFunc {
	return func(e *zerolog.Event, level zerolog.Level, msg string) {
		for _, a := range provider() {
			e.Interface(a.Key, a.Value.Resolve().Any())
		}
	}
}

// Sampled returns a logger for noisy per-tick errors: five events per ten
// seconds, then one in a hundred.
func Sampled(logger zerolog.Logger) zerolog.Logger {
	return logger.With().Bool("sampled", true).Logger().Sample(&zerolog.BurstSampler{
		Burst:       5,
		Period:      10 * time.Second,
		NextSampler: &zerolog.BasicSampler{N: 100},
	})
}
