package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/rs/zerolog"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/pitlane/kart/internal/config"
	"github.com/pitlane/kart/internal/logging"
	intOtel "github.com/pitlane/kart/internal/otel"
	"github.com/pitlane/kart/internal/session"
)

// app holds the process-wide services every command shares.
type app struct {
	session      *session.Context
	logFilePath  string
	logFile      *os.File
	gelfWriter   *gelf.Writer
	slogManager  *logging.SlogManager
	logger       *slog.Logger
	zlog         zerolog.Logger
	otelProvider *intOtel.Provider
}

func newApp(configDir string) (*app, error) {
	a := &app{
		session:     session.NewContext(),
		slogManager: logging.NewSlogManager(),
	}

	// bootstrap logger until the config is known
	a.slogManager.Setup(nil, "info", nil)
	a.logger = a.slogManager.Logger()

	if err := config.Load(configDir); err != nil {
		a.logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		a.logger.Info("Loaded config", "dir", configDir)
	}

	logsDir := config.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return nil, fmt.Errorf("creating logs dir: %w", err)
	}
	a.logFilePath = logging.LogFilePath(logsDir, appName, a.session.Started())
	if _, err := os.Stat(a.logFilePath); err == nil {
		_ = os.Rename(a.logFilePath, a.logFilePath+".old")
	}
	file, err := os.OpenFile(a.logFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		a.logger.Error("Failed to create/open log file!", "error", err, "path", a.logFilePath)
	} else {
		a.logFile = file
	}

	a.setupOTel()
	a.setupGELF()
	a.setupLoggers()
	return a, nil
}

func (a *app) setupOTel() {
	otelCfg := config.GetOTelConfig()
	if !otelCfg.Enabled {
		return
	}
	var logWriter io.Writer
	if a.logFile != nil {
		logWriter = a.logFile
	}
	p, err := intOtel.New(intOtel.Config{
		Enabled:      otelCfg.Enabled,
		ServiceName:  otelCfg.ServiceName,
		BatchTimeout: otelCfg.BatchTimeout,
		LogWriter:    logWriter,
		Endpoint:     otelCfg.Endpoint,
		Insecure:     otelCfg.Insecure,
	})
	if err != nil {
		a.logger.Error("Failed to initialize OTel provider", "error", err)
		return
	}
	a.otelProvider = p
	a.logger.Info("OTel provider initialized", "service", p.ServiceName(), "endpoint", otelCfg.Endpoint)
}

func (a *app) setupGELF() {
	gl := config.GetGraylogConfig()
	if !gl.Enabled {
		return
	}
	w, err := logging.NewGELFWriter(gl.Address, appName)
	if err != nil {
		a.logger.Error("Failed to connect to Graylog", "error", err)
		return
	}
	a.gelfWriter = w
}

func (a *app) setupLoggers() {
	level := config.GetString("logLevel")

	var provider *sdklog.LoggerProvider
	if a.otelProvider != nil {
		provider = a.otelProvider.LoggerProvider()
	}
	opts := []logging.Option{logging.WithContext(a.session.Attrs)}
	var extra io.Writer
	if a.gelfWriter != nil {
		opts = append(opts, logging.WithGELF(a.gelfWriter))
		extra = a.gelfWriter
	}

	var out io.Writer = os.Stdout
	if a.logFile != nil {
		out = a.logFile
		a.slogManager.Setup(a.logFile, level, provider, opts...)
	} else {
		a.slogManager.Setup(nil, level, provider, opts...)
	}
	a.logger = a.slogManager.Logger()
	a.zlog = logging.NewZerolog(out, level, a.session.Attrs, extra)
	a.logger.Info("Logging to file", "path", a.logFilePath, "session", a.session.ID())
}

// flushOTel pushes buffered OTel logs, used after each persisted run.
func (a *app) flushOTel() {
	if a.otelProvider == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.otelProvider.Flush(ctx); err != nil {
		a.logger.Warn("Failed to flush OTel data", "error", err)
	}
}

func (a *app) shutdown() {
	if a.otelProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.otelProvider.Shutdown(ctx); err != nil {
			a.logger.Warn("Failed to shut down OTel provider", "error", err)
		}
		cancel()
	}
	if a.gelfWriter != nil {
		_ = a.gelfWriter.Close()
	}
	if a.logFile != nil {
		_ = a.logFile.Close()
	}
}
