// Package telemetry writes per-tick vehicle kinematics to InfluxDB, or to a
// gzipped line-protocol backup file when the server cannot be reached.
package telemetry

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"

	"github.com/pitlane/kart/internal/config"
	"github.com/pitlane/kart/internal/logging"
)

// Measurement is the InfluxDB measurement every point is written to.
const Measurement = "kinematics"

// retentionSeconds keeps kinematics for 30 days.
const retentionSeconds = 60 * 60 * 24 * 30

var (
	ErrDisabled  = errors.New("telemetry is disabled")
	ErrNoBackend = errors.New("telemetry client not initialized and backup writer not available")
)

// Sample is one player's kinematics for one tick.
type Sample struct {
	Player          int
	State           string
	Speed           float64
	ForwardVelocity float64
	AngularVelocity float64
	Position        mgl64.Vec3
}

// Point converts a sample to an InfluxDB point.
func Point(s Sample, ts time.Time) *influxdb2_write.Point {
	return influxdb2_write.NewPointWithMeasurement(Measurement).
		AddTag("player", strconv.Itoa(s.Player)).
		AddTag("state", s.State).
		AddField("speed", s.Speed).
		AddField("forward_velocity", s.ForwardVelocity).
		AddField("angular_velocity", s.AngularVelocity).
		AddField("x", s.Position.X()).
		AddField("y", s.Position.Y()).
		AddField("z", s.Position.Z()).
		SetTime(ts)
}

// BackupFileName is the backup file for a session started at start.
func BackupFileName(dir string, start time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("kinematics_%s.lp.gz", start.UTC().Format("20060102_150405")))
}

// Writer sends kinematics points to InfluxDB or the backup file.
type Writer struct {
	cfg        config.TelemetryConfig
	backupPath string
	logger     zerolog.Logger

	mu           sync.Mutex
	client       influxdb2.Client
	writeAPI     influxdb2_api.WriteAPI
	backupFile   *os.File
	backupWriter *gzip.Writer
	valid        bool
	written      int
}

// NewWriter creates a writer. Connect must be called before Write.
func NewWriter(cfg config.TelemetryConfig, backupPath string, log zerolog.Logger) *Writer {
	return &Writer{
		cfg:        cfg,
		backupPath: backupPath,
		logger:     log.With().Str("component", "telemetry").Logger(),
	}
}

// Valid reports whether points go to InfluxDB rather than the backup file.
func (w *Writer) Valid() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.valid
}

// Written is the number of points accepted so far.
func (w *Writer) Written() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written
}

// Connect pings InfluxDB and sets up the org, bucket and write API. When the
// server is unreachable the backup file is opened instead and nil is
// returned.
func (w *Writer) Connect(ctx context.Context) error {
	if !w.cfg.Enabled {
		return ErrDisabled
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.client = influxdb2.NewClientWithOptions(
		w.cfg.URL(),
		w.cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(2500).
			SetFlushInterval(1000),
	)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	running, err := w.client.Ping(pingCtx)
	cancel()

	if err != nil || !running {
		w.valid = false
		w.client.Close()
		w.client = nil
		w.logger.Warn().Err(err).Str("url", w.cfg.URL()).Str("backupPath", w.backupPath).
			Msg("InfluxDB unreachable, writing kinematics to backup file")
		return w.openBackup()
	}

	if err := w.setupOrganizationAndBucket(ctx); err != nil {
		return err
	}
	w.createWriter()
	w.valid = true
	w.logger.Info().Str("url", w.cfg.URL()).Str("bucket", w.cfg.Bucket).Msg("InfluxDB client initialized")
	return nil
}

func (w *Writer) openBackup() error {
	if w.backupWriter != nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(w.backupPath), 0755); err != nil {
		return fmt.Errorf("error creating backup dir: %w", err)
	}
	file, err := os.OpenFile(w.backupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("error creating backup file: %w", err)
	}
	w.backupFile = file
	w.backupWriter = gzip.NewWriter(file)
	return nil
}

func (w *Writer) setupOrganizationAndBucket(ctx context.Context) error {
	orgs := w.client.OrganizationsAPI()
	org, err := orgs.FindOrganizationByName(ctx, w.cfg.Org)
	if err != nil {
		w.logger.Info().Str("org", w.cfg.Org).Msg("Organization not found, creating")
		org, err = orgs.CreateOrganizationWithName(ctx, w.cfg.Org)
		if err != nil {
			w.logger.Error().Err(err).Str("org", w.cfg.Org).Msg("Error creating organization")
			return fmt.Errorf("creating organization %s: %w", w.cfg.Org, err)
		}
	}

	buckets := w.client.BucketsAPI()
	if _, err := buckets.FindBucketByName(ctx, w.cfg.Bucket); err != nil {
		w.logger.Info().Str("bucket", w.cfg.Bucket).Msg("Bucket not found, creating")
		rule := domain.RetentionRuleTypeExpire
		_, err = buckets.CreateBucketWithName(ctx, org, w.cfg.Bucket, domain.RetentionRule{
			Type:         &rule,
			EverySeconds: retentionSeconds,
		})
		if err != nil {
			w.logger.Error().Err(err).Str("bucket", w.cfg.Bucket).Msg("Error creating bucket")
			return fmt.Errorf("creating bucket %s: %w", w.cfg.Bucket, err)
		}
	}
	return nil
}

func (w *Writer) createWriter() {
	w.writeAPI = w.client.WriteAPI(w.cfg.Org, w.cfg.Bucket)
	errorsCh := w.writeAPI.Errors()
	sampled := logging.Sampled(w.logger)
	go func() {
		for writeErr := range errorsCh {
			sampled.Error().Err(writeErr).Str("bucket", w.cfg.Bucket).
				Msg("Error sending data to InfluxDB")
		}
	}()
}

// Write queues one sample.
func (w *Writer) Write(s Sample, ts time.Time) error {
	return w.WritePoint(Point(s, ts))
}

// WritePoint writes a point to InfluxDB or the backup file.
func (w *Writer) WritePoint(point *influxdb2_write.Point) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch {
	case w.valid:
		w.writeAPI.WritePoint(point)
	case w.backupWriter != nil:
		line := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
		if _, err := w.backupWriter.Write([]byte(line + "\n")); err != nil {
			return fmt.Errorf("error writing to telemetry backup file: %w", err)
		}
	default:
		return ErrNoBackend
	}
	w.written++
	return nil
}

// Close flushes pending points and releases the client and backup file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var errs []error
	if w.writeAPI != nil {
		w.writeAPI.Flush()
		w.writeAPI = nil
	}
	if w.client != nil {
		w.client.Close()
		w.client = nil
	}
	if w.backupWriter != nil {
		errs = append(errs, w.backupWriter.Close())
		w.backupWriter = nil
	}
	if w.backupFile != nil {
		errs = append(errs, w.backupFile.Close())
		w.backupFile = nil
	}
	w.valid = false
	w.logger.Debug().Int("points", w.written).Msg("telemetry closed")
	return errors.Join(errs...)
}
