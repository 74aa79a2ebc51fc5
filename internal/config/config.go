// Package config loads kart.cfg.json through viper and exposes typed views of
// each section.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/pitlane/kart/internal/vehicle"
)

// FileName is the configuration file looked up in the config directory.
const FileName = "kart.cfg.json"

// VehicleConfig holds the controller tuning and the body mass.
type VehicleConfig struct {
	Tuning vehicle.Tuning
	Mass   float64
}

// GhostConfig holds record/replay settings.
type GhostConfig struct {
	RecordFrequency float64
	TrackedPlayer   int
}

// RaceConfig holds race flow settings.
type RaceConfig struct {
	Players                int
	VictoryMessageDuration float64
	TickRate               float64
	CoursesFile            string
}

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds settings for the in-memory SQLite backend.
type SQLiteConfig struct {
	DumpInterval time.Duration
	DumpPath     string
}

// StorageConfig selects and configures the ghost run storage backend.
type StorageConfig struct {
	Type   string
	Memory MemoryConfig
	SQLite SQLiteConfig
}

// DBConfig holds Postgres connection settings.
type DBConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
}

// DSN returns the Postgres connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf(`host=%s port=%s user=%s password=%s dbname=%s sslmode=disable`,
		c.Host, c.Port, c.Username, c.Password, c.Database)
}

// TelemetryConfig holds InfluxDB settings for kinematics telemetry.
type TelemetryConfig struct {
	Enabled   bool
	Protocol  string
	Host      string
	Port      string
	Token     string
	Org       string
	Bucket    string
	BackupDir string
}

// URL returns the InfluxDB server URL.
func (c TelemetryConfig) URL() string {
	return fmt.Sprintf("%s://%s:%s", c.Protocol, c.Host, c.Port)
}

// GraylogConfig holds GELF output settings.
type GraylogConfig struct {
	Enabled bool
	Address string
}

// APIConfig holds the leaderboard server settings.
type APIConfig struct {
	ServerURL string
	APIKey    string
}

// OTelConfig holds OpenTelemetry settings.
type OTelConfig struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
	Endpoint     string
	Insecure     bool
}

// SetDefaults registers every default value.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./kartlogs")

	d := vehicle.DefaultTuning()
	viper.SetDefault("vehicle.maxSpeed", d.MaxSpeed)
	viper.SetDefault("vehicle.accelerationForce", d.AccelerationForce)
	viper.SetDefault("vehicle.decelerationRate", d.DecelerationRate)
	viper.SetDefault("vehicle.brakeForce", d.BrakeForce)
	viper.SetDefault("vehicle.reverseForce", d.ReverseForce)
	viper.SetDefault("vehicle.steerSpeed", d.SteerSpeed)
	viper.SetDefault("vehicle.maxAngularVelocity", d.MaxAngularVelocity)
	viper.SetDefault("vehicle.bounceFactor", d.BounceFactor)
	viper.SetDefault("vehicle.forceScale", d.ForceScale)
	viper.SetDefault("vehicle.lateralSpawnOffset", d.LateralSpawnOffset)
	viper.SetDefault("vehicle.mass", 1.0)

	viper.SetDefault("ghost.recordFrequency", 10.0)
	viper.SetDefault("ghost.trackedPlayer", 0)

	viper.SetDefault("race.players", 2)
	viper.SetDefault("race.victoryMessageDuration", 3.0)
	viper.SetDefault("race.tickRate", 100.0)
	viper.SetDefault("race.coursesFile", "")

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.outputDir", "./ghosts")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")
	viper.SetDefault("storage.sqlite.dumpPath", "./ghosts/kart.db")

	viper.SetDefault("api.serverUrl", "http://localhost:5000")
	viper.SetDefault("api.apiKey", "")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "kart")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "kart-metrics")
	viper.SetDefault("influx.bucket", "kinematics")
	viper.SetDefault("influx.backupDir", "./kartlogs")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "kart-sim")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	SetDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

func GetVehicleConfig() VehicleConfig {
	return VehicleConfig{
		Tuning: vehicle.Tuning{
			MaxSpeed:           viper.GetFloat64("vehicle.maxSpeed"),
			AccelerationForce:  viper.GetFloat64("vehicle.accelerationForce"),
			DecelerationRate:   viper.GetFloat64("vehicle.decelerationRate"),
			BrakeForce:         viper.GetFloat64("vehicle.brakeForce"),
			ReverseForce:       viper.GetFloat64("vehicle.reverseForce"),
			SteerSpeed:         viper.GetFloat64("vehicle.steerSpeed"),
			MaxAngularVelocity: viper.GetFloat64("vehicle.maxAngularVelocity"),
			BounceFactor:       viper.GetFloat64("vehicle.bounceFactor"),
			ForceScale:         viper.GetFloat64("vehicle.forceScale"),
			LateralSpawnOffset: viper.GetFloat64("vehicle.lateralSpawnOffset"),
		},
		Mass: viper.GetFloat64("vehicle.mass"),
	}
}

func GetGhostConfig() GhostConfig {
	return GhostConfig{
		RecordFrequency: viper.GetFloat64("ghost.recordFrequency"),
		TrackedPlayer:   viper.GetInt("ghost.trackedPlayer"),
	}
}

func GetRaceConfig() RaceConfig {
	return RaceConfig{
		Players:                viper.GetInt("race.players"),
		VictoryMessageDuration: viper.GetFloat64("race.victoryMessageDuration"),
		TickRate:               viper.GetFloat64("race.tickRate"),
		CoursesFile:            viper.GetString("race.coursesFile"),
	}
}

func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
			DumpPath:     viper.GetString("storage.sqlite.dumpPath"),
		},
	}
}

func GetDBConfig() DBConfig {
	return DBConfig{
		Host:     viper.GetString("db.host"),
		Port:     viper.GetString("db.port"),
		Username: viper.GetString("db.username"),
		Password: viper.GetString("db.password"),
		Database: viper.GetString("db.database"),
	}
}

func GetTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:   viper.GetBool("influx.enabled"),
		Protocol:  viper.GetString("influx.protocol"),
		Host:      viper.GetString("influx.host"),
		Port:      viper.GetString("influx.port"),
		Token:     viper.GetString("influx.token"),
		Org:       viper.GetString("influx.org"),
		Bucket:    viper.GetString("influx.bucket"),
		BackupDir: viper.GetString("influx.backupDir"),
	}
}

func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
}

func GetAPIConfig() APIConfig {
	return APIConfig{
		ServerURL: viper.GetString("api.serverUrl"),
		APIKey:    viper.GetString("api.apiKey"),
	}
}

func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}
