// Package config implements the loadcast run configuration.
//
// Every setting can come from a command-line flag, an environment variable or
// a YAML file given with -config. A flag wins over the environment, the
// environment wins over the file, and the file wins over the built-in default.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/HatiCode/loadcast/pkg/report"
	"gopkg.in/yaml.v3"
)

// Config holds all loadcast configuration.
type Config struct {
	ConfigFile string

	// Input
	Input           string
	Sheet           string
	TimestampColumn string
	DemandColumn    string

	// Loader
	ScalingFactor float64
	HistoryLimit  int

	// Model
	Model   string
	Horizon time.Duration
	Step    time.Duration
	// ARIMA order, used with Model "arima". All zero selects (1,1,1).
	ARIMAP int
	ARIMAD int
	ARIMAQ int

	// Reports
	PricePerUnit float64
	OutputDir    string
	NextDayFile  string
	MonthlyFile  string
	MetricsFile  string

	// Logging
	LogFormat string
	LogLevel  string
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Input:           "hourlyLoadDataIndia2.xlsx",
		TimestampColumn: "datetime",
		DemandColumn:    "Southern Region Hourly Demand",
		ScalingFactor:   0.00012,
		HistoryLimit:    8000,
		Model:           "seasonal",
		Horizon:         720 * time.Hour,
		Step:            time.Hour,
		PricePerUnit:    6.50,
		OutputDir:       ".",
		NextDayFile:     "next_day_energy_prediction.csv",
		MonthlyFile:     "monthly_price_prediction.csv",
		LogFormat:       "text",
		LogLevel:        "info",
	}
}

// ParseFlags parses command-line flags, environment variables and the optional
// YAML file into a validated Config.
func ParseFlags() (*Config, error) {
	return parse(flag.CommandLine, os.Args[1:])
}

func parse(fs *flag.FlagSet, args []string) (*Config, error) {
	def := Default()
	cfg := &Config{}

	fs.StringVar(&cfg.ConfigFile, "config", getEnv("CONFIG_FILE", ""), "YAML config file")

	// Input
	fs.StringVar(&cfg.Input, "input", getEnv("INPUT_FILE", def.Input), "Historical load file (.xlsx or .csv)")
	fs.StringVar(&cfg.Sheet, "sheet", getEnv("SHEET", def.Sheet), "Worksheet name (default: first sheet)")
	fs.StringVar(&cfg.TimestampColumn, "timestamp-column", getEnv("TIMESTAMP_COLUMN", def.TimestampColumn), "Timestamp column header")
	fs.StringVar(&cfg.DemandColumn, "demand-column", getEnv("DEMAND_COLUMN", def.DemandColumn), "Demand column header")

	// Loader
	fs.Float64Var(&cfg.ScalingFactor, "scaling-factor", getEnvFloat("SCALING_FACTOR", def.ScalingFactor), "Multiplier from raw demand to kVAh")
	fs.IntVar(&cfg.HistoryLimit, "history", getEnvInt("HISTORY_LIMIT", def.HistoryLimit), "Number of most recent observations kept")

	// Model
	fs.StringVar(&cfg.Model, "model", getEnv("MODEL", def.Model), "Forecast model: seasonal, baseline or arima")
	fs.DurationVar(&cfg.Horizon, "horizon", getEnvDuration("HORIZON", def.Horizon), "Forecast horizon")
	fs.DurationVar(&cfg.Step, "step", getEnvDuration("STEP", def.Step), "Forecast step size")
	fs.IntVar(&cfg.ARIMAP, "arima-p", getEnvInt("ARIMA_P", def.ARIMAP), "ARIMA AR order (0 with d=q=0: auto)")
	fs.IntVar(&cfg.ARIMAD, "arima-d", getEnvInt("ARIMA_D", def.ARIMAD), "ARIMA differencing order")
	fs.IntVar(&cfg.ARIMAQ, "arima-q", getEnvInt("ARIMA_Q", def.ARIMAQ), "ARIMA MA order")

	// Reports
	fs.Float64Var(&cfg.PricePerUnit, "price-per-unit", getEnvFloat("PRICE_PER_UNIT", def.PricePerUnit), "Price per kVAh")
	fs.StringVar(&cfg.OutputDir, "output-dir", getEnv("OUTPUT_DIR", def.OutputDir), "Directory for the report files")
	fs.StringVar(&cfg.NextDayFile, "next-day-file", getEnv("NEXT_DAY_FILE", def.NextDayFile), "Next-day hourly report file name")
	fs.StringVar(&cfg.MonthlyFile, "monthly-file", getEnv("MONTHLY_FILE", def.MonthlyFile), "Monthly price report file name")
	fs.StringVar(&cfg.MetricsFile, "metrics-file", getEnv("METRICS_FILE", def.MetricsFile), "Prometheus textfile to write run metrics to (disabled if empty)")

	// Logging
	fs.StringVar(&cfg.LogFormat, "log-format", getEnv("LOG_FORMAT", def.LogFormat), "Log format: text or json")
	fs.StringVar(&cfg.LogLevel, "log-level", getEnv("LOG_LEVEL", def.LogLevel), "Log level: debug, info, warn, error")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if cfg.ConfigFile != "" {
		fc, err := readFile(cfg.ConfigFile)
		if err != nil {
			return nil, err
		}
		explicit := make(map[string]bool)
		fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })
		fc.apply(cfg, explicit)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error

	if c.Input == "" {
		errs = append(errs, errors.New("input is required"))
	}
	if c.DemandColumn == "" || c.TimestampColumn == "" {
		errs = append(errs, errors.New("timestamp and demand columns are required"))
	}
	if c.ScalingFactor <= 0 {
		errs = append(errs, fmt.Errorf("scaling-factor must be positive, got %v", c.ScalingFactor))
	}
	if c.HistoryLimit <= 0 {
		errs = append(errs, fmt.Errorf("history must be positive, got %d", c.HistoryLimit))
	}
	if c.PricePerUnit < 0 {
		errs = append(errs, fmt.Errorf("price-per-unit must not be negative, got %v", c.PricePerUnit))
	}
	switch {
	case c.Step <= 0 || c.Step%time.Second != 0:
		errs = append(errs, fmt.Errorf("step must be a positive whole number of seconds, got %v", c.Step))
	case c.Horizon%c.Step != 0:
		errs = append(errs, fmt.Errorf("horizon must be a multiple of step (%v), got %v", c.Step, c.Horizon))
	case c.Horizon < report.HoursPerDay*c.Step:
		// the next-day report needs a full day of points
		errs = append(errs, fmt.Errorf("horizon must cover at least %d steps (%v), got %v",
			report.HoursPerDay, report.HoursPerDay*c.Step, c.Horizon))
	}
	switch c.Model {
	case "seasonal", "baseline", "arima":
	default:
		errs = append(errs, fmt.Errorf("unknown model %q (want seasonal, baseline or arima)", c.Model))
	}
	if c.ARIMAP < 0 || c.ARIMAD < 0 || c.ARIMAQ < 0 {
		errs = append(errs, fmt.Errorf("arima orders must not be negative, got (%d,%d,%d)", c.ARIMAP, c.ARIMAD, c.ARIMAQ))
	}
	if c.NextDayFile == "" || c.MonthlyFile == "" {
		errs = append(errs, errors.New("report file names are required"))
	} else if c.NextDayFile == c.MonthlyFile {
		errs = append(errs, fmt.Errorf("next-day-file and monthly-file must differ, both are %q", c.NextDayFile))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// HorizonSteps is the number of forecast points after the last observation.
func (c *Config) HorizonSteps() int {
	return int(c.Horizon / c.Step)
}

// fileConfig mirrors Config for the YAML file. Nil fields are left untouched.
type fileConfig struct {
	Input           *string  `yaml:"input"`
	Sheet           *string  `yaml:"sheet"`
	TimestampColumn *string  `yaml:"timestamp_column"`
	DemandColumn    *string  `yaml:"demand_column"`
	ScalingFactor   *float64 `yaml:"scaling_factor"`
	HistoryLimit    *int     `yaml:"history_limit"`
	Model           *string  `yaml:"model"`
	Horizon         *string  `yaml:"horizon"`
	Step            *string  `yaml:"step"`
	ARIMAP          *int     `yaml:"arima_p"`
	ARIMAD          *int     `yaml:"arima_d"`
	ARIMAQ          *int     `yaml:"arima_q"`
	PricePerUnit    *float64 `yaml:"price_per_unit"`
	OutputDir       *string  `yaml:"output_dir"`
	NextDayFile     *string  `yaml:"next_day_file"`
	MonthlyFile     *string  `yaml:"monthly_file"`
	MetricsFile     *string  `yaml:"metrics_file"`
	LogFormat       *string  `yaml:"log_format"`
	LogLevel        *string  `yaml:"log_level"`

	horizon, step *time.Duration
}

func readFile(path string) (*fileConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	defer f.Close()

	var fc fileConfig
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if fc.horizon, err = parseDuration("horizon", fc.Horizon); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if fc.step, err = parseDuration("step", fc.Step); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &fc, nil
}

func parseDuration(key string, s *string) (*time.Duration, error) {
	if s == nil {
		return nil, nil
	}
	d, err := time.ParseDuration(*s)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return &d, nil
}

// apply copies file values into cfg for settings that were not given as a
// flag or through the environment.
func (fc *fileConfig) apply(cfg *Config, explicit map[string]bool) {
	overlay(&cfg.Input, fc.Input, explicit, "input", "INPUT_FILE")
	overlay(&cfg.Sheet, fc.Sheet, explicit, "sheet", "SHEET")
	overlay(&cfg.TimestampColumn, fc.TimestampColumn, explicit, "timestamp-column", "TIMESTAMP_COLUMN")
	overlay(&cfg.DemandColumn, fc.DemandColumn, explicit, "demand-column", "DEMAND_COLUMN")
	overlay(&cfg.ScalingFactor, fc.ScalingFactor, explicit, "scaling-factor", "SCALING_FACTOR")
	overlay(&cfg.HistoryLimit, fc.HistoryLimit, explicit, "history", "HISTORY_LIMIT")
	overlay(&cfg.Model, fc.Model, explicit, "model", "MODEL")
	overlay(&cfg.Horizon, fc.horizon, explicit, "horizon", "HORIZON")
	overlay(&cfg.Step, fc.step, explicit, "step", "STEP")
	overlay(&cfg.ARIMAP, fc.ARIMAP, explicit, "arima-p", "ARIMA_P")
	overlay(&cfg.ARIMAD, fc.ARIMAD, explicit, "arima-d", "ARIMA_D")
	overlay(&cfg.ARIMAQ, fc.ARIMAQ, explicit, "arima-q", "ARIMA_Q")
	overlay(&cfg.PricePerUnit, fc.PricePerUnit, explicit, "price-per-unit", "PRICE_PER_UNIT")
	overlay(&cfg.OutputDir, fc.OutputDir, explicit, "output-dir", "OUTPUT_DIR")
	overlay(&cfg.NextDayFile, fc.NextDayFile, explicit, "next-day-file", "NEXT_DAY_FILE")
	overlay(&cfg.MonthlyFile, fc.MonthlyFile, explicit, "monthly-file", "MONTHLY_FILE")
	overlay(&cfg.MetricsFile, fc.MetricsFile, explicit, "metrics-file", "METRICS_FILE")
	overlay(&cfg.LogFormat, fc.LogFormat, explicit, "log-format", "LOG_FORMAT")
	overlay(&cfg.LogLevel, fc.LogLevel, explicit, "log-level", "LOG_LEVEL")
}

func overlay[T any](dst *T, src *T, explicit map[string]bool, flagName, envKey string) {
	if src == nil || explicit[flagName] || os.Getenv(envKey) != "" {
		return
	}
	*dst = *src
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var f float64
		if _, err := fmt.Sscanf(value, "%f", &f); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
