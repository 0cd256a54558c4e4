package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Logger formats accepted by -logger / PAYMENTS_LOGGER.
const (
	LoggerCompact = "compact"
	LoggerFull    = "full"
	LoggerPretty  = "pretty"
	LoggerJSON    = "json"
)

// ErrUsage marks configuration problems the user must fix.
var ErrUsage = errors.New("invalid usage")

// Usage describes the command line.
const Usage = `usage: payments-engine [flags] [input.csv]

Reads transactions from input.csv (or stdin when omitted or "-") and writes
the final account balances as CSV to stdout.

flags:
  -v                 increase log verbosity (repeatable)
  -logger string     log format: compact, full, pretty or json (PAYMENTS_LOGGER)
  -workers int       number of ledger workers (PAYMENTS_WORKERS)
  -queue-depth int   buffered transactions per worker (PAYMENTS_QUEUE_DEPTH)
  -precision int     minimum fraction digits in the output (PAYMENTS_PRECISION)
  -database-url url  export the snapshot to Postgres (DATABASE_URL)
`

// Config holds everything the CLI needs to run the engine.
type Config struct {
	Input       string // file path; empty or "-" means stdin
	Verbosity   int
	Logger      string
	Workers     int
	QueueDepth  int
	Precision   int32
	DatabaseURL string // optional Postgres report sink
}

// UseStdin reports whether input should be read from standard input.
func (c *Config) UseStdin() bool {
	return c.Input == "" || c.Input == "-"
}

// LoadDotEnv loads a .env file from the working directory if there is one.
// It returns false when no file was found, which is not an error.
func LoadDotEnv(filenames ...string) bool {
	return godotenv.Load(filenames...) == nil
}

// Load builds a Config from environment variables, overridden by args.
// Defaults apply when neither is set.
func Load(args []string) (*Config, error) {
	cfg := &Config{
		Logger:      getEnv("PAYMENTS_LOGGER", LoggerCompact),
		DatabaseURL: getEnv("DATABASE_URL", ""),
	}

	var err error
	if cfg.Verbosity, err = getEnvInt("PAYMENTS_VERBOSITY", 0); err != nil {
		return nil, err
	}
	if cfg.Workers, err = getEnvInt("PAYMENTS_WORKERS", runtime.NumCPU()); err != nil {
		return nil, err
	}
	if cfg.QueueDepth, err = getEnvInt("PAYMENTS_QUEUE_DEPTH", 1024); err != nil {
		return nil, err
	}
	precision, err := getEnvInt("PAYMENTS_PRECISION", 4)
	if err != nil {
		return nil, err
	}

	fs := flag.NewFlagSet("payments-engine", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	verbose := counter(cfg.Verbosity)
	fs.Var(&verbose, "v", "increase log verbosity (repeatable: -v info, -v -v debug)")
	fs.StringVar(&cfg.Logger, "logger", cfg.Logger, "log format: compact, full, pretty or json")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "number of ledger workers")
	fs.IntVar(&cfg.QueueDepth, "queue-depth", cfg.QueueDepth, "buffered transactions per worker")
	fs.IntVar(&precision, "precision", precision, "minimum fraction digits in the output")
	fs.StringVar(&cfg.DatabaseURL, "database-url", cfg.DatabaseURL, "export the snapshot to this Postgres database")

	// Flags may appear on either side of the input path.
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUsage, err)
		}
		if fs.NArg() == 0 {
			break
		}
		positional = append(positional, fs.Arg(0))
		args = fs.Args()[1:]
	}
	cfg.Verbosity = int(verbose)
	cfg.Precision = int32(precision)

	switch len(positional) {
	case 0:
	case 1:
		cfg.Input = positional[0]
	default:
		return nil, fmt.Errorf("%w: expected at most one input file, got %d", ErrUsage, len(positional))
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Logger {
	case LoggerCompact, LoggerFull, LoggerPretty, LoggerJSON:
	default:
		return fmt.Errorf("%w: unknown logger %q", ErrUsage, c.Logger)
	}
	if c.Workers < 1 {
		return fmt.Errorf("%w: workers must be at least 1", ErrUsage)
	}
	if c.QueueDepth < 0 {
		return fmt.Errorf("%w: queue depth cannot be negative", ErrUsage)
	}
	if c.Precision < 0 {
		return fmt.Errorf("%w: precision cannot be negative", ErrUsage)
	}
	return nil
}

// counter is a flag that counts how many times it was given, so -v -v means 2.
type counter int

func (c *counter) String() string { return strconv.Itoa(int(*c)) }

func (c *counter) Set(s string) error {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	if v {
		*c++
	}
	return nil
}

func (c *counter) IsBoolFlag() bool { return true }

// Helper to get env with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return strings.TrimSpace(value)
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrUsage, key, err)
	}
	return v, nil
}
