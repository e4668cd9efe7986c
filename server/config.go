package server

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/jessevdk/go-flags"
	"go.uber.org/zap/zapcore"

	"github.com/kcnet/incentives/logging"
	"github.com/kcnet/incentives/sampling"
	"github.com/kcnet/incentives/staking"
)

const (
	defaultDbDirName      = "db"
	defaultLogDirname     = "logs"
	defaultMaxLogFiles    = 3
	defaultMaxLogFileSize = 10
	defaultRESTPort       = 8080
)

// Config defines the configuration options for incentived.
//
//nolint:lll
type Config struct {
	HomeDir          string  `long:"homedir"          description:"The base directory that contains the ledger, logs, configuration file, etc."`
	ConfigFile       string  `long:"configfile"       description:"Path to configuration file"                                                  short:"c"`
	DbDir            string  `long:"dbdir"            description:"The directory to store the ledger within"`
	LogDir           string  `long:"logdir"           description:"Directory to log output."`
	DebugLog         bool    `long:"debuglog"         description:"Enable debug logs"`
	JSONLog          bool    `long:"jsonlog"          description:"Whether to log in JSON format"`
	MaxLogFiles      int     `long:"maxlogfiles"      description:"Maximum logfiles to keep (0 for no rotation)"`
	MaxLogFileSize   int     `long:"maxlogfilesize"   description:"Maximum logfile size in MB"`
	RawRESTListener  string  `long:"restlisten"       description:"The interface/port/socket to listen for REST connections"                    short:"w"`
	MetricsPort      *uint16 `long:"metrics-port"     description:"The port to expose metrics"`
	AllowedOrigins   string  `long:"allowed-origins"  description:"Comma separated list of origins allowed to call the REST API"`
	NetworkParams    string  `long:"network-params"   description:"YAML file describing the devnet (nodes, accounts, block time)"`
	DisableProducer  bool    `long:"disable-producer" description:"Do not produce devnet blocks on a timer"`
	DisableDevnetAPI bool    `long:"disable-devnet-api" description:"Do not mount the /v1/devnet routes"`

	CPUProfile string `long:"cpuprofile" description:"Write CPU profile to the specified file"`
	Profile    string `long:"profile"    description:"Enable HTTP profiling on given port -- must be between 1024 and 65535"`

	Sampling sampling.Config `group:"Sampling" namespace:"sampling"`
	Staking  staking.Config  `group:"Staking"  namespace:"staking"`
}

// DefaultConfig returns a config with default hardcoded values.
func DefaultConfig() *Config {
	homeDir := "./incentives"
	cacheDir, err := os.UserCacheDir()
	if err == nil {
		homeDir = filepath.Join(cacheDir, "incentives")
	}

	return &Config{
		HomeDir:         homeDir,
		DbDir:           filepath.Join(homeDir, defaultDbDirName),
		LogDir:          filepath.Join(homeDir, defaultLogDirname),
		MaxLogFiles:     defaultMaxLogFiles,
		MaxLogFileSize:  defaultMaxLogFileSize,
		RawRESTListener: fmt.Sprintf("localhost:%d", defaultRESTPort),
		AllowedOrigins:  "*",
		Sampling:        sampling.DefaultConfig(),
		Staking:         staking.DefaultConfig(),
	}
}

// ParseFlags reads values from command line arguments.
func ParseFlags(preCfg *Config) (*Config, error) {
	if _, err := flags.Parse(preCfg); err != nil {
		return nil, err
	}
	return preCfg, nil
}

// ReadConfigFile reads config from an ini file.
// It uses the provided `cfg` as a base config and overrides it with the values
// from the config file.
func ReadConfigFile(cfg *Config) (*Config, error) {
	if cfg.ConfigFile == "" {
		return cfg, nil
	}
	logging.FromContext(context.Background()).Sugar().Debugf("reading config from %s", cfg.ConfigFile)
	if err := flags.IniParse(cfg.ConfigFile, cfg); err != nil {
		return nil, fmt.Errorf("failed to read config from %v: %w", cfg.ConfigFile, err)
	}

	return cfg, nil
}

// SetupConfig expands paths and initializes filesystem.
func SetupConfig(cfg *Config) (*Config, error) {
	// Paths left at their defaults follow a custom home directory.
	defaultCfg := DefaultConfig()
	if cfg.HomeDir != defaultCfg.HomeDir {
		if cfg.LogDir == defaultCfg.LogDir {
			cfg.LogDir = filepath.Join(cfg.HomeDir, defaultLogDirname)
		}
		if cfg.DbDir == defaultCfg.DbDir {
			cfg.DbDir = filepath.Join(cfg.HomeDir, defaultDbDirName)
		}
	}

	if err := os.MkdirAll(cfg.HomeDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create %v: %w", cfg.HomeDir, err)
	}

	cfg.DbDir = cleanAndExpandPath(cfg.DbDir)
	cfg.LogDir = cleanAndExpandPath(cfg.LogDir)
	cfg.NetworkParams = cleanAndExpandPath(cfg.NetworkParams)

	return cfg, nil
}

// cleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	if path == "" {
		return ""
	}

	if strings.HasPrefix(path, "~") {
		var homeDir string
		user, err := user.Current()
		if err == nil {
			homeDir = user.HomeDir
		} else {
			homeDir = os.Getenv("HOME")
		}

		path = strings.Replace(path, "~", homeDir, 1)
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows-style %VARIABLE%,
	// but the variables can still be expanded via POSIX-style $VARIABLE.
	return filepath.Clean(os.ExpandEnv(path))
}

// implement zap.ObjectMarshaler interface.
func (c Config) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("homedir", c.HomeDir)
	enc.AddString("dbdir", c.DbDir)
	enc.AddString("logdir", c.LogDir)
	enc.AddString("restlisten", c.RawRESTListener)
	if c.MetricsPort != nil {
		enc.AddUint16("metrics-port", *c.MetricsPort)
	}
	enc.AddString("network-params", c.NetworkParams)
	enc.AddBool("disable-producer", c.DisableProducer)
	enc.AddBool("disable-devnet-api", c.DisableDevnetAPI)
	if err := enc.AddObject("sampling", c.Sampling); err != nil {
		return err
	}
	return enc.AddObject("staking", c.Staking)
}
