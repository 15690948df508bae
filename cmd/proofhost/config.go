package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/zkforge/proofhost/host"
	"github.com/zkforge/proofhost/internal"
)

const (
	defaultAPIHost   = "0.0.0.0"
	defaultAPIPort   = 9090
	defaultLogLevel  = "info"
	defaultLogOutput = "stdout"
	defaultDatadir   = ".proofhost" // Will be prefixed with the user's home directory
	defaultKeyID     = "threshold-v1"
)

// Version is the build version, set at build time with -ldflags.
var Version = internal.Version

// Config holds the application configuration.
type Config struct {
	API      APIConfig
	Verifier VerifierConfig
	Prover   ProverConfig
	Log      LogConfig
	Datadir  string

	// verify subcommand arguments
	Package string `mapstructure:"package"`
	Owner   string `mapstructure:"owner"`
	Index   uint64 `mapstructure:"index"`
	Balance uint64 `mapstructure:"balance"`
}

// APIConfig holds the API-specific configuration.
type APIConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// VerifierConfig holds the verifier host configuration.
type VerifierConfig struct {
	Budget        uint64 `mapstructure:"budget"`
	TrustPrepared bool   `mapstructure:"trustprepared"`
	KeyID         string `mapstructure:"keyid"`
}

// ProverConfig holds the proving-side configuration.
type ProverConfig struct {
	Secret    uint64 `mapstructure:"secret"`
	Threshold uint64 `mapstructure:"threshold"`
	Mode      string `mapstructure:"mode"`
	Out       string `mapstructure:"out"`
	ABIOut    string `mapstructure:"abiout"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Output string `mapstructure:"output"`
}

// loadConfig loads configuration from flags, environment variables and
// defaults for the given subcommand.
func loadConfig(command string, args []string) (*Config, error) {
	v := viper.New()

	userHomeDir, err := os.UserHomeDir()
	if err != nil {
		userHomeDir = "."
	}
	defaultDatadirPath := filepath.Join(userHomeDir, defaultDatadir)

	v.SetDefault("api.host", defaultAPIHost)
	v.SetDefault("api.port", defaultAPIPort)
	v.SetDefault("verifier.budget", uint64(host.DefaultComputeBudget))
	v.SetDefault("verifier.keyid", defaultKeyID)
	v.SetDefault("prover.mode", "standard")
	v.SetDefault("log.level", defaultLogLevel)
	v.SetDefault("log.output", defaultLogOutput)
	v.SetDefault("datadir", defaultDatadirPath)

	fs := flag.NewFlagSet(command, flag.ExitOnError)
	fs.SortFlags = false
	fs.StringP("datadir", "d", defaultDatadirPath, "data directory for database and key files")
	fs.StringP("log.level", "l", defaultLogLevel, "log level (debug, info, warn, error, fatal)")
	fs.StringP("log.output", "o", defaultLogOutput, "log output (stdout, stderr or filepath)")

	switch command {
	case "serve":
		fs.StringP("api.host", "a", defaultAPIHost, "API host")
		fs.IntP("api.port", "p", defaultAPIPort, "API port")
		fs.Uint64("verifier.budget", host.DefaultComputeBudget, "per-instruction compute budget")
		fs.Bool("verifier.trustprepared", false, "take submitted prepared-input points as-is")
		fs.String("verifier.keyid", defaultKeyID, "verifying key id to verify against")
	case "prove":
		fs.Uint64("prover.secret", 0, "secret witness value")
		fs.Uint64("prover.threshold", 0, "public threshold the secret must meet")
		fs.StringP("prover.mode", "m", "standard", "packaging mode (lite, standard or prepared)")
		fs.String("prover.out", "", "write the proof package JSON to this file (default stdout)")
		fs.String("prover.abiout", "", "also write the EVM ABI encoding to this file")
	case "verify":
		fs.String("package", "", "proof package JSON file (required)")
		fs.String("owner", "", "owner address in hex (required)")
		fs.Uint64("index", 0, "record index")
		fs.Uint64("balance", 0, "require this minimum account balance")
		fs.Uint64("verifier.budget", host.DefaultComputeBudget, "per-instruction compute budget")
		fs.Bool("verifier.trustprepared", false, "take submitted prepared-input points as-is")
		fs.String("verifier.keyid", defaultKeyID, "verifying key id to verify against")
	}

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "proofhost %s v%s\n\n", command, Version)
		fmt.Fprintf(os.Stderr, "Usage: proofhost %s [flags]\n\n", command)
		fmt.Fprintf(os.Stderr, "Flags:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment variables are also available with the same name as flags,\n")
		fmt.Fprintf(os.Stderr, "  with dots (.) replaced by underscores (_) and a PROOFHOST_ prefix.\n")
		fmt.Fprintf(os.Stderr, "  For example, PROOFHOST_API_PORT or PROOFHOST_LOG_LEVEL\n")
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v.SetEnvPrefix("PROOFHOST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("error binding flags: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return cfg, nil
}
