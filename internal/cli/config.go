package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/crocs-muni/scrutiny-viz/internal/report"
)

// EnvPrefix is the prefix of environment variables read as configuration.
const EnvPrefix = "SCRUTINY_"

// FailOnNone disables the --fail-on exit code.
const FailOnNone = "none"

// ConfigFileNames are looked up in the working directory when --config is
// not given.
var ConfigFileNames = []string{"scrutiny.yaml", "scrutiny.yml"}

// ValidLogFormats defines the allowed log formats.
var ValidLogFormats = []string{"text", "json"}

// Config holds the layered CLI configuration.
type Config struct {
	Schema        string `koanf:"schema"`
	Reference     string `koanf:"reference"`
	Profile       string `koanf:"profile"`
	Output        string `koanf:"output"`
	Store         string `koanf:"store"`
	Format        string `koanf:"format"`
	Verbose       bool   `koanf:"verbose"`
	LogFormat     string `koanf:"log_format"`
	EmitMatches   bool   `koanf:"emit_matches"`
	PrintDiffs    int    `koanf:"print_diffs"`
	PrintMatches  int    `koanf:"print_matches"`
	Parallelism   int    `koanf:"parallelism"`
	FailOn        string `koanf:"fail_on"`
	Strict        bool   `koanf:"strict"`
	ReferenceName string `koanf:"reference_name"`
	ProfileName   string `koanf:"profile_name"`
	MetricsFile   string `koanf:"metrics_file"`

	// File is the config file that was read, empty when none was found.
	File string `koanf:"-"`
}

func defaultConfig() map[string]any {
	return map[string]any{
		"format":        "text",
		"verbose":       false,
		"log_format":    "text",
		"emit_matches":  false,
		"print_diffs":   3,
		"print_matches": 0,
		"parallelism":   1,
		"fail_on":       FailOnNone,
		"strict":        false,
	}
}

// flagKeys maps flag names whose config key differs from the snake_case
// form of the flag name. An empty key means the flag is not configuration.
var flagKeys = map[string]string{
	"output-file": "output",
	"parallel":    "parallelism",
	"config":      "",
}

// findConfigFile returns explicit if set, else the first of ConfigFileNames
// present in the working directory.
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range ConfigFileNames {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// LoadConfig loads configuration from defaults, the config file, the
// environment and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(confmap.Provider(defaultConfig(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	used := findConfigFile(cfgFile)
	if used != "" {
		if err := k.Load(file.Provider(used), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", used, err)
		}
	}

	// 3. Environment: SCRUTINY_PRINT_DIFFS -> print_diffs
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Explicitly set flags
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			key, mapped := flagKeys[f.Name]
			if !mapped {
				key = strings.ReplaceAll(f.Name, "-", "_")
			}
			if key == "" {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.File = used

	if used != "" {
		base := filepath.Dir(used)
		cfg.Schema = resolvePathRelativeTo(cfg.Schema, base, k.Exists("schema") && !flagChanged(flags, "schema"))
		cfg.Reference = resolvePathRelativeTo(cfg.Reference, base, k.Exists("reference") && !flagChanged(flags, "reference"))
		cfg.Profile = resolvePathRelativeTo(cfg.Profile, base, k.Exists("profile") && !flagChanged(flags, "profile"))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// resolvePathRelativeTo anchors a relative path read from the config file at
// the file's directory. Paths given on the command line stay relative to the
// working directory.
func resolvePathRelativeTo(path, baseDir string, fromFile bool) string {
	if !fromFile || path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

func flagChanged(flags *pflag.FlagSet, name string) bool {
	if flags == nil {
		return false
	}
	f := flags.Lookup(name)
	return f != nil && f.Changed
}

// Validate checks enumerated and numeric settings.
func (c *Config) Validate() error {
	if !isValidFormat(c.Format) {
		return fmt.Errorf("invalid format %q: must be one of %v", c.Format, ValidFormats)
	}
	if !slices.Contains(ValidLogFormats, c.LogFormat) {
		return fmt.Errorf("invalid log format %q: must be one of %v", c.LogFormat, ValidLogFormats)
	}
	if _, _, err := c.FailOnSeverity(); err != nil {
		return err
	}
	if c.PrintDiffs < 0 {
		return fmt.Errorf("print_diffs must be >= 0, got %d", c.PrintDiffs)
	}
	if c.PrintMatches < 0 {
		return fmt.Errorf("print_matches must be >= 0, got %d", c.PrintMatches)
	}
	if c.Parallelism < 0 {
		return fmt.Errorf("parallelism must be >= 0, got %d", c.Parallelism)
	}
	return nil
}

// FailOnSeverity parses fail_on. ok is false when fail_on is "none" or empty.
func (c *Config) FailOnSeverity() (sev report.Severity, ok bool, err error) {
	v := strings.TrimSpace(c.FailOn)
	if v == "" || strings.EqualFold(v, FailOnNone) {
		return report.SeverityOK, false, nil
	}
	sev, err = report.ParseSeverity(v)
	if err != nil {
		return report.SeverityOK, false, fmt.Errorf("invalid fail_on: %w", err)
	}
	return sev, true, nil
}
