// Package config provides configuration management for assetpipe.
//
// Configuration is loaded from three sources with the following precedence
// (highest to lowest):
//  1. CLI flags
//  2. Environment variables (ASSETPIPE_ prefix)
//  3. Build descriptor file (.assetpipe.yaml, .assetpipe.yml or package.json)
//
// The descriptor carries the source/destination layout of the asset build
// (main, paths.*, vars.*, globs.*) next to the tool's own settings. A loaded
// Config is never mutated.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Supported log levels.
const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// Supported log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Supported stylesheet compilers.
const (
	CompilerAuto     = "auto"
	CompilerDartSass = "dart-sass"
	CompilerESBuild  = "esbuild"
)

// Descriptor keys referenced by task preconditions and error messages.
const (
	KeyMain         = "main"
	KeyPathsSrcSCSS = "paths.src.scss"
	KeyPathsSrcJS   = "paths.src.js"
	KeyPathsDistCSS = "paths.dist.css"
	KeyPathsDistJS  = "paths.dist.js"
	KeyVarsSCSSName = "vars.scssName"
	KeyGlobsDistCSS = "globs.distCss"
)

// DefaultTargets mirrors the browser baseline of a stock autoprefixer setup.
var DefaultTargets = []string{"chrome 58", "edge 16", "firefox 57", "safari 11"}

// candidateFiles are probed in order when no --config is given.
var candidateFiles = []string{".assetpipe.yaml", ".assetpipe.yml", "package.json"}

// Config represents the global configuration for assetpipe.
type Config struct {
	// LogLevel controls the verbosity of log output.
	// Valid values: debug, info, warn, error.
	LogLevel string `mapstructure:"log-level" json:"logLevel" yaml:"log-level"`

	// LogFormat controls the format of log output.
	// Valid values: text, json.
	LogFormat string `mapstructure:"log-format" json:"logFormat" yaml:"log-format"`

	// NoColor disables colored output.
	NoColor bool `mapstructure:"no-color" json:"noColor" yaml:"no-color"`

	// Quiet suppresses all log output below error level.
	Quiet bool `mapstructure:"quiet" json:"quiet" yaml:"quiet"`

	// DryRun prints pending writes as diffs instead of writing.
	DryRun bool `mapstructure:"dry-run" json:"dryRun" yaml:"dry-run"`

	// Main is the bundle entry file.
	Main string `mapstructure:"main" json:"main" yaml:"main"`

	Paths Paths `mapstructure:"paths" json:"paths" yaml:"paths"`
	Vars  Vars  `mapstructure:"vars" json:"vars" yaml:"vars"`
	Globs Globs `mapstructure:"globs" json:"globs" yaml:"globs"`

	// Targets are the browser targets of the prefixing pass, e.g. "safari 11".
	Targets []string `mapstructure:"targets" json:"targets" yaml:"targets"`

	// Minify minifies CSS and JS output.
	Minify bool `mapstructure:"minify" json:"minify" yaml:"minify"`

	// Compiler selects the stylesheet compiler: auto, dart-sass, esbuild.
	Compiler string `mapstructure:"compiler" json:"compiler" yaml:"compiler"`

	// SassBinary is the embedded dart-sass executable.
	SassBinary string `mapstructure:"sass-binary" json:"sassBinary" yaml:"sass-binary"`

	// Debounce is the quiet period of the watch loop.
	Debounce time.Duration `mapstructure:"debounce" json:"debounce" yaml:"debounce"`

	// Parallel bounds the number of concurrently running task actions.
	// Zero means GOMAXPROCS.
	Parallel int `mapstructure:"parallel" json:"parallel" yaml:"parallel"`

	// Watch overrides the default watch subscriptions.
	Watch []WatchRule `mapstructure:"watch" json:"watch,omitempty" yaml:"watch,omitempty"`

	// Tasks are user-defined shell tasks keyed by name.
	Tasks map[string]TaskDef `mapstructure:"tasks" json:"tasks,omitempty" yaml:"tasks,omitempty"`

	// ConfigFile is the resolved path to the descriptor file used.
	// Set after Load() — not read from config itself.
	ConfigFile string `mapstructure:"-" json:"-" yaml:"-"`

	// BaseDir is the absolute directory relative descriptor paths resolve
	// against: the descriptor's directory, or the working directory.
	BaseDir string `mapstructure:"-" json:"-" yaml:"-"`
}

// Paths holds the source and destination layout.
type Paths struct {
	Src  SrcPaths  `mapstructure:"src" json:"src" yaml:"src"`
	Dist DistPaths `mapstructure:"dist" json:"dist" yaml:"dist"`

	// SCSS lists include search paths for the stylesheet compiler.
	SCSS []string `mapstructure:"scss" json:"scss,omitempty" yaml:"scss,omitempty"`
}

// SrcPaths locates sources.
type SrcPaths struct {
	SCSS string `mapstructure:"scss" json:"scss" yaml:"scss"`
	JS   string `mapstructure:"js" json:"js" yaml:"js"`
}

// DistPaths locates build output directories.
type DistPaths struct {
	CSS string `mapstructure:"css" json:"css" yaml:"css"`
	JS  string `mapstructure:"js" json:"js" yaml:"js"`
}

// Vars holds named values.
type Vars struct {
	SCSSName string `mapstructure:"scssName" json:"scssName" yaml:"scssName"`
}

// Globs holds named file patterns.
type Globs struct {
	DistCSS string `mapstructure:"distCss" json:"distCss" yaml:"distCss"`
}

// WatchRule maps a glob to the tasks a matching change triggers.
type WatchRule struct {
	Pattern string   `mapstructure:"pattern" json:"pattern" yaml:"pattern"`
	Tasks   []string `mapstructure:"tasks" json:"tasks" yaml:"tasks"`
}

// TaskDef is a user-defined shell task.
type TaskDef struct {
	Description string   `mapstructure:"description" json:"description,omitempty" yaml:"description,omitempty"`
	Deps        []string `mapstructure:"deps" json:"deps,omitempty" yaml:"deps,omitempty"`
	Run         string   `mapstructure:"run" json:"run" yaml:"run"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		LogLevel:  LogLevelInfo,
		LogFormat: LogFormatText,
		Targets:   append([]string(nil), DefaultTargets...),
		Compiler:  CompilerAuto,
		Debounce:  200 * time.Millisecond,
		BaseDir:   ".",
	}
}

// Validate checks that all config values are valid. Descriptor fields that
// only some tasks need are checked by Require.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		// valid
	default:
		return &ConfigurationError{Field: "log-level", Reason: fmt.Sprintf("invalid log level %q: must be one of debug, info, warn, error", c.LogLevel)}
	}

	switch c.LogFormat {
	case LogFormatText, LogFormatJSON:
		// valid
	default:
		return &ConfigurationError{Field: "log-format", Reason: fmt.Sprintf("invalid log format %q: must be one of text, json", c.LogFormat)}
	}

	switch c.Compiler {
	case CompilerAuto, CompilerDartSass, CompilerESBuild:
		// valid
	default:
		return &ConfigurationError{Field: "compiler", Reason: fmt.Sprintf("invalid compiler %q: must be one of auto, dart-sass, esbuild", c.Compiler)}
	}

	if c.Parallel < 0 {
		return &ConfigurationError{Field: "parallel", Reason: "must not be negative"}
	}

	if c.Debounce < 0 {
		return &ConfigurationError{Field: "debounce", Reason: "must not be negative"}
	}

	if _, err := ParseTargets(c.Targets); err != nil {
		return err
	}

	for i, rule := range c.Watch {
		if strings.TrimSpace(rule.Pattern) == "" {
			return &ConfigurationError{Field: fmt.Sprintf("watch[%d].pattern", i), Reason: "required"}
		}

		if len(rule.Tasks) == 0 {
			return &ConfigurationError{Field: fmt.Sprintf("watch[%d].tasks", i), Reason: "at least one task is required"}
		}
	}

	for name, def := range c.Tasks {
		if strings.TrimSpace(def.Run) == "" && len(def.Deps) == 0 {
			return &ConfigurationError{Task: name, Reason: "needs a run script or dependencies"}
		}
	}

	return nil
}

// TaskName returns the canonical form of a task name. Descriptor keys are
// case-insensitive, so every reference to a task goes through TaskName.
func TaskName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// normalizeTaskNames applies TaskName to every task reference. The keys of
// the tasks map are already lowercased when the descriptor is read.
func (c *Config) normalizeTaskNames() {
	for name, def := range c.Tasks {
		for i, dep := range def.Deps {
			def.Deps[i] = TaskName(dep)
		}

		c.Tasks[name] = def
	}

	for i := range c.Watch {
		for j, name := range c.Watch[i].Tasks {
			c.Watch[i].Tasks[j] = TaskName(name)
		}
	}
}

// Require reports a ConfigurationError naming every key in keys that has no
// value.
func (c *Config) Require(keys ...string) error {
	var missing []string

	for _, key := range keys {
		if strings.TrimSpace(c.value(key)) == "" {
			missing = append(missing, key)
		}
	}

	if len(missing) > 0 {
		return &ConfigurationError{Field: strings.Join(missing, ", "), Reason: "required"}
	}

	return nil
}

func (c *Config) value(key string) string {
	switch key {
	case KeyMain:
		return c.Main
	case KeyPathsSrcSCSS:
		return c.Paths.Src.SCSS
	case KeyPathsSrcJS:
		return c.Paths.Src.JS
	case KeyPathsDistCSS:
		return c.Paths.Dist.CSS
	case KeyPathsDistJS:
		return c.Paths.Dist.JS
	case KeyVarsSCSSName:
		return c.Vars.SCSSName
	case KeyGlobsDistCSS:
		return c.Globs.DistCSS
	}

	return ""
}

// EffectiveLogLevel returns the log level to use. When Quiet is true the log
// level is overridden to "error" regardless of the configured LogLevel.
func (c *Config) EffectiveLogLevel() string {
	if c.Quiet {
		return LogLevelError
	}

	return c.LogLevel
}

// EffectiveParallel returns the action concurrency limit.
func (c *Config) EffectiveParallel() int {
	if c.Parallel > 0 {
		return c.Parallel
	}

	return runtime.GOMAXPROCS(0)
}

// Path resolves a descriptor path against BaseDir.
func (c *Config) Path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}

	return filepath.Join(c.BaseDir, p)
}

// PathList resolves every element of ps against BaseDir.
func (c *Config) PathList(ps []string) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, c.Path(p))
	}

	return out
}

// StylesheetSource is the entry stylesheet: paths.src.scss + vars.scssName.
// When paths.src.scss is a file-name prefix rather than a directory the two
// are concatenated.
func (c *Config) StylesheetSource() string {
	if c.scssIsPrefix() {
		return c.Path(c.Paths.Src.SCSS + c.Vars.SCSSName)
	}

	return c.Path(filepath.Join(c.Paths.Src.SCSS, c.Vars.SCSSName))
}

// scssDir is the directory holding the stylesheet sources.
func (c *Config) scssDir() string {
	if c.scssIsPrefix() {
		return filepath.Dir(c.Paths.Src.SCSS)
	}

	return c.Paths.Src.SCSS
}

// scssIsPrefix reports whether paths.src.scss names a file-name prefix: it
// neither ends in a separator nor names an existing directory.
func (c *Config) scssIsPrefix() bool {
	p := c.Paths.Src.SCSS
	if p == "" || strings.HasSuffix(p, "/") || strings.HasSuffix(p, string(filepath.Separator)) {
		return false
	}

	info, err := os.Stat(c.Path(p))

	return err != nil || !info.IsDir()
}

// StylesheetOutput is the compiled stylesheet path: paths.dist.css +
// vars.scssName with a .css extension.
func (c *Config) StylesheetOutput() string {
	name := strings.TrimSuffix(c.Vars.SCSSName, filepath.Ext(c.Vars.SCSSName)) + ".css"

	return c.Path(filepath.Join(c.Paths.Dist.CSS, name))
}

// BundleOutput is the bundle path: paths.dist.js + base(main).
func (c *Config) BundleOutput() string {
	return c.Path(filepath.Join(c.Paths.Dist.JS, filepath.Base(c.Main)))
}

// WatchRules returns the configured watch subscriptions or, when none are
// configured, one rule per source tree known to the descriptor.
func (c *Config) WatchRules() []WatchRule {
	if len(c.Watch) > 0 {
		return c.Watch
	}

	var rules []WatchRule

	if c.Paths.Src.SCSS != "" {
		rules = append(rules, WatchRule{
			Pattern: filepath.ToSlash(filepath.Join(c.scssDir(), "**", "*.{scss,sass,css}")),
			Tasks:   []string{"scss"},
		})
	}

	if c.Paths.Src.JS != "" {
		rules = append(rules, WatchRule{Pattern: c.Paths.Src.JS, Tasks: []string{"bundle"}})
	}

	return rules
}

// Load initialises configuration from flags, environment variables, and an
// optional descriptor file. A fresh viper instance is used on every call so
// that Load is safe for concurrent tests.
func Load(cmd *cobra.Command, configFile string) (*Config, error) {
	v := viper.New()

	setDefaults(v)
	configureEnv(v)

	if err := configureFile(v, configFile); err != nil {
		return nil, err
	}

	if err := bindFlags(v, cmd); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &ConfigurationError{Reason: "unmarshaling config", Err: err}
	}

	// Store the resolved descriptor path so downstream code can locate it.
	cfg.ConfigFile = v.ConfigFileUsed()

	base, err := baseDir(cfg.ConfigFile)
	if err != nil {
		return nil, err
	}

	cfg.BaseDir = base
	cfg.normalizeTaskNames()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults registers default values in viper. Every descriptor key gets a
// default so that AutomaticEnv can resolve it during Unmarshal.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("log-level", d.LogLevel)
	v.SetDefault("log-format", d.LogFormat)
	v.SetDefault("no-color", false)
	v.SetDefault("quiet", false)
	v.SetDefault("dry-run", false)
	v.SetDefault(KeyMain, "")
	v.SetDefault(KeyPathsSrcSCSS, "")
	v.SetDefault(KeyPathsSrcJS, "")
	v.SetDefault(KeyPathsDistCSS, "")
	v.SetDefault(KeyPathsDistJS, "")
	v.SetDefault(KeyVarsSCSSName, "")
	v.SetDefault(KeyGlobsDistCSS, "")
	v.SetDefault("targets", d.Targets)
	v.SetDefault("minify", false)
	v.SetDefault("compiler", d.Compiler)
	v.SetDefault("sass-binary", "")
	v.SetDefault("debounce", d.Debounce)
	v.SetDefault("parallel", 0)
}

// configureEnv sets up environment variable support.
func configureEnv(v *viper.Viper) {
	v.SetEnvPrefix("ASSETPIPE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
}

// configureFile sets up the descriptor source.
func configureFile(v *viper.Viper, configFile string) error {
	if configFile != "" {
		v.SetConfigFile(configFile)

		if err := v.ReadInConfig(); err != nil {
			return &ConfigurationError{Reason: fmt.Sprintf("reading config file %q", configFile), Err: err}
		}

		return nil
	}

	// Auto-discovery mode.
	for _, name := range candidateFiles {
		if _, err := os.Stat(name); err != nil {
			continue
		}

		v.SetConfigFile(name)

		if err := v.ReadInConfig(); err != nil {
			// Found a file but it was malformed.
			return &ConfigurationError{Reason: fmt.Sprintf("parsing config file %q", name), Err: err}
		}

		return nil
	}

	// No descriptor → defaults only; tasks report what they miss.
	return nil
}

// bindFlags walks from cmd up to the root and binds all PersistentFlags.
func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	if cmd == nil {
		return nil
	}

	// Bind the current command's own flags.
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}

	// Walk up to root and bind all persistent flags at each level.
	for c := cmd; c != nil; c = c.Parent() {
		if err := v.BindPFlags(c.PersistentFlags()); err != nil {
			return fmt.Errorf("binding persistent flags: %w", err)
		}
	}

	return nil
}

func baseDir(configFile string) (string, error) {
	if configFile == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("resolving working directory: %w", err)
		}

		return wd, nil
	}

	abs, err := filepath.Abs(filepath.Dir(configFile))
	if err != nil {
		return "", fmt.Errorf("resolving descriptor directory: %w", err)
	}

	return abs, nil
}

// ---------------------------------------------------------------------------
// Context helpers
// ---------------------------------------------------------------------------

type ctxKey struct{}

// NewContext returns a child context carrying cfg.
func NewContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, ctxKey{}, cfg)
}

// FromContext extracts a Config from ctx, falling back to Default().
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(ctxKey{}).(*Config); ok {
		return cfg
	}

	return Default()
}

// IsConfigurationError reports whether err is or wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError

	return errors.As(err, &cfgErr)
}
