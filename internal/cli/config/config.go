package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/kerrakir/config-converter/internal/cli/repo"
	"github.com/kerrakir/config-converter/internal/cli/report"
	"github.com/kerrakir/config-converter/internal/cli/reqfile"
	"github.com/kerrakir/config-converter/pkg/orchestrator/encoding"
	"github.com/kerrakir/config-converter/pkg/orchestrator/ifmap"
	"github.com/kerrakir/config-converter/pkg/orchestrator/request"
	"github.com/kerrakir/config-converter/pkg/orchestrator/resolver"
)

const (
	EnvPrefix         = "CONVCTL"
	DefaultConfigName = "convctl"

	DefaultStartTimeout  = "3s"
	DefaultWatchDebounce = "300ms"

	PackagedAuto  = "auto"
	PackagedTrue  = "true"
	PackagedFalse = "false"

	LogFormatText = "text"
	LogFormatJSON = "json"
)

// ErrConfigValidation wraps every semantic configuration problem.
var ErrConfigValidation = errors.New("configuration validation failed")

// ConverterConfig locates the converter executable.
type ConverterConfig struct {
	Name         string `mapstructure:"name"`
	BundleRoot   string `mapstructure:"bundleRoot"`
	RepoRoot     string `mapstructure:"repoRoot"`
	Packaged     string `mapstructure:"packaged"`
	BuildTool    string `mapstructure:"buildTool"`
	EntryPoint   string `mapstructure:"entryPoint"`
	StartTimeout string `mapstructure:"startTimeout"`
}

// WatchConfig controls re-running jobs when the input file changes.
type WatchConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Debounce string `mapstructure:"debounce"`
}

// Options is the merged configuration of a convctl invocation.
type Options struct {
	Input         string   `mapstructure:"input"`
	Output        string   `mapstructure:"output"`
	From          string   `mapstructure:"from"`
	To            string   `mapstructure:"to"`
	IfMap         []string `mapstructure:"ifMap"`
	IfMapEnabled  bool     `mapstructure:"ifMapEnabled"`
	IfIndex       string   `mapstructure:"ifIndex"`
	IfIndexPrefix string   `mapstructure:"ifIndexPrefix"`
	RequestFile   string   `mapstructure:"requestFile"`

	Converter ConverterConfig `mapstructure:"converter"`
	Watch     WatchConfig     `mapstructure:"watch"`

	TUIEnabled       bool     `mapstructure:"tuiEnabled"`
	Verbose          bool     `mapstructure:"verbose"`
	OutputFormat     string   `mapstructure:"outputFormat"`
	LogFormat        string   `mapstructure:"logFormat"`
	HistoryFile      string   `mapstructure:"historyFile"`
	PreviewEncodings []string `mapstructure:"previewEncodings"`

	// Derived
	ConfigFilePath string        `mapstructure:"-"`
	ProfileName    string        `mapstructure:"-"`
	AppVersion     string        `mapstructure:"-"`
	Packaged       bool          `mapstructure:"-"`
	StartTimeout   time.Duration `mapstructure:"-"`
	WatchDebounce  time.Duration `mapstructure:"-"`
	ReportFormat   report.Format `mapstructure:"-"`
	// Request holds the form values (from flags, config and an optional request
	// file). It is validated only when a job is started.
	Request request.Options `mapstructure:"-"`
	Logger  slog.Handler    `mapstructure:"-"`
}

// flagKeys maps flag names to the configuration keys they override.
var flagKeys = map[string]string{
	"input":             "input",
	"output":            "output",
	"from":              "from",
	"to":                "to",
	"if-map":            "ifMap",
	"if-index":          "ifIndex",
	"if-index-prefix":   "ifIndexPrefix",
	"request-file":      "requestFile",
	"bundle-root":       "converter.bundleRoot",
	"repo-root":         "converter.repoRoot",
	"packaged":          "converter.packaged",
	"converter-name":    "converter.name",
	"start-timeout":     "converter.startTimeout",
	"output-format":     "outputFormat",
	"log-format":        "logFormat",
	"watch":             "watch.enabled",
	"watch-debounce":    "watch.debounce",
	"history-file":      "historyFile",
	"preview-encodings": "previewEncodings",
	"verbose":           "verbose",
}

// LoadAndValidate merges defaults, the config file, the selected profile, CONVCTL_*
// environment variables and flags, then validates the result and derives durations,
// paths, the converter location and the logger.
func LoadAndValidate(cfgFile, profileName, appVersion string, verbose bool, flags *pflag.FlagSet) (Options, *slog.Logger, error) {
	var opts Options
	v := viper.New()

	tempLevel := slog.LevelInfo
	if verbose {
		tempLevel = slog.LevelDebug
	}
	tempLogger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: tempLevel}))

	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", DefaultConfigName))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && cfgFile == "" {
			tempLogger.Debug("No configuration file found, using defaults/env/flags.")
		} else {
			used := cfgFile
			if used == "" {
				used = DefaultConfigName + ".yaml"
			}
			tempLogger.Error("Error reading configuration file", slog.String("path", used), slog.Any("error", err))
			return opts, tempLogger, fmt.Errorf("error reading config file '%s': %w", used, err)
		}
	} else {
		opts.ConfigFilePath = v.ConfigFileUsed()
		tempLogger.Debug("Using configuration file", slog.String("path", opts.ConfigFilePath))
	}

	opts.ProfileName = profileName
	if profileName != "" {
		profileKey := "profiles." + profileName
		sub := v.Sub(profileKey)
		if sub == nil {
			err := fmt.Errorf("%w: profile '%s' not found in config file '%s'", ErrConfigValidation, profileName, v.ConfigFileUsed())
			tempLogger.Error(err.Error())
			return opts, tempLogger, err
		}
		if err := v.MergeConfigMap(sub.AllSettings()); err != nil {
			return opts, tempLogger, fmt.Errorf("error merging profile '%s': %w", profileName, err)
		}
		tempLogger.Debug("Applied configuration profile", slog.String("profile", profileName))
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			flag := flags.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return opts, tempLogger, fmt.Errorf("error binding flag '--%s': %w", name, err)
			}
		}
	}

	opts.AppVersion = appVersion
	if err := v.Unmarshal(&opts); err != nil {
		tempLogger.Error("Error unmarshalling configuration", slog.Any("error", err))
		return opts, tempLogger, fmt.Errorf("error unmarshalling configuration: %w", err)
	}

	// Negated booleans are applied by hand.
	if flags != nil {
		if flags.Changed("no-tui") {
			if off, _ := flags.GetBool("no-tui"); off {
				opts.TUIEnabled = false
			}
		}
		if flags.Changed("no-if-map") {
			if off, _ := flags.GetBool("no-if-map"); off {
				opts.IfMapEnabled = false
			}
		}
	}

	if opts.LogFormat != LogFormatText && opts.LogFormat != LogFormatJSON {
		err := fmt.Errorf("%w: invalid value '%s' for key 'logFormat' (flag --log-format). Allowed: [text json]", ErrConfigValidation, opts.LogFormat)
		tempLogger.Error(err.Error())
		return opts, tempLogger, err
	}
	opts.Logger = NewLogHandler(os.Stderr, opts.LogFormat, opts.Verbose)
	logger := slog.New(opts.Logger)

	if err := validateAndDeriveOptions(&opts, logger, flags); err != nil {
		return opts, logger, err
	}

	logger.Debug("Configuration loading and validation complete",
		slog.String("configFile", opts.ConfigFilePath),
		slog.String("profile", opts.ProfileName),
		slog.Bool("packaged", opts.Packaged),
		slog.String("repoRoot", opts.Converter.RepoRoot),
	)
	return opts, logger, nil
}

// NewLogHandler builds the CLI's slog handler writing to w.
func NewLogHandler(w io.Writer, format string, verbose bool) slog.Handler {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	hopts := &slog.HandlerOptions{Level: level}
	if format == LogFormatJSON {
		return slog.NewJSONHandler(w, hopts)
	}
	return slog.NewTextHandler(w, hopts)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("from", string(request.DialectCisco))
	v.SetDefault("to", string(request.DialectHuawei))
	v.SetDefault("ifMap", []string{})
	v.SetDefault("ifMapEnabled", true)
	v.SetDefault("ifIndex", string(request.IndexKeep))
	v.SetDefault("ifIndexPrefix", request.DefaultIndexPrefix)
	v.SetDefault("requestFile", "")

	v.SetDefault("converter.name", resolver.DefaultBinaryName())
	v.SetDefault("converter.bundleRoot", "")
	v.SetDefault("converter.repoRoot", "")
	v.SetDefault("converter.packaged", PackagedAuto)
	v.SetDefault("converter.buildTool", resolver.DefaultBuildTool)
	v.SetDefault("converter.entryPoint", resolver.DefaultEntryPoint)
	v.SetDefault("converter.startTimeout", DefaultStartTimeout)

	v.SetDefault("watch.enabled", false)
	v.SetDefault("watch.debounce", DefaultWatchDebounce)

	v.SetDefault("tuiEnabled", true)
	v.SetDefault("verbose", false)
	v.SetDefault("outputFormat", string(report.FormatText))
	v.SetDefault("logFormat", LogFormatText)
	v.SetDefault("historyFile", "")
	v.SetDefault("previewEncodings", encoding.DefaultCandidates)
}

func validateAndDeriveOptions(opts *Options, logger *slog.Logger, flags *pflag.FlagSet) error {
	fail := func(key, value string, err error) error {
		logger.Error(err.Error(), slog.String("key", key), slog.String("value", value))
		return err
	}

	// === Enums ===
	if _, err := request.ParseDialect(opts.From); err != nil {
		return fail("from", opts.From, fmt.Errorf("%w: invalid value '%s' for key 'from'. Allowed: %v", ErrConfigValidation, opts.From, request.Dialects))
	}
	if _, err := request.ParseDialect(opts.To); err != nil {
		return fail("to", opts.To, fmt.Errorf("%w: invalid value '%s' for key 'to'. Allowed: %v", ErrConfigValidation, opts.To, request.Dialects))
	}
	if _, err := request.ParseIndexPolicy(opts.IfIndex); err != nil {
		return fail("ifIndex", opts.IfIndex, fmt.Errorf("%w: invalid value '%s' for key 'ifIndex'. Allowed: [keep 2 3]", ErrConfigValidation, opts.IfIndex))
	}
	format, err := report.ParseFormat(opts.OutputFormat)
	if err != nil {
		return fail("outputFormat", opts.OutputFormat, fmt.Errorf("%w: %w", ErrConfigValidation, err))
	}
	opts.ReportFormat = format

	packaged := strings.ToLower(strings.TrimSpace(opts.Converter.Packaged))
	allowedPackaged := []string{PackagedAuto, PackagedTrue, PackagedFalse}
	if !slices.Contains(allowedPackaged, packaged) {
		return fail("converter.packaged", opts.Converter.Packaged, fmt.Errorf("%w: invalid value '%s' for key 'converter.packaged' (flag --packaged). Allowed: %v", ErrConfigValidation, opts.Converter.Packaged, allowedPackaged))
	}

	// === Durations ===
	opts.StartTimeout, err = parseDuration(opts.Converter.StartTimeout)
	if err != nil || opts.StartTimeout <= 0 {
		return fail("converter.startTimeout", opts.Converter.StartTimeout, fmt.Errorf("%w: invalid start timeout '%s' (flag --start-timeout)", ErrConfigValidation, opts.Converter.StartTimeout))
	}
	opts.WatchDebounce, err = parseDuration(opts.Watch.Debounce)
	if err != nil || opts.WatchDebounce < 0 {
		return fail("watch.debounce", opts.Watch.Debounce, fmt.Errorf("%w: invalid watch debounce '%s' (flag --watch-debounce)", ErrConfigValidation, opts.Watch.Debounce))
	}

	// === Converter location ===
	exe, _ := os.Executable()
	switch packaged {
	case PackagedTrue:
		opts.Packaged = true
	case PackagedFalse:
		opts.Packaged = false
	}
	if opts.Converter.BundleRoot == "" && exe != "" {
		opts.Converter.BundleRoot = filepath.Dir(exe)
	}
	if opts.Converter.RepoRoot == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return fail("converter.repoRoot", "", fmt.Errorf("%w: cannot determine working directory: %w", ErrConfigValidation, err))
		}
		root, err := repo.FindRoot(cwd)
		if err != nil {
			logger.Debug("Not inside a git repository, using working directory as repository root", slog.String("dir", cwd))
			root = cwd
		}
		opts.Converter.RepoRoot = root
	}
	for _, p := range []*string{&opts.Converter.BundleRoot, &opts.Converter.RepoRoot} {
		if abs, err := filepath.Abs(*p); err == nil {
			*p = abs
		}
	}
	if opts.Converter.Name == "" {
		opts.Converter.Name = resolver.DefaultBinaryName()
	}
	if packaged == PackagedAuto {
		opts.Packaged = autoPackaged(exe, opts.Converter)
	}

	// === Request form ===
	req, err := requestOptions(opts, flags)
	if err != nil {
		return fail("requestFile", opts.RequestFile, err)
	}
	opts.Request = req
	if opts.Watch.Enabled && req.InputPath == "" {
		return fail("watch.enabled", "true", fmt.Errorf("%w: watch mode needs an input file (-i, --input)", ErrConfigValidation))
	}
	return nil
}

// requestOptions builds the form from configuration values. A request file supplies
// the base values; flags set explicitly on the command line still win.
func requestOptions(opts *Options, flags *pflag.FlagSet) (request.Options, error) {
	rows, err := parseRows(opts.IfMap)
	if err != nil {
		return request.Options{}, fmt.Errorf("%w: %w", ErrConfigValidation, err)
	}
	form := request.Options{
		InputPath:      opts.Input,
		OutputPath:     opts.Output,
		SourceDialect:  opts.From,
		TargetDialect:  opts.To,
		Rows:           rows,
		MappingEnabled: opts.IfMapEnabled,
		IndexPolicy:    opts.IfIndex,
		IndexPrefix:    opts.IfIndexPrefix,
	}

	if opts.RequestFile != "" {
		f, err := reqfile.Load(opts.RequestFile)
		if err != nil {
			return request.Options{}, fmt.Errorf("%w: %w", ErrConfigValidation, err)
		}
		fileForm := f.Options()
		changed := func(name string) bool { return flags != nil && flags.Changed(name) }
		if !changed("input") {
			form.InputPath = fileForm.InputPath
		}
		if !changed("output") {
			form.OutputPath = fileForm.OutputPath
		}
		if !changed("from") && fileForm.SourceDialect != "" {
			form.SourceDialect = fileForm.SourceDialect
		}
		if !changed("to") && fileForm.TargetDialect != "" {
			form.TargetDialect = fileForm.TargetDialect
		}
		if !changed("if-map") && !changed("no-if-map") {
			form.Rows = fileForm.Rows
			form.MappingEnabled = fileForm.MappingEnabled
		}
		if !changed("if-index") && fileForm.IndexPolicy != "" {
			form.IndexPolicy = fileForm.IndexPolicy
		}
		if !changed("if-index-prefix") && fileForm.IndexPrefix != "" {
			form.IndexPrefix = fileForm.IndexPrefix
		}
	}

	for _, p := range []*string{&form.InputPath, &form.OutputPath} {
		if *p == "" {
			continue
		}
		if abs, err := filepath.Abs(*p); err == nil {
			*p = abs
		}
	}
	return form, nil
}

// parseRows accepts repeated "From=To" values as well as comma-joined lists.
func parseRows(values []string) ([]ifmap.Pair, error) {
	var rows []ifmap.Pair
	for _, v := range values {
		pairs, err := ifmap.Parse(v)
		if err != nil {
			return nil, err
		}
		rows = append(rows, pairs...)
	}
	return rows, nil
}

func parseDuration(s string) (time.Duration, error) {
	return time.ParseDuration(strings.TrimSpace(s))
}

// detectPackaged reports whether exe looks like an installed binary rather than
// one produced by "go run" or "go test" in the build cache.
func detectPackaged(exe string) bool {
	if exe == "" {
		return false
	}
	dir := filepath.ToSlash(filepath.Dir(exe))
	return !strings.Contains(dir, "/go-build")
}

// autoPackaged decides packaged mode when it is not configured. A convctl built
// into a source checkout, with no converter bundled next to it, runs in
// development mode.
func autoPackaged(exe string, c ConverterConfig) bool {
	if !detectPackaged(exe) {
		return false
	}
	if fileExists(filepath.Join(c.BundleRoot, c.Name)) {
		return true
	}
	return !isSourceCheckout(c.RepoRoot, c.EntryPoint)
}

// isSourceCheckout reports whether repoRoot holds a Go module with the converter
// entry point, as a freshly built "go build ./cmd/convctl" in a checkout sees it.
func isSourceCheckout(repoRoot, entryPoint string) bool {
	if repoRoot == "" || entryPoint == "" {
		return false
	}
	if !fileExists(filepath.Join(repoRoot, "go.mod")) {
		return false
	}
	info, err := os.Stat(filepath.Join(repoRoot, filepath.FromSlash(entryPoint)))
	return err == nil && info.IsDir()
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
