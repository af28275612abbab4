package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/LiYuxian0306/ScanNet/pkg/segbatch"
)

const (
	// EnvPrefix is the prefix for environment variable overrides, e.g.
	// SEGBATCH_THRESHOLD.
	EnvPrefix = "SEGBATCH"
	// DefaultConfigName is the base name of the optional config file.
	DefaultConfigName = "seg-batch"
)

// LoadAndValidate loads configuration from all sources (defaults, optional
// YAML config file, environment, flags), validates the merged result, and
// derives absolute paths and the segmentator binary location. It returns the
// populated Options plus the logger built from the effective verbosity.
func LoadAndValidate(cfgFile string, verbose bool, flags *pflag.FlagSet) (segbatch.Options, *slog.Logger, error) {
	var opts segbatch.Options
	v := viper.New()

	// Basic logger for errors raised before the final verbosity is known.
	tempLogger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

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
			tempLogger.Debug("No configuration file found, using defaults/env/flags")
		} else {
			used := cfgFile
			if used == "" {
				used = fmt.Sprintf("searched locations for %s.yaml", DefaultConfigName)
			}
			return opts, tempLogger, fmt.Errorf("error reading config file %q: %w", used, err)
		}
	} else {
		opts.ConfigFilePath = v.ConfigFileUsed()
		tempLogger.Debug("Using configuration file", slog.String("path", opts.ConfigFilePath))
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	flagKeys := []string{
		"input", "output", "segmentator", "threshold", "min-verts",
		"workers", "skip-existing", "verbose", "no-tui", "output-format",
	}
	for _, key := range flagKeys {
		if flag := flags.Lookup(key); flag != nil {
			if err := v.BindPFlag(key, flag); err != nil {
				return opts, tempLogger, fmt.Errorf("error binding flag '--%s': %w", key, err)
			}
		}
	}

	if err := v.Unmarshal(&opts); err != nil {
		return opts, tempLogger, fmt.Errorf("error unmarshalling configuration: %w", err)
	}

	// Flags for core paths take absolute precedence over any value
	// unmarshalled from files or the environment.
	if flags.Changed("input") {
		if inputVal, _ := flags.GetString("input"); inputVal != "" {
			opts.InputDir = inputVal
		}
	}
	if flags.Changed("output") {
		if outputVal, _ := flags.GetString("output"); outputVal != "" {
			opts.OutputDir = outputVal
		}
	}
	if flags.Changed("verbose") {
		opts.Verbose, _ = flags.GetBool("verbose")
	}
	if flags.Changed("skip-existing") {
		opts.SkipExisting, _ = flags.GetBool("skip-existing")
	}
	if flags.Changed("no-tui") {
		if noTui, _ := flags.GetBool("no-tui"); noTui {
			opts.TuiEnabled = false
		}
	}

	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	logHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(logHandler)
	opts.Logger = logHandler

	if err := validateAndDeriveOptions(&opts, logger); err != nil {
		return opts, logger, err
	}

	logger.Debug("Configuration loading and validation complete",
		slog.String("configFile", opts.ConfigFilePath),
		slog.Bool("verbose", opts.Verbose),
		slog.String("logLevel", logLevel.String()),
	)
	return opts, logger, nil
}

// setDefaults establishes the default values in Viper.
func setDefaults(v *viper.Viper) {
	v.SetDefault("segmentator", "")
	v.SetDefault("threshold", segbatch.DefaultThreshold)
	v.SetDefault("min-verts", segbatch.DefaultMinVertexCount)
	v.SetDefault("workers", segbatch.DefaultWorkerCount)
	v.SetDefault("skip-existing", segbatch.DefaultSkipExisting)
	v.SetDefault("verbose", segbatch.DefaultVerbose)
	v.SetDefault("tui", segbatch.DefaultTuiEnabled)
	v.SetDefault("output-format", string(segbatch.DefaultOutputFormat))
}

// isValidEnumValue checks if value is in allowedValues. Case-sensitive.
func isValidEnumValue[T ~string](value T, allowedValues []T) bool {
	return slices.Contains(allowedValues, value)
}

// validateAndDeriveOptions performs semantic validation on the populated
// Options: required paths, numeric ranges, and the segmentator binary
// resolution. Errors wrap segbatch.ErrConfigValidation.
func validateAndDeriveOptions(opts *segbatch.Options, logger *slog.Logger) error {
	if opts.InputDir == "" {
		err := fmt.Errorf("%w: input directory is required (-i, --input)", segbatch.ErrConfigValidation)
		logger.Error(err.Error(), slog.String("key", "input"))
		return err
	}
	absInput, err := filepath.Abs(opts.InputDir)
	if err != nil {
		return fmt.Errorf("%w: cannot resolve absolute input path %q: %v", segbatch.ErrConfigValidation, opts.InputDir, err)
	}
	opts.InputDir = absInput
	info, err := os.Stat(opts.InputDir)
	if err != nil {
		if os.IsNotExist(err) {
			err = fmt.Errorf("%w: input directory %q does not exist", segbatch.ErrConfigValidation, opts.InputDir)
		} else {
			err = fmt.Errorf("%w: cannot access input directory %q: %v", segbatch.ErrConfigValidation, opts.InputDir, err)
		}
		logger.Error(err.Error(), slog.String("key", "input"))
		return err
	}
	if !info.IsDir() {
		err = fmt.Errorf("%w: input path %q is not a directory", segbatch.ErrConfigValidation, opts.InputDir)
		logger.Error(err.Error(), slog.String("key", "input"))
		return err
	}

	if opts.OutputDir == "" {
		err := fmt.Errorf("%w: output directory is required (-o, --output)", segbatch.ErrConfigValidation)
		logger.Error(err.Error(), slog.String("key", "output"))
		return err
	}
	absOutput, err := filepath.Abs(opts.OutputDir)
	if err != nil {
		return fmt.Errorf("%w: cannot resolve absolute output path %q: %v", segbatch.ErrConfigValidation, opts.OutputDir, err)
	}
	opts.OutputDir = absOutput
	if mkdirErr := os.MkdirAll(opts.OutputDir, 0755); mkdirErr != nil {
		err = fmt.Errorf("%w: cannot create or access output directory %q: %v", segbatch.ErrConfigValidation, opts.OutputDir, mkdirErr)
		logger.Error(err.Error(), slog.String("key", "output"))
		return err
	}

	if err := resolveBinaryPath(opts, logger); err != nil {
		return err
	}

	if opts.Threshold <= 0 {
		err := fmt.Errorf("%w: threshold must be > 0, got %g", segbatch.ErrConfigValidation, opts.Threshold)
		logger.Error(err.Error(), slog.String("key", "threshold"))
		return err
	}
	if opts.MinVertexCount < 0 {
		err := fmt.Errorf("%w: min vertex count must be >= 0, got %d", segbatch.ErrConfigValidation, opts.MinVertexCount)
		logger.Error(err.Error(), slog.String("key", "min-verts"))
		return err
	}
	if opts.WorkerCount < 1 {
		err := fmt.Errorf("%w: worker count must be >= 1, got %d", segbatch.ErrConfigValidation, opts.WorkerCount)
		logger.Error(err.Error(), slog.String("key", "workers"))
		return err
	}

	allowedFormats := []segbatch.OutputFormat{segbatch.OutputFormatText, segbatch.OutputFormatJSON}
	if !isValidEnumValue(opts.OutputFormat, allowedFormats) {
		err := fmt.Errorf("%w: invalid value %q for key 'output-format'. Allowed: %v", segbatch.ErrConfigValidation, opts.OutputFormat, allowedFormats)
		logger.Error(err.Error(), slog.String("key", "output-format"))
		return err
	}

	// Verbose logging and the TUI write to the same terminal; verbose wins.
	if opts.Verbose {
		opts.TuiEnabled = false
	}

	logger.Debug("Final derived settings validated",
		slog.String("inputDir", opts.InputDir),
		slog.String("outputDir", opts.OutputDir),
		slog.String("binary", opts.BinaryPath),
		slog.Float64("threshold", opts.Threshold),
		slog.Int("minVerts", opts.MinVertexCount),
		slog.Int("workers", opts.WorkerCount),
		slog.Bool("skipExisting", opts.SkipExisting),
		slog.Bool("tuiEnabledEffective", opts.TuiEnabled),
	)
	return nil
}

// resolveBinaryPath fills in the default segmentator location (a sibling of
// the orchestrator's own executable) when none is configured, and verifies
// the result is an executable regular file so misconfiguration aborts before
// any scene runs.
func resolveBinaryPath(opts *segbatch.Options, logger *slog.Logger) error {
	if opts.BinaryPath == "" {
		exePath, err := os.Executable()
		if err != nil {
			return fmt.Errorf("%w: cannot locate own executable to derive default segmentator path: %v", segbatch.ErrConfigValidation, err)
		}
		opts.BinaryPath = filepath.Join(filepath.Dir(exePath), segbatch.DefaultBinaryName)
		logger.Debug("Segmentator path not set, defaulting", slog.String("path", opts.BinaryPath))
	}
	absBinary, err := filepath.Abs(opts.BinaryPath)
	if err != nil {
		return fmt.Errorf("%w: cannot resolve absolute segmentator path %q: %v", segbatch.ErrConfigValidation, opts.BinaryPath, err)
	}
	opts.BinaryPath = absBinary

	info, err := os.Stat(opts.BinaryPath)
	if err != nil {
		if os.IsNotExist(err) {
			err = fmt.Errorf("%w: segmentator binary %q does not exist (compile it or pass --segmentator)", segbatch.ErrConfigValidation, opts.BinaryPath)
		} else {
			err = fmt.Errorf("%w: cannot access segmentator binary %q: %v", segbatch.ErrConfigValidation, opts.BinaryPath, err)
		}
		logger.Error(err.Error(), slog.String("key", "segmentator"))
		return err
	}
	if !info.Mode().IsRegular() {
		err = fmt.Errorf("%w: segmentator path %q is not a regular file", segbatch.ErrConfigValidation, opts.BinaryPath)
		logger.Error(err.Error(), slog.String("key", "segmentator"))
		return err
	}
	if info.Mode().Perm()&0111 == 0 {
		err = fmt.Errorf("%w: segmentator binary %q is not executable", segbatch.ErrConfigValidation, opts.BinaryPath)
		logger.Error(err.Error(), slog.String("key", "segmentator"))
		return err
	}
	return nil
}
