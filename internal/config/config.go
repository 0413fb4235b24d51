package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultMarkerName is the marker file removed when none is configured.
const DefaultMarkerName = ".npmignore"

// Failure policies applied when a single path cannot be removed.
const (
	PolicyContinue = "continue"
	PolicyFailFast = "fail-fast"
)

type GlobCfg struct {
	Root string `yaml:"root" json:"root"`
}

type ListCfg struct {
	BaseDir   string   `yaml:"base_dir" json:"base_dir"`
	Paths     []string `yaml:"paths" json:"paths"`
	PathsFile string   `yaml:"paths_file" json:"paths_file"` // Newline-delimited, '#' starts a comment
}

type SafetyCfg struct {
	AllowedRoots   []string `yaml:"allowed_roots" json:"allowed_roots"`
	ProtectedPaths []string `yaml:"protected_paths" json:"protected_paths"`
}

type MetricsCfg struct {
	TextfilePath string `yaml:"textfile_path" json:"textfile_path"` // node_exporter textfile collector target
}

type LoggingCfg struct {
	Level        string `yaml:"level" json:"level"`
	File         string `yaml:"file" json:"file"`
	RotationDays int    `yaml:"rotation_days" json:"rotation_days"`
}

type Config struct {
	MarkerName   string     `yaml:"marker_name" json:"marker_name"`
	DryRun       bool       `yaml:"dry_run" json:"dry_run"`
	Policy       string     `yaml:"policy" json:"policy"`
	Glob         GlobCfg    `yaml:"glob" json:"glob"`
	List         ListCfg    `yaml:"list" json:"list"`
	Safety       SafetyCfg  `yaml:"safety" json:"safety"`
	DatabasePath string     `yaml:"database_path" json:"database_path"` // Empty disables sweep history
	Metrics      MetricsCfg `yaml:"metrics" json:"metrics"`
	Logging      LoggingCfg `yaml:"logging" json:"logging"`
}

var (
	errInvalidMarker = errors.New("marker_name must be a bare file name")
	errInvalidPolicy = errors.New("policy must be continue or fail-fast")
	errInvalidPath   = errors.New("path must be absolute")
	errInvalidLevel  = errors.New("unknown logging level")
	errNoRoot        = errors.New("glob root is required")
	errNoPaths       = errors.New("list requires at least one path")
)

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	// validateAndDefault cannot fail on an empty config.
	_ = cfg.validateAndDefault()
	return cfg
}

// Load reads a YAML file. An empty path yields Default(). Relative paths in
// the file resolve against the file's directory.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg, err := decode(f)
	if err != nil {
		return nil, err
	}
	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("resolve config dir: %w", err)
	}
	cfg.rebase(dir)
	if err := cfg.validateAndDefault(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(r io.Reader) (*Config, error) {
	cfg := &Config{}
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return cfg, nil
		}
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return cfg, nil
}

// rebase anchors the file-relative path fields at dir. Inline list paths
// are left alone; they resolve against base_dir at run time.
func (c *Config) rebase(dir string) {
	for _, p := range []*string{
		&c.Glob.Root,
		&c.List.BaseDir,
		&c.List.PathsFile,
		&c.DatabasePath,
		&c.Metrics.TextfilePath,
		&c.Logging.File,
	} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
}

// Validate re-applies defaults and checks values after flag overrides.
func (c *Config) Validate() error {
	return c.validateAndDefault()
}

func (c *Config) validateAndDefault() error {
	if c.MarkerName == "" {
		c.MarkerName = DefaultMarkerName
	}
	if err := validateMarker(c.MarkerName); err != nil {
		return err
	}

	switch c.Policy {
	case "":
		c.Policy = PolicyContinue
	case PolicyContinue, PolicyFailFast:
	default:
		return fmt.Errorf("%w: %q", errInvalidPolicy, c.Policy)
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "error", "disabled":
	default:
		return fmt.Errorf("%w: %q", errInvalidLevel, c.Logging.Level)
	}
	if c.Logging.RotationDays <= 0 {
		c.Logging.RotationDays = 30
	}

	if c.Glob.Root != "" {
		root, err := absolute(c.Glob.Root)
		if err != nil {
			return err
		}
		c.Glob.Root = root
	}

	if c.List.BaseDir != "" {
		base, err := absolute(c.List.BaseDir)
		if err != nil {
			return err
		}
		c.List.BaseDir = base
	}

	for i, r := range c.Safety.AllowedRoots {
		cp, err := cleanAbsolute(r)
		if err != nil {
			return fmt.Errorf("allowed_roots[%d]: %w", i, err)
		}
		c.Safety.AllowedRoots[i] = cp
	}
	for i, p := range c.Safety.ProtectedPaths {
		cp, err := cleanAbsolute(p)
		if err != nil {
			return fmt.Errorf("protected_paths[%d]: %w", i, err)
		}
		c.Safety.ProtectedPaths[i] = cp
	}

	return nil
}

// GlobRoot returns the configured search root or errNoRoot.
func (c *Config) GlobRoot() (string, error) {
	if c.Glob.Root == "" {
		return "", errNoRoot
	}
	return c.Glob.Root, nil
}

// ListPaths returns the inline paths followed by paths_file entries,
// relative entries resolved against base_dir.
func (c *Config) ListPaths() ([]string, error) {
	raw := append([]string(nil), c.List.Paths...)
	if c.List.PathsFile != "" {
		fromFile, err := readPathsFile(c.List.PathsFile)
		if err != nil {
			return nil, err
		}
		raw = append(raw, fromFile...)
	}
	if len(raw) == 0 {
		return nil, errNoPaths
	}

	base, err := c.ListBaseDir()
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(raw))
	for _, p := range raw {
		if !filepath.IsAbs(p) {
			p = filepath.Join(base, p)
		}
		out = append(out, p)
	}
	return out, nil
}

// ListBaseDir returns the directory relative list paths resolve against:
// base_dir when set, otherwise the working directory.
func (c *Config) ListBaseDir() (string, error) {
	if c.List.BaseDir != "" {
		return c.List.BaseDir, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("resolve base dir: %w", err)
	}
	return wd, nil
}

func readPathsFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open paths file: %w", err)
	}
	defer f.Close()

	var paths []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		paths = append(paths, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read paths file: %w", err)
	}
	return paths, nil
}

func validateMarker(name string) error {
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", errInvalidMarker, name)
	}
	return nil
}

func absolute(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("%w: %s", errInvalidPath, p)
	}
	return abs, nil
}

func cleanAbsolute(p string) (string, error) {
	if p == "" {
		return "", errInvalidPath
	}
	cp := filepath.Clean(p)
	if !filepath.IsAbs(cp) {
		return "", fmt.Errorf("%w: %s", errInvalidPath, p)
	}
	return cp, nil
}
