package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"oatty/pkg/logging"

	"gopkg.in/yaml.v3"
)

// userConfigDirName and projectConfigDirName name the per-user and
// per-project configuration directories, mirroring the teacher's layered
// user/project directory convention.
const (
	userConfigDirName    = ".config/oatty"
	projectConfigDirName = ".oatty"
	configFileName       = "config.yaml"
)

// osUserHomeDir and osGetwd are indirections over os.UserHomeDir/os.Getwd so
// tests can mock the filesystem root without touching the real environment.
var (
	osUserHomeDir = os.UserHomeDir
	osGetwd       = os.Getwd
)

// GetConfigurationPaths returns the per-user and per-project configuration
// directories, in that order. The project directory is rooted at the
// current working directory so a checkout can carry its own catalogs and
// workflows alongside a user's shared plugin/provider configuration.
func GetConfigurationPaths() (userDir string, projectDir string, err error) {
	home, err := osUserHomeDir()
	if err != nil {
		return "", "", fmt.Errorf("resolving user home directory: %w", err)
	}
	cwd, err := osGetwd()
	if err != nil {
		return "", "", fmt.Errorf("resolving working directory: %w", err)
	}
	return filepath.Join(home, userConfigDirName), filepath.Join(cwd, projectConfigDirName), nil
}

// GetDefaultConfigPathOrPanic returns the default path to the top-level
// config.yaml, panicking if the user's home directory cannot be resolved.
// It is intended for call sites (flag defaults) that run before any error
// handling path exists.
func GetDefaultConfigPathOrPanic() string {
	userDir, _, err := GetConfigurationPaths()
	if err != nil {
		panic(fmt.Sprintf("oatty: cannot resolve default config path: %v", err))
	}
	return userDir
}

// LoadedFile is one YAML file discovered by the configuration loader, with
// Source recording which layer ("user" or "project") it came from.
type LoadedFile struct {
	Name   string // base name without extension
	Path   string
	Source string // "user" or "project"
	Data   []byte
}

// ConfigurationLoader discovers and layers YAML configuration files across
// the user and project directories returned by GetConfigurationPaths.
// Project files override user files of the same name, mirroring how the
// teacher layers its own entity definitions.
type ConfigurationLoader struct {
	userDir    string
	projectDir string
}

// NewConfigurationLoader builds a loader rooted at the current
// GetConfigurationPaths result.
func NewConfigurationLoader() (*ConfigurationLoader, error) {
	userDir, projectDir, err := GetConfigurationPaths()
	if err != nil {
		return nil, err
	}
	return &ConfigurationLoader{userDir: userDir, projectDir: projectDir}, nil
}

// LoadYAMLFiles reads every *.yaml/*.yml file in <userDir>/<subdirectory>
// and <projectDir>/<subdirectory>, layering project files over user files
// that share a base name. Missing directories are treated as empty, not
// an error.
func (l *ConfigurationLoader) LoadYAMLFiles(subdirectory string) ([]LoadedFile, error) {
	byName := make(map[string]LoadedFile)

	for _, layer := range []struct {
		dir    string
		source string
	}{
		{filepath.Join(l.userDir, subdirectory), "user"},
		{filepath.Join(l.projectDir, subdirectory), "project"},
	} {
		files, err := readYAMLDir(layer.dir, layer.source)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			byName[f.Name] = f
		}
	}

	result := make([]LoadedFile, 0, len(byName))
	for _, f := range byName {
		result = append(result, f)
	}
	return result, nil
}

func readYAMLDir(dir, source string) ([]LoadedFile, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}

	var out []LoadedFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		name := entry.Name()[:len(entry.Name())-len(ext)]
		out = append(out, LoadedFile{Name: name, Path: path, Source: source, Data: data})
	}
	return out, nil
}

// LoadAndParseYAML loads every file under subdirectory across both layers,
// parses each into T, and runs validator against the parsed value. Parse
// and validation failures are collected rather than aborting the whole
// load, so one bad file doesn't block every other definition.
func LoadAndParseYAML[T any](subdirectory string, validator func(T) error) ([]T, ConfigurationErrorCollection, error) {
	loader, err := NewConfigurationLoader()
	if err != nil {
		return nil, ConfigurationErrorCollection{}, err
	}
	return loadAndParseYAML(loader, subdirectory, validator)
}

// LoadAndParseYAMLWithConfig is LoadAndParseYAML with an explicit
// configuration root override, used by managers whose SetConfigPath
// redirects discovery away from the default user/project directories
// (for example, under test).
func LoadAndParseYAMLWithConfig[T any](configPath, subdirectory string, validator func(T) error) ([]T, ConfigurationErrorCollection, error) {
	loader := &ConfigurationLoader{userDir: configPath, projectDir: configPath}
	return loadAndParseYAML(loader, subdirectory, validator)
}

func loadAndParseYAML[T any](loader *ConfigurationLoader, subdirectory string, validator func(T) error) ([]T, ConfigurationErrorCollection, error) {
	var errs ConfigurationErrorCollection

	files, err := loader.LoadYAMLFiles(subdirectory)
	if err != nil {
		return nil, errs, err
	}

	results := make([]T, 0, len(files))
	for _, f := range files {
		var value T
		if err := yaml.Unmarshal(f.Data, &value); err != nil {
			errs.Add(NewConfigurationError(f.Path, f.Name, f.Source, subdirectory, "parse", "Invalid YAML format: "+err.Error()))
			continue
		}
		if validator != nil {
			if err := validator(value); err != nil {
				errs.Add(NewConfigurationError(f.Path, f.Name, f.Source, subdirectory, "validation", err.Error()))
				continue
			}
		}
		results = append(results, value)
	}

	return results, errs, nil
}

// LoadConfig reads the top-level OattyConfig from <configPath>/config.yaml,
// falling back to GetDefaultConfig for any field the file omits. A missing
// file is not an error: it simply yields the default configuration.
func LoadConfig(configPath string) (OattyConfig, error) {
	cfg := GetDefaultConfig()

	configFilePath := filepath.Join(configPath, configFileName)
	data, err := os.ReadFile(configFilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Info("ConfigLoader", "No config.yaml found at %s, using defaults", configFilePath)
			return cfg, nil
		}
		logging.Info("ConfigLoader", "Error loading config.yaml from %s: %s", configFilePath, err)
		return OattyConfig{}, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return OattyConfig{}, fmt.Errorf("error loading config from %s: %w", configFilePath, err)
	}
	logging.Info("ConfigLoader", "Loaded configuration from %s", configFilePath)

	return cfg, nil
}
