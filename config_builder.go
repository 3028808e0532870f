package fleet

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
	"gopkg.in/yaml.v3"
)

// ConfigBuilder provides a fluent interface for writing service configuration
// files into a configuration directory. Unset fields are omitted from the file
// so the defaults apply when it is loaded.
type ConfigBuilder struct {
	// Name is the file name, which becomes the service basename
	Name string
	// Dir is the configuration directory
	Dir string
	// Mode selects the gunicorn entry point
	Mode Mode
	// User is the account the workers run as
	User string
	// Group is the group the workers run as
	Group string
	// WorkingDir is the directory the daemon starts from
	WorkingDir string
	// Python is the interpreter path
	Python string
	// Env contains environment overrides for the service
	Env map[string]string
	// Args are extra gunicorn arguments
	Args []string
	// Overwrite allows replacing an existing file
	Overwrite bool
}

// configFile is the on-disk layout written by ConfigBuilder
type configFile struct {
	Mode        string            `yaml:"mode,omitempty"`
	User        string            `yaml:"user,omitempty"`
	Group       string            `yaml:"group,omitempty"`
	WorkingDir  string            `yaml:"working_dir,omitempty"`
	Python      string            `yaml:"python,omitempty"`
	Environment map[string]string `yaml:"environment,omitempty"`
	Args        []string          `yaml:"args,omitempty"`
}

// NewConfigBuilder creates a ConfigBuilder for service name in dir
func NewConfigBuilder(name, dir string) *ConfigBuilder {
	return &ConfigBuilder{
		Name: name,
		Dir:  dir,
		Env:  make(map[string]string),
	}
}

// WithMode sets the gunicorn mode
func (b *ConfigBuilder) WithMode(mode Mode) *ConfigBuilder {
	b.Mode = mode
	return b
}

// WithUser sets the user
func (b *ConfigBuilder) WithUser(user string) *ConfigBuilder {
	b.User = user
	return b
}

// WithGroup sets the group
func (b *ConfigBuilder) WithGroup(group string) *ConfigBuilder {
	b.Group = group
	return b
}

// WithWorkingDir sets the working directory
func (b *ConfigBuilder) WithWorkingDir(dir string) *ConfigBuilder {
	b.WorkingDir = dir
	return b
}

// WithPython sets the interpreter path
func (b *ConfigBuilder) WithPython(python string) *ConfigBuilder {
	b.Python = python
	return b
}

// WithEnv adds an environment variable
func (b *ConfigBuilder) WithEnv(key, value string) *ConfigBuilder {
	if b.Env == nil {
		b.Env = make(map[string]string)
	}
	b.Env[key] = value
	return b
}

// WithArgs appends extra gunicorn arguments
func (b *ConfigBuilder) WithArgs(args ...string) *ConfigBuilder {
	b.Args = append(b.Args, args...)
	return b
}

// WithOverwrite allows Build to replace an existing file
func (b *ConfigBuilder) WithOverwrite(overwrite bool) *ConfigBuilder {
	b.Overwrite = overwrite
	return b
}

// Path returns the file Build writes
func (b *ConfigBuilder) Path() string {
	return filepath.Join(b.Dir, b.Name)
}

// Build validates the configuration and writes it atomically. It returns the
// path of the written file.
func (b *ConfigBuilder) Build() (string, error) {
	if b.Dir == "" {
		return "", fmt.Errorf("%w: configuration directory not specified", ErrConfiguration)
	}
	if b.Name == "" || strings.ContainsRune(b.Name, filepath.Separator) || b.Name == "." || b.Name == ".." {
		return "", fmt.Errorf("%w: invalid service name %q", ErrConfiguration, b.Name)
	}
	if IsIgnored(b.Name) {
		return "", fmt.Errorf("%w: service name %q would be ignored", ErrConfiguration, b.Name)
	}
	if b.Mode != "" && !b.Mode.Valid() {
		return "", fmt.Errorf("%w: mode %q is not one of wsgi, django, paster", ErrConfiguration, b.Mode)
	}

	if err := os.MkdirAll(b.Dir, DirMode); err != nil {
		return "", fmt.Errorf("%w: creating %s: %v", ErrFilesystem, b.Dir, err)
	}

	path := b.Path()
	if !b.Overwrite {
		if _, err := os.Lstat(path); err == nil {
			return "", fmt.Errorf("%w: %s: %w", ErrConfiguration, path, fs.ErrExist)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %v", ErrFilesystem, err)
		}
	}

	data, err := yaml.Marshal(b.file())
	if err != nil {
		return "", fmt.Errorf("encoding %s: %w", path, err)
	}

	if err := renameio.WriteFile(path, data, FileMode); err != nil {
		return "", fmt.Errorf("%w: writing %s: %v", ErrFilesystem, path, err)
	}

	return path, nil
}

func (b *ConfigBuilder) file() configFile {
	f := configFile{
		Mode:       string(b.Mode),
		User:       b.User,
		Group:      b.Group,
		WorkingDir: b.WorkingDir,
		Python:     b.Python,
		Args:       b.Args,
	}
	if len(b.Env) > 0 {
		f.Environment = b.Env
	}
	return f
}
