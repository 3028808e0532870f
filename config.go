package fleet

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
)

// Recognized configuration keys. Anything else in a configuration file is ignored.
const (
	keyMode        = "mode"
	keyUser        = "user"
	keyGroup       = "group"
	keyEnvironment = "environment"
	keyWorkingDir  = "working_dir"
	keyPython      = "python"
	keyArgs        = "args"
)

// ServiceConfig is the normalized configuration of one managed gunicorn service.
// It is rebuilt from the configuration directory on every run and never cached.
type ServiceConfig struct {
	// Mode selects the gunicorn entry point
	Mode Mode
	// User is the account the workers run as
	User string
	// Group is the group the workers run as
	Group string
	// Environment overrides entries of the inherited process environment
	Environment map[string]string
	// WorkingDir is the directory the daemon is started from
	WorkingDir string
	// Python is the interpreter that executes the entry point
	Python string
	// Args are appended verbatim after the generated gunicorn flags
	Args []string

	// Filename is the configuration file this service was loaded from
	Filename string
	// PIDDir is the directory holding the service PID file
	PIDDir string
	// LogDir is the directory holding the service log file
	LogDir string
}

// NewServiceConfig normalizes a raw configuration mapping into a ServiceConfig.
// Missing keys take their defaults, unknown keys are ignored, and a mode outside
// wsgi, django and paster fails with ErrConfiguration.
func NewServiceConfig(filename, pidDir, logDir string, raw map[string]any) (*ServiceConfig, error) {
	cfg := &ServiceConfig{
		Mode:        DefaultMode,
		User:        DefaultUser,
		Group:       DefaultGroup,
		Environment: make(map[string]string),
		WorkingDir:  DefaultWorkingDir,
		Python:      DefaultPython,
		Args:        []string{},
		Filename:    filename,
		PIDDir:      pidDir,
		LogDir:      logDir,
	}

	scalars := []struct {
		key string
		dst *string
	}{
		{keyUser, &cfg.User},
		{keyGroup, &cfg.Group},
		{keyWorkingDir, &cfg.WorkingDir},
		{keyPython, &cfg.Python},
	}
	for _, s := range scalars {
		v, ok := raw[s.key]
		if !ok || v == nil {
			continue
		}
		str, err := scalarString(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: key %q: %v", ErrConfiguration, filename, s.key, err)
		}
		*s.dst = str
	}

	// A null mode counts as absent; any other value, including "", must be valid
	if v, ok := raw[keyMode]; ok && v != nil {
		mode, err := scalarString(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: key %q: %v", ErrConfiguration, filename, keyMode, err)
		}
		cfg.Mode = Mode(mode)
	}
	if !cfg.Mode.Valid() {
		return nil, fmt.Errorf("%w: %s: mode %q is not one of wsgi, django, paster", ErrConfiguration, filename, cfg.Mode)
	}

	if v, ok := raw[keyEnvironment]; ok && v != nil {
		env, err := stringMap(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: key %q: %v", ErrConfiguration, filename, keyEnvironment, err)
		}
		cfg.Environment = env
	}

	if v, ok := raw[keyArgs]; ok && v != nil {
		args, err := stringSlice(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: key %q: %v", ErrConfiguration, filename, keyArgs, err)
		}
		cfg.Args = args
	}

	return cfg, nil
}

// Basename returns the configuration file name with its directory stripped
func (c *ServiceConfig) Basename() string {
	return filepath.Base(c.Filename)
}

// PIDFile returns the path of the PID file recording this service's process
func (c *ServiceConfig) PIDFile() string {
	return filepath.Join(c.PIDDir, c.Basename()+PIDSuffix)
}

// LogFile returns the path gunicorn writes this service's log to
func (c *ServiceConfig) LogFile() string {
	return filepath.Join(c.LogDir, c.Basename()+LogSuffix)
}

// scalarString renders a decoded scalar as a string
func scalarString(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case bool:
		return strconv.FormatBool(t), nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case uint64:
		return strconv.FormatUint(t, 10), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("expected a scalar, got %T", v)
	}
}

// stringSlice converts a decoded list of scalars into an ordered string slice
func stringSlice(v any) ([]string, error) {
	switch t := v.(type) {
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out, nil
	case []any:
		out := make([]string, 0, len(t))
		for i, item := range t {
			s, err := scalarString(item)
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected a list, got %T", v)
	}
}

// stringMap converts a decoded mapping of scalars into a string map
func stringMap(v any) (map[string]string, error) {
	switch t := v.(type) {
	case map[string]string:
		out := make(map[string]string, len(t))
		for k, val := range t {
			out[k] = val
		}
		return out, nil
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		out := make(map[string]string, len(t))
		for _, k := range keys {
			s, err := scalarString(t[k])
			if err != nil {
				return nil, fmt.Errorf("entry %q: %w", k, err)
			}
			out[k] = s
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected a mapping, got %T", v)
	}
}
