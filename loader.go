package fleet

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// ConfigLoader parses one configuration file into a raw key/value mapping.
// The mapping is normalized by NewServiceConfig; loaders never execute file content.
type ConfigLoader interface {
	Load(path string) (map[string]any, error)
}

// LoaderFunc adapts an ordinary function to the ConfigLoader interface
type LoaderFunc func(path string) (map[string]any, error)

// Load calls f(path)
func (f LoaderFunc) Load(path string) (map[string]any, error) {
	return f(path)
}

// FileLoader is the default ConfigLoader. It picks a decoder from the file
// extension: .toml is TOML, .json is JSON with comments, anything else is YAML
// (which also accepts plain JSON documents).
var FileLoader ConfigLoader = LoaderFunc(LoadFile)

// LoadFile reads and decodes the configuration file at path
func LoadFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrConfiguration, path, err)
	}

	raw, err := decodeConfig(filepath.Ext(path), data)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", ErrConfiguration, path, err)
	}
	return raw, nil
}

// decodeConfig decodes data according to the file extension ext
func decodeConfig(ext string, data []byte) (map[string]any, error) {
	raw := make(map[string]any)
	if len(bytes.TrimSpace(data)) == 0 {
		return raw, nil
	}

	switch strings.ToLower(ext) {
	case ".toml":
		if err := toml.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
	case ".json":
		if err := json.Unmarshal(jsonc.ToJSON(data), &raw); err != nil {
			return nil, err
		}
	default:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
	}

	// A document holding only comments decodes to nil
	if raw == nil {
		raw = make(map[string]any)
	}
	return raw, nil
}
