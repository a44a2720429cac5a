package bridge

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/gnolang/cxxlink/codematch"
	"github.com/gnolang/cxxlink/internal"
	"github.com/gnolang/cxxlink/mangle"
)

// DefaultConfigFile is read when no configuration path is given.
const DefaultConfigFile = ".cxxlink.yaml"

// Config is the content of a .cxxlink.yaml file.
type Config struct {
	Name string `yaml:"name"`
	// Scheme is itanium or msvc. Empty selects the host scheme.
	Scheme        string   `yaml:"scheme"`
	PointerWidth  int      `yaml:"pointer_width"`
	Backend       string   `yaml:"backend"`
	PreviewLength int      `yaml:"preview_length"`
	Extensions    []string `yaml:"extensions"`
}

func DefaultConfig() Config {
	return Config{
		Name:          "cxxlink",
		Scheme:        string(mangle.HostScheme()),
		PointerWidth:  64,
		Backend:       codematch.BackendStructural.String(),
		PreviewLength: 10,
		Extensions:    []string{".rs"},
	}
}

// LoadConfig reads a configuration file over the defaults. An empty path
// reads DefaultConfigFile when it exists.
func LoadConfig(configurationPath string) (Config, error) {
	config := DefaultConfig()
	explicit := configurationPath != ""
	if !explicit {
		configurationPath = DefaultConfigFile
	}

	f, err := os.Open(configurationPath)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return config, nil
		}
		return config, err
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	if err := decoder.Decode(&config); err != nil && !errors.Is(err, io.EOF) {
		return config, fmt.Errorf("error parsing %s: %w", configurationPath, err)
	}
	return config, nil
}

// WriteConfig stores config as yaml at path.
func WriteConfig(path string, config Config) error {
	d, err := yaml.Marshal(config)
	if err != nil {
		return err
	}
	return os.WriteFile(path, d, 0o644)
}

// EngineOptions converts config to engine options.
func (c Config) EngineOptions(logger *zap.Logger) (internal.Options, error) {
	scheme, err := mangle.ParseScheme(c.Scheme)
	if err != nil {
		return internal.Options{}, err
	}
	backend, err := codematch.ParseBackend(c.Backend)
	if err != nil {
		return internal.Options{}, err
	}
	return internal.Options{
		Scheme:        scheme,
		PointerWidth:  c.PointerWidth,
		Backend:       backend,
		PreviewLength: c.PreviewLength,
		Logger:        logger,
	}, nil
}
