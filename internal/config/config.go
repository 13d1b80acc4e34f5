package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/roach88/restage/internal/energy"
	"github.com/roach88/restage/internal/execute"
	"github.com/roach88/restage/internal/ir"
	"github.com/roach88/restage/internal/mcpl"
)

//go:embed schema.json
var schemaJSON []byte

const schemaURL = "restage-config.json"

// Tools names the external programs restage drives.
type Tools struct {
	Compiler         []string `yaml:"compiler" json:"compiler"`
	MCPLTool         string   `yaml:"mcpltool" json:"mcpltool"`
	ToolchainVersion string   `yaml:"toolchain_version" json:"toolchain_version,omitempty"`
}

// Family overrides one built-in instrument family.
type Family struct {
	Calculator   []string `yaml:"calculator" json:"calculator,omitempty"`
	DefaultTime  float64  `yaml:"default_time" json:"default_time,omitempty"`
	DefaultOrder int      `yaml:"default_order" json:"default_order,omitempty"`
}

// Config is the resolved configuration. Zero-valued fields of a loaded file
// are filled from Default.
type Config struct {
	DataDir           string             `yaml:"data_dir" json:"data_dir"`
	Database          string             `yaml:"database" json:"database"`
	MinBatch          int64              `yaml:"min_batch" json:"min_batch"`
	Parallel          int                `yaml:"parallel" json:"parallel"`
	Timeout           time.Duration      `yaml:"-" json:"timeout"`
	ParticleParameter string             `yaml:"particle_parameter" json:"particle_parameter"`
	Tolerances        map[string]float64 `yaml:"tolerances" json:"tolerances,omitempty"`
	Tools             Tools              `yaml:"tools" json:"tools"`
	Families          map[string]Family  `yaml:"families" json:"families,omitempty"`

	// Path is the file the configuration was read from, empty for defaults.
	Path string `yaml:"-" json:"path,omitempty"`
}

// document is the on-disk shape; Timeout is a Go duration string.
type document struct {
	Config  `yaml:",inline"`
	Timeout string `yaml:"timeout"`
}

// DefaultPath returns $XDG_CONFIG_HOME/restage/config.yaml, falling back
// to ~/.config.
func DefaultPath() string {
	return filepath.Join(xdgDir("XDG_CONFIG_HOME", ".config"), "restage", "config.yaml")
}

// DefaultDataDir returns $XDG_DATA_HOME/restage, falling back to
// ~/.local/share.
func DefaultDataDir() string {
	return filepath.Join(xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share")), "restage")
}

func xdgDir(env, fallback string) string {
	if dir := os.Getenv(env); dir != "" {
		return dir
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, fallback)
	}
	return fallback
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DataDir:           DefaultDataDir(),
		MinBatch:          execute.DefaultMinBatch,
		Parallel:          1,
		ParticleParameter: execute.DefaultParticleParameter,
		Tools:             Tools{MCPLTool: mcpl.DefaultCommand},
	}
}

// Load reads path. A missing file at the default path yields Default; a
// missing file anywhere else is a configuration error.
func Load(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) && !explicit {
		return Default().resolve(), nil
	}
	if err != nil {
		return Config{}, ir.Wrap(ir.KindConfiguration, "config.load", err)
	}
	cfg, err := Parse(data, path)
	if err != nil {
		return Config{}, err
	}
	cfg.Path = path
	return cfg, nil
}

// Parse decodes and validates a YAML document. name labels errors.
func Parse(data []byte, name string) (Config, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Config{}, ir.Configuration("config.parse", "%s: %v", name, err)
	}
	if raw == nil {
		return Default().resolve(), nil
	}
	if err := validate(raw); err != nil {
		return Config{}, ir.Configuration("config.parse", "%s: %v", name, err)
	}

	doc := document{Config: Default()}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&doc); err != nil {
		return Config{}, ir.Configuration("config.parse", "%s: %v", name, err)
	}
	cfg := doc.Config
	if doc.Timeout != "" {
		d, err := time.ParseDuration(doc.Timeout)
		if err != nil {
			return Config{}, ir.Configuration("config.parse", "%s: timeout: %v", name, err)
		}
		cfg.Timeout = d
	}
	return cfg.resolve(), nil
}

// validate checks a decoded YAML tree against the embedded schema. The tree
// is round-tripped through JSON so the validator sees JSON types.
func validate(raw any) error {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
		return fmt.Errorf("invalid schema: %w", err)
	}
	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return fmt.Errorf("invalid schema: %w", err)
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("config is not representable as JSON: %w", err)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	if err := schema.Validate(doc); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			return errors.New(leafMessage(verr))
		}
		return err
	}
	return nil
}

// leafMessage reports the first innermost cause, which names the offending
// location; the outer errors only repeat the schema path.
func leafMessage(err *jsonschema.ValidationError) string {
	for len(err.Causes) > 0 {
		err = err.Causes[0]
	}
	loc := err.InstanceLocation
	if loc == "" {
		loc = "/"
	}
	return fmt.Sprintf("at %s: %s", loc, err.Message)
}

func (c Config) resolve() Config {
	if c.Database == "" {
		c.Database = filepath.Join(c.DataDir, "cache.db")
	}
	return c
}

// BinDir is where compiled instruments are kept.
func (c Config) BinDir() string {
	return filepath.Join(c.DataDir, "bin")
}

// EnergyFamilies returns the built-in families with this configuration's
// calculators and overrides applied.
func (c Config) EnergyFamilies() []energy.Family {
	calculators := make(map[string]energy.Calculator)
	for name, f := range c.Families {
		if len(f.Calculator) > 0 {
			calculators[name] = energy.ExecCalculator{Command: f.Calculator}
		}
	}
	families := energy.Builtin(calculators)
	for i, fam := range families {
		o, ok := c.Families[fam.Name]
		if !ok {
			continue
		}
		if o.DefaultTime > 0 {
			families[i].DefaultTime = o.DefaultTime
		}
		if o.DefaultOrder > 0 {
			families[i].DefaultOrder = o.DefaultOrder
		}
	}
	return families
}
