package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// SourceStage is the name of the stage every pipeline starts from.
const SourceStage = "source"

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the pipeline document
type Config struct {
	WIPDirectory string               `yaml:"wip_directory"`
	Verbosity    int                  `yaml:"verbosity"`
	Stages       map[string]StageSpec `yaml:"stages"`
	Server       ServerConfig         `yaml:"server,omitempty"`
}

// ServerConfig holds settings for the HTTP processor endpoint
type ServerConfig struct {
	Address      string `yaml:"address,omitempty"`
	MaxUploadMB  int    `yaml:"max_upload_mb,omitempty"`
	RequestLimit int    `yaml:"request_timeout_seconds,omitempty"`
}

// StageSpec declares one stage: a class name, its parameters and the
// stages it feeds. In YAML it is written as
//
//	name:
//	  ClassName: {param: value}
//	  downstream: [other, stages]
type StageSpec struct {
	Class      string
	Params     yaml.Node
	Downstream Downstream
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *StageSpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: stage must be a mapping", node.Line)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		if key.Value == "downstream" {
			if err := val.Decode(&s.Downstream); err != nil {
				return err
			}
			continue
		}
		if s.Class != "" {
			return fmt.Errorf("line %d: stage declares two classes (%s, %s)", key.Line, s.Class, key.Value)
		}
		s.Class = key.Value
		s.Params = *val
	}
	if s.Class == "" {
		return fmt.Errorf("line %d: stage has no class", node.Line)
	}
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (s StageSpec) MarshalYAML() (any, error) {
	params := s.Params
	if params.Kind == 0 || (params.Kind == yaml.ScalarNode && params.Tag == "!!null") {
		params = yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	}
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	node.Content = append(node.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Value: s.Class}, &params)
	if len(s.Downstream) > 0 {
		var ds yaml.Node
		if err := ds.Encode(s.Downstream); err != nil {
			return nil, err
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: "downstream"}, &ds)
	}
	return node, nil
}

// Decode decodes the stage parameters into v. Empty parameters leave v untouched.
func (s StageSpec) Decode(v any) error {
	if s.Params.Kind == 0 || (s.Params.Kind == yaml.ScalarNode && s.Params.Tag == "!!null") {
		return nil
	}
	if err := s.Params.Decode(v); err != nil {
		return fmt.Errorf("%s parameters: %w", s.Class, err)
	}
	return nil
}

// DefaultOutlet is the outlet used by stages with a single output.
const DefaultOutlet = ""

// Downstream maps an outlet name to the stages it feeds. A plain list or a
// single name in YAML binds the default outlet.
type Downstream map[string][]string

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Downstream) UnmarshalYAML(node *yaml.Node) error {
	out := Downstream{}
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Value != "" {
			out[DefaultOutlet] = []string{node.Value}
		}
	case yaml.SequenceNode:
		var names []string
		if err := node.Decode(&names); err != nil {
			return err
		}
		out[DefaultOutlet] = names
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			var names []string
			val := node.Content[i+1]
			if val.Kind == yaml.ScalarNode {
				if val.Value != "" {
					names = []string{val.Value}
				}
			} else if err := val.Decode(&names); err != nil {
				return err
			}
			out[node.Content[i].Value] = names
		}
	default:
		return fmt.Errorf("line %d: downstream must be a name, list or mapping", node.Line)
	}
	*d = out
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Downstream) MarshalYAML() (any, error) {
	if names, ok := d[DefaultOutlet]; ok && len(d) == 1 {
		return names, nil
	}
	return map[string][]string(d), nil
}

// Names returns every downstream stage name, sorted and deduplicated.
func (d Downstream) Names() []string {
	seen := map[string]bool{}
	var out []string
	for _, names := range d {
		for _, n := range names {
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	sort.Strings(out)
	return out
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		WIPDirectory: "./wip",
		Verbosity:    1,
		Stages:       map[string]StageSpec{},
		Server: ServerConfig{
			Address:      ":8080",
			MaxUploadMB:  64,
			RequestLimit: 300,
		},
	}
}

// Parse reads a pipeline document, filling unset fields from Default.
func Parse(data []byte) (*Config, error) {
	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return config, nil
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	config, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// StageNames returns the configured stage names in sorted order.
func (c *Config) StageNames() []string {
	names := make([]string, 0, len(c.Stages))
	for n := range c.Stages {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Validate checks if the configuration is valid. Downstream references
// are resolved later, when the graph is built.
func (c *Config) Validate() error {
	if c.WIPDirectory == "" {
		return fmt.Errorf("%w: wip_directory is required", ErrInvalidConfig)
	}

	if c.Verbosity < 0 {
		return fmt.Errorf("%w: verbosity must not be negative", ErrInvalidConfig)
	}

	if len(c.Stages) == 0 {
		return fmt.Errorf("%w: no stages declared", ErrInvalidConfig)
	}

	if _, ok := c.Stages[SourceStage]; !ok {
		return fmt.Errorf("%w: a %q stage is required", ErrInvalidConfig, SourceStage)
	}

	for _, name := range c.StageNames() {
		spec := c.Stages[name]
		if name == "" {
			return fmt.Errorf("%w: empty stage name", ErrInvalidConfig)
		}
		if spec.Class == "" {
			return fmt.Errorf("%w: stage %q has no class", ErrInvalidConfig, name)
		}
		for outlet, targets := range spec.Downstream {
			for _, t := range targets {
				if t == "" {
					return fmt.Errorf("%w: stage %q outlet %q has an empty downstream name", ErrInvalidConfig, name, outlet)
				}
			}
		}
	}

	if c.Server.MaxUploadMB < 0 {
		return fmt.Errorf("%w: server.max_upload_mb must not be negative", ErrInvalidConfig)
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./pipeline.yaml"
	}
	return filepath.Join(home, ".config", "texture-upscaler", "pipeline.yaml")
}
