// Package config merges gblog settings from command-line flags, a YAML config
// file, and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/alexflint/gblog/metadata"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultCredentialsFile is the OAuth client descriptor downloaded from the Google Cloud console
	DefaultCredentialsFile = "credentials.json"
	// DefaultTokenFile is where the user's access and refresh tokens are kept between runs
	DefaultTokenFile = "token.json"
)

// ErrInvalidConfig is returned when a config file cannot be used
var ErrInvalidConfig = errors.New("invalid config")

// Settings is one layer of configuration, or the effective configuration
// after all layers have been resolved.
type Settings struct {
	BlogURL     string
	BlogID      string
	Credentials string
	Token       string
	Labels      []string
	Draft       bool
}

// Defaults returns the lowest-priority layer
func Defaults() Settings {
	return Settings{
		Credentials: DefaultCredentialsFile,
		Token:       DefaultTokenFile,
	}
}

// Resolve overlays layers given in priority order, highest first. For each
// field the first non-empty value wins, independently of the other fields.
func Resolve(layers ...Settings) Settings {
	var out Settings
	for _, layer := range layers {
		if out.BlogURL == "" {
			out.BlogURL = layer.BlogURL
		}
		if out.BlogID == "" {
			out.BlogID = layer.BlogID
		}
		if out.Credentials == "" {
			out.Credentials = layer.Credentials
		}
		if out.Token == "" {
			out.Token = layer.Token
		}
		if len(out.Labels) == 0 {
			out.Labels = layer.Labels
		}
		if !out.Draft {
			out.Draft = layer.Draft
		}
	}
	return out
}

// ID is a blog ID. In YAML it may be written quoted or as a bare number, and
// in either case the digits are kept exactly as written.
type ID string

// UnmarshalYAML implements yaml.Unmarshaler
func (id *ID) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: blog_id must be a string or number", value.Line)
	}
	*id = ID(value.Value)
	return nil
}

// Labels may be written in YAML as a list or as a comma-separated string
type Labels []string

// UnmarshalYAML implements yaml.Unmarshaler
func (l *Labels) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*l = metadata.SplitLabels(value.Value)
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := value.Decode(&items); err != nil {
			return err
		}
		var labels Labels
		for _, item := range items {
			labels = append(labels, metadata.SplitLabels(item)...)
		}
		*l = labels
		return nil
	}
	return fmt.Errorf("line %d: labels must be a list or a comma-separated string", value.Line)
}

// File is the content of a YAML config file
type File struct {
	BlogURL     string `yaml:"blog_url"`
	BlogID      ID     `yaml:"blog_id"`
	Credentials string `yaml:"credentials"`
	Token       string `yaml:"token"`
	Labels      Labels `yaml:"labels"`
	Draft       bool   `yaml:"draft"`
}

// the keys that File understands
var knownKeys = map[string]bool{
	"blog_url":    true,
	"blog_id":     true,
	"credentials": true,
	"token":       true,
	"labels":      true,
	"draft":       true,
}

// Load reads a YAML config file. Unsupported keys are logged and ignored.
func Load(path string) (*File, error) {
	log.Debug().Str("path", path).Msg("loading config file")

	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: error reading %s: %v", ErrInvalidConfig, path, err)
	}

	return Parse(buf, path)
}

// Parse decodes the content of a config file. The name is used in messages only.
func Parse(buf []byte, name string) (*File, error) {
	// first decode into nodes so that we can report keys we do not understand
	var raw map[string]yaml.Node
	if err := yaml.Unmarshal(buf, &raw); err != nil {
		return nil, fmt.Errorf("%w: error parsing %s: %v", ErrInvalidConfig, name, err)
	}

	var unknown []string
	for key := range raw {
		if !knownKeys[key] {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	for _, key := range unknown {
		log.Warn().Str("file", name).Str("key", key).Msg("ignoring unsupported key in config file")
	}

	var f File
	if err := yaml.Unmarshal(buf, &f); err != nil {
		return nil, fmt.Errorf("%w: error parsing %s: %v", ErrInvalidConfig, name, err)
	}

	log.Debug().Interface("config", f).Msg("loaded config file")
	return &f, nil
}

// Settings converts the file into a configuration layer
func (f *File) Settings() Settings {
	if f == nil {
		return Settings{}
	}
	return Settings{
		BlogURL:     f.BlogURL,
		BlogID:      string(f.BlogID),
		Credentials: f.Credentials,
		Token:       f.Token,
		Labels:      []string(f.Labels),
		Draft:       f.Draft,
	}
}
