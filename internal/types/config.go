package types

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
)

// Config is the file-level configuration: one entry per synchronized list.
type Config struct {
	Lists []ListConfig `yaml:"lists" json:"lists"`
}

// ListConfig drives one list instance.
// IDField names the item field used as provider identity (default "id").
// KeyStrategy selects how row keys are minted: "counter" (default) or "ulid".
// SizeCacheSeconds caches size() for that long, but only for providers that promise stability.
// Target is where committed batches are published (SNS topic ARN, Redis channel, ...).
type ListConfig struct {
	ID                  string         `yaml:"id" json:"id"`
	IDField             string         `yaml:"id_field" json:"id_field"`
	PlaceholderTemplate string         `yaml:"placeholder_template" json:"placeholder_template"`
	Renderer            RendererConfig `yaml:"renderer" json:"renderer"`
	KeyStrategy         string         `yaml:"key_strategy" json:"key_strategy"`
	SizeCacheSeconds    int            `yaml:"size_cache_seconds" json:"size_cache_seconds"`
	Query               QueryConfig    `yaml:"query" json:"query"`
	Target              TargetConfig   `yaml:"target" json:"target"`
}

// RendererConfig describes a template renderer whose properties are JMESPath expressions
// evaluated against each item. Properties are applied in the listed order.
type RendererConfig struct {
	Template   string           `yaml:"template" json:"template"`
	Properties []PropertyConfig `yaml:"properties" json:"properties"`
	Component  *ComponentConfig `yaml:"component" json:"component,omitempty"`
}

// ComponentConfig makes rows externally rendered. Field carries each row's artifact: a ref
// once the host has bound the row key to an external id, the label text before that.
// TableSize bounds the key -> external id side table (0 for the default).
type ComponentConfig struct {
	Field     string `yaml:"field" json:"field"`
	TableSize int    `yaml:"table_size" json:"table_size"`
}

type PropertyConfig struct {
	Name string `yaml:"name" json:"name"`
	Expr string `yaml:"expr" json:"expr"`
}

// QueryConfig is handed to the provider unchanged, so its syntax depends on DATA_BACKEND:
//
//   - memory, file: Filter is a JMESPath boolean expression, e.g. "age > `18`".
//   - sqlite: Filter is a single field=value equality on the stored JSON document.
//   - meili: Filter is a Meilisearch filter, e.g. "team = red"; sort fields must be sortable.
//   - redis, ddb: neither Filter nor Sort is supported.
//
// Sort entries are field names, "-" prefixed for descending order, on every backend that
// sorts. Backends reject a query they cannot run when the list is opened.
type QueryConfig struct {
	Filter string   `yaml:"filter" json:"filter"`
	Sort   []string `yaml:"sort" json:"sort"`
}

type TargetConfig struct {
	Target string `yaml:"target" json:"target"`
	// CompressThreshold compresses batch frames larger than this many bytes; 0 disables.
	CompressThreshold int `yaml:"compress_threshold" json:"compress_threshold"`
}

const (
	KeyStrategyCounter = "counter"
	KeyStrategyULID    = "ulid"

	DefaultIDField = "id"

	DefaultPlaceholderTemplate = "<div style='width: 100px; height: 18px'></div>"
)

func (c ListConfig) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("id is required")
	}
	switch c.KeyStrategy {
	case "", KeyStrategyCounter, KeyStrategyULID:
	default:
		return fmt.Errorf("key_strategy must be %q or %q", KeyStrategyCounter, KeyStrategyULID)
	}
	if c.SizeCacheSeconds < 0 {
		return fmt.Errorf("size_cache_seconds must be non-negative. 0 for no caching")
	}
	if c.Target.CompressThreshold < 0 {
		return fmt.Errorf("target.compress_threshold must be non-negative. 0 for no compression")
	}
	seen := make(map[string]struct{}, len(c.Renderer.Properties))
	for _, p := range c.Renderer.Properties {
		if p.Name == "" || p.Expr == "" {
			return fmt.Errorf("renderer.properties entries need both name and expr")
		}
		if p.Name == KeyField || p.Name == PlaceholderField {
			return fmt.Errorf("renderer property %q uses a reserved field name", p.Name)
		}
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("renderer property %q declared twice", p.Name)
		}
		seen[p.Name] = struct{}{}
	}
	if comp := c.Renderer.Component; comp != nil {
		if comp.Field == "" {
			return fmt.Errorf("renderer.component.field is required")
		}
		if comp.Field == KeyField || comp.Field == PlaceholderField {
			return fmt.Errorf("renderer.component.field %q uses a reserved field name", comp.Field)
		}
		if _, dup := seen[comp.Field]; dup {
			return fmt.Errorf("renderer.component.field %q is also a property", comp.Field)
		}
		if comp.TableSize < 0 {
			return fmt.Errorf("renderer.component.table_size must be non-negative. 0 for the default")
		}
	}
	return nil
}

// WithDefaults fills unset optional fields.
func (c ListConfig) WithDefaults() ListConfig {
	if c.IDField == "" {
		c.IDField = DefaultIDField
	}
	if c.KeyStrategy == "" {
		c.KeyStrategy = KeyStrategyCounter
	}
	if c.PlaceholderTemplate == "" {
		c.PlaceholderTemplate = DefaultPlaceholderTemplate
	}
	return c
}

func (c ListConfig) SizeCacheTTL() time.Duration {
	return time.Duration(c.SizeCacheSeconds) * time.Second
}

func (c Config) Validate() error {
	ids := make(map[string]struct{}, len(c.Lists))
	for i, l := range c.Lists {
		if err := l.Validate(); err != nil {
			return Err(ErrInvalidConfig, err, "lists[%d]", i)
		}
		if _, dup := ids[l.ID]; dup {
			return Err(ErrInvalidConfig, nil, "list id %q declared twice", l.ID)
		}
		ids[l.ID] = struct{}{}
	}
	return nil
}

// List returns the list config with the given id, defaults applied.
func (c Config) List(id string) (ListConfig, error) {
	for _, l := range c.Lists {
		if l.ID == id {
			return l.WithDefaults(), nil
		}
	}
	return ListConfig{}, Err(ErrNotFound, nil, "list %q", id)
}

// Merge returns c with lists added. A list whose id is already present replaces it.
func (c Config) Merge(lists ...ListConfig) Config {
	out := Config{Lists: append([]ListConfig(nil), c.Lists...)}
	for _, l := range lists {
		replaced := false
		for i := range out.Lists {
			if out.Lists[i].ID == l.ID {
				out.Lists[i] = l
				replaced = true
				break
			}
		}
		if !replaced {
			out.Lists = append(out.Lists, l)
		}
	}
	return out
}

// LoadConfig reads and validates a YAML config file.
func LoadConfig(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return ParseConfig(b)
}

func ParseConfig(b []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, Err(ErrInvalidConfig, err, "")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
