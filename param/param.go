// Package param provides the key/value parameter object consumed by
// propagator constructors. Documents may be JSON or YAML.
package param

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Params is a read-only key/value lookup
type Params struct {
	values map[string]interface{}
}

// Parse decodes a JSON or YAML mapping
func Parse(doc []byte) (*Params, error) {
	values := make(map[string]interface{})
	if err := yaml.Unmarshal(doc, &values); err != nil {
		return nil, fmt.Errorf("failed to parse parameters: %w", err)
	}
	return &Params{values: values}, nil
}

// Load reads and parses a parameter file
func Load(path string) (*Params, error) {
	doc, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read parameters from %s: %w", path, err)
	}
	return Parse(doc)
}

// FromMap wraps an existing map; the map is copied
func FromMap(m map[string]interface{}) *Params {
	values := make(map[string]interface{}, len(m))
	for k, v := range m {
		values[k] = v
	}
	return &Params{values: values}
}

// Has reports whether key is present
func (p *Params) Has(key string) bool {
	if p == nil {
		return false
	}
	_, ok := p.values[key]
	return ok
}

// Int returns key as an int, or def when absent
func (p *Params) Int(key string, def int) (int, error) {
	if !p.Has(key) {
		return def, nil
	}
	switch v := p.values[key].(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != float64(int(v)) {
			return 0, fmt.Errorf("parameter %s=%v is not an integer", key, v)
		}
		return int(v), nil
	case string:
		i, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("parameter %s=%q is not an integer: %w", key, v, err)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("parameter %s has unsupported type %T", key, v)
	}
}

// Float returns key as a float64, or def when absent
func (p *Params) Float(key string, def float64) (float64, error) {
	if !p.Has(key) {
		return def, nil
	}
	switch v := p.values[key].(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("parameter %s=%q is not a number: %w", key, v, err)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("parameter %s has unsupported type %T", key, v)
	}
}

// String returns key as a string, or def when absent
func (p *Params) String(key string, def string) string {
	if !p.Has(key) {
		return def
	}
	if s, ok := p.values[key].(string); ok {
		return s
	}
	return fmt.Sprint(p.values[key])
}

// Bool returns key as a bool, or def when absent
func (p *Params) Bool(key string, def bool) (bool, error) {
	if !p.Has(key) {
		return def, nil
	}
	switch v := p.values[key].(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false, fmt.Errorf("parameter %s=%q is not a bool: %w", key, v, err)
		}
		return b, nil
	default:
		return false, fmt.Errorf("parameter %s has unsupported type %T", key, v)
	}
}
