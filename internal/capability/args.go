// internal/capability/args.go
package capability

import (
	stdjson "encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/xkilldash9x/openapi-seeker/internal/frontier"
)

// ParamType is the declared type of a capability parameter.
type ParamType string

const (
	TypeString      ParamType = "string"
	TypeInteger     ParamType = "integer"
	TypeNumber      ParamType = "number"
	TypeBoolean     ParamType = "boolean"
	TypeURL         ParamType = "url"
	TypeEstimations ParamType = "estimations"
)

// Param declares one named argument. Min and Max bound integers and numbers
// when non-nil. Enum restricts strings.
type Param struct {
	Name        string
	Type        ParamType
	Description string
	Required    bool
	Default     any
	Min         *float64
	Max         *float64
	Enum        []string
}

// Bound is a helper for Param.Min and Param.Max.
func Bound(v float64) *float64 { return &v }

// Value is a validated argument. Exactly one of the typed fields is meaningful,
// selected by Type.
type Value struct {
	Type        ParamType
	Str         string
	Int         int64
	Num         float64
	Bool        bool
	Estimations map[string]frontier.LinkRecord
}

// Interface returns the value as a plain Go value, suitable for JSON encoding.
func (v Value) Interface() any {
	switch v.Type {
	case TypeString, TypeURL:
		return v.Str
	case TypeInteger:
		return v.Int
	case TypeNumber:
		return v.Num
	case TypeBoolean:
		return v.Bool
	case TypeEstimations:
		return v.Estimations
	default:
		return nil
	}
}

// Args is the validated argument set handed to a Handler.
type Args struct {
	values map[string]Value
}

// Has reports whether name was supplied or defaulted.
func (a Args) Has(name string) bool {
	_, ok := a.values[name]
	return ok
}

// Get returns the raw Value for name.
func (a Args) Get(name string) (Value, bool) {
	v, ok := a.values[name]
	return v, ok
}

func (a Args) String(name string) string { return a.values[name].Str }
func (a Args) Int(name string) int       { return int(a.values[name].Int) }
func (a Args) Float(name string) float64 { return a.values[name].Num }
func (a Args) Bool(name string) bool     { return a.values[name].Bool }

// Estimations returns the estimations argument, or nil when absent.
func (a Args) Estimations(name string) map[string]frontier.LinkRecord {
	return a.values[name].Estimations
}

// Map returns the arguments as plain values.
func (a Args) Map() map[string]any {
	out := make(map[string]any, len(a.values))
	for k, v := range a.values {
		out[k] = v.Interface()
	}
	return out
}

// NewArgs builds Args directly from values. Intended for tests and internal callers.
func NewArgs(values map[string]Value) Args {
	if values == nil {
		values = map[string]Value{}
	}
	return Args{values: values}
}

// Validate checks raw against params and converts it into typed Args.
// Null values count as absent. Unknown keys are rejected.
func Validate(params []Param, raw map[string]any) (Args, error) {
	declared := make(map[string]Param, len(params))
	for _, p := range params {
		declared[p.Name] = p
	}

	var unknown []string
	for k, v := range raw {
		if _, ok := declared[k]; !ok && v != nil {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return Args{}, fmt.Errorf("unknown argument(s): %s", strings.Join(unknown, ", "))
	}

	values := make(map[string]Value, len(params))
	for _, p := range params {
		rv, present := raw[p.Name]
		if !present || rv == nil {
			if p.Default != nil {
				rv = p.Default
			} else if p.Required {
				return Args{}, fmt.Errorf("missing required argument %q", p.Name)
			} else {
				continue
			}
		}
		v, err := convert(p, rv)
		if err != nil {
			return Args{}, fmt.Errorf("argument %q: %w", p.Name, err)
		}
		values[p.Name] = v
	}
	return Args{values: values}, nil
}

func convert(p Param, raw any) (Value, error) {
	switch p.Type {
	case TypeString:
		s, ok := raw.(string)
		if !ok {
			return Value{}, fmt.Errorf("expected string, got %T", raw)
		}
		if len(p.Enum) > 0 && !contains(p.Enum, s) {
			return Value{}, fmt.Errorf("%q is not one of %s", s, strings.Join(p.Enum, ", "))
		}
		return Value{Type: TypeString, Str: s}, nil

	case TypeURL:
		s, ok := raw.(string)
		if !ok {
			return Value{}, fmt.Errorf("expected url string, got %T", raw)
		}
		norm, ok := frontier.Normalize(s)
		if !ok {
			return Value{}, fmt.Errorf("%q is not an absolute http(s) URL", s)
		}
		return Value{Type: TypeURL, Str: norm}, nil

	case TypeInteger:
		n, err := toInteger(raw)
		if err != nil {
			return Value{}, err
		}
		if err := checkRange(p, float64(n)); err != nil {
			return Value{}, err
		}
		return Value{Type: TypeInteger, Int: n}, nil

	case TypeNumber:
		f, err := toFloat(raw)
		if err != nil {
			return Value{}, err
		}
		if err := checkRange(p, f); err != nil {
			return Value{}, err
		}
		return Value{Type: TypeNumber, Num: f}, nil

	case TypeBoolean:
		b, ok := raw.(bool)
		if !ok {
			return Value{}, fmt.Errorf("expected boolean, got %T", raw)
		}
		return Value{Type: TypeBoolean, Bool: b}, nil

	case TypeEstimations:
		est, err := toEstimations(raw)
		if err != nil {
			return Value{}, err
		}
		return Value{Type: TypeEstimations, Estimations: est}, nil
	}
	return Value{}, fmt.Errorf("unsupported parameter type %q", p.Type)
}

func checkRange(p Param, f float64) error {
	if p.Min != nil && f < *p.Min {
		return fmt.Errorf("%v is below the minimum %v", f, *p.Min)
	}
	if p.Max != nil && f > *p.Max {
		return fmt.Errorf("%v is above the maximum %v", f, *p.Max)
	}
	return nil
}

func toFloat(raw any) (float64, error) {
	switch n := raw.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case stdjson.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("expected number, got %q", n.String())
		}
		return f, nil
	}
	return 0, fmt.Errorf("expected number, got %T", raw)
}

func toInteger(raw any) (int64, error) {
	switch n := raw.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case stdjson.Number:
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
	}
	f, err := toFloat(raw)
	if err != nil {
		return 0, fmt.Errorf("expected integer, got %T", raw)
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("expected integer, got %v", f)
	}
	return int64(f), nil
}

// toEstimations accepts {url: relevance} or {url: {relevance, anchor_text}}.
func toEstimations(raw any) (map[string]frontier.LinkRecord, error) {
	switch m := raw.(type) {
	case map[string]frontier.LinkRecord:
		return m, nil
	case map[string]any:
		rawURLs := make([]string, 0, len(m))
		for rawURL := range m {
			rawURLs = append(rawURLs, rawURL)
		}
		sort.Strings(rawURLs)

		out := make(map[string]frontier.LinkRecord, len(m))
		seen := make(map[string]string, len(m))
		for _, rawURL := range rawURLs {
			v := m[rawURL]
			key, ok := frontier.Normalize(rawURL)
			if !ok {
				return nil, fmt.Errorf("estimation key %q is not an absolute http(s) URL", rawURL)
			}
			// Keys that normalize to one URL would otherwise race on map order.
			if prev, dup := seen[key]; dup {
				return nil, fmt.Errorf("estimation keys %q and %q name the same URL %q", prev, rawURL, key)
			}
			seen[key] = rawURL
			rec := frontier.LinkRecord{URL: key}
			var rel any
			switch e := v.(type) {
			case map[string]any:
				rel = e["relevance"]
				if at, ok := e["anchor_text"]; ok && at != nil {
					s, ok := at.(string)
					if !ok {
						return nil, fmt.Errorf("estimation %q: anchor_text must be a string", rawURL)
					}
					rec.AnchorText = s
				}
			default:
				rel = v
			}
			if rel == nil {
				return nil, fmt.Errorf("estimation %q: missing relevance", rawURL)
			}
			n, err := toInteger(rel)
			if err != nil {
				return nil, fmt.Errorf("estimation %q: %w", rawURL, err)
			}
			if n < frontier.MinRelevance || n > frontier.MaxRelevance {
				return nil, fmt.Errorf("estimation %q: relevance %d outside [%d, %d]", rawURL, n, frontier.MinRelevance, frontier.MaxRelevance)
			}
			rec.Relevance = int(n)
			out[key] = rec
		}
		return out, nil
	}
	return nil, fmt.Errorf("expected an object mapping URLs to relevance, got %T", raw)
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

// schema renders params as a JSON Schema object.
func schema(params []Param) map[string]any {
	props := make(map[string]any, len(params))
	required := []string{}
	for _, p := range params {
		prop := map[string]any{}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		switch p.Type {
		case TypeURL:
			prop["type"] = "string"
			prop["format"] = "uri"
		case TypeEstimations:
			prop["type"] = "object"
			prop["additionalProperties"] = map[string]any{
				"oneOf": []any{
					map[string]any{"type": "integer", "minimum": frontier.MinRelevance, "maximum": frontier.MaxRelevance},
					map[string]any{
						"type": "object",
						"properties": map[string]any{
							"relevance":   map[string]any{"type": "integer", "minimum": frontier.MinRelevance, "maximum": frontier.MaxRelevance},
							"anchor_text": map[string]any{"type": "string"},
						},
						"required": []string{"relevance"},
					},
				},
			}
		default:
			prop["type"] = string(p.Type)
		}
		if p.Min != nil {
			prop["minimum"] = *p.Min
		}
		if p.Max != nil {
			prop["maximum"] = *p.Max
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		if p.Default != nil {
			prop["default"] = p.Default
		}
		props[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
}
