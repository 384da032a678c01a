package loader

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/tidwall/jsonc"
	"github.com/zeebo/blake3"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/protoplast/internal/errors"
	"github.com/conneroisu/protoplast/internal/registry"
	"github.com/conneroisu/protoplast/internal/schematic"
)

// Document is the on-disk shape of a template, shared by the YAML and JSONC
// formats.
//
//	id: Orc                # defaults to the file name without its extension
//	version: 1.2.0         # optional semantic version
//	schematics:
//	  - type: component
//	    input: {name: Health, value: 100}
//	  - type: child
//	    input: {template: Sword}
type Document struct {
	ID         string                `json:"id,omitempty"`
	Version    string                `json:"version,omitempty"`
	Schematics []schematic.Schematic `json:"schematics,omitempty"`
}

// Format is a template file encoding.
type Format int

const (
	FormatYAML Format = iota
	FormatJSONC
)

// FormatOf picks the decoder for path from its extension.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonc", ".json":
		return FormatJSONC
	default:
		return FormatYAML
	}
}

// Digest returns the hex BLAKE3 digest of data.
func Digest(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// NameFromPath derives a template id from a file path by stripping the
// directory and the longest matching extension. For example,
// "units/orc.prototype.yaml" with extension "prototype.yaml" returns "orc".
func NameFromPath(path string, extensions []string) string {
	base := filepath.Base(path)
	best := ""
	for _, ext := range extensions {
		suffix := "." + strings.TrimPrefix(ext, ".")
		if strings.HasSuffix(base, suffix) && len(suffix) > len(best) && len(base) > len(suffix) {
			best = suffix
		}
	}
	if best == "" {
		best = filepath.Ext(base)
	}
	return strings.TrimSuffix(base, best)
}

// Decode turns the bytes of a template file into a definition. Both formats
// are normalized to JSON, checked against the embedded schema, then decoded.
func Decode(path string, data []byte, extensions []string) (*registry.Definition, error) {
	jsonData, err := toJSON(path, data)
	if err != nil {
		return nil, errors.ErrInvalidDefinition(path, err.Error())
	}

	issues, err := validateJSON(jsonData)
	if err != nil {
		return nil, errors.NewInternalError(errors.ErrCodeInternalError, "schema validation failed", err)
	}
	if len(issues) > 0 {
		messages := make([]string, len(issues))
		for i, issue := range issues {
			messages[i] = issue.String()
		}
		return nil, errors.ErrInvalidDefinition(path, strings.Join(messages, "; ")).
			WithContext("issues", issues)
	}

	var doc Document
	if err := json.Unmarshal(jsonData, &doc); err != nil {
		return nil, errors.ErrInvalidDefinition(path, err.Error())
	}

	def := &registry.Definition{
		ID:         doc.ID,
		Schematics: doc.Schematics,
		Source:     path,
		Digest:     Digest(data),
	}
	if def.ID == "" {
		def.ID = NameFromPath(path, extensions)
	}
	if doc.Version != "" {
		v, err := semver.NewVersion(doc.Version)
		if err != nil {
			return nil, errors.ErrInvalidDefinition(path, fmt.Sprintf("version %q: %v", doc.Version, err)).
				WithTemplate(def.ID)
		}
		def.Version = v.String()
	}
	return def, nil
}

func toJSON(path string, data []byte) ([]byte, error) {
	if FormatOf(path) == FormatJSONC {
		stripped := jsonc.ToJSON(data)
		if !json.Valid(stripped) {
			return nil, fmt.Errorf("malformed JSONC")
		}
		return stripped, nil
	}

	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	if raw == nil {
		raw = map[string]interface{}{}
	}
	return json.Marshal(normalizeYAML(raw))
}

// normalizeYAML converts YAML-decoded values to JSON-compatible types. Maps
// with non-string keys have their keys formatted as strings.
func normalizeYAML(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		m := make(map[string]interface{}, len(val))
		for k, v := range val {
			m[k] = normalizeYAML(v)
		}
		return m
	case map[interface{}]interface{}:
		m := make(map[string]interface{}, len(val))
		for k, v := range val {
			m[fmt.Sprint(k)] = normalizeYAML(v)
		}
		return m
	case []interface{}:
		a := make([]interface{}, len(val))
		for i, v := range val {
			a[i] = normalizeYAML(v)
		}
		return a
	default:
		return val
	}
}
