package blueprint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads a definition file, parses it as YAML or JSON based on the
// file extension, and validates it structurally. Validation errors are
// returned as a DiagnosticError.
func Load(path string) (*Definition, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path from caller
	if err != nil {
		return nil, fmt.Errorf("reading file %s: %w", path, err)
	}
	return LoadBytes(data, path)
}

// LoadBytes parses and validates definition content. path is only used to
// pick the parse format from the extension (.yaml/.yml -> YAML, else JSON).
func LoadBytes(data []byte, path string) (*Definition, error) {
	jsonData, err := toJSON(data, path)
	if err != nil {
		return nil, err
	}

	var def Definition
	if err := json.Unmarshal(jsonData, &def); err != nil {
		return nil, fmt.Errorf("parsing definition: %w", err)
	}

	if diags := def.Validate(); HasErrors(diags) {
		return nil, &DiagnosticError{Diagnostics: diags}
	}

	return &def, nil
}

// toJSON converts YAML content to JSON so a single set of struct tags
// serves both formats. JSON content passes through unchanged.
func toJSON(data []byte, path string) ([]byte, error) {
	if !isYAML(path) {
		return data, nil
	}

	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}

	jsonData, err := json.Marshal(normalizeYAML(raw))
	if err != nil {
		return nil, fmt.Errorf("converting YAML to JSON: %w", err)
	}
	return jsonData, nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// normalizeYAML rewrites map[any]any trees, which yaml.v3 can still
// produce for nested mappings, into map[string]any for json.Marshal.
func normalizeYAML(v any) any {
	switch vv := v.(type) {
	case map[any]any:
		m := make(map[string]any, len(vv))
		for k, val := range vv {
			m[fmt.Sprint(k)] = normalizeYAML(val)
		}
		return m
	case map[string]any:
		m := make(map[string]any, len(vv))
		for k, val := range vv {
			m[k] = normalizeYAML(val)
		}
		return m
	case []any:
		s := make([]any, len(vv))
		for i, val := range vv {
			s[i] = normalizeYAML(val)
		}
		return s
	default:
		return v
	}
}

// DiagnosticError carries validation diagnostics as an error.
type DiagnosticError struct {
	Diagnostics []Diagnostic
}

// Error summarizes the error-severity diagnostics.
func (e *DiagnosticError) Error() string {
	errs := Errors(e.Diagnostics)
	if len(errs) == 0 {
		return "definition is invalid"
	}
	msgs := make([]string, len(errs))
	for i, d := range errs {
		msgs[i] = d.Message
	}
	return fmt.Sprintf("definition is invalid: %s", strings.Join(msgs, "; "))
}
