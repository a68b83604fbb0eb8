// Package blueprint provides declarative topology definitions for soma
// networks. A definition names the somas of one organelle, its main soma,
// and the role-tagged connections between them; it can be loaded from
// JSON or YAML, validated, and built into a live organelle through a
// registry of soma constructors.
package blueprint

import "fmt"

// Diagnostic represents a validation error or warning produced by
// definition validation.
type Diagnostic struct {
	Code     string `json:"code"`           // e.g. "BP-001"
	Severity string `json:"severity"`       // "error" or "warning"
	Message  string `json:"message"`        // human-readable description
	Path     string `json:"path,omitempty"` // JSON path to offending field
}

const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// HasErrors returns true if any diagnostic has error severity.
func HasErrors(diags []Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Errors returns only the error-severity diagnostics.
func Errors(diags []Diagnostic) []Diagnostic {
	var errs []Diagnostic
	for _, d := range diags {
		if d.Severity == SeverityError {
			errs = append(errs, d)
		}
	}
	return errs
}

// Warnings returns only the warning-severity diagnostics.
func Warnings(diags []Diagnostic) []Diagnostic {
	var warns []Diagnostic
	for _, d := range diags {
		if d.Severity == SeverityWarning {
			warns = append(warns, d)
		}
	}
	return warns
}

// Definition is the serializable form of one organelle's topology. The
// Build step consumes it together with a registry to assemble the live
// network.
type Definition struct {
	Name        string            `json:"name"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Somas       []SomaDef         `json:"somas"`
	Main        string            `json:"main"`
	Connections []ConnectionDef   `json:"connections,omitempty"`
}

// SomaDef is a serializable soma within a Definition.
type SomaDef struct {
	ID     string         `json:"id"`
	Type   string         `json:"type"`
	Config map[string]any `json:"config,omitempty"`
}

// ConnectionDef is a serializable connection within a Definition. Input
// is the sending soma, Output the receiving one, matching the runtime's
// Connect operation.
type ConnectionDef struct {
	Input  string `json:"input"`
	Output string `json:"output"`
	Role   string `json:"role"`
}

// Validate checks structural integrity of the Definition:
//   - BP-001: definition has at least one soma
//   - BP-002: soma IDs are unique and non-empty
//   - BP-003: main references an existing soma
//   - BP-004: connection endpoints reference existing somas
//   - BP-005: connection roles are non-empty
//   - BP-006: somas unreachable by any connection (warning)
//
// Registry-dependent checks (unknown soma types) are performed via
// ValidateWithTypes.
func (d *Definition) Validate() []Diagnostic {
	var diags []Diagnostic

	if len(d.Somas) == 0 {
		diags = append(diags, Diagnostic{
			Code:     "BP-001",
			Severity: SeverityError,
			Message:  "definition has no somas",
			Path:     "somas",
		})
		return diags
	}

	ids := make(map[string]bool, len(d.Somas))
	for i, s := range d.Somas {
		if s.ID == "" {
			diags = append(diags, Diagnostic{
				Code:     "BP-002",
				Severity: SeverityError,
				Message:  "soma has an empty ID",
				Path:     fmt.Sprintf("somas[%d].id", i),
			})
			continue
		}
		if ids[s.ID] {
			diags = append(diags, Diagnostic{
				Code:     "BP-002",
				Severity: SeverityError,
				Message:  fmt.Sprintf("duplicate soma ID %q", s.ID),
				Path:     fmt.Sprintf("somas[%d].id", i),
			})
		}
		ids[s.ID] = true
	}

	if d.Main == "" {
		diags = append(diags, Diagnostic{
			Code:     "BP-003",
			Severity: SeverityError,
			Message:  "no main soma designated",
			Path:     "main",
		})
	} else if !ids[d.Main] {
		diags = append(diags, Diagnostic{
			Code:     "BP-003",
			Severity: SeverityError,
			Message:  fmt.Sprintf("main soma %q does not exist", d.Main),
			Path:     "main",
		})
	}

	connected := make(map[string]bool, len(d.Somas))
	connected[d.Main] = true
	for i, c := range d.Connections {
		if !ids[c.Input] {
			diags = append(diags, Diagnostic{
				Code:     "BP-004",
				Severity: SeverityError,
				Message:  fmt.Sprintf("connection input %q does not exist", c.Input),
				Path:     fmt.Sprintf("connections[%d].input", i),
			})
		}
		if !ids[c.Output] {
			diags = append(diags, Diagnostic{
				Code:     "BP-004",
				Severity: SeverityError,
				Message:  fmt.Sprintf("connection output %q does not exist", c.Output),
				Path:     fmt.Sprintf("connections[%d].output", i),
			})
		}
		if c.Role == "" {
			diags = append(diags, Diagnostic{
				Code:     "BP-005",
				Severity: SeverityError,
				Message:  "connection has an empty role",
				Path:     fmt.Sprintf("connections[%d].role", i),
			})
		}
		connected[c.Input] = true
		connected[c.Output] = true
	}

	for i, s := range d.Somas {
		if s.ID != "" && !connected[s.ID] {
			diags = append(diags, Diagnostic{
				Code:     "BP-006",
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("soma %q has no connections", s.ID),
				Path:     fmt.Sprintf("somas[%d]", i),
			})
		}
	}

	return diags
}

// ValidateWithTypes runs Validate and additionally checks every soma type
// against the known type names.
func (d *Definition) ValidateWithTypes(known func(string) bool) []Diagnostic {
	diags := d.Validate()

	for i, s := range d.Somas {
		if s.Type == "" {
			diags = append(diags, Diagnostic{
				Code:     "BP-007",
				Severity: SeverityError,
				Message:  fmt.Sprintf("soma %q has an empty type", s.ID),
				Path:     fmt.Sprintf("somas[%d].type", i),
			})
			continue
		}
		if known != nil && !known(s.Type) {
			diags = append(diags, Diagnostic{
				Code:     "BP-008",
				Severity: SeverityError,
				Message:  fmt.Sprintf("unknown soma type %q", s.Type),
				Path:     fmt.Sprintf("somas[%d].type", i),
			})
		}
	}

	return diags
}
