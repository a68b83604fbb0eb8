package blueprint

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const yamlDefinition = `
name: pipeline
somas:
  - id: echo
    type: relay
    config:
      in: data
      out: sink
  - id: source
    type: sender
  - id: sink
    type: recorder
main: echo
connections:
  - input: source
    output: echo
    role: data
  - input: echo
    output: sink
    role: sink
`

const jsonDefinition = `{
  "name": "pipeline",
  "somas": [
    {"id": "echo", "type": "relay"},
    {"id": "source", "type": "sender"}
  ],
  "main": "echo",
  "connections": [
    {"input": "source", "output": "echo", "role": "data"}
  ]
}`

func TestLoadBytes_YAML(t *testing.T) {
	def, err := LoadBytes([]byte(yamlDefinition), "pipeline.yaml")
	if err != nil {
		t.Fatalf("LoadBytes() error = %v", err)
	}

	if def.Name != "pipeline" {
		t.Errorf("Name = %q, want pipeline", def.Name)
	}
	if len(def.Somas) != 3 {
		t.Fatalf("loaded %d somas, want 3", len(def.Somas))
	}
	if def.Main != "echo" {
		t.Errorf("Main = %q, want echo", def.Main)
	}
	if got := def.Somas[0].Config["in"]; got != "data" {
		t.Errorf("echo config in = %v, want data", got)
	}
	if len(def.Connections) != 2 || def.Connections[0].Role != "data" {
		t.Errorf("connections = %+v", def.Connections)
	}
}

func TestLoadBytes_JSON(t *testing.T) {
	def, err := LoadBytes([]byte(jsonDefinition), "pipeline.json")
	if err != nil {
		t.Fatalf("LoadBytes() error = %v", err)
	}
	if len(def.Somas) != 2 || def.Somas[1].ID != "source" {
		t.Errorf("somas = %+v", def.Somas)
	}
}

func TestLoadBytes_InvalidDefinition(t *testing.T) {
	bad := `{"name": "broken", "somas": [{"id": "a", "type": "relay"}], "main": "ghost"}`
	_, err := LoadBytes([]byte(bad), "broken.json")

	var diagErr *DiagnosticError
	if !errors.As(err, &diagErr) {
		t.Fatalf("LoadBytes() error = %v, want DiagnosticError", err)
	}
	if !hasCode(diagErr.Diagnostics, "BP-003") {
		t.Errorf("diagnostics = %v, want BP-003", diagnosticCodes(diagErr.Diagnostics))
	}
}

func TestLoadBytes_MalformedYAML(t *testing.T) {
	if _, err := LoadBytes([]byte(":\n  - ["), "broken.yaml"); err == nil {
		t.Error("LoadBytes() should reject malformed YAML")
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.yml")
	if err := os.WriteFile(path, []byte(yamlDefinition), 0o600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	def, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if def.Name != "pipeline" {
		t.Errorf("Name = %q, want pipeline", def.Name)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Error("Load() should fail for a missing file")
	}
}
