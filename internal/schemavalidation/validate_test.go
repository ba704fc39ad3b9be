package schemavalidation

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"rxoverlay/internal/config"
)

// repoPath resolves a path relative to the repository root, working
// from this source file so the tests run from any directory.
func repoPath(t *testing.T, elem ...string) string {
	t.Helper()
	_, src, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("cannot locate source file")
	}
	parts := append([]string{filepath.Dir(src), "..", ".."}, elem...)
	return filepath.Clean(filepath.Join(parts...))
}

// loadSchema compiles the published config schema.
func loadSchema(t *testing.T) *jsonschema.Schema {
	t.Helper()
	path := repoPath(t, "docs", "schema", "config-v2.schema.json")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read schema: %v", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(path, bytes.NewReader(data)); err != nil {
		t.Fatalf("add schema resource: %v", err)
	}
	schema, err := compiler.Compile(path)
	if err != nil {
		t.Fatalf("compile schema: %v", err)
	}
	return schema
}

func decodeJSON(t *testing.T, data []byte) any {
	t.Helper()
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	return v
}

func TestFixtureMatchesSchema(t *testing.T) {
	schema := loadSchema(t)

	data, err := os.ReadFile(repoPath(t, "docs", "spec", "fixtures", "config-v2.json"))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	if err := schema.Validate(decodeJSON(t, data)); err != nil {
		t.Errorf("fixture rejected by schema: %v", err)
	}
}

// TestDefaultConfigMatchesSchema keeps the published schema and the
// compiled-in defaults from drifting apart.
func TestDefaultConfigMatchesSchema(t *testing.T) {
	schema := loadSchema(t)

	data, err := json.Marshal(config.DefaultConfig())
	if err != nil {
		t.Fatalf("marshal default config: %v", err)
	}
	if err := schema.Validate(decodeJSON(t, data)); err != nil {
		t.Errorf("default config rejected by schema: %v", err)
	}
}

func TestSchemaRejectsBadInstances(t *testing.T) {
	schema := loadSchema(t)

	bad := map[string]string{
		"missing scancode":         `{"version": 2, "overlay": {}, "hotkeys": {"toggle": {"mods": ["CTRL"]}}, "injection": {}}`,
		"unknown modifier":         `{"version": 2, "overlay": {}, "hotkeys": {"toggle": {"mods": ["HYPER"], "scancode": 42}}, "injection": {}}`,
		"opacity out of range":     `{"version": 2, "overlay": {"opacity": 1.5}, "hotkeys": {}, "injection": {}}`,
		"unknown injection method": `{"version": 2, "overlay": {}, "hotkeys": {}, "injection": {"method": "postmessage"}}`,
	}

	for name, instance := range bad {
		t.Run(name, func(t *testing.T) {
			if err := schema.Validate(decodeJSON(t, []byte(instance))); err == nil {
				t.Error("expected schema validation to fail")
			}
		})
	}
}
