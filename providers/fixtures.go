package providers

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Fixture is one persisted pattern→response registration.
type Fixture struct {
	Pattern  string `json:"pattern" yaml:"pattern"`
	Response string `json:"response" yaml:"response"`
}

// FixtureFile is the on-disk shape for substitute-client registrations.
// Registrations keep file order, so fixture files control match precedence.
type FixtureFile struct {
	Fixtures []Fixture `json:"fixtures" yaml:"fixtures"`
}

// LoadFixtures reads a YAML fixture file and registers every entry on the
// provider in file order.
func LoadFixtures(m *MockProvider, path string) error {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to read fixture file %s: %w", path, err)
	}

	var file FixtureFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse fixture file %s: %w", path, err)
	}

	for _, f := range file.Fixtures {
		if f.Pattern == "" {
			return fmt.Errorf("fixture file %s: fixture with empty pattern", path)
		}
		m.SetResponse(f.Pattern, f.Response)
	}

	return nil
}
