package plugin

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/plugboard/plugboard/pkg/access"
)

// ManifestFile is the metadata document every recognized extension
// ships at its root.
const ManifestFile = "plugin.yaml"

var semverRegex = regexp.MustCompile(`^v?(\d+)\.(\d+)\.(\d+)(-[a-zA-Z0-9.-]+)?(\+[a-zA-Z0-9.-]+)?$`)

// Manifest is the parsed plugin metadata file. All keys are optional;
// an empty manifest is a valid extension that contributes nothing.
type Manifest struct {
	Name             string               `yaml:"name,omitempty"`
	Mount            string               `yaml:"mount,omitempty"`
	Routes           Routes               `yaml:"routes,omitempty"`
	Entities         map[string]Entity    `yaml:"entities,omitempty"`
	Permissions      []*access.Permission `yaml:"permissions,omitempty"`
	WebServiceScopes []*access.Scope      `yaml:"webServiceScopes,omitempty"`
	Menu             []MenuItem           `yaml:"menu,omitempty"`
	ViewsFolders     []string             `yaml:"viewsFolders,omitempty"`
	ImageProcessing  map[string]string    `yaml:"imageProcessing,omitempty"`
}

// ValidationError describes one manifest problem.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// LoadManifest loads and parses a plugin manifest from a file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	return &manifest, nil
}

// LoadManifestFromDir loads a plugin manifest from a directory.
func LoadManifestFromDir(dir string) (*Manifest, error) {
	return LoadManifest(filepath.Join(dir, ManifestFile))
}

// SaveManifest writes a manifest file, mainly for tests and tooling.
func SaveManifest(manifest *Manifest, path string) error {
	data, err := yaml.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// ValidateManifest performs structural validation on a manifest. A
// non-empty result aborts loading of that one extension only.
func ValidateManifest(manifest *Manifest) []ValidationError {
	var errors []ValidationError

	if manifest.Mount != "" && manifest.Mount[0] != '/' {
		errors = append(errors, ValidationError{
			Field:   "mount",
			Message: fmt.Sprintf("mount path must be absolute: %s", manifest.Mount),
		})
	}

	for name, entity := range manifest.Entities {
		switch entity.Kind {
		case "", access.EntityKindPlain, access.EntityKindContent:
		default:
			errors = append(errors, ValidationError{
				Field:   "entities." + name,
				Message: fmt.Sprintf("unknown entity kind: %s", entity.Kind),
			})
		}
		if entity.Controller == "" {
			errors = append(errors, ValidationError{
				Field:   "entities." + name,
				Message: "controller is required",
			})
		}
	}

	for i, node := range manifest.Permissions {
		errors = append(errors, validatePermissionNode(fmt.Sprintf("permissions[%d]", i), node)...)
	}

	for i, scope := range manifest.WebServiceScopes {
		if scope.ID == "" {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("webServiceScopes[%d]", i),
				Message: "scope id is required",
			})
		}
		if len(scope.Paths) == 0 {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("webServiceScopes[%d]", i),
				Message: "scope paths are required",
			})
		}
	}

	return errors
}

// validatePermissionNode checks one declared permission tree node: a
// node must be exactly a leaf (id + paths) or a group (label +
// children).
func validatePermissionNode(field string, node *access.Permission) []ValidationError {
	var errors []ValidationError

	if node.Label != "" {
		if node.ID != "" {
			errors = append(errors, ValidationError{
				Field:   field,
				Message: "a node cannot be both a group (label) and a leaf (id)",
			})
		}
		for i, child := range node.Permissions {
			errors = append(errors, validatePermissionNode(fmt.Sprintf("%s.permissions[%d]", field, i), child)...)
		}
		return errors
	}

	if node.ID == "" {
		errors = append(errors, ValidationError{Field: field, Message: "leaf id is required"})
	}
	if len(node.Paths) == 0 {
		errors = append(errors, ValidationError{Field: field, Message: "leaf paths are required"})
	}
	return errors
}

// isValidSemver checks if a version string follows semantic versioning.
func isValidSemver(version string) bool {
	return semverRegex.MatchString(version)
}
