package questions

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// File is a question bank file holding canonical questions for several roles.
//
//	roles:
//	  - role_id: swe
//	    questions:
//	      - Describe a complex technical challenge you faced.
type File struct {
	Roles []RoleQuestions `yaml:"roles"`
}

// RoleQuestions is the ordered question list of one role
type RoleQuestions struct {
	RoleID    string   `yaml:"role_id"`
	Questions []string `yaml:"questions"`
}

// LoadFile reads and parses a YAML question bank file.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read question bank %s: %w", path, err)
	}
	return ParseFile(data)
}

// ParseFile parses YAML question bank content.
func ParseFile(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse question bank YAML: %w", err)
	}
	if len(f.Roles) == 0 {
		return nil, &ValidationError{Field: "roles", Message: "question bank defines no roles"}
	}
	for i, role := range f.Roles {
		if _, err := Build(role.RoleID, role.Questions); err != nil {
			return nil, fmt.Errorf("roles[%d]: %w", i, err)
		}
	}
	return &f, nil
}

// Role returns the question list of a role, or nil.
func (f *File) Role(roleID string) *RoleQuestions {
	for i := range f.Roles {
		if f.Roles[i].RoleID == roleID {
			return &f.Roles[i]
		}
	}
	return nil
}

// ImportFile imports every role of the file and returns counts keyed by role.
func (b *Bank) ImportFile(ctx context.Context, f *File) (map[string]int, error) {
	counts := make(map[string]int, len(f.Roles))
	for _, role := range f.Roles {
		n, err := b.ImportQuestions(ctx, role.RoleID, role.Questions)
		if err != nil {
			return counts, fmt.Errorf("import role %s: %w", role.RoleID, err)
		}
		counts[role.RoleID] = n
	}
	return counts, nil
}
