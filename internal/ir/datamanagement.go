package ir

import (
	"fmt"
	"regexp"
)

// DataManagement describes which record types are reconciled by content and
// which fields make up their identity.
type DataManagement struct {
	// IdentityFields is the default IdentitySpec. Order is significant.
	IdentityFields []string `json:"identity_fields"`

	// Overrides replaces IdentityFields for specific record types.
	Overrides map[string][]string `json:"overrides,omitempty"`

	// Include and Exclude are anchored regular expressions over type names.
	// A type is managed when it matches some Include and no Exclude.
	Include []string `json:"include"`
	Exclude []string `json:"exclude,omitempty"`

	include []*regexp.Regexp
	exclude []*regexp.Regexp
}

// Compile validates and compiles the inclusion filters. It must be called
// once before IsManaged.
func (dm *DataManagement) Compile() error {
	var err error
	if dm.include, err = compilePatterns(dm.Include); err != nil {
		return fmt.Errorf("include: %w", err)
	}
	if dm.exclude, err = compilePatterns(dm.Exclude); err != nil {
		return fmt.Errorf("exclude: %w", err)
	}
	return nil
}

func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("^(?:" + p + ")$")
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

// IsManaged reports whether typeName passes the inclusion filters.
func (dm *DataManagement) IsManaged(typeName string) bool {
	matched := false
	for _, re := range dm.include {
		if re.MatchString(typeName) {
			matched = true
			break
		}
	}
	if !matched {
		return false
	}
	for _, re := range dm.exclude {
		if re.MatchString(typeName) {
			return false
		}
	}
	return true
}

// IdentityFor returns the IdentitySpec of typeName: the override when one
// exists, the default identity fields otherwise. The returned slice is a copy.
func (dm *DataManagement) IdentityFor(typeName string) []string {
	fields := dm.IdentityFields
	if override, ok := dm.Overrides[typeName]; ok {
		fields = override
	}
	out := make([]string, len(fields))
	copy(out, fields)
	return out
}
