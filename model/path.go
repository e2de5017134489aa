// Package model holds the argument rules of a conversion: which paths are
// acceptable for input and output, and how caller options are resolved.
package model

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// Role tells the validator which side of a conversion a path is on.
type Role int

const (
	Input Role = iota
	Output
)

// MaxPathLength is the longest accepted path, in characters.
const MaxPathLength = 1000

// OutputExt is the only extension accepted for output paths.
const OutputExt = "glb"

const forbiddenChars = `<>:"|?*`

// ArgName is the argument name used in error messages for r.
func (r Role) ArgName() string {
	if r == Output {
		return "outputPath"
	}
	return "inputPath"
}

func (r Role) String() string {
	if r == Output {
		return "output"
	}
	return "input"
}

// PathValidator checks paths against the safety rules and the extension set
// of their role.
type PathValidator struct {
	Formats *FormatTable
}

// NewPathValidator returns a validator bound to formats. A nil table means
// the built-in formats.
func NewPathValidator(formats *FormatTable) *PathValidator {
	if formats == nil {
		formats = DefaultFormats()
	}
	return &PathValidator{Formats: formats}
}

// ValidatePath validates path with the built-in format table.
func ValidatePath(fn string, role Role, path string) error {
	return NewPathValidator(nil).Validate(fn, role, path)
}

// PathFromValue checks that v is a string and a valid path for role. It is
// meant for dynamically typed sources such as decoded manifests.
func (v *PathValidator) PathFromValue(fn string, role Role, val any) (string, error) {
	s, ok := val.(string)
	if !ok {
		return "", argErr(fn, role.ArgName(), RuleType, "must be a string, got %s", typeName(val))
	}
	if err := v.Validate(fn, role, s); err != nil {
		return "", err
	}
	return s, nil
}

// Validate returns an *ArgumentError naming fn, the role's argument and the
// first rule path breaks.
func (v *PathValidator) Validate(fn string, role Role, path string) error {
	arg := role.ArgName()
	if path == "" {
		return argErr(fn, arg, RuleEmpty, "must not be empty")
	}
	if n := utf8.RuneCountInString(path); n > MaxPathLength {
		return argErr(fn, arg, RuleLength, "must be at most %d characters, got %d", MaxPathLength, n)
	}
	for _, r := range path {
		if r <= 0x1f {
			return argErr(fn, arg, RuleForbiddenChar, "contains control character %U", r)
		}
		if strings.ContainsRune(forbiddenChars, r) {
			return argErr(fn, arg, RuleForbiddenChar, "contains forbidden character %q", r)
		}
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if ext == "" {
		return argErr(fn, arg, RuleMissingExtension, "has no file extension")
	}
	switch role {
	case Output:
		if ext != OutputExt {
			return argErr(fn, arg, RuleUnsupportedExtension,
				"has unsupported extension %q (expected .%s)", "."+ext, OutputExt)
		}
	default:
		if !v.Formats.Supports(ext) {
			return argErr(fn, arg, RuleUnsupportedExtension,
				"has unsupported extension %q (supported: %s)", "."+ext, strings.Join(v.Formats.Extensions(), ", "))
		}
	}
	return nil
}

// String renders the validator's accepted input extensions.
func (v *PathValidator) String() string {
	return fmt.Sprintf("input: %s; output: %s", strings.Join(v.Formats.Extensions(), ","), OutputExt)
}
