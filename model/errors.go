package model

import "fmt"

// Rule names the validation rule an argument broke.
type Rule string

const (
	RuleType                 Rule = "type"
	RuleMissing              Rule = "missing"
	RuleEmpty                Rule = "empty"
	RuleLength               Rule = "length"
	RuleForbiddenChar        Rule = "forbidden-character"
	RuleMissingExtension     Rule = "missing-extension"
	RuleUnsupportedExtension Rule = "unsupported-extension"
	RuleUnknownKey           Rule = "unknown-key"
	RuleInvalidValue         Rule = "invalid-value"
)

// ArgumentError is returned for malformed paths and options. It signals a
// caller programming error, not a run-time outcome, so it never ends up in a
// notice log.
type ArgumentError struct {
	Func string
	Arg  string
	Rule Rule
	Msg  string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("%s: %s %s", e.Func, e.Arg, e.Msg)
}

func argErr(fn, arg string, rule Rule, format string, args ...any) *ArgumentError {
	return &ArgumentError{Func: fn, Arg: arg, Rule: rule, Msg: fmt.Sprintf(format, args...)}
}

// typeName describes the dynamic type of v the way error messages show it.
func typeName(v any) string {
	if v == nil {
		return "null"
	}
	return fmt.Sprintf("%T", v)
}
