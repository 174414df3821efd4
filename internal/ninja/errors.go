package ninja

import (
	"fmt"
	"strings"
)

// DuplicateVariableError is returned when a file-scope variable is declared twice.
type DuplicateVariableError struct {
	Name string
}

func (e *DuplicateVariableError) Error() string {
	return fmt.Sprintf("variable %q already declared", e.Name)
}

// DuplicatePoolError is returned when a pool is declared twice or shadows a built-in pool.
type DuplicatePoolError struct {
	Name string
}

func (e *DuplicatePoolError) Error() string {
	return fmt.Sprintf("pool %q already declared", e.Name)
}

// DuplicateRuleError is returned when a rule is declared twice or shadows a built-in rule.
type DuplicateRuleError struct {
	Name string
}

func (e *DuplicateRuleError) Error() string {
	return fmt.Sprintf("rule %q already declared", e.Name)
}

// LateRuleError is returned when a rule is declared after edges have been emitted.
type LateRuleError struct {
	Name  string
	Edges int
}

func (e *LateRuleError) Error() string {
	return fmt.Sprintf("rule %q declared after %d build edges; rules must be declared first", e.Name, e.Edges)
}

// UnknownPoolError is returned when a rule references a pool that was never declared.
type UnknownPoolError struct {
	Rule, Pool string
}

func (e *UnknownPoolError) Error() string {
	return fmt.Sprintf("rule %q references undeclared pool %q", e.Rule, e.Pool)
}

// UndeclaredRuleError is returned when an edge references a rule that was never declared.
type UndeclaredRuleError struct {
	Rule    string
	Outputs []string
}

func (e *UndeclaredRuleError) Error() string {
	return fmt.Sprintf("edge for %s references undeclared rule %q", strings.Join(e.Outputs, " "), e.Rule)
}

// DuplicateOutputError is returned when two edges claim the same output.
type DuplicateOutputError struct {
	Output string
	// Rule is the rule of the edge that already produces Output.
	Rule string
}

func (e *DuplicateOutputError) Error() string {
	return fmt.Sprintf("output %q already produced by rule %s", e.Output, e.Rule)
}

// UnknownTargetError is returned when a meta-target or default names an
// output that no edge produces.
type UnknownTargetError struct {
	Target string
	Within string
}

func (e *UnknownTargetError) Error() string {
	return fmt.Sprintf("%s references %q, which no build edge produces", e.Within, e.Target)
}

// InvalidEdgeError is returned for structurally malformed edges.
type InvalidEdgeError struct {
	Rule   string
	Reason string
	Err    error
}

func (e *InvalidEdgeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid %s edge: %s: %v", e.Rule, e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid %s edge: %s", e.Rule, e.Reason)
}

func (e *InvalidEdgeError) Unwrap() error { return e.Err }
