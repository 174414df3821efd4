package ninja

import (
	"fmt"
	"maps"
	"slices"

	"github.com/vk/pnaclgen/internal/dag"
	"gitlab.com/kyle_anderson/go-utils/pkg/set"
)

// Writer accumulates a build graph. It is not safe for concurrent use.
type Writer struct {
	variables []Variable
	varNames  set.Set[string]
	pools     []Pool
	rules     []Rule
	ruleIndex map[string]int
	edges     []Edge
	metas     []MetaTarget
	defaults  []string

	// outputs holds every path or target name some statement produces.
	outputs set.Set[string]
	// producers maps each output to the rule of the edge producing it.
	producers map[string]string
	graph     *dag.Graph
}

// NewWriter creates an empty Writer.
func NewWriter() *Writer {
	return &Writer{
		varNames:  set.NewComparable[string](),
		ruleIndex: make(map[string]int),
		outputs:   set.NewComparable[string](),
		producers: make(map[string]string),
		graph:     dag.New(),
	}
}

// DeclareVariable declares a file-scope variable. Variables are immutable;
// declaring the same name twice is an error.
func (w *Writer) DeclareVariable(name, value string) error {
	if name == "" {
		return fmt.Errorf("variable name must not be empty")
	}
	if w.varNames.Contains(name) {
		return &DuplicateVariableError{Name: name}
	}
	w.varNames.Add(name)
	w.variables = append(w.variables, Variable{Name: name, Value: value})
	return nil
}

// DeclarePool declares a named pool of the given depth.
func (w *Writer) DeclarePool(name string, depth int) error {
	if name == ConsolePool || slices.ContainsFunc(w.pools, func(p Pool) bool { return p.Name == name }) {
		return &DuplicatePoolError{Name: name}
	}
	if depth < 1 {
		return fmt.Errorf("pool %q: depth must be positive, got %d", name, depth)
	}
	w.pools = append(w.pools, Pool{Name: name, Depth: depth})
	return nil
}

// DeclareRule declares a rule. All rules must be declared before the first edge.
func (w *Writer) DeclareRule(r Rule) error {
	if r.Name == "" || r.Command == "" {
		return fmt.Errorf("rule %q: name and command are required", r.Name)
	}
	if len(w.edges) > 0 {
		return &LateRuleError{Name: r.Name, Edges: len(w.edges)}
	}
	if _, exists := w.ruleIndex[r.Name]; exists || r.Name == PhonyRule {
		return &DuplicateRuleError{Name: r.Name}
	}
	if r.Pool != "" && r.Pool != ConsolePool && !slices.ContainsFunc(w.pools, func(p Pool) bool { return p.Name == r.Pool }) {
		return &UnknownPoolError{Rule: r.Name, Pool: r.Pool}
	}
	w.ruleIndex[r.Name] = len(w.rules)
	w.rules = append(w.rules, r)
	return nil
}

// HasRule reports whether a rule with the given name has been declared.
func (w *Writer) HasRule(name string) bool {
	_, ok := w.ruleIndex[name]
	return ok
}

// EmitEdge appends a build edge. The rule must be declared and none of the
// outputs may already be produced by an earlier statement. The edge is
// validated completely before anything is recorded.
func (w *Writer) EmitEdge(e Edge) error {
	if _, ok := w.ruleIndex[e.Rule]; !ok {
		return &UndeclaredRuleError{Rule: e.Rule, Outputs: slices.Clone(e.Outputs)}
	}
	if len(e.Outputs) == 0 {
		return &InvalidEdgeError{Rule: e.Rule, Reason: "no outputs"}
	}
	seen := set.NewComparable[string]()
	for _, out := range e.Outputs {
		if out == "" {
			return &InvalidEdgeError{Rule: e.Rule, Reason: "empty output path"}
		}
		if w.outputs.Contains(out) {
			return &DuplicateOutputError{Output: out, Rule: w.producers[out]}
		}
		if seen.Contains(out) {
			return &DuplicateOutputError{Output: out, Rule: e.Rule}
		}
		seen.Add(out)
	}
	for _, in := range e.Inputs {
		if seen.Contains(in) {
			return &InvalidEdgeError{
				Rule:   e.Rule,
				Reason: "input is also an output",
				Err:    fmt.Errorf("self-referential edge not allowed: %s -> %s", in, in),
			}
		}
	}

	for _, out := range e.Outputs {
		w.graph.AddNode(out)
		for _, in := range e.Inputs {
			w.graph.AddNode(in)
			if err := w.graph.AddEdge(in, out); err != nil {
				return &InvalidEdgeError{Rule: e.Rule, Reason: "dependency graph", Err: err}
			}
		}
		w.outputs.Add(out)
		w.producers[out] = e.Rule
	}

	w.edges = append(w.edges, cloneEdge(e))
	return nil
}

// DeclareMetaTarget declares a phony target aggregating previously produced outputs.
func (w *Writer) DeclareMetaTarget(name string, outputs []string) error {
	if w.outputs.Contains(name) {
		return &DuplicateOutputError{Output: name, Rule: w.producers[name]}
	}
	for _, out := range outputs {
		if !w.outputs.Contains(out) {
			return &UnknownTargetError{Target: out, Within: fmt.Sprintf("meta-target %q", name)}
		}
	}
	w.graph.AddNode(name)
	for _, out := range outputs {
		if err := w.graph.AddEdge(out, name); err != nil {
			return &InvalidEdgeError{Rule: PhonyRule, Reason: "dependency graph", Err: err}
		}
	}
	w.outputs.Add(name)
	w.producers[name] = PhonyRule
	w.metas = append(w.metas, MetaTarget{Name: name, Outputs: slices.Clone(outputs)})
	return nil
}

// DeclareDefaults adds outputs to the set built when no target is named.
func (w *Writer) DeclareDefaults(outputs ...string) error {
	for _, out := range outputs {
		if !w.outputs.Contains(out) {
			return &UnknownTargetError{Target: out, Within: "default target list"}
		}
	}
	for _, out := range outputs {
		if !slices.Contains(w.defaults, out) {
			w.defaults = append(w.defaults, out)
		}
	}
	return nil
}

// Produces reports whether some statement produces the given output.
func (w *Writer) Produces(output string) bool {
	return w.outputs.Contains(output)
}

// Validate checks the accumulated graph for dependency cycles.
func (w *Writer) Validate() error {
	if err := w.graph.DetectCycles(); err != nil {
		return fmt.Errorf("invalid build graph: %w", err)
	}
	return nil
}

// Dependencies returns the sorted direct inputs of an output, including the
// members of a meta-target.
func (w *Writer) Dependencies(output string) ([]string, error) {
	return w.graph.Dependencies(output)
}

// InEmissionOrder reports whether every edge was emitted after the edges
// producing its inputs.
func (w *Writer) InEmissionOrder() bool {
	var sequence []string
	for _, e := range w.edges {
		sequence = append(sequence, e.Outputs...)
	}
	for _, m := range w.metas {
		sequence = append(sequence, m.Name)
	}
	return w.graph.IsTopological(sequence)
}

// Snapshot returns a deep copy of the accumulated graph.
func (w *Writer) Snapshot() *Graph {
	g := &Graph{
		Variables: slices.Clone(w.variables),
		Pools:     slices.Clone(w.pools),
		Rules:     slices.Clone(w.rules),
		Defaults:  slices.Clone(w.defaults),
	}
	for _, e := range w.edges {
		g.Edges = append(g.Edges, cloneEdge(e))
	}
	for _, m := range w.metas {
		g.MetaTargets = append(g.MetaTargets, MetaTarget{Name: m.Name, Outputs: slices.Clone(m.Outputs)})
	}
	return g
}

func cloneEdge(e Edge) Edge {
	c := Edge{
		Outputs: slices.Clone(e.Outputs),
		Rule:    e.Rule,
		Inputs:  slices.Clone(e.Inputs),
	}
	if len(e.Variables) > 0 {
		c.Variables = maps.Clone(e.Variables)
	}
	return c
}
