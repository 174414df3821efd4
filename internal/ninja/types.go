package ninja

// ConsolePool is Ninja's built-in single-slot pool. Edges bound to it run one
// at a time and own the terminal while they do.
const ConsolePool = "console"

// PhonyRule is Ninja's built-in alias rule used for meta-targets.
const PhonyRule = "phony"

// Variable is a file-scope variable declaration.
type Variable struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

// Pool is a named execution pool limiting how many edges run concurrently.
type Pool struct {
	Name  string `yaml:"name"`
	Depth int    `yaml:"depth"`
}

// Rule is a reusable command template.
type Rule struct {
	Name        string `yaml:"name"`
	Command     string `yaml:"command"`
	Description string `yaml:"description,omitempty"`
	// Depfile names the compiler-emitted dependency side file.
	Depfile string `yaml:"depfile,omitempty"`
	// Deps selects how Ninja ingests Depfile ("gcc" or "msvc").
	Deps string `yaml:"deps,omitempty"`
	// Pool binds the rule to a named pool; empty means the default pool.
	Pool string `yaml:"pool,omitempty"`
}

// TracksHeaders reports whether edges using the rule are rebuilt when a
// header recorded in the compiler's dependency file changes.
func (r Rule) TracksHeaders() bool {
	return r.Depfile != ""
}

// Edge is a single build statement.
type Edge struct {
	Outputs   []string          `yaml:"outputs"`
	Rule      string            `yaml:"rule"`
	Inputs    []string          `yaml:"inputs,omitempty"`
	Variables map[string]string `yaml:"variables,omitempty"`
}

// MetaTarget aggregates other outputs under one invokable name.
type MetaTarget struct {
	Name    string   `yaml:"name"`
	Outputs []string `yaml:"outputs"`
}

// Graph is a plain-data view of everything declared on a Writer, in
// emission order.
type Graph struct {
	Variables   []Variable   `yaml:"variables"`
	Pools       []Pool       `yaml:"pools,omitempty"`
	Rules       []Rule       `yaml:"rules"`
	Edges       []Edge       `yaml:"edges"`
	MetaTargets []MetaTarget `yaml:"meta_targets,omitempty"`
	Defaults    []string     `yaml:"defaults,omitempty"`
}

// EdgeFor returns the edge producing the given output.
func (g *Graph) EdgeFor(output string) (Edge, bool) {
	for _, e := range g.Edges {
		for _, o := range e.Outputs {
			if o == output {
				return e, true
			}
		}
	}
	return Edge{}, false
}

// EdgesByRule returns all edges using the named rule, in emission order.
func (g *Graph) EdgesByRule(rule string) []Edge {
	var edges []Edge
	for _, e := range g.Edges {
		if e.Rule == rule {
			edges = append(edges, e)
		}
	}
	return edges
}

// MetaTarget returns the meta-target with the given name.
func (g *Graph) MetaTarget(name string) (MetaTarget, bool) {
	for _, m := range g.MetaTargets {
		if m.Name == name {
			return m, true
		}
	}
	return MetaTarget{}, false
}

// Variable returns the value of a file-scope variable.
func (g *Graph) Variable(name string) (string, bool) {
	for _, v := range g.Variables {
		if v.Name == name {
			return v.Value, true
		}
	}
	return "", false
}

// Rule returns the declared rule with the given name.
func (g *Graph) Rule(name string) (Rule, bool) {
	for _, r := range g.Rules {
		if r.Name == name {
			return r, true
		}
	}
	return Rule{}, false
}
