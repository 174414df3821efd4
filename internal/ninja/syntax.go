package ninja

import (
	"bufio"
	"fmt"
	"io"
	"slices"
	"sort"
	"strings"
)

// RequiredVersion is the oldest Ninja release that understands the emitted
// file. Pools and the built-in console pool need 1.5.
const RequiredVersion = "1.5"

// lineWidth is the column at which long statements are wrapped.
const lineWidth = 78

// Header is written as a comment at the top of every generated file.
const Header = "This file is generated by pnaclgen. Do not edit."

// WriteTo serializes the accumulated graph in Ninja syntax.
func (w *Writer) WriteTo(out io.Writer) (int64, error) {
	cw := &countingWriter{w: out}
	bw := bufio.NewWriter(cw)
	lw := &lineWriter{w: bw, width: lineWidth}
	render(lw, w.Snapshot())
	if err := bw.Flush(); err != nil {
		return cw.n, fmt.Errorf("failed to write build file: %w", err)
	}
	return cw.n, nil
}

// String renders the graph as it would be written to disk.
func (w *Writer) String() string {
	var sb strings.Builder
	_, _ = w.WriteTo(&sb)
	return sb.String()
}

func render(lw *lineWriter, g *Graph) {
	lw.comment(Header)
	lw.variable("ninja_required_version", RequiredVersion, 0)
	lw.newline()

	for _, v := range g.Variables {
		lw.variable(v.Name, v.Value, 0)
	}
	if len(g.Variables) > 0 {
		lw.newline()
	}

	for _, p := range g.Pools {
		lw.line("pool "+p.Name, 0)
		lw.variable("depth", fmt.Sprint(p.Depth), 1)
		lw.newline()
	}

	for _, r := range g.Rules {
		lw.line("rule "+r.Name, 0)
		lw.variable("command", r.Command, 1)
		lw.variable("description", r.Description, 1)
		lw.variable("depfile", r.Depfile, 1)
		lw.variable("deps", r.Deps, 1)
		lw.variable("pool", r.Pool, 1)
		lw.newline()
	}

	for _, e := range g.Edges {
		lw.build(e.Outputs, e.Rule, e.Inputs)
		keys := make([]string, 0, len(e.Variables))
		for k := range e.Variables {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			lw.variable(k, e.Variables[k], 1)
		}
		lw.newline()
	}

	for _, m := range g.MetaTargets {
		lw.build([]string{m.Name}, PhonyRule, m.Outputs)
		lw.newline()
	}

	if len(g.Defaults) > 0 {
		lw.line("default "+strings.Join(escapePaths(g.Defaults), " "), 0)
	}
}

// EscapePath escapes the characters that are significant in a Ninja path list.
func EscapePath(path string) string {
	return strings.NewReplacer("$", "$$", " ", "$ ", ":", "$:").Replace(path)
}

// EscapeValue escapes a literal string for use as a variable value, so Ninja
// does not read its `$` as a variable reference.
func EscapeValue(value string) string {
	return strings.ReplaceAll(value, "$", "$$")
}

func escapePaths(paths []string) []string {
	escaped := make([]string, len(paths))
	for i, p := range paths {
		escaped[i] = EscapePath(p)
	}
	return escaped
}

type lineWriter struct {
	w     io.StringWriter
	width int
}

func (lw *lineWriter) newline() {
	_, _ = lw.w.WriteString("\n")
}

func (lw *lineWriter) comment(text string) {
	_, _ = lw.w.WriteString("# " + text + "\n")
}

// variable writes `name = value`; empty values are omitted entirely.
func (lw *lineWriter) variable(name, value string, indent int) {
	if value == "" {
		return
	}
	lw.line(name+" = "+value, indent)
}

func (lw *lineWriter) build(outputs []string, rule string, inputs []string) {
	text := strings.Join(escapePaths(outputs), " ") + ": " + rule
	if len(inputs) > 0 {
		text += " " + strings.Join(escapePaths(inputs), " ")
	}
	lw.line("build "+text, 0)
}

// line writes text, wrapping it at unescaped spaces with `$` continuations.
// Continuation lines are indented two levels deeper than the first.
func (lw *lineWriter) line(text string, indent int) {
	leading := strings.Repeat("  ", indent)
	for len(leading)+len(text) > lw.width {
		// Leave room for the trailing " $".
		available := lw.width - len(leading) - len(" $")
		space := lastUnescapedSpace(text, available)
		if space < 0 {
			space = firstUnescapedSpace(text, available)
			if space < 0 {
				break
			}
		}
		_, _ = lw.w.WriteString(leading + text[:space] + " $\n")
		text = text[space+1:]
		leading = strings.Repeat("  ", indent+2)
	}
	_, _ = lw.w.WriteString(leading + text + "\n")
}

// isEscaped reports whether the byte at i is preceded by an odd number of `$`.
func isEscaped(text string, i int) bool {
	dollars := 0
	for j := i - 1; j >= 0 && text[j] == '$'; j-- {
		dollars++
	}
	return dollars%2 == 1
}

func lastUnescapedSpace(text string, limit int) int {
	for i := min(limit, len(text)-1); i > 0; i-- {
		if text[i] == ' ' && !isEscaped(text, i) {
			return i
		}
	}
	return -1
}

func firstUnescapedSpace(text string, from int) int {
	for i := max(from, 1); i < len(text); i++ {
		if text[i] == ' ' && !isEscaped(text, i) {
			return i
		}
	}
	return -1
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// Outputs lists every output of the graph in emission order, meta-targets last.
func (g *Graph) Outputs() []string {
	var outputs []string
	for _, e := range g.Edges {
		outputs = append(outputs, e.Outputs...)
	}
	for _, m := range g.MetaTargets {
		outputs = append(outputs, m.Name)
	}
	return slices.Clip(outputs)
}
