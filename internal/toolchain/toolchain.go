// Package toolchain resolves where the PNaCl compiler, archiver, finalizer,
// translator and sandbox loader live inside the NaCl SDK for a given host
// platform. Resolution is a pure function of the platform; the returned
// paths are expressed relative to the $nacl_sdk_dir build variable and the
// filesystem is never consulted.
package toolchain

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// SDKVariable is the build variable every resolved path is relative to.
const SDKVariable = "nacl_sdk_dir"

//go:embed profiles.hcl
var defaultProfiles []byte

// Paths names every toolchain invocation the build graph needs.
type Paths struct {
	ToolchainDir string
	CC           string
	CXX          string
	AR           string
	Finalize     string
	Translate    string
	// Loader runs a translated executable inside the sandbox.
	Loader string
}

// Profiles is a decoded platform profile table.
type Profiles struct {
	filename  string
	tools     toolsBlock
	platforms map[Platform]*platformBlock
}

type profilesFile struct {
	Tools     toolsBlock       `hcl:"tools,block"`
	Platforms []*platformBlock `hcl:"platform,block"`
}

type toolsBlock struct {
	CC        hcl.Expression `hcl:"cc"`
	CXX       hcl.Expression `hcl:"cxx"`
	AR        hcl.Expression `hcl:"ar"`
	Finalize  hcl.Expression `hcl:"finalize"`
	Translate hcl.Expression `hcl:"translate"`
	Loader    hcl.Expression `hcl:"loader"`
}

type platformBlock struct {
	Name         string `hcl:"name,label"`
	ToolchainDir string `hcl:"toolchain_dir"`
	ScriptSuffix string `hcl:"script_suffix,optional"`
	LoaderPrefix string `hcl:"loader_prefix,optional"`
}

// LoadProfiles decodes a profile table. Every platform label must name a
// supported platform and appear at most once.
func LoadProfiles(src []byte, filename string) (*Profiles, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse toolchain profiles %s: %w", filename, diags)
	}

	var root profilesFile
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode toolchain profiles %s: %w", filename, diags)
	}

	p := &Profiles{
		filename:  filename,
		tools:     root.Tools,
		platforms: make(map[Platform]*platformBlock, len(root.Platforms)),
	}
	for _, block := range root.Platforms {
		platform, err := ParsePlatform(block.Name)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filename, err)
		}
		if _, dup := p.platforms[platform]; dup {
			return nil, fmt.Errorf("%s: platform %q declared more than once", filename, block.Name)
		}
		p.platforms[platform] = block
	}
	return p, nil
}

// Resolve evaluates the tool templates for a platform.
func (p *Profiles) Resolve(platform Platform) (*Paths, error) {
	block, ok := p.platforms[platform]
	if !ok {
		return nil, &UnsupportedPlatformError{Name: platform.String()}
	}

	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"toolchain_dir": cty.StringVal(block.ToolchainDir),
			"script_suffix": cty.StringVal(block.ScriptSuffix),
			"loader_prefix": cty.StringVal(block.LoaderPrefix),
		},
	}

	paths := &Paths{ToolchainDir: block.ToolchainDir}
	for _, field := range []struct {
		name string
		expr hcl.Expression
		dst  *string
	}{
		{"cc", p.tools.CC, &paths.CC},
		{"cxx", p.tools.CXX, &paths.CXX},
		{"ar", p.tools.AR, &paths.AR},
		{"finalize", p.tools.Finalize, &paths.Finalize},
		{"translate", p.tools.Translate, &paths.Translate},
		{"loader", p.tools.Loader, &paths.Loader},
	} {
		value, err := evalString(field.expr, evalCtx)
		if err != nil {
			return nil, fmt.Errorf("%s: tool %q for platform %s: %w", p.filename, field.name, platform, err)
		}
		*field.dst = value
	}
	return paths, nil
}

func evalString(expr hcl.Expression, evalCtx *hcl.EvalContext) (string, error) {
	val, diags := expr.Value(evalCtx)
	if diags.HasErrors() {
		return "", diags
	}
	val, err := convert.Convert(val, cty.String)
	if err != nil {
		return "", err
	}
	if val.IsNull() || !val.IsKnown() {
		return "", fmt.Errorf("value must be a known, non-null string")
	}
	return val.AsString(), nil
}

var builtin = sync.OnceValues(func() (*Profiles, error) {
	return LoadProfiles(defaultProfiles, "profiles.hcl")
})

// Resolve returns the toolchain paths for a platform from the built-in
// profile table.
func Resolve(platform Platform) (*Paths, error) {
	profiles, err := builtin()
	if err != nil {
		return nil, err
	}
	return profiles.Resolve(platform)
}
