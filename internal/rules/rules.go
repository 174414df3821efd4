// Package rules is the fixed catalog of build rules used by generated PNaCl
// build graphs. Rules are immutable and are declared once, before any edge.
package rules

import (
	"fmt"
	"slices"

	"github.com/vk/pnaclgen/internal/ninja"
)

// Rule names.
const (
	CC        = "CC"
	CXX       = "CXX"
	CCLD      = "CCLD"
	CXXLD     = "CXXLD"
	AR        = "AR"
	Finalize  = "FINALIZE"
	Translate = "TRANSLATE"
	Run       = "RUN"
	Install   = "INSTALL"
)

// Edge variables read by the rule commands.
const (
	VarDescPath = "descpath"
	VarIncludes = "includes"
	VarLibDirs  = "libdirs"
	VarLibs     = "libs"
	VarArch     = "arch"
	VarMode     = "mode"
)

// Flag prefixes used to build list-valued edge variables.
const (
	IncludeFlag = "-I"
	LibDirFlag  = "-L"
	LibFlag     = "-l"
)

var catalog = []ninja.Rule{
	{
		Name:        CC,
		Command:     "$pnacl_cc -o $out -c $in -MMD -MF $out.d $optflags $cflags $includes",
		Description: "CC $descpath",
		Depfile:     "$out.d",
		Deps:        "gcc",
	},
	{
		Name:        CXX,
		Command:     "$pnacl_cxx -o $out -c $in -MMD -MF $out.d $optflags $cxxflags $includes",
		Description: "CXX $descpath",
		Depfile:     "$out.d",
		Deps:        "gcc",
	},
	{
		Name:        CCLD,
		Command:     "$pnacl_cc $ldflags $libdirs -o $out $in $libs",
		Description: "CCLD $descpath",
	},
	{
		Name:        CXXLD,
		Command:     "$pnacl_cxx $ldflags $libdirs -o $out $in $libs",
		Description: "CXXLD $descpath",
	},
	{
		Name:        AR,
		Command:     "$pnacl_ar rcs $out $in",
		Description: "AR $descpath",
	},
	{
		Name:        Finalize,
		Command:     "$pnacl_finalize -o $out $in",
		Description: "FINALIZE $descpath",
	},
	{
		Name:        Translate,
		Command:     "$pnacl_translate -arch $arch -o $out $in",
		Description: "TRANSLATE $descpath",
	},
	{
		// sel_ldr is not reentrant with respect to the shared sandbox, so
		// runs are serialized through the single-slot console pool.
		Name:        Run,
		Command:     "$pnacl_sel_ldr $in",
		Description: "RUN $descpath",
		Pool:        ninja.ConsolePool,
	},
	{
		Name:        Install,
		Command:     "install -m $mode $in $out",
		Description: "INSTALL $descpath",
	},
}

// Catalog returns the rules in declaration order.
func Catalog() []ninja.Rule {
	return slices.Clone(catalog)
}

// Lookup returns the catalog rule with the given name.
func Lookup(name string) (ninja.Rule, bool) {
	i := slices.IndexFunc(catalog, func(r ninja.Rule) bool { return r.Name == name })
	if i < 0 {
		return ninja.Rule{}, false
	}
	return catalog[i], true
}

// RuleDeclarer is the part of the graph writer the registry needs.
type RuleDeclarer interface {
	DeclareRule(ninja.Rule) error
}

// Register declares every catalog rule on the writer, in order.
func Register(w RuleDeclarer) error {
	for _, r := range catalog {
		if err := w.DeclareRule(r); err != nil {
			return fmt.Errorf("failed to register rule %s: %w", r.Name, err)
		}
	}
	return nil
}
