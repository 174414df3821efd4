package configuration

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/alessio/shellescape"
	"github.com/vk/pnaclgen/internal/ctxlog"
	"github.com/vk/pnaclgen/internal/ninja"
	"github.com/vk/pnaclgen/internal/rules"
	"github.com/vk/pnaclgen/internal/toolchain"
)

// DefaultArch is the architecture portable executables are translated for.
const DefaultArch = "x86-64"

// DefaultInstallMode is the permission mode of installed files.
const DefaultInstallMode fs.FileMode = 0o644

// Writer is the graph sink a Configuration emits into.
type Writer interface {
	DeclareVariable(name, value string) error
	DeclareRule(ninja.Rule) error
	EmitEdge(ninja.Edge) error
}

// Options are the process-wide settings declared as build variables.
type Options struct {
	// SDKRoot is the NaCl SDK location. It is not checked for existence.
	SDKRoot string
	// Arch is the translation target architecture.
	Arch     string
	CFlags   string
	CXXFlags string
	OptFlags string
	LDFlags  string
}

func (o Options) withDefaults() Options {
	if o.Arch == "" {
		o.Arch = DefaultArch
	}
	if o.CFlags == "" {
		o.CFlags = "-std=gnu99"
	}
	if o.CXXFlags == "" {
		o.CXXFlags = "-std=gnu++11"
	}
	if o.OptFlags == "" {
		o.OptFlags = "-O3"
	}
	if o.LDFlags == "" {
		o.LDFlags = "-pthread"
	}
	return o
}

// Language selects the C or C++ flavor of the compile and link rules.
type Language int

const (
	C Language = iota + 1
	CXX
)

func (l Language) String() string {
	switch l {
	case C:
		return "c"
	case CXX:
		return "c++"
	default:
		return fmt.Sprintf("Language(%d)", int(l))
	}
}

func (l Language) compileRule() (string, error) {
	switch l {
	case C:
		return rules.CC, nil
	case CXX:
		return rules.CXX, nil
	}
	return "", fmt.Errorf("unsupported language %s", l)
}

func (l Language) linkRule() (string, error) {
	switch l {
	case C:
		return rules.CCLD, nil
	case CXX:
		return rules.CXXLD, nil
	}
	return "", fmt.Errorf("unsupported language %s", l)
}

// Configuration emits build edges for high-level build actions.
type Configuration struct {
	w    Writer
	arch string
}

// New declares the toolchain and flag variables and the rule catalog on w.
func New(ctx context.Context, w Writer, tc *toolchain.Paths, opts Options) (*Configuration, error) {
	logger := ctxlog.FromContext(ctx)
	if tc == nil {
		return nil, fmt.Errorf("toolchain paths are required")
	}
	if opts.SDKRoot == "" {
		return nil, fmt.Errorf("SDK root is required")
	}
	opts = opts.withDefaults()

	for _, v := range []ninja.Variable{
		{Name: toolchain.SDKVariable, Value: ninja.EscapeValue(opts.SDKRoot)},
		{Name: "pnacl_toolchain_dir", Value: tc.ToolchainDir},
		{Name: "pnacl_cc", Value: tc.CC},
		{Name: "pnacl_cxx", Value: tc.CXX},
		{Name: "pnacl_ar", Value: tc.AR},
		{Name: "pnacl_finalize", Value: tc.Finalize},
		{Name: "pnacl_translate", Value: tc.Translate},
		{Name: "pnacl_sel_ldr", Value: tc.Loader},
		{Name: "cflags", Value: opts.CFlags},
		{Name: "cxxflags", Value: opts.CXXFlags},
		{Name: "optflags", Value: opts.OptFlags},
		{Name: "ldflags", Value: opts.LDFlags},
	} {
		if err := w.DeclareVariable(v.Name, v.Value); err != nil {
			return nil, fmt.Errorf("failed to declare build variables: %w", err)
		}
	}
	logger.Debug("Build variables declared.", "sdk_root", opts.SDKRoot, "arch", opts.Arch)

	if err := rules.Register(w); err != nil {
		return nil, err
	}
	logger.Debug("Rule catalog registered.", "count", len(rules.Catalog()))

	return &Configuration{w: w, arch: opts.Arch}, nil
}

// Arch returns the translation target architecture.
func (c *Configuration) Arch() string {
	return c.arch
}

// Compile emits an edge compiling sourceFile. A relative source resolves
// against the session source directory. When objectFile is empty the object
// mirrors the source's position under the source directory inside the build
// directory, with the object suffix appended; otherwise a relative objectFile
// resolves against the build directory.
func (c *Configuration) Compile(ctx context.Context, s *Session, lang Language, sourceFile, objectFile string) (string, error) {
	edge, err := compileEdge(s, lang, sourceFile, objectFile)
	if err != nil {
		return "", &OperationError{Op: "compile", Subject: sourceFile, Err: err}
	}
	return c.emit(ctx, "compile", sourceFile, edge)
}

// CompileC compiles a C source to its default object path.
func (c *Configuration) CompileC(ctx context.Context, s *Session, sourceFile string) (string, error) {
	return c.Compile(ctx, s, C, sourceFile, "")
}

// CompileCXX compiles a C++ source to its default object path.
func (c *Configuration) CompileCXX(ctx context.Context, s *Session, sourceFile string) (string, error) {
	return c.Compile(ctx, s, CXX, sourceFile, "")
}

// Link emits an edge linking objects (and archives) into a portable binary.
// A relative binaryFile resolves against the build directory. Library
// directory and library flags are only attached when their lists are non-empty.
// As with include directories, entries starting with `$` are Ninja variable
// references.
func (c *Configuration) Link(ctx context.Context, s *Session, lang Language, objectFiles []string, binaryFile string, libDirs, libs []string) (string, error) {
	edge, err := linkEdge(s, lang, objectFiles, binaryFile, libDirs, libs)
	if err != nil {
		return "", &OperationError{Op: "link", Subject: binaryFile, Err: err}
	}
	return c.emit(ctx, "link", binaryFile, edge)
}

// Archive emits an edge archiving objects into a static library. A relative
// archiveFile resolves against the artifact directory.
func (c *Configuration) Archive(ctx context.Context, s *Session, objectFiles []string, archiveFile string) (string, error) {
	edge, err := archiveEdge(s, objectFiles, archiveFile)
	if err != nil {
		return "", &OperationError{Op: "archive", Subject: archiveFile, Err: err}
	}
	return c.emit(ctx, "archive", archiveFile, edge)
}

// Finalize emits an edge turning a portable binary (relative to the build
// directory) into a finalized portable executable (relative to the artifact
// directory).
func (c *Configuration) Finalize(ctx context.Context, s *Session, binaryFile, executableFile string) (string, error) {
	edge, err := finalizeEdge(s, binaryFile, executableFile)
	if err != nil {
		return "", &OperationError{Op: "finalize", Subject: executableFile, Err: err}
	}
	return c.emit(ctx, "finalize", executableFile, edge)
}

// Translate emits an edge translating a portable executable into native code
// for the configured architecture. Both paths resolve against the artifact
// directory.
func (c *Configuration) Translate(ctx context.Context, s *Session, portableFile, nativeFile string) (string, error) {
	edge, err := translateEdge(s, c.arch, portableFile, nativeFile)
	if err != nil {
		return "", &OperationError{Op: "translate", Subject: nativeFile, Err: err}
	}
	return c.emit(ctx, "translate", nativeFile, edge)
}

// Run declares target as an invokable entry point that runs executableFile
// in the sandbox loader. Run edges are serialized with respect to each other.
func (c *Configuration) Run(ctx context.Context, s *Session, executableFile, target string) error {
	edge, err := runEdge(s, executableFile, target)
	if err != nil {
		return &OperationError{Op: "run", Subject: target, Err: err}
	}
	_, err = c.emit(ctx, "run", target, edge)
	return err
}

// Install emits an edge copying sourceFile (relative to the root) to
// destinationFile (relative to the install prefix) with the given mode.
// A zero mode means DefaultInstallMode.
func (c *Configuration) Install(ctx context.Context, s *Session, sourceFile, destinationFile string, mode fs.FileMode) (string, error) {
	edge, err := installEdge(s, sourceFile, destinationFile, mode)
	if err != nil {
		return "", &OperationError{Op: "install", Subject: destinationFile, Err: err}
	}
	return c.emit(ctx, "install", destinationFile, edge)
}

func (c *Configuration) emit(ctx context.Context, op, subject string, edge ninja.Edge) (string, error) {
	if err := c.w.EmitEdge(edge); err != nil {
		return "", &OperationError{Op: op, Subject: subject, Err: err}
	}
	ctxlog.FromContext(ctx).Debug("Build edge emitted.",
		"op", op,
		"rule", edge.Rule,
		"output", edge.Outputs[0],
		"inputs", len(edge.Inputs),
	)
	return edge.Outputs[0], nil
}

func compileEdge(s *Session, lang Language, sourceFile, objectFile string) (ninja.Edge, error) {
	rule, err := lang.compileRule()
	if err != nil {
		return ninja.Edge{}, err
	}
	source, err := resolve(s.SourceDir, "source dir", sourceFile)
	if err != nil {
		return ninja.Edge{}, err
	}

	var object string
	if objectFile == "" {
		object, err = defaultObjectPath(s, source)
	} else {
		object, err = resolve(s.BuildDir, "build dir", objectFile)
	}
	if err != nil {
		return ninja.Edge{}, err
	}

	vars := map[string]string{rules.VarDescPath: descPath(s.SourceDir, source)}
	if len(s.IncludeDirs) > 0 {
		vars[rules.VarIncludes] = joinFlags(rules.IncludeFlag, s.IncludeDirs)
	}
	return ninja.Edge{
		Outputs:   []string{object},
		Rule:      rule,
		Inputs:    []string{source},
		Variables: vars,
	}, nil
}

// defaultObjectPath mirrors source under the build directory. Sources outside
// the source directory have no mirror position and need an explicit object.
func defaultObjectPath(s *Session, source string) (string, error) {
	if s.BuildDir == "" || !filepath.IsAbs(s.BuildDir) {
		return "", fmt.Errorf("cannot derive object for %q: session build dir %q is not absolute", source, s.BuildDir)
	}
	rel, err := filepath.Rel(s.SourceDir, source)
	if err != nil || !filepath.IsLocal(rel) {
		return "", fmt.Errorf("cannot derive object for %q: not inside source dir %q", source, s.SourceDir)
	}
	return filepath.Join(s.BuildDir, rel) + s.ObjectSuffix, nil
}

func linkEdge(s *Session, lang Language, objectFiles []string, binaryFile string, libDirs, libs []string) (ninja.Edge, error) {
	rule, err := lang.linkRule()
	if err != nil {
		return ninja.Edge{}, err
	}
	inputs, err := resolveAll(s.BuildDir, "build dir", objectFiles)
	if err != nil {
		return ninja.Edge{}, err
	}
	binary, err := resolve(s.BuildDir, "build dir", binaryFile)
	if err != nil {
		return ninja.Edge{}, err
	}

	vars := map[string]string{rules.VarDescPath: descPath(s.BuildDir, binary)}
	if len(libDirs) > 0 {
		vars[rules.VarLibDirs] = joinFlags(rules.LibDirFlag, libDirs)
	}
	if len(libs) > 0 {
		vars[rules.VarLibs] = joinFlags(rules.LibFlag, libs)
	}
	return ninja.Edge{Outputs: []string{binary}, Rule: rule, Inputs: inputs, Variables: vars}, nil
}

func archiveEdge(s *Session, objectFiles []string, archiveFile string) (ninja.Edge, error) {
	inputs, err := resolveAll(s.BuildDir, "build dir", objectFiles)
	if err != nil {
		return ninja.Edge{}, err
	}
	archive, err := resolve(s.ArtifactDir, "artifact dir", archiveFile)
	if err != nil {
		return ninja.Edge{}, err
	}
	return ninja.Edge{
		Outputs:   []string{archive},
		Rule:      rules.AR,
		Inputs:    inputs,
		Variables: map[string]string{rules.VarDescPath: descPath(s.ArtifactDir, archive)},
	}, nil
}

func finalizeEdge(s *Session, binaryFile, executableFile string) (ninja.Edge, error) {
	binary, err := resolve(s.BuildDir, "build dir", binaryFile)
	if err != nil {
		return ninja.Edge{}, err
	}
	executable, err := resolve(s.ArtifactDir, "artifact dir", executableFile)
	if err != nil {
		return ninja.Edge{}, err
	}
	return ninja.Edge{
		Outputs:   []string{executable},
		Rule:      rules.Finalize,
		Inputs:    []string{binary},
		Variables: map[string]string{rules.VarDescPath: descPath(s.ArtifactDir, executable)},
	}, nil
}

func translateEdge(s *Session, arch, portableFile, nativeFile string) (ninja.Edge, error) {
	portable, err := resolve(s.ArtifactDir, "artifact dir", portableFile)
	if err != nil {
		return ninja.Edge{}, err
	}
	native, err := resolve(s.ArtifactDir, "artifact dir", nativeFile)
	if err != nil {
		return ninja.Edge{}, err
	}
	return ninja.Edge{
		Outputs: []string{native},
		Rule:    rules.Translate,
		Inputs:  []string{portable},
		Variables: map[string]string{
			rules.VarDescPath: descPath(s.ArtifactDir, native),
			rules.VarArch:     arch,
		},
	}, nil
}

func runEdge(s *Session, executableFile, target string) (ninja.Edge, error) {
	if target == "" || strings.ContainsAny(target, `/\`) {
		return ninja.Edge{}, fmt.Errorf("invalid target name %q", target)
	}
	executable, err := resolve(s.ArtifactDir, "artifact dir", executableFile)
	if err != nil {
		return ninja.Edge{}, err
	}
	return ninja.Edge{
		Outputs:   []string{target},
		Rule:      rules.Run,
		Inputs:    []string{executable},
		Variables: map[string]string{rules.VarDescPath: descPath(s.ArtifactDir, executable)},
	}, nil
}

func installEdge(s *Session, sourceFile, destinationFile string, mode fs.FileMode) (ninja.Edge, error) {
	if mode == 0 {
		mode = DefaultInstallMode
	}
	source, err := resolve(s.RootDir, "root dir", sourceFile)
	if err != nil {
		return ninja.Edge{}, err
	}
	destination, err := resolve(s.PrefixDir, "prefix dir", destinationFile)
	if err != nil {
		return ninja.Edge{}, err
	}
	return ninja.Edge{
		Outputs: []string{destination},
		Rule:    rules.Install,
		Inputs:  []string{source},
		Variables: map[string]string{
			rules.VarDescPath: descPath(s.PrefixDir, destination),
			rules.VarMode:     FormatMode(mode),
		},
	}, nil
}

// FormatMode renders permission bits as a zero-led octal string, e.g. "0644".
func FormatMode(mode fs.FileMode) string {
	return fmt.Sprintf("%04o", uint32(mode.Perm()))
}

func resolveAll(base, baseName string, paths []string) ([]string, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no input files")
	}
	resolved := make([]string, len(paths))
	for i, p := range paths {
		abs, err := resolve(base, baseName, p)
		if err != nil {
			return nil, err
		}
		resolved[i] = abs
	}
	return resolved, nil
}

// joinFlags prefixes each value with flag and shell-quotes the result. A
// value starting with `$` is a Ninja variable reference and expands inside
// the quotes; any other value is a literal whose `$` is escaped for Ninja.
func joinFlags(flag string, values []string) string {
	parts := make([]string, len(values))
	for i, v := range values {
		arg := shellescape.Quote(flag + v)
		if !isReference(v) {
			arg = ninja.EscapeValue(arg)
		}
		parts[i] = arg
	}
	return strings.Join(parts, " ")
}

func isReference(value string) bool {
	return strings.HasPrefix(value, "$")
}

func descPath(base, path string) string {
	return ninja.EscapeValue(describe(base, path))
}
