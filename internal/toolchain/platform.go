package toolchain

import (
	"fmt"
	"runtime"
	"strings"
)

// Platform identifies a host operating system the SDK ships a toolchain for.
type Platform int

const (
	Windows Platform = iota + 1
	Linux
	Darwin
)

// Platforms lists every supported platform.
var Platforms = []Platform{Windows, Linux, Darwin}

func (p Platform) String() string {
	switch p {
	case Windows:
		return "windows"
	case Linux:
		return "linux"
	case Darwin:
		return "darwin"
	default:
		return fmt.Sprintf("Platform(%d)", int(p))
	}
}

// UnsupportedPlatformError is returned for a host the SDK has no toolchain for.
type UnsupportedPlatformError struct {
	Name string
}

func (e *UnsupportedPlatformError) Error() string {
	return fmt.Sprintf("unsupported host platform %q: expected one of windows, linux, darwin", e.Name)
}

// ParsePlatform maps a platform identifier to a Platform. Both Go (`windows`)
// and Python style (`win32`, `linux2`) spellings are accepted.
func ParsePlatform(name string) (Platform, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "windows", "win32":
		return Windows, nil
	case "linux", "linux2":
		return Linux, nil
	case "darwin", "macos", "mac":
		return Darwin, nil
	default:
		return 0, &UnsupportedPlatformError{Name: name}
	}
}

// HostPlatform returns the platform of the running process.
func HostPlatform() (Platform, error) {
	return ParsePlatform(runtime.GOOS)
}
