// Package platform maps the running OS/architecture to release target
// triples and file-system locations.
package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/iii-hq/iii-cli/internal/registry"
)

// CurrentTarget returns the target triple used to select release assets
// for the running platform.
//
// Linux x86_64 prefers musl for maximum portability.
// Linux aarch64 uses gnu (no musl builds available upstream).
func CurrentTarget() string {
	switch runtime.GOOS + "/" + runtime.GOARCH {
	case "darwin/arm64":
		return "aarch64-apple-darwin"
	case "darwin/amd64":
		return "x86_64-apple-darwin"
	case "linux/amd64":
		return "x86_64-unknown-linux-musl"
	case "linux/arm64":
		return "aarch64-unknown-linux-gnu"
	case "windows/amd64":
		return "x86_64-pc-windows-msvc"
	case "windows/arm64":
		return "aarch64-pc-windows-msvc"
	default:
		return runtime.GOARCH + "-unknown-" + runtime.GOOS
	}
}

// ArchiveExtension returns the release archive extension for the
// current platform.
func ArchiveExtension() string {
	if runtime.GOOS == "windows" {
		return "zip"
	}
	return "tar.gz"
}

// AssetName builds the expected release asset filename for a binary,
// e.g. "iii-console-aarch64-apple-darwin.tar.gz".
func AssetName(binaryName string) string {
	return fmt.Sprintf("%s-%s.%s", binaryName, CurrentTarget(), ArchiveExtension())
}

// ChecksumAssetName builds the expected checksum sidecar filename,
// e.g. "iii-console-aarch64-apple-darwin.sha256". Checksum assets never
// carry the archive extension.
func ChecksumAssetName(binaryName string) string {
	return fmt.Sprintf("%s-%s.sha256", binaryName, CurrentTarget())
}

// UnsupportedPlatformError reports that a binary has no build for the
// current platform.
type UnsupportedPlatformError struct {
	Binary    string
	Platform  string
	Supported []string
}

func (e *UnsupportedPlatformError) Error() string {
	return fmt.Sprintf("%s is not available for %s. Supported platforms: %s",
		e.Binary, e.Platform, strings.Join(e.Supported, ", "))
}

// CheckPlatformSupport verifies the current target is one the spec
// ships for.
func CheckPlatformSupport(spec *registry.BinarySpec) error {
	target := CurrentTarget()
	for _, t := range spec.SupportedTargets {
		if t == target {
			return nil
		}
	}
	supported := make([]string, 0, len(spec.SupportedTargets))
	for _, t := range spec.SupportedTargets {
		supported = append(supported, HumanTarget(t))
	}
	return &UnsupportedPlatformError{
		Binary:    spec.Name,
		Platform:  HumanTarget(target),
		Supported: supported,
	}
}

// HumanTarget formats a target triple for user-facing messages.
func HumanTarget(target string) string {
	switch target {
	case "aarch64-apple-darwin":
		return "macOS (Apple Silicon)"
	case "x86_64-apple-darwin":
		return "macOS (Intel)"
	case "x86_64-unknown-linux-gnu":
		return "Linux x86_64 (glibc)"
	case "x86_64-unknown-linux-musl":
		return "Linux x86_64 (musl)"
	case "aarch64-unknown-linux-gnu":
		return "Linux ARM64"
	case "x86_64-pc-windows-msvc":
		return "Windows x86_64"
	case "aarch64-pc-windows-msvc":
		return "Windows ARM64"
	default:
		return target
	}
}

// Dirs holds the two storage roots. Bin is where managed executables
// land (PATH-visible), Data is where state and config live. They must
// never nest one inside the other on Unix so that installs stay on the
// user's PATH while bookkeeping stays in the data directory.
type Dirs struct {
	Bin  string
	Data string
}

// DefaultDirs resolves the conventional per-user locations.
//
//   - Data: $XDG_DATA_HOME/iii-cli (Linux), ~/Library/Application
//     Support/iii-cli (macOS), %LOCALAPPDATA%\iii-cli (Windows).
//   - Bin: ~/.local/bin on macOS/Linux (matches install.sh convention),
//     Data\bin on Windows.
func DefaultDirs() Dirs {
	data := dataRoot()
	var bin string
	if runtime.GOOS == "windows" {
		bin = filepath.Join(data, "bin")
	} else {
		bin = filepath.Join(homeDir(), ".local", "bin")
	}
	return Dirs{Bin: bin, Data: data}
}

func dataRoot() string {
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(homeDir(), "Library", "Application Support", "iii-cli")
	case "windows":
		if dir := os.Getenv("LOCALAPPDATA"); dir != "" {
			return filepath.Join(dir, "iii-cli")
		}
		return filepath.Join(homeDir(), "AppData", "Local", "iii-cli")
	default:
		if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
			return filepath.Join(dir, "iii-cli")
		}
		return filepath.Join(homeDir(), ".local", "share", "iii-cli")
	}
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

// BinaryPath returns the managed install path for a binary.
func (d Dirs) BinaryPath(binaryName string) string {
	return filepath.Join(d.Bin, exeName(binaryName))
}

// StateFile returns the path of the persisted state document.
func (d Dirs) StateFile() string {
	return filepath.Join(d.Data, "state.json")
}

// Ensure idempotently creates both storage directories.
func (d Dirs) Ensure() error {
	if err := os.MkdirAll(d.Bin, 0o755); err != nil {
		return fmt.Errorf("failed to create bin directory %s: %w", d.Bin, err)
	}
	if err := os.MkdirAll(d.Data, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory %s: %w", d.Data, err)
	}
	return nil
}

// FindExistingBinary locates an installation of a binary, checking the
// managed bin directory first and then each directory on PATH in order.
// Absence is not an error.
func (d Dirs) FindExistingBinary(binaryName string) (string, bool) {
	exe := exeName(binaryName)

	managed := filepath.Join(d.Bin, exe)
	if fileExists(managed) {
		return managed, true
	}

	for _, dir := range filepath.SplitList(os.Getenv("PATH")) {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, exe)
		if fileExists(candidate) {
			return candidate, true
		}
	}
	return "", false
}

func exeName(binaryName string) string {
	if runtime.GOOS == "windows" {
		return binaryName + ".exe"
	}
	return binaryName
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
