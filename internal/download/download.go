// Package download fetches release archives, verifies their checksums,
// and installs the contained executable atomically.
package download

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/fatih/color"

	"github.com/iii-hq/iii-cli/internal/github"
	"github.com/iii-hq/iii-cli/internal/registry"
)

// ChecksumMismatchError reports a corrupted or tampered download.
type ChecksumMismatchError struct {
	Asset    string
	Expected string
	Actual   string
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("SHA256 checksum mismatch for %s. Expected: %s, got: %s. The downloaded file may be corrupted. Try running the command again",
		e.Asset, e.Expected, e.Actual)
}

// Install downloads an asset, verifies its checksum when a sidecar URL
// is supplied, extracts the named executable from the archive, and
// writes it to targetPath atomically. Progress is reported to out.
func Install(ctx context.Context, client *github.Client, spec *registry.BinarySpec, asset *github.ReleaseAsset, checksumURL, targetPath string, out io.Writer) error {
	archiveBytes, err := fetchWithProgress(ctx, client, asset.BrowserDownloadURL, asset.Size, out)
	if err != nil {
		return err
	}

	if checksumURL != "" {
		if err := verifyChecksum(ctx, client, checksumURL, archiveBytes, asset.Name); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(out, "  %s Checksum not available for %s, skipping verification\n",
			color.YellowString("warning:"), spec.Name)
	}

	binaryBytes, err := extractBinary(spec.Name, archiveBytes)
	if err != nil {
		return err
	}

	return atomicWriteBinary(binaryBytes, targetPath)
}

// fetchWithProgress downloads url into memory, printing a progress
// meter against the declared size (or the Content-Length when the
// declared size is zero).
func fetchWithProgress(ctx context.Context, client *github.Client, url string, declaredSize int64, out io.Writer) ([]byte, error) {
	resp, err := client.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("download failed: status %d for %s", resp.StatusCode, url)
	}

	total := declaredSize
	if total <= 0 {
		total = resp.ContentLength
	}

	var buf bytes.Buffer
	if total > 0 {
		buf.Grow(int(total))
	}

	meter := newProgressMeter(out, total)
	if _, err := io.Copy(io.MultiWriter(&buf, meter), resp.Body); err != nil {
		meter.clear()
		return nil, fmt.Errorf("download failed: %w", err)
	}
	meter.clear()

	return buf.Bytes(), nil
}

// progressMeter rewrites a single status line as bytes arrive.
type progressMeter struct {
	out     io.Writer
	total   int64
	written int64
	lastPct int
}

func newProgressMeter(out io.Writer, total int64) *progressMeter {
	return &progressMeter{out: out, total: total, lastPct: -1}
}

func (p *progressMeter) Write(b []byte) (int, error) {
	p.written += int64(len(b))
	if p.total > 0 {
		pct := int(p.written * 100 / p.total)
		if pct != p.lastPct {
			p.lastPct = pct
			fmt.Fprintf(p.out, "\r  downloading... %3d%% (%s / %s)", pct, formatBytes(p.written), formatBytes(p.total))
		}
	} else {
		fmt.Fprintf(p.out, "\r  downloading... %s", formatBytes(p.written))
	}
	return len(b), nil
}

func (p *progressMeter) clear() {
	fmt.Fprintf(p.out, "\r%s\r", strings.Repeat(" ", 60))
}

func formatBytes(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

// verifyChecksum fetches the sidecar file and compares its digest with
// the downloaded bytes. Sidecar format is "hash  filename" or a bare
// "hash"; the first whitespace-delimited token is the expected digest.
func verifyChecksum(ctx context.Context, client *github.Client, checksumURL string, data []byte, assetName string) error {
	resp, err := client.Get(ctx, checksumURL)
	if err != nil {
		return fmt.Errorf("failed to fetch checksum: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("failed to fetch checksum: status %d", resp.StatusCode)
	}

	text, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read checksum: %w", err)
	}

	fields := strings.Fields(string(text))
	if len(fields) == 0 {
		return errors.New("empty checksum file")
	}
	expected := strings.ToLower(fields[0])

	sum := sha256.Sum256(data)
	actual := hex.EncodeToString(sum[:])

	if actual != expected {
		return &ChecksumMismatchError{Asset: assetName, Expected: expected, Actual: actual}
	}
	return nil
}

// extractBinary pulls the named executable out of the platform archive
// format: tar.gz everywhere except Windows, which ships zip.
func extractBinary(binaryName string, archiveBytes []byte) ([]byte, error) {
	if runtime.GOOS == "windows" {
		return extractFromZip(binaryName, archiveBytes)
	}
	return extractFromTarGz(binaryName, archiveBytes)
}

// extractFromTarGz searches every entry for a basename matching the
// binary name; the binary may sit at the root or in a subdirectory.
func extractFromTarGz(binaryName string, archiveBytes []byte) ([]byte, error) {
	gz, err := gzip.NewReader(bytes.NewReader(archiveBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to extract archive: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to extract archive: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		if filepath.Base(hdr.Name) == binaryName {
			buf, err := io.ReadAll(tr)
			if err != nil {
				return nil, fmt.Errorf("failed to extract archive: %w", err)
			}
			return buf, nil
		}
	}
	return nil, fmt.Errorf("failed to extract archive: binary %q not found in archive", binaryName)
}

// extractFromZip is the Windows counterpart; entries may be named with
// or without the .exe suffix.
func extractFromZip(binaryName string, archiveBytes []byte) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(archiveBytes), int64(len(archiveBytes)))
	if err != nil {
		return nil, fmt.Errorf("failed to extract archive: %w", err)
	}

	exeName := binaryName + ".exe"
	for _, f := range zr.File {
		base := filepath.Base(filepath.FromSlash(f.Name))
		if base != binaryName && base != exeName {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to extract archive: %w", err)
		}
		buf, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to extract archive: %w", err)
		}
		return buf, nil
	}
	return nil, fmt.Errorf("failed to extract archive: binary %q not found in archive", binaryName)
}

// atomicWriteBinary writes data to a sibling temp file and renames it
// over targetPath, so the target never holds a partial executable.
func atomicWriteBinary(data []byte, targetPath string) error {
	if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
		return fmt.Errorf("failed to create install directory: %w", err)
	}

	tempPath := targetPath + ".tmp"

	mode := os.FileMode(0o644)
	if runtime.GOOS != "windows" {
		mode = 0o755
	}
	if err := os.WriteFile(tempPath, data, mode); err != nil {
		return fmt.Errorf("failed to write binary: %w", err)
	}
	// WriteFile only applies the mode on creation; force it in case a
	// stale temp file from an interrupted run was reused.
	if runtime.GOOS != "windows" {
		if err := os.Chmod(tempPath, 0o755); err != nil {
			_ = os.Remove(tempPath)
			return fmt.Errorf("failed to set permissions: %w", err)
		}
	}

	if err := os.Rename(tempPath, targetPath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to install binary: %w", err)
	}
	return nil
}
