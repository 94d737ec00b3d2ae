// Package advisory fetches the published security advisories document
// and matches it against installed binaries. Advisory delivery is
// strictly best-effort: fetch or parse problems yield an empty
// document, never an error surfaced to dispatch.
package advisory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/Masterminds/semver/v3"
	"github.com/fatih/color"

	"github.com/iii-hq/iii-cli/internal/github"
	"github.com/iii-hq/iii-cli/internal/registry"
	"github.com/iii-hq/iii-cli/internal/state"
)

// DefaultURL is where advisories are published.
const DefaultURL = "https://raw.githubusercontent.com/iii-hq/iii-cli/main/advisories.json"

// Document is the top-level advisories file.
type Document struct {
	Advisories []Advisory `json:"advisories"`
}

// Advisory is a single published advisory.
type Advisory struct {
	// ID is the advisory identifier, e.g. "ADV-2026-001".
	ID string `json:"id"`
	// Severity is one of "critical", "high", "medium", "low".
	Severity string `json:"severity"`
	// AffectedBinary names the managed binary, e.g. "iii-console".
	AffectedBinary string `json:"affected_binary"`
	// AffectedVersions is a semver range, e.g. "<0.2.5".
	AffectedVersions string `json:"affected_versions"`
	// FixedVersion is the first version with the fix.
	FixedVersion string `json:"fixed_version"`
	Message      string `json:"message"`
	URL          string `json:"url,omitempty"`
}

// Match pairs an advisory with the installed version it applies to.
type Match struct {
	Advisory  Advisory
	Installed *semver.Version
}

// Fetch downloads and parses the advisories document. Non-2xx
// responses and malformed documents come back as an empty document.
func Fetch(ctx context.Context, client *github.Client, url string) (*Document, error) {
	if url == "" {
		url = DefaultURL
	}

	resp, err := client.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch advisories: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Document{}, nil
	}

	var doc Document
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return &Document{}, nil
	}
	return &doc, nil
}

// Check matches advisories against the installed binaries in s. An
// advisory with an unparseable version range is skipped.
func Check(doc *Document, s *state.AppState) []Match {
	var matched []Match

	for _, adv := range doc.Advisories {
		bin, ok := s.Binaries[adv.AffectedBinary]
		if !ok {
			continue
		}
		constraint, err := semver.NewConstraint(adv.AffectedVersions)
		if err != nil {
			continue
		}
		if constraint.Check(bin.Version) {
			matched = append(matched, Match{Advisory: adv, Installed: bin.Version})
		}
	}
	return matched
}

// PrintWarnings writes advisory warnings to w. Critical advisories use
// a bold red prefix, high uses red, everything else yellow.
func PrintWarnings(w io.Writer, reg registry.Registry, matched []Match) {
	if len(matched) == 0 {
		return
	}

	fmt.Fprintln(w)
	for _, m := range matched {
		var prefix string
		switch m.Advisory.Severity {
		case "critical":
			prefix = color.New(color.FgRed, color.Bold).Sprint("CRITICAL")
		case "high":
			prefix = color.RedString("WARNING")
		default:
			prefix = color.YellowString("NOTICE")
		}

		fmt.Fprintf(w, "  %s [%s] %s (installed: v%s, fixed in: v%s)\n",
			prefix, m.Advisory.ID, m.Advisory.Message, m.Installed, m.Advisory.FixedVersion)

		cmd := reg.CommandForBinary(m.Advisory.AffectedBinary)
		fmt.Fprintf(w, "         Run: %s\n", color.New(color.Bold).Sprintf("iii-cli update %s", cmd))

		if m.Advisory.URL != "" {
			fmt.Fprintf(w, "         Details: %s\n", m.Advisory.URL)
		}
	}
	fmt.Fprintln(w)
}
