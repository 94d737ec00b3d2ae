// Package update decides, per binary, whether an update is needed and
// drives the release client and installer. It also runs the
// time-bounded background check during normal dispatch.
package update

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/fatih/color"

	"github.com/iii-hq/iii-cli/internal/download"
	"github.com/iii-hq/iii-cli/internal/github"
	"github.com/iii-hq/iii-cli/internal/platform"
	"github.com/iii-hq/iii-cli/internal/registry"
	"github.com/iii-hq/iii-cli/internal/state"
)

// DefaultBackgroundTimeout bounds the background check so an
// unreachable network never delays dispatch by more than this.
const DefaultBackgroundTimeout = 500 * time.Millisecond

// Info describes one detected available update.
type Info struct {
	Binary  string
	Current *semver.Version
	Latest  *semver.Version
}

// Result is the outcome of one attempted update. From is nil for a
// fresh install; AlreadyUpToDate reports a short-circuited no-op.
type Result struct {
	Binary          string
	From            *semver.Version
	To              *semver.Version
	AlreadyUpToDate bool
}

// Outcome pairs a binary with its update result or error, for bulk
// reporting.
type Outcome struct {
	Binary string
	Result *Result
	Err    error
}

// Updater orchestrates release lookups, installs, and state updates.
type Updater struct {
	Client   *github.Client
	Registry registry.Registry
	Dirs     platform.Dirs
	State    *state.AppState
	// Out receives status and progress messages (normally stderr).
	Out io.Writer
	// SelfVersion is the compile-time version of the running build,
	// used as the self-update baseline when state has no record.
	SelfVersion string
}

// isBinaryInstalled checks actual on-disk presence, independent of
// state: a stale record for a deleted file must not block a fresh
// install.
func (u *Updater) isBinaryInstalled(name string) bool {
	_, found := u.Dirs.FindExistingBinary(name)
	return found
}

// UpdateBinary updates a managed binary to the latest release,
// installing it when missing.
func (u *Updater) UpdateBinary(ctx context.Context, spec *registry.BinarySpec) (*Result, error) {
	if err := platform.CheckPlatformSupport(spec); err != nil {
		return nil, err
	}

	installed := u.isBinaryInstalled(spec.Name)

	fmt.Fprintf(u.Out, "  Checking for updates to %s...\n", spec.Name)

	release, err := u.Client.FetchLatestRelease(ctx, spec)
	if err != nil {
		return nil, err
	}
	latest, err := github.ParseReleaseVersion(release.TagName)
	if err != nil {
		return nil, err
	}

	// Only short-circuit when the binary genuinely exists on disk.
	if installed {
		if current, ok := u.State.InstalledVersion(spec.Name); ok && !current.LessThan(latest) {
			return &Result{Binary: spec.Name, To: current, AlreadyUpToDate: true}, nil
		}
	}

	// Previous version is only meaningful for a binary that is
	// actually present; a stale record reports as a fresh install.
	var previous *semver.Version
	if installed {
		previous, _ = u.State.InstalledVersion(spec.Name)
	}

	return u.install(ctx, spec, release, latest, previous, installed)
}

// SelfUpdate updates iii-cli itself. The current version is the
// persisted installed version when present, falling back to the
// compile-time version, so an already-current managed copy is not
// re-downloaded just because the running binary is a dev build.
func (u *Updater) SelfUpdate(ctx context.Context) (*Result, error) {
	spec := registry.SelfSpec()

	if err := platform.CheckPlatformSupport(&spec); err != nil {
		return nil, err
	}

	fmt.Fprintf(u.Out, "  Checking for updates to %s...\n", spec.Name)

	release, err := u.Client.FetchLatestRelease(ctx, &spec)
	if err != nil {
		return nil, err
	}
	latest, err := github.ParseReleaseVersion(release.TagName)
	if err != nil {
		return nil, err
	}

	current, ok := u.State.InstalledVersion(spec.Name)
	if !ok {
		if current, err = github.ParseReleaseVersion(u.SelfVersion); err != nil {
			// Dev builds carry versions like "dev"; treat them as
			// older than any release.
			current = semver.MustParse("0.0.0")
		}
	}

	if !current.LessThan(latest) {
		return &Result{Binary: spec.Name, To: current, AlreadyUpToDate: true}, nil
	}

	return u.install(ctx, &spec, release, latest, current, true)
}

// install locates the platform asset (and checksum sidecar when the
// release publishes one), runs the installer, and records the install.
func (u *Updater) install(ctx context.Context, spec *registry.BinarySpec, release *github.Release, latest, previous *semver.Version, updating bool) (*Result, error) {
	assetName := platform.AssetName(spec.Name)
	asset := github.FindAsset(release, assetName)
	if asset == nil {
		return nil, &github.AssetNotFoundError{
			Binary:   spec.Name,
			Platform: platform.CurrentTarget(),
		}
	}

	var checksumURL string
	if spec.HasChecksum {
		if sidecar := github.FindAsset(release, platform.ChecksumAssetName(spec.Name)); sidecar != nil {
			checksumURL = sidecar.BrowserDownloadURL
		}
	}

	// The banner keys on disk presence, not on a recorded version: a
	// binary found on PATH with no state record is still an update.
	if updating {
		fmt.Fprintf(u.Out, "  Updating %s to v%s...\n", spec.Name, latest)
	} else {
		fmt.Fprintf(u.Out, "  Installing %s v%s...\n", spec.Name, latest)
	}

	targetPath := u.Dirs.BinaryPath(spec.Name)
	if err := download.Install(ctx, u.Client, spec, asset, checksumURL, targetPath, u.Out); err != nil {
		return nil, err
	}

	u.State.RecordInstall(spec.Name, latest, assetName)

	return &Result{Binary: spec.Name, From: previous, To: latest}, nil
}

// UpdateAll runs self-update first, then every registry entry. Every
// binary is attempted; failures are collected, never aborting the rest.
func (u *Updater) UpdateAll(ctx context.Context) []Outcome {
	outcomes := make([]Outcome, 0, len(u.Registry)+1)

	res, err := u.SelfUpdate(ctx)
	outcomes = append(outcomes, Outcome{Binary: registry.SelfSpec().Name, Result: res, Err: err})

	for i := range u.Registry {
		spec := &u.Registry[i]
		res, err := u.UpdateBinary(ctx, spec)
		outcomes = append(outcomes, Outcome{Binary: spec.Name, Result: res, Err: err})
	}
	return outcomes
}

// CheckForUpdates scans every binary currently tracked in state (not
// the registry) and reports those with a newer release. Failures for
// one binary are intentionally discarded; the scan is best-effort.
func (u *Updater) CheckForUpdates(ctx context.Context) []Info {
	var updates []Info

	for name, bin := range u.State.Binaries {
		spec, ok := u.Registry.Lookup(name)
		if !ok {
			continue
		}
		release, err := u.Client.FetchLatestRelease(ctx, spec)
		if err != nil {
			continue
		}
		latest, err := github.ParseReleaseVersion(release.TagName)
		if err != nil {
			continue
		}
		if latest.GreaterThan(bin.Version) {
			updates = append(updates, Info{Binary: name, Current: bin.Version, Latest: latest})
		}
	}
	return updates
}

// BackgroundCheck runs the update scan during dispatch with a strict
// wall-clock bound. It returns (nil, false) when no check is due or the
// scan did not finish in time; in the latter case the check stays due
// so the next invocation retries cleanly. completed=true means the
// caller should mark and persist the check timestamp.
func (u *Updater) BackgroundCheck(ctx context.Context, timeout time.Duration) (updates []Info, completed bool) {
	if !u.State.IsUpdateCheckDue() {
		return nil, false
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan []Info, 1)
	go func() {
		done <- u.CheckForUpdates(ctx)
	}()

	select {
	case updates = <-done:
		return updates, true
	case <-ctx.Done():
		// Abandon the in-flight scan; partial results are discarded.
		return nil, false
	}
}

// PrintNotifications writes informational update notices to w.
func PrintNotifications(w io.Writer, reg registry.Registry, updates []Info) {
	if len(updates) == 0 {
		return
	}
	fmt.Fprintln(w)
	for _, upd := range updates {
		fmt.Fprintf(w, "  %s Update available: %s %s → %s (run `iii-cli update %s`)\n",
			color.YellowString("info:"),
			upd.Binary,
			upd.Current,
			color.GreenString(upd.Latest.String()),
			reg.CommandForBinary(upd.Binary),
		)
	}
	fmt.Fprintln(w)
}

// PrintOutcome writes the result of one update attempt to w.
func PrintOutcome(w io.Writer, o Outcome) {
	switch {
	case o.Err != nil:
		fmt.Fprintf(w, "  %s %s\n", color.RedString("error:"), o.Err)
	case o.Result.AlreadyUpToDate:
		fmt.Fprintf(w, "  %s %s is already up to date (v%s)\n",
			color.GreenString("✓"), o.Result.Binary, o.Result.To)
	case o.Result.From != nil:
		fmt.Fprintf(w, "  %s %s updated: %s → %s\n",
			color.GreenString("✓"), o.Result.Binary, o.Result.From, color.GreenString(o.Result.To.String()))
	default:
		fmt.Fprintf(w, "  %s %s installed: v%s\n",
			color.GreenString("✓"), o.Result.Binary, color.GreenString(o.Result.To.String()))
	}
}
