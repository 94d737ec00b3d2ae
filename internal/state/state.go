// Package state persists the record of installed binaries and update
// checks as a JSON document, written atomically.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Masterminds/semver/v3"
)

const defaultIntervalHours = 24

// AppState is the durable process-wide record. An entry exists in
// Binaries iff an install/update completed for that name at least once;
// the entry may go stale if the file is later deleted externally, which
// callers detect by checking on-disk presence independently.
type AppState struct {
	Binaries                 map[string]BinaryState `json:"binaries"`
	LastUpdateCheck          *time.Time             `json:"last_update_check,omitempty"`
	UpdateCheckIntervalHours uint                   `json:"update_check_interval_hours"`
}

// BinaryState records a single installed binary.
type BinaryState struct {
	Version     *semver.Version `json:"version"`
	InstalledAt time.Time       `json:"installed_at"`
	AssetName   string          `json:"asset_name"`
}

// Default returns a fresh empty state.
func Default() *AppState {
	return &AppState{
		Binaries:                 make(map[string]BinaryState),
		UpdateCheckIntervalHours: defaultIntervalHours,
	}
}

// Load reads the state document. An absent file yields the default
// state; malformed content is a hard error so corruption is never
// silently masked.
func Load(path string) (*AppState, error) {
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var s AppState
	if err := json.Unmarshal(content, &s); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}
	if s.Binaries == nil {
		s.Binaries = make(map[string]BinaryState)
	}
	if s.UpdateCheckIntervalHours == 0 {
		s.UpdateCheckIntervalHours = defaultIntervalHours
	}
	return &s, nil
}

// Save writes the document atomically: serialize to a sibling temp
// file, then rename over the target. The temp file is removed when the
// rename fails.
func (s *AppState) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	content, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize state: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, content, 0o644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to save state file: %w", err)
	}
	return nil
}

// IsUpdateCheckDue reports whether a background check should run: true
// when no check has ever completed, or when the configured interval has
// elapsed since the last one.
func (s *AppState) IsUpdateCheckDue() bool {
	if s.LastUpdateCheck == nil {
		return true
	}
	elapsed := time.Since(*s.LastUpdateCheck)
	return elapsed >= time.Duration(s.UpdateCheckIntervalHours)*time.Hour
}

// RecordInstall upserts the record for a binary, stamping now as the
// install time.
func (s *AppState) RecordInstall(name string, version *semver.Version, assetName string) {
	s.Binaries[name] = BinaryState{
		Version:     version,
		InstalledAt: time.Now().UTC(),
		AssetName:   assetName,
	}
}

// InstalledVersion returns the recorded version for a binary, if any.
func (s *AppState) InstalledVersion(name string) (*semver.Version, bool) {
	b, ok := s.Binaries[name]
	if !ok {
		return nil, false
	}
	return b.Version, true
}

// MarkUpdateChecked stamps now as the last completed check. Persisting
// the stamp is the caller's decision.
func (s *AppState) MarkUpdateChecked() {
	now := time.Now().UTC()
	s.LastUpdateCheck = &now
}
