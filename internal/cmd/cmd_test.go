package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/Masterminds/semver/v3"

	"github.com/iii-hq/iii-cli/internal/github"
	"github.com/iii-hq/iii-cli/internal/platform"
	"github.com/iii-hq/iii-cli/internal/registry"
	"github.com/iii-hq/iii-cli/internal/state"
)

func testApp(t *testing.T) *app {
	t.Helper()
	tmp := t.TempDir()
	return &app{
		version:  "0.1.0",
		commit:   "abc1234",
		date:     "2026-08-23",
		registry: registry.Default(),
		dirs:     platform.Dirs{Bin: filepath.Join(tmp, "bin"), Data: filepath.Join(tmp, "data")},
	}
}

func seedState(t *testing.T, a *app) {
	t.Helper()
	s := state.Default()
	s.RecordInstall("iii-console", semver.MustParse("0.2.4"), "iii-console-test.tar.gz")
	if err := a.dirs.Ensure(); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(a.dirs.StateFile()); err != nil {
		t.Fatal(err)
	}
}

func consoleRegistry() registry.Registry {
	return registry.Registry{{
		Name:             "iii-console",
		Repo:             "iii-hq/console",
		SupportedTargets: []string{platform.CurrentTarget()},
		Commands:         []registry.CommandMapping{{CLICommand: "console"}},
	}}
}

func installStub(t *testing.T, a *app, name string) {
	t.Helper()
	if err := a.dirs.Ensure(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(a.dirs.BinaryPath(name), []byte("stub"), 0o755); err != nil {
		t.Fatal(err)
	}
}

// serveConsoleRelease registers the latest-release endpoint for
// iii-hq/console, counting API hits.
func serveConsoleRelease(t *testing.T, mux *http.ServeMux, tag string) *atomic.Int64 {
	t.Helper()
	var hits atomic.Int64
	mux.HandleFunc("/repos/iii-hq/console/releases/latest", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		release := github.Release{
			TagName: tag,
			Assets: []github.ReleaseAsset{{
				Name:               platform.AssetName("iii-console"),
				BrowserDownloadURL: "http://unused.invalid/asset",
				Size:               1,
			}},
		}
		_ = json.NewEncoder(w).Encode(release)
	})
	return &hits
}

type execCapture struct {
	called bool
	path   string
	args   []string
}

func captureExec(a *app) *execCapture {
	c := &execCapture{}
	a.execRun = func(path string, args []string) error {
		c.called = true
		c.path = path
		c.args = args
		return nil
	}
	return c
}

func runDispatch(t *testing.T, a *app, command string, args []string) (stdout, stderr *bytes.Buffer) {
	t.Helper()
	cmd := newDispatchCmd(a, command, "test")
	stdout, stderr = &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("dispatch %s error = %v", command, err)
	}
	return stdout, stderr
}

func TestStripGlobalFlags(t *testing.T) {
	tests := []struct {
		in            []string
		want          []string
		noUpdateCheck bool
	}{
		// Before the command name the flag is ours.
		{[]string{"--no-update-check", "console", "--port", "3000"}, []string{"console", "--port", "3000"}, true},
		{[]string{"--no-update-check", "update"}, []string{"update"}, true},
		// After the command name it belongs to the child binary.
		{[]string{"console", "--no-update-check"}, []string{"console", "--no-update-check"}, false},
		{[]string{"list"}, []string{"list"}, false},
		{nil, []string{}, false},
	}
	for _, tt := range tests {
		a := testApp(t)
		got := a.stripGlobalFlags(tt.in)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("stripGlobalFlags(%v) = %v, want %v", tt.in, got, tt.want)
		}
		if a.noUpdateCheck != tt.noUpdateCheck {
			t.Errorf("stripGlobalFlags(%v): noUpdateCheck = %v, want %v", tt.in, a.noUpdateCheck, tt.noUpdateCheck)
		}
	}
}

func TestRootGlobalFlagBeforeDispatch(t *testing.T) {
	t.Setenv("PATH", "")
	a := testApp(t)
	a.registry = consoleRegistry()
	installStub(t, a, "iii-console")
	capture := captureExec(a)

	root := a.newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(a.stripGlobalFlags([]string{"--no-update-check", "console", "--port", "3000"}))

	if err := root.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !a.noUpdateCheck {
		t.Error("global flag before the subcommand was not honored")
	}
	if !capture.called {
		t.Fatal("dispatch never reached the handoff")
	}
	if !reflect.DeepEqual(capture.args, []string{"--port", "3000"}) {
		t.Errorf("child args = %v, want the global flag stripped", capture.args)
	}
}

func TestDispatchNoUpdateCheckSkipsNetwork(t *testing.T) {
	t.Setenv("PATH", "")

	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()
	hits := serveConsoleRelease(t, mux, "v2.0.0")

	a := testApp(t)
	a.registry = consoleRegistry()
	a.apiBaseURL = server.URL
	a.noUpdateCheck = true
	installStub(t, a, "iii-console")
	seedState(t, a)
	capture := captureExec(a)

	runDispatch(t, a, "console", []string{"--verbose"})

	if hits.Load() != 0 {
		t.Errorf("API hit %d times with checks disabled, want 0", hits.Load())
	}
	if capture.path != a.dirs.BinaryPath("iii-console") {
		t.Errorf("handoff path = %s", capture.path)
	}
	if !reflect.DeepEqual(capture.args, []string{"--verbose"}) {
		t.Errorf("child args = %v", capture.args)
	}
}

func TestDispatchConfigDisablesCheck(t *testing.T) {
	t.Setenv("PATH", "")

	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()
	hits := serveConsoleRelease(t, mux, "v2.0.0")

	a := testApp(t)
	a.registry = consoleRegistry()
	a.apiBaseURL = server.URL
	installStub(t, a, "iii-console")
	seedState(t, a)
	if err := os.WriteFile(filepath.Join(a.dirs.Data, "config.toml"), []byte("disable_update_check = true\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	capture := captureExec(a)

	runDispatch(t, a, "console", nil)

	if hits.Load() != 0 {
		t.Errorf("API hit %d times with checks disabled by config, want 0", hits.Load())
	}
	if !capture.called {
		t.Error("dispatch never reached the handoff")
	}
}

func TestDispatchBackgroundCheckNotifies(t *testing.T) {
	t.Setenv("PATH", "")
	t.Setenv("III_GITHUB_TOKEN", "")
	t.Setenv("GITHUB_TOKEN", "")

	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()
	serveConsoleRelease(t, mux, "v2.0.0")
	mux.HandleFunc("/advisories", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"advisories": [{"id": "ADV-2026-001", "severity": "high", "affected_binary": "iii-console", "affected_versions": "<2.0.0", "fixed_version": "2.0.0", "message": "upgrade required"}]}`))
	})

	a := testApp(t)
	a.registry = consoleRegistry()
	a.apiBaseURL = server.URL
	installStub(t, a, "iii-console")
	seedState(t, a)
	if err := os.WriteFile(filepath.Join(a.dirs.Data, "config.yaml"), []byte("advisories_url: "+server.URL+"/advisories\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	capture := captureExec(a)

	_, stderr := runDispatch(t, a, "console", nil)

	if !capture.called {
		t.Fatal("dispatch never reached the handoff")
	}
	if !strings.Contains(stderr.String(), "Update available") {
		t.Errorf("stderr = %q, want an update notification", stderr.String())
	}
	if !strings.Contains(stderr.String(), "ADV-2026-001") {
		t.Errorf("stderr = %q, want the matching advisory", stderr.String())
	}

	// A completed check persists its timestamp.
	st, err := state.Load(a.dirs.StateFile())
	if err != nil {
		t.Fatal(err)
	}
	if st.LastUpdateCheck == nil {
		t.Error("LastUpdateCheck not persisted after a completed check")
	}
}

func TestDispatchCorruptStateWarnsAndProceeds(t *testing.T) {
	t.Setenv("PATH", "")

	a := testApp(t)
	a.registry = consoleRegistry()
	a.noUpdateCheck = true
	installStub(t, a, "iii-console")
	if err := os.WriteFile(a.dirs.StateFile(), []byte("{broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	capture := captureExec(a)

	_, stderr := runDispatch(t, a, "console", []string{"x"})

	if !strings.Contains(stderr.String(), "failed to load state") {
		t.Errorf("stderr = %q, want a state warning", stderr.String())
	}
	if !capture.called {
		t.Error("corrupt state blocked the dispatch")
	}
}

func TestDispatchPrependsBinarySubcommand(t *testing.T) {
	t.Setenv("PATH", "")

	a := testApp(t)
	a.registry = registry.Registry{{
		Name:             "iii-tools",
		Repo:             "iii-hq/cli-tooling",
		SupportedTargets: []string{platform.CurrentTarget()},
		Commands:         []registry.CommandMapping{{CLICommand: "create", BinarySubcommand: "create"}},
	}}
	a.noUpdateCheck = true
	installStub(t, a, "iii-tools")
	capture := captureExec(a)

	runDispatch(t, a, "create", []string{"myproject"})

	if !reflect.DeepEqual(capture.args, []string{"create", "myproject"}) {
		t.Errorf("child args = %v, want the binary subcommand prepended", capture.args)
	}
}

func TestListEmptyState(t *testing.T) {
	a := testApp(t)
	cmd := newListCmd(a)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(out.String(), "No binaries installed yet") {
		t.Errorf("output = %q", out.String())
	}
	// The empty-state message names the available commands.
	if !strings.Contains(out.String(), "console") {
		t.Errorf("output = %q, want available commands listed", out.String())
	}
}

func TestListText(t *testing.T) {
	a := testApp(t)
	seedState(t, a)

	cmd := newListCmd(a)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	for _, want := range []string{"iii-console", "v0.2.4", "iii-cli console"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestListJSON(t *testing.T) {
	a := testApp(t)
	seedState(t, a)

	cmd := newListCmd(a)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"--output", "json"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	var entries []listEntry
	if err := json.Unmarshal(out.Bytes(), &entries); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, out.String())
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].Binary != "iii-console" || entries[0].Version != "0.2.4" || entries[0].Command != "console" {
		t.Errorf("entry = %+v", entries[0])
	}
}

func TestListUnknownFormat(t *testing.T) {
	cmd := newListCmd(testApp(t))
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--output", "xml"})

	if err := cmd.Execute(); err == nil {
		t.Error("expected error for unknown output format")
	}
}

func TestUpdateUnknownTarget(t *testing.T) {
	cmd := newUpdateCmd(testApp(t))
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"no-such-command"})

	err := cmd.Execute()
	var unknown *registry.UnknownCommandError
	if !errors.As(err, &unknown) {
		t.Fatalf("error = %v, want *registry.UnknownCommandError", err)
	}
	if unknown.Command != "no-such-command" {
		t.Errorf("Command = %s", unknown.Command)
	}
}

func TestVersionCmd(t *testing.T) {
	cmd := newVersionCmd(testApp(t))
	var out bytes.Buffer
	cmd.SetOut(&out)

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	for _, want := range []string{"0.1.0", "abc1234", "2026-08-23"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}
