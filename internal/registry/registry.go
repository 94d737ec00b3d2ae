// Package registry holds the compiled-in table of managed binaries and
// resolves CLI command names to them.
package registry

import "fmt"

// BinarySpec describes a managed binary: where its releases live and
// which CLI commands dispatch to it.
type BinarySpec struct {
	// Name is the binary name, e.g. "iii-console".
	Name string
	// Repo is the GitHub repository in "owner/repo" form.
	Repo string
	// HasChecksum reports whether the release workflow publishes
	// .sha256 sidecar assets.
	HasChecksum bool
	// SupportedTargets lists the target triples this binary ships for.
	SupportedTargets []string
	// Commands maps CLI commands to this binary.
	Commands []CommandMapping
}

// CommandMapping maps a CLI command to an optional binary subcommand.
type CommandMapping struct {
	// CLICommand is the command as exposed by iii-cli, e.g. "console".
	CLICommand string
	// BinarySubcommand is prepended to the passthrough args, or ""
	// for direct passthrough.
	BinarySubcommand string
}

// Registry is the set of dispatchable binaries. It is constructed once
// at startup and passed by reference; it is never mutated.
type Registry []BinarySpec

// UnknownCommandError reports a command with no registry mapping.
type UnknownCommandError struct {
	Command string
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("unknown command: %q. Run 'iii-cli --help' to see available commands", e.Command)
}

var allTargets = []string{
	"aarch64-apple-darwin",
	"x86_64-apple-darwin",
	"x86_64-pc-windows-msvc",
	"aarch64-pc-windows-msvc",
	"x86_64-unknown-linux-gnu",
	"x86_64-unknown-linux-musl",
	"aarch64-unknown-linux-gnu",
}

// SelfSpec returns the spec for iii-cli itself. It is deliberately not
// part of Default(): the dispatcher is never dispatched, only
// self-updated.
func SelfSpec() BinarySpec {
	return BinarySpec{
		Name:             "iii-cli",
		Repo:             "iii-hq/iii-cli",
		HasChecksum:      true,
		SupportedTargets: allTargets,
	}
}

// Default returns the built-in registry.
func Default() Registry {
	return Registry{
		{
			Name:             "iii-console",
			Repo:             "iii-hq/console",
			HasChecksum:      true,
			SupportedTargets: allTargets,
			Commands: []CommandMapping{
				{CLICommand: "console"},
			},
		},
		{
			Name:        "iii-tools",
			Repo:        "iii-hq/cli-tooling",
			HasChecksum: false,
			SupportedTargets: []string{
				"aarch64-apple-darwin",
				"x86_64-apple-darwin",
				"x86_64-unknown-linux-gnu",
				"x86_64-unknown-linux-musl",
				"aarch64-unknown-linux-gnu",
			},
			Commands: []CommandMapping{
				{CLICommand: "create", BinarySubcommand: "create"},
			},
		},
		{
			Name:        "motia-cli",
			Repo:        "MotiaDev/motia-cli",
			HasChecksum: false,
			SupportedTargets: append([]string{
				"armv7-unknown-linux-gnueabihf",
			}, allTargets...),
			Commands: []CommandMapping{
				{CLICommand: "motia"},
			},
		},
		{
			Name:        "iii",
			Repo:        "iii-hq/iii",
			HasChecksum: false,
			SupportedTargets: append([]string{
				"armv7-unknown-linux-gnueabihf",
			}, allTargets...),
			Commands: []CommandMapping{
				{CLICommand: "start"},
			},
		},
	}
}

// ResolveCommand maps a CLI command name to its spec and the optional
// binary subcommand to prepend.
func (r Registry) ResolveCommand(command string) (*BinarySpec, string, error) {
	for i := range r {
		for _, m := range r[i].Commands {
			if m.CLICommand == command {
				return &r[i], m.BinarySubcommand, nil
			}
		}
	}
	return nil, "", &UnknownCommandError{Command: command}
}

// ResolveBinaryForUpdate resolves an update target, which may be either
// a binary name ("iii-tools") or a CLI command name ("create").
func (r Registry) ResolveBinaryForUpdate(target string) (*BinarySpec, error) {
	for i := range r {
		if r[i].Name == target {
			return &r[i], nil
		}
	}
	for i := range r {
		for _, m := range r[i].Commands {
			if m.CLICommand == target {
				return &r[i], nil
			}
		}
	}
	return nil, &UnknownCommandError{Command: target}
}

// CommandForBinary returns the first CLI command mapped to a binary
// name, or the binary name itself when no mapping exists. Used when
// telling the user what to run.
func (r Registry) CommandForBinary(name string) string {
	for i := range r {
		if r[i].Name == name {
			if len(r[i].Commands) > 0 {
				return r[i].Commands[0].CLICommand
			}
			break
		}
	}
	return name
}

// Lookup finds a spec by binary name.
func (r Registry) Lookup(name string) (*BinarySpec, bool) {
	for i := range r {
		if r[i].Name == name {
			return &r[i], true
		}
	}
	return nil, false
}

// AvailableCommands lists every CLI command name in registry order.
func (r Registry) AvailableCommands() []string {
	var cmds []string
	for i := range r {
		for _, m := range r[i].Commands {
			cmds = append(cmds, m.CLICommand)
		}
	}
	return cmds
}
