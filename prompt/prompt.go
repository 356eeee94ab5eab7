// Package prompt asks the user to confirm plugin upgrades and removals.
package prompt

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/huh"

	"github.com/stranslate-dev/stranslate-plugin-host/plugin/entities"
)

// ErrNonInteractive is returned when a decision needs a terminal and none
// is attached.
var ErrNonInteractive = errors.New("confirmation required but not running interactively")

// Prompter confirms lifecycle decisions that replace or remove a plugin.
type Prompter interface {
	IsInteractive() bool
	ConfirmUpgrade(incoming, existing *entities.Descriptor) (bool, error)
	ConfirmUninstall(d *entities.Descriptor) (bool, error)
}

// TerminalPrompter provides interactive terminal prompting.
type TerminalPrompter struct {
	out io.Writer
}

// NewTerminalPrompter creates a new TerminalPrompter writing notices to stderr.
func NewTerminalPrompter() *TerminalPrompter {
	return &TerminalPrompter{out: os.Stderr}
}

// IsInteractive checks if we're running in an interactive terminal.
func (p *TerminalPrompter) IsInteractive() bool {
	fileInfo, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}

// ConfirmUpgrade asks whether existing should be replaced by incoming.
func (p *TerminalPrompter) ConfirmUpgrade(incoming, existing *entities.Descriptor) (bool, error) {
	if !p.IsInteractive() {
		return false, ErrNonInteractive
	}
	if existing.IsPrePlugin {
		fmt.Fprintf(p.out, "\n\033[1;33mReplacing a pre-installed plugin\033[0m\n\n")
		fmt.Fprintf(p.out, "  %s ships with the application. The upgrade takes effect on next start.\n\n", existing.PluginID)
	}

	var ok bool
	err := huh.NewConfirm().
		Title(fmt.Sprintf("Upgrade %s?", displayName(existing))).
		Description(fmt.Sprintf("Installed %s, package %s", existing.Version, incoming.Version)).
		Affirmative("Upgrade").
		Negative("Keep installed").
		Value(&ok).
		Run()
	if err != nil {
		return false, err
	}
	return ok, nil
}

// ConfirmUninstall asks whether d should be removed.
func (p *TerminalPrompter) ConfirmUninstall(d *entities.Descriptor) (bool, error) {
	if !p.IsInteractive() {
		return false, ErrNonInteractive
	}
	var ok bool
	err := huh.NewConfirm().
		Title(fmt.Sprintf("Uninstall %s?", displayName(d))).
		Description("Its settings and cache are removed on next start.").
		Affirmative("Uninstall").
		Negative("Cancel").
		Value(&ok).
		Run()
	if err != nil {
		return false, err
	}
	return ok, nil
}

// StaticPrompter answers every question the same way. It backs --yes and
// tests.
type StaticPrompter struct {
	Answer bool
}

// IsInteractive implements Prompter.
func (StaticPrompter) IsInteractive() bool { return false }

// ConfirmUpgrade implements Prompter.
func (p StaticPrompter) ConfirmUpgrade(_, _ *entities.Descriptor) (bool, error) { return p.Answer, nil }

// ConfirmUninstall implements Prompter.
func (p StaticPrompter) ConfirmUninstall(*entities.Descriptor) (bool, error) { return p.Answer, nil }

// FormatNonInteractiveError explains how to proceed without a terminal.
func FormatNonInteractiveError(action string, d *entities.Descriptor) error {
	return fmt.Errorf("%w: %s %s needs confirmation; rerun interactively or pass --yes", ErrNonInteractive, action, displayName(d))
}

func displayName(d *entities.Descriptor) string {
	if d == nil {
		return "plugin"
	}
	if d.Name != "" {
		return fmt.Sprintf("%s (%s)", d.Name, d.PluginID)
	}
	return d.PluginID
}
