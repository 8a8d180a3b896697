package cmd

import (
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// StandardOutputIsTerminal returns whether or not standard output is attached
// to a terminal, including Cygwin and MSYS2 pseudo-terminals.
func StandardOutputIsTerminal() bool {
	descriptor := os.Stdout.Fd()
	return isatty.IsTerminal(descriptor) || isatty.IsCygwinTerminal(descriptor)
}

// ConfigureColor disables colored output if standard output isn't a terminal
// or if the user has requested that color be disabled.
func ConfigureColor(disable bool) {
	if disable || !StandardOutputIsTerminal() {
		color.NoColor = true
	}
}
