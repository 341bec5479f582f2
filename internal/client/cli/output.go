package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"gopkg.in/yaml.v3"
)

func okLine(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, color.GreenString("✓"), fmt.Sprintf(format, args...))
}

func failLine(w io.Writer, err error) {
	fmt.Fprintln(w, color.RedString("✗"), err)
}

func hintLine(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, color.CyanString("→"), fmt.Sprintf(format, args...))
}

// printYAML writes v as a YAML document.
func printYAML(w io.Writer, v any) error {
	b, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("formatting output: %w", err)
	}
	_, err = w.Write(b)
	return err
}

// withSpinner runs fn while a spinner with msg is shown on w. The spinner only
// animates on a terminal.
func withSpinner(w io.Writer, msg string, fn func() error) error {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w))
	s.Suffix = " " + msg
	s.Start()
	err := fn()
	s.Stop()
	return err
}
