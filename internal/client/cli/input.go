package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dmitrijs2005/meecokeeper/internal/client/models"
	"github.com/dmitrijs2005/meecokeeper/internal/common"
	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
// In tests you can replace it with a stub to avoid touching the terminal.
var readPassword = term.ReadPassword

// GetSimpleText prints a prompt to w and reads a single line of input from reader.
// The trailing newline is trimmed. If EOF occurs after some input was read,
// the partial line is returned.
//
// Example prompt format:
//
//	Prompt text
//	> _
func GetSimpleText(reader *bufio.Reader, prompt string, w io.Writer) (string, error) {
	if _, err := fmt.Fprint(w, prompt+"\n> "); err != nil {
		return "", err
	}
	line, err := reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// GetPassword prints prompt to w and reads a passphrase from the user's
// terminal without echo. A newline is printed after the read to keep the UI
// tidy.
//
// The returned byte slice should be wiped by the caller when no longer needed.
func GetPassword(w io.Writer, prompt string) ([]byte, error) {
	if _, err := fmt.Fprint(w, prompt+": "); err != nil {
		return nil, err
	}
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return nil, err
	}
	return pw, nil
}

// GetSlots prompts for slot lines in "name=value" form, one per line, ending
// on an empty line or EOF. The raw lines are returned unchanged; see
// parseSlots.
func GetSlots(reader *bufio.Reader, w io.Writer) ([]string, error) {
	fmt.Fprintln(w, "Enter slots in the format name=value (empty line to finish)")

	lines := make([]string, 0)
	for {
		line, err := reader.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		lines = append(lines, line)
		if err != nil {
			break
		}
	}
	return lines, nil
}

// parseSlots turns "name=value" lines into new slots. The name may carry a
// label as "name:Label". A line without "=" or with an empty name is an
// error.
func parseSlots(lines []string) ([]models.NewSlot, error) {
	out := make([]models.NewSlot, 0, len(lines))
	for _, l := range lines {
		key, value, ok := strings.Cut(l, "=")
		if !ok {
			return nil, fmt.Errorf("%w: slot %q is not in name=value form", common.ErrInvalidArgument, l)
		}
		name, label, _ := strings.Cut(strings.TrimSpace(key), ":")
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("%w: slot %q has no name", common.ErrInvalidArgument, l)
		}
		label = strings.TrimSpace(label)
		if label == "" {
			label = name
		}
		out = append(out, models.NewSlot{Name: name, Label: label, Value: models.Ptr(strings.TrimSpace(value))})
	}
	return out, nil
}
