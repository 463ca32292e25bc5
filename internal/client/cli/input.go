package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Terminal seams; tests replace them to avoid touching a real tty.
var (
	readPassword = term.ReadPassword
	isTerminal   = term.IsTerminal
)

// GetSimpleText prints a prompt to w and reads a single line of input from reader.
// The trailing newline is trimmed. If EOF occurs after some input was read,
// the partial line is returned.
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

// GetSecret prints prompt to w and reads a line from the terminal without
// echo.
func GetSecret(w io.Writer, prompt string) ([]byte, error) {
	if _, err := fmt.Fprint(w, prompt); err != nil {
		return nil, err
	}
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return nil, err
	}
	return pw, nil
}

// StdinIsTerminal reports whether the process reads from an interactive tty.
func StdinIsTerminal() bool {
	return isTerminal(int(os.Stdin.Fd()))
}

// readLines collects lines until an empty line or EOF. Only CR/LF is trimmed.
func readLines(reader *bufio.Reader) []string {
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
	return lines
}

// GetMultiline reads lines until the user presses Enter on an empty line and
// returns them joined with '\n'.
func GetMultiline(reader *bufio.Reader, prompt string, w io.Writer) (string, error) {
	if _, err := fmt.Fprint(w, prompt+"\n(press Enter on an empty line to finish)\n"); err != nil {
		return "", err
	}
	return strings.TrimSpace(strings.Join(readLines(reader), "\n")), nil
}

// GetAttributes reads "name=value" lines until an empty line. Names and
// values are trimmed; a line without '=' is an error.
func GetAttributes(reader *bufio.Reader, w io.Writer) (map[string]any, error) {
	if _, err := fmt.Fprintln(w, "Enter attributes as name=value (empty line to finish)"); err != nil {
		return nil, err
	}

	attrs := map[string]any{}
	for _, line := range readLines(reader) {
		name, value, ok := strings.Cut(line, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("attribute %q: expected name=value", line)
		}
		attrs[name] = strings.TrimSpace(value)
	}
	if len(attrs) == 0 {
		return nil, nil
	}
	return attrs, nil
}

// ParseTags splits a comma separated list, dropping blanks.
func ParseTags(s string) []string {
	var tags []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
