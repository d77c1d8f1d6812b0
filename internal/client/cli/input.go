package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// readLine prints prompt to w and reads one trimmed line. A final line
// without a newline is still returned.
func readLine(reader *bufio.Reader, prompt string, w io.Writer) (string, error) {
	if _, err := fmt.Fprint(w, prompt+" "); err != nil {
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

// confirm asks a yes/no question. An empty answer or a read error picks def.
func confirm(reader *bufio.Reader, question string, def bool, w io.Writer) bool {
	hint := "[y/N]"
	if def {
		hint = "[Y/n]"
	}
	answer, err := readLine(reader, question+" "+hint, w)
	if err != nil || answer == "" {
		return def
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true
	case "n", "no":
		return false
	default:
		return def
	}
}
