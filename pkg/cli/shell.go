// pkg/cli/shell.go
package cli

import (
	"bufio"
	"io"
	"strings"
)

// Shell represents an interactive line-command shell for vecindexctl.
// It provides readline-like functionality including command history
// and recall; unlike a SQL shell, one line is always one statement.
type Shell struct {
	// reader reads input lines
	reader *bufio.Reader

	// output writes normal output
	output io.Writer

	// errOutput writes error messages
	errOutput io.Writer

	// prompt is the primary prompt shown for new statements
	prompt string

	// continuePrompt is shown for multi-line statement continuation
	continuePrompt string

	// history stores command history for recall
	history []string

	// historyIndex tracks current position when navigating history
	historyIndex int

	// maxHistory is the maximum number of history entries to keep
	maxHistory int
}

// NewShell creates a new interactive shell with the given input/output streams.
// If errOutput is nil, errors are written to output.
func NewShell(input io.Reader, output, errOutput io.Writer) *Shell {
	var reader *bufio.Reader
	if input != nil {
		reader = bufio.NewReader(input)
	}

	if errOutput == nil {
		errOutput = output
	}

	return &Shell{
		reader:         reader,
		output:         output,
		errOutput:      errOutput,
		prompt:         "vecindex> ",
		continuePrompt: "       > ",
		history:        make([]string, 0),
		historyIndex:   0,
		maxHistory:     1000,
	}
}

// SetPrompt changes the primary prompt string.
func (s *Shell) SetPrompt(prompt string) {
	s.prompt = prompt
}

// SetContinuePrompt changes the continuation prompt string.
func (s *Shell) SetContinuePrompt(prompt string) {
	s.continuePrompt = prompt
}

// ReadLine reads a single line from input, stripping trailing whitespace.
// It returns the line and whether EOF was reached.
func (s *Shell) ReadLine() (string, bool) {
	if s.reader == nil {
		return "", true
	}

	line, err := s.reader.ReadString('\n')
	if err != nil {
		// EOF or error
		line = strings.TrimRight(line, " \t\r\n")
		return line, true
	}

	// Strip trailing whitespace including newline
	line = strings.TrimRight(line, " \t\r\n")
	return line, false
}

// ReadStatement reads a single complete command line, honoring a trailing
// backslash as an explicit line-continuation marker (so long vectors can be
// split across lines). Returns the statement and whether EOF was reached.
func (s *Shell) ReadStatement() (string, bool) {
	var lines []string
	isFirst := true

	for {
		if s.output != nil {
			if isFirst {
				io.WriteString(s.output, s.prompt)
			} else {
				io.WriteString(s.output, s.continuePrompt)
			}
		}
		isFirst = false

		line, eof := s.ReadLine()

		if eof && line == "" && len(lines) == 0 {
			return "", true
		}

		if strings.HasSuffix(line, "\\") {
			lines = append(lines, strings.TrimSuffix(line, "\\"))
			if eof {
				combined := strings.Join(lines, " ")
				return combined, true
			}
			continue
		}

		lines = append(lines, line)
		combined := strings.Join(lines, " ")

		trimmed := strings.TrimSpace(combined)
		if trimmed != "" {
			s.AddHistory(trimmed)
		}
		return combined, eof
	}
}

// IsComplete reports whether a line is a complete command, i.e. it does not
// end in the explicit continuation marker "\\".
func (s *Shell) IsComplete(line string) bool {
	if line == "" {
		return false
	}
	return !strings.HasSuffix(line, "\\")
}

// AddHistory adds a statement to the command history.
func (s *Shell) AddHistory(stmt string) {
	// Don't add duplicates of the last entry
	if len(s.history) > 0 && s.history[len(s.history)-1] == stmt {
		return
	}

	s.history = append(s.history, stmt)

	// Trim history if it exceeds max size
	if len(s.history) > s.maxHistory {
		s.history = s.history[len(s.history)-s.maxHistory:]
	}

	// Reset history index to end
	s.historyIndex = len(s.history)
}

// History returns a copy of the command history.
func (s *Shell) History() []string {
	result := make([]string, len(s.history))
	copy(result, s.history)
	return result
}

// ClearHistory removes all entries from the command history.
func (s *Shell) ClearHistory() {
	s.history = make([]string, 0)
	s.historyIndex = 0
}

// HistoryPrev returns the previous history entry, or empty string if at the beginning.
func (s *Shell) HistoryPrev() string {
	if s.historyIndex > 0 {
		s.historyIndex--
		return s.history[s.historyIndex]
	}
	return ""
}

// HistoryNext returns the next history entry, or empty string if at the end.
func (s *Shell) HistoryNext() string {
	if s.historyIndex < len(s.history)-1 {
		s.historyIndex++
		return s.history[s.historyIndex]
	}
	// Reset to end
	s.historyIndex = len(s.history)
	return ""
}
