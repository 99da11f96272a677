package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Prompter is the human side of interactive reconciliation.
type Prompter interface {
	// Confirm asks a yes/no question. def is the answer for an empty line.
	Confirm(question string, def bool) (bool, error)
	// Notify prints a status line.
	Notify(msg string)
}

// Terminal reads answers line by line from In and writes to Out.
type Terminal struct {
	In  io.Reader
	Out io.Writer

	once   sync.Once
	reader *bufio.Reader
}

func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{In: in, Out: out}
}

func (t *Terminal) Confirm(question string, def bool) (bool, error) {
	t.once.Do(func() { t.reader = bufio.NewReader(t.In) })
	hint := "[y/N]"
	if def {
		hint = "[Y/n]"
	}
	for {
		fmt.Fprintf(t.Out, "%s %s ", question, hint)
		line, err := t.reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return false, err
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		switch answer {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		case "":
			if errors.Is(err, io.EOF) {
				// closed input never means yes
				fmt.Fprintln(t.Out)
				return false, nil
			}
			return def, nil
		}
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		fmt.Fprintln(t.Out, "please answer y or n")
	}
}

func (t *Terminal) Notify(msg string) {
	fmt.Fprintln(t.Out, msg)
}

// Scripted answers questions from a fixed list and records everything it was
// asked and told. Once the answers run out every question is declined.
type Scripted struct {
	mu       sync.Mutex
	answers  []bool
	Asked    []string
	Notified []string
}

func NewScripted(answers ...bool) *Scripted {
	return &Scripted{answers: answers}
}

func (s *Scripted) Confirm(question string, _ bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Asked = append(s.Asked, question)
	if len(s.answers) == 0 {
		return false, nil
	}
	a := s.answers[0]
	s.answers = s.answers[1:]
	return a, nil
}

func (s *Scripted) Notify(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Notified = append(s.Notified, msg)
}
