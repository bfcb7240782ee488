// Package prompt reads operator answers during install.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	// ErrNonInteractive is returned when a question is asked without a terminal
	ErrNonInteractive = errors.New("input required but prompting is disabled")

	// ErrNoMoreAnswers is returned by Scripted when its answers run out
	ErrNoMoreAnswers = errors.New("no scripted answer left")
)

// Prompter asks the operator questions
type Prompter interface {
	// Ask returns the trimmed answer to question
	Ask(question string) (string, error)
	// Confirm asks a yes/no question; only "y" or "yes" is a yes
	Confirm(question string) (bool, error)
}

// Interactive reads answers line by line from a reader
type Interactive struct {
	reader *bufio.Reader
	writer io.Writer
}

// NewInteractive creates a prompter reading from r and printing questions to w
func NewInteractive(r io.Reader, w io.Writer) *Interactive {
	return &Interactive{
		reader: bufio.NewReader(r),
		writer: w,
	}
}

func (p *Interactive) Ask(question string) (string, error) {
	fmt.Fprintf(p.writer, "(!) %s: ", question)

	line, err := p.reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("failed to read answer: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func (p *Interactive) Confirm(question string) (bool, error) {
	answer, err := p.Ask(question + " (y/n)")
	if err != nil {
		return false, err
	}
	return isYes(answer), nil
}

// Scripted answers questions from a fixed list, in order
type Scripted struct {
	Answers []string
	Asked   []string
}

// NewScripted creates a prompter returning answers in order
func NewScripted(answers ...string) *Scripted {
	return &Scripted{Answers: answers}
}

func (p *Scripted) Ask(question string) (string, error) {
	p.Asked = append(p.Asked, question)
	if len(p.Answers) == 0 {
		return "", fmt.Errorf("%w for %q", ErrNoMoreAnswers, question)
	}
	answer := p.Answers[0]
	p.Answers = p.Answers[1:]
	return strings.TrimSpace(answer), nil
}

func (p *Scripted) Confirm(question string) (bool, error) {
	answer, err := p.Ask(question)
	if err != nil {
		return false, err
	}
	return isYes(answer), nil
}

// NonInteractive refuses every question
type NonInteractive struct{}

func (NonInteractive) Ask(question string) (string, error) {
	return "", fmt.Errorf("%w: %s", ErrNonInteractive, question)
}

func (NonInteractive) Confirm(question string) (bool, error) {
	return false, fmt.Errorf("%w: %s", ErrNonInteractive, question)
}

func isYes(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}
