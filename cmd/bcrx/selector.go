package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/franz/bcr-index/internal/library"
	"github.com/franz/bcr-index/internal/storage"
	"github.com/franz/bcr-index/internal/util"
)

var (
	_ library.Selector = (*promptSelector)(nil)
	_ library.Selector = fixedSelector("")
)

// promptSelector asks for a recordings directory on the terminal.
// An empty answer or end of input cancels.
type promptSelector struct {
	in  *bufio.Reader
	out io.Writer
}

func newPromptSelector(in io.Reader, out io.Writer) *promptSelector {
	return &promptSelector{in: bufio.NewReader(in), out: out}
}

func (p *promptSelector) SelectDirectory(ctx context.Context, current storage.Location) (storage.Location, error) {
	if current != "" {
		fmt.Fprintf(p.out, "Recordings directory [%s]: ", current)
	} else {
		fmt.Fprint(p.out, "Recordings directory: ")
	}

	line, err := p.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read answer: %w", err)
	}
	if ctx.Err() != nil {
		return "", util.ErrSelectionCancelled
	}

	answer := strings.TrimSpace(line)
	if answer == "" {
		return "", util.ErrSelectionCancelled
	}
	return storage.Location(answer), nil
}

// fixedSelector answers with a directory given on the command line
type fixedSelector storage.Location

func (f fixedSelector) SelectDirectory(ctx context.Context, current storage.Location) (storage.Location, error) {
	return storage.Location(f), nil
}
