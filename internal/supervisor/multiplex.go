// SPDX-License-Identifier: MPL-2.0

package supervisor

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/sync/errgroup"
)

const (
	// StreamStdout labels lines read from a process's standard output.
	StreamStdout = "stdout"
	// StreamStderr labels lines read from a process's standard error.
	StreamStderr = "stderr"

	// maxLineSize bounds a single line; eve.json records can be large.
	maxLineSize = 1 << 20
)

type (
	// Multiplexer merges line-oriented streams onto one writer. Each stream is
	// read by its own goroutine; a single writer goroutine owns the output so
	// lines never interleave mid-line. Order is preserved per stream only.
	Multiplexer struct {
		out        io.Writer
		width      int
		labelStyle *lipgloss.Style

		readers errgroup.Group
		lines   chan line
		done    chan struct{}
	}

	// MultiplexerOption configures a Multiplexer.
	MultiplexerOption func(*Multiplexer)

	line struct {
		label  string
		stream string
		text   string
	}
)

// WithLabelStyle renders the padded label column with style.
func WithLabelStyle(style lipgloss.Style) MultiplexerOption {
	return func(m *Multiplexer) {
		m.labelStyle = &style
	}
}

// NewMultiplexer starts the writer goroutine. labels are used to compute the
// label column width; streams with other labels are still accepted.
func NewMultiplexer(out io.Writer, labels []string, opts ...MultiplexerOption) *Multiplexer {
	m := &Multiplexer{
		out:   out,
		lines: make(chan line),
		done:  make(chan struct{}),
	}
	for _, l := range labels {
		m.width = max(m.width, len(l))
	}
	for _, opt := range opts {
		opt(m)
	}

	go m.write()
	return m
}

// Add starts reading r line by line. The reader runs until r returns EOF or
// an error; closing the write side of a pipe is how callers end a stream.
// Lines longer than maxLineSize are emitted in maxLineSize pieces. After a
// read error the rest of r is discarded so the writing process never blocks.
func (m *Multiplexer) Add(label, stream string, r io.Reader) {
	m.readers.Go(func() error {
		br := bufio.NewReaderSize(r, maxLineSize)
		for {
			text, err := readLine(br)
			if err == nil || text != "" {
				m.lines <- line{label: label, stream: stream, text: text}
			}
			if err == nil {
				continue
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				return nil
			}
			_, _ = io.Copy(io.Discard, r)
			return fmt.Errorf("reading %s %s: %w", label, stream, err)
		}
	})
}

// readLine returns the next line without its line ending. A line that does
// not fit the reader's buffer is returned one buffer at a time.
func readLine(br *bufio.Reader) (string, error) {
	chunk, err := br.ReadSlice('\n')
	if errors.Is(err, bufio.ErrBufferFull) {
		return string(chunk), nil
	}
	text := strings.TrimSuffix(string(chunk), "\n")
	return strings.TrimSuffix(text, "\r"), err
}

// Wait blocks until every stream has ended and all lines are written.
// It returns the first read error, if any.
func (m *Multiplexer) Wait() error {
	err := m.readers.Wait()
	close(m.lines)
	<-m.done
	return err
}

func (m *Multiplexer) write() {
	defer close(m.done)
	for l := range m.lines {
		label := l.label
		if pad := m.width - len(label); pad > 0 {
			label += strings.Repeat(" ", pad)
		}
		if m.labelStyle != nil {
			label = m.labelStyle.Render(label)
		}
		// A failed console write cannot be reported anywhere useful; keep
		// draining so the readers never block.
		_, _ = fmt.Fprintf(m.out, "%s | %s | %s\n", label, l.stream, l.text)
	}
}
