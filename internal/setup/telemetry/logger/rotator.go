package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Rotator is an io.Writer that keeps a log file capped to its most recent lines.
// Once twice the cap has been written, the file is rewritten with only the tail.
type Rotator struct {
	mu       sync.Mutex
	file     io.Writer
	tail     *lineRing
	filePath string
}

// NewRotator wraps an open log file.
func NewRotator(file io.Writer, maxLines int, filePath string) *Rotator {
	return &Rotator{
		file:     file,
		tail:     newLineRing(max(1, maxLines)),
		filePath: filePath,
	}
}

// Write implements io.Writer.
func (r *Rotator) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, err := r.file.Write(p)
	if err != nil {
		return n, err
	}

	for line := range strings.SplitSeq(strings.TrimRight(string(p), "\n"), "\n") {
		if line == "" {
			continue
		}

		r.tail.push(line)

		if r.tail.written >= r.tail.capacity()*2 {
			if err := r.truncate(); err != nil {
				return n, fmt.Errorf("failed to rotate log file: %w", err)
			}

			r.tail.written = r.tail.count
		}
	}

	return n, nil
}

// truncate replaces the log file with the buffered tail.
func (r *Rotator) truncate() error {
	lines := r.tail.snapshot()
	if len(lines) == 0 {
		return nil
	}

	temp, err := os.CreateTemp(filepath.Dir(r.filePath), "rotate-")
	if err != nil {
		return err
	}

	tempPath := temp.Name()

	if _, err := temp.WriteString(strings.Join(lines, "\n") + "\n"); err != nil {
		temp.Close()
		os.Remove(tempPath)

		return err
	}

	if err := temp.Close(); err != nil {
		os.Remove(tempPath)
		return err
	}

	if closer, ok := r.file.(io.Closer); ok {
		closer.Close()
	}

	// Windows refuses to rename over an existing file
	os.Remove(r.filePath)

	if err := os.Rename(tempPath, r.filePath); err != nil {
		return err
	}

	reopened, err := os.OpenFile(r.filePath, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	r.file = reopened

	return nil
}

// lineRing is a fixed-size circular buffer of log lines.
type lineRing struct {
	lines   []string
	next    int
	count   int
	written int
}

func newLineRing(capacity int) *lineRing {
	return &lineRing{lines: make([]string, capacity)}
}

func (b *lineRing) capacity() int {
	return len(b.lines)
}

func (b *lineRing) push(line string) {
	b.lines[b.next] = line
	b.next = (b.next + 1) % len(b.lines)

	if b.count < len(b.lines) {
		b.count++
	}

	b.written++
}

// snapshot returns the buffered lines oldest first.
func (b *lineRing) snapshot() []string {
	if b.count == 0 {
		return nil
	}

	out := make([]string, 0, b.count)
	start := (b.next - b.count + len(b.lines)) % len(b.lines)

	for i := range b.count {
		out = append(out, b.lines[(start+i)%len(b.lines)])
	}

	return out
}
