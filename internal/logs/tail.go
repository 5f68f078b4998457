package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// followInterval is how often a follow request re-checks the file for
// appended lines.
const followInterval = 500 * time.Millisecond

// maxLineBytes caps a single log line; slog output stays well under this.
const maxLineBytes = 1 << 20

// Page is one read of the daemon log: the decoded lines plus the byte
// offset a client passes back to resume where this page ended.
type Page struct {
	Lines  []string
	Offset int64
}

// Tailer pages through the daemon's log file by byte offset. A missing
// file is not an error; it yields an empty page at offset zero so clients
// started before the first log write just see nothing yet.
type Tailer struct {
	path string
}

func NewTailer(path string) *Tailer {
	return &Tailer{path: path}
}

// Last returns up to limit trailing lines and the offset at which appended
// lines will appear.
func (t *Tailer) Last(limit int) (Page, error) {
	file, size, err := t.open()
	if err != nil || file == nil {
		return Page{}, err
	}
	defer file.Close()

	if limit <= 0 {
		return Page{Offset: size}, nil
	}

	tail := make([]string, 0, limit)
	scanner := newLineScanner(file)
	for scanner.Scan() {
		if len(tail) == limit {
			copy(tail, tail[1:])
			tail = tail[:limit-1]
		}
		tail = append(tail, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return Page{}, fmt.Errorf("read %s: %w", t.path, err)
	}
	if len(tail) == 0 {
		tail = nil
	}
	return Page{Lines: tail, Offset: size}, nil
}

// Since returns the lines appended after offset. With follow set it keeps
// polling until a line shows up, wait elapses, or ctx ends. An offset past
// the current file size (a truncated or rotated log) restarts at the end.
func (t *Tailer) Since(ctx context.Context, offset int64, follow bool, wait time.Duration) (Page, error) {
	page, err := t.readAfter(offset)
	if err != nil || len(page.Lines) > 0 || !follow || wait <= 0 {
		return page, err
	}

	deadline := time.Now().Add(wait)
	for {
		select {
		case <-ctx.Done():
			return page, ctx.Err()
		case <-time.After(followInterval):
		}
		page, err = t.readAfter(page.Offset)
		if err != nil || len(page.Lines) > 0 || !time.Now().Before(deadline) {
			return page, err
		}
	}
}

func (t *Tailer) readAfter(offset int64) (Page, error) {
	file, size, err := t.open()
	if err != nil || file == nil {
		return Page{}, err
	}
	defer file.Close()

	if offset < 0 || offset > size {
		offset = size
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return Page{}, fmt.Errorf("seek %s: %w", t.path, err)
	}

	page := Page{Offset: offset}
	scanner := newLineScanner(file)
	for scanner.Scan() {
		page.Lines = append(page.Lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return Page{}, fmt.Errorf("read %s: %w", t.path, err)
	}
	if len(page.Lines) > 0 {
		page.Offset = size
	}
	return page, nil
}

func (t *Tailer) open() (*os.File, int64, error) {
	file, err := os.Open(t.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open %s: %w", t.path, err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, 0, fmt.Errorf("stat %s: %w", t.path, err)
	}
	if info.IsDir() {
		file.Close()
		return nil, 0, fmt.Errorf("log path %s is a directory", t.path)
	}
	return file, info.Size(), nil
}

func newLineScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return scanner
}
