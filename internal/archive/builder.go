package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/flate"

	"voxport/internal/dataset"
)

// Options controls archive layout.
type Options struct {
	Language    string
	Percentage  float64
	Date        time.Time
	IncludeXLSX bool
}

// Builder assembles a dataset export ZIP on the fly. Audio entries are
// written as they arrive; Finalize appends the metadata tables and README
// and closes the archive. The underlying writer is not closed.
type Builder struct {
	zw      *zip.Writer
	opts    Options
	root    string
	records []dataset.AudioRecord
	closed  bool
}

// NewBuilder starts an archive on w.
func NewBuilder(w io.Writer, opts Options) *Builder {
	if opts.Date.IsZero() {
		opts.Date = time.Now().UTC()
	}
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})
	return &Builder{
		zw:   zw,
		opts: opts,
		root: FolderName(opts.Language, opts.Percentage, opts.Date),
	}
}

// Root returns the archive's top-level folder name.
func (b *Builder) Root() string {
	return b.root
}

// Count returns the number of audio entries written so far.
func (b *Builder) Count() int {
	return len(b.records)
}

// AddAudio writes one record's audio under <root>/audio/<id>.wav and
// queues its metadata row.
func (b *Builder) AddAudio(record dataset.AudioRecord, data []byte) error {
	if b.closed {
		return fmt.Errorf("archive already finalized")
	}
	entry, err := b.zw.Create(fmt.Sprintf("%s/audio/%s.wav", b.root, record.ID))
	if err != nil {
		return fmt.Errorf("create audio entry for %s: %w", record.ID, err)
	}
	if _, err := entry.Write(data); err != nil {
		return fmt.Errorf("write audio entry for %s: %w", record.ID, err)
	}
	b.records = append(b.records, record)
	return nil
}

// Finalize writes the metadata table in the requested format and README.txt,
// then closes the archive.
func (b *Builder) Finalize() error {
	if b.closed {
		return nil
	}
	b.closed = true

	if b.opts.IncludeXLSX {
		// excelize needs a seekable target, so the workbook is staged in
		// memory before entering the stream.
		var buf bytes.Buffer
		if err := writeMetadataXLSX(&buf, b.records); err != nil {
			return err
		}
		entry, err := b.zw.Create(b.root + "/metadata.xlsx")
		if err != nil {
			return fmt.Errorf("create metadata.xlsx: %w", err)
		}
		if _, err := entry.Write(buf.Bytes()); err != nil {
			return fmt.Errorf("write metadata.xlsx: %w", err)
		}
	} else {
		entry, err := b.zw.Create(b.root + "/metadata.csv")
		if err != nil {
			return fmt.Errorf("create metadata.csv: %w", err)
		}
		if err := writeMetadataCSV(entry, b.records); err != nil {
			return err
		}
	}

	entry, err := b.zw.Create(b.root + "/README.txt")
	if err != nil {
		return fmt.Errorf("create README.txt: %w", err)
	}
	readme := renderReadme(b.opts.Language, b.opts.Percentage, len(b.records), b.opts.IncludeXLSX, b.opts.Date)
	if _, err := io.WriteString(entry, readme); err != nil {
		return fmt.Errorf("write README.txt: %w", err)
	}

	if err := b.zw.Close(); err != nil {
		return fmt.Errorf("close archive: %w", err)
	}
	return nil
}

// Abort closes the archive writer without appending the trailing entries.
// The output is incomplete and should be discarded by the caller.
func (b *Builder) Abort() error {
	if b.closed {
		return nil
	}
	b.closed = true
	return b.zw.Close()
}
