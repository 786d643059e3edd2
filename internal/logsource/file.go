package logsource

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// OpenFile opens path as a LineSource. Gzip and zstd files are detected by
// their magic bytes and decompressed on the fly.
func OpenFile(path string, conf ...ReaderConfig) (*ReaderSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpen, err)
	}
	if info, err := f.Stat(); err == nil && info.IsDir() {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %s is a directory", ErrOpen, path)
	}

	br := bufio.NewReader(f)
	magic, err := br.Peek(len(zstdMagic))
	if err != nil && !errors.Is(err, io.EOF) {
		_ = f.Close()
		return nil, fmt.Errorf("%w: read %s: %w", ErrOpen, path, err)
	}

	var r io.Reader = br
	closer := closerFunc(f.Close)

	switch {
	case bytes.HasPrefix(magic, gzipMagic):
		zr, err := gzip.NewReader(br)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("%w: gzip %s: %w", ErrOpen, path, err)
		}
		r = zr
		closer = func() error {
			zerr := zr.Close()
			return errors.Join(zerr, f.Close())
		}
	case bytes.HasPrefix(magic, zstdMagic):
		dec, err := zstd.NewReader(br)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("%w: zstd %s: %w", ErrOpen, path, err)
		}
		r = dec
		closer = func() error {
			dec.Close()
			return f.Close()
		}
	}

	src := NewReaderSource(path, r, conf...)
	src.closer = closer
	// Only the file is closed on interrupt; closing a decoder while it is
	// being read from is not safe.
	src.interrupt = f.Close
	return src, nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
