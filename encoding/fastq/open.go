package fastq

import (
	"io"
	"os"

	"github.com/grailbio/base/compress"
	"github.com/pkg/errors"
)

type fileReader struct {
	io.Reader
	f *os.File
}

func (r *fileReader) Close() error {
	return r.f.Close()
}

// Open opens a FASTQ file for reading, transparently decompressing it
// when the path names a compressed file (e.g. ".gz").
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	var r io.Reader = f
	if u := compress.NewReaderPath(r, path); u != nil {
		r = u
	}
	return &fileReader{Reader: r, f: f}, nil
}

// CountRecords returns the number of FASTQ records in the file at path,
// decompressing on the fly if needed.
func CountRecords(path string) (int64, error) {
	in, err := Open(path)
	if err != nil {
		return 0, err
	}
	defer in.Close() // nolint: errcheck
	var (
		sc = NewScanner(in, ID)
		r  Read
		n  int64
	)
	for sc.Scan(&r) {
		n++
	}
	if err := sc.Err(); err != nil {
		return n, errors.Wrapf(err, "counting records in %s", path)
	}
	return n, nil
}
