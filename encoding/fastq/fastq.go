// Package fastq provides scanning and writing of FASTQ read data, plus
// helpers for the compressed files that read-processing pipelines pass
// between stages.
package fastq

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

var (
	// ErrShort is returned when a truncated FASTQ file is encountered.
	ErrShort = errors.New("short FASTQ file")
	// ErrInvalid is returned when an invalid FASTQ file is encountered.
	ErrInvalid = errors.New("invalid FASTQ file")
	// ErrDiscordant is returned when two underlying FASTQ files are discordant.
	ErrDiscordant = errors.New("discordant FASTQ pairs")
)

// A Read is a FASTQ read: an ID line, sequence, separator line, and
// quality string.
type Read struct {
	ID, Seq, Plus, Qual string
}

// Name returns the read identifier of r normalized for mate matching:
// the leading "@" is dropped, the ID is cut at the first whitespace, and
// a trailing "/1" or "/2" mate suffix is removed. Both mates of a pair
// share the same name.
func (r *Read) Name() string {
	return CanonicalName(r.ID)
}

// CanonicalName normalizes a FASTQ ID line as described by Read.Name.
func CanonicalName(id string) string {
	if strings.HasPrefix(id, "@") {
		id = id[1:]
	}
	if i := strings.IndexAny(id, " \t"); i >= 0 {
		id = id[:i]
	}
	if n := len(id); n > 2 && id[n-2] == '/' && (id[n-1] == '1' || id[n-1] == '2') {
		id = id[:n-2]
	}
	return id
}

var errEOF = errors.New("eof")

// Field enumerates FASTQ fields. It is used to specify fields to scan in
// NewScanner.
type Field uint

const (
	// ID causes the Read.ID field to be filled
	ID Field = 1 << iota
	// Seq causes the Read.Seq field to be filled
	Seq
	// Plus causes the Read.Plus field to be filled
	Plus
	// Qual causes the Read.Qual field to be filled
	Qual
	// All equals ID|Seq|Plus|Qual.
	All = ID | Seq | Plus | Qual
)

// Scanner provides a convenient interface for reading FASTQ read data.
// The Scan method fills in the next read, returning a boolean indicating
// whether the scan succeeded. Scanners are not threadsafe.
//
// Scanner performs some validation: it requires ID lines to begin with
// "@" and separator lines to begin with "+", but does not validate
// further (e.g., seq/qual being of equal length).
type Scanner struct {
	b      *bufio.Scanner
	err    error
	fields Field
}

// NewScanner constructs a new Scanner that reads raw FASTQ data from the
// provided reader. Fields is a bitset of the fields to fill in; a
// typical value is All, or ID when only read names are needed.
func NewScanner(r io.Reader, fields Field) *Scanner {
	return &Scanner{b: bufio.NewScanner(r), fields: fields}
}

// Scan the next read into the provided read. Once Scan returns false, it
// never returns true again. Upon completion, the user should check the
// Err method to distinguish end-of-stream from error.
func (f *Scanner) Scan(read *Read) bool {
	if f.err != nil {
		return false
	}
	if !f.b.Scan() {
		if f.err = f.b.Err(); f.err == nil {
			f.err = errEOF
		}
		return false
	}
	id := f.b.Bytes()
	if len(id) == 0 || id[0] != '@' {
		f.err = ErrInvalid
		return false
	}
	if f.fields&ID != 0 {
		read.ID = string(id)
	}
	if !f.scan() {
		return false
	}
	if f.fields&Seq != 0 {
		read.Seq = f.b.Text()
	}
	if !f.scan() {
		return false
	}
	plus := f.b.Bytes()
	if len(plus) == 0 || plus[0] != '+' {
		f.err = ErrInvalid
		return false
	}
	if f.fields&Plus != 0 {
		read.Plus = string(plus)
	}
	if !f.scan() {
		return false
	}
	if f.fields&Qual != 0 {
		read.Qual = f.b.Text()
	}
	return true
}

func (f *Scanner) scan() bool {
	ok := f.b.Scan()
	if !ok {
		if f.err = f.b.Err(); f.err == nil {
			f.err = ErrShort
		}
	}
	return ok
}

// Err returns the scanning error, if any.
func (f *Scanner) Err() error {
	if f.err == errEOF {
		return nil
	}
	return f.err
}

// PairScanner composes a pair of scanners to scan a pair of FASTQ
// streams in lockstep.
type PairScanner struct {
	r1, r2 *Scanner
	err    error
}

// NewPairScanner creates a new FASTQ pair scanner from the provided R1
// and R2 readers.
func NewPairScanner(r1, r2 io.Reader, fields Field) *PairScanner {
	return &PairScanner{
		r1: NewScanner(r1, fields),
		r2: NewScanner(r2, fields),
	}
}

// Scan scans the next read pair into r1, r2. A stream ending before its
// mate is reported as ErrDiscordant.
func (p *PairScanner) Scan(r1, r2 *Read) bool {
	ok1 := p.r1.Scan(r1)
	ok2 := p.r2.Scan(r2)
	if ok1 != ok2 {
		p.err = ErrDiscordant
	}
	return ok1 && ok2
}

// Err returns the scanning error, if any. It should be checked after
// Scan returns false.
func (p *PairScanner) Err() error {
	if err := p.r1.Err(); err != nil {
		return err
	}
	if err := p.r2.Err(); err != nil {
		return err
	}
	return p.err
}

var newline = []byte{'\n'}

// Writer is a FASTQ file writer.
type Writer struct {
	w   io.Writer
	err error
}

// NewWriter constructs a new FASTQ writer that writes reads to the
// underlying writer w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write writes the read r in FASTQ format. An error is returned if the
// write failed.
func (w *Writer) Write(r *Read) error {
	w.writeln(r.ID)
	w.writeln(r.Seq)
	w.writeln(r.Plus)
	w.writeln(r.Qual)
	return w.err
}

func (w *Writer) writeln(line string) {
	if w.err != nil {
		return
	}
	_, w.err = io.WriteString(w.w, line)
	if w.err == nil {
		_, w.err = w.w.Write(newline)
	}
}
