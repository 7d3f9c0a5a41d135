package prealign

import (
	"bufio"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/proseq/runon/encoding/fastq"
)

// SyncPairs restores the pairing guarantees the aligner's unaligned-read
// output loses. Only R1 is fed to the aligner, so its unaligned stream
// carries bare R1 records with no mate-order promise; SyncPairs collects
// their names and then re-emits, from the original mate files, exactly
// the fragments that stayed unaligned, in original file order, with
// equal record counts on both sides.
//
// Returns the number of pairs written.
func SyncPairs(unaligned io.Reader, mate1, mate2, out1, out2 string) (int64, error) {
	var (
		sc    = fastq.NewScanner(unaligned, fastq.ID)
		r     fastq.Read
		names = map[string]bool{}
	)
	for sc.Scan(&r) {
		names[r.Name()] = true
	}
	if err := sc.Err(); err != nil {
		return 0, errors.Wrap(err, "reading unaligned stream")
	}

	n1, err := emitNamed(mate1, out1, names)
	if err != nil {
		return 0, err
	}
	n2, err := emitNamed(mate2, out2, names)
	if err != nil {
		return 0, err
	}
	if n1 != n2 {
		return 0, errors.Errorf("mate files out of sync: %d R1 vs %d R2 records", n1, n2)
	}
	return n1, nil
}

// emitNamed copies the records of src whose canonical name is in names
// to dst, preserving order.
func emitNamed(src, dst string, names map[string]bool) (int64, error) {
	in, err := fastq.Open(src)
	if err != nil {
		return 0, errors.Wrapf(err, "opening mate file %s", src)
	}
	defer in.Close() // nolint: errcheck
	out, err := os.Create(dst)
	if err != nil {
		return 0, errors.Wrapf(err, "creating %s", dst)
	}
	var (
		bw = bufio.NewWriter(out)
		w  = fastq.NewWriter(bw)
		sc = fastq.NewScanner(in, fastq.All)
		r  fastq.Read
		n  int64
	)
	for sc.Scan(&r) {
		if !names[r.Name()] {
			continue
		}
		if err := w.Write(&r); err != nil {
			out.Close() // nolint: errcheck
			return n, errors.Wrapf(err, "writing %s", dst)
		}
		n++
	}
	if err := sc.Err(); err != nil {
		out.Close() // nolint: errcheck
		return n, errors.Wrapf(err, "reading mate file %s", src)
	}
	if err := bw.Flush(); err != nil {
		out.Close() // nolint: errcheck
		return n, errors.Wrapf(err, "writing %s", dst)
	}
	return n, out.Close()
}
