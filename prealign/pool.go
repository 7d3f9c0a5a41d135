package prealign

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/klauspost/compress/gzip"
)

// A ReadPool is the unaligned-read frontier passed between cascade
// stages. Pools are replaced at each stage boundary, never edited in
// place.
type ReadPool struct {
	R1, R2 string
	Paired bool
}

// Compressed reports whether the pool's files are gzip-compressed.
func (p ReadPool) Compressed() bool {
	return strings.HasSuffix(p.R1, ".gz")
}

func (p ReadPool) files() []string {
	if p.Paired {
		return []string{p.R1, p.R2}
	}
	return []string{p.R1}
}

// decompressed returns a plain-text rendition of the pool, inflating
// gzip inputs into dir on demand. The inflated copies are registered for
// end-of-run cleanup; an already-plain pool is returned unchanged.
func (p ReadPool) decompressed(run *Run, dir string) (ReadPool, error) {
	if !p.Compressed() {
		return p, nil
	}
	out := ReadPool{Paired: p.Paired}
	var err error
	if out.R1, err = inflate(run, p.R1, dir); err != nil {
		return p, err
	}
	if p.Paired {
		if out.R2, err = inflate(run, p.R2, dir); err != nil {
			return p, err
		}
	}
	return out, nil
}

func inflate(run *Run, src, dir string) (string, error) {
	dst := filepath.Join(dir, strings.TrimSuffix(filepath.Base(src), ".gz"))
	in, err := os.Open(src)
	if err != nil {
		return "", errors.E(err, "decompressing "+src)
	}
	defer in.Close() // nolint: errcheck
	gz, err := gzip.NewReader(in)
	if err != nil {
		return "", errors.E(err, "decompressing "+src)
	}
	out, err := os.Create(dst)
	if err != nil {
		return "", errors.E(err, "decompressing "+src)
	}
	if _, err := io.Copy(out, gz); err != nil {
		out.Close() // nolint: errcheck
		return "", errors.E(err, "decompressing "+src+" to "+dst)
	}
	if err := out.Close(); err != nil {
		return "", errors.E(err, "decompressing "+src+" to "+dst)
	}
	run.RegisterCleanup(dst)
	return dst, nil
}

// gzipFile compresses path in place, leaving path.gz and removing the
// original.
func gzipFile(path string) error {
	in, err := os.Open(path)
	if err != nil {
		return errors.E(err, "compressing "+path)
	}
	defer in.Close() // nolint: errcheck
	out, err := os.Create(path + ".gz")
	if err != nil {
		return errors.E(err, "compressing "+path)
	}
	gz := gzip.NewWriter(out)
	if _, err := io.Copy(gz, in); err != nil {
		out.Close() // nolint: errcheck
		return errors.E(err, "compressing "+path)
	}
	if err := gz.Close(); err != nil {
		out.Close() // nolint: errcheck
		return errors.E(err, "compressing "+path)
	}
	if err := out.Close(); err != nil {
		return errors.E(err, "compressing "+path)
	}
	return os.Remove(path)
}
