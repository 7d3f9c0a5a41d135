package prealign

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"
)

// Stat names exposed to the broader pipeline's reporting layer.
const (
	// StatTrimmedReads is the upstream per-read trimmed count; it seeds
	// the alignment-rate denominator. The cascade reads it, never writes
	// it.
	StatTrimmedReads = "Trimmed_reads"

	statAlignedPrefix = "Aligned_reads_"
	statRatePrefix    = "Alignment_rate_"
)

// alignedExactlyOnce scans an aligner stderr summary for the line
// reporting reads that aligned exactly one time and returns its leading
// count. Absence of the line yields zero, not an error: a decoy that
// captured nothing still produced a valid summary.
func alignedExactlyOnce(r io.Reader) int64 {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.Contains(line, "aligned exactly 1 time") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if n, err := strconv.ParseInt(fields[0], 10, 64); err == nil {
			return n
		}
	}
	return 0
}

// alignedExactlyOnceFile reads the summary at path; a missing or
// unreadable summary counts as zero aligned reads.
func alignedExactlyOnceFile(path string) int64 {
	f, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer f.Close() // nolint: errcheck
	return alignedExactlyOnce(f)
}
