package prealign

import (
	"context"
	"io/ioutil"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/grailbio/base/log"
	"golang.org/x/sys/unix"
)

// StageResult reports one cascade stage. It is consumed immediately by
// statistics reporting and by the next stage's input.
type StageResult struct {
	Assembly string
	// Unmapped is the residual pool; equal to the stage input when the
	// stage was skipped.
	Unmapped ReadPool
	// MappedBAM is the sorted decoy alignment, set only when retention
	// was requested.
	MappedBAM string
	// Summary is the aligner's textual summary log for this stage.
	Summary string
	// AlignedReads counts reads captured by the decoy (per-read, i.e.
	// doubled for paired input).
	AlignedReads float64
	// AlignmentRate is AlignedReads as a percentage of the upstream
	// trimmed-read count, valid only when RateKnown.
	AlignmentRate float64
	RateKnown     bool
	// Skipped is set when the decoy's index directory was absent; the
	// input pool passed through unchanged.
	Skipped bool
	// Reused is set when a finished stage's outputs were found on disk
	// and the alignment was not re-run.
	Reused bool
}

// stagePaths fixes every artifact path of one stage up front.
type stagePaths struct {
	dir     string
	mapped  string
	summary string
	// sink receives the aligner's unaligned stream: a named pipe, a temp
	// file, or (single-end) directly the next pool.
	sink    string
	outR1   string
	outR2   string
	useFIFO bool
}

func newStagePaths(opts Options, assembly string, paired, dups bool) stagePaths {
	var (
		dir = filepath.Join(opts.Outdir, "prealignments")
		tag = ""
	)
	if dups {
		tag = "_dups"
	}
	base := opts.Sample + "_" + assembly
	pre := filepath.Join(dir, base)
	p := stagePaths{
		dir:     dir,
		mapped:  pre + tag + ".bam",
		summary: pre + "_bt_aln" + tag + "_summary.log",
		outR1:   pre + "_unmap" + tag + "_R1.fq",
		outR2:   pre + "_unmap" + tag + "_R2.fq",
		useFIFO: opts.UseFIFO && paired && !opts.Keep,
	}
	if p.useFIFO {
		p.sink = filepath.Join(dir, assembly+tag+"_bt2")
	} else {
		p.sink = pre + "_unmap" + tag + ".fq"
	}
	return p
}

// alignStage runs one alignment of the current pool against one decoy,
// partitioning reads into mapped (sunk or retained) and unmapped (the
// returned residual pool). Stage statistics are recorded on the run
// unless dups is set, which produces the duplicate-retaining twin
// artifacts only.
func alignStage(ctx context.Context, run *Run, pool ReadPool, decoy DecoyReference, dups bool) (StageResult, error) {
	res := StageResult{Assembly: decoy.Assembly, Unmapped: pool}
	if _, err := os.Stat(decoy.Dir); os.IsNotExist(err) {
		// Prealignment decoys are optional by design.
		log.Printf("no %s index found in %s; skipping", decoy.Assembly, decoy.Dir)
		res.Skipped = true
		return res, nil
	}
	// The directory exists, so a broken index is a fatal condition, not
	// an absent decoy.
	loc, err := ResolveIndex(run.Opts.GenomesDir, decoy.Assembly)
	if err != nil {
		return res, err
	}
	log.Printf("mapping to %s", decoy.Assembly)

	p := newStagePaths(run.Opts, decoy.Assembly, pool.Paired, dups)
	if err := os.MkdirAll(p.dir, 0777); err != nil {
		return res, err
	}

	// Safe re-invocation after interruption: when the stage's residual
	// outputs already exist with nonzero size, reuse them and re-derive
	// the statistics from the retained summary.
	if prev, ok := finishedStage(p, pool.Paired); ok {
		log.Printf("%s: reusing existing stage outputs", decoy.Assembly)
		res.Unmapped = prev
		res.Summary = p.summary
		res.Reused = true
		if run.Opts.Keep {
			res.MappedBAM = p.mapped
		}
		if !dups {
			recordStageStats(run, &res, pool.Paired)
		}
		return res, nil
	}

	if pool, err = pool.decompressed(run, p.dir); err != nil {
		return res, err
	}

	var sortDir string
	if run.Opts.Keep {
		if sortDir, err = ioutil.TempDir(p.dir, "sort"); err != nil {
			return res, err
		}
		run.RegisterCleanup(sortDir)
	}
	script := run.alignScript(pool, loc, p, sortDir)
	if pool.Paired {
		err = runPairedStage(ctx, run, pool, p, script)
		res.Unmapped = ReadPool{R1: p.outR1, R2: p.outR2, Paired: true}
	} else {
		// Single-end: the unaligned sink is the next pool as-is.
		err = run.Runner.Run(ctx, script)
		res.Unmapped = ReadPool{R1: p.sink}
	}
	if err != nil {
		return res, err
	}
	res.Summary = p.summary
	if run.Opts.Keep {
		res.MappedBAM = p.mapped
	}
	if !dups {
		recordStageStats(run, &res, pool.Paired)
	}
	return res, nil
}

// alignScript assembles the aligner pipeline for one stage: a single
// best alignment per read, unaligned reads diverted to the sink, the
// mapped stream either piped through samtools into a sorted BAM (when
// retention is requested) or discarded without touching a file, and
// stderr captured as the stage summary. It only builds the command
// string; sortDir, required when retention is requested, must already
// exist.
func (r *Run) alignScript(pool ReadPool, loc IndexLocation, p stagePaths, sortDir string) string {
	script := "(" + r.Tools.Bowtie2 +
		" -p " + strconv.Itoa(r.Opts.Cores) +
		" " + r.Opts.bowtie2Opts() +
		" -x " + loc.Prefix +
		" --rg-id " + r.Opts.Sample +
		" -U " + pool.R1 +
		" --un " + p.sink
	if r.Opts.Keep {
		script += " | " + r.Tools.Samtools + " view -bS - -@ 1" +
			" | " + r.Tools.Samtools + " sort - -@ 1" +
			" -T " + sortDir +
			" -o " + p.mapped
	} else {
		script += " > /dev/null"
	}
	return script + ") 2> " + p.summary
}

// runPairedStage executes the aligner and the pairing filter under the
// stage's plumbing strategy.
//
// FIFO strategy: the filter (consumer) is attached first, asynchronously,
// and the aligner (producer) is launched second and awaited; the filter
// is then joined. A named pipe blocks its writer until a reader opens
// the other end, so this launch order is the deadlock-avoidance
// invariant, not an optimization.
//
// Temp-file strategy: the aligner runs to completion, then the filter
// consumes the materialized file.
func runPairedStage(ctx context.Context, run *Run, pool ReadPool, p stagePaths, script string) error {
	if !p.useFIFO {
		run.RegisterCleanup(p.sink)
		if err := run.Runner.Run(ctx, script); err != nil {
			return err
		}
		f, err := os.Open(p.sink)
		if err != nil {
			return err
		}
		defer f.Close() // nolint: errcheck
		_, err = SyncPairs(f, pool.R1, pool.R2, p.outR1, p.outR2)
		return err
	}

	if err := newFIFO(run, p.sink); err != nil {
		return err
	}
	filterErr := make(chan error, 1)
	go func() {
		// Blocks until the aligner opens the write end.
		f, err := os.Open(p.sink)
		if err != nil {
			filterErr <- err
			return
		}
		defer f.Close() // nolint: errcheck
		_, err = SyncPairs(f, pool.R1, pool.R2, p.outR1, p.outR2)
		filterErr <- err
	}()
	if err := run.Runner.Run(ctx, script); err != nil {
		releaseFilter(p.sink, filterErr)
		return err
	}
	return <-filterErr
}

// releaseFilter unblocks a filter stuck opening the read end of sink
// after the producer died without ever opening the write end: it opens
// and closes a write end itself so the filter sees EOF, then joins the
// filter. A nonblocking write open fails with ENXIO until a reader is
// attached, so it is retried; the filter may not have reached its own
// open yet.
func releaseFilter(sink string, filterErr <-chan error) {
	for {
		select {
		case <-filterErr:
			// The filter already finished (or its open failed) on its own.
			return
		default:
		}
		w, err := os.OpenFile(sink, os.O_WRONLY|unix.O_NONBLOCK, 0)
		if err == nil {
			w.Close() // nolint: errcheck
			break
		}
		time.Sleep(time.Millisecond)
	}
	<-filterErr
}

// finishedStage reports whether a previous run left this stage's
// residual outputs (possibly compressed in the meantime) and summary on
// disk.
func finishedStage(p stagePaths, paired bool) (ReadPool, bool) {
	if !fileNonEmpty(p.summary) {
		return ReadPool{}, false
	}
	if paired {
		r1, ok1 := existingOutput(p.outR1)
		r2, ok2 := existingOutput(p.outR2)
		if ok1 && ok2 {
			return ReadPool{R1: r1, R2: r2, Paired: true}, true
		}
		return ReadPool{}, false
	}
	if p.useFIFO {
		// A pipe is never a durable output.
		return ReadPool{}, false
	}
	if r1, ok := existingOutput(p.sink); ok {
		return ReadPool{R1: r1}, true
	}
	return ReadPool{}, false
}

// recordStageStats derives the stage's aligned-read count from the
// summary and records it, plus the alignment rate when the upstream
// trimmed-read count is available.
//
// The rate divides by the run-wide trimmed count rather than the pool
// actually entering this stage; that matches the pipeline's published
// metric definition even though the two pools differ after the first
// stage.
func recordStageStats(run *Run, res *StageResult, paired bool) {
	aligned := float64(alignedExactlyOnceFile(res.Summary))
	// The aligner counts per-fragment; paired input is doubled to count
	// per-read.
	if paired {
		aligned *= 2
	}
	res.AlignedReads = aligned
	run.RecordStat(statAlignedPrefix+res.Assembly, aligned)

	trimmed, ok := run.Stat(StatTrimmedReads)
	if !ok || trimmed == 0 {
		log.Printf("%s not recorded; omitting %s%s", StatTrimmedReads, statRatePrefix, res.Assembly)
		return
	}
	rate := math.Round(aligned*100/trimmed*100) / 100
	res.AlignmentRate = rate
	res.RateKnown = true
	run.RecordStat(statRatePrefix+res.Assembly, rate)
}
