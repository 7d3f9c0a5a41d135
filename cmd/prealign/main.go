package main

/*
  prealign maps a trimmed run-on sequencing read pool against an ordered
  list of decoy references (e.g. chrM, rDNA) with bowtie2, in series:
  each stage strips the reads that aligned and passes the residual
  unaligned reads on. The final residual pool is what primary-genome
  alignment should consume. For more information, see
  github.com/proseq/runon/prealign.
*/

import (
	"context"
	"flag"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/base/vcontext"
	"github.com/proseq/runon/encoding/fastq"
	"github.com/proseq/runon/prealign"
)

var (
	sample        = flag.String("sample", "", "Sample name used in output files and read groups")
	r1Path        = flag.String("r1", "", "Trimmed R1 FASTQ file (plain or gzip)")
	r2Path        = flag.String("r2", "", "Trimmed R2 FASTQ file for paired-end input")
	dupsR1        = flag.String("dups-r1", "", "Duplicate-retaining R1 FASTQ, required with -complexity")
	dupsR2        = flag.String("dups-r2", "", "Duplicate-retaining R2 FASTQ for paired-end input")
	genomes       = flag.String("genomes", "", "Directory holding one bowtie2 index directory per assembly")
	genome        = flag.String("genome", "", "Primary genome assembly; its index is validated before any stage runs")
	prealignments = flag.String("prealignments", "", "Comma-separated, ordered decoy assemblies to deplete before primary alignment")
	outdir        = flag.String("outdir", ".", "Pipeline output directory")
	cores         = flag.Int("cores", runtime.NumCPU(), "Thread budget handed to subprocesses")
	keep          = flag.Bool("keep", false, "Keep mapped decoy reads as sorted BAM files")
	noFIFO        = flag.Bool("no-fifo", false, "Do NOT use named pipes during prealignments")
	complexity    = flag.Bool("complexity", false, "Carry a duplicate-retaining pool through the cascade for library complexity estimation")
	trimmedReads  = flag.Float64("trimmed-reads", 0, "Upstream trimmed read count (per read); counted from -r1 when 0")
	bt2Opts       = flag.String("bt2-opts", "", "Override the default bowtie2 alignment options")
	statsPath     = flag.String("stats", "", "Stats TSV output path (default <outdir>/prealign_stats.tsv)")
)

func main() {
	shutdown := grail.Init()
	defer shutdown()
	ctx := vcontext.Background()

	if flag.NArg() > 0 {
		a := flag.Args()
		log.Fatalf("unparsed flags, please check flag syntax: '%s'", strings.Join(a, " "))
	}
	if *sample == "" || *r1Path == "" || *genomes == "" {
		log.Fatalf("-sample, -r1 and -genomes are required")
	}
	// log.Fatalf exits without unwinding, so everything that registers
	// cleanups runs inside prealignMain, behind its deferred Cleanup.
	if err := prealignMain(ctx); err != nil {
		log.Fatalf("%v", err)
	}
}

func prealignMain(ctx context.Context) error {
	paired := *r2Path != ""

	tools, err := prealign.FindTools()
	if err != nil {
		return err
	}
	if *genome != "" {
		// A partially built primary index must abort the whole run before
		// any cascade stage executes.
		if _, err := prealign.ResolveIndex(*genomes, *genome); err != nil {
			return err
		}
	}

	opts := prealign.Options{
		Sample:      *sample,
		Outdir:      *outdir,
		GenomesDir:  *genomes,
		Cores:       *cores,
		UseFIFO:     !*noFIFO,
		Keep:        *keep,
		TrackDups:   *complexity,
		Bowtie2Opts: *bt2Opts,
	}
	run := prealign.NewRun(opts, tools)
	defer run.Cleanup()

	seedTrimmedReads(run, paired)

	var decoys []prealign.DecoyReference
	for _, assembly := range strings.Split(*prealignments, ",") {
		if assembly = strings.TrimSpace(assembly); assembly != "" {
			decoys = append(decoys, prealign.NewDecoyReference(*genomes, assembly))
		}
	}

	pool := prealign.ReadPool{R1: *r1Path, R2: *r2Path, Paired: paired}
	var dupPool prealign.ReadPool
	if *complexity {
		if *dupsR1 == "" || (paired && *dupsR2 == "") {
			return errors.E("-complexity requires -dups-r1 (and -dups-r2 for paired input)")
		}
		dupPool = prealign.ReadPool{R1: *dupsR1, R2: *dupsR2, Paired: paired}
	}

	cascade := prealign.Cascade{Run: run, Decoys: decoys}
	result, err := cascade.Map(ctx, pool, dupPool)
	if err != nil {
		return errors.E(err, "prealignment failed")
	}

	if err := writeStats(run, statsFile()); err != nil {
		return err
	}
	log.Printf("residual pool: %s %s", result.Residual.R1, result.Residual.R2)
	if *complexity {
		log.Printf("residual duplicate-retaining pool: %s %s", result.ResidualDups.R1, result.ResidualDups.R2)
	}
	return nil
}

// seedTrimmedReads records the alignment-rate denominator: the caller's
// count when given, else a count of the input pool. Failure to count is
// non-fatal; the rates are then simply not reported.
func seedTrimmedReads(run *prealign.Run, paired bool) {
	if *trimmedReads > 0 {
		run.RecordStat(prealign.StatTrimmedReads, *trimmedReads)
		return
	}
	n, err := fastq.CountRecords(*r1Path)
	if err != nil {
		log.Error.Printf("counting trimmed reads in %s: %v; alignment rates will be omitted", *r1Path, err)
		return
	}
	if paired {
		n *= 2
	}
	run.RecordStat(prealign.StatTrimmedReads, float64(n))
}

func statsFile() string {
	if *statsPath != "" {
		return *statsPath
	}
	return filepath.Join(*outdir, "prealign_stats.tsv")
}

func writeStats(run *prealign.Run, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := tsv.NewWriter(f)
	for _, s := range run.Stats() {
		w.WriteString(s.Name)
		w.WriteString(strconv.FormatFloat(s.Value, 'f', -1, 64))
		if err := w.EndLine(); err != nil {
			f.Close() // nolint: errcheck
			return err
		}
	}
	if err := w.Flush(); err != nil {
		f.Close() // nolint: errcheck
		return err
	}
	return f.Close()
}
