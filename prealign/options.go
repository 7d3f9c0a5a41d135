// Package prealign implements the sequential decoy-filtering alignment
// cascade of a run-on sequencing pipeline: an ordered list of decoy
// references (mitochondrial genome, rDNA, ...) is aligned against in
// series, each stage stripping the reads that mapped and passing the
// residual unaligned pool on, until the remainder is handed to
// primary-genome alignment.
//
// Alignment itself is delegated to bowtie2; mapped output is sunk
// through samtools. The package only orchestrates those binaries and
// restores the pairing guarantees their unaligned output loses.
package prealign

// Options configures a cascade run. It is read-only for the duration of
// the run.
type Options struct {
	// Sample names output artifacts and tags read groups.
	Sample string
	// Outdir is the pipeline output directory; stage artifacts go to
	// Outdir/prealignments.
	Outdir string
	// GenomesDir holds one bowtie2 index directory per assembly.
	GenomesDir string
	// Cores is the process-wide thread budget handed to subprocesses.
	Cores int
	// UseFIFO streams unaligned reads through a named pipe instead of a
	// temp file when the input is paired and intermediates are not kept.
	UseFIFO bool
	// Keep retains mapped decoy alignments as sorted BAMs and leaves
	// residual pools uncompressed.
	Keep bool
	// TrackDups carries a duplicate-retaining twin pool through the same
	// stages, for downstream library complexity estimation.
	TrackDups bool
	// Bowtie2Opts overrides the default alignment parameters.
	Bowtie2Opts string
}

// defaultBowtie2Opts requests a single best alignment per read.
const defaultBowtie2Opts = "-k 1 -D 20 -R 3 -N 1 -L 20 -i S,1,0.50"

func (o Options) bowtie2Opts() string {
	if o.Bowtie2Opts != "" {
		return o.Bowtie2Opts
	}
	return defaultBowtie2Opts
}
