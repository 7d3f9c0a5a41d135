package prealign

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAlignScript(t *testing.T) {
	run := NewRun(Options{
		Sample:     "s1",
		Outdir:     "/no/such/outdir",
		GenomesDir: "/g",
		Cores:      4,
		UseFIFO:    true,
	}, Tools{Bowtie2: "bowtie2", Samtools: "samtools"})
	p := newStagePaths(run.Opts, "chrM", true, false)
	loc := IndexLocation{Assembly: "chrM", Prefix: "/g/chrM/chrM"}
	pool := ReadPool{R1: "/in/r1.fq", R2: "/in/r2.fq", Paired: true}

	script := run.alignScript(pool, loc, p, "")
	require.Contains(t, script, "bowtie2 -p 4")
	require.Contains(t, script, defaultBowtie2Opts)
	require.Contains(t, script, "-x /g/chrM/chrM")
	require.Contains(t, script, "--rg-id s1")
	require.Contains(t, script, "-U /in/r1.fq")
	require.Contains(t, script, "--un "+p.sink)
	require.Contains(t, script, "> /dev/null")
	require.Contains(t, script, "2> "+p.summary)
	require.NotContains(t, script, "samtools")

	// Building a script is a pure string operation; nothing may be
	// created on disk.
	_, err := os.Stat(run.Opts.Outdir)
	require.True(t, os.IsNotExist(err))
}

func TestAlignScriptKeep(t *testing.T) {
	run := NewRun(Options{
		Sample:     "s1",
		Outdir:     "/no/such/outdir",
		GenomesDir: "/g",
		Cores:      2,
		Keep:       true,
	}, Tools{Bowtie2: "bowtie2", Samtools: "samtools"})
	p := newStagePaths(run.Opts, "rDNA", true, false)
	loc := IndexLocation{Assembly: "rDNA", Prefix: "/g/rDNA/rDNA"}
	pool := ReadPool{R1: "/in/r1.fq", R2: "/in/r2.fq", Paired: true}

	script := run.alignScript(pool, loc, p, "/work/sort123")
	require.Contains(t, script, "samtools view -bS - -@ 1")
	require.Contains(t, script, "samtools sort - -@ 1")
	require.Contains(t, script, "-T /work/sort123")
	require.Contains(t, script, "-o "+p.mapped)
	require.NotContains(t, script, "/dev/null")
}

func TestAlignScriptOverrideOpts(t *testing.T) {
	run := NewRun(Options{
		Sample:      "s1",
		Outdir:      "/no/such/outdir",
		GenomesDir:  "/g",
		Cores:       1,
		Bowtie2Opts: "--very-sensitive",
	}, Tools{Bowtie2: "bowtie2", Samtools: "samtools"})
	p := newStagePaths(run.Opts, "chrM", false, false)
	loc := IndexLocation{Assembly: "chrM", Prefix: "/g/chrM/chrM"}

	script := run.alignScript(ReadPool{R1: "/in/r1.fq"}, loc, p, "")
	require.Contains(t, script, "--very-sensitive")
	require.NotContains(t, script, defaultBowtie2Opts)
}
