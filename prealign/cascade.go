package prealign

import (
	"context"
	"os"
	"strings"

	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
)

// Cascade owns the ordered list of decoy prealignment stages and drives
// each stage's residual pool into the next.
type Cascade struct {
	Run    *Run
	Decoys []DecoyReference
}

// Result carries the cascade residuals and per-stage reports.
type Result struct {
	// Residual is the pool handed to primary alignment.
	Residual ReadPool
	// ResidualDups is the duplicate-retaining residual, carried only
	// when duplicate tracking is enabled.
	ResidualDups ReadPool
	Stages       []StageResult
}

// Map runs the cascade: decoys are processed strictly in the supplied
// order, each stage consuming the previous stage's unmapped output.
// When duplicate tracking is enabled a twin duplicate-retaining pool is
// carried through the same stages, sharing the run's thread budget.
//
// An aligner failure is fatal; a decoy with no index directory is a
// logged pass-through. Every present index is validated before the
// first stage runs, so an incomplete index anywhere in the cascade
// aborts without wasting earlier stages. Superseded intermediate pools
// are compressed in parallel at the end unless retention was requested.
func (c *Cascade) Map(ctx context.Context, pool, dupPool ReadPool) (Result, error) {
	res := Result{Residual: pool, ResidualDups: dupPool}
	if len(c.Decoys) == 0 {
		log.Printf("no prealignment references requested; pool passes to primary alignment unchanged")
		return res, nil
	}
	for _, decoy := range c.Decoys {
		if _, err := os.Stat(decoy.Dir); os.IsNotExist(err) {
			// Absent directories stay skippable stages.
			continue
		}
		if _, err := ResolveIndex(c.Run.Opts.GenomesDir, decoy.Assembly); err != nil {
			return res, err
		}
	}
	var produced, producedDups [][]string
	for _, decoy := range c.Decoys {
		st, err := alignStage(ctx, c.Run, res.Residual, decoy, false)
		if err != nil {
			return res, err
		}
		res.Stages = append(res.Stages, st)
		if !st.Skipped {
			res.Residual = st.Unmapped
			produced = append(produced, st.Unmapped.files())
		}
		if c.Run.Opts.TrackDups {
			dst, err := alignStage(ctx, c.Run, res.ResidualDups, decoy, true)
			if err != nil {
				return res, err
			}
			if !dst.Skipped {
				res.ResidualDups = dst.Unmapped
				producedDups = append(producedDups, dst.Unmapped.files())
			}
		}
	}
	if !c.Run.Opts.Keep {
		var stale []string
		for _, pools := range [][][]string{produced, producedDups} {
			// Everything but the final residual is superseded.
			for i := 0; i+1 < len(pools); i++ {
				stale = append(stale, pools[i]...)
			}
		}
		if err := compressAll(stale); err != nil {
			return res, err
		}
	}
	return res, nil
}

// compressAll gzips superseded residual pools in parallel. Files a
// previous interrupted run already compressed are left alone.
func compressAll(files []string) error {
	var plain []string
	for _, f := range files {
		if !strings.HasSuffix(f, ".gz") {
			plain = append(plain, f)
		}
	}
	if len(plain) == 0 {
		return nil
	}
	return traverse.Each(len(plain), func(i int) error {
		return gzipFile(plain[i])
	})
}
