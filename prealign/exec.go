package prealign

import (
	"context"
	"os"
	"os/exec"

	"github.com/grailbio/base/errors"
	"v.io/x/lib/lookpath"
)

// Runner executes the shell pipelines the cascade builds (aligner plus
// samtools sink). The default runner shells out to bash; tests
// substitute their own.
type Runner interface {
	// Run executes script and waits for it. A non-zero exit is returned
	// as an error; the cascade treats it as fatal.
	Run(ctx context.Context, script string) error
}

type bashRunner struct{}

// BashRunner returns a Runner that executes scripts via "bash -c" with
// pipefail set, so a failure anywhere in an aligner pipeline surfaces as
// a non-zero exit.
func BashRunner() Runner {
	return bashRunner{}
}

func (bashRunner) Run(ctx context.Context, script string) error {
	cmd := exec.CommandContext(ctx, "bash", "-c", "set -o pipefail; "+script)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return errors.E(err, "subprocess failed: "+script)
	}
	return nil
}

// Tools holds resolved paths of the external binaries the cascade
// invokes.
type Tools struct {
	Bowtie2  string
	Samtools string
}

// FindTools resolves the required external binaries on $PATH. A missing
// tool is fatal before any stage runs.
func FindTools() (Tools, error) {
	env := map[string]string{"PATH": os.Getenv("PATH")}
	var (
		tools Tools
		err   error
	)
	if tools.Bowtie2, err = lookpath.Look(env, "bowtie2"); err != nil {
		return tools, errors.E(err, "bowtie2 not found on PATH")
	}
	if tools.Samtools, err = lookpath.Look(env, "samtools"); err != nil {
		return tools, errors.E(err, "samtools not found on PATH")
	}
	return tools, nil
}
