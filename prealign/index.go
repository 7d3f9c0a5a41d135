package prealign

import (
	"io/ioutil"
	"path/filepath"
	"sort"
	"strings"

	"github.com/grailbio/base/errors"
)

// IndexLocation points at a validated bowtie2 index for one assembly.
type IndexLocation struct {
	Assembly string
	// Dir is the index directory.
	Dir string
	// Prefix is the index basename handed to bowtie2 -x.
	Prefix string
	// Large reports a large-index (.bt2l) build.
	Large bool
}

// indexSuffixes is the fixed file family of a bowtie2 index; naming is
// constant across builds.
var indexSuffixes = []string{".1", ".2", ".3", ".4", ".rev.1", ".rev.2"}

// DecoyReference names one prealignment target. It is constructed once,
// in caller-supplied order, and is immutable for the whole cascade.
type DecoyReference struct {
	Assembly string
	Dir      string
	Prefix   string
}

// NewDecoyReference locates the index directory for assembly under
// genomes without validating it. A missing directory makes the stage a
// logged no-op rather than an error; an existing but incomplete index
// fails when the stage resolves it.
func NewDecoyReference(genomes, assembly string) DecoyReference {
	dir := filepath.Join(genomes, assembly)
	return DecoyReference{
		Assembly: assembly,
		Dir:      dir,
		Prefix:   filepath.Join(dir, assembly),
	}
}

// ResolveIndex locates the bowtie2 index for assembly under genomes and
// validates its completeness: the expected small- or large-index file
// family must be fully present and non-empty, and the assembly's
// reference sequence must accompany it. A partially built index is
// unsafe to use silently, so any violation is an error the caller must
// treat as fatal.
func ResolveIndex(genomes, assembly string) (IndexLocation, error) {
	loc := IndexLocation{
		Assembly: assembly,
		Dir:      filepath.Join(genomes, assembly),
		Prefix:   filepath.Join(genomes, assembly, assembly),
	}
	infos, err := ioutil.ReadDir(loc.Dir)
	if err != nil {
		return loc, errors.E(err, "missing bowtie2 index directory for "+assembly)
	}
	if len(infos) == 0 {
		return loc, errors.E("bowtie2 index directory " + loc.Dir + " contains no files")
	}
	sizes := map[string]int64{}
	for _, fi := range infos {
		sizes[fi.Name()] = fi.Size()
	}

	ext := ""
	for name := range sizes {
		if strings.HasSuffix(name, ".bt2") {
			ext = ".bt2"
			break
		}
	}
	if ext == "" {
		for name := range sizes {
			if strings.HasSuffix(name, ".bt2l") {
				ext = ".bt2l"
				loc.Large = true
				break
			}
		}
	}
	if ext == "" {
		return loc, errors.E(loc.Dir + " does not contain any bowtie2 index files")
	}

	var missing []string
	for _, sfx := range indexSuffixes {
		name := assembly + sfx + ext
		size, ok := sizes[name]
		switch {
		case !ok:
			missing = append(missing, name)
		case size == 0:
			return loc, errors.E("bowtie2 index file " + name + " is empty")
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return loc, errors.E("the " + assembly + " bowtie2 index is missing the following file(s): " +
			strings.Join(missing, ", "))
	}

	// The reference sequence travels with the index (assembly.fa plus any
	// derived files such as assembly.fa.fai).
	ref := assembly + ".fa"
	found := false
	for name, size := range sizes {
		if !strings.Contains(name, ref) {
			continue
		}
		if size == 0 {
			return loc, errors.E(name + " is an empty file")
		}
		found = true
	}
	if !found {
		return loc, errors.E("could not find " + ref + " in " + loc.Dir)
	}
	return loc, nil
}
