package prealign

import (
	"fmt"
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/testutil"
	"github.com/proseq/runon/encoding/fastq"
	"github.com/stretchr/testify/require"
)

func fqRecord(name string, mate int) string {
	return fmt.Sprintf("@%s/%d\nACGTACGT\n+\nIIIIIIII\n", name, mate)
}

func writeMates(t *testing.T, dir string, names []string) (string, string) {
	t.Helper()
	var b1, b2 strings.Builder
	for _, n := range names {
		b1.WriteString(fqRecord(n, 1))
		b2.WriteString(fqRecord(n, 2))
	}
	r1 := filepath.Join(dir, "r1.fq")
	r2 := filepath.Join(dir, "r2.fq")
	require.NoError(t, ioutil.WriteFile(r1, []byte(b1.String()), 0666))
	require.NoError(t, ioutil.WriteFile(r2, []byte(b2.String()), 0666))
	return r1, r2
}

func readNames(t *testing.T, path string) []string {
	t.Helper()
	in, err := fastq.Open(path)
	require.NoError(t, err)
	defer in.Close()
	var (
		sc    = fastq.NewScanner(in, fastq.ID)
		r     fastq.Read
		names []string
	)
	for sc.Scan(&r) {
		names = append(names, r.Name())
	}
	require.NoError(t, sc.Err())
	return names
}

func TestSyncPairs(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	r1, r2 := writeMates(t, dir, []string{"frag0", "frag1", "frag2", "frag3"})

	// The aligner's unaligned output: misordered, with an orphan name
	// that never appears in the originals.
	unaligned := fqRecord("frag2", 1) + fqRecord("frag0", 1) + fqRecord("orphan", 1)
	out1 := filepath.Join(dir, "out_R1.fq")
	out2 := filepath.Join(dir, "out_R2.fq")

	n, err := SyncPairs(strings.NewReader(unaligned), r1, r2, out1, out2)
	require.NoError(t, err)
	require.Equal(t, int64(2), n)

	// Matching order of identifiers on both sides, in original file
	// order.
	require.Equal(t, []string{"frag0", "frag2"}, readNames(t, out1))
	require.Equal(t, []string{"frag0", "frag2"}, readNames(t, out2))
}

func TestSyncPairsEmptyUnaligned(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	r1, r2 := writeMates(t, dir, []string{"frag0", "frag1"})

	out1 := filepath.Join(dir, "out_R1.fq")
	out2 := filepath.Join(dir, "out_R2.fq")
	n, err := SyncPairs(strings.NewReader(""), r1, r2, out1, out2)
	require.NoError(t, err)
	require.Equal(t, int64(0), n)
	require.Empty(t, readNames(t, out1))
	require.Empty(t, readNames(t, out2))
}

func TestSyncPairsDiscordantMates(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	r1, _ := writeMates(t, dir, []string{"frag0", "frag1"})
	// An R2 file missing frag1 yields unequal counts.
	r2 := filepath.Join(dir, "short_r2.fq")
	require.NoError(t, ioutil.WriteFile(r2, []byte(fqRecord("frag0", 2)), 0666))

	unaligned := fqRecord("frag0", 1) + fqRecord("frag1", 1)
	_, err := SyncPairs(strings.NewReader(unaligned), r1, r2,
		filepath.Join(dir, "o1.fq"), filepath.Join(dir, "o2.fq"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "out of sync")
}
