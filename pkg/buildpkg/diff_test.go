package buildpkg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnifiedDiff(t *testing.T) {
	a := "a\nb\nc\nd\ne\nold\nf\ng\nh\ni\nj\nk\nl\nm\n"
	b := "a\nb\nc\nd\ne\nnew\nf\ng\nh\ni\nj\nk\nl\nm\ntail\n"

	want := "--- a/x/BUILD\n+++ b/x/BUILD\n" +
		"@@ -3,7 +3,7 @@\n c\n d\n e\n-old\n+new\n f\n g\n h\n" +
		"@@ -12,3 +12,4 @@\n k\n l\n m\n+tail\n"
	got, err := unifiedDiff("x/BUILD", []byte(a), []byte(b), 3)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestUnifiedDiffMergesCloseChanges(t *testing.T) {
	got, err := unifiedDiff("BUILD", []byte("x\na\nb\n"), []byte("a\nb\ny\n"), 3)
	require.NoError(t, err)
	assert.Equal(t, "--- a/BUILD\n+++ b/BUILD\n@@ -1,3 +1,3 @@\n-x\n a\n b\n+y\n", got)
}

func TestSplitLines(t *testing.T) {
	assert.Nil(t, splitLines(""))
	assert.Equal(t, []string{"a\n", "b\n"}, splitLines("a\nb\n"))
	assert.Equal(t, []string{"a\n", "b\n"}, splitLines("a\nb"))
}
