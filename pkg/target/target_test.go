package target

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/pyllemi/pkg/errors"
)

func TestParseInvalid(t *testing.T) {
	for _, s := range []string{"potato", "", "//", "//:", ":lib", "/path/to:lib", "///a:b", "//a/:b", "//a:b:c", "//a:b-c"} {
		t.Run(s, func(t *testing.T) {
			_, err := Parse(s)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrCodeInvalidTarget))
			assert.Contains(t, err.Error(), s+" does not match the format of a canonical BUILD target path")
		})
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		in       string
		wantDir  string
		wantName string
	}{
		{"//:main", "", "main"},
		{"//:target", "", "target"},
		{"//path/to:target", "path/to", "target"},
		{"//path/to", "path/to", "to"},
		{"//path/to:", "path/to", "to"},
		{"//third_party/python:requests", "third_party/python", "requests"},
		{"//lib", "lib", "lib"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			p, err := Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.wantDir, p.Dir)
			assert.Equal(t, tt.wantName, p.Name)
		})
	}
}

func TestCanonicalize(t *testing.T) {
	assert.Equal(t, "//path/to/lib:lib", MustParse("//path/to/lib").Canonicalize())
	assert.Equal(t, "//:main", MustParse("//:main").Canonicalize())
}

func TestSimplify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"//path/to/lib:lib", "//path/to/lib"},
		{"//path/to/lib:target", "//path/to/lib:target"},
		{"//path/to/lib", "//path/to/lib"},
		{"//:main", "//:main"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			p := MustParse(tt.in)
			assert.Equal(t, tt.want, p.Simplify())
			assert.Equal(t, tt.want, p.String())
		})
	}
}

func TestWithTag(t *testing.T) {
	assert.Equal(t, "//path/to:_target#tag", MustParse("//path/to:target").WithTag("tag"))
}

func TestCanonicalFixedPoint(t *testing.T) {
	for _, s := range []string{"//:main", "//a", "//a/b:c", "//a/b:b", "//a/b:", "//x_1/y:z_2"} {
		t.Run(s, func(t *testing.T) {
			p := MustParse(s)
			again, err := Parse(p.Canonicalize())
			require.NoError(t, err)
			assert.Equal(t, p, again)

			simple := p.Simplify()
			reparsed, err := Parse(simple)
			require.NoError(t, err)
			assert.Equal(t, simple, reparsed.Simplify())
			assert.Equal(t, p.Canonicalize(), reparsed.Canonicalize())
		})
	}
}

func TestNew(t *testing.T) {
	assert.Equal(t, Path{Dir: "a/b", Name: "b"}, New("a/b", ""))
	assert.Equal(t, Path{Dir: "a/b", Name: "c"}, New("a/b", "c"))
	assert.True(t, New("a/b", "").IsConventional())
	assert.False(t, New("a/b", "c").IsConventional())
}

func TestCanonical(t *testing.T) {
	got, err := Canonical("//a/b")
	require.NoError(t, err)
	assert.Equal(t, "//a/b:b", got)

	_, err = Canonical("nope")
	assert.Error(t, err)
}
