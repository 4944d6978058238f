package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSourceTypeTableInvariants(t *testing.T) {
	t.Parallel()

	types := SourceTypes()
	require.NotEmpty(t, types)

	names := make(map[string]bool)
	ordinals := make(map[int]bool)
	specs := 0
	for _, st := range types {
		require.NotEmpty(t, st.Name)
		require.NotEmpty(t, st.Domain)
		require.False(t, names[st.Name], "duplicate name %s", st.Name)
		require.False(t, ordinals[st.Ordinal], "duplicate ordinal %d", st.Ordinal)
		names[st.Name] = true
		ordinals[st.Ordinal] = true
		require.Positive(t, st.MinChars)
		require.Positive(t, st.MinWords)
		if st.Kind == KindSpec {
			specs++
			require.Equal(t, SpecSiteDomain, st.Domain)
		}
	}
	require.Equal(t, 1, specs, "exactly one spec slot expected")
}

func TestContentFileName(t *testing.T) {
	t.Parallel()

	st, ok := SourceTypeByName("review-techradar")
	require.True(t, ok)
	require.Equal(t, "04_review-techradar.txt", st.ContentFileName())
}

func TestTypesForDomain(t *testing.T) {
	t.Parallel()

	both := TypesForDomain("www.gsmarena.com")
	require.Len(t, both, 2)
	require.Equal(t, "specs", both[0].Name)
	require.Equal(t, "review-gsmarena", both[1].Name)

	require.Empty(t, TypesForDomain("example.com"))
}

func TestAllowedDomain(t *testing.T) {
	t.Parallel()

	require.True(t, AllowedDomain("gsmarena.com"))
	require.True(t, AllowedDomain("m.phonearena.com"))
	require.False(t, AllowedDomain("notgsmarena.com"))
	require.False(t, AllowedDomain("reddit.com"))
}

func TestDistinctiveTokens(t *testing.T) {
	t.Parallel()

	p := &Product{Brand: "Samsung", Model: "Galaxy S25 FE"}
	require.Equal(t, []string{"galaxy", "s25"}, p.DistinctiveTokens())

	p = &Product{Brand: "OnePlus", Model: "13"}
	require.Equal(t, []string{"13"}, p.DistinctiveTokens())
}

func TestProductKey(t *testing.T) {
	t.Parallel()

	p := &Product{Brand: "Google", Model: "Pixel 9 Pro XL"}
	require.Equal(t, "google_pixel_9_pro_xl", p.Key())
}
