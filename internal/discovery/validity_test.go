package discovery

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/modelmatch/review-harvester/internal/catalog"
	"github.com/modelmatch/review-harvester/internal/search"
)

func TestCheckCandidate(t *testing.T) {
	t.Parallel()

	oneplus := newProduct("OnePlus", "13")

	cases := []struct {
		name       string
		product    *catalog.Product
		result     search.Result
		wantSlot   string
		wantReason string
	}{
		{
			name:     "spec page lands in spec slot",
			product:  oneplus,
			result:   search.Result{Title: "OnePlus 13 - Full phone specifications", URL: "https://www.gsmarena.com/oneplus_13-13477.php"},
			wantSlot: "specs",
		},
		{
			name:     "spec site review lands in review slot",
			product:  oneplus,
			result:   search.Result{Title: "OnePlus 13 review", URL: "https://www.gsmarena.com/oneplus_13-review-2721.php"},
			wantSlot: "review-gsmarena",
		},
		{
			name:     "single slot domain",
			product:  oneplus,
			result:   search.Result{Title: "OnePlus 13 review", URL: "https://www.techradar.com/reviews/oneplus-13"},
			wantSlot: "review-techradar",
		},
		{
			name:       "forum path blocked",
			product:    oneplus,
			result:     search.Result{Title: "OnePlus 13 review", URL: "https://www.gsmarena.com/forum/oneplus-13"},
			wantReason: "blocked path /forum",
		},
		{
			name:       "news path blocked",
			product:    oneplus,
			result:     search.Result{Title: "OnePlus 13 review", URL: "https://www.phonearena.com/news/oneplus-13-launch"},
			wantReason: "blocked path /news/",
		},
		{
			name:       "brand and model absent",
			product:    oneplus,
			result:     search.Result{Title: "Best phones of 2025", URL: "https://www.techradar.com/best/phones"},
			wantReason: "brand and model absent",
		},
		{
			name:       "wrong variant rejected",
			product:    oneplus,
			result:     search.Result{Title: "OnePlus 13 Pro review", URL: "https://www.techradar.com/reviews/oneplus-13-pro"},
			wantReason: "wrong variant pro",
		},
		{
			name:       "domain not allowlisted",
			product:    oneplus,
			result:     search.Result{Title: "OnePlus 13 review", URL: "https://www.youtube.com/watch?v=oneplus-13"},
			wantReason: "domain not allowlisted",
		},
		{
			name:       "unparseable url",
			product:    oneplus,
			result:     search.Result{Title: "OnePlus 13", URL: "://bad"},
			wantReason: "unparseable url",
		},
		{
			name:     "brand plus first model token matches",
			product:  newProduct("Google", "Pixel 8 Pro"),
			result:   search.Result{Title: "In depth with Google's Pixel", URL: "https://www.androidauthority.com/google-pixel-8-pro-review"},
			wantSlot: "review-androidauthority",
		},
		{
			name:     "own variant suffix not wrong",
			product:  newProduct("OnePlus", "13 Pro"),
			result:   search.Result{Title: "OnePlus 13 Pro review", URL: "https://www.techradar.com/reviews/oneplus-13-pro"},
			wantSlot: "review-techradar",
		},
		{
			name:       "sibling of own variant still wrong",
			product:    newProduct("Apple", "iPhone 13 Pro"),
			result:     search.Result{Title: "Apple iPhone 13 Pro Max review", URL: "https://www.techradar.com/reviews/apple-iphone-13-pro-max"},
			wantReason: "wrong variant max",
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			st, host, reason := checkCandidate(tc.product, tc.result)
			require.Equal(t, tc.wantReason, reason)
			if tc.wantReason == "" {
				require.Equal(t, tc.wantSlot, st.Name)
				require.NotEmpty(t, host)
			}
		})
	}
}

func TestWrongVariantNeedsWordBoundary(t *testing.T) {
	t.Parallel()

	p := newProduct("OnePlus", "13")
	// "promises" must not read as the "pro" variant.
	require.Empty(t, wrongVariant(fold("OnePlus 13 promises big battery gains"), p))
	require.Equal(t, "pro", wrongVariant(fold("OnePlus 13 Pro arrives"), p))
	require.Equal(t, "pro", wrongVariant(fold("oneplus-13pro-review"), p))
}

func TestFold(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"OnePlus-13_Review", "oneplus 13 review"},
		{"https://www.gsmarena.com/oneplus_13-13477.php", "https www gsmarena com oneplus 13 13477 php"},
		{"  spaced   out  ", "spaced out"},
		{"OnePlus13", "oneplus13"},
		{"", ""},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, fold(tc.in), "fold(%q)", tc.in)
	}
}

func TestMentionsModel(t *testing.T) {
	t.Parallel()

	oneplus := newProduct("OnePlus", "13")
	require.True(t, mentionsModel(fold("OnePlus 13 review"), oneplus))
	require.True(t, mentionsModel(fold("oneplus_13-13477.php"), oneplus))
	require.True(t, mentionsModel(fold("OnePlus13 first look"), oneplus))
	require.False(t, mentionsModel(fold("OnePlus 15 review"), oneplus))
	require.False(t, mentionsModel(fold("Galaxy S25 review"), oneplus))

	pixel := newProduct("Google", "Pixel 8 Pro")
	require.True(t, mentionsModel(fold("Google Pixel 8 Pro review"), pixel))
	require.True(t, mentionsModel(fold("google-pixel-deep-dive"), pixel))
}
