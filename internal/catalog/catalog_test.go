package catalog

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSubcategoryIDsAreUnique(t *testing.T) {
	t.Parallel()
	seen := map[string]string{}
	for _, c := range Categories() {
		require.NotEmpty(t, c.Subcategories, "category %s has no subcategories", c.ID)
		for _, s := range c.Subcategories {
			prev, dup := seen[s.ID]
			require.False(t, dup, "subcategory %s in %s and %s", s.ID, prev, c.ID)
			seen[s.ID] = c.ID
		}
	}
}

func TestResolveLabels(t *testing.T) {
	t.Parallel()
	main, sub, err := ResolveLabels("science", "experiments")
	require.NoError(t, err)
	require.Equal(t, "علوم", main)
	require.Equal(t, "تجارب علمية", sub)
}

func TestResolveLabelsUnknown(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name, main, sub string
	}{
		{name: "unknown main", main: "cooking", sub: "experiments"},
		{name: "unknown sub", main: "science", sub: "alchemy"},
		{name: "sub of other main", main: "history", sub: "experiments"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, _, err := ResolveLabels(tt.main, tt.sub)
			require.True(t, errors.Is(err, ErrUnknownCategory), "got %v", err)
			require.False(t, ValidPair(tt.main, tt.sub))
		})
	}
}

func TestValidators(t *testing.T) {
	t.Parallel()
	require.True(t, ValidVoice("male_arabic"))
	require.False(t, ValidVoice("robot"))
	require.True(t, ValidDuration(30))
	require.False(t, ValidDuration(45))
	require.True(t, ValidScenes(1))
	require.True(t, ValidScenes(20))
	require.False(t, ValidScenes(0))
	require.False(t, ValidScenes(25))
}

func TestRandomStaysInCatalog(t *testing.T) {
	t.Parallel()
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		p := Random(r)
		require.True(t, ValidPair(p.MainCategory, p.SubCategory), "%+v", p)
		require.True(t, ValidVoice(p.VoiceType))
		require.True(t, ValidDuration(p.Duration))
		require.GreaterOrEqual(t, p.ScenesCount, AutoMinScenes)
		require.LessOrEqual(t, p.ScenesCount, AutoMaxScenes)
	}
}

func TestMainOfAndDefaults(t *testing.T) {
	t.Parallel()
	main, ok := MainOf("space")
	require.True(t, ok)
	require.Equal(t, "science", main)
	_, ok = MainOf("nope")
	require.False(t, ok)

	require.True(t, ValidVoice(DefaultVoice))
	require.True(t, ValidScenes(DefaultScenes))
	require.True(t, ValidDuration(DefaultDuration))
}
