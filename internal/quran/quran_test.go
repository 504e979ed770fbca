package quran

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChapterTable(t *testing.T) {
	all := Chapters()
	require.Len(t, all, 114)
	for i, c := range all {
		assert.Equal(t, i+1, c.Number)
		if i > 0 {
			assert.GreaterOrEqual(t, c.StartPage, all[i-1].StartPage, c.Name)
		}
		assert.LessOrEqual(t, c.StartPage, PageCount)
	}
}

func TestChapterLookup(t *testing.T) {
	c, ok := ChapterByNumber(67)
	require.True(t, ok)
	assert.Equal(t, "Al-Mulk", c.Name)
	assert.Equal(t, 562, c.StartPage)

	_, ok = ChapterByNumber(0)
	assert.False(t, ok)
	_, ok = ChapterByNumber(115)
	assert.False(t, ok)

	c, ok = ChapterByName("al-baqarah")
	require.True(t, ok)
	assert.Equal(t, 2, c.Number)
}

func TestJuzForPage(t *testing.T) {
	tests := []struct {
		page, juz int
	}{
		{0, 0},
		{1, 1},
		{20, 1},
		{21, 2},
		{582, 30},
		{600, 30},
		{604, 30},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.juz, JuzForPage(tt.page), "page %d", tt.page)
	}
}

func TestJuzForSurah(t *testing.T) {
	assert.Equal(t, 1, JuzForSurah("Al-Baqarah"))
	assert.Equal(t, 11, JuzForSurah("Yunus"))
	assert.Equal(t, 0, JuzForSurah("Unknown"))
}
