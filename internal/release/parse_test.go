package release

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse_Movie(t *testing.T) {
	info := Parse("Inception.2010.German.DL.1080p.BluRay.x264-GROUP")

	assert.Equal(t, "Inception", info.Title)
	assert.Equal(t, 2010, info.Year)
	assert.Equal(t, "1080p", info.Quality)
	assert.Equal(t, "BluRay", info.Source)
	assert.Equal(t, "x264", info.Codec)
	assert.Equal(t, "de", info.Language)
	assert.Zero(t, info.Season)
	assert.Zero(t, info.Episode)
}

func TestParse_Episode(t *testing.T) {
	info := Parse("Dark.S03E05.German.DL.720p.WEB-DL.h264-GROUP")

	assert.Equal(t, "Dark", info.Title)
	assert.Equal(t, 3, info.Season)
	assert.Equal(t, 5, info.Episode)
	assert.Equal(t, "720p", info.Quality)
	assert.Equal(t, "WEB-DL", info.Source)
	assert.Equal(t, "h264", info.Codec)
	assert.Equal(t, "de", info.Language)
}

func TestParse_SeasonPack(t *testing.T) {
	info := Parse("Breaking.Bad.Season.2.English.1080p.WEBRip.x265")

	assert.Equal(t, 2, info.Season)
	assert.Zero(t, info.Episode)
	assert.Equal(t, "WEBRip", info.Source)
	assert.Equal(t, "en", info.Language)
}

func TestParse_FourKAliases(t *testing.T) {
	assert.Equal(t, "2160p", Parse("Movie.2023.4K.WEB-DL").Quality)
	assert.Equal(t, "2160p", Parse("Movie.2023.UHD.BluRay").Quality)
	assert.Equal(t, "2160p", Parse("Movie.2023.2160p.WEB-DL").Quality)
}

func TestParse_CamRelease(t *testing.T) {
	info := Parse("New.Movie.2024.HDCAM.x264")
	assert.Equal(t, "CAM", info.Quality)
}

func TestParse_Empty(t *testing.T) {
	assert.Equal(t, Info{}, Parse(""))
}

func TestParse_TitleSeparators(t *testing.T) {
	assert.Equal(t, "The Lord of the Rings", Parse("The_Lord_of_the_Rings.2001.1080p").Title)
	assert.Equal(t, "Spider Man", Parse("Spider-Man 2002 720p").Title)
}

func TestQualityRank(t *testing.T) {
	assert.Equal(t, 5, QualityRank("2160p"))
	assert.Equal(t, 4, QualityRank("1080p"))
	assert.Equal(t, 3, QualityRank("720p"))
	assert.Equal(t, 2, QualityRank("480p"))
	assert.Equal(t, 1, QualityRank(""))
	assert.Equal(t, 0, QualityRank("CAM"))

	// Higher resolution always outranks lower.
	assert.Greater(t, QualityRank("2160p"), QualityRank("1080p"))
	assert.Greater(t, QualityRank("1080p"), QualityRank("720p"))
	assert.Greater(t, QualityRank("720p"), QualityRank("CAM"))
}
