// Package release parses scene release names into structured attributes
// and provides the fuzzy title matching used for stream ranking.
package release

import (
	"regexp"
	"strconv"
	"strings"
)

// Info is the structured view of one release name.
type Info struct {
	Title    string
	Year     int
	Quality  string // "2160p", "1080p", "720p", "480p", "CAM", "TS", "SD"
	Source   string // "BluRay", "WEB-DL", "WEBRip", "HDTV", "DVDRip", ...
	Codec    string // "x264", "x265", "h264", "h265", "av1", "xvid"
	Language string // ISO 639-1 where detectable
	Season   int
	Episode  int
}

var (
	yearPattern    = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)
	seasonEpisode  = regexp.MustCompile(`(?i)\bS(\d{1,2})[\s._-]?E(\d{1,3})\b`)
	seasonOnly     = regexp.MustCompile(`(?i)\b(?:S|Season[\s._-]?)(\d{1,2})\b`)
	qualityPattern = regexp.MustCompile(`(?i)\b(2160p|1080p|720p|480p|4k|uhd)\b`)
	camPattern     = regexp.MustCompile(`(?i)\b(cam(rip)?|hdcam|telesync|\bts\b|telecine|\btc\b)\b`)
	sourcePattern  = regexp.MustCompile(`(?i)\b(blu-?ray|bdrip|brrip|web-?dl|webrip|hdtv|dvdrip|dvdscr|hdrip)\b`)
	codecPattern   = regexp.MustCompile(`(?i)\b(x264|x265|h\.?264|h\.?265|hevc|av1|xvid|divx)\b`)
	langPattern    = regexp.MustCompile(`(?i)\b(german|deutsch|english|french|spanish|italian|multi|dl)\b`)
)

var langCodes = map[string]string{
	"german":  "de",
	"deutsch": "de",
	"english": "en",
	"french":  "fr",
	"spanish": "es",
	"italian": "it",
	"multi":   "multi",
}

// Parse extracts structured attributes from a release name. Missing
// attributes stay at their zero values; parsing is tolerant and never
// fails.
func Parse(name string) Info {
	info := Info{}
	if name == "" {
		return info
	}

	if m := seasonEpisode.FindStringSubmatch(name); m != nil {
		info.Season, _ = strconv.Atoi(m[1])
		info.Episode, _ = strconv.Atoi(m[2])
	} else if m := seasonOnly.FindStringSubmatch(name); m != nil {
		info.Season, _ = strconv.Atoi(m[1])
	}

	if m := yearPattern.FindStringSubmatch(name); m != nil {
		info.Year, _ = strconv.Atoi(m[1])
	}

	if m := qualityPattern.FindStringSubmatch(name); m != nil {
		q := strings.ToLower(m[1])
		switch q {
		case "4k", "uhd":
			info.Quality = "2160p"
		default:
			info.Quality = q
		}
	} else if camPattern.MatchString(name) {
		info.Quality = "CAM"
	}

	if m := sourcePattern.FindStringSubmatch(name); m != nil {
		info.Source = normalizeSource(m[1])
	}

	if m := codecPattern.FindStringSubmatch(name); m != nil {
		info.Codec = strings.ToLower(strings.ReplaceAll(m[1], ".", ""))
	}

	for _, m := range langPattern.FindAllStringSubmatch(name, -1) {
		tag := strings.ToLower(m[1])
		if tag == "dl" {
			continue // "DL" alone is ambiguous (German Dual Language vs WEB-DL)
		}
		if code, ok := langCodes[tag]; ok {
			info.Language = code
			break
		}
	}

	info.Title = extractTitle(name)
	return info
}

// extractTitle takes everything before the first structural token (year,
// SxxExx, quality) and cleans separators.
func extractTitle(name string) string {
	cut := len(name)
	for _, re := range []*regexp.Regexp{seasonEpisode, yearPattern, qualityPattern, camPattern} {
		if loc := re.FindStringIndex(name); loc != nil && loc[0] < cut {
			cut = loc[0]
		}
	}
	title := name[:cut]
	title = strings.NewReplacer(".", " ", "_", " ", "-", " ").Replace(title)
	return strings.Join(strings.Fields(title), " ")
}

func normalizeSource(s string) string {
	switch strings.ToLower(strings.ReplaceAll(s, "-", "")) {
	case "bluray", "bdrip", "brrip":
		return "BluRay"
	case "webdl":
		return "WEB-DL"
	case "webrip":
		return "WEBRip"
	case "hdtv":
		return "HDTV"
	case "dvdrip", "dvdscr":
		return "DVDRip"
	case "hdrip":
		return "HDRip"
	}
	return s
}

// QualityRank orders qualities for scoring; higher is better.
func QualityRank(quality string) int {
	switch strings.ToLower(quality) {
	case "2160p":
		return 5
	case "1080p":
		return 4
	case "720p":
		return 3
	case "480p", "sd":
		return 2
	case "":
		return 1
	case "cam", "ts", "tc":
		return 0
	}
	return 1
}
