package naming

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/fuunylmz/Re-aniname/internal/media"
)

var (
	yearRegex       = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	yearParenRegex  = regexp.MustCompile(`[(\[]((?:19|20)\d{2})[)\]]`)
	episodeSERegex  = regexp.MustCompile(`\b[Ss](\d{1,2})[ ._-]?[Ee](\d{1,3})`)
	episodeXRegex   = regexp.MustCompile(`\b(\d{1,2})x(\d{1,3})\b`)
	animeEpRegex    = regexp.MustCompile(`\s-\s(\d{1,3})(?:v\d+)?(?:\s|$|\[|\()`)
	bracketEpRegex  = regexp.MustCompile(`\[(\d{1,3})(?:v\d+)?\]`)
	specialRegex    = regexp.MustCompile(`(?i)\b(SP|OVA|OAD|NCOP|NCED)\s?(\d{1,3})?\b`)
	titleSeasonRe   = regexp.MustCompile(`(?i)\s(?:S|Season\s?)(\d{1,2})$`)
	folderSeasonRe  = regexp.MustCompile(`(?i)^(?:Season|S)\s?(\d{1,2})$`)
	leadGroupRegex  = regexp.MustCompile(`^\[([^\]]+)\]`)
	tailGroupRegex  = regexp.MustCompile(`-([A-Za-z0-9]+)$`)
	resolutionRegex = regexp.MustCompile(`(?i)\b(2160p|1440p|1080p|720p|576p|480p|4K)\b`)
	sourceRegex     = regexp.MustCompile(`(?i)\b(BluRay|Blu-ray|BDRip|REMUX|WEB-DL|WEBDL|WEBRip|HDTV|DVDRip)\b`)
	releasePatterns []*regexp.Regexp
)

func init() {
	patterns := []string{
		`\b\d{3,4}[pi]\b`,
		`\b(4K|UHD)\b`,
		`\b(HDR10\+?|HDR|DoVi|DV)\b`,
		`\b(DTS-HD|DTS-X|DTS|TrueHD|Atmos|AAC|AC3|DD\+?|DDP|FLAC)\b`,
		`\b\d\.\d\b`,
		`\b(BluRay|Blu-ray|BDRip|REMUX|WEB-DL|WEBDL|WEBRip|WEB)\b`,
		`\b(HDTV|DVDRip|DVD)\b`,
		`\b(AMZN|NF|ATVP|HULU|BILI|CR)\b`,
		`\b(x264|x265|HEVC|AVC|H\.?264|H\.?265)\b`,
		`\b(PROPER|REPACK|iNTERNAL|LIMITED|EXTENDED)\b`,
		`\b(DUAL|MULTI|DUB|SUB|SUBS|CHS|CHT|GB|BIG5)\b`,
		`\bv\d+\b`,
		`\[.*?\]`,
		`\(.*?\)`,
		`\b(8bit|10bit|12bit)\b`,
	}

	releasePatterns = make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		releasePatterns = append(releasePatterns, regexp.MustCompile(`(?i)`+pattern))
	}
}

// Guess builds a tentative MediaInfo from a release filename. parentFolder
// is consulted for a season number and as a last-resort title.
func Guess(filename, parentFolder string) (media.MediaInfo, error) {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	info := media.MediaInfo{
		Resolution: firstMatch(resolutionRegex, base),
		Source:     firstMatch(sourceRegex, base),
		Group:      releaseGroup(base),
	}
	if y := extractYear(base); y > 0 {
		info.Year = media.Int(y)
	}

	titlePart := strings.TrimSuffix(base, "-"+info.Group)
	hasLeadGroup := leadGroupRegex.MatchString(base)
	if hasLeadGroup {
		titlePart = strings.TrimSpace(leadGroupRegex.ReplaceAllString(base, ""))
	}

	switch {
	case specialRegex.MatchString(titlePart) && hasLeadGroup:
		info.Kind = media.KindAnime
		m := specialRegex.FindStringSubmatchIndex(titlePart)
		info.Season = media.Int(0)
		info.Episode = media.Int(1)
		if m[4] >= 0 {
			info.Episode = media.Int(atoi(titlePart[m[4]:m[5]]))
		}
		titlePart = titlePart[:m[0]]
	case episodeSERegex.MatchString(titlePart):
		m := episodeSERegex.FindStringSubmatchIndex(titlePart)
		info.Kind = media.KindSeries
		if hasLeadGroup {
			info.Kind = media.KindAnime
		}
		info.Season = media.Int(atoi(titlePart[m[2]:m[3]]))
		info.Episode = media.Int(atoi(titlePart[m[4]:m[5]]))
		titlePart = titlePart[:m[0]]
	case episodeXRegex.MatchString(titlePart):
		m := episodeXRegex.FindStringSubmatchIndex(titlePart)
		info.Kind = media.KindSeries
		info.Season = media.Int(atoi(titlePart[m[2]:m[3]]))
		info.Episode = media.Int(atoi(titlePart[m[4]:m[5]]))
		titlePart = titlePart[:m[0]]
	case animeEpRegex.MatchString(titlePart):
		m := animeEpRegex.FindStringSubmatchIndex(titlePart)
		info.Kind = media.KindAnime
		info.Episode = media.Int(atoi(titlePart[m[2]:m[3]]))
		titlePart = titlePart[:m[0]]
	case hasLeadGroup && bracketEpRegex.MatchString(titlePart):
		m := bracketEpRegex.FindStringSubmatchIndex(titlePart)
		info.Kind = media.KindAnime
		info.Episode = media.Int(atoi(titlePart[m[2]:m[3]]))
		titlePart = titlePart[:m[0]]
	default:
		info.Kind = media.KindMovie
	}

	title := cleanTitle(titlePart, info.YearOr(0))
	if info.Kind.IsEpisodic() {
		if m := titleSeasonRe.FindStringSubmatch(title); m != nil && info.Season == nil {
			info.Season = media.Int(atoi(m[1]))
			title = strings.TrimSpace(title[:len(title)-len(m[0])])
		}
		if m := folderSeasonRe.FindStringSubmatch(strings.TrimSpace(parentFolder)); m != nil && info.Season == nil {
			info.Season = media.Int(atoi(m[1]))
		}
	}
	if title == "" && parentFolder != "" && !folderSeasonRe.MatchString(parentFolder) {
		title = cleanTitle(parentFolder, info.YearOr(0))
	}
	if title == "" {
		return info, fmt.Errorf("could not extract a title from: %s", filename)
	}
	info.Title = title
	return info, nil
}

func cleanTitle(s string, year int) string {
	s = leadGroupRegex.ReplaceAllString(strings.TrimSpace(s), "")
	s = stripReleaseMarkers(s)
	fields := strings.Fields(s)
	kept := fields[:0]
	for _, f := range fields {
		if year > 0 && f == strconv.Itoa(year) {
			continue
		}
		kept = append(kept, f)
	}
	return strings.Trim(strings.Join(kept, " "), " -")
}

func stripReleaseMarkers(s string) string {
	s = strings.ReplaceAll(s, ".", " ")
	s = strings.ReplaceAll(s, "_", " ")

	for _, re := range releasePatterns {
		s = re.ReplaceAllString(s, " ")
	}

	return s
}

func extractYear(s string) int {
	if match := yearParenRegex.FindStringSubmatch(s); len(match) > 1 {
		return atoi(match[1])
	}

	matches := yearRegex.FindAllString(s, -1)
	for i := len(matches) - 1; i >= 0; i-- {
		// common resolutions that look like years
		if matches[i] != "1920" && matches[i] != "2160" {
			return atoi(matches[i])
		}
	}
	return 0
}

func releaseGroup(base string) string {
	if m := leadGroupRegex.FindStringSubmatch(base); m != nil {
		return strings.TrimSpace(m[1])
	}
	if !resolutionRegex.MatchString(base) && !sourceRegex.MatchString(base) {
		return ""
	}
	// WEB-DL and friends end in a dash token that is not a group
	for _, loc := range sourceRegex.FindAllStringIndex(base, -1) {
		if loc[1] == len(base) {
			return ""
		}
	}
	if m := tailGroupRegex.FindStringSubmatch(base); m != nil && !resolutionRegex.MatchString(m[1]) {
		return m[1]
	}
	return ""
}

func firstMatch(re *regexp.Regexp, s string) string {
	if m := re.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return ""
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
