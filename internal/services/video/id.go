package video

import (
	"regexp"
	"strings"
)

const (
	shortLinkMarker = "youtu.be/"
	watchPageMarker = "youtube.com/watch"
)

var reWatchID = regexp.MustCompile(`v=([a-zA-Z0-9_-]+)`)

// ExtractID returns the video id carried by a short link (youtu.be/<id>) or
// a watch page URL (youtube.com/watch?v=<id>). Anything else, including a
// marker with nothing after it, reports ok=false.
func ExtractID(url string) (id string, ok bool) {
	if idx := strings.Index(url, shortLinkMarker); idx >= 0 {
		id = url[idx+len(shortLinkMarker):]
		if cut := strings.IndexAny(id, "?#/"); cut >= 0 {
			id = id[:cut]
		}
		return id, id != ""
	}

	if strings.Contains(url, watchPageMarker) {
		match := reWatchID.FindStringSubmatch(url)
		if len(match) > 1 {
			return match[1], true
		}
	}

	return "", false
}

// IsYouTubeURL reports whether url carries one of the recognised markers.
func IsYouTubeURL(url string) bool {
	return strings.Contains(url, shortLinkMarker) || strings.Contains(url, watchPageMarker)
}
