package tweets

import "regexp"

var statusIDPattern = regexp.MustCompile(`/status(?:es)?/(\d+)`)

// IDFromURL extracts the numeric tweet id from a twitter.com / x.com status URL.
func IDFromURL(u string) (string, bool) {
	m := statusIDPattern.FindStringSubmatch(u)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// StatusURL is the canonical web URL for a tweet id.
func StatusURL(id string) string {
	return "https://twitter.com/i/web/status/" + id
}
