package detector

import "strings"

// DefaultChallengeMarkers are the phrases that identify a bot-verification page.
var DefaultChallengeMarkers = []string{
	"captcha",
	"verify you are",
	"robot check",
	"recaptcha",
	"are you human",
}

// Challenge flags pages that present a human-verification step instead of
// content. Matching is a case-insensitive substring test.
type Challenge struct {
	markers []string
}

// NewChallenge builds a detector over markers; an empty set uses the defaults.
func NewChallenge(markers []string) *Challenge {
	lower := make([]string, 0, len(markers))
	for _, marker := range markers {
		marker = strings.ToLower(strings.TrimSpace(marker))
		if marker == "" {
			continue
		}
		lower = append(lower, marker)
	}
	if len(lower) == 0 {
		lower = append(lower, DefaultChallengeMarkers...)
	}
	return &Challenge{markers: lower}
}

// LooksLikeChallenge implements crawler.ChallengeDetector.
func (c *Challenge) LooksLikeChallenge(html string) bool {
	if html == "" {
		return false
	}
	lower := strings.ToLower(html)
	for _, marker := range c.markers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
