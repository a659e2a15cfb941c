package transcript

import (
	"fmt"
	"regexp"
	"strings"
)

// MaxChars bounds the transcript text handed to a model, in characters.
const MaxChars = 30000

var (
	bareID     = regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`)
	idPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/|youtube\.com/embed/)([a-zA-Z0-9_-]{11})`),
		regexp.MustCompile(`youtube\.com/v/([a-zA-Z0-9_-]{11})`),
		regexp.MustCompile(`[?&]v=([a-zA-Z0-9_-]{11})`),
		regexp.MustCompile(`youtube\.com/shorts/([a-zA-Z0-9_-]{11})`),
		regexp.MustCompile(`youtube\.com/live/([a-zA-Z0-9_-]{11})`),
	}
)

// VideoID extracts the 11-character video id from a URL or bare id.
func VideoID(urlOrID string) (string, bool) {
	s := strings.TrimSpace(urlOrID)
	if bareID.MatchString(s) {
		return s, true
	}
	for _, re := range idPatterns {
		if m := re.FindStringSubmatch(s); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// CheckURL rejects input the transcript script cannot resolve to a video.
func CheckURL(urlOrID string) error {
	if _, ok := VideoID(urlOrID); !ok {
		return fmt.Errorf("%w: %q", ErrInvalidURL, urlOrID)
	}
	return nil
}

// IsYouTubeURL reports whether text looks like a YouTube video link.
func IsYouTubeURL(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	for _, p := range []string{"youtube.com/watch", "youtu.be/", "youtube.com/embed", "youtube.com/v/", "youtube.com/shorts/", "youtube.com/live/"} {
		if strings.Contains(t, p) {
			return true
		}
	}
	return false
}

// FormatForAI wraps a transcript as model input, truncating overly long text.
func FormatForAI(transcript, videoURL string) string {
	if r := []rune(transcript); len(r) > MaxChars {
		transcript = string(r[:MaxChars]) + "\n\n[Transcript truncated due to length...]"
	}
	return fmt.Sprintf(`The following is a transcript from a YouTube video:
URL: %s

---
TRANSCRIPT:
%s
---

Please analyze this transcript according to the pattern instructions.`, videoURL, transcript)
}
