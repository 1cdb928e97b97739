package credential

import (
	"regexp"
	"strconv"
	"time"
)

// The upstream API spells its retry hint several ways depending on the
// transport surface: prose ("retry in 26.37s"), a JSON detail
// ("retryDelay": "30s"), a bare Retry-After header value ("30"), and the
// textual proto form (retry_delay { seconds: 30 }).
var retryDelayPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)retry in ([0-9]+(?:\.[0-9]+)?)s`),
	regexp.MustCompile(`(?i)"?retryDelay"?\s*:\s*"?([0-9]+(?:\.[0-9]+)?)s?"?`),
	regexp.MustCompile(`(?i)retry[-_]after:?\s*([0-9]+(?:\.[0-9]+)?)\b`),
	regexp.MustCompile(`(?i)retry_delay\s*\{\s*seconds:\s*([0-9]+)`),
}

// ExtractRetryDelay parses a server-suggested retry delay out of an error
// message. It returns false when the message carries no recognizable hint,
// leaving the caller to apply its own cooldown.
func ExtractRetryDelay(message string) (time.Duration, bool) {
	for _, pat := range retryDelayPatterns {
		m := pat.FindStringSubmatch(message)
		if m == nil {
			continue
		}
		secs, err := strconv.ParseFloat(m[1], 64)
		if err != nil || secs <= 0 {
			continue
		}
		return time.Duration(secs * float64(time.Second)), true
	}
	return 0, false
}
