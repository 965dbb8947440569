package auth

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var relativeExpiry = regexp.MustCompile(`^(\d+)([dwh])$`)

// ParseExpirationDuration turns a token-expiry setting into an absolute
// expiration time. "never" or an empty string means no expiration. Accepts
// any Go duration ("30m", "2h30m") plus the day/week shorthands "30d", "2w".
func ParseExpirationDuration(expiresIn string) (*time.Time, error) {
	if expiresIn == "" || expiresIn == "never" {
		return nil, nil
	}

	if dur, err := time.ParseDuration(expiresIn); err == nil {
		t := time.Now().Add(dur)
		return &t, nil
	}

	matches := relativeExpiry.FindStringSubmatch(expiresIn)
	if len(matches) != 3 {
		return nil, fmt.Errorf("invalid expiration format: %s (use 'never', '30d', '2w', '24h', or a Go duration like '30m')", expiresIn)
	}

	num, err := strconv.Atoi(matches[1])
	if err != nil {
		return nil, fmt.Errorf("invalid number in expiration: %s", expiresIn)
	}

	var dur time.Duration
	switch matches[2] {
	case "d":
		dur = time.Duration(num) * 24 * time.Hour
	case "w":
		dur = time.Duration(num) * 7 * 24 * time.Hour
	case "h":
		dur = time.Duration(num) * time.Hour
	}

	t := time.Now().Add(dur)
	return &t, nil
}
