package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// releaseDateRe matches the status line of a specification page, e.g.
// "Available. Released 2023, February 17" or "Released 2024, January".
var releaseDateRe = regexp.MustCompile(`Released\s+(\d{4})[,\s]+([A-Za-z]+)(?:\s+(\d{1,2}))?`)

// ReleaseDate pulls a release date out of specification-page text. It returns
// "YYYY-MM-DD", or "YYYY-MM" when the page names no day.
func ReleaseDate(text string) (string, bool) {
	m := releaseDateRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	year, err := strconv.Atoi(m[1])
	if err != nil || year < 1990 || year > 2100 {
		return "", false
	}
	month, ok := parseMonth(m[2])
	if !ok {
		return "", false
	}
	if m[3] != "" {
		if day, err := strconv.Atoi(m[3]); err == nil && day >= 1 && day <= 31 {
			return fmt.Sprintf("%04d-%02d-%02d", year, month, day), true
		}
	}
	return fmt.Sprintf("%04d-%02d", year, month), true
}

func parseMonth(name string) (time.Month, bool) {
	for _, layout := range []string{"January", "Jan"} {
		if t, err := time.Parse(layout, name); err == nil {
			return t.Month(), true
		}
	}
	return 0, false
}
