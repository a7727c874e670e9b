package composer

import (
	"time"

	"github.com/vjeantet/jodaTime"
)

// Named date tokens accepted by Date segments.
var dateTokens = map[string]string{
	"YYYY":     "2006",
	"MM":       "01",
	"DD":       "02",
	"YYYYMM":   "200601",
	"YYYYMMDD": "20060102",
}

// formatDate renders t for a Date segment format. Named tokens are looked up
// first; anything else is a Joda pattern such as "yyyy-MM-dd HH:mm:ss", where
// D is the day of the year and E the day of the week.
func formatDate(t time.Time, format string) string {
	if layout, ok := dateTokens[format]; ok {
		return t.Format(layout)
	}
	return jodaTime.Format(format, t)
}
