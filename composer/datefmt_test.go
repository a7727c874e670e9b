package composer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatDate_Patterns(t *testing.T) {
	morning := time.Date(2026, time.March, 5, 9, 7, 3, 0, time.UTC)
	midnight := time.Date(2026, time.March, 5, 0, 30, 0, 0, time.UTC)
	evening := time.Date(2026, time.October, 15, 21, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		t       time.Time
		pattern string
		want    string
	}{
		{"full", morning, "yyyy-MM-dd HH:mm:ss", "2026-03-05 09:07:03"},
		{"unpadded", morning, "yyyy/M/d H:m:s", "2026/3/5 9:7:3"},
		{"two digit year", morning, "yyMMdd", "260305"},
		{"year of era", evening, "YYYY-MM-dd", "2026-10-15"},
		{"day of year", evening, "yyyy-DDD", "2026-288"},
		{"uppercase day is day of year", evening, "YYYY-MM-DD", "2026-10-288"},
		{"short weekday", evening, "yyyy-MM-dd EEE", "2026-10-15 Thu"},
		{"long weekday", morning, "EEEE", "Thursday"},
		{"twelve hour midnight", midnight, "h a", "12 AM"},
		{"twelve hour evening", evening, "hh a", "09 PM"},
		{"quoted literal", morning, "yyyy'T'MM", "2026T03"},
		{"quoted letters are not tokens", morning, "'year' yyyy", "year 2026"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatDate(tt.t, tt.pattern))
		})
	}
}

func TestFormatDate_NamedTokens(t *testing.T) {
	at := time.Date(2026, time.January, 9, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "2026", formatDate(at, "YYYY"))
	assert.Equal(t, "01", formatDate(at, "MM"))
	assert.Equal(t, "09", formatDate(at, "DD"))
	assert.Equal(t, "202601", formatDate(at, "YYYYMM"))
	assert.Equal(t, "20260109", formatDate(at, "YYYYMMDD"))
	assert.Equal(t, "09.01.2026", formatDate(at, "dd.MM.yyyy"))
}
