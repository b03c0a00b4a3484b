package extract

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	timeRangeRe = regexp.MustCompile(`\d{1,2}:\d{2}\s*-\s*\d{1,2}:\d{2}\s*[AaPp]\.?[Mm]\.?`)
	dashes      = strings.NewReplacer("–", "-", "—", "-")
)

// SplitDateTime separates a combined date/time string into its date part and
// a time range such as "4:30 - 6:30PM". Without a time range the whole
// cleaned text is the date and the time is empty.
func SplitDateTime(raw string) (date, timeRange string) {
	cleaned := dashes.Replace(strings.Join(strings.Fields(raw), " "))

	timeRange = timeRangeRe.FindString(cleaned)
	if timeRange == "" {
		return cleaned, ""
	}
	date = strings.Trim(strings.ReplaceAll(cleaned, timeRange, ""), ", ;:")
	return date, timeRange
}

// WithYear appends the listing period to a non-empty date that does not
// already mention it.
func WithYear(date string, year int) string {
	y := strconv.Itoa(year)
	if date == "" || year <= 0 || strings.Contains(date, y) {
		return date
	}
	return date + ", " + y
}
