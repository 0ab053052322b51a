package ocr

import (
	"regexp"
	"strings"
	"time"
)

// The local backends OCR raw text and then mine it for labeled dates and the
// plant identifier. The remote function does the equivalent server-side.

var datePattern = regexp.MustCompile(`(\d{4})[.\-/년]\s?(\d{1,2})[.\-/월]\s?(\d{1,2})`)

var pvIDPattern = regexp.MustCompile(`(?i)\bPV[-_ ]?(\d{4,})\b`)

// Keyword sets that bind a found date to one of the three metadata fields.
var dateLabels = []struct {
	tag      string
	keywords []string
}{
	{DateTypeSubmission, []string{"submitted", "submission", "received", "접수"}},
	{DateTypeIssue, []string{"issued", "issue date", "발급"}},
	{DateTypeMeter, []string{"meter", "계량"}},
}

// ParseText extracts dated fields and a PV identifier from OCR'd text.
// Only the first match per field wins; unlabeled dates are ignored rather
// than guessed at.
func ParseText(text string) Result {
	var result Result

	for _, line := range strings.Split(text, "\n") {
		lower := strings.ToLower(line)

		m := datePattern.FindStringSubmatch(line)
		if m != nil {
			date := NormalizeDate(m[1], m[2], m[3])
			if date != "" {
				for _, label := range dateLabels {
					if !containsAny(lower, label.keywords) {
						continue
					}
					switch label.tag {
					case DateTypeSubmission:
						if result.Dates.SubmittedAt == "" {
							result.Dates.SubmittedAt = date
						}
					case DateTypeIssue:
						if result.Dates.IssuedAt == "" {
							result.Dates.IssuedAt = date
						}
					case DateTypeMeter:
						if result.Dates.MeterDate == "" {
							result.Dates.MeterDate = date
						}
					}
				}
			}
		}

		if result.PvID == "" {
			if pm := pvIDPattern.FindStringSubmatch(line); pm != nil {
				result.PvID = "PV-" + pm[1]
			}
		}
	}

	return result
}

// NormalizeDate validates year/month/day strings and renders an ISO date.
// Returns "" for impossible dates.
func NormalizeDate(year, month, day string) string {
	t, err := time.Parse("2006-1-2", year+"-"+month+"-"+day)
	if err != nil {
		return ""
	}
	return t.Format("2006-01-02")
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
