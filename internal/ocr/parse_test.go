package ocr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTextLabeledDates(t *testing.T) {
	text := `Solar PV Completion Report
Submission date: 2024-03-01
Issued: 2024/04/02
Meter reading recorded 2024.05.03
Plant ID: PV-12345`

	result := ParseText(text)

	assert.Equal(t, "2024-03-01", result.Dates.SubmittedAt)
	assert.Equal(t, "2024-04-02", result.Dates.IssuedAt)
	assert.Equal(t, "2024-05-03", result.Dates.MeterDate)
	assert.Equal(t, "PV-12345", result.PvID)
}

func TestParseTextKoreanLabels(t *testing.T) {
	text := `접수일: 2024년 3월 1일
발급일: 2024년 4월 2일
계량일: 2024년 5월 3일`

	result := ParseText(text)

	assert.Equal(t, "2024-03-01", result.Dates.SubmittedAt)
	assert.Equal(t, "2024-04-02", result.Dates.IssuedAt)
	assert.Equal(t, "2024-05-03", result.Dates.MeterDate)
}

func TestParseTextFirstMatchWins(t *testing.T) {
	text := `Submitted on 2024-01-10
Submitted again 2024-02-20
pv_9999
PV 8888`

	result := ParseText(text)

	assert.Equal(t, "2024-01-10", result.Dates.SubmittedAt)
	assert.Equal(t, "PV-9999", result.PvID)
}

func TestParseTextUnlabeledDateIgnored(t *testing.T) {
	// A bare date with no field keyword in the line must not be guessed
	// into any field.
	result := ParseText("Inspection completed 2024-06-15")

	assert.True(t, result.Dates.IsZero())
	assert.Empty(t, result.PvID)
}

func TestParseTextEmpty(t *testing.T) {
	result := ParseText("")

	assert.True(t, result.Dates.IsZero())
	assert.Empty(t, result.PvID)
}

func TestNormalizeDate(t *testing.T) {
	assert.Equal(t, "2024-03-01", NormalizeDate("2024", "3", "1"))
	assert.Equal(t, "2024-12-31", NormalizeDate("2024", "12", "31"))
	assert.Equal(t, "", NormalizeDate("2024", "13", "1"))
	assert.Equal(t, "", NormalizeDate("2024", "2", "30"))
}
