package service

import (
	"strconv"
	"strings"
	"time"
)

// Layouts seen in spreadsheets and forms, tried in order. Day-first.
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2-1-2006",
	"02.01.2006",
	"01-02-06", // excelize default for numFmt 14
	"02-Jan-2006",
	"2 Jan 2006",
	time.RFC3339,
}

// excelEpoch is day zero of the 1900 date system, adjusted for Excel's
// fictional 1900-02-29.
var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// NormalizeDate converts a date cell to yyyy-mm-dd. Values it cannot read
// are returned trimmed but otherwise unchanged so FBR can report them.
func NormalizeDate(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 0 && serial < 2958466 {
		return excelEpoch.AddDate(0, 0, int(serial)).Format("2006-01-02")
	}
	return s
}
