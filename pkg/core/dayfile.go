package core

import (
	"fmt"
	"regexp"
	"time"
)

// DateLayout is the calendar date format embedded in day file names.
const DateLayout = "2006-01-02"

const (
	dayFilePrefix = "hooks-"
	dayFileSuffix = ".json"
)

var dayFilePattern = regexp.MustCompile(`^hooks-(\d{4}-\d{2}-\d{2})\.json$`)

// DayFile describes one hooks-YYYY-MM-DD.json file in the log directory.
type DayFile struct {
	Date    string    `json:"date"`
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// DayFileName builds the file name for a date.
// Format: hooks-YYYY-MM-DD.json
func DayFileName(date string) string {
	return dayFilePrefix + date + dayFileSuffix
}

// ParseDayFileName extracts the date from a day file name.
func ParseDayFileName(name string) (string, error) {
	m := dayFilePattern.FindStringSubmatch(name)
	if m == nil {
		return "", fmt.Errorf("invalid day file name %q: expected hooks-YYYY-MM-DD.json", name)
	}
	return m[1], nil
}

// DateOf formats t as a day file date in t's location.
func DateOf(t time.Time) string {
	return t.Format(DateLayout)
}
