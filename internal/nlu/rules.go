package nlu

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/capitalize-ai/scheduling-assistant/internal/model"
)

var (
	bookingVerbPattern  = regexp.MustCompile(`\b(book\w*|schedul\w*|reserve|set up)\b`)
	availabilityPattern = regexp.MustCompile(`\b(free|availab\w*|busy)\b`)
	bookingNounPattern  = regexp.MustCompile(`\b(meetings?|calls?|appointments?)\b`)

	isoDatePattern      = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	dayMonthPattern     = regexp.MustCompile(`\b(\d{1,2})(?:st|nd|rd|th)?\s+(?:of\s+)?(` + monthAlternation + `)\b(?:,?\s+(\d{4}))?`)
	monthDayPattern     = regexp.MustCompile(`\b(` + monthAlternation + `)\s+(\d{1,2})(?:st|nd|rd|th)?\b(?:,?\s+(\d{4}))?`)
	relativeDayPattern  = regexp.MustCompile(`\b(day after tomorrow|tomorrow|today|tonight)\b`)
	weekdayPattern      = regexp.MustCompile(`\b(next\s+|this\s+)?(monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b`)
	rangePattern        = regexp.MustCompile(`\b(\d{1,2})(?:[:.](\d{2}))?\s*(am|pm)?\s*(?:-|–|to|until|till)\s*(\d{1,2})(?:[:.](\d{2}))?\s*(am|pm)?\b`)
	betweenPattern      = regexp.MustCompile(`\bbetween\s+(\d{1,2})(?:[:.](\d{2}))?\s*(am|pm)?\s*(?:and|-|–)\s*(\d{1,2})(?:[:.](\d{2}))?\s*(am|pm)?\b`)
	meridiemTimePattern = regexp.MustCompile(`\b(\d{1,2})(?:[:.](\d{2}))?\s*(am|pm)\b`)
	clockTimePattern    = regexp.MustCompile(`\b([01]?\d|2[0-3])[:.]([0-5]\d)\b`)
	namedTimePattern    = regexp.MustCompile(`\b(noon|midday|midnight)\b`)
	durationPattern     = regexp.MustCompile(`\bfor\s+(\d+(?:\.\d+)?)\s*(minutes?|mins?|m|hours?|hrs?|h)\b`)
	halfHourPattern     = regexp.MustCompile(`\bfor\s+half\s+an\s+hour\b`)
	anHourPattern       = regexp.MustCompile(`\bfor\s+an\s+hour\b`)
)

const monthAlternation = `january|february|march|april|may|june|july|august|september|october|november|december|jan|feb|mar|apr|jun|jul|aug|sep|sept|oct|nov|dec`

var months = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may":  time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sep": time.September, "sept": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
	"wednesday": time.Wednesday, "thursday": time.Thursday, "friday": time.Friday,
	"saturday": time.Saturday,
}

// RuleParser detects intent by keywords and extracts dates and times with
// regular expressions. Relative dates resolve against Now in Location and
// prefer the future.
type RuleParser struct {
	loc *time.Location
	now func() time.Time
}

// NewRuleParser creates a rule-based parser. A nil location means
// time.Local and a nil clock means time.Now.
func NewRuleParser(loc *time.Location, now func() time.Time) *RuleParser {
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return &RuleParser{loc: loc, now: now}
}

// Parse implements Parser.
func (p *RuleParser) Parse(ctx context.Context, message string) (model.ParsedRequest, error) {
	msg := strings.ToLower(strings.TrimSpace(message))
	if msg == "" {
		return model.ParsedRequest{}, fmt.Errorf("%w: empty message", ErrParseFailure)
	}

	parsed := model.ParsedRequest{Intent: model.IntentUnknown}
	// "am I free for a meeting" asks about availability; only an explicit
	// booking verb outranks the availability keywords.
	switch {
	case bookingVerbPattern.MatchString(msg):
		parsed.Intent = model.IntentBook
	case availabilityPattern.MatchString(msg):
		parsed.Intent = model.IntentCheckAvailability
	case bookingNounPattern.MatchString(msg):
		parsed.Intent = model.IntentBook
	}

	// Durations and dates are cut out so their digits are not read as times.
	parsed.DurationMinutes, msg = extractDuration(msg)
	parsed.Date, msg = p.extractDate(msg)
	parsed.Time, parsed.EndTime = extractTime(msg)

	return parsed, nil
}

func extractDuration(msg string) (int, string) {
	if m := durationPattern.FindStringSubmatchIndex(msg); m != nil {
		value, err := strconv.ParseFloat(msg[m[2]:m[3]], 64)
		if err == nil {
			unit := msg[m[4]:m[5]]
			minutes := value
			if strings.HasPrefix(unit, "h") {
				minutes = value * 60
			}
			return int(math.Round(minutes)), cut(msg, m[0], m[1])
		}
	}
	if m := halfHourPattern.FindStringIndex(msg); m != nil {
		return 30, cut(msg, m[0], m[1])
	}
	if m := anHourPattern.FindStringIndex(msg); m != nil {
		return 60, cut(msg, m[0], m[1])
	}
	return 0, msg
}

func (p *RuleParser) extractDate(msg string) (string, string) {
	today := p.today()

	if m := isoDatePattern.FindStringSubmatchIndex(msg); m != nil {
		if d, err := time.ParseInLocation("2006-01-02", msg[m[0]:m[1]], p.loc); err == nil {
			return formatDate(d), cut(msg, m[0], m[1])
		}
	}

	if m := dayMonthPattern.FindStringSubmatchIndex(msg); m != nil {
		day, _ := strconv.Atoi(msg[m[2]:m[3]])
		if d, ok := p.calendarDate(day, months[msg[m[4]:m[5]]], group(msg, m, 3)); ok {
			return formatDate(d), cut(msg, m[0], m[1])
		}
	}

	if m := monthDayPattern.FindStringSubmatchIndex(msg); m != nil {
		day, _ := strconv.Atoi(msg[m[4]:m[5]])
		if d, ok := p.calendarDate(day, months[msg[m[2]:m[3]]], group(msg, m, 3)); ok {
			return formatDate(d), cut(msg, m[0], m[1])
		}
	}

	if m := relativeDayPattern.FindStringSubmatchIndex(msg); m != nil {
		offset := 0
		switch msg[m[2]:m[3]] {
		case "tomorrow":
			offset = 1
		case "day after tomorrow":
			offset = 2
		}
		return formatDate(today.AddDate(0, 0, offset)), cut(msg, m[0], m[1])
	}

	if m := weekdayPattern.FindStringSubmatchIndex(msg); m != nil {
		target := weekdays[msg[m[4]:m[5]]]
		ahead := (int(target) - int(today.Weekday()) + 7) % 7
		if strings.HasPrefix(group(msg, m, 1), "next") {
			ahead += 7
		}
		return formatDate(today.AddDate(0, 0, ahead)), cut(msg, m[0], m[1])
	}

	return "", msg
}

// calendarDate builds a date from day and month. Without a year it picks
// this year, or next year when the date has already passed.
func (p *RuleParser) calendarDate(day int, month time.Month, year string) (time.Time, bool) {
	today := p.today()
	y := today.Year()
	explicitYear := year != ""
	if explicitYear {
		y, _ = strconv.Atoi(year)
	}

	d := time.Date(y, month, day, 0, 0, 0, 0, p.loc)
	if d.Day() != day {
		return time.Time{}, false
	}
	if !explicitYear && d.Before(today) {
		d = d.AddDate(1, 0, 0)
	}
	return d, true
}

func (p *RuleParser) today() time.Time {
	now := p.now().In(p.loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, p.loc)
}

// extractTime returns the start and, for ranges, the end time as HH:MM.
// Minutes may follow a colon or a dot ("10.30am").
func extractTime(msg string) (string, string) {
	// "between 1 and 3pm" is always a range, even without a meridiem or minutes.
	if m := betweenPattern.FindStringSubmatch(msg); m != nil {
		if start, end, ok := rangeClock(m[1], m[2], m[3], m[4], m[5], m[6]); ok {
			return start, end
		}
	}

	if m := rangePattern.FindStringSubmatch(msg); m != nil {
		startMer, endMer := m[3], m[6]
		hasClock := m[2] != "" || m[5] != ""
		if startMer != "" || endMer != "" || hasClock {
			if start, end, ok := rangeClock(m[1], m[2], startMer, m[4], m[5], endMer); ok {
				return start, end
			}
		}
	}

	if m := meridiemTimePattern.FindStringSubmatch(msg); m != nil {
		if h, ok := to24(m[1], m[3]); ok {
			return clock(h, minutes(m[2])), ""
		}
	}

	if m := clockTimePattern.FindStringSubmatch(msg); m != nil {
		h, _ := strconv.Atoi(m[1])
		return clock(h, minutes(m[2])), ""
	}

	if m := namedTimePattern.FindStringSubmatch(msg); m != nil {
		if m[1] == "midnight" {
			return "00:00", ""
		}
		return "12:00", ""
	}

	return "", ""
}

// rangeClock resolves "3-5pm" style ranges. A start without a meridiem
// inherits the end's, unless that would put it after the end ("11-1pm").
func rangeClock(sh, sm, smer, eh, em, emer string) (string, string, bool) {
	if emer == "" && smer == "" {
		startHour, err1 := strconv.Atoi(sh)
		endHour, err2 := strconv.Atoi(eh)
		if err1 != nil || err2 != nil || startHour > 23 || endHour > 23 {
			return "", "", false
		}
		return clock(startHour, minutes(sm)), clock(endHour, minutes(em)), true
	}
	if emer == "" {
		emer = smer
	}

	endHour, ok := to24(eh, emer)
	if !ok {
		return "", "", false
	}

	startMer := smer
	if startMer == "" {
		startMer = emer
		h, _ := strconv.Atoi(sh)
		e, _ := strconv.Atoi(eh)
		if emer == "pm" && h%12 > e%12 {
			startMer = "am"
		}
	}
	startHour, ok := to24(sh, startMer)
	if !ok {
		return "", "", false
	}
	return clock(startHour, minutes(sm)), clock(endHour, minutes(em)), true
}

func to24(hour, meridiem string) (int, bool) {
	h, err := strconv.Atoi(hour)
	if err != nil || h < 1 || h > 12 {
		return 0, false
	}
	h %= 12
	if meridiem == "pm" {
		h += 12
	}
	return h, true
}

func minutes(s string) int {
	if s == "" {
		return 0
	}
	m, _ := strconv.Atoi(s)
	return m
}

func clock(hour, minute int) string {
	return fmt.Sprintf("%02d:%02d", hour, minute)
}

func formatDate(t time.Time) string {
	return t.Format("2006-01-02")
}

func group(msg string, m []int, n int) string {
	if m[2*n] < 0 {
		return ""
	}
	return msg[m[2*n]:m[2*n+1]]
}

func cut(msg string, start, end int) string {
	return msg[:start] + " " + msg[end:]
}
