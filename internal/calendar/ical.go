// Package calendar builds the weekly shift calendar and imports one-off
// events from iCal feeds.
package calendar

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shift-reminder/backend/internal/storage/models"
)

// ImportedEvent is a VEVENT read from an iCal feed.
type ImportedEvent struct {
	UID      string
	Summary  string
	Location string
	Start    time.Time
	// Floating is set when DTSTART carries no zone and is wall-clock time.
	Floating bool
	// AllDay is set when DTSTART is a bare date.
	AllDay bool
}

// Parser parses iCal/ICS calendar feeds.
type Parser struct {
	httpClient *http.Client
}

// NewParser creates a new iCal parser.
func NewParser() *Parser {
	return &Parser{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// FetchAndParse downloads and parses an iCal feed from a URL.
func (p *Parser) FetchAndParse(ctx context.Context, url string) ([]ImportedEvent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching calendar: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("calendar returned status %d", resp.StatusCode)
	}

	return p.Parse(resp.Body)
}

// Parse reads and parses iCal data from a reader. Events without a summary
// or a readable DTSTART are skipped.
func (p *Parser) Parse(r io.Reader) ([]ImportedEvent, error) {
	var events []ImportedEvent
	var current *ImportedEvent
	var currentField, currentParams string
	var value strings.Builder

	flush := func() {
		if currentField != "" && current != nil {
			p.setEventField(current, currentField, currentParams, value.String())
		}
		currentField, currentParams = "", ""
		value.Reset()
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")

		// Folded lines continue the previous property
		if strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t") {
			if currentField != "" {
				value.WriteString(line[1:])
			}
			continue
		}
		flush()

		colonIdx := strings.Index(line, ":")
		if colonIdx == -1 {
			continue
		}
		field, params := line[:colonIdx], ""
		if semicolonIdx := strings.Index(field, ";"); semicolonIdx != -1 {
			field, params = field[:semicolonIdx], field[semicolonIdx+1:]
		}
		val := line[colonIdx+1:]

		switch field {
		case "BEGIN":
			if val == "VEVENT" {
				current = &ImportedEvent{}
			}
		case "END":
			if val == "VEVENT" && current != nil {
				if current.Summary != "" && !current.Start.IsZero() {
					events = append(events, *current)
				}
				current = nil
			}
		case "UID", "SUMMARY", "LOCATION", "DTSTART":
			if current != nil {
				currentField, currentParams = field, params
				value.WriteString(val)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading calendar: %w", err)
	}
	return events, nil
}

// setEventField sets a field on an ImportedEvent.
func (p *Parser) setEventField(event *ImportedEvent, field, params, value string) {
	value = unescape(value)

	switch field {
	case "UID":
		event.UID = value
	case "SUMMARY":
		event.Summary = strings.TrimSpace(value)
	case "LOCATION":
		event.Location = strings.TrimSpace(value)
	case "DTSTART":
		p.parseStart(event, params, value)
	}
}

func unescape(value string) string {
	return strings.NewReplacer(`\n`, "\n", `\N`, "\n", `\,`, ",", `\;`, ";", `\\`, `\`).Replace(value)
}

// parseStart handles UTC, TZID-qualified, floating and date-only starts.
func (p *Parser) parseStart(event *ImportedEvent, params, value string) {
	loc := time.UTC
	for _, param := range strings.Split(params, ";") {
		if name, ok := strings.CutPrefix(param, "TZID="); ok {
			if l, err := time.LoadLocation(strings.Trim(name, `"`)); err == nil {
				loc = l
			}
		}
	}

	if t, err := time.Parse("20060102T150405Z", value); err == nil {
		event.Start = t
		return
	}
	if t, err := time.ParseInLocation("20060102T150405", value, loc); err == nil {
		event.Start = t
		event.Floating = !strings.Contains(params, "TZID=")
		return
	}
	if t, err := time.Parse("20060102", value); err == nil {
		event.Start = t
		event.AllDay = true
	}
}

// ToEvent converts an imported entry into a stored event for userID. Zoned
// starts are converted to loc; floating starts keep their wall-clock time.
func (e ImportedEvent) ToEvent(userID int64, loc *time.Location, leadSpec *string) models.Event {
	start := e.Start
	if !e.Floating && !e.AllDay {
		start = start.In(loc)
	}
	y, m, d := start.Date()
	naive := time.Date(y, m, d, start.Hour(), start.Minute(), start.Second(), 0, time.UTC)

	ev := models.Event{UserID: userID, Title: e.Summary, StartsAt: naive, LeadSpec: leadSpec}
	if e.Location != "" {
		loc := e.Location
		ev.Location = &loc
	}
	return ev
}

// FilterUpcoming keeps timed events that start after now. All-day entries
// have no clock time to remind against and are dropped.
func FilterUpcoming(events []ImportedEvent, now time.Time, loc *time.Location) []ImportedEvent {
	var upcoming []ImportedEvent
	for _, e := range events {
		if e.AllDay {
			continue
		}
		start := e.Start
		if e.Floating {
			y, m, d := start.Date()
			start = time.Date(y, m, d, start.Hour(), start.Minute(), start.Second(), 0, loc)
		}
		if start.After(now) {
			upcoming = append(upcoming, e)
		}
	}
	return upcoming
}
