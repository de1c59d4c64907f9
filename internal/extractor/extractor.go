// Package extractor pulls scheduling metadata out of the calendar attachment of an inbound email.
package extractor

import (
	"encoding/base64"
	"regexp"
	"strings"

	"mailcal/internal/models"
)

// paramBlock matches ";NAME=value" parameters; quoted values may contain colons.
const paramBlock = `(?:;(?:"[^"]*"|[^:"\r\n])*)?`

var (
	uidRe       = regexp.MustCompile(`(?m)^UID:(.*)$`)
	dtStartRe   = regexp.MustCompile(`(?m)^DTSTART` + paramBlock + `:(.*)$`)
	dtEndRe     = regexp.MustCompile(`(?m)^DTEND` + paramBlock + `:(.*)$`)
	urlPropRe   = regexp.MustCompile(`(?m)^URL:(http.*)$`)
	organizerRe = regexp.MustCompile(`(?m)^ORGANIZER` + paramBlock + `:mailto:(.*)$`)
	attendeeRe  = regexp.MustCompile(`(?mi)^ATTENDEE` + paramBlock + `:mailto:(.*)$`)

	// Join-link patterns, tried in order after the URL property.
	joinLinkRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)https://meet\.google\.com/[a-z0-9-]+`),
		regexp.MustCompile(`(?i)https://(?:[a-z0-9-]+\.)?zoom\.us/j/\d+(?:\?\S*)?`),
		regexp.MustCompile(`(?i)https://teams\.microsoft\.com/l/meetup-join/\S+`),
		regexp.MustCompile(`(?i)https://\S+`),
	}

	foldRe = regexp.MustCompile(`\r?\n[ \t]`)
)

// Extract locates the calendar attachment of msg and derives an ExtractedEvent from it.
// It returns nil when no attachment looks like a calendar payload.
func Extract(msg *models.InboundMessage) *models.ExtractedEvent {
	att := FindCalendarAttachment(msg.Attachments)
	if att == nil {
		return nil
	}
	event := Parse(decode(att.Content))
	event.Subject = strings.TrimSpace(msg.Subject)
	return event
}

// FindCalendarAttachment returns the first attachment declared as text/calendar or named *.ics.
func FindCalendarAttachment(attachments []models.Attachment) *models.Attachment {
	for i := range attachments {
		a := &attachments[i]
		if strings.Contains(strings.ToLower(a.ContentType), "text/calendar") ||
			strings.HasSuffix(strings.ToLower(a.Name), ".ics") {
			return a
		}
	}
	return nil
}

// decode is best effort: padding is optional, whatever bytes decode before an
// error are kept, and invalid UTF-8 simply fails to match later.
func decode(content string) string {
	content = strings.TrimRight(strings.Join(strings.Fields(content), ""), "=")
	buf := make([]byte, base64.RawStdEncoding.DecodedLen(len(content)))
	n, _ := base64.RawStdEncoding.Decode(buf, []byte(content))
	return string(buf[:n])
}

// Parse applies the field heuristics to raw ICS text.
func Parse(ics string) *models.ExtractedEvent {
	ics = unfold(ics)
	event := &models.ExtractedEvent{
		UID:            firstGroup(uidRe, ics),
		StartTime:      firstGroup(dtStartRe, ics),
		EndTime:        firstGroup(dtEndRe, ics),
		MeetingURL:     findMeetingURL(ics),
		OrganizerEmail: strings.ToLower(firstGroup(organizerRe, ics)),
		Attendees:      findAttendees(ics),
	}
	event.PlatformType = DetectPlatform(event.MeetingURL)
	return event
}

// unfold joins RFC 5545 continuation lines onto the line they continue.
func unfold(ics string) string {
	return foldRe.ReplaceAllString(ics, "")
}

func firstGroup(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

func findMeetingURL(ics string) string {
	if u := firstGroup(urlPropRe, ics); u != "" {
		return u
	}
	for _, re := range joinLinkRes {
		if u := re.FindString(ics); u != "" {
			return strings.TrimSpace(u)
		}
	}
	return ""
}

// DetectPlatform classifies a join link. An empty link has no platform.
func DetectPlatform(meetingURL string) models.PlatformType {
	if meetingURL == "" {
		return ""
	}
	u := strings.ToLower(meetingURL)
	switch {
	case strings.Contains(u, "meet.google.com"):
		return models.PlatformGoogleMeet
	case strings.Contains(u, "zoom.us"):
		return models.PlatformZoom
	case strings.Contains(u, "teams.microsoft.com"):
		return models.PlatformMicrosoftTeams
	default:
		return models.PlatformUnknown
	}
}

func findAttendees(ics string) []string {
	var attendees []string
	seen := make(map[string]bool)
	for _, m := range attendeeRe.FindAllStringSubmatch(ics, -1) {
		email := strings.ToLower(strings.TrimSpace(m[1]))
		if email == "" || seen[email] {
			continue
		}
		seen[email] = true
		attendees = append(attendees, email)
	}
	return attendees
}
