package extractor_test

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailcal/internal/extractor"
	"mailcal/internal/models"
)

const googleInvite = "BEGIN:VCALENDAR\r\n" +
	"PRODID:-//Google Inc//Google Calendar 70.9054//EN\r\n" +
	"VERSION:2.0\r\n" +
	"METHOD:REQUEST\r\n" +
	"BEGIN:VEVENT\r\n" +
	"DTSTART;TZID=Europe/Berlin:20251020T150000\r\n" +
	"DTEND;TZID=Europe/Berlin:20251020T153000\r\n" +
	"DTSTAMP:20251017T090000Z\r\n" +
	"ORGANIZER;CN=Alice Example:mailto:Alice@Example.com\r\n" +
	"UID:7kukuqrfedlm2f9t0vgs5d9ih8@google.com\r\n" +
	"ATTENDEE;CUTYPE=INDIVIDUAL;ROLE=REQ-PARTICIPANT;PARTSTAT=ACCEPTED;RSVP=TRUE\r\n" +
	" ;CN=Bob;X-NUM-GUESTS=0:mailto:bob@example.com\r\n" +
	"ATTENDEE;CUTYPE=INDIVIDUAL;ROLE=REQ-PARTICIPANT;PARTSTAT=NEEDS-ACTION:mailto:\r\n" +
	" carol@example.org\r\n" +
	"DESCRIPTION:Join with Google Meet: https://meet.google.com/abc-defg-hij\\n\\nView\r\n" +
	"  your event at https://calendar.google.com/calendar/event?action=VIEW\r\n" +
	"LOCATION:\r\n" +
	"SUMMARY:Weekly sync\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func encode(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

func TestExtractNoCalendarAttachment(t *testing.T) {
	cases := []struct {
		name        string
		attachments []models.Attachment
	}{
		{name: "no attachments"},
		{
			name: "unrelated attachments",
			attachments: []models.Attachment{
				{ContentType: "application/pdf", Name: "agenda.pdf", Content: encode("%PDF")},
				{ContentType: "text/plain", Name: "notes.ics.txt", Content: encode("UID:x")},
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg := &models.InboundMessage{Subject: "hello", Attachments: tc.attachments}
			assert.Nil(t, extractor.Extract(msg))
		})
	}
}

func TestFindCalendarAttachment(t *testing.T) {
	cases := []struct {
		name        string
		attachments []models.Attachment
		wantName    string
	}{
		{
			name: "content type only",
			attachments: []models.Attachment{
				{ContentType: "application/pdf", Name: "a.pdf"},
				{ContentType: "Text/Calendar; method=REQUEST", Name: "invite"},
			},
			wantName: "invite",
		},
		{
			name: "filename only",
			attachments: []models.Attachment{
				{ContentType: "application/octet-stream", Name: "INVITE.ICS"},
			},
			wantName: "INVITE.ICS",
		},
		{
			name: "first qualifying wins",
			attachments: []models.Attachment{
				{ContentType: "text/calendar", Name: "first"},
				{ContentType: "text/calendar", Name: "second.ics"},
			},
			wantName: "first",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			att := extractor.FindCalendarAttachment(tc.attachments)
			require.NotNil(t, att)
			assert.Equal(t, tc.wantName, att.Name)
		})
	}
}

func TestExtractGoogleInvite(t *testing.T) {
	msg := &models.InboundMessage{
		To:      "meetings@example.net",
		Subject: "Invitation: Weekly sync",
		Attachments: []models.Attachment{
			{ContentType: "application/pdf", Name: "a.pdf", Content: encode("%PDF")},
			{ContentType: "text/calendar", Name: "invite.ics", Content: encode(googleInvite)},
		},
	}

	got := extractor.Extract(msg)
	require.NotNil(t, got)

	assert.Equal(t, &models.ExtractedEvent{
		UID:            "7kukuqrfedlm2f9t0vgs5d9ih8@google.com",
		StartTime:      "20251020T150000",
		EndTime:        "20251020T153000",
		MeetingURL:     "https://meet.google.com/abc-defg-hij",
		PlatformType:   models.PlatformGoogleMeet,
		OrganizerEmail: "alice@example.com",
		Attendees:      []string{"bob@example.com", "carol@example.org"},
		Subject:        "Invitation: Weekly sync",
	}, got)
}

func TestParseMeetingURLPriority(t *testing.T) {
	cases := []struct {
		name         string
		ics          string
		wantURL      string
		wantPlatform models.PlatformType
	}{
		{
			name:         "URL property beats provider links",
			ics:          "URL:https://example.com/join\nDESCRIPTION:https://us02web.zoom.us/j/123456789\n",
			wantURL:      "https://example.com/join",
			wantPlatform: models.PlatformUnknown,
		},
		{
			name:         "URL property must start with http",
			ics:          "URL:ftp://example.com/x\nDESCRIPTION:https://zoom.us/j/42\n",
			wantURL:      "https://zoom.us/j/42",
			wantPlatform: models.PlatformZoom,
		},
		{
			name:         "bare google meet link in location",
			ics:          "LOCATION:https://meet.google.com/abc-defg-hij\n",
			wantURL:      "https://meet.google.com/abc-defg-hij",
			wantPlatform: models.PlatformGoogleMeet,
		},
		{
			name:         "google meet preferred over earlier generic link",
			ics:          "DESCRIPTION:see https://calendar.google.com/event?x=1 or https://meet.google.com/xyz-abcd-efg\n",
			wantURL:      "https://meet.google.com/xyz-abcd-efg",
			wantPlatform: models.PlatformGoogleMeet,
		},
		{
			name:         "zoom with subdomain and query",
			ics:          "DESCRIPTION:Join https://us06web.zoom.us/j/8123456789?pwd=AbC123 now\n",
			wantURL:      "https://us06web.zoom.us/j/8123456789?pwd=AbC123",
			wantPlatform: models.PlatformZoom,
		},
		{
			name:         "zoom preferred over teams",
			ics:          "X-A:https://teams.microsoft.com/l/meetup-join/19%3ameeting\nX-B:https://zoom.us/j/1\n",
			wantURL:      "https://zoom.us/j/1",
			wantPlatform: models.PlatformZoom,
		},
		{
			name:         "teams join link",
			ics:          "DESCRIPTION:Click https://teams.microsoft.com/l/meetup-join/19%3ameeting_N2Q%40thread.v2/0?context=%7b%7d here\n",
			wantURL:      "https://teams.microsoft.com/l/meetup-join/19%3ameeting_N2Q%40thread.v2/0?context=%7b%7d",
			wantPlatform: models.PlatformMicrosoftTeams,
		},
		{
			name:         "case-insensitive provider match",
			ics:          "LOCATION:HTTPS://MEET.GOOGLE.COM/ABC-DEFG-HIJ\n",
			wantURL:      "HTTPS://MEET.GOOGLE.COM/ABC-DEFG-HIJ",
			wantPlatform: models.PlatformGoogleMeet,
		},
		{
			name:         "generic fallback",
			ics:          "DESCRIPTION:details at https://webex.example.com/m/1 thanks\n",
			wantURL:      "https://webex.example.com/m/1",
			wantPlatform: models.PlatformUnknown,
		},
		{
			name:         "no link",
			ics:          "SUMMARY:Lunch\nLOCATION:Cafe http://insecure.example.com\n",
			wantURL:      "",
			wantPlatform: "",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := extractor.Parse(tc.ics)
			assert.Equal(t, tc.wantURL, got.MeetingURL)
			assert.Equal(t, tc.wantPlatform, got.PlatformType)
		})
	}
}

func TestParseAttendeesCollapseCase(t *testing.T) {
	ics := "ATTENDEE;CN=A:mailto:A@X.com\n" +
		"attendee;ROLE=OPT-PARTICIPANT:MAILTO:a@x.com\n" +
		"ATTENDEE:mailto:  \n" +
		"ATTENDEE;RSVP=TRUE:mailto:b@x.com\n"

	got := extractor.Parse(ics)
	assert.Equal(t, []string{"a@x.com", "b@x.com"}, got.Attendees)
}

func TestParseMissingFields(t *testing.T) {
	got := extractor.Parse("BEGIN:VCALENDAR\nSUMMARY:nothing here\nEND:VCALENDAR\n")

	assert.Empty(t, got.UID)
	assert.Empty(t, got.StartTime)
	assert.Empty(t, got.EndTime)
	assert.Empty(t, got.MeetingURL)
	assert.Empty(t, got.PlatformType)
	assert.Empty(t, got.OrganizerEmail)
	assert.Empty(t, got.Attendees)
}

func TestParseAnchorsAtLineStart(t *testing.T) {
	ics := "X-ORIGINAL-UID:nope\nDESCRIPTION:UID:also-nope\nUID:yes\n" +
		"DTSTART:20250101T100000Z\nDTSTART:20990101T100000Z\n"

	got := extractor.Parse(ics)
	assert.Equal(t, "yes", got.UID)
	assert.Equal(t, "20250101T100000Z", got.StartTime)
}

func TestParseQuotedParameters(t *testing.T) {
	cases := []struct {
		name          string
		ics           string
		wantOrganizer string
		wantAttendees []string
		wantStart     string
	}{
		{
			name:          "sent-by with mailto",
			ics:           "ORGANIZER;SENT-BY=\"mailto:a@b.com\":mailto:c@d.com\n",
			wantOrganizer: "c@d.com",
		},
		{
			name:          "common name with colon",
			ics:           "ATTENDEE;CN=\"Doe: J\";RSVP=TRUE:mailto:J@x.com\n",
			wantAttendees: []string{"j@x.com"},
		},
		{
			name:          "delegated attendee",
			ics:           "ATTENDEE;DELEGATED-FROM=\"mailto:boss@x.com\":mailto:aide@x.com\n",
			wantAttendees: []string{"aide@x.com"},
		},
		{
			name:      "quoted time zone",
			ics:       "DTSTART;TZID=\"America/New_York: Eastern\":20251020T090000\n",
			wantStart: "20251020T090000",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := extractor.Parse(tc.ics)
			assert.Equal(t, tc.wantOrganizer, got.OrganizerEmail)
			assert.Equal(t, tc.wantAttendees, got.Attendees)
			assert.Equal(t, tc.wantStart, got.StartTime)
		})
	}
}

func TestExtractUnpaddedContent(t *testing.T) {
	// Each suffix leaves a different remainder so every partial quantum is covered.
	for _, suffix := range []string{"", "a", "ab"} {
		ics := "UID:u-1\nATTENDEE:mailto:last" + suffix + "@x.com"

		cases := map[string]string{
			"raw":         base64.RawStdEncoding.EncodeToString([]byte(ics)),
			"padded":      encode(ics),
			"wrapped":     wrap(encode(ics), 8),
			"wrapped raw": wrap(base64.RawStdEncoding.EncodeToString([]byte(ics)), 8),
		}
		for name, content := range cases {
			t.Run(name+"/"+suffix, func(t *testing.T) {
				got := extractor.Extract(&models.InboundMessage{
					Attachments: []models.Attachment{{ContentType: "text/calendar", Content: content}},
				})
				require.NotNil(t, got)
				assert.Equal(t, "u-1", got.UID)
				assert.Equal(t, []string{"last" + suffix + "@x.com"}, got.Attendees)
			})
		}
	}
}

func wrap(s string, width int) string {
	var b strings.Builder
	for len(s) > width {
		b.WriteString(s[:width])
		b.WriteString("\r\n")
		s = s[width:]
	}
	b.WriteString(s)
	return b.String()
}

func TestExtractCorruptContent(t *testing.T) {
	msg := &models.InboundMessage{
		Attachments: []models.Attachment{
			{ContentType: "text/calendar", Name: "invite.ics", Content: "!!!not base64!!!"},
		},
	}

	got := extractor.Extract(msg)
	require.NotNil(t, got)
	assert.Empty(t, got.UID)
	assert.Empty(t, got.Attendees)
}

func TestExtractEncodedCalendar(t *testing.T) {
	event := ical.NewEvent()
	event.Props.SetText(ical.PropUID, "enc-1")
	event.Props.SetDateTime(ical.PropDateTimeStamp, time.Date(2025, 10, 17, 9, 0, 0, 0, time.UTC))
	event.Props.SetDateTime(ical.PropDateTimeStart, time.Date(2025, 10, 20, 15, 0, 0, 0, time.UTC))
	event.Props.SetDateTime(ical.PropDateTimeEnd, time.Date(2025, 10, 20, 16, 0, 0, 0, time.UTC))

	organizer := ical.NewProp(ical.PropOrganizer)
	organizer.Value = "mailto:Host@Example.com"
	event.Props.Add(organizer)

	attendee := ical.NewProp(ical.PropAttendee)
	attendee.Params.Set(ical.ParamCommonName, "A Rather Long Display Name That Forces The Line Past Seventy Five Octets")
	attendee.Value = "mailto:guest@example.com"
	event.Props.Add(attendee)

	event.Props.SetText(ical.PropLocation, "https://zoom.us/j/99887766")

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//mailcal//test//EN")
	cal.Children = append(cal.Children, event.Component)

	var buf bytes.Buffer
	require.NoError(t, ical.NewEncoder(&buf).Encode(cal))

	got := extractor.Extract(&models.InboundMessage{
		Subject: "  Planning  ",
		Attachments: []models.Attachment{
			{ContentType: "application/ics", Name: "meeting.ics", Content: encode(buf.String())},
		},
	})
	require.NotNil(t, got)

	assert.Equal(t, "enc-1", got.UID)
	assert.True(t, strings.HasPrefix(got.StartTime, "20251020T150000"))
	assert.Equal(t, "https://zoom.us/j/99887766", got.MeetingURL)
	assert.Equal(t, models.PlatformZoom, got.PlatformType)
	assert.Equal(t, "host@example.com", got.OrganizerEmail)
	assert.Equal(t, []string{"guest@example.com"}, got.Attendees)
	assert.Equal(t, "Planning", got.Subject)
}

func TestDetectPlatform(t *testing.T) {
	assert.Equal(t, models.PlatformType(""), extractor.DetectPlatform(""))
	assert.Equal(t, models.PlatformMicrosoftTeams, extractor.DetectPlatform("https://Teams.Microsoft.com/x"))
	assert.Equal(t, models.PlatformUnknown, extractor.DetectPlatform("https://example.com"))
}
