package caldav

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"
	"github.com/google/uuid"

	"mailcal/internal/models"
)

// PropPlatform carries the detected join-link platform on mirrored events.
const PropPlatform = "X-MAILCAL-PLATFORM"

// customTransport handles adding Basic Auth and custom headers to requests.
type customTransport struct {
	Username  string
	Password  string
	Transport http.RoundTripper
}

// RoundTrip adds required headers and authentication to each request.
func (t *customTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.SetBasicAuth(t.Username, t.Password)
	req.Header.Set("User-Agent", "mailcal/1.0")
	return t.Transport.RoundTrip(req)
}

// Config locates the CalDAV calendar that mirrors extracted events.
type Config struct {
	Endpoint     string
	Username     string
	Password     string
	CalendarName string
}

// Configured reports whether the mirror should be enabled.
func (c Config) Configured() bool {
	return c.Endpoint != "" && c.CalendarName != ""
}

// Mirror writes extracted events into a CalDAV calendar.
type Mirror struct {
	caldavClient *caldav.Client
	webdavClient *webdav.Client
	logger       *slog.Logger
	calendarPath string
	now          func() time.Time
}

// NewMirror connects to the CalDAV server and resolves the configured calendar.
func NewMirror(ctx context.Context, logger *slog.Logger, cfg Config) (*Mirror, error) {
	transport := &customTransport{
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: http.DefaultTransport,
	}
	httpClient := &http.Client{Transport: transport}

	caldavClient, err := caldav.NewClient(httpClient, cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create caldav client: %w", err)
	}

	webdavClient, err := webdav.NewClient(httpClient, cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create webdav client: %w", err)
	}

	m := &Mirror{
		caldavClient: caldavClient,
		webdavClient: webdavClient,
		logger:       logger,
		now:          time.Now,
	}

	logger.Info("Finding CalDAV calendar", "calendarName", cfg.CalendarName)
	calendarPath, err := m.findCalendar(ctx, cfg.CalendarName)
	if err != nil {
		return nil, fmt.Errorf("could not find calendar '%s': %w", cfg.CalendarName, err)
	}
	m.calendarPath = calendarPath
	logger.Info("Successfully found CalDAV calendar", "path", calendarPath)

	return m, nil
}

// SyncEvent creates or replaces the mirrored copy of event.
func (m *Mirror) SyncEvent(ctx context.Context, event *models.ExtractedEvent) error {
	uid := event.UID
	if uid == "" {
		uid = GenerateUID()
		m.logger.Warn("Calendar event has no UID, generating a new one.", "uid", uid)
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//mailcal//EN")
	cal.Children = append(cal.Children, toICal(event, uid, m.now()))

	eventPath := path.Join(m.calendarPath, objectName(uid))

	writer, err := m.webdavClient.Create(ctx, eventPath)
	if err != nil {
		return fmt.Errorf("failed to create event on CalDAV server: %w", err)
	}

	if err := ical.NewEncoder(writer).Encode(cal); err != nil {
		writer.Close()
		return fmt.Errorf("failed to encode event to iCal format: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to upload event: %w", err)
	}

	m.logger.Info("Mirrored event to CalDAV", "uid", uid, "path", eventPath)
	return nil
}

// toICal converts an extracted event to a VEVENT. Date-times are copied verbatim.
func toICal(event *models.ExtractedEvent, uid string, now time.Time) *ical.Component {
	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, uid)
	ve.Props.SetDateTime(ical.PropDateTimeStamp, now.UTC())

	if event.Subject != "" {
		ve.Props.SetText(ical.PropSummary, event.Subject)
	}
	setRaw(ve, ical.PropDateTimeStart, event.StartTime)
	setRaw(ve, ical.PropDateTimeEnd, event.EndTime)
	setRaw(ve, ical.PropURL, event.MeetingURL)
	setRaw(ve, PropPlatform, string(event.PlatformType))

	if event.OrganizerEmail != "" {
		p := ical.NewProp(ical.PropOrganizer)
		p.Value = "mailto:" + event.OrganizerEmail
		ve.Props.Add(p)
	}
	for _, attendee := range event.Attendees {
		p := ical.NewProp(ical.PropAttendee)
		p.Value = "mailto:" + attendee
		ve.Props.Add(p)
	}
	return ve
}

func setRaw(c *ical.Component, name, value string) {
	if value == "" {
		return
	}
	p := ical.NewProp(name)
	p.Value = value
	c.Props.Set(p)
}

// objectName turns a UID into a safe calendar object file name.
func objectName(uid string) string {
	return strings.NewReplacer("/", "_", "\\", "_").Replace(uid) + ".ics"
}

// findCalendar discovers the user's calendars and returns the path of the one with the matching name.
func (m *Mirror) findCalendar(ctx context.Context, name string) (string, error) {
	principalPath, err := m.caldavClient.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to find principal path: %w", err)
	}

	homeSetPath, err := m.caldavClient.FindCalendarHomeSet(ctx, principalPath)
	if err != nil {
		return "", fmt.Errorf("failed to find calendar home set: %w", err)
	}

	calendars, err := m.caldavClient.FindCalendars(ctx, homeSetPath)
	if err != nil {
		return "", fmt.Errorf("failed to find calendars: %w", err)
	}

	for _, cal := range calendars {
		if cal.Name == name {
			return cal.Path, nil
		}
	}

	return "", fmt.Errorf("no calendar found with name '%s'", name)
}

// GenerateUID creates a new unique identifier for an event.
func GenerateUID() string {
	return uuid.New().String()
}
