package models

// Attachment is a single file carried by an inbound email.
type Attachment struct {
	ContentType string `json:"ContentType"`
	Name        string `json:"Name"`
	Content     string `json:"Content"` // base64
}

// InboundMessage is the subset of the inbound email webhook payload this service reads.
type InboundMessage struct {
	From        string       `json:"From"`
	To          string       `json:"To"`
	Subject     string       `json:"Subject"`
	MessageID   string       `json:"MessageID"`
	Attachments []Attachment `json:"Attachments"`
}

// PlatformType identifies the video platform behind a join link.
// The empty value means no join link was found.
type PlatformType string

const (
	PlatformGoogleMeet     PlatformType = "google_meet"
	PlatformZoom           PlatformType = "zoom"
	PlatformMicrosoftTeams PlatformType = "microsoft_teams"
	PlatformUnknown        PlatformType = "unknown"
)

// ExtractedEvent holds the scheduling facts pulled out of a calendar attachment.
// Empty strings stand for values that were not present in the source.
type ExtractedEvent struct {
	UID            string       `json:"uid"`
	StartTime      string       `json:"startTime"` // raw, as found in the source
	EndTime        string       `json:"endTime"`
	MeetingURL     string       `json:"meetingUrl"`
	PlatformType   PlatformType `json:"platformType"`
	OrganizerEmail string       `json:"organizerEmail"`
	Attendees      []string     `json:"attendees"` // lower-cased, unique, discovery order
	Subject        string       `json:"subject"`
}
