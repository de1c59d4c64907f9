package models

// Entity names in the remote entity store.
const (
	EntityMeeting      = "Meeting"
	EntityGuest        = "Guest"
	EntityMeetingGuest = "MeetingGuest"
)

// Meeting fields.
const (
	FieldCalendarEventUID     = "calendarEventUid"
	FieldStartTime            = "startTime"
	FieldEndTime              = "endTime"
	FieldMeetingURL           = "meetingUrl"
	FieldOrganizerEmail       = "organizerEmail"
	FieldTitle                = "title"
	FieldPlatformType         = "platformType"
	FieldSourceType           = "sourceType"
	FieldLastCalendarUpdateAt = "lastCalendarUpdateAt"
)

// Guest and MeetingGuest fields.
const (
	FieldEmail      = "email"
	FieldMeetingID  = "meetingId"
	FieldGuestID    = "guestId"
	FieldGuestEmail = "guestEmail"
)

// SourceEmailICS marks meetings that were learned from a calendar attachment in an email.
const SourceEmailICS = "email_ics"
