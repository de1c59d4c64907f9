package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mailcal/internal/models"
	"mailcal/internal/store"
)

// Reconciler writes an extracted event into the entity store as one Meeting,
// its Guests and the links between them.
//
// Writes are sequential. The link check looks for any link on the meeting
// rather than the (meeting, guest) pair, so attendees added to a meeting that
// already has a link are not linked. Running attendees concurrently would only
// be safe once the store enforces pair uniqueness.
type Reconciler struct {
	logger *slog.Logger
	store  store.Store
	now    func() time.Time
}

// NewReconciler creates a new Reconciler.
func NewReconciler(logger *slog.Logger, st store.Store) *Reconciler {
	return &Reconciler{logger: logger, store: st, now: time.Now}
}

// Reconcile upserts the meeting, then each attendee as a guest with a link to it.
// It returns an error only when it had to stop early: no meeting id, or no store configuration.
func (r *Reconciler) Reconcile(ctx context.Context, event *models.ExtractedEvent, recipients string) error {
	logger := r.logger.With("uid", event.UID)
	logger.Info("Reconciling calendar event.", "recipients", recipients, "attendees", len(event.Attendees))

	meetingID, err := r.upsertMeeting(ctx, logger, event)
	if err != nil {
		return err
	}

	for _, email := range event.Attendees {
		if err := r.syncAttendee(ctx, logger, meetingID, email); err != nil {
			return err
		}
	}

	logger.Info("Calendar event reconciled.", "meetingID", meetingID)
	return nil
}

func (r *Reconciler) upsertMeeting(ctx context.Context, logger *slog.Logger, event *models.ExtractedEvent) (string, error) {
	fields := meetingFields(event, r.now())

	var existing store.Record
	if event.UID != "" {
		rec, err := r.store.Find(ctx, models.EntityMeeting, models.FieldCalendarEventUID, event.UID)
		if err != nil {
			if errors.Is(err, store.ErrNotConfigured) {
				return "", err
			}
			logger.Warn("Meeting lookup failed, treating as new.", "error", err)
		}
		existing = rec
	} else {
		logger.Warn("Calendar event has no UID, creating a new meeting.")
	}

	if id := existing.ID(); id != "" {
		rec, err := r.store.Update(ctx, models.EntityMeeting, id, fields)
		if err != nil {
			return "", fmt.Errorf("failed to update meeting %s: %w", id, err)
		}
		if updatedID := rec.ID(); updatedID != "" {
			id = updatedID
		}
		logger.Info("Updated meeting.", "meetingID", id)
		return id, nil
	}

	rec, err := r.store.Create(ctx, models.EntityMeeting, fields)
	if err != nil {
		return "", fmt.Errorf("failed to create meeting: %w", err)
	}
	id := rec.ID()
	if id == "" {
		return "", errors.New("meeting create returned no id")
	}
	logger.Info("Created meeting.", "meetingID", id)
	return id, nil
}

// syncAttendee finds or creates the guest and links it to the meeting.
// Only a configuration error is returned; anything else skips this attendee.
func (r *Reconciler) syncAttendee(ctx context.Context, logger *slog.Logger, meetingID, email string) error {
	logger = logger.With("email", email)

	guest, err := r.store.Find(ctx, models.EntityGuest, models.FieldEmail, email)
	if err != nil {
		if errors.Is(err, store.ErrNotConfigured) {
			return err
		}
		logger.Warn("Guest lookup failed, treating as new.", "error", err)
	}
	guestID := guest.ID()
	if guestID == "" {
		rec, err := r.store.Create(ctx, models.EntityGuest, store.Fields{models.FieldEmail: email})
		if errors.Is(err, store.ErrNotConfigured) {
			return err
		}
		if guestID = rec.ID(); guestID == "" {
			logger.Error("Failed to create guest, skipping attendee.", "error", err)
			return nil
		}
		logger.Debug("Created guest.", "guestID", guestID)
	}

	link, err := r.store.Find(ctx, models.EntityMeetingGuest, models.FieldMeetingID, meetingID)
	if err != nil {
		if errors.Is(err, store.ErrNotConfigured) {
			return err
		}
		logger.Warn("Meeting guest lookup failed, treating as new.", "error", err)
	}
	if link != nil {
		logger.Debug("Meeting already has a guest link, skipping.", "meetingID", meetingID)
		return nil
	}

	_, err = r.store.Create(ctx, models.EntityMeetingGuest, store.Fields{
		models.FieldMeetingID:  meetingID,
		models.FieldGuestID:    guestID,
		models.FieldGuestEmail: email,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotConfigured) {
			return err
		}
		logger.Error("Failed to link guest to meeting.", "error", err)
	}
	return nil
}

func meetingFields(event *models.ExtractedEvent, now time.Time) store.Fields {
	return store.Fields{
		models.FieldCalendarEventUID:     nullable(event.UID),
		models.FieldStartTime:            nullable(event.StartTime),
		models.FieldEndTime:              nullable(event.EndTime),
		models.FieldMeetingURL:           nullable(event.MeetingURL),
		models.FieldOrganizerEmail:       nullable(event.OrganizerEmail),
		models.FieldTitle:                nullable(event.Subject),
		models.FieldPlatformType:         nullable(string(event.PlatformType)),
		models.FieldSourceType:           models.SourceEmailICS,
		models.FieldLastCalendarUpdateAt: now.UTC().Format(time.RFC3339),
	}
}

// nullable maps absent values to JSON null so updates overwrite them.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
