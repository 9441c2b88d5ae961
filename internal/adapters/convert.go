package adapters

import (
	"time"

	"github.com/example/meeting-checkin/internal/application"
	"github.com/example/meeting-checkin/internal/persistence"
	"github.com/example/meeting-checkin/internal/scheduler"
)

func toApplicationUser(model persistence.User) application.User {
	return application.User{
		ID:          model.ID,
		Email:       model.Email,
		DisplayName: model.DisplayName,
		ExternalID:  model.ExternalID,
		IsAdmin:     model.IsAdmin,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

func toPersistenceUser(user application.User, passwordHash string) persistence.User {
	return persistence.User{
		ID:           user.ID,
		Email:        user.Email,
		DisplayName:  user.DisplayName,
		ExternalID:   user.ExternalID,
		PasswordHash: passwordHash,
		IsAdmin:      user.IsAdmin,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}
}

func toApplicationRoom(model persistence.Room) application.Room {
	return application.Room{
		ID:         model.ID,
		Name:       model.Name,
		Location:   model.Location,
		Capacity:   model.Capacity,
		Facilities: cloneString(model.Facilities),
		CreatedAt:  model.CreatedAt,
		UpdatedAt:  model.UpdatedAt,
	}
}

func toPersistenceRoom(room application.Room) persistence.Room {
	return persistence.Room{
		ID:         room.ID,
		Name:       room.Name,
		Location:   room.Location,
		Capacity:   room.Capacity,
		Facilities: cloneString(room.Facilities),
		CreatedAt:  room.CreatedAt,
		UpdatedAt:  room.UpdatedAt,
	}
}

func toApplicationMeeting(model persistence.Meeting) application.Meeting {
	m := application.Meeting{
		ID:                    model.ID,
		Title:                 model.Title,
		Description:           model.Description,
		RoomID:                model.RoomID,
		OrganizerID:           model.OrganizerID,
		Date:                  scheduler.Date(model.Date),
		StartTime:             scheduler.TimeOfDay(model.StartTime),
		EndTime:               scheduler.TimeOfDay(model.EndTime),
		Status:                scheduler.Status(model.Status),
		CheckinTokenExpiresAt: cloneTime(model.CheckinTokenExpiresAt),
		CreatedAt:             model.CreatedAt,
		UpdatedAt:             model.UpdatedAt,
	}
	if model.CheckinToken != nil {
		m.CheckinToken = *model.CheckinToken
	}
	if len(model.Participants) > 0 {
		m.Participants = make([]application.Participant, 0, len(model.Participants))
		for _, p := range model.Participants {
			participant := application.Participant{
				ID:               p.ID,
				MeetingID:        p.MeetingID,
				UserID:           p.UserID,
				Role:             scheduler.Role(p.Role),
				AttendanceStatus: scheduler.Attendance(p.AttendanceStatus),
			}
			if p.CheckInTime != nil {
				t := scheduler.TimeOfDay(*p.CheckInTime)
				participant.CheckInTime = &t
			}
			m.Participants = append(m.Participants, participant)
		}
	}
	return m
}

func toPersistenceMeeting(meeting application.Meeting) persistence.Meeting {
	m := persistence.Meeting{
		ID:                    meeting.ID,
		Title:                 meeting.Title,
		Description:           meeting.Description,
		RoomID:                meeting.RoomID,
		OrganizerID:           meeting.OrganizerID,
		Date:                  string(meeting.Date),
		StartTime:             int(meeting.StartTime),
		EndTime:               int(meeting.EndTime),
		Status:                string(meeting.Status),
		CheckinTokenExpiresAt: cloneTime(meeting.CheckinTokenExpiresAt),
		CreatedAt:             meeting.CreatedAt,
		UpdatedAt:             meeting.UpdatedAt,
	}
	if meeting.CheckinToken != "" {
		token := meeting.CheckinToken
		m.CheckinToken = &token
	}
	m.Participants = make([]persistence.Participant, 0, len(meeting.Participants))
	for i, p := range meeting.Participants {
		participant := persistence.Participant{
			ID:               p.ID,
			MeetingID:        meeting.ID,
			UserID:           p.UserID,
			Role:             string(p.Role),
			AttendanceStatus: string(p.AttendanceStatus),
			Position:         i,
		}
		if p.CheckInTime != nil {
			secs := int(*p.CheckInTime)
			participant.CheckInTime = &secs
		}
		m.Participants = append(m.Participants, participant)
	}
	return m
}

func statusStrings(statuses []scheduler.Status) []string {
	if len(statuses) == 0 {
		return nil
	}
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func toApplicationSession(model persistence.Session) application.Session {
	return application.Session{
		ID:          model.ID,
		UserID:      model.UserID,
		Token:       model.Token,
		Fingerprint: model.Fingerprint,
		ExpiresAt:   model.ExpiresAt,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
		RevokedAt:   cloneTime(model.RevokedAt),
	}
}

func toPersistenceSession(session application.Session) persistence.Session {
	return persistence.Session{
		ID:          session.ID,
		UserID:      session.UserID,
		Token:       session.Token,
		Fingerprint: session.Fingerprint,
		ExpiresAt:   session.ExpiresAt,
		CreatedAt:   session.CreatedAt,
		UpdatedAt:   session.UpdatedAt,
		RevokedAt:   cloneTime(session.RevokedAt),
	}
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}
