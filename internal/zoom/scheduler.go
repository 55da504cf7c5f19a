package zoom

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const meetingDurationMinutes = 60

// MeetingInfo is everything the pipeline needs to confirm an interview.
type MeetingInfo struct {
	StartsAt  time.Time
	Date      string
	Time      string
	JoinURL   string
	StartURL  string
	MeetingID int64
}

// Scheduler computes the interview slot in its reference timezone and creates
// the meeting. One scheduler serves one session; its client's cached token is
// never shared across sessions.
type Scheduler struct {
	client   *Client
	location *time.Location
	logger   *zap.Logger

	// now is swappable in tests.
	now func() time.Time
}

func NewScheduler(client *Client, location *time.Location, logger *zap.Logger) *Scheduler {
	if location == nil {
		location = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Scheduler{
		client:   client,
		location: location,
		logger:   logger,
		now:      time.Now,
	}
}

// Schedule books a one-hour technical interview for the next eligible slot.
func (s *Scheduler) Schedule(ctx context.Context, roleTitle string) (*MeetingInfo, error) {
	slot := NextSlot(s.now(), s.location)

	meeting, err := s.client.CreateMeeting(ctx, MeetingRequest{
		Topic:     fmt.Sprintf("%s Technical Interview", roleTitle),
		StartTime: slot,
		Duration:  meetingDurationMinutes,
		Timezone:  s.location.String(),
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("interview scheduled",
		zap.String("role", roleTitle),
		zap.String("start", slot.Format(time.RFC3339)),
		zap.Int64("meeting_id", meeting.MeetingID),
	)

	return &MeetingInfo{
		StartsAt:  slot,
		Date:      slot.Format("2006-01-02"),
		Time:      slot.Format("15:04"),
		JoinURL:   meeting.JoinURL,
		StartURL:  meeting.StartURL,
		MeetingID: meeting.MeetingID,
	}, nil
}
