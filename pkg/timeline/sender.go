package timeline

import "context"

// SendFunc performs the server round trip
type SendFunc func(ctx context.Context, d Draft) (*Ack, error)

// Sender drives a Timeline through send, ack, failure and retry
type Sender struct {
	timeline *Timeline
	send     SendFunc
}

// NewSender creates a Sender
func NewSender(tl *Timeline, send SendFunc) *Sender {
	return &Sender{timeline: tl, send: send}
}

// Send adds a pending entry and resolves it with the round trip result
func (s *Sender) Send(ctx context.Context, d Draft) (Entry, error) {
	if _, err := s.timeline.Add(d); err != nil {
		return Entry{}, err
	}
	return s.roundTrip(ctx, d)
}

// Resend retries a failed entry with its original client id
func (s *Sender) Resend(ctx context.Context, sender, clientID string) (Entry, error) {
	d, err := s.timeline.Retry(sender, clientID)
	if err != nil {
		return Entry{}, err
	}
	return s.roundTrip(ctx, d)
}

func (s *Sender) roundTrip(ctx context.Context, d Draft) (Entry, error) {
	v, err := s.send(ctx, d)
	if err != nil {
		e, ferr := s.timeline.Fail(d.SenderActorID, d.ClientID, err)
		if ferr != nil {
			return Entry{}, ferr
		}
		return e, err
	}
	return s.timeline.Confirm(v), nil
}
