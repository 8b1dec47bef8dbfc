package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"

	"essay-eval-orchestrator/internal/domain"
)

const DefaultCompletedSubject = "essay.evaluation.completed"

// EvaluationCompleted is the payload published after a successful evaluation.
type EvaluationCompleted struct {
	EvaluationID string                    `json:"evaluation_id"`
	LevelGroup   domain.LevelGroup         `json:"level_group"`
	WordCount    int                       `json:"word_count"`
	Scores       map[domain.RubricItem]int `json:"scores"`
	Total        int                       `json:"total"`
	CompletedAt  time.Time                 `json:"completed_at"`
}

type natsConn interface {
	Publish(subject string, data []byte) error
}

type NATSPublisher struct {
	conn    natsConn
	subject string
	now     func() time.Time
}

func NewNATSPublisher(conn *nats.Conn, subject string) *NATSPublisher {
	return newNATSPublisher(conn, subject)
}

func newNATSPublisher(conn natsConn, subject string) *NATSPublisher {
	if subject == "" {
		subject = DefaultCompletedSubject
	}
	return &NATSPublisher{conn: conn, subject: subject, now: time.Now}
}

func (p *NATSPublisher) PublishCompleted(_ context.Context, req domain.EvaluationRequest, outcome domain.Outcome) error {
	event := EvaluationCompleted{
		EvaluationID: outcome.EvaluationID,
		LevelGroup:   req.LevelGroup,
		WordCount:    outcome.WordCount,
		Scores:       make(map[domain.RubricItem]int, len(outcome.Results)),
		CompletedAt:  p.now().UTC(),
	}
	for _, r := range outcome.Results {
		event.Scores[r.RubricItem] = r.Score
		event.Total += r.Score
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.conn.Publish(p.subject, payload)
}
