package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"essay-eval-orchestrator/internal/domain"
)

type recordingConn struct {
	subject string
	data    []byte
	err     error
}

func (c *recordingConn) Publish(subject string, data []byte) error {
	c.subject = subject
	c.data = data
	return c.err
}

func TestNATSPublisherPublishesScores(t *testing.T) {
	conn := &recordingConn{}
	pub := newNATSPublisher(conn, "")
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	pub.now = func() time.Time { return fixed }

	outcome := domain.Outcome{
		EvaluationID: "eval-1",
		Stage:        domain.StageDone,
		WordCount:    42,
		Results: []domain.EvaluationResult{
			{RubricItem: domain.RubricIntroduction, Score: 2},
			{RubricItem: domain.RubricBody, Score: 1},
			{RubricItem: domain.RubricConclusion, Score: 1},
			{RubricItem: domain.RubricGrammar, Score: 2},
		},
	}
	require.NoError(t, pub.PublishCompleted(context.Background(), domain.NewEvaluationRequest("Advanced", "t", "x"), outcome))
	require.Equal(t, DefaultCompletedSubject, conn.subject)

	var event EvaluationCompleted
	require.NoError(t, json.Unmarshal(conn.data, &event))
	require.Equal(t, "eval-1", event.EvaluationID)
	require.Equal(t, domain.LevelAdvanced, event.LevelGroup)
	require.Equal(t, 6, event.Total)
	require.Equal(t, 1, event.Scores[domain.RubricBody])
	require.True(t, fixed.Equal(event.CompletedAt))
}

func TestNATSPublisherReturnsConnError(t *testing.T) {
	conn := &recordingConn{err: errors.New("nats: connection closed")}
	pub := newNATSPublisher(conn, "custom.subject")

	err := pub.PublishCompleted(context.Background(), domain.NewEvaluationRequest("basic", "t", "x"), domain.Outcome{})
	require.Error(t, err)
	require.Equal(t, "custom.subject", conn.subject)
}
