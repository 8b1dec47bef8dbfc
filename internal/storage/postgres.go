package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	_ "github.com/lib/pq"

	"essay-eval-orchestrator/internal/domain"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate applies every embedded migration in file name order. Statements are idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		body, err := migrationFiles.ReadFile("migrations/" + name)
		if err != nil {
			return err
		}
		if _, err := s.db.ExecContext(ctx, string(body)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
	}
	return nil
}

func (s *PostgresStore) SaveEvaluation(ctx context.Context, rec domain.EvaluationRecord) error {
	var results any
	if len(rec.Results) > 0 {
		b, err := json.Marshal(rec.Results)
		if err != nil {
			return err
		}
		results = string(b)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO evaluations (id, level_group, topic_prompt, submit_text, status, word_count, results, error_type, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			word_count = EXCLUDED.word_count,
			results = EXCLUDED.results,
			error_type = EXCLUDED.error_type,
			error_message = EXCLUDED.error_message,
			updated_at = NOW()
	`, rec.ID, rec.Request.LevelGroup, rec.Request.TopicPrompt, rec.Request.SubmitText,
		rec.Status, rec.WordCount, results, rec.ErrorType, rec.ErrorMessage)
	return err
}

func (s *PostgresStore) InsertAudit(ctx context.Context, evaluationID string, stage domain.Stage, detail any) error {
	payload, err := encodeDetail(detail)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_log (evaluation_id, stage, detail)
		VALUES ($1, $2, $3::jsonb)
	`, evaluationID, stage, string(payload))
	return err
}

func (s *PostgresStore) GetEvaluation(ctx context.Context, id string) (domain.EvaluationRecord, error) {
	var rec domain.EvaluationRecord
	var results []byte
	var errorType, errorMessage sql.NullString
	row := s.db.QueryRowContext(ctx, `
		SELECT id, level_group, topic_prompt, submit_text, status, word_count, results, error_type, error_message
		FROM evaluations
		WHERE id = $1
	`, id)
	if err := row.Scan(
		&rec.ID,
		&rec.Request.LevelGroup,
		&rec.Request.TopicPrompt,
		&rec.Request.SubmitText,
		&rec.Status,
		&rec.WordCount,
		&results,
		&errorType,
		&errorMessage,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.EvaluationRecord{}, domain.ErrNotFound
		}
		return domain.EvaluationRecord{}, err
	}
	if len(results) > 0 {
		if err := json.Unmarshal(results, &rec.Results); err != nil {
			return domain.EvaluationRecord{}, fmt.Errorf("decode results: %w", err)
		}
	}
	if errorType.Valid {
		rec.ErrorType = &errorType.String
	}
	if errorMessage.Valid {
		rec.ErrorMessage = &errorMessage.String
	}
	history, err := s.ListAudit(ctx, id)
	if err != nil {
		return domain.EvaluationRecord{}, fmt.Errorf("list audit: %w", err)
	}
	rec.History = history
	return rec, nil
}

// ListAudit returns the stages recorded for an evaluation in insertion order.
func (s *PostgresStore) ListAudit(ctx context.Context, evaluationID string) ([]domain.Stage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT stage FROM audit_log WHERE evaluation_id = $1 ORDER BY id ASC
	`, evaluationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stages := make([]domain.Stage, 0)
	for rows.Next() {
		var stage domain.Stage
		if err := rows.Scan(&stage); err != nil {
			return nil, err
		}
		stages = append(stages, stage)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return stages, nil
}

func encodeDetail(detail any) ([]byte, error) {
	switch v := detail.(type) {
	case nil:
		return []byte("{}"), nil
	case []byte:
		return v, nil
	default:
		return json.Marshal(v)
	}
}
