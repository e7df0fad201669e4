package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/okian/medixpert/internal/domain/catalog"
	"github.com/okian/medixpert/internal/domain/model"
)

const predictionColumns = `id, user_id, COALESCE(request_id, ''), symptoms, disease, severity, confidence,
	method, additional_symptoms, notes, created_at`

// SavePrediction inserts a prediction record. A repeated request id for the
// same user fails with ErrDuplicate.
func (s *Store) SavePrediction(ctx context.Context, p model.Prediction) error {
	symptoms, err := json.Marshal(p.Symptoms)
	if err != nil {
		return fmt.Errorf("encode symptoms: %w", err)
	}
	var requestID any
	if p.RequestID != "" {
		requestID = p.RequestID
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO predictions (id, user_id, request_id, symptoms, disease, severity, confidence,
			method, additional_symptoms, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.UserID, requestID, string(symptoms), p.Disease, string(p.Severity), p.Confidence,
		string(p.Method), p.AdditionalSymptoms, p.Notes, p.CreatedAt.UnixNano())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: prediction %s", ErrDuplicate, p.ID)
		}
		return fmt.Errorf("insert prediction: %w", err)
	}
	return nil
}

// GetPrediction returns a prediction by id.
func (s *Store) GetPrediction(ctx context.Context, id string) (model.Prediction, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+predictionColumns+` FROM predictions WHERE id = ?`, id)
	p, err := scanPrediction(row)
	if err != nil {
		if isNoRows(err) {
			return model.Prediction{}, fmt.Errorf("%w: prediction %s", ErrNotFound, id)
		}
		return model.Prediction{}, err
	}
	return p, nil
}

// GetPredictionByRequest returns the prediction a user recorded under a
// request id.
func (s *Store) GetPredictionByRequest(ctx context.Context, userID, requestID string) (model.Prediction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+predictionColumns+` FROM predictions WHERE user_id = ? AND request_id = ?`, userID, requestID)
	p, err := scanPrediction(row)
	if err != nil {
		if isNoRows(err) {
			return model.Prediction{}, fmt.Errorf("%w: request %s", ErrNotFound, requestID)
		}
		return model.Prediction{}, err
	}
	return p, nil
}

// ListPredictions returns a user's predictions newest first.
func (s *Store) ListPredictions(ctx context.Context, userID string, limit int) ([]model.Prediction, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+predictionColumns+` FROM predictions
		WHERE user_id = ? ORDER BY created_at DESC, seq DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query predictions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []model.Prediction{}
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CountPredictions returns the number of stored predictions.
func (s *Store) CountPredictions(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM predictions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count predictions: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPrediction(sc scanner) (model.Prediction, error) {
	var (
		p        model.Prediction
		symptoms string
		severity string
		method   string
		created  int64
	)
	err := sc.Scan(&p.ID, &p.UserID, &p.RequestID, &symptoms, &p.Disease, &severity, &p.Confidence,
		&method, &p.AdditionalSymptoms, &p.Notes, &created)
	if err != nil {
		if isNoRows(err) {
			return p, err
		}
		return p, fmt.Errorf("scan prediction: %w", err)
	}
	if err := json.Unmarshal([]byte(symptoms), &p.Symptoms); err != nil {
		return p, fmt.Errorf("decode symptoms of %s: %w", p.ID, err)
	}
	p.Severity = catalog.Severity(severity)
	p.Method = model.Method(method)
	p.CreatedAt = time.Unix(0, created).UTC()
	return p, nil
}
