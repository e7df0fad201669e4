package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/okian/medixpert/internal/domain/catalog"
)

// ListSymptoms returns symptoms in insertion order.
func (s *Store) ListSymptoms(ctx context.Context) ([]catalog.Symptom, error) {
	return listSymptoms(ctx, s.db)
}

// ListDiseases returns diseases in insertion order with their symptom names.
func (s *Store) ListDiseases(ctx context.Context) ([]catalog.Disease, error) {
	return listDiseases(ctx, s.db)
}

// Snapshot reads symptoms and diseases inside one read transaction.
func (s *Store) Snapshot(ctx context.Context) (catalog.Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return catalog.Snapshot{}, fmt.Errorf("begin snapshot: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	symptoms, err := listSymptoms(ctx, tx)
	if err != nil {
		return catalog.Snapshot{}, err
	}
	diseases, err := listDiseases(ctx, tx)
	if err != nil {
		return catalog.Snapshot{}, err
	}
	return catalog.NewSnapshot(symptoms, diseases), nil
}

func listSymptoms(ctx context.Context, q querier) ([]catalog.Symptom, error) {
	rows, err := q.QueryContext(ctx, `SELECT name, description FROM symptoms ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query symptoms: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []catalog.Symptom
	for rows.Next() {
		var sym catalog.Symptom
		if err := rows.Scan(&sym.Name, &sym.Description); err != nil {
			return nil, fmt.Errorf("scan symptom: %w", err)
		}
		out = append(out, sym)
	}
	return out, rows.Err()
}

func listDiseases(ctx context.Context, q querier) ([]catalog.Disease, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, name, description, severity FROM diseases ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query diseases: %w", err)
	}
	var (
		out []catalog.Disease
		idx = map[int64]int{}
	)
	for rows.Next() {
		var (
			id       int64
			d        catalog.Disease
			severity string
		)
		if err := rows.Scan(&id, &d.Name, &d.Description, &severity); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan disease: %w", err)
		}
		d.Severity = catalog.Severity(severity)
		idx[id] = len(out)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	links, err := q.QueryContext(ctx, `
		SELECT ds.disease_id, s.name
		FROM disease_symptoms ds JOIN symptoms s ON s.id = ds.symptom_id
		ORDER BY ds.disease_id, s.id`)
	if err != nil {
		return nil, fmt.Errorf("query disease symptoms: %w", err)
	}
	defer func() { _ = links.Close() }()
	for links.Next() {
		var (
			id   int64
			name string
		)
		if err := links.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scan disease symptom: %w", err)
		}
		if i, ok := idx[id]; ok {
			out[i].Symptoms = append(out[i].Symptoms, name)
		}
	}
	return out, links.Err()
}

// upsertSymptom creates the symptom if absent and returns its id. An existing
// row keeps its name and only gains a description if it had none.
func upsertSymptom(ctx context.Context, q querier, sym catalog.Symptom, now int64) (int64, bool, error) {
	name := normalizeDisplay(sym.Name)
	if name == "" {
		return 0, false, fmt.Errorf("%w: empty symptom name", ErrInvalidSeed)
	}
	var id int64
	err := q.QueryRowContext(ctx, `SELECT id FROM symptoms WHERE name = ?`, name).Scan(&id)
	switch {
	case err == nil:
		if sym.Description != "" {
			if _, err := q.ExecContext(ctx,
				`UPDATE symptoms SET description = ? WHERE id = ? AND description = ''`, sym.Description, id); err != nil {
				return 0, false, fmt.Errorf("update symptom %q: %w", name, err)
			}
		}
		return id, false, nil
	case !errors.Is(err, sql.ErrNoRows):
		return 0, false, fmt.Errorf("lookup symptom %q: %w", name, err)
	}

	res, err := q.ExecContext(ctx,
		`INSERT INTO symptoms (name, description, created_at) VALUES (?, ?, ?)`, name, sym.Description, now)
	if err != nil {
		return 0, false, fmt.Errorf("insert symptom %q: %w", name, err)
	}
	id, err = res.LastInsertId()
	return id, true, err
}

// upsertDisease creates or updates a disease and links the given symptom ids.
// Existing links are kept.
func upsertDisease(ctx context.Context, q querier, d catalog.Disease, symptomIDs []int64, now int64) (bool, error) {
	name := normalizeDisplay(d.Name)
	if name == "" {
		return false, fmt.Errorf("%w: empty disease name", ErrInvalidSeed)
	}
	severity, err := catalog.ParseSeverity(string(d.Severity))
	if err != nil {
		return false, fmt.Errorf("%w: disease %q: %w", ErrInvalidSeed, name, err)
	}

	var (
		id      int64
		created bool
	)
	err = q.QueryRowContext(ctx, `SELECT id FROM diseases WHERE name = ?`, name).Scan(&id)
	switch {
	case err == nil:
		if _, err := q.ExecContext(ctx,
			`UPDATE diseases SET severity = ?, description = CASE WHEN ? = '' THEN description ELSE ? END WHERE id = ?`,
			string(severity), d.Description, d.Description, id); err != nil {
			return false, fmt.Errorf("update disease %q: %w", name, err)
		}
	case errors.Is(err, sql.ErrNoRows):
		res, err := q.ExecContext(ctx,
			`INSERT INTO diseases (name, description, severity, created_at) VALUES (?, ?, ?, ?)`,
			name, d.Description, string(severity), now)
		if err != nil {
			return false, fmt.Errorf("insert disease %q: %w", name, err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return false, err
		}
		created = true
	default:
		return false, fmt.Errorf("lookup disease %q: %w", name, err)
	}

	for _, sid := range symptomIDs {
		if _, err := q.ExecContext(ctx,
			`INSERT OR IGNORE INTO disease_symptoms (disease_id, symptom_id) VALUES (?, ?)`, id, sid); err != nil {
			return false, fmt.Errorf("link disease %q: %w", name, err)
		}
	}
	return created, nil
}

// DeleteDisease removes a disease and its symptom links.
func (s *Store) DeleteDisease(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM diseases WHERE name = ?`, normalizeDisplay(name))
	if err != nil {
		return fmt.Errorf("delete disease: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: disease %q", ErrNotFound, name)
	}
	return nil
}

// CatalogCounts returns the number of symptoms and diseases.
func (s *Store) CatalogCounts(ctx context.Context) (symptoms, diseases int, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM symptoms), (SELECT COUNT(*) FROM diseases)`).Scan(&symptoms, &diseases)
	if err != nil {
		return 0, 0, fmt.Errorf("count catalog: %w", err)
	}
	return symptoms, diseases, nil
}
