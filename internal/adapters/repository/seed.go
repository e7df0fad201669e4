package repository

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/okian/medixpert/internal/domain/catalog"
	"github.com/okian/medixpert/pkg/logger"
)

// SeedFile is the YAML layout of a catalog seed.
type SeedFile struct {
	Symptoms []catalog.Symptom `yaml:"symptoms"`
	Diseases []catalog.Disease `yaml:"diseases"`
}

// SeedResult counts what a seed run changed.
type SeedResult struct {
	SymptomsCreated int
	DiseasesCreated int
	DiseasesUpdated int
	SkippedLinks    int
}

// LoadSeedFile reads a catalog seed from a YAML file.
func LoadSeedFile(path string) (*SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}
	var f SeedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: parse seed yaml: %w", ErrInvalidSeed, err)
	}
	return &f, nil
}

// WriteSeedFile writes a catalog seed as YAML.
func WriteSeedFile(path string, f *SeedFile) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal seed: %w", err)
	}
	if err := ensureDir(path); err != nil {
		return fmt.Errorf("create seed dir: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Seed applies a catalog seed with get-or-create semantics in one
// transaction. Disease symptom references that name no known symptom are
// skipped with a warning.
func (s *Store) Seed(ctx context.Context, f *SeedFile) (SeedResult, error) {
	var res SeedResult
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("begin seed: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := s.now().UnixNano()
	ids := make(map[string]int64, len(f.Symptoms))
	for _, sym := range f.Symptoms {
		id, created, err := upsertSymptom(ctx, tx, sym, now)
		if err != nil {
			return res, err
		}
		if created {
			res.SymptomsCreated++
		}
		ids[catalog.Normalize(sym.Name)] = id
	}

	for _, d := range f.Diseases {
		var links []int64
		for _, name := range d.Symptoms {
			id, ok := ids[catalog.Normalize(name)]
			if !ok {
				id, ok, err = lookupSymptom(ctx, tx, name)
				if err != nil {
					return res, err
				}
			}
			if !ok {
				s.log.Warn(ctx, "symptom not found, skipping link",
					logger.String("disease", d.Name), logger.String("symptom", name))
				res.SkippedLinks++
				continue
			}
			links = append(links, id)
		}
		created, err := upsertDisease(ctx, tx, d, links, now)
		if err != nil {
			return res, err
		}
		if created {
			res.DiseasesCreated++
		} else {
			res.DiseasesUpdated++
		}
	}

	if err := tx.Commit(); err != nil {
		return res, fmt.Errorf("commit seed: %w", err)
	}
	s.log.Info(ctx, "catalog seeded",
		logger.Int("symptoms_created", res.SymptomsCreated),
		logger.Int("diseases_created", res.DiseasesCreated),
		logger.Int("diseases_updated", res.DiseasesUpdated),
		logger.Int("skipped_links", res.SkippedLinks))
	return res, nil
}

// Export reads the whole catalog back into seed form.
func (s *Store) Export(ctx context.Context) (*SeedFile, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return &SeedFile{Symptoms: snap.Symptoms, Diseases: snap.Diseases}, nil
}

func lookupSymptom(ctx context.Context, q querier, name string) (int64, bool, error) {
	var id int64
	err := q.QueryRowContext(ctx, `SELECT id FROM symptoms WHERE name = ?`, normalizeDisplay(name)).Scan(&id)
	if err != nil {
		if isNoRows(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("lookup symptom %q: %w", name, err)
	}
	return id, true, nil
}

// normalizeDisplay collapses whitespace but keeps the display case.
func normalizeDisplay(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// DefaultSeed is the built-in catalog.
func DefaultSeed() *SeedFile {
	return &SeedFile{Symptoms: catalog.DefaultSymptoms(), Diseases: catalog.DefaultDiseases()}
}
