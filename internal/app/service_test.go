package service_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/okian/medixpert/internal/adapters/repository"
	service "github.com/okian/medixpert/internal/app"
	"github.com/okian/medixpert/internal/domain/artifact"
	"github.com/okian/medixpert/internal/domain/catalog"
	"github.com/okian/medixpert/internal/domain/forest"
	"github.com/okian/medixpert/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

// memStore is an in-memory PredictionStore with repository error semantics.
type memStore struct {
	mu    sync.Mutex
	saved []model.Prediction
}

func (m *memStore) SavePrediction(_ context.Context, p model.Prediction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, q := range m.saved {
		if p.RequestID != "" && q.UserID == p.UserID && q.RequestID == p.RequestID {
			return repository.ErrDuplicate
		}
	}
	m.saved = append(m.saved, p)
	return nil
}

func (m *memStore) GetPredictionByRequest(_ context.Context, userID, requestID string) (model.Prediction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, q := range m.saved {
		if q.UserID == userID && q.RequestID == requestID {
			return q, nil
		}
	}
	return model.Prediction{}, repository.ErrNotFound
}

func (m *memStore) ListPredictions(_ context.Context, userID string, limit int) ([]model.Prediction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Prediction
	for i := len(m.saved) - 1; i >= 0 && len(out) < limit; i-- {
		if m.saved[i].UserID == userID {
			out = append(out, m.saved[i])
		}
	}
	return out, nil
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saved)
}

// swapProvider lets a test change the catalog under a running service.
type swapProvider struct {
	mu sync.Mutex
	p  *catalog.Static
}

func (s *swapProvider) set(symptoms []catalog.Symptom, diseases []catalog.Disease) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.p = catalog.NewStatic(symptoms, diseases)
}

func (s *swapProvider) ListSymptoms(ctx context.Context) ([]catalog.Symptom, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.p.ListSymptoms(ctx)
}

func (s *swapProvider) ListDiseases(ctx context.Context) ([]catalog.Disease, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.p.ListDiseases(ctx)
}

var fluColdSymptoms = []catalog.Symptom{{Name: "Fever"}, {Name: "Cough"}, {Name: "Fatigue"}}

func fluColdDiseases() []catalog.Disease {
	return []catalog.Disease{
		{Name: "Flu", Severity: catalog.SeverityMedium, Symptoms: []string{"Fever", "Cough"}},
		{Name: "Cold", Severity: catalog.SeverityLow, Symptoms: []string{"Cough", "Fatigue"}},
	}
}

func fluCold() *swapProvider {
	p := &swapProvider{}
	p.set(fluColdSymptoms, fluColdDiseases())
	return p
}

// constantArtifact predicts the same distribution for every input.
func constantArtifact(classes []string, dist []float64, names []string, fingerprint string) *artifact.Artifact {
	f := &forest.Forest{
		Classes:   classes,
		NFeatures: len(names),
		Trees:     []*forest.Tree{{Nodes: []forest.Node{{Value: dist}}}},
	}
	return artifact.New(f, names, fingerprint)
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o600)
}

func fingerprint(p catalog.Provider) string {
	snap, err := catalog.Load(context.Background(), p)
	if err != nil {
		panic(err)
	}
	return snap.Fingerprint()
}

func newService(p catalog.Provider, store service.PredictionStore, opts ...service.Option) *service.Service {
	n := 0
	opts = append([]service.Option{
		service.WithIDGenerator(func() string { n++; return fmt.Sprintf("pred-%d", n) }),
		service.WithClock(func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }),
	}, opts...)
	return service.New(p, store, opts...)
}

func TestService_Start(t *testing.T) {
	Convey("Given a service whose model file does not exist", t, func() {
		svc := newService(fluCold(), &memStore{},
			service.WithModelPath(filepath.Join(t.TempDir(), "missing.json")))

		Convey("When starting the service", func() {
			err := svc.Start(context.Background())
			defer svc.Stop()

			Convey("Then it starts without a model", func() {
				So(err, ShouldBeNil)
				So(svc.ModelLoaded(), ShouldBeFalse)
				stats := svc.GetStats()
				So(stats["started"], ShouldEqual, true)
				So(stats["modelLoaded"], ShouldEqual, false)
			})

			Convey("And stopping marks it stopped", func() {
				svc.Stop()
				So(svc.GetStats()["started"], ShouldEqual, false)
			})
		})
	})

	Convey("Given a model file that is not JSON", t, func() {
		path := filepath.Join(t.TempDir(), "model.json")
		So(writeFile(path, "{not json"), ShouldBeNil)
		svc := newService(fluCold(), &memStore{}, service.WithModelPath(path))

		Convey("Then the service starts on the fallback tier", func() {
			So(svc.Start(context.Background()), ShouldBeNil)
			So(svc.ModelLoaded(), ShouldBeFalse)
		})
	})

	Convey("Given a model file whose tree points outside its nodes", t, func() {
		ctx := context.Background()
		provider := fluCold()
		path := filepath.Join(t.TempDir(), "model.json")
		So(writeFile(path, fmt.Sprintf(`{"version":1,"catalog_fingerprint":%q,`+
			`"symptom_names":["Fever","Cough","Fatigue"],"forest":{"classes":["Cold","Flu"],"n_features":3,`+
			`"trees":[{"nodes":[{"f":0,"t":0.5,"l":1,"r":7},{"f":0,"v":[1,0]}]}]}}`, fingerprint(provider))), ShouldBeNil)
		store := &memStore{}
		svc := newService(provider, store, service.WithModelPath(path))
		So(svc.Start(ctx), ShouldBeNil)

		Convey("When a keyed request is sent twice", func() {
			req := model.PredictRequest{UserID: "u1", RequestID: "r-1", Symptoms: []string{"Fever"}}
			p, err := svc.Predict(ctx, req)
			again, errAgain := svc.Predict(ctx, req)

			Convey("Then the model is rejected and the fallback answers both", func() {
				So(svc.ModelLoaded(), ShouldBeFalse)
				So(err, ShouldBeNil)
				So(p.Method, ShouldEqual, model.MethodFallback)
				So(p.Disease, ShouldEqual, "Flu")
				So(errAgain, ShouldBeNil)
				So(again, ShouldResemble, p)
				So(store.count(), ShouldEqual, 1)
			})
		})
	})
}

func TestService_Predict_Input(t *testing.T) {
	ctx := context.Background()

	Convey("Given the Flu/Cold catalog", t, func() {
		store := &memStore{}
		svc := newService(fluCold(), store)

		Convey("When no symptoms are given", func() {
			_, err := svc.Predict(ctx, model.PredictRequest{UserID: "u1", Symptoms: []string{" ", ""}})

			Convey("Then the input is rejected", func() {
				So(errors.Is(err, service.ErrInvalidInput), ShouldBeTrue)
				So(store.count(), ShouldEqual, 0)
			})
		})

		Convey("When no symptom is cataloged", func() {
			_, err := svc.Predict(ctx, model.PredictRequest{UserID: "u1", Symptoms: []string{"Rash"}})

			Convey("Then the input is rejected before scoring", func() {
				So(errors.Is(err, service.ErrInvalidInput), ShouldBeTrue)
				So(err.Error(), ShouldEqual, "no valid symptoms found")
			})
		})

		Convey("When an unknown symptom accompanies a known one", func() {
			p, err := svc.Predict(ctx, model.PredictRequest{UserID: "u1", Symptoms: []string{"Fever", "Unknown Symptom"}})

			Convey("Then it is ignored", func() {
				So(err, ShouldBeNil)
				So(p.Symptoms, ShouldResemble, []string{"fever"})
				So(p.Disease, ShouldEqual, "Flu")
			})
		})
	})

	Convey("Given a catalog with symptoms but no diseases", t, func() {
		p := &swapProvider{}
		p.set(fluColdSymptoms, nil)
		svc := newService(p, &memStore{})

		Convey("Then a known symptom yields no match", func() {
			_, err := svc.Predict(ctx, model.PredictRequest{UserID: "u1", Symptoms: []string{"Fever"}})
			So(errors.Is(err, service.ErrNoMatch), ShouldBeTrue)
		})
	})

	Convey("Given an entirely empty catalog", t, func() {
		p := &swapProvider{}
		p.set(nil, nil)
		svc := newService(p, &memStore{})

		Convey("Then every input is invalid", func() {
			_, err := svc.Predict(ctx, model.PredictRequest{UserID: "u1", Symptoms: []string{"Fever"}})
			So(errors.Is(err, service.ErrInvalidInput), ShouldBeTrue)
		})
	})

	Convey("Given a disease with no symptoms", t, func() {
		p := &swapProvider{}
		p.set(fluColdSymptoms, []catalog.Disease{{Name: "Ghost"}, {Name: "Flu", Symptoms: []string{"Fever"}}})
		svc := newService(p, &memStore{})

		Convey("Then it never wins and unmatched input finds nothing", func() {
			r, err := svc.Predict(ctx, model.PredictRequest{UserID: "u1", Symptoms: []string{"Fever"}})
			So(err, ShouldBeNil)
			So(r.Disease, ShouldEqual, "Flu")
			_, err = svc.Predict(ctx, model.PredictRequest{UserID: "u1", Symptoms: []string{"Fatigue"}})
			So(errors.Is(err, service.ErrNoMatch), ShouldBeTrue)
		})
	})
}

func TestService_Predict_Tiers(t *testing.T) {
	ctx := context.Background()
	names := []string{"Fever", "Cough", "Fatigue"}

	Convey("Given the Flu/Cold catalog", t, func() {
		provider := fluCold()
		fp := fingerprint(provider)
		store := &memStore{}
		svc := newService(provider, store)

		Convey("When no model is loaded", func() {
			p, err := svc.Predict(ctx, model.PredictRequest{UserID: "u1", Symptoms: []string{"Fever", "Cough"}})
			ex, exErr := svc.Explain(ctx, []string{"Fever", "Cough"})

			Convey("Then the fallback answers with full overlap", func() {
				So(err, ShouldBeNil)
				So(p.Method, ShouldEqual, model.MethodFallback)
				So(p.Disease, ShouldEqual, "Flu")
				So(p.Confidence, ShouldEqual, 100)
				So(p.Severity, ShouldEqual, catalog.SeverityMedium)
				So(exErr, ShouldBeNil)
				So(ex.Steps[0].Reason, ShouldEqual, service.ArtifactMissing)
			})
		})

		Convey("When a confident classifier is loaded", func() {
			svc.Use(constantArtifact([]string{"Cold", "Flu"}, []float64{0.3, 0.7}, names, fp))
			p, err := svc.Predict(ctx, model.PredictRequest{
				UserID: "u1", Symptoms: []string{"Fatigue"}, AdditionalSymptoms: "mild", Notes: "since monday",
			})

			Convey("Then the classifier answer wins over overlap", func() {
				So(err, ShouldBeNil)
				So(p.Method, ShouldEqual, model.MethodClassifier)
				So(p.Disease, ShouldEqual, "Flu")
				So(p.Confidence, ShouldAlmostEqual, 70, 1e-9)
				So(p.AdditionalSymptoms, ShouldEqual, "mild")
				So(p.Notes, ShouldEqual, "since monday")
				So(p.ID, ShouldEqual, "pred-1")
				So(store.count(), ShouldEqual, 1)
			})
		})

		Convey("When the model was trained on another catalog", func() {
			svc.Use(constantArtifact([]string{"Cold", "Flu"}, []float64{0.3, 0.7}, names, "other"))
			p, err := svc.Predict(ctx, model.PredictRequest{UserID: "u1", Symptoms: []string{"Fatigue"}})
			ex, _ := svc.Explain(ctx, []string{"Fatigue"})

			Convey("Then the request falls back", func() {
				So(err, ShouldBeNil)
				So(p.Method, ShouldEqual, model.MethodFallback)
				So(p.Disease, ShouldEqual, "Cold")
				So(ex.Steps[0].Reason, ShouldEqual, service.CatalogMismatch)
			})
		})

		Convey("When the classifier cannot score the vector", func() {
			a := constantArtifact([]string{"Cold", "Flu"}, []float64{0.3, 0.7}, names, fp)
			a.Forest.NFeatures = 7
			svc.Use(a)
			p, err := svc.Predict(ctx, model.PredictRequest{UserID: "u1", Symptoms: []string{"Fatigue"}})
			ex, _ := svc.Explain(ctx, []string{"Fatigue"})

			Convey("Then the request falls back", func() {
				So(err, ShouldBeNil)
				So(p.Method, ShouldEqual, model.MethodFallback)
				So(ex.Steps[0].Reason, ShouldEqual, service.ClassifierError)
			})
		})

		Convey("When a loaded tree is malformed", func() {
			a := constantArtifact([]string{"Cold", "Flu"}, []float64{0.3, 0.7}, names, fp)
			a.Forest.Trees[0].Nodes = []forest.Node{
				{Feature: 0, Threshold: 0.5, Left: 1, Right: 7},
				{Value: []float64{1, 0}},
			}
			svc.Use(a)
			req := model.PredictRequest{UserID: "u1", RequestID: "r-9", Symptoms: []string{"Fever"}}
			p, err := svc.Predict(ctx, req)
			ex, _ := svc.Explain(ctx, []string{"Fever"})
			again, errAgain := svc.Predict(ctx, req)

			Convey("Then the request falls back and the key stays usable", func() {
				So(err, ShouldBeNil)
				So(p.Method, ShouldEqual, model.MethodFallback)
				So(p.Disease, ShouldEqual, "Flu")
				So(ex.Steps[0].Reason, ShouldEqual, service.ClassifierError)
				So(errAgain, ShouldBeNil)
				So(again.ID, ShouldEqual, p.ID)
			})
		})

		Convey("When the classifier predicts a disease missing from the catalog", func() {
			svc.Use(constantArtifact([]string{"Measles"}, []float64{1}, names, fp))
			p, err := svc.Predict(ctx, model.PredictRequest{UserID: "u1", Symptoms: []string{"Fatigue"}})
			ex, _ := svc.Explain(ctx, []string{"Fatigue"})

			Convey("Then the request falls back", func() {
				So(err, ShouldBeNil)
				So(p.Method, ShouldEqual, model.MethodFallback)
				So(p.Disease, ShouldEqual, "Cold")
				So(ex.Steps[0].Reason, ShouldEqual, service.UnknownLabel)
			})
		})

		Convey("When the classifier is below the threshold", func() {
			svc.Use(constantArtifact([]string{"Cold", "Flu"}, []float64{0.55, 0.45}, names, fp))
			strict := newService(provider, store, service.WithConfidenceThreshold(0.6))
			strict.Use(constantArtifact([]string{"Cold", "Flu"}, []float64{0.55, 0.45}, names, fp))
			p, err := strict.Predict(ctx, model.PredictRequest{UserID: "u1", Symptoms: []string{"Fever"}})
			ex, _ := strict.Explain(ctx, []string{"Fever"})

			Convey("Then the request falls back", func() {
				So(err, ShouldBeNil)
				So(p.Method, ShouldEqual, model.MethodFallback)
				So(p.Disease, ShouldEqual, "Flu")
				So(p.Confidence, ShouldEqual, 50)
				So(ex.Steps[0].Reason, ShouldEqual, service.LowConfidence)
			})

			Convey("And the default threshold accepts it", func() {
				q, err := svc.Predict(ctx, model.PredictRequest{UserID: "u1", Symptoms: []string{"Fever"}})
				So(err, ShouldBeNil)
				So(q.Method, ShouldEqual, model.MethodClassifier)
				So(q.Disease, ShouldEqual, "Cold")
			})
		})

		Convey("When the probability sits exactly on the threshold", func() {
			dist := []float64{0.2, 0.16, 0.16, 0.16, 0.16, 0.16}
			classes := []string{"Cold", "Flu", "X1", "X2", "X3", "X4"}
			svc.Use(constantArtifact(classes, dist, names, fp))
			p, err := svc.Predict(ctx, model.PredictRequest{UserID: "u1", Symptoms: []string{"Fever"}})

			Convey("Then it is accepted", func() {
				So(err, ShouldBeNil)
				So(p.Method, ShouldEqual, model.MethodClassifier)
				So(p.Confidence, ShouldAlmostEqual, 20, 1e-9)
			})
		})
	})
}

func TestService_Idempotency(t *testing.T) {
	ctx := context.Background()

	Convey("Given a service and a request with an idempotency key", t, func() {
		store := &memStore{}
		svc := newService(fluCold(), store)
		req := model.PredictRequest{UserID: "u1", RequestID: "r-1", Symptoms: []string{"Fever", "Cough"}}

		Convey("When the request is sent twice", func() {
			first, err1 := svc.Predict(ctx, req)
			second, err2 := svc.Predict(ctx, req)

			Convey("Then one prediction is recorded and replayed", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(second, ShouldResemble, first)
				So(store.count(), ShouldEqual, 1)
				So(svc.GetStats()["idempotencyKeys"], ShouldEqual, int64(1))
			})
		})

		Convey("When another user reuses the key", func() {
			_, _ = svc.Predict(ctx, req)
			other := req
			other.UserID = "u2"
			p, err := svc.Predict(ctx, other)

			Convey("Then it gets its own prediction", func() {
				So(err, ShouldBeNil)
				So(p.UserID, ShouldEqual, "u2")
				So(store.count(), ShouldEqual, 2)
			})
		})

		Convey("When a failed request is retried with the same key", func() {
			bad := req
			bad.Symptoms = []string{"Rash"}
			_, err := svc.Predict(ctx, bad)
			So(errors.Is(err, service.ErrInvalidInput), ShouldBeTrue)
			p, err := svc.Predict(ctx, req)

			Convey("Then the key is free again", func() {
				So(err, ShouldBeNil)
				So(p.Disease, ShouldEqual, "Flu")
			})
		})

		Convey("When the key is already stored but not cached", func() {
			first, _ := svc.Predict(ctx, req)
			restarted := newService(fluCold(), store)
			again, err := restarted.Predict(ctx, req)

			Convey("Then the stored prediction is replayed", func() {
				So(err, ShouldBeNil)
				So(again.ID, ShouldEqual, first.ID)
				So(store.count(), ShouldEqual, 1)
			})
		})
	})
}

func TestService_Queries(t *testing.T) {
	ctx := context.Background()

	Convey("Given recorded predictions", t, func() {
		svc := newService(fluCold(), &memStore{})
		_, _ = svc.Predict(ctx, model.PredictRequest{UserID: "u1", Symptoms: []string{"Fever"}})
		_, _ = svc.Predict(ctx, model.PredictRequest{UserID: "u1", Symptoms: []string{"Fatigue"}})
		_, _ = svc.Predict(ctx, model.PredictRequest{UserID: "u2", Symptoms: []string{"Cough"}})

		Convey("Then history is per user, newest first", func() {
			list, err := svc.Predictions(ctx, "u1", 10)
			So(err, ShouldBeNil)
			So(list, ShouldHaveLength, 2)
			So(list[0].Disease, ShouldEqual, "Cold")
			So(list[1].Disease, ShouldEqual, "Flu")
		})

		Convey("Then alternatives exclude the winner", func() {
			alts, err := svc.Alternatives(ctx, []string{"Fever", "Cough"}, "Flu")
			So(err, ShouldBeNil)
			So(alts, ShouldResemble, []model.Candidate{{Disease: "Cold", Confidence: 50}})
		})

		Convey("Then the catalog is readable", func() {
			syms, err := svc.Symptoms(ctx)
			So(err, ShouldBeNil)
			So(syms, ShouldHaveLength, 3)
			ds, err := svc.Diseases(ctx)
			So(err, ShouldBeNil)
			So(ds, ShouldHaveLength, 2)
		})

		Convey("Then Explain reports ignored symptoms without recording", func() {
			ex, err := svc.Explain(ctx, []string{"Fever", "Rash"})
			So(err, ShouldBeNil)
			So(ex.Known, ShouldResemble, []string{"fever"})
			So(ex.Ignored, ShouldResemble, []string{"rash"})
			So(ex.Disease, ShouldEqual, "Flu")
			list, _ := svc.Predictions(ctx, "u1", 10)
			So(list, ShouldHaveLength, 2)
		})
	})
}
