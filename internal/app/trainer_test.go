package service_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/medixpert/internal/adapters/repository"
	service "github.com/okian/medixpert/internal/app"
	"github.com/okian/medixpert/internal/domain/artifact"
	"github.com/okian/medixpert/internal/domain/catalog"
	"github.com/okian/medixpert/internal/domain/dataset"
	"github.com/okian/medixpert/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func newTrainer(p catalog.Provider, path string) *service.Trainer {
	return service.NewTrainer(p, path, service.WithForestSize(30, 10), service.WithTrainingSeed(7))
}

func TestTrainer_Train(t *testing.T) {
	ctx := context.Background()

	Convey("Given the Flu/Cold catalog", t, func() {
		provider := fluCold()
		path := filepath.Join(t.TempDir(), "models", "model.json")
		tr := newTrainer(provider, path)

		Convey("When training", func() {
			report, err := tr.Train(ctx)

			Convey("Then the artifact is persisted with the catalog fingerprint", func() {
				So(err, ShouldBeNil)
				So(report.Examples, ShouldEqual, 12)
				So(report.Augmented, ShouldEqual, 10)
				So(report.TrainSize+report.TestSize, ShouldEqual, 12)
				So(report.Stratified, ShouldBeFalse)
				So(report.Classes, ShouldResemble, []string{"Cold", "Flu"})
				So(report.Features, ShouldEqual, 3)
				So(len(report.Importances), ShouldBeLessThanOrEqualTo, 10)

				a, err := artifact.Load(path)
				So(err, ShouldBeNil)
				So(a.CatalogFingerprint, ShouldEqual, fingerprint(provider))
				So(a.SymptomNames, ShouldResemble, []string{"Fever", "Cough", "Fatigue"})
			})

			Convey("Then the model is not stale", func() {
				stale, err := tr.Stale(ctx)
				So(err, ShouldBeNil)
				So(stale, ShouldBeFalse)
			})

			Convey("And the service answers from the classifier", func() {
				svc := newService(provider, &memStore{}, service.WithModelPath(path))
				So(svc.Reload(ctx), ShouldBeNil)
				p, err := svc.Predict(ctx, model.PredictRequest{UserID: "u1", Symptoms: []string{"Fever", "Cough"}})
				So(err, ShouldBeNil)
				So(p.Method, ShouldEqual, model.MethodClassifier)
				So(p.Disease, ShouldEqual, "Flu")
				So(p.Confidence, ShouldBeBetweenOrEqual, 20, 100)

				p, err = svc.Predict(ctx, model.PredictRequest{UserID: "u1", Symptoms: []string{"Cough", "Fatigue"}})
				So(err, ShouldBeNil)
				So(p.Disease, ShouldEqual, "Cold")
			})

			Convey("And a disease removed from the catalog is never predicted", func() {
				provider.set(fluColdSymptoms, fluColdDiseases()[:1])
				svc := newService(provider, &memStore{}, service.WithModelPath(path))
				So(svc.Reload(ctx), ShouldBeNil)

				p, err := svc.Predict(ctx, model.PredictRequest{UserID: "u1", Symptoms: []string{"Cough", "Fatigue"}})
				So(err, ShouldBeNil)
				So(p.Method, ShouldEqual, model.MethodFallback)
				So(p.Disease, ShouldEqual, "Flu")

				stale, err := tr.Stale(ctx)
				So(err, ShouldBeNil)
				So(stale, ShouldBeTrue)
			})
		})

		Convey("When training twice with the same seed", func() {
			_, err := tr.Train(ctx)
			So(err, ShouldBeNil)
			first, _ := os.ReadFile(path)
			other := filepath.Join(t.TempDir(), "again.json")
			_, err = newTrainer(provider, other).Train(ctx)
			So(err, ShouldBeNil)
			a, _ := artifact.Load(path)
			b, _ := artifact.Load(other)

			Convey("Then the classifiers are identical", func() {
				So(first, ShouldNotBeEmpty)
				So(b.Forest.Trees, ShouldResemble, a.Forest.Trees)
			})
		})
	})

	Convey("Given a trainer whose split floor exceeds the training set", t, func() {
		provider := fluCold()
		path := filepath.Join(t.TempDir(), "stumps.json")
		tr := service.NewTrainer(provider, path,
			service.WithForestSize(10, 10),
			service.WithForestTuning(1000, 1, false),
			service.WithTrainingSeed(7))

		Convey("When training", func() {
			_, err := tr.Train(ctx)
			So(err, ShouldBeNil)
			a, err := artifact.Load(path)
			So(err, ShouldBeNil)

			Convey("Then every persisted tree is a single leaf", func() {
				So(a.Forest.Trees, ShouldHaveLength, 10)
				for _, tree := range a.Forest.Trees {
					So(tree.Depth(), ShouldEqual, 0)
				}
			})
		})
	})

	Convey("Given an empty catalog", t, func() {
		p := &swapProvider{}
		p.set(nil, nil)
		path := filepath.Join(t.TempDir(), "model.json")

		Convey("Then training fails and nothing is written", func() {
			_, err := newTrainer(p, path).Train(ctx)
			So(errors.Is(err, dataset.ErrEmptyDataset), ShouldBeTrue)
			_, statErr := os.Stat(path)
			So(os.IsNotExist(statErr), ShouldBeTrue)
		})

		Convey("Then the missing model counts as stale", func() {
			stale, err := newTrainer(p, path).Stale(ctx)
			So(err, ShouldBeNil)
			So(stale, ShouldBeTrue)
		})
	})

	Convey("Given the default catalog in SQLite", t, func() {
		store, err := repository.Open(ctx, filepath.Join(t.TempDir(), "db.sqlite"))
		So(err, ShouldBeNil)
		Reset(func() { _ = store.Close() })
		_, err = store.Seed(ctx, repository.DefaultSeed())
		So(err, ShouldBeNil)
		path := filepath.Join(t.TempDir(), "model.json")

		Convey("When training on it", func() {
			report, err := service.NewTrainer(store, path, service.WithForestSize(40, 10)).Train(ctx)

			Convey("Then the split is stratified and every disease is a class", func() {
				So(err, ShouldBeNil)
				So(report.Examples, ShouldEqual, 60)
				So(report.Stratified, ShouldBeTrue)
				So(report.TestSize, ShouldEqual, 10)
				So(report.Classes, ShouldHaveLength, 10)
				So(report.Evaluation.Samples, ShouldEqual, 10)
			})

			Convey("And predictions are recorded in SQLite", func() {
				svc := newService(store, store, service.WithModelPath(path))
				So(svc.Reload(ctx), ShouldBeNil)
				p, err := svc.Predict(ctx, model.PredictRequest{
					UserID: "u1", Symptoms: []string{"Chest Pain", "Difficulty Breathing", "Sweating", "Nausea", "Dizziness"},
				})
				So(err, ShouldBeNil)
				So(p.Disease, ShouldEqual, "Heart Attack")
				So(p.Severity, ShouldEqual, catalog.SeverityCritical)
				list, err := store.ListPredictions(ctx, "u1", 5)
				So(err, ShouldBeNil)
				So(list, ShouldHaveLength, 1)
				So(list[0].ID, ShouldEqual, p.ID)
			})
		})
	})
}

func TestRetrainer(t *testing.T) {
	ctx := context.Background()

	Convey("Given a service and trainer sharing a catalog", t, func() {
		provider := fluCold()
		path := filepath.Join(t.TempDir(), "model.json")
		tr := newTrainer(provider, path)
		svc := newService(provider, &memStore{}, service.WithModelPath(path))

		Convey("When the retrainer rejects a bad schedule", func() {
			_, err := service.NewRetrainer(tr, svc, "not a schedule", nil)
			So(err, ShouldNotBeNil)
		})

		Convey("When running once without a model", func() {
			r, err := service.NewRetrainer(tr, svc, "@hourly", nil)
			So(err, ShouldBeNil)
			trained, err := r.RunOnce(ctx)

			Convey("Then a model is trained and loaded", func() {
				So(err, ShouldBeNil)
				So(trained, ShouldBeTrue)
				So(svc.ModelLoaded(), ShouldBeTrue)
			})

			Convey("And a second run is a no-op", func() {
				trained, err := r.RunOnce(ctx)
				So(err, ShouldBeNil)
				So(trained, ShouldBeFalse)
			})

			Convey("And a catalog change triggers a retrain", func() {
				provider.set(fluColdSymptoms, append(fluColdDiseases(),
					catalog.Disease{Name: "Exhaustion", Symptoms: []string{"Fatigue"}}))
				trained, err := r.RunOnce(ctx)
				So(err, ShouldBeNil)
				So(trained, ShouldBeTrue)
				stale, _ := tr.Stale(ctx)
				So(stale, ShouldBeFalse)
			})
		})

		Convey("When the scheduler is started and stopped", func() {
			r, err := service.NewRetrainer(tr, svc, "@every 1h", nil)
			So(err, ShouldBeNil)
			r.Start(ctx)
			r.Stop()
			So(svc.ModelLoaded(), ShouldBeFalse)
		})
	})
}
