package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/okian/medixpert/internal/domain/catalog"
	. "github.com/smartystreets/goconvey/convey"
)

func TestTrainer_SingleWriter(t *testing.T) {
	Convey("Given a trainer that is already running", t, func() {
		tr := NewTrainer(catalog.NewStatic(nil, nil), filepath.Join(t.TempDir(), "m.json"))
		tr.mu.Lock()
		defer tr.mu.Unlock()

		Convey("Then a concurrent Train is refused", func() {
			_, err := tr.Train(context.Background())
			So(errors.Is(err, ErrTrainingInProgress), ShouldBeTrue)
		})
	})
}
