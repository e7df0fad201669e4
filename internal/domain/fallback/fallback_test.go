package fallback_test

import (
	"errors"
	"testing"

	"github.com/okian/medixpert/internal/domain/catalog"
	"github.com/okian/medixpert/internal/domain/fallback"
	. "github.com/smartystreets/goconvey/convey"
)

var symptoms = []catalog.Symptom{{Name: "Fever"}, {Name: "Cough"}, {Name: "Fatigue"}}

func fluCold() catalog.Snapshot {
	return catalog.NewSnapshot(symptoms, []catalog.Disease{
		{Name: "Flu", Symptoms: []string{"Fever", "Cough"}},
		{Name: "Cold", Symptoms: []string{"Cough", "Fatigue"}},
	})
}

func TestScorer_Score(t *testing.T) {
	Convey("Given the Flu/Cold catalog", t, func() {
		s := fallback.New()
		snap := fluCold()

		Convey("When the input is Fever and Cough", func() {
			m, err := s.Score(snap, []string{"Fever", "Cough"})

			Convey("Then Flu matches fully", func() {
				So(err, ShouldBeNil)
				So(m.Disease.Name, ShouldEqual, "Flu")
				So(m.Score, ShouldEqual, 1.0)
				So(m.Matches, ShouldEqual, 2)
				So(m.Total, ShouldEqual, 2)
			})
		})

		Convey("When the input is only Cough", func() {
			m, err := s.Score(snap, []string{"Cough"})

			Convey("Then the tie goes to the disease listed first", func() {
				So(err, ShouldBeNil)
				So(m.Disease.Name, ShouldEqual, "Flu")
				So(m.Score, ShouldEqual, 0.5)
			})

			Convey("And reversing catalog order flips the winner", func() {
				rev := catalog.NewSnapshot(symptoms, []catalog.Disease{snap.Diseases[1], snap.Diseases[0]})
				m, err := s.Score(rev, []string{"Cough"})
				So(err, ShouldBeNil)
				So(m.Disease.Name, ShouldEqual, "Cold")
			})

			Convey("And repeated calls always agree", func() {
				for i := 0; i < 20; i++ {
					again, _ := s.Score(snap, []string{"Cough"})
					So(again.Disease.Name, ShouldEqual, "Flu")
				}
			})
		})

		Convey("When the input contains an unknown symptom", func() {
			with, err1 := s.Score(snap, []string{"Fever", "Unknown Symptom"})
			alone, err2 := s.Score(snap, []string{"Fever"})

			Convey("Then it is ignored", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(with, ShouldResemble, alone)
			})
		})

		Convey("When the input repeats symptoms in different case", func() {
			m, err := s.Score(snap, []string{"cough", "COUGH ", "Cough"})

			Convey("Then duplicates count once", func() {
				So(err, ShouldBeNil)
				So(m.Matches, ShouldEqual, 1)
				So(m.Score, ShouldEqual, 0.5)
			})
		})

		Convey("When the input is a superset of a disease", func() {
			m, err := s.Score(snap, []string{"Fever", "Cough", "Fatigue"})

			Convey("Then the score is exactly one", func() {
				So(err, ShouldBeNil)
				So(m.Score, ShouldEqual, 1.0)
			})
		})

		Convey("When no input symptom is cataloged", func() {
			_, err := s.Score(snap, []string{"Rash", ""})

			Convey("Then it reports no known symptoms", func() {
				So(errors.Is(err, fallback.ErrNoKnownSymptoms), ShouldBeTrue)
			})
		})
	})

	Convey("Given a catalog whose diseases share no symptom with the input", t, func() {
		snap := catalog.NewSnapshot(symptoms, []catalog.Disease{
			{Name: "Flu", Symptoms: []string{"Fever", "Cough"}},
			{Name: "Ghost"},
		})

		Convey("Then Fatigue alone yields no match", func() {
			_, err := fallback.New().Score(snap, []string{"Fatigue"})
			So(errors.Is(err, fallback.ErrNoMatch), ShouldBeTrue)
		})
	})

	Convey("Given a catalog with no diseases", t, func() {
		snap := catalog.NewSnapshot(symptoms, nil)

		Convey("Then scoring yields no match", func() {
			_, err := fallback.New().Score(snap, []string{"Fever"})
			So(errors.Is(err, fallback.ErrNoMatch), ShouldBeTrue)
		})
	})
}

func TestScorer_Rank(t *testing.T) {
	Convey("Given the Flu/Cold catalog", t, func() {
		s := fallback.New()
		snap := fluCold()

		Convey("When ranking Fever and Cough", func() {
			ms, err := s.Rank(snap, []string{"Fever", "Cough"})

			Convey("Then candidates come best first with scores in [0,1]", func() {
				So(err, ShouldBeNil)
				So(ms, ShouldHaveLength, 2)
				So(ms[0].Disease.Name, ShouldEqual, "Flu")
				So(ms[1].Disease.Name, ShouldEqual, "Cold")
				for _, m := range ms {
					So(m.Score, ShouldBeGreaterThan, 0)
					So(m.Score, ShouldBeLessThanOrEqualTo, 1)
				}
			})
		})

		Convey("Then the top ranked candidate agrees with Score", func() {
			for _, in := range [][]string{{"Cough"}, {"Fatigue"}, {"Fever"}, {"Cough", "Fatigue"}} {
				best, err := s.Score(snap, in)
				So(err, ShouldBeNil)
				ranked, err := s.Rank(snap, in)
				So(err, ShouldBeNil)
				So(ranked[0], ShouldResemble, best)
			}
		})
	})
}
