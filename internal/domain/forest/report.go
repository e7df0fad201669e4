package forest

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"
)

// ClassReport holds per-class evaluation scores.
type ClassReport struct {
	Label     string  `json:"label"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// Report summarises classifier performance on a labelled set.
type Report struct {
	Accuracy float64       `json:"accuracy"`
	Samples  int           `json:"samples"`
	Classes  []ClassReport `json:"classes"`
}

// Evaluate predicts every row of x and scores the result against y.
// Labels are reported in lexical order over the union of true and
// predicted labels.
func Evaluate(f *Forest, x [][]float64, y []string) (Report, error) {
	if len(x) != len(y) {
		return Report{}, fmt.Errorf("%w: %d rows, %d labels", ErrShapeMismatch, len(x), len(y))
	}
	if len(x) == 0 {
		return Report{}, nil
	}

	tp := map[string]int{}
	predicted := map[string]int{}
	support := map[string]int{}
	correct := 0
	for i, row := range x {
		got, _, err := f.Predict(row)
		if err != nil {
			return Report{}, err
		}
		predicted[got]++
		support[y[i]]++
		if got == y[i] {
			tp[got]++
			correct++
		}
	}

	labels := make([]string, 0, len(support))
	for l := range support {
		labels = append(labels, l)
	}
	for l := range predicted {
		if _, ok := support[l]; !ok {
			labels = append(labels, l)
		}
	}
	sort.Strings(labels)

	r := Report{Accuracy: float64(correct) / float64(len(y)), Samples: len(y)}
	for _, l := range labels {
		cr := ClassReport{Label: l, Support: support[l]}
		if predicted[l] > 0 {
			cr.Precision = float64(tp[l]) / float64(predicted[l])
		}
		if support[l] > 0 {
			cr.Recall = float64(tp[l]) / float64(support[l])
		}
		if cr.Precision+cr.Recall > 0 {
			cr.F1 = 2 * cr.Precision * cr.Recall / (cr.Precision + cr.Recall)
		}
		r.Classes = append(r.Classes, cr)
	}
	return r, nil
}

// String renders the report as an aligned table.
func (r Report) String() string {
	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "\tprecision\trecall\tf1-score\tsupport\t")
	for _, c := range r.Classes {
		fmt.Fprintf(w, "%s\t%.2f\t%.2f\t%.2f\t%d\t\n", c.Label, c.Precision, c.Recall, c.F1, c.Support)
	}
	fmt.Fprintf(w, "accuracy\t\t\t%.2f\t%d\t\n", r.Accuracy, r.Samples)
	_ = w.Flush()
	return sb.String()
}
