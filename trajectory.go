package worldcore

// Frame is the recorded state of all float-valued variables at one point
// in model time; values are per instance, in universe creation order.
// Unset values are recorded as NaN.
type Frame struct {
	Seq    uint64               `json:"seq"`
	T      float64              `json:"t"`
	Values map[string][]float64 `json:"values"`
}

// Trajectory is the recorded output of a run: one series per recorded
// variable, indexed frame-first.
type Trajectory struct {
	RunID  string
	Codes  []string
	Times  []float64
	Series map[string][][]float64
}

func newTrajectory(runID string, codes []string) *Trajectory {
	return &Trajectory{
		RunID:  runID,
		Codes:  codes,
		Series: make(map[string][][]float64, len(codes)),
	}
}

func (tr *Trajectory) append(f *Frame) {
	tr.Times = append(tr.Times, f.T)
	for _, code := range tr.Codes {
		tr.Series[code] = append(tr.Series[code], f.Values[code])
	}
}

func (tr *Trajectory) Len() int { return len(tr.Times) }
