package collapse

import "fmt"

// Report is the full evaluation of one encounter against a threshold.
// CriticalPericenter and RequiredCoupling are nil when undefined, e.g. at
// zero amplification.
type Report struct {
	Q                  float64  `json:"Q"`
	Threshold          float64  `json:"Q_c"`
	Nucleates          bool     `json:"nucleates"`
	Margin             float64  `json:"margin"`
	CriticalPericenter *float64 `json:"r_crit,omitempty"`
	RequiredCoupling   *float64 `json:"alpha_required,omitempty"`
}

// Report evaluates every quantity of in at threshold. Only a failure of Q
// itself, or an unusable threshold, is an error.
func (m Model) Report(in Inputs, threshold float64) (Report, error) {
	if err := requirePositive("Q_c", threshold); err != nil {
		return Report{}, err
	}
	q, err := m.Criterion(in)
	if err != nil {
		return Report{}, err
	}
	r := Report{Q: q, Threshold: threshold, Nucleates: q >= threshold, Margin: q / threshold}
	if v, err := m.CriticalPericenter(in, threshold); err == nil {
		r.CriticalPericenter = &v
	}
	if v, err := m.RequiredCoupling(in, threshold); err == nil {
		r.RequiredCoupling = &v
	}
	return r, nil
}

func (r Report) String() string {
	verdict := "does not nucleate"
	if r.Nucleates {
		verdict = "nucleates"
	}
	s := fmt.Sprintf("Q = %.6g (Q_c = %g, margin %.3g): %s", r.Q, r.Threshold, r.Margin, verdict)
	if r.CriticalPericenter != nil {
		s += fmt.Sprintf("\nr_crit = %.6g m", *r.CriticalPericenter)
	}
	if r.RequiredCoupling != nil {
		s += fmt.Sprintf("\nalpha_required = %.6g", *r.RequiredCoupling)
	}
	return s
}
