// Package catalog holds observed collapse candidates in astronomical units
// and assesses them against the collapse criterion.
package catalog

import (
	"strings"
	"time"

	dErrors "luftscan/pkg/domain-errors"
	"luftscan/pkg/platform/names"
)

// Unit conversions to SI.
const (
	SolarMass          = 1.989e30 // kg
	Kiloparsec         = 3.086e19 // m
	KilometrePerSecond = 1e3      // m/s
)

// Candidate is one observed object with the encounter it is thought to
// have had.
type Candidate struct {
	Name          string    `json:"name"`
	Survey        string    `json:"survey"`
	Redshift      float64   `json:"redshift"`
	MassSolar     float64   `json:"mass_msun"`
	PericenterKpc float64   `json:"pericenter_kpc"`
	VelocityKms   float64   `json:"velocity_kms"`
	Notes         string    `json:"notes,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Validate checks the fields every assessment needs.
func (c Candidate) Validate() error {
	if !names.Valid(c.Name) {
		return dErrors.Newf(dErrors.CodeInvalidInput, "invalid candidate name %q", c.Name)
	}
	if c.Redshift < 0 {
		return dErrors.Newf(dErrors.CodeInvalidInput, "candidate %s: redshift must be non-negative", c.Name)
	}
	if c.MassSolar <= 0 || c.PericenterKpc <= 0 || c.VelocityKms <= 0 {
		return dErrors.Newf(dErrors.CodeInvalidInput, "candidate %s: mass, pericenter and velocity must be positive", c.Name)
	}
	return nil
}

// Filter selects candidates. Zero fields match everything.
type Filter struct {
	Survey      string
	MinRedshift float64
	MaxRedshift float64
}

func (f Filter) match(c Candidate) bool {
	if f.Survey != "" && !strings.EqualFold(f.Survey, c.Survey) {
		return false
	}
	if c.Redshift < f.MinRedshift {
		return false
	}
	return f.MaxRedshift == 0 || c.Redshift <= f.MaxRedshift
}
