package prior

// Physical scales used by WidePriors.
const (
	solarMass  = 1.989e30 // kg
	kiloparsec = 3.086e19 // m
	kmPerSec   = 1e3      // m/s
)

// WidePriors returns a fresh specification over deliberately wide ranges,
// meant for a first exploratory scan before bounds are narrowed:
//
//	M                10⁶ – 10¹¹ M☉          log-uniform
//	r_p              0.1 – 100 kpc          log-uniform
//	v_rel            50 – 1000 km/s         log-uniform
//	alpha            10⁻⁶ – 10⁻¹            log-uniform
//	m_eq             10⁻¹⁰ – 10² kg         log-uniform
//	density_contrast 0 – 10                 uniform
//
// Each call returns a new value; there is no shared default.
func WidePriors() *Specification {
	spec, err := NewSpecification(
		Parameter{Name: "M", Kind: LogUniform, Lower: 1e6 * solarMass, Upper: 1e11 * solarMass},
		Parameter{Name: "r_p", Kind: LogUniform, Lower: 0.1 * kiloparsec, Upper: 100 * kiloparsec},
		Parameter{Name: "v_rel", Kind: LogUniform, Lower: 50 * kmPerSec, Upper: 1000 * kmPerSec},
		Parameter{Name: "alpha", Kind: LogUniform, Lower: 1e-6, Upper: 1e-1},
		Parameter{Name: "m_eq", Kind: LogUniform, Lower: 1e-10, Upper: 1e2},
		Parameter{Name: "density_contrast", Kind: Uniform, Lower: 0, Upper: 10},
	)
	if err != nil {
		panic("prior: invalid wide priors: " + err.Error())
	}
	return spec
}
