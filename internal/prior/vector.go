package prior

// Vector is one sampled point: a value per parameter, in specification
// order. Vectors are never mutated after construction; accessors return
// copies.
type Vector struct {
	names  []string
	values []float64
}

// Len is the number of values.
func (v Vector) Len() int { return len(v.values) }

// At returns the i-th value in specification order.
func (v Vector) At(i int) float64 { return v.values[i] }

// Value returns the value for a parameter name.
func (v Vector) Value(name string) (float64, bool) {
	for i, n := range v.names {
		if n == name {
			return v.values[i], true
		}
	}
	return 0, false
}

// Values returns a copy of the values in specification order.
func (v Vector) Values() []float64 {
	return append([]float64(nil), v.values...)
}

// Names returns a copy of the parameter names in specification order.
func (v Vector) Names() []string {
	return append([]string(nil), v.names...)
}

// Map returns the vector as a name → value map.
func (v Vector) Map() map[string]float64 {
	m := make(map[string]float64, len(v.values))
	for i, n := range v.names {
		m[n] = v.values[i]
	}
	return m
}
