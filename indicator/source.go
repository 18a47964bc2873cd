package indicator

import "math"

// Source gives offset access to indicator series: offset 0 is the current
// bar, -1 the previous one. ok is false while the value is undefined, either
// because the series is still warming up or because the offset reaches past
// the available history. Positive offsets are never defined.
type Source interface {
	At(k Key, offset int) (v float64, ok bool)
}

// Frame is a static Source. Each slice holds a series oldest first, so the
// last element is offset 0. NaN marks an undefined value.
type Frame map[Key][]float64

func (f Frame) At(k Key, offset int) (float64, bool) {
	s := f[k]
	if offset > 0 {
		return 0, false
	}
	i := len(s) - 1 + offset
	if i < 0 {
		return 0, false
	}
	v := s[i]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
