// Package rational implements the exact rational-time arithmetic the core
// uses for every clip position and duration. Unlike a float-seconds model,
// Time keeps an integer frame count alongside its rate so that repeated
// edits never accumulate rounding drift.
package rational

import (
	"fmt"
	"math"
)

// Time is an exact rational time value: frames at num/den frames per second.
type Time struct {
	Frames int64
	Num    uint32
	Den    uint32
}

// New constructs a Time, panicking if the rate is malformed. Rates come from
// sequence/clip records that are validated at load time, so a bad rate here
// indicates a programming error, not bad input.
func New(frames int64, num, den uint32) Time {
	if den < 1 || num < 1 {
		panic(fmt.Sprintf("rational: invalid rate %d/%d", num, den))
	}
	return Time{Frames: frames, Num: num, Den: den}
}

// Zero returns the zero time at the given rate.
func Zero(num, den uint32) Time {
	return New(0, num, den)
}

// FromSeconds builds a Time from a floating point second count, rounding to
// the nearest frame (ties to even), at the given rate.
func FromSeconds(seconds float64, num, den uint32) Time {
	fps := float64(num) / float64(den)
	return New(roundHalfEven(seconds*fps), num, den)
}

// FromMS builds a Time from a millisecond count, rounded half-even to the
// nearest frame, at the given rate. Per §4.1, delta_ms is advisory only —
// callers should prefer delta_frames when both are available.
func FromMS(ms float64, num, den uint32) Time {
	fps := float64(num) / float64(den)
	return New(roundHalfEven(ms/1000.0*fps), num, den)
}

// ToMS returns the time in milliseconds as a double.
func (t Time) ToMS() float64 {
	fps := float64(t.Num) / float64(t.Den)
	return float64(t.Frames) / fps * 1000.0
}

// ToSamples converts the time to an audio sample count at the given sample
// rate. This is a lossy conversion; it is only used at external boundaries.
func (t Time) ToSamples(sampleRate float64) int64 {
	fps := float64(t.Num) / float64(t.Den)
	seconds := float64(t.Frames) / fps
	return int64(roundHalfEven(seconds * sampleRate))
}

// roundHalfEven rounds to the nearest integer, breaking ties to even, which
// is what §4.1's "rounded half-even" calls for.
func roundHalfEven(v float64) int64 {
	floor := math.Floor(v)
	diff := v - floor
	switch {
	case diff < 0.5:
		return int64(floor)
	case diff > 0.5:
		return int64(floor) + 1
	default:
		if int64(floor)%2 == 0 {
			return int64(floor)
		}
		return int64(floor) + 1
	}
}

// Rescale returns the equivalent time at a new rate, per §4.1:
// frames' = round(frames * n' * den / (num * d')).
func (t Time) Rescale(num, den uint32) Time {
	if t.Num == num && t.Den == den {
		return t
	}
	numerator := float64(t.Frames) * float64(num) * float64(t.Den)
	denominator := float64(t.Num) * float64(den)
	return New(roundHalfEven(numerator/denominator), num, den)
}

// sameRate returns a and b rescaled to a common rate, preferring the side
// with the larger denominator as the authoritative rate, per §4.1 ("rescale
// the smaller-denominator side").
func sameRate(a, b Time) (Time, Time) {
	if a.Num == b.Num && a.Den == b.Den {
		return a, b
	}
	if b.Den > a.Den {
		return a.Rescale(b.Num, b.Den), b
	}
	return a, b.Rescale(a.Num, a.Den)
}

// Add returns a+b, rescaling to a common rate first if needed.
func (t Time) Add(o Time) Time {
	a, b := sameRate(t, o)
	return New(a.Frames+b.Frames, a.Num, a.Den)
}

// Sub returns t-o, rescaling to a common rate first if needed.
func (t Time) Sub(o Time) Time {
	a, b := sameRate(t, o)
	return New(a.Frames-b.Frames, a.Num, a.Den)
}

// Negate returns -t.
func (t Time) Negate() Time {
	return New(-t.Frames, t.Num, t.Den)
}

// Cmp compares t and o via cross-multiplication, returning -1, 0, or 1. This
// avoids any intermediate float rounding during ordering decisions.
func (t Time) Cmp(o Time) int {
	lhs := t.Frames * int64(t.Den) * int64(o.Num)
	rhs := o.Frames * int64(o.Den) * int64(t.Num)
	switch {
	case lhs < rhs:
		return -1
	case lhs > rhs:
		return 1
	default:
		return 0
	}
}

// Less reports whether t < o.
func (t Time) Less(o Time) bool { return t.Cmp(o) < 0 }

// Equal reports whether t == o.
func (t Time) Equal(o Time) bool { return t.Cmp(o) == 0 }

// IsZero reports whether t is exactly zero at its own rate.
func (t Time) IsZero() bool { return t.Frames == 0 }

// Clamp returns t clamped into [lo, hi], all at potentially different rates.
func Clamp(t, lo, hi Time) Time {
	if t.Less(lo) {
		return lo
	}
	if hi.Less(t) {
		return hi
	}
	return t
}

// Min returns the smaller of a and b.
func Min(a, b Time) Time {
	if a.Less(b) {
		return a
	}
	return b
}

// Max returns the larger of a and b.
func Max(a, b Time) Time {
	if a.Less(b) {
		return b
	}
	return a
}

// Hydrated is anything that can supply a frame count, a {frames,n,d} table,
// or be interpreted as a bare number of frames at a default rate. External
// surfaces (command parameters coming off the wire) produce one of these;
// Hydrate turns it into an exact Time.
type Hydrated interface{}

// Hydrate accepts a Time, a map with frames/num/den keys, or a bare number
// (int64 or float64) interpreted as frames at (defaultNum, defaultDen), per
// §4.1. It returns an error if value is none of these shapes.
func Hydrate(value Hydrated, defaultNum, defaultDen uint32) (Time, error) {
	switch v := value.(type) {
	case Time:
		return v, nil
	case *Time:
		if v == nil {
			return Time{}, fmt.Errorf("rational: hydrate: nil *Time")
		}
		return *v, nil
	case map[string]any:
		frames, frOK := toInt64(v["frames"])
		num, numOK := toUint32(v["num"])
		den, denOK := toUint32(v["den"])
		if !frOK {
			return Time{}, fmt.Errorf("rational: hydrate: table missing frames")
		}
		if !numOK {
			num = defaultNum
		}
		if !denOK {
			den = defaultDen
		}
		return New(frames, num, den), nil
	case int64:
		return New(v, defaultNum, defaultDen), nil
	case int:
		return New(int64(v), defaultNum, defaultDen), nil
	case float64:
		return New(int64(roundHalfEven(v)), defaultNum, defaultDen), nil
	default:
		return Time{}, fmt.Errorf("rational: hydrate: unsupported value %T; bare numbers require an explicit rate context", value)
	}
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(roundHalfEven(n)), true
	default:
		return 0, false
	}
}

func toUint32(v any) (uint32, bool) {
	switch n := v.(type) {
	case uint32:
		return n, true
	case int:
		return uint32(n), true
	case int64:
		return uint32(n), true
	case float64:
		return uint32(n), true
	default:
		return 0, false
	}
}

func (t Time) String() string {
	return fmt.Sprintf("%d@%d/%d", t.Frames, t.Num, t.Den)
}
