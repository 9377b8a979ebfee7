package blink

import "math"

// DefaultThreshold is the average EAR below which both eyes count as closed.
const DefaultThreshold = 0.25

// Point is one face-landmark coordinate as reported by the detector.
// Z is carried through from the detector but ignored by EAR.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z,omitempty" yaml:"z,omitempty"`
}

// EyeIndices selects six landmarks of one eye in the order
// p1, p2 (horizontal corners), p3, p4 (upper lid), p5, p6 (lower lid).
type EyeIndices [6]int

// Face-mesh indices used by the browser extension.
var (
	DefaultLeftEye  = EyeIndices{362, 263, 386, 374, 380, 381}
	DefaultRightEye = EyeIndices{133, 33, 159, 145, 153, 144}
)

// EyeState is recomputed for every frame and never stored.
type EyeState struct {
	LeftEAR    float64 `json:"left_ear"`
	RightEAR   float64 `json:"right_ear"`
	AverageEAR float64 `json:"average_ear"`
	Closed     bool    `json:"is_closed"`
}

type Sampler struct {
	Threshold float64
	Left      EyeIndices
	Right     EyeIndices
}

// NewSampler returns a sampler over the default eye indices. A non-positive
// threshold selects DefaultThreshold.
func NewSampler(threshold float64) *Sampler {
	if threshold <= 0 || math.IsNaN(threshold) {
		threshold = DefaultThreshold
	}
	return &Sampler{
		Threshold: threshold,
		Left:      DefaultLeftEye,
		Right:     DefaultRightEye,
	}
}

// Sample computes the eye state of one frame. It is pure and never panics:
// indices outside the landmark slice read as the origin, and a zero corner
// distance produces a non-finite ratio that classifies as open.
func (s *Sampler) Sample(landmarks []Point) EyeState {
	left := EAR(landmarks, s.Left)
	right := EAR(landmarks, s.Right)
	avg := (left + right) / 2

	return EyeState{
		LeftEAR:    left,
		RightEAR:   right,
		AverageEAR: avg,
		Closed:     avg < s.Threshold,
	}
}

// Covers reports whether every index used by both eyes is present.
func (s *Sampler) Covers(landmarks []Point) bool {
	for _, eye := range []EyeIndices{s.Left, s.Right} {
		for _, idx := range eye {
			if idx < 0 || idx >= len(landmarks) {
				return false
			}
		}
	}
	return true
}

// EAR is (|p3-p6| + |p4-p5|) / (2 |p1-p2|).
func EAR(landmarks []Point, eye EyeIndices) float64 {
	p1 := at(landmarks, eye[0])
	p2 := at(landmarks, eye[1])
	p3 := at(landmarks, eye[2])
	p4 := at(landmarks, eye[3])
	p5 := at(landmarks, eye[4])
	p6 := at(landmarks, eye[5])

	a := distance(p3, p6)
	b := distance(p4, p5)
	c := distance(p1, p2)
	return (a + b) / (2 * c)
}

func at(landmarks []Point, idx int) Point {
	if idx < 0 || idx >= len(landmarks) {
		return Point{}
	}
	return landmarks[idx]
}

func distance(a, b Point) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}
