package blink

// MeshSize is the landmark count of the refined face mesh.
const MeshSize = 478

// SyntheticFace builds a mesh whose default eye landmarks produce the given
// aspect ratios. Every other landmark sits at the origin. Used by the replay
// tooling to generate traces without a camera.
func SyntheticFace(leftEAR, rightEAR float64) []Point {
	pts := make([]Point, MeshSize)
	placeEye(pts, DefaultLeftEye, 10, leftEAR)
	placeEye(pts, DefaultRightEye, 0, rightEAR)
	return pts
}

// placeEye puts the corners one unit apart and both lid pairs ear units apart.
func placeEye(pts []Point, eye EyeIndices, x0, ear float64) {
	pts[eye[0]] = Point{X: x0, Y: 5}
	pts[eye[1]] = Point{X: x0 + 1, Y: 5}
	pts[eye[2]] = Point{X: x0 + 0.3, Y: 5 + ear}
	pts[eye[5]] = Point{X: x0 + 0.3, Y: 5}
	pts[eye[3]] = Point{X: x0 + 0.6, Y: 5 + ear}
	pts[eye[4]] = Point{X: x0 + 0.6, Y: 5}
}
