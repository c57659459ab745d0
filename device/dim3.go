package device

// Dim3 holds grid or block extents of a kernel launch
type Dim3 struct {
	X, Y, Z int
}

// NewDim3 fills missing extents with 1
func NewDim3(xyz ...int) Dim3 {
	d := Dim3{X: 1, Y: 1, Z: 1}
	if len(xyz) > 0 {
		d.X = xyz[0]
	}
	if len(xyz) > 1 {
		d.Y = xyz[1]
	}
	if len(xyz) > 2 {
		d.Z = xyz[2]
	}
	return d
}

// Size returns the total number of blocks or threads
func (d Dim3) Size() int {
	x, y, z := d.X, d.Y, d.Z
	if x < 1 {
		x = 1
	}
	if y < 1 {
		y = 1
	}
	if z < 1 {
		z = 1
	}
	return x * y * z
}

// IsZero reports whether no extent was set
func (d Dim3) IsZero() bool {
	return d.X == 0 && d.Y == 0 && d.Z == 0
}
