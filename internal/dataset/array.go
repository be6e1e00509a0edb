package dataset

import (
	"fmt"
	"strconv"
	"strings"
)

// Array is an N-dimensional float64 array with the first axis as time.
//
// Data is stored flat in row-major order. All numeric content in the
// model is float64; importers convert recorded sample formats on read.
type Array struct {
	Shape []int
	Data  []float64
}

// NewArray wraps data in an Array after checking it against shape.
func NewArray(shape []int, data []float64) (*Array, error) {
	if len(shape) == 0 {
		return nil, fmt.Errorf("%w: array shape is empty", ErrMetadata)
	}
	size := 1
	for _, dim := range shape {
		if dim < 0 {
			return nil, fmt.Errorf("%w: negative array dimension %d", ErrMetadata, dim)
		}
		size *= dim
	}
	if size != len(data) {
		return nil, fmt.Errorf(
			"%w: shape %s holds %d elements but %d were given",
			ErrMetadata, ShapeString(shape), size, len(data))
	}
	return &Array{Shape: append([]int{}, shape...), Data: data}, nil
}

// Zeros allocates a zero-filled Array of the given shape.
func Zeros(shape ...int) *Array {
	size := 1
	for _, dim := range shape {
		size *= dim
	}
	return &Array{Shape: append([]int{}, shape...), Data: make([]float64, size)}
}

// Frames returns the length of the time axis.
func (a *Array) Frames() int {
	if a == nil || len(a.Shape) == 0 {
		return 0
	}
	return a.Shape[0]
}

// FrameSize returns the number of elements in one time step.
func (a *Array) FrameSize() int {
	if a == nil || len(a.Shape) == 0 {
		return 0
	}
	size := 1
	for _, dim := range a.Shape[1:] {
		size *= dim
	}
	return size
}

// Frame returns the flat slice of elements at time index i. The slice
// aliases the Array's storage.
func (a *Array) Frame(i int) []float64 {
	size := a.FrameSize()
	return a.Data[i*size : (i+1)*size]
}

// SameShape reports whether both arrays have identical size and shape.
func (a *Array) SameShape(other *Array) bool {
	if a == nil || other == nil {
		return false
	}
	if len(a.Shape) != len(other.Shape) || len(a.Data) != len(other.Data) {
		return false
	}
	for i, dim := range a.Shape {
		if other.Shape[i] != dim {
			return false
		}
	}
	return true
}

// Clone returns a deep copy.
func (a *Array) Clone() *Array {
	if a == nil {
		return nil
	}
	data := make([]float64, len(a.Data))
	copy(data, a.Data)
	return &Array{Shape: append([]int{}, a.Shape...), Data: data}
}

// ShapeString renders a shape as "96x64x412" for error messages and
// persistence.
func ShapeString(shape []int) string {
	parts := make([]string, len(shape))
	for i, dim := range shape {
		parts[i] = strconv.Itoa(dim)
	}
	return strings.Join(parts, "x")
}

// ParseShape parses the ShapeString format.
func ParseShape(value string) ([]int, error) {
	parts := strings.Split(strings.TrimSpace(value), "x")
	shape := make([]int, 0, len(parts))
	for _, part := range parts {
		dim, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("%w: bad shape %q", ErrMetadata, value)
		}
		shape = append(shape, dim)
	}
	if len(shape) == 0 {
		return nil, fmt.Errorf("%w: empty shape %q", ErrMetadata, value)
	}
	return shape, nil
}
