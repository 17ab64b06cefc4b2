package terrain

import "fmt"

// MinSampleCount is the smallest legal number of profile samples. One sample
// cannot carry a distance axis, so the contract starts at two.
const MinSampleCount = 2

// SampleLine returns count positions linearly interpolated between the
// segment's endpoints, both inclusive, parameterized by t_i = i/(count-1).
// A degenerate segment is legal: every returned position equals Start.
func SampleLine(line LineSegment, count int) ([]Vec3, error) {
	if count < MinSampleCount {
		return nil, fmt.Errorf("%w: sample count %d (minimum %d)", ErrInvalidArgument, count, MinSampleCount)
	}

	delta := line.End.Sub(line.Start)
	positions := make([]Vec3, count)
	for i := range positions {
		t := float64(i) / float64(count-1)
		positions[i] = line.Start.Add(delta.Scale(t))
	}
	return positions, nil
}
