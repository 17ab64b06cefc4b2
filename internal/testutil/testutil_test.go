package testutil

import "testing"

func TestRampCloud(t *testing.T) {
	cloud := RampCloud(5, 2.0, 0.5)
	if cloud.Len() != 5 {
		t.Fatalf("expected 5 points, got %d", cloud.Len())
	}
	p := cloud.At(4)
	if p.X != 8 || p.Z != 4 {
		t.Errorf("last point = %+v, want X=8 Z=4", p)
	}
}

func TestStackCloud(t *testing.T) {
	cloud := StackCloud(1, 2, []float64{3, 4, 5})
	if cloud.Len() != 3 {
		t.Fatalf("expected 3 points, got %d", cloud.Len())
	}
	for i := 0; i < cloud.Len(); i++ {
		p := cloud.At(i)
		if p.X != 1 || p.Y != 2 {
			t.Errorf("point %d planar position = (%g, %g), want (1, 2)", i, p.X, p.Y)
		}
	}
}

func TestRandomCloud_Deterministic(t *testing.T) {
	a := RandomCloud(10, 100, 7)
	b := RandomCloud(10, 100, 7)
	for i := 0; i < a.Len(); i++ {
		if a.At(i) != b.At(i) {
			t.Fatalf("point %d differs between identically seeded clouds", i)
		}
	}
}
