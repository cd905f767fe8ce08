package bulletml

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type staticCircle struct {
	x, y, px, py, r float64
}

func (c staticCircle) Pos() (float64, float64)     { return c.x, c.y }
func (c staticCircle) PrevPos() (float64, float64) { return c.px, c.py }
func (c staticCircle) Radius() float64             { return c.r }

func TestOverlapsBoundaryInclusive(t *testing.T) {
	a := staticCircle{x: 0, y: 0, r: 1}
	b := staticCircle{x: 2, y: 0, r: 1}
	require.True(t, Overlaps(a, b), "touching circles at distance exactly 2 should overlap")

	b.x = 2 + 1e-6
	require.False(t, Overlaps(a, b), "circles separated beyond their combined radius should not overlap")
}

func TestCollidesCrossingDiagonals(t *testing.T) {
	a := staticCircle{px: 100, py: 100, x: 0, y: 0, r: 1}
	b := staticCircle{px: 100, py: 0, x: 0, y: 100, r: 1}
	require.True(t, Collides(a, b))
}

func TestCollidesNoIntersectionWhenFarApart(t *testing.T) {
	a := staticCircle{px: 0, py: 0, x: 1, y: 0, r: 1}
	b := staticCircle{px: 100, py: 100, x: 101, y: 100, r: 1}
	require.False(t, Collides(a, b))
}

func TestCollidesDegenerateZeroLengthSweep(t *testing.T) {
	a := staticCircle{px: 0, py: 0, x: 0, y: 0, r: 1}
	b := staticCircle{px: 0.5, py: 0, x: 0.5, y: 0, r: 1}
	require.True(t, Collides(a, b))
}

func TestCollidesAnyAndAll(t *testing.T) {
	a := staticCircle{px: 0, py: 0, x: 0, y: 0, r: 1}
	near := staticCircle{px: 0.5, py: 0, x: 0.5, y: 0, r: 1}
	far := staticCircle{px: 100, py: 100, x: 100, y: 100, r: 1}

	others := []Circle{near, far}
	require.True(t, CollidesAny(a, others))
	require.Equal(t, []Circle{near}, CollidesAll(a, others))
}

func TestBulletSatisfiesCircle(t *testing.T) {
	b := NewBullet(nil, 1, 2, 0, 0, 0, nil)
	x, y := b.Pos()
	require.Equal(t, 1.0, x)
	require.Equal(t, 2.0, y)
	px, py := b.PrevPos()
	require.Equal(t, x, px)
	require.Equal(t, y, py)
	require.Equal(t, 0.5, b.Radius())
}
