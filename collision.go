package bulletml

// Circle is anything collidable: a bullet, or a host's own ship/hitbox.
// PrevPos lets Collides sweep the circle's path over the last frame rather
// than only testing its current resting position, so a bullet doesn't
// tunnel through a thin target between two frames.
type Circle interface {
	Pos() (x, y float64)
	PrevPos() (x, y float64)
	Radius() float64
}

// Pos returns the bullet's current position, satisfying Circle.
func (b *Bullet) Pos() (x, y float64) { return b.X, b.Y }

// PrevPos returns the bullet's position as of the previous Step call,
// satisfying Circle.
func (b *Bullet) PrevPos() (x, y float64) { return b.PX, b.PY }

// Radius returns the bullet's collision radius, satisfying Circle.
func (b *Bullet) Radius() float64 { return b.radius }

const collisionEpsilon = 1e-9

// Overlaps reports whether two circles intersect right now, using only
// their current positions. Touching boundaries count as overlapping.
func Overlaps(a, b Circle) bool {
	ax, ay := a.Pos()
	bx, by := b.Pos()
	r := a.Radius() + b.Radius()
	return distanceSquared(ax, ay, bx, by) <= r*r
}

// Collides reports whether two circles intersected at any point during the
// frame that moved them from PrevPos to Pos, by testing the closest
// approach between their two swept segments.
func Collides(a, b Circle) bool {
	ax0, ay0 := a.PrevPos()
	ax1, ay1 := a.Pos()
	bx0, by0 := b.PrevPos()
	bx1, by1 := b.Pos()
	r := a.Radius() + b.Radius()

	// Work in the reference frame of a: reduce to "is b's relative swept
	// segment ever within r of the origin".
	relStartX, relStartY := bx0-ax0, by0-ay0
	relEndX, relEndY := bx1-ax1, by1-ay1
	dx, dy := relEndX-relStartX, relEndY-relStartY

	lenSq := dx*dx + dy*dy
	if lenSq < collisionEpsilon {
		return relStartX*relStartX+relStartY*relStartY <= r*r
	}

	t := -(relStartX*dx + relStartY*dy) / lenSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}

	closestX := relStartX + t*dx
	closestY := relStartY + t*dy
	return closestX*closestX+closestY*closestY <= r*r
}

// CollidesAny reports whether c collides with any of others, sweeping
// each.
func CollidesAny(c Circle, others []Circle) bool {
	for _, o := range others {
		if Collides(c, o) {
			return true
		}
	}
	return false
}

// CollidesAll returns every member of others that c collides with this
// frame.
func CollidesAll(c Circle, others []Circle) []Circle {
	var hits []Circle
	for _, o := range others {
		if Collides(c, o) {
			hits = append(hits, o)
		}
	}
	return hits
}

func distanceSquared(ax, ay, bx, by float64) float64 {
	dx, dy := bx-ax, by-ay
	return dx*dx + dy*dy
}
