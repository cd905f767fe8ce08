package bulletml

import "math"

// Target is anything a bullet can aim at. A host typically implements this
// on its player ship.
type Target interface {
	Position() (x, y float64)
}

// Bullet is a single live bullet: its kinematic state (position, polar
// velocity, Cartesian accel offset), the set of RunningActions driving it,
// and the bookkeeping a host needs to render and collide it.
//
// Direction is in degrees, measured from the +Y axis toward the +X axis:
// direction 0 moves a bullet toward increasing Y, and direction 90 toward
// increasing X.
type Bullet struct {
	X, Y   float64
	PX, PY float64

	Direction float64 // degrees
	Speed     float64
	Mx, My    float64 // Cartesian accel offset: Mx is added to X and My subtracted from Y every frame

	Rank float64

	// radius is the bullet's collision radius, surfaced through Radius() to
	// satisfy Circle. Defaults to 0.5.
	radius float64

	Target     Target
	Tags       map[string]struct{}
	Appearance string

	alive    bool
	finished bool

	actions []*RunningAction

	dirRamp *ramp
	spdRamp *ramp
	mxRamp  *ramp
	myRamp  *ramp

	parent *Bullet
}

// NewBullet creates a bullet directly from an ActionDef list, bypassing any
// BulletDef. This is the entry point a host uses to start a simulation: it
// has no owner of its own to inherit position or speed from, so x, y,
// direction and speed must all be given explicitly.
func NewBullet(actions []*ActionDef, x, y, direction, speed, rank float64, target Target) *Bullet {
	b := &Bullet{
		X: x, Y: y, PX: x, PY: y,
		Direction: direction,
		Speed:     speed,
		Rank:      rank,
		radius:    0.5,
		Target:    target,
		Tags:      make(map[string]struct{}),
		alive:     true,
	}
	for _, def := range actions {
		b.actions = append(b.actions, newRunningAction(def, nil, rank, nil))
	}
	return b
}

// NewTopLevelBullet creates a bullet running every one of doc's top-level
// actions, using opts.Rank and opts.DefaultSpeed as its initial rank and
// speed. This is the usual way a host starts a simulation after Load.
func NewTopLevelBullet(doc *Document, opts *Options, x, y, direction float64, target Target) *Bullet {
	return NewBullet(doc.TopActions(), x, y, direction, opts.DefaultSpeed, opts.Rank, target)
}

// Alive reports whether the bullet has not yet vanished. Unlike Finished,
// this stays true for a bullet that ran out of actions but was never
// explicitly vanished.
func (b *Bullet) Alive() bool {
	return b.alive
}

// Finished reports whether the bullet is ready to be dropped by the host: it
// has vanished and every RunningAction it was driving has itself run to
// completion. Finished becomes true on the first Step after the bullet
// vanishes, so a bullet is !Alive() for one Step before Finished is true.
func (b *Bullet) Finished() bool {
	return b.finished
}

// Vanish marks the bullet as vanished and stops every RunningAction attached
// to it: none of them runs another opcode, so the bullet fires nothing more.
// The next Step drops the stopped actions and sets Finished.
func (b *Bullet) Vanish() {
	b.alive = false
	for _, ra := range b.actions {
		ra.dead = true
	}
}

// AddTag adds a label to the bullet's tag set.
func (b *Bullet) AddTag(tag string) {
	if b.Tags == nil {
		b.Tags = make(map[string]struct{})
	}
	b.Tags[tag] = struct{}{}
}

// RemoveTag removes a label from the bullet's tag set.
func (b *Bullet) RemoveTag(tag string) {
	delete(b.Tags, tag)
}

// HasTag reports whether the bullet currently carries the given tag.
func (b *Bullet) HasTag(tag string) bool {
	_, ok := b.Tags[tag]
	return ok
}

// Parent returns the bullet whose <fire> spawned this one, or nil if the
// bullet was created directly by NewBullet.
func (b *Bullet) Parent() *Bullet {
	return b.parent
}

// Aim returns the angle, in degrees, from the bullet toward its target, in
// the same convention as Direction (0 toward increasing Y, 90 toward
// increasing X). It returns 0 if the bullet has no target.
func (b *Bullet) Aim() float64 {
	if b.Target == nil {
		return 0
	}
	tx, ty := b.Target.Position()
	return math.Atan2(tx-b.X, ty-b.Y) * 180 / math.Pi
}

func sinDeg(deg float64) float64 { return math.Sin(deg * math.Pi / 180) }
func cosDeg(deg float64) float64 { return math.Cos(deg * math.Pi / 180) }

// normalizeAngleDeg wraps deg into [-180, 180), the short way around a full
// turn. changeDirection uses this on a target's delta from the owner's
// current direction so a turn from 350 to 10 rotates +20 degrees rather than
// the long way around at -340.
func normalizeAngleDeg(deg float64) float64 {
	deg = math.Mod(deg+180, 360)
	if deg < 0 {
		deg += 360
	}
	return deg - 180
}

// Step advances the bullet, and every RunningAction attached to it, by one
// simulation frame: it applies any active direction/speed/accel ramps,
// runs the bullet's action trees until each either suspends (a wait, a fire
// or a vanish) or runs to completion, then integrates position.
// Newly fired bullets are appended to spawned.
//
// Once the bullet has vanished, Step stops driving motion and fires: Vanish
// has stopped every RunningAction, so the next Step only drops them and sets
// Finished.
func (b *Bullet) Step(opts *Options, spawned *[]*Bullet) error {
	if b.finished {
		return nil
	}

	if !b.alive {
		e := &evalEnv{rng: opts.rng()}
		live := b.actions[:0]
		for _, ra := range b.actions {
			done, err := ra.tick(b, e, spawned)
			if err != nil {
				return err
			}
			if !done {
				live = append(live, ra)
			}
		}
		b.actions = live
		b.finished = len(b.actions) == 0
		return nil
	}

	if b.dirRamp != nil {
		b.Direction = b.dirRamp.tick(b.Direction, b.Aim())
		if b.dirRamp.framesLeft <= 0 {
			b.dirRamp = nil
		}
	}
	if b.spdRamp != nil {
		b.Speed = b.spdRamp.tick(b.Speed, 0)
		if b.spdRamp.framesLeft <= 0 {
			b.spdRamp = nil
		}
	}
	if b.mxRamp != nil {
		b.Mx = b.mxRamp.tick(b.Mx, 0)
		if b.mxRamp.framesLeft <= 0 {
			b.mxRamp = nil
		}
	}
	if b.myRamp != nil {
		b.My = b.myRamp.tick(b.My, 0)
		if b.myRamp.framesLeft <= 0 {
			b.myRamp = nil
		}
	}

	e := &evalEnv{rng: opts.rng()}

	before := len(*spawned)
	live := b.actions[:0]
	for _, ra := range b.actions {
		if !b.alive {
			break
		}
		done, err := ra.tick(b, e, spawned)
		if err != nil {
			return err
		}
		if !done {
			live = append(live, ra)
		}
	}
	b.actions = live

	b.PX, b.PY = b.X, b.Y
	b.X += b.Mx + sinDeg(b.Direction)*b.Speed
	b.Y += -b.My + cosDeg(b.Direction)*b.Speed

	if opts.OnFire != nil {
		for _, fired := range (*spawned)[before:] {
			opts.OnFire(b, fired)
		}
	}
	if !b.alive {
		b.finished = len(b.actions) == 0
		if opts.OnVanish != nil {
			opts.OnVanish(b)
		}
	}

	return nil
}

// spawnFromFire builds a new Bullet from a (possibly referenced) FireDef,
// evaluating its direction/speed/offset against owner's current state and
// ra's previous-fire memory, then starts its bullet definition's actions.
func spawnFromFire(f *FireDef, params Params, rank float64, owner *Bullet, ra *RunningAction, e *evalEnv) (*Bullet, error) {
	bulletDef, bulletParams, err := resolveFireBullet(f, params, rank, e)
	if err != nil {
		return nil, err
	}

	dir := f.Direction
	if dir == nil {
		dir = bulletDef.Direction
	}
	spd := f.Speed
	if spd == nil {
		spd = bulletDef.Speed
	}

	direction, err := evalFireDirection(dir, owner, ra, e)
	if err != nil {
		return nil, err
	}
	speed, err := evalFireSpeed(spd, owner, ra, e)
	if err != nil {
		return nil, err
	}

	ox, oy := owner.X, owner.Y
	if f.Offset != nil {
		dx, dy, err := f.Offset.eval(params, rank, e)
		if err != nil {
			return nil, err
		}
		if f.Offset.Type == OffsetTypeAbsolute {
			ox, oy = owner.X+dx, owner.Y+dy
		} else {
			// Rotated into the firing direction's frame, not added raw, so
			// an offset reads as "ahead of"/"beside" the bullet regardless
			// of which way it's pointed.
			ox = owner.X + cosDeg(direction)*dx + sinDeg(direction)*dy
			oy = owner.Y + sinDeg(direction)*dx - cosDeg(direction)*dy
		}
	}

	b := &Bullet{
		X: ox, Y: oy, PX: ox, PY: oy,
		Direction: direction,
		Speed:     speed,
		Rank:      rank,
		radius:    0.5,
		Target:    owner.Target,
		Tags:      make(map[string]struct{}),
		alive:     true,
		parent:    owner,
	}
	for _, t := range bulletDef.Tags {
		b.AddTag(t)
	}
	for _, t := range f.Tags {
		b.AddTag(t)
	}
	switch {
	case f.Appearance != nil:
		b.Appearance = *f.Appearance
	case bulletDef.Appearance != nil:
		b.Appearance = *bulletDef.Appearance
	default:
		b.Appearance = owner.Appearance
	}

	for _, a := range bulletDef.Actions {
		actionParams, err := a.evalParams(bulletParams, rank, e)
		if err != nil {
			return nil, err
		}
		actionParams = mergeParams(bulletParams, actionParams)
		b.actions = append(b.actions, newRunningAction(a.resolvedAction(), actionParams, rank, nil))
	}

	ra.setPreviousFire(direction, speed)
	return b, nil
}

func resolveFireBullet(f *FireDef, params Params, rank float64, e *evalEnv) (*BulletDef, Params, error) {
	switch bd := f.Bullet.(type) {
	case *BulletDef:
		return bd, params, nil
	case *BulletRef:
		refParams, err := evalParamList(bd.Params, params, rank, e)
		if err != nil {
			return nil, nil, err
		}
		return bd.resolved, mergeParams(params, refParams), nil
	default:
		return nil, nil, newParseErrorf(f, "%w: <fire> has no bullet", ErrMissingChild)
	}
}

func evalFireDirection(d *Direction, owner *Bullet, ra *RunningAction, e *evalEnv) (float64, error) {
	if d == nil {
		return owner.Aim(), nil
	}
	value, err := d.compiled.Eval(ra.params, ra.rank, e.rng)
	if err != nil {
		return 0, err
	}
	switch d.Type {
	case DirectionTypeAbsolute:
		return value, nil
	case DirectionTypeRelative:
		return owner.Direction + value, nil
	case DirectionTypeSequence:
		root := ra.root()
		if !root.hasFired {
			return owner.Aim() + value, nil
		}
		return root.previousFireDirection + value, nil
	default: // aim
		return owner.Aim() + value, nil
	}
}

func evalFireSpeed(s *Speed, owner *Bullet, ra *RunningAction, e *evalEnv) (float64, error) {
	if s == nil {
		return 1, nil
	}
	value, err := s.compiled.Eval(ra.params, ra.rank, e.rng)
	if err != nil {
		return 0, err
	}
	switch s.Type {
	case SpeedTypeRelative:
		// Deviates from speed-relative-to-previous-fire: uses the owner's
		// current speed, matching this package's reference implementation.
		return owner.Speed + value, nil
	case SpeedTypeSequence:
		root := ra.root()
		if !root.hasFired {
			return owner.Speed + value, nil
		}
		return root.previousFireSpeed + value, nil
	default: // absolute
		return value, nil
	}
}

func (ra *RunningAction) root() *RunningAction {
	r := ra
	for r.parent != nil {
		r = r.parent
	}
	return r
}

func (ra *RunningAction) setPreviousFire(direction, speed float64) {
	root := ra.root()
	root.previousFireDirection = direction
	root.previousFireSpeed = speed
	root.hasFired = true
}
