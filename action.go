package bulletml

import "math/rand"

// evalEnv carries the pieces of evaluation context that don't belong to any
// one expression: the random source driving $rand, shared by every Expr
// evaluated while stepping a simulation tick.
type evalEnv struct {
	rng *rand.Rand
}

// rampMode selects how a ramp's per-frame value is derived.
type rampMode int

const (
	rampTarget rampMode = iota // interpolate toward a fixed target over the remaining frames
	rampDelta                  // add a fixed amount every frame (BulletML "sequence")
)

// ramp is one axis of continuous motion interpolation: direction, speed, or
// either half of an accel offset. A direction ramp armed by the "aim"
// change-direction type carries aiming=true: every frame but the last it
// interpolates toward the target direction captured when the ramp was
// armed, but on its final frame it discards that target and instead adds a
// freshly re-sampled aim to the current direction, so a homing turn's last
// step always corrects toward where the target actually ended up, not where
// it was standing when the turn began.
type ramp struct {
	mode       rampMode
	target     float64
	delta      float64
	aiming     bool
	framesLeft int
}

// tick advances the ramp by one frame and returns the new value for the
// field it drives. aim is the owner's current aim angle, consulted only on
// an aiming ramp's final frame.
func (r *ramp) tick(current, aim float64) float64 {
	var next float64
	switch {
	case r.aiming && r.framesLeft == 1:
		next = current + aim
	case r.mode == rampDelta:
		next = current + r.delta
	default:
		step := (r.target - current) / float64(r.framesLeft)
		next = current + step
	}
	r.framesLeft--
	return next
}

func newRamp(mode rampMode, current, target, delta float64, frames int) *ramp {
	if frames < 1 {
		frames = 1
	}
	return &ramp{mode: mode, target: target, delta: delta, framesLeft: frames}
}

func newAimRamp(current, target float64, frames int) *ramp {
	r := newRamp(rampTarget, current, target, 0, frames)
	r.aiming = true
	return r
}

func magnitudeRamp(t MagnitudeType, current, value float64, frames int) *ramp {
	switch t {
	case MagnitudeTypeRelative:
		return newRamp(rampTarget, current, current+value, 0, frames)
	case MagnitudeTypeSequence:
		return newRamp(rampDelta, current, 0, value, frames)
	default:
		return newRamp(rampTarget, current, value, 0, frames)
	}
}

// applyMagnitudeImmediate computes an accel axis's new value when its term
// is not positive, so there is no frame left to ramp over.
func applyMagnitudeImmediate(t MagnitudeType, current, value float64) float64 {
	switch t {
	case MagnitudeTypeRelative, MagnitudeTypeSequence:
		return current + value
	default:
		return value
	}
}

// stepKind is the outcome of executing one opcode.
type stepKind int

const (
	stepAdvance stepKind = iota
	stepWait
	stepPushChild
)

type stepResult struct {
	kind   stepKind
	frames int
	child  *RunningAction
}

// opcode is implemented by every element that can appear in an <action>'s
// command list.
type opcode interface {
	node
	setParent(node) error
	prepare(*refResolver) error
	exec(ctx *execContext) (stepResult, error)
}

// execContext is passed to an opcode's exec method: everything it might
// need to mutate the owning bullet, spawn children, or consult shared
// evaluation state.
type execContext struct {
	owner   *Bullet
	ra      *RunningAction
	e       *evalEnv
	spawned *[]*Bullet
}

// RunningAction is one independently scheduled instruction pointer over an
// ActionDef's command list, plus (recursively) whichever nested action is
// currently active beneath it - the body of a <repeat>, the branch taken by
// an <if>, or the target of an <actionRef>/inline <action> command.
//
// A Bullet may run several RunningActions concurrently (one per top-level
// <action>/<actionRef> its BulletDef lists); they share the bullet's motion
// state but each keeps its own instruction pointer and parameter scope.
type RunningAction struct {
	def     *ActionDef
	params  Params
	rank    float64
	pc      int
	wait    int
	child   *RunningAction
	parent  *RunningAction
	scratch map[opcode]int
	dead    bool

	previousFireDirection float64
	previousFireSpeed     float64
	hasFired              bool
}

func newRunningAction(def *ActionDef, params Params, rank float64, parent *RunningAction) *RunningAction {
	return &RunningAction{def: def, params: params, rank: rank, parent: parent}
}

func (ra *RunningAction) scratchGet(op opcode) int {
	return ra.scratch[op]
}

func (ra *RunningAction) scratchSet(op opcode, v int) {
	if ra.scratch == nil {
		ra.scratch = make(map[opcode]int)
	}
	ra.scratch[op] = v
}

func (ra *RunningAction) scratchClear(op opcode) {
	delete(ra.scratch, op)
}

// Done reports whether this instruction pointer has run off the end of its
// command list (including any nested children), or was stopped by its
// bullet vanishing, and will never advance again.
func (ra *RunningAction) Done() bool {
	return ra.dead
}

// tick advances this instruction pointer, and everything nested beneath
// it, by exactly one simulation frame. It returns true once the underlying
// command list (and any active child) has run to completion.
func (ra *RunningAction) tick(owner *Bullet, e *evalEnv, spawned *[]*Bullet) (bool, error) {
	if ra.dead {
		return true, nil
	}
	for {
		if ra.child != nil {
			done, err := ra.child.tick(owner, e, spawned)
			if err != nil {
				return false, err
			}
			if !done {
				return false, nil
			}
			ra.child = nil
		}

		if ra.wait > 0 {
			ra.wait--
			return false, nil
		}

		if ra.pc >= len(ra.def.Commands) {
			ra.dead = true
			return true, nil
		}

		cmd := ra.def.Commands[ra.pc]
		res, err := cmd.exec(&execContext{owner: owner, ra: ra, e: e, spawned: spawned})
		if err != nil {
			return false, err
		}

		switch res.kind {
		case stepAdvance:
			ra.pc++
		case stepWait:
			ra.pc++
			if res.frames > 0 {
				ra.wait = res.frames - 1
			}
			return false, nil
		case stepPushChild:
			ra.child = res.child
		}
	}
}

func mergeParams(parent, override Params) Params {
	out := make(Params, len(parent)+len(override))
	for k, v := range parent {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}
