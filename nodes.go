package bulletml

import (
	"encoding/xml"
)

// ---- changeDirection / changeSpeed / accel ----

// ChangeDirection ramps the owner's direction to a new value over Term
// frames.
type ChangeDirection struct {
	XMLName    xml.Name `xml:"changeDirection"`
	Direction  *Direction
	Term       *Term
	parentNode node
}

func (c *ChangeDirection) xmlName() string     { return "changeDirection" }
func (c *ChangeDirection) parent() node        { return c.parentNode }
func (c *ChangeDirection) setParent(p node) error { c.parentNode = p; return nil }

func (c *ChangeDirection) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	return decodeChildren(d, start, map[string]func(*xml.Decoder, xml.StartElement) error{
		"direction": func(d *xml.Decoder, s xml.StartElement) error {
			var v Direction
			if err := d.DecodeElement(&v, &s); err != nil {
				return err
			}
			c.Direction = &v
			return nil
		},
		"term": func(d *xml.Decoder, s xml.StartElement) error {
			var v Term
			if err := d.DecodeElement(&v, &s); err != nil {
				return err
			}
			c.Term = &v
			return nil
		},
	})
}

func (c *ChangeDirection) prepare(r *refResolver) error {
	if c.Direction == nil || c.Term == nil {
		return newParseErrorf(c, "%w: <changeDirection> requires <direction> and <term>", ErrMissingChild)
	}
	c.Direction.parentNode = c
	if err := c.Direction.prepare(DirectionTypeAbsolute); err != nil {
		return err
	}
	c.Term.parentNode = c
	return c.Term.prepare()
}

// exec arms a direction ramp and advances immediately: changeDirection does
// not suspend the action, it only schedules a per-frame interpolation that
// the owning bullet applies on every subsequent Step, in parallel with
// whatever opcodes run next in this same frame.
func (c *ChangeDirection) exec(ctx *execContext) (stepResult, error) {
	frames, err := c.Term.compiled.Eval(ctx.ra.params, ctx.ra.rank, ctx.e.rng)
	if err != nil {
		return stepResult{}, err
	}
	value, err := c.Direction.compiled.Eval(ctx.ra.params, ctx.ra.rank, ctx.e.rng)
	if err != nil {
		return stepResult{}, err
	}
	n := int(frames)

	var target float64
	aiming := false
	switch c.Direction.Type {
	case DirectionTypeSequence:
		if n <= 0 {
			ctx.owner.Direction += value
			return stepResult{kind: stepAdvance}, nil
		}
		ctx.owner.dirRamp = newRamp(rampDelta, ctx.owner.Direction, 0, value, n)
		return stepResult{kind: stepAdvance}, nil
	case DirectionTypeRelative:
		target = ctx.owner.Direction + value
	case DirectionTypeAbsolute:
		target = value
	default: // aim
		aiming = true
		target = value + ctx.owner.Aim()
	}

	// Take the short way around: a turn from 350 to 10 is +20, not -340.
	target = ctx.owner.Direction + normalizeAngleDeg(target-ctx.owner.Direction)

	if n <= 0 {
		ctx.owner.Direction = target
		return stepResult{kind: stepAdvance}, nil
	}
	if aiming {
		ctx.owner.dirRamp = newAimRamp(ctx.owner.Direction, target, n)
	} else {
		ctx.owner.dirRamp = newRamp(rampTarget, ctx.owner.Direction, target, 0, n)
	}
	return stepResult{kind: stepAdvance}, nil
}

// ChangeSpeed ramps the owner's speed to a new value over Term frames.
type ChangeSpeed struct {
	XMLName    xml.Name `xml:"changeSpeed"`
	Speed      *Speed
	Term       *Term
	parentNode node
}

func (c *ChangeSpeed) xmlName() string     { return "changeSpeed" }
func (c *ChangeSpeed) parent() node        { return c.parentNode }
func (c *ChangeSpeed) setParent(p node) error { c.parentNode = p; return nil }

func (c *ChangeSpeed) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	return decodeChildren(d, start, map[string]func(*xml.Decoder, xml.StartElement) error{
		"speed": func(d *xml.Decoder, s xml.StartElement) error {
			var v Speed
			if err := d.DecodeElement(&v, &s); err != nil {
				return err
			}
			c.Speed = &v
			return nil
		},
		"term": func(d *xml.Decoder, s xml.StartElement) error {
			var v Term
			if err := d.DecodeElement(&v, &s); err != nil {
				return err
			}
			c.Term = &v
			return nil
		},
	})
}

func (c *ChangeSpeed) prepare(r *refResolver) error {
	if c.Speed == nil || c.Term == nil {
		return newParseErrorf(c, "%w: <changeSpeed> requires <speed> and <term>", ErrMissingChild)
	}
	c.Speed.parentNode = c
	if err := c.Speed.prepare(); err != nil {
		return err
	}
	c.Term.parentNode = c
	return c.Term.prepare()
}

// exec arms a speed ramp and advances immediately, for the same reason
// ChangeDirection.exec does: changeSpeed never suspends the action.
func (c *ChangeSpeed) exec(ctx *execContext) (stepResult, error) {
	frames, err := c.Term.compiled.Eval(ctx.ra.params, ctx.ra.rank, ctx.e.rng)
	if err != nil {
		return stepResult{}, err
	}
	value, err := c.Speed.compiled.Eval(ctx.ra.params, ctx.ra.rank, ctx.e.rng)
	if err != nil {
		return stepResult{}, err
	}
	n := int(frames)

	if c.Speed.Type == SpeedTypeSequence {
		if n <= 0 {
			ctx.owner.Speed += value
			return stepResult{kind: stepAdvance}, nil
		}
		ctx.owner.spdRamp = newRamp(rampDelta, ctx.owner.Speed, 0, value, n)
		return stepResult{kind: stepAdvance}, nil
	}

	var target float64
	if c.Speed.Type == SpeedTypeRelative {
		target = ctx.owner.Speed + value
	} else {
		target = value
	}
	if n <= 0 {
		ctx.owner.Speed = target
		return stepResult{kind: stepAdvance}, nil
	}
	ctx.owner.spdRamp = newRamp(rampTarget, ctx.owner.Speed, target, 0, n)
	return stepResult{kind: stepAdvance}, nil
}

// Accel ramps the owner's Cartesian accel offset (mx, my) independently on
// each axis. An axis absent from the element is left entirely alone: its
// running ramp (if any) keeps going, it is not reset to zero.
type Accel struct {
	XMLName    xml.Name `xml:"accel"`
	Horizontal *Magnitude
	Vertical   *Magnitude
	Term       *Term
	parentNode node
}

func (a *Accel) xmlName() string     { return "accel" }
func (a *Accel) parent() node        { return a.parentNode }
func (a *Accel) setParent(p node) error { a.parentNode = p; return nil }

func (a *Accel) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	return decodeChildren(d, start, map[string]func(*xml.Decoder, xml.StartElement) error{
		"horizontal": func(d *xml.Decoder, s xml.StartElement) error {
			v := Magnitude{XMLName: s.Name}
			if err := d.DecodeElement(&v, &s); err != nil {
				return err
			}
			a.Horizontal = &v
			return nil
		},
		"vertical": func(d *xml.Decoder, s xml.StartElement) error {
			v := Magnitude{XMLName: s.Name}
			if err := d.DecodeElement(&v, &s); err != nil {
				return err
			}
			a.Vertical = &v
			return nil
		},
		"term": func(d *xml.Decoder, s xml.StartElement) error {
			var v Term
			if err := d.DecodeElement(&v, &s); err != nil {
				return err
			}
			a.Term = &v
			return nil
		},
	})
}

func (a *Accel) prepare(r *refResolver) error {
	if a.Term == nil {
		return newParseErrorf(a, "%w: <accel> requires <term>", ErrMissingChild)
	}
	if a.Horizontal == nil && a.Vertical == nil {
		return newParseErrorf(a, "%w: <accel> requires <horizontal> and/or <vertical>", ErrMissingChild)
	}
	if a.Horizontal != nil {
		a.Horizontal.parentNode = a
		if err := a.Horizontal.prepare(); err != nil {
			return err
		}
	}
	if a.Vertical != nil {
		a.Vertical.parentNode = a
		if err := a.Vertical.prepare(); err != nil {
			return err
		}
	}
	a.Term.parentNode = a
	return a.Term.prepare()
}

// exec arms horizontal/vertical accel ramps and advances immediately, for
// the same reason ChangeDirection.exec does: accel never suspends the
// action.
func (a *Accel) exec(ctx *execContext) (stepResult, error) {
	frames, err := a.Term.compiled.Eval(ctx.ra.params, ctx.ra.rank, ctx.e.rng)
	if err != nil {
		return stepResult{}, err
	}
	n := int(frames)

	if a.Horizontal != nil {
		v, err := a.Horizontal.compiled.Eval(ctx.ra.params, ctx.ra.rank, ctx.e.rng)
		if err != nil {
			return stepResult{}, err
		}
		if n <= 0 {
			ctx.owner.Mx = applyMagnitudeImmediate(a.Horizontal.Type, ctx.owner.Mx, v)
			ctx.owner.mxRamp = nil
		} else {
			ctx.owner.mxRamp = magnitudeRamp(a.Horizontal.Type, ctx.owner.Mx, v, n)
		}
	}
	if a.Vertical != nil {
		v, err := a.Vertical.compiled.Eval(ctx.ra.params, ctx.ra.rank, ctx.e.rng)
		if err != nil {
			return stepResult{}, err
		}
		if n <= 0 {
			ctx.owner.My = applyMagnitudeImmediate(a.Vertical.Type, ctx.owner.My, v)
			ctx.owner.myRamp = nil
		} else {
			ctx.owner.myRamp = magnitudeRamp(a.Vertical.Type, ctx.owner.My, v, n)
		}
	}
	return stepResult{kind: stepAdvance}, nil
}

// ---- wait / vanish / tag / untag / appearance ----

// Wait suspends the action for the number of frames its expression
// evaluates to (at least the frame in which it runs).
type Wait struct {
	XMLName    xml.Name `xml:"wait"`
	Text       string   `xml:",chardata"`
	compiled   *IntExpr
	parentNode node
}

func (w *Wait) xmlName() string     { return "wait" }
func (w *Wait) parent() node        { return w.parentNode }
func (w *Wait) setParent(p node) error { w.parentNode = p; return nil }

func (w *Wait) prepare(r *refResolver) error {
	c, err := compileIntExpr(w.Text, w)
	if err != nil {
		return err
	}
	w.compiled = c
	return nil
}

func (w *Wait) exec(ctx *execContext) (stepResult, error) {
	n, err := w.compiled.Eval(ctx.ra.params, ctx.ra.rank, ctx.e.rng)
	if err != nil {
		return stepResult{}, err
	}
	return stepResult{kind: stepWait, frames: int(n)}, nil
}

// Vanish vanishes the owning bullet (see Bullet.Vanish).
type Vanish struct {
	XMLName    xml.Name `xml:"vanish"`
	parentNode node
}

func (v *Vanish) xmlName() string     { return "vanish" }
func (v *Vanish) parent() node        { return v.parentNode }
func (v *Vanish) setParent(p node) error { v.parentNode = p; return nil }
func (v *Vanish) prepare(r *refResolver) error { return nil }

// exec vanishes the owning bullet and suspends: no further opcode in this
// (or any sibling) action tree runs again, since Bullet.Vanish stops every
// RunningAction on the bullet.
func (v *Vanish) exec(ctx *execContext) (stepResult, error) {
	ctx.owner.Vanish()
	return stepResult{kind: stepWait, frames: 1}, nil
}

// Tag adds a label to the owning bullet's tag set.
type Tag struct {
	XMLName    xml.Name `xml:"tag"`
	Text       string   `xml:",chardata"`
	parentNode node
}

func (t *Tag) xmlName() string     { return "tag" }
func (t *Tag) parent() node        { return t.parentNode }
func (t *Tag) setParent(p node) error { t.parentNode = p; return nil }
func (t *Tag) prepare(r *refResolver) error { return nil }

func (t *Tag) exec(ctx *execContext) (stepResult, error) {
	ctx.owner.AddTag(t.Text)
	return stepResult{kind: stepAdvance}, nil
}

// Untag removes a label from the owning bullet's tag set.
type Untag struct {
	XMLName    xml.Name `xml:"untag"`
	Text       string   `xml:",chardata"`
	parentNode node
}

func (u *Untag) xmlName() string     { return "untag" }
func (u *Untag) parent() node        { return u.parentNode }
func (u *Untag) setParent(p node) error { u.parentNode = p; return nil }
func (u *Untag) prepare(r *refResolver) error { return nil }

func (u *Untag) exec(ctx *execContext) (stepResult, error) {
	ctx.owner.RemoveTag(u.Text)
	return stepResult{kind: stepAdvance}, nil
}

// Appearance sets the owning bullet's appearance label, a free-form string
// a host renderer maps to a sprite or draw routine.
type Appearance struct {
	XMLName    xml.Name `xml:"appearance"`
	Text       string   `xml:",chardata"`
	parentNode node
}

func (a *Appearance) xmlName() string     { return "appearance" }
func (a *Appearance) parent() node        { return a.parentNode }
func (a *Appearance) setParent(p node) error { a.parentNode = p; return nil }
func (a *Appearance) prepare(r *refResolver) error { return nil }

func (a *Appearance) exec(ctx *execContext) (stepResult, error) {
	ctx.owner.Appearance = a.Text
	return stepResult{kind: stepAdvance}, nil
}

// ---- repeat / if ----

// Repeat runs its body (an action or actionRef) Times times in succession,
// exposing the 1-based iteration number to the body as $loop.index.
type Repeat struct {
	XMLName    xml.Name `xml:"repeat"`
	Times      *Times
	Body       actionOrRef
	parentNode node
}

func (r *Repeat) xmlName() string     { return "repeat" }
func (r *Repeat) parent() node        { return r.parentNode }
func (r *Repeat) setParent(p node) error { r.parentNode = p; return nil }

func (r *Repeat) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	return decodeChildren(d, start, map[string]func(*xml.Decoder, xml.StartElement) error{
		"times": func(d *xml.Decoder, s xml.StartElement) error {
			var v Times
			if err := d.DecodeElement(&v, &s); err != nil {
				return err
			}
			r.Times = &v
			return nil
		},
		"action": func(d *xml.Decoder, s xml.StartElement) error {
			var v ActionDef
			if err := d.DecodeElement(&v, &s); err != nil {
				return err
			}
			r.Body = &v
			return nil
		},
		"actionRef": func(d *xml.Decoder, s xml.StartElement) error {
			var v ActionRef
			if err := d.DecodeElement(&v, &s); err != nil {
				return err
			}
			r.Body = &v
			return nil
		},
	})
}

func (r *Repeat) prepare(resolver *refResolver) error {
	if r.Times == nil || r.Body == nil {
		return newParseErrorf(r, "%w: <repeat> requires <times> and an action", ErrMissingChild)
	}
	r.Times.parentNode = r
	if err := r.Times.prepare(); err != nil {
		return err
	}
	if err := r.Body.setParent(r); err != nil {
		return err
	}
	return r.Body.prepare(resolver)
}

func (r *Repeat) exec(ctx *execContext) (stepResult, error) {
	total, err := r.Times.compiled.Eval(ctx.ra.params, ctx.ra.rank, ctx.e.rng)
	if err != nil {
		return stepResult{}, err
	}
	done := ctx.ra.scratchGet(r)
	if done >= int(total) {
		ctx.ra.scratchClear(r)
		return stepResult{kind: stepAdvance}, nil
	}
	done++
	ctx.ra.scratchSet(r, done)

	params, err := r.Body.evalParams(ctx.ra.params, ctx.ra.rank, ctx.e)
	if err != nil {
		return stepResult{}, err
	}
	params = mergeParams(ctx.ra.params, params)
	params["$loop.index"] = float64(done)

	child := newRunningAction(r.Body.resolvedAction(), params, ctx.ra.rank, ctx.ra)
	return stepResult{kind: stepPushChild, child: child}, nil
}

// If runs Then when Cond evaluates non-zero, Else otherwise (if present).
type If struct {
	XMLName    xml.Name `xml:"if"`
	Cond       *IntExpr
	Then       actionOrRef
	Else       actionOrRef
	parentNode node
}

func (f *If) xmlName() string     { return "if" }
func (f *If) parent() node        { return f.parentNode }
func (f *If) setParent(p node) error { f.parentNode = p; return nil }

func (f *If) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var branches []actionOrRef
	err := decodeChildren(d, start, map[string]func(*xml.Decoder, xml.StartElement) error{
		"cond": func(d *xml.Decoder, s xml.StartElement) error {
			var text string
			if err := d.DecodeElement(&text, &s); err != nil {
				return err
			}
			c, err := compileIntExpr(text, f)
			if err != nil {
				return err
			}
			f.Cond = c
			return nil
		},
		"action": func(d *xml.Decoder, s xml.StartElement) error {
			var v ActionDef
			if err := d.DecodeElement(&v, &s); err != nil {
				return err
			}
			branches = append(branches, &v)
			return nil
		},
		"actionRef": func(d *xml.Decoder, s xml.StartElement) error {
			var v ActionRef
			if err := d.DecodeElement(&v, &s); err != nil {
				return err
			}
			branches = append(branches, &v)
			return nil
		},
	})
	if err != nil {
		return err
	}
	if len(branches) > 0 {
		f.Then = branches[0]
	}
	if len(branches) > 1 {
		f.Else = branches[1]
	}
	return nil
}

func (f *If) prepare(r *refResolver) error {
	if f.Cond == nil || f.Then == nil {
		return newParseErrorf(f, "%w: <if> requires <cond> and a then-action", ErrMissingChild)
	}
	if err := f.Then.setParent(f); err != nil {
		return err
	}
	if err := f.Then.prepare(r); err != nil {
		return err
	}
	if f.Else != nil {
		if err := f.Else.setParent(f); err != nil {
			return err
		}
		if err := f.Else.prepare(r); err != nil {
			return err
		}
	}
	return nil
}

func (f *If) exec(ctx *execContext) (stepResult, error) {
	if ctx.ra.scratchGet(f) > 0 {
		ctx.ra.scratchClear(f)
		return stepResult{kind: stepAdvance}, nil
	}
	ctx.ra.scratchSet(f, 1)

	v, err := f.Cond.Eval(ctx.ra.params, ctx.ra.rank, ctx.e.rng)
	if err != nil {
		return stepResult{}, err
	}
	branch := f.Else
	if v != 0 {
		branch = f.Then
	}
	if branch == nil {
		return stepResult{kind: stepAdvance}, nil
	}

	params, err := branch.evalParams(ctx.ra.params, ctx.ra.rank, ctx.e)
	if err != nil {
		return stepResult{}, err
	}
	params = mergeParams(ctx.ra.params, params)

	child := newRunningAction(branch.resolvedAction(), params, ctx.ra.rank, ctx.ra)
	return stepResult{kind: stepPushChild, child: child}, nil
}

// ---- nested action / actionRef / fire / fireRef as opcodes ----

func (a *ActionDef) exec(ctx *execContext) (stepResult, error) {
	if ctx.ra.scratchGet(a) > 0 {
		ctx.ra.scratchClear(a)
		return stepResult{kind: stepAdvance}, nil
	}
	ctx.ra.scratchSet(a, 1)
	child := newRunningAction(a, ctx.ra.params, ctx.ra.rank, ctx.ra)
	return stepResult{kind: stepPushChild, child: child}, nil
}

func (a *ActionRef) exec(ctx *execContext) (stepResult, error) {
	if ctx.ra.scratchGet(a) > 0 {
		ctx.ra.scratchClear(a)
		return stepResult{kind: stepAdvance}, nil
	}
	ctx.ra.scratchSet(a, 1)
	params, err := a.evalParams(ctx.ra.params, ctx.ra.rank, ctx.e)
	if err != nil {
		return stepResult{}, err
	}
	params = mergeParams(ctx.ra.params, params)
	child := newRunningAction(a.resolved, params, ctx.ra.rank, ctx.ra)
	return stepResult{kind: stepPushChild, child: child}, nil
}

// exec spawns one bullet and suspends: at most one fire happens per frame
// per running action.
func (f *FireDef) exec(ctx *execContext) (stepResult, error) {
	b, err := spawnFromFire(f, ctx.ra.params, ctx.ra.rank, ctx.owner, ctx.ra, ctx.e)
	if err != nil {
		return stepResult{}, err
	}
	*ctx.spawned = append(*ctx.spawned, b)
	return stepResult{kind: stepWait, frames: 1}, nil
}

func (f *FireRef) exec(ctx *execContext) (stepResult, error) {
	params, err := f.evalParams(ctx.ra.params, ctx.ra.rank, ctx.e)
	if err != nil {
		return stepResult{}, err
	}
	params = mergeParams(ctx.ra.params, params)
	b, err := spawnFromFire(f.resolved, params, ctx.ra.rank, ctx.owner, ctx.ra, ctx.e)
	if err != nil {
		return stepResult{}, err
	}
	*ctx.spawned = append(*ctx.spawned, b)
	return stepResult{kind: stepWait, frames: 1}, nil
}

// decodeChildren walks start's children, dispatching each one by local
// element name. It is the shared implementation behind every element whose
// UnmarshalXML just needs to route a handful of known child tags.
func decodeChildren(d *xml.Decoder, start xml.StartElement, handlers map[string]func(*xml.Decoder, xml.StartElement) error) error {
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.EndElement:
			if t.Name == start.Name {
				return nil
			}
		case xml.StartElement:
			h, ok := handlers[t.Name.Local]
			if !ok {
				if err := d.Skip(); err != nil {
					return err
				}
				continue
			}
			if err := h(d, t); err != nil {
				return err
			}
		}
	}
}
