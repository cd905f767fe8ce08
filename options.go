package bulletml

import "math/rand"

// Options configures how a simulation runs: its source of randomness (for
// reproducible playback) and default rank.
type Options struct {
	// Rand supplies $rand draws. If nil, Options.rng creates a fresh
	// *rand.Rand seeded from Seed.
	Rand *rand.Rand

	// Seed seeds the fallback random source when Rand is nil.
	Seed int64

	// Rank is the rank NewTopLevelBullet gives the bullet it creates, used
	// as $rank in its actions. A fired bullet takes the rank of the action
	// that fires it.
	Rank float64

	// DefaultSpeed is the initial speed NewTopLevelBullet gives the bullet it
	// creates. A fired bullet whose <fire> element and bullet definition both
	// lack a <speed> gets speed 1, whatever DefaultSpeed is.
	DefaultSpeed float64

	// OnFire, if set, is called with every bullet a <fire>/<fireRef>
	// spawns, after it is fully initialized but before it first steps.
	OnFire func(parent, fired *Bullet)

	// OnVanish, if set, is called once on the frame a bullet's <vanish>
	// opcode runs. A bullet that merely runs out of actions stays alive,
	// tracking zero RunningActions, and does not trigger this hook.
	OnVanish func(b *Bullet)

	rng_ *rand.Rand
}

// DefaultOptions returns the zero-value-safe baseline: rank 0, default
// speed 1, and a process-local but deterministic random source.
func DefaultOptions() *Options {
	return &Options{
		Rank:         0,
		DefaultSpeed: 1,
		Seed:         1,
	}
}

func (o *Options) rng() *rand.Rand {
	if o.Rand != nil {
		return o.Rand
	}
	if o.rng_ == nil {
		o.rng_ = rand.New(rand.NewSource(o.Seed))
	}
	return o.rng_
}
