// Package bulletml is a deterministic interpreter for BulletML, the
// declarative markup shoot-'em-up games use to describe "danmaku" bullet
// patterns. It loads a document, instantiates bullets from it, and steps
// the simulation one frame at a time, producing positions, radii, tags and
// appearance labels for a host renderer to draw.
//
// The package is renderer-agnostic: it has no notion of a screen, an input
// device, or a game loop. A host calls Load once, creates one or more
// Bullets from the resulting Document, and calls Step on each live bullet
// every frame.
package bulletml

// Version identifies the BulletML dialect this package implements.
const Version = "3"
