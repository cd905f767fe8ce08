package bulletml

import (
	"math"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

type fixedTarget struct{ x, y float64 }

func (t fixedTarget) Position() (float64, float64) { return t.x, t.y }

func loadDoc(t *testing.T, xmlSrc string) *Document {
	t.Helper()
	doc, err := Load(strings.NewReader(xmlSrc))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return doc
}

func TestConstantAimFiresTowardTarget(t *testing.T) {
	Convey("Given a bullet aimed at a target with a constant-aim fire", t, func() {
		doc := loadDoc(t, `<?xml version="1.0"?>
<bulletml>
  <action label="top1">
    <fire>
      <direction type="aim">0</direction>
      <speed>1</speed>
      <bullet/>
    </fire>
  </action>
</bulletml>`)
		target := fixedTarget{x: 3, y: 4}
		owner := NewTopLevelBullet(doc, DefaultOptions(), 0, 0, 0, target)

		Convey("When it steps once", func() {
			var spawned []*Bullet
			err := owner.Step(DefaultOptions(), &spawned)

			Convey("Then exactly one bullet is fired toward the target", func() {
				So(err, ShouldBeNil)
				So(spawned, ShouldHaveLength, 1)
				wantDir := math.Atan2(3, 4) * 180 / math.Pi
				So(spawned[0].Direction, ShouldAlmostEqual, wantDir, 1e-9)
				So(spawned[0].Speed, ShouldAlmostEqual, 1, 1e-9)
			})
		})
	})
}

func TestVanishPropagatesThroughNestedActions(t *testing.T) {
	Convey("Given a bullet whose action nests a vanish two levels deep", t, func() {
		doc := loadDoc(t, `<?xml version="1.0"?>
<bulletml>
  <action label="top1">
    <action>
      <action>
        <vanish/>
      </action>
    </action>
  </action>
</bulletml>`)
		owner := NewTopLevelBullet(doc, DefaultOptions(), 0, 0, 0, nil)

		Convey("When it steps once", func() {
			var spawned []*Bullet
			err := owner.Step(DefaultOptions(), &spawned)

			Convey("Then the bullet is vanished", func() {
				So(err, ShouldBeNil)
				So(owner.Alive(), ShouldBeFalse)
			})
		})
	})
}

func TestParameterizedActionRefFiresWithSubstitutedDirection(t *testing.T) {
	Convey("Given a top action that fires via a parameterized actionRef", t, func() {
		doc := loadDoc(t, `<?xml version="1.0"?>
<bulletml>
  <action label="top1">
    <actionRef label="sub"><param>30</param></actionRef>
  </action>
  <action label="sub">
    <fire>
      <direction type="absolute">$1</direction>
      <speed>1</speed>
      <bullet/>
    </fire>
  </action>
</bulletml>`)
		owner := NewTopLevelBullet(doc, DefaultOptions(), 0, 0, 0, nil)

		Convey("When it steps once", func() {
			var spawned []*Bullet
			err := owner.Step(DefaultOptions(), &spawned)

			Convey("Then the fired bullet uses the substituted direction", func() {
				So(err, ShouldBeNil)
				So(spawned, ShouldHaveLength, 1)
				So(spawned[0].Direction, ShouldAlmostEqual, 30, 1e-9)
			})
		})
	})
}

func TestImmediateChangeDirectionAppliesInOneStep(t *testing.T) {
	Convey("Given a bullet facing 180 degrees with a zero-term changeDirection", t, func() {
		doc := loadDoc(t, `<?xml version="1.0"?>
<bulletml>
  <action label="top1">
    <changeDirection>
      <direction type="absolute">0</direction>
      <term>0</term>
    </changeDirection>
    <wait>100</wait>
  </action>
</bulletml>`)
		owner := NewTopLevelBullet(doc, DefaultOptions(), 0, 0, 180, nil)

		Convey("When it steps once", func() {
			var spawned []*Bullet
			err := owner.Step(DefaultOptions(), &spawned)

			Convey("Then the direction is already 0", func() {
				So(err, ShouldBeNil)
				So(owner.Direction, ShouldAlmostEqual, 0, 1e-9)
			})
		})
	})
}

func TestRepeatProducesExactlyNFireEvents(t *testing.T) {
	Convey("Given a repeat of 4 wrapping a fire and a wait", t, func() {
		doc := loadDoc(t, `<?xml version="1.0"?>
<bulletml>
  <action label="top1">
    <repeat>
      <times>4</times>
      <action>
        <fire>
          <direction type="sequence">10</direction>
          <speed>1</speed>
          <bullet/>
        </fire>
        <wait>1</wait>
      </action>
    </repeat>
  </action>
</bulletml>`)
		owner := NewTopLevelBullet(doc, DefaultOptions(), 0, 0, 0, nil)

		Convey("When it steps until the repeat is exhausted", func() {
			var allSpawned []*Bullet
			for i := 0; i < 12 && owner.Alive(); i++ {
				var spawned []*Bullet
				if err := owner.Step(DefaultOptions(), &spawned); err != nil {
					t.Fatalf("Step: %v", err)
				}
				allSpawned = append(allSpawned, spawned...)
			}

			Convey("Then exactly 4 bullets were fired, 10 degrees apart", func() {
				So(allSpawned, ShouldHaveLength, 4)
				for i := 1; i < len(allSpawned); i++ {
					diff := allSpawned[i].Direction - allSpawned[i-1].Direction
					So(diff, ShouldAlmostEqual, 10, 1e-9)
				}
			})
		})
	})
}

func TestRelativeOffsetPlacesBulletAtOffsetDistance(t *testing.T) {
	Convey("Given a fire with a relative offset of (5, 0)", t, func() {
		doc := loadDoc(t, `<?xml version="1.0"?>
<bulletml>
  <action label="top1">
    <fire>
      <direction type="absolute">0</direction>
      <speed>1</speed>
      <offset><x>5</x><y>0</y></offset>
      <bullet/>
    </fire>
  </action>
</bulletml>`)
		owner := NewTopLevelBullet(doc, DefaultOptions(), 0, 0, 0, nil)

		Convey("When it steps once", func() {
			var spawned []*Bullet
			err := owner.Step(DefaultOptions(), &spawned)

			Convey("Then the fired bullet is offset by exactly that distance", func() {
				So(err, ShouldBeNil)
				So(spawned, ShouldHaveLength, 1)
				dx := spawned[0].X - owner.PX
				dy := spawned[0].Y - owner.PY
				dist := math.Hypot(dx, dy)
				So(dist, ShouldAlmostEqual, 5, 1e-9)
			})
		})
	})
}
