package benchmark

import (
	"github.com/chewxy/math32"

	"github.com/spaghettifunk/prism/engine/math"
)

// Vertical displacement applied per tick, scaled by the oscillation.
const movementStep float32 = 0.01

// Animation is the procedural motion of a synthetic object: Rotate or RotateAndMove.
type Animation interface {
	animation()
}

// Rotate spins an object by a fixed per axis increment every tick.
type Rotate struct {
	Speed math.Vec3
}

// Movement describes a vertical oscillation. Amplitude is kept for reporting, the update does not scale by it.
type Movement struct {
	Amplitude   float32
	FrequencyHz float32
	Phase       float32
}

// RotateAndMove always carries a rotation alongside the movement.
type RotateAndMove struct {
	Speed    math.Vec3
	Movement Movement
}

func (Rotate) animation()        {}
func (RotateAndMove) animation() {}

/**
 * @brief Advances every animated object by one step. Rotation grows by
 * the fixed speed regardless of frame duration; moving objects also shift
 * along Y by sin(elapsed * frequency + phase) * 0.01.
 */
func Tick(objects []*SyntheticObject, elapsedSeconds float64) {
	t := float32(elapsedSeconds)
	for _, obj := range objects {
		if obj == nil || obj.Animation == nil {
			continue
		}
		tr := &obj.Node.Base().Transform
		switch a := obj.Animation.(type) {
		case Rotate:
			tr.Rotate(a.Speed)
		case RotateAndMove:
			tr.Rotate(a.Speed)
			dy := math32.Sin(t*a.Movement.FrequencyHz+a.Movement.Phase) * movementStep
			tr.Translate(math.NewVec3(0, dy, 0))
		}
	}
}
