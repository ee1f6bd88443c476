package scene

import (
	"github.com/spaghettifunk/prism/engine/math"
)

/**
 * @brief A perspective camera. The view is built either from the euler
 * rotation or, when a target is set, by looking at it.
 */
type Camera struct {
	/**
	 * @brief The position of this camera.
	 * NOTE: Do not set this directly, use SetPosition() instead
	 * so the view matrix is recalculated when needed.
	 */
	Position math.Vec3
	/**
	 * @brief The rotation of this camera using Euler angles (pitch, yaw, roll).
	 * NOTE: Do not set this directly, use SetEulerRotation() instead.
	 */
	EulerRotation math.Vec3
	/** @brief Vertical field of view in radians. */
	Fov    float32
	Aspect float32
	Near   float32
	Far    float32
	/** @brief Internal flag used to determine when the view matrix needs to be rebuilt. */
	IsDirty bool
	/**
	 * @brief The view matrix of this camera.
	 * NOTE: Do not get this directly, use GetView() instead.
	 */
	ViewMatrix math.Mat4

	target *math.Vec3
}

// NewCamera matches the viewer defaults: 75 degree fov, placed at (5, 5, 5) looking at the origin.
func NewCamera(aspect float32) *Camera {
	c := &Camera{
		Fov:    math.DegToRad(75),
		Aspect: aspect,
		Near:   0.1,
		Far:    1000,
	}
	c.Reset()
	c.SetPosition(math.NewVec3(5, 5, 5))
	c.LookAt(math.NewVec3Zero())
	return c
}

func (c *Camera) Reset() {
	c.EulerRotation = math.NewVec3Zero()
	c.Position = math.NewVec3Zero()
	c.target = nil
	c.IsDirty = false
	c.ViewMatrix = math.NewMat4Identity()
}

func (c *Camera) SetPosition(position math.Vec3) {
	c.Position = position
	c.IsDirty = true
}

// SetEulerRotation switches the camera back to euler mode.
func (c *Camera) SetEulerRotation(rotation math.Vec3) {
	c.EulerRotation = rotation
	c.target = nil
	c.IsDirty = true
}

func (c *Camera) LookAt(target math.Vec3) {
	c.target = &target
	c.IsDirty = true
}

func (c *Camera) SetAspect(aspect float32) {
	if aspect > 0 {
		c.Aspect = aspect
	}
}

func (c *Camera) GetView() math.Mat4 {
	if c.IsDirty {
		if c.target != nil {
			c.ViewMatrix = math.NewMat4LookAt(c.Position, *c.target, math.NewVec3Up())
		} else {
			rotation := math.NewMat4EulerXYZ(c.EulerRotation.X, c.EulerRotation.Y, c.EulerRotation.Z)
			translation := math.NewMat4Translation(c.Position.MulScalar(-1))
			c.ViewMatrix = translation.Mul(rotation.Transposed())
		}
		c.IsDirty = false
	}
	return c.ViewMatrix
}

func (c *Camera) GetProjection() math.Mat4 {
	return math.NewMat4Perspective(c.Fov, c.Aspect, c.Near, c.Far)
}

// ViewProjection returns view * projection, ready to be applied after a model matrix.
func (c *Camera) ViewProjection() math.Mat4 {
	return c.GetView().Mul(c.GetProjection())
}

// Frame moves the camera so a box of the given size centred on the origin fills the view.
func (c *Camera) Frame(size float32) {
	if size <= 0 {
		size = 1
	}
	d := size * 1.5
	c.SetPosition(math.NewVec3(d, d, d))
	c.LookAt(math.NewVec3Zero())
}
