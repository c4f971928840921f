package protocol

// Vector3 is a single-precision 3-component vector.
type Vector3 struct {
	X, Y, Z float32
}

// Vector3d is a double-precision 3-component vector, used for global positions.
type Vector3d struct {
	X, Y, Z float64
}

// Quaternion is a rotation with all four components on the wire.
type Quaternion struct {
	X, Y, Z, W float32
}

// IdentityQuaternion is the zero rotation.
var IdentityQuaternion = Quaternion{W: 1}

// Color4 is an RGBA color with 8-bit channels.
type Color4 struct {
	R, G, B, A uint8
}
