package topology

// MeshSlot computes the wire mesh slot for a raw vendor device id within
// a home identified by homeID.
//
// Formula: ((deviceID mod homeID) mod 1000) + ((deviceID mod homeID) / 1000) * 256.
// This lets multi-element devices place their secondary elements at
// slot + k*256 without colliding with a neighbouring device's slot.
func MeshSlot(deviceID, homeID int) int {
	m := deviceID % homeID
	return (m % 1000) + (m/1000)*256
}

// ElementSlot returns the mesh slot for the k-th element (0-indexed) of a
// multi-element device occupying the given base slot.
func ElementSlot(baseSlot, element int) int {
	return baseSlot + element*256
}
