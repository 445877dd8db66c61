package users

// Identity is the engine's view of an account record owned by the external
// profile store. The engine never creates identities; it only reads them and
// mutates the device index.
type Identity struct {
	ID        string
	ForSystem bool
	// DeviceIndex maps device id to device agent for every live session.
	// It mirrors the session store and is only mutated inside a transaction
	// that also mutates the matching session records.
	DeviceIndex map[string]string
}

// HasDevice reports whether the device is present in the index.
func (i *Identity) HasDevice(device string) bool {
	_, ok := i.DeviceIndex[device]
	return ok
}

// CloneDeviceIndex returns a mutable copy of the index. Admission works on
// the copy so a failed transaction never leaves a half-updated identity in
// memory.
func (i *Identity) CloneDeviceIndex() map[string]string {
	index := make(map[string]string, len(i.DeviceIndex))
	for device, agent := range i.DeviceIndex {
		index[device] = agent
	}
	return index
}
