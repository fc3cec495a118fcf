package contracts

// DeviceInfo contains information about a MIDI port.
type DeviceInfo struct {
	Index        int    // Position in the driver's port list.
	Name         string // Port name.
	Manufacturer string // Device manufacturer, when the platform reports one.
	EntityName   string // Name of the entity to which the port belongs.
}
