package contracts

// MessageHandler receives one physical delivery: seconds since the previous delivery on
// the same input and the raw bytes.
type MessageHandler func(delta float64, raw []byte)

// Input is an opened input port.
type Input interface {
	Name() string
	// OnMessage registers the delivery handler. It is called once, before deliveries start;
	// deliveries may arrive on any goroutine.
	OnMessage(handler MessageHandler)
	Close() error
}

// Output is an opened output port. Send does not wait for delivery.
type Output interface {
	Name() string
	Send(raw []byte) error
	Close() error
}

// Driver is the platform port boundary.
type Driver interface {
	ListInputs() ([]DeviceInfo, error)
	ListOutputs() ([]DeviceInfo, error)
	OpenInput(sel Selector) (Input, error)
	OpenOutput(sel Selector) (Output, error)
	Close() error
}
