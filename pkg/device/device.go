package device

// SyncOp is one named calibration-memory synchronization procedure
// provided by a device.
type SyncOp struct {
	Name string
	Run  func() error
}

// Device is everything a calibration session needs from an instrument.
// Implementations are not safe for concurrent use; a session owns its
// device exclusively.
type Device interface {
	// Identify returns the instrument identification string.
	Identify() (string, error)
	// ReadValue reads the current value of a calibration parameter.
	ReadValue(name string) (float64, error)
	// WriteValue writes a new target for a calibration parameter.
	WriteValue(name string, value float64) error
	// ReadMeasurement reads the current value of a measurement channel.
	ReadMeasurement(name string) (float64, error)
	// SyncOps returns the memory synchronization procedures the device
	// understands, most preferred first.
	SyncOps() []SyncOp
	// StartMeasurement puts the device into measuring state.
	StartMeasurement() error
	// StopMeasurement takes the device out of measuring state.
	StopMeasurement() error
	// Close releases the underlying connection.
	Close() error
}
