package drivers

import "fmt"

type BusOp string

const (
	OpRead  BusOp = "read"
	OpWrite BusOp = "write"
)

// BusError is returned by every failed expander transaction. It carries
// enough context to tell which chip and register misbehaved.
type BusError struct {
	Addr     uint16
	Register byte
	Op       BusOp
	Err      error
}

func (e *BusError) Error() string {
	return fmt.Sprintf("i2c %s of %s on 0x%02x failed: %v", e.Op, RegisterName(e.Register), e.Addr, e.Err)
}

func (e *BusError) Unwrap() error {
	return e.Err
}
