package drivers

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"
)

// MCP23017 register map, IOCON.BANK = 0 (power-on default).
const (
	RegIODIRA   byte = 0x00
	RegIODIRB   byte = 0x01
	RegIPOLA    byte = 0x02
	RegIPOLB    byte = 0x03
	RegGPINTENA byte = 0x04
	RegGPINTENB byte = 0x05
	RegDEFVALA  byte = 0x06
	RegDEFVALB  byte = 0x07
	RegINTCONA  byte = 0x08
	RegINTCONB  byte = 0x09
	RegIOCONA   byte = 0x0A
	RegIOCONB   byte = 0x0B
	RegGPPUA    byte = 0x0C
	RegGPPUB    byte = 0x0D
	RegINTFA    byte = 0x0E
	RegINTFB    byte = 0x0F
	RegINTCAPA  byte = 0x10
	RegINTCAPB  byte = 0x11
	RegGPIOA    byte = 0x12
	RegGPIOB    byte = 0x13
	RegOLATA    byte = 0x14
	RegOLATB    byte = 0x15
)

// Mcp23017BaseAddr is the address with A2..A0 tied low.
const Mcp23017BaseAddr uint16 = 0x20

var registerNames = [...]string{
	"IODIRA", "IODIRB", "IPOLA", "IPOLB", "GPINTENA", "GPINTENB",
	"DEFVALA", "DEFVALB", "INTCONA", "INTCONB", "IOCONA", "IOCONB",
	"GPPUA", "GPPUB", "INTFA", "INTFB", "INTCAPA", "INTCAPB",
	"GPIOA", "GPIOB", "OLATA", "OLATB",
}

func RegisterName(reg byte) string {
	if int(reg) < len(registerNames) {
		return registerNames[reg]
	}
	return fmt.Sprintf("0x%02X", reg)
}

// Mcp23017 talks to one expander over a shared bus. Each call is a single
// bus transaction and nothing is retried here; the caller owns the cadence.
type Mcp23017 struct {
	dev i2c.Dev
}

func NewMcp23017(bus i2c.Bus, addr uint16) *Mcp23017 {
	return &Mcp23017{dev: i2c.Dev{Bus: bus, Addr: addr}}
}

func (m *Mcp23017) Addr() uint16 {
	return m.dev.Addr
}

func (m *Mcp23017) String() string {
	return fmt.Sprintf("mcp23017@0x%02x", m.dev.Addr)
}

// Configure sets port directions (1 = input) and the port B pull-ups, in the
// order IODIRA, IODIRB, GPPUB. It stops at the first failed write.
func (m *Mcp23017) Configure(dirA, dirB, pullUpB byte) error {
	for _, w := range [][2]byte{
		{RegIODIRA, dirA},
		{RegIODIRB, dirB},
		{RegGPPUB, pullUpB},
	} {
		err := m.WriteRegister(w[0], w[1])
		if err != nil {
			return err
		}
	}

	return nil
}

func (m *Mcp23017) WriteRegister(reg, value byte) error {
	err := m.dev.Tx([]byte{reg, value}, nil)
	if err != nil {
		return &BusError{Addr: m.dev.Addr, Register: reg, Op: OpWrite, Err: err}
	}
	return nil
}

func (m *Mcp23017) ReadRegister(reg byte) (byte, error) {
	var buf [1]byte
	err := m.dev.Tx([]byte{reg}, buf[:])
	if err != nil {
		return 0, &BusError{Addr: m.dev.Addr, Register: reg, Op: OpRead, Err: err}
	}
	return buf[0], nil
}

func (m *Mcp23017) ReadPortB() (byte, error) {
	return m.ReadRegister(RegGPIOB)
}

func (m *Mcp23017) WritePortA(value byte) error {
	return m.WriteRegister(RegGPIOA, value)
}
