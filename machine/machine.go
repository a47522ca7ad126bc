// Package machine holds the sensor/actuator model of the ball machine and the
// static mapping between named fields and expander port bits.
package machine

// Devices is the number of chained expanders.
const Devices = 3

// Addresses are the bus addresses of the expanders, in table order.
// Index i of every port value array belongs to Addresses[i].
var Addresses = [Devices]uint16{0x21, 0x22, 0x24}

type Inputs struct {
	Checker0Sensor bool `json:"checker_0_sensor"`
	Checker1Sensor bool `json:"checker_1_sensor"`
	Checker2Sensor bool `json:"checker_2_sensor"`
	Checker3Sensor bool `json:"checker_3_sensor"`
	Checker4Sensor bool `json:"checker_4_sensor"`
	Checker5Sensor bool `json:"checker_5_sensor"`
	Checker6Sensor bool `json:"checker_6_sensor"`
	TiltSwitch     bool `json:"tilt_switch"`

	LeftInSensor1     bool `json:"left_in_sensor_1"`
	LeftInSensor2     bool `json:"left_in_sensor_2"`
	RightInSensor1    bool `json:"right_in_sensor_1"`
	RightInSensor2    bool `json:"right_in_sensor_2"`
	HopperLeftSensor  bool `json:"hopper_left_sensor"`
	HopperRightSensor bool `json:"hopper_right_sensor"`
	HopperOutSensor   bool `json:"hopper_out_sensor"`
	TableSensor       bool `json:"table_sensor"`

	LeftDividerSensor  bool `json:"left_divider_sensor"`
	RightDividerSensor bool `json:"right_divider_sensor"`
	TestSwitch         bool `json:"test_switch"`
	SelectSwitchUp     bool `json:"select_switch_up"`
	SelectSwitchDown   bool `json:"select_switch_down"`
	EnterSwitch        bool `json:"enter_switch"`
}

type Outputs struct {
	Checker0Led bool `json:"checker_0_led"`
	Checker1Led bool `json:"checker_1_led"`
	Checker2Led bool `json:"checker_2_led"`
	Checker3Led bool `json:"checker_3_led"`
	Checker4Led bool `json:"checker_4_led"`
	Checker5Led bool `json:"checker_5_led"`
	Checker6Led bool `json:"checker_6_led"`
	TableMotor  bool `json:"table_motor"`

	LeftHopper           bool `json:"left_hopper"`
	RightHopper          bool `json:"right_hopper"`
	LockoutSolenoidLeft  bool `json:"lockout_solenoid_left"`
	LockoutSolenoidRight bool `json:"lockout_solenoid_right"`
	OutHopper            bool `json:"out_hopper"`
	PayoutSolenoid       bool `json:"payout_solenoid"`
	DividerSolenoidLeft  bool `json:"divider_solenoid_left"`
	DividerSolenoidRight bool `json:"divider_solenoid_right"`

	RayLamp bool `json:"ray_lamp"`
}

// Field ties one named boolean to a single bit of one expander port.
type Field struct {
	Name   string
	Device int
	Mask   byte
}

type inputBit struct {
	Field
	ref func(*Inputs) *bool
}

type outputBit struct {
	Field
	ref func(*Outputs) *bool
}

var inputTable = []inputBit{
	{Field{"checker_0_sensor", 2, 0x01}, func(i *Inputs) *bool { return &i.Checker0Sensor }},
	{Field{"checker_1_sensor", 2, 0x02}, func(i *Inputs) *bool { return &i.Checker1Sensor }},
	{Field{"checker_2_sensor", 2, 0x04}, func(i *Inputs) *bool { return &i.Checker2Sensor }},
	{Field{"checker_3_sensor", 2, 0x08}, func(i *Inputs) *bool { return &i.Checker3Sensor }},
	{Field{"checker_4_sensor", 2, 0x10}, func(i *Inputs) *bool { return &i.Checker4Sensor }},
	{Field{"checker_5_sensor", 2, 0x20}, func(i *Inputs) *bool { return &i.Checker5Sensor }},
	{Field{"checker_6_sensor", 2, 0x40}, func(i *Inputs) *bool { return &i.Checker6Sensor }},
	{Field{"tilt_switch", 2, 0x80}, func(i *Inputs) *bool { return &i.TiltSwitch }},

	{Field{"left_in_sensor_1", 1, 0x01}, func(i *Inputs) *bool { return &i.LeftInSensor1 }},
	{Field{"left_in_sensor_2", 1, 0x02}, func(i *Inputs) *bool { return &i.LeftInSensor2 }},
	{Field{"right_in_sensor_1", 1, 0x04}, func(i *Inputs) *bool { return &i.RightInSensor1 }},
	{Field{"right_in_sensor_2", 1, 0x08}, func(i *Inputs) *bool { return &i.RightInSensor2 }},
	{Field{"hopper_left_sensor", 1, 0x10}, func(i *Inputs) *bool { return &i.HopperLeftSensor }},
	{Field{"hopper_right_sensor", 1, 0x20}, func(i *Inputs) *bool { return &i.HopperRightSensor }},
	{Field{"hopper_out_sensor", 1, 0x40}, func(i *Inputs) *bool { return &i.HopperOutSensor }},
	{Field{"table_sensor", 1, 0x80}, func(i *Inputs) *bool { return &i.TableSensor }},

	{Field{"left_divider_sensor", 0, 0x01}, func(i *Inputs) *bool { return &i.LeftDividerSensor }},
	{Field{"right_divider_sensor", 0, 0x02}, func(i *Inputs) *bool { return &i.RightDividerSensor }},
	{Field{"test_switch", 0, 0x10}, func(i *Inputs) *bool { return &i.TestSwitch }},
	{Field{"select_switch_up", 0, 0x20}, func(i *Inputs) *bool { return &i.SelectSwitchUp }},
	{Field{"select_switch_down", 0, 0x40}, func(i *Inputs) *bool { return &i.SelectSwitchDown }},
	{Field{"enter_switch", 0, 0x80}, func(i *Inputs) *bool { return &i.EnterSwitch }},
}

var outputTable = []outputBit{
	{Field{"checker_0_led", 0, 0x01}, func(o *Outputs) *bool { return &o.Checker0Led }},
	{Field{"checker_1_led", 0, 0x02}, func(o *Outputs) *bool { return &o.Checker1Led }},
	{Field{"checker_2_led", 0, 0x04}, func(o *Outputs) *bool { return &o.Checker2Led }},
	{Field{"checker_3_led", 0, 0x08}, func(o *Outputs) *bool { return &o.Checker3Led }},
	{Field{"checker_4_led", 0, 0x10}, func(o *Outputs) *bool { return &o.Checker4Led }},
	{Field{"checker_5_led", 0, 0x20}, func(o *Outputs) *bool { return &o.Checker5Led }},
	{Field{"checker_6_led", 0, 0x40}, func(o *Outputs) *bool { return &o.Checker6Led }},
	{Field{"table_motor", 0, 0x80}, func(o *Outputs) *bool { return &o.TableMotor }},

	{Field{"left_hopper", 1, 0x01}, func(o *Outputs) *bool { return &o.LeftHopper }},
	{Field{"right_hopper", 1, 0x02}, func(o *Outputs) *bool { return &o.RightHopper }},
	{Field{"lockout_solenoid_left", 1, 0x04}, func(o *Outputs) *bool { return &o.LockoutSolenoidLeft }},
	{Field{"lockout_solenoid_right", 1, 0x08}, func(o *Outputs) *bool { return &o.LockoutSolenoidRight }},
	{Field{"out_hopper", 1, 0x10}, func(o *Outputs) *bool { return &o.OutHopper }},
	{Field{"payout_solenoid", 1, 0x20}, func(o *Outputs) *bool { return &o.PayoutSolenoid }},
	{Field{"divider_solenoid_left", 1, 0x40}, func(o *Outputs) *bool { return &o.DividerSolenoidLeft }},
	{Field{"divider_solenoid_right", 1, 0x80}, func(o *Outputs) *bool { return &o.DividerSolenoidRight }},

	{Field{"ray_lamp", 2, 0x04}, func(o *Outputs) *bool { return &o.RayLamp }},
}

// DecodeInputs maps raw port B values to Inputs. Inputs are active-low:
// a field is true when its bit reads 0.
func DecodeInputs(values [Devices]byte) (in Inputs) {
	for _, b := range inputTable {
		*b.ref(&in) = values[b.Device]&b.Mask == 0
	}
	return
}

// EncodeInputs is the inverse of DecodeInputs. Bits not owned by any field
// are left high, the idle level of a pulled-up line.
func EncodeInputs(in Inputs) (values [Devices]byte) {
	for d := range values {
		values[d] = 0xFF
	}
	for _, b := range inputTable {
		if *b.ref(&in) {
			values[b.Device] &^= b.Mask
		}
	}
	return
}

// EncodeOutputs maps Outputs to raw port A values. Outputs are active-high
// and bits not owned by any field stay 0.
func EncodeOutputs(out Outputs) (values [Devices]byte) {
	for _, b := range outputTable {
		if *b.ref(&out) {
			values[b.Device] |= b.Mask
		}
	}
	return
}

// DecodeOutputs reads Outputs back from port A values. Unmapped bits are
// ignored.
func DecodeOutputs(values [Devices]byte) (out Outputs) {
	for _, b := range outputTable {
		*b.ref(&out) = values[b.Device]&b.Mask != 0
	}
	return
}

func InputFields() []Field {
	fields := make([]Field, len(inputTable))
	for i, b := range inputTable {
		fields[i] = b.Field
	}
	return fields
}

func OutputFields() []Field {
	fields := make([]Field, len(outputTable))
	for i, b := range outputTable {
		fields[i] = b.Field
	}
	return fields
}

// Map returns the inputs keyed by field name.
func (in Inputs) Map() map[string]bool {
	m := make(map[string]bool, len(inputTable))
	for _, b := range inputTable {
		m[b.Name] = *b.ref(&in)
	}
	return m
}

// Map returns the outputs keyed by field name.
func (out Outputs) Map() map[string]bool {
	m := make(map[string]bool, len(outputTable))
	for _, b := range outputTable {
		m[b.Name] = *b.ref(&out)
	}
	return m
}

// Set changes a single output by field name and reports whether the name
// is known.
func (out *Outputs) Set(name string, state bool) bool {
	for _, b := range outputTable {
		if b.Name == name {
			*b.ref(out) = state
			return true
		}
	}
	return false
}

// Set changes a single input by field name and reports whether the name is
// known.
func (in *Inputs) Set(name string, state bool) bool {
	for _, b := range inputTable {
		if b.Name == name {
			*b.ref(in) = state
			return true
		}
	}
	return false
}
