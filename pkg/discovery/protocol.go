// Package discovery identifies devices on a board's bus with the XIOT
// handshake: write IDENTIFY, wait, read [magic, class, subtype, capabilities].
package discovery

import (
	"fmt"
	"time"

	"github.com/janael-pinheiro/xiot-cloud-sdk-golang/pkg/entities"
	"github.com/pkg/errors"
)

const (
	Magic       byte = 0xA5
	CmdIdentify byte = 0xFF

	// ScanStart and ScanEnd bound the 7-bit range, skipping the reserved
	// addresses at both ends.
	ScanStart uint16 = 0x08
	ScanEnd   uint16 = 0x77

	DefaultSettleDelay   = 10 * time.Millisecond
	identifyResponseSize = 4
)

const (
	classSensor   byte = 0x01
	classActuator byte = 0x02
)

const (
	capRead    byte = 0x01
	capWrite   byte = 0x02
	capPWM     byte = 0x04
	capAnalog  byte = 0x08
	capDigital byte = 0x10
)

var ErrNotXIoTDevice = errors.New("not an xiot device")

var deviceClasses = map[byte]string{
	classSensor:   entities.DeviceClassSensor,
	classActuator: entities.DeviceClassActuator,
}

var sensorSubtypes = map[byte]string{
	0x10: "temperature",
	0x11: "humidity",
	0x12: "pressure",
	0x13: "light",
	0x14: "motion",
	0x15: "gas",
	0x16: "vibration",
	0x1F: entities.DeviceTypeCustom,
}

var actuatorSubtypes = map[byte]string{
	0x20: "led",
	0x21: "relay",
	0x22: "servo",
	0x23: "motor",
	0x24: "buzzer",
	0x25: "pwm",
	0x2F: entities.DeviceTypeCustom,
}

// capabilityFlags is ordered so decoded capability lists are stable.
var capabilityFlags = []struct {
	bit  byte
	name string
}{
	{capRead, entities.CapabilityRead},
	{capWrite, entities.CapabilityWrite},
	{capPWM, entities.CapabilityPWM},
	{capAnalog, entities.CapabilityAnalog},
	{capDigital, entities.CapabilityDigital},
}

func FormatAddress(addr uint16) string {
	return fmt.Sprintf("0x%02X", addr)
}

// Identify runs the handshake against one address. sleep is called between
// the write and the read.
func Identify(bus Bus, addr uint16, settle time.Duration, sleep func(time.Duration)) ([]byte, error) {
	if err := bus.Write(addr, []byte{CmdIdentify}); err != nil {
		return nil, errors.Wrap(err, "write identify")
	}
	if settle > 0 {
		sleep(settle)
	}
	response := make([]byte, identifyResponseSize)
	if err := bus.Read(addr, response); err != nil {
		return nil, errors.Wrap(err, "read identify response")
	}
	return response, nil
}

// Decode validates an identify response and maps it to a descriptor.
func Decode(addr uint16, response []byte) (entities.DeviceDescriptor, error) {
	if len(response) != identifyResponseSize {
		return entities.DeviceDescriptor{}, errors.Errorf("identify response has %d bytes, want %d", len(response), identifyResponseSize)
	}
	magic, class, subtype, caps := response[0], response[1], response[2], response[3]
	if magic != Magic {
		return entities.DeviceDescriptor{}, errors.Wrapf(ErrNotXIoTDevice, "magic 0x%02X", magic)
	}

	descriptor := entities.DeviceDescriptor{
		Address:      FormatAddress(addr),
		DeviceClass:  entities.DeviceClassUnknown,
		DeviceType:   entities.DeviceClassUnknown,
		Capabilities: []string{},
		Raw:          entities.RawIdentity{Class: class, Subtype: subtype, Caps: caps},
	}
	if name, ok := deviceClasses[class]; ok {
		descriptor.DeviceClass = name
		descriptor.DeviceType = subtypeName(class, subtype)
	}
	for _, flag := range capabilityFlags {
		if caps&flag.bit != 0 {
			descriptor.Capabilities = append(descriptor.Capabilities, flag.name)
		}
	}
	return descriptor, nil
}

func subtypeName(class, subtype byte) string {
	table := sensorSubtypes
	if class == classActuator {
		table = actuatorSubtypes
	}
	if name, ok := table[subtype]; ok {
		return name
	}
	return entities.DeviceTypeCustom
}
