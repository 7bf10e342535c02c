package utils

import (
	"fmt"

	"github.com/notargets/gocca"
)

// deviceProps maps OCCA modes to their device properties
var deviceProps = map[string]string{
	"OpenMP": `{"mode": "OpenMP"}`,
	"CUDA":   `{"mode": "CUDA", "device_id": 0}`,
	"Serial": `{"mode": "Serial"}`,
}

// NewDevice creates a Device for one OCCA mode
func NewDevice(mode string) (*gocca.OCCADevice, error) {
	props, ok := deviceProps[mode]
	if !ok {
		return nil, fmt.Errorf("unknown device mode %q", mode)
	}
	device, err := gocca.NewDevice(props)
	if err != nil {
		return nil, fmt.Errorf("creating %s device: %w", mode, err)
	}
	return device, nil
}

// CreateTestDevice creates a Device for testing, preferring parallel backends
func CreateTestDevice() *gocca.OCCADevice {
	for _, mode := range []string{"OpenMP", "CUDA", "Serial"} {
		device, err := NewDevice(mode)
		if err == nil {
			fmt.Printf("Created %s Device\n", device.Mode())
			return device
		}
	}

	// Should not reach here
	panic("Failed to create any Device")
}
