package main

import (
	"strings"

	"github.com/google/gousb"
)

// usbProductString resolves the manufacturer and product strings for a
// VID/PID pair. Best effort: any failure yields an empty string and the
// caller skips the cosmetic detail.
func usbProductString(vendor, product uint16) string {
	ctx := gousb.NewContext()
	defer ctx.Close()

	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Vendor == gousb.ID(vendor) && desc.Product == gousb.ID(product)
	})
	for _, dev := range devs {
		defer dev.Close()
	}
	if err != nil || len(devs) == 0 {
		return ""
	}

	var parts []string
	if maker, err := devs[0].Manufacturer(); err == nil && strings.TrimSpace(maker) != "" {
		parts = append(parts, strings.TrimSpace(maker))
	}
	if name, err := devs[0].Product(); err == nil && strings.TrimSpace(name) != "" {
		parts = append(parts, strings.TrimSpace(name))
	}
	return strings.Join(parts, " ")
}
