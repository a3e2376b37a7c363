package capture

import (
	"strings"

	"github.com/satriahrh/arunika/voiceclient/domain/repositories"
)

// selection is the resolved device plus whether it differs from the request
type selection struct {
	device   repositories.MicrophoneInfo
	fallback bool
}

// selectDevice resolves the requested device against the live list. A missing
// device falls back to the configured fallback, then the system default, then
// the first device listed.
func selectDevice(devices []repositories.MicrophoneInfo, requested, fallback string) (selection, bool) {
	if len(devices) == 0 {
		return selection{}, false
	}

	requested = strings.TrimSpace(requested)
	fallback = strings.TrimSpace(fallback)

	if requested != "" && requested != "default" {
		if dev, ok := findDevice(devices, requested); ok {
			return selection{device: dev}, true
		}
	}

	if fallback != "" && fallback != "default" {
		if dev, ok := findDevice(devices, fallback); ok {
			return selection{device: dev, fallback: requested != ""}, true
		}
	}

	for _, dev := range devices {
		if dev.Default {
			return selection{device: dev, fallback: requested != "" && requested != "default"}, true
		}
	}
	return selection{device: devices[0], fallback: requested != ""}, true
}

// findDevice matches an exact ID first, then a case-insensitive name substring
func findDevice(devices []repositories.MicrophoneInfo, term string) (repositories.MicrophoneInfo, bool) {
	for _, dev := range devices {
		if dev.ID == term {
			return dev, true
		}
	}
	term = strings.ToLower(term)
	for _, dev := range devices {
		if strings.Contains(strings.ToLower(dev.Name), term) {
			return dev, true
		}
	}
	return repositories.MicrophoneInfo{}, false
}

// without returns devices minus the one with the given ID
func without(devices []repositories.MicrophoneInfo, id string) []repositories.MicrophoneInfo {
	out := make([]repositories.MicrophoneInfo, 0, len(devices))
	for _, dev := range devices {
		if dev.ID != id {
			out = append(out, dev)
		}
	}
	return out
}

// clampRate limits rate to the device's supported range
func clampRate(dev repositories.MicrophoneInfo, rate int) int {
	if dev.MinRate > 0 && rate < dev.MinRate {
		return dev.MinRate
	}
	if dev.MaxRate > 0 && rate > dev.MaxRate {
		return dev.MaxRate
	}
	return rate
}
