// Package device resolves the single process-wide inference device and
// the concurrency limit it implies. Resolution happens once at startup
// and the result is immutable afterward.
package device

import (
	"strconv"
	"strings"
)

// Kind is the resolved device family.
type Kind string

const (
	CPU Kind = "cpu"
	GPU Kind = "gpu"
)

// Device is the resolved device plus the concurrency it defaults to.
type Device struct {
	Kind  Kind
	Index int
}

// DefaultMaxInflight returns 1 on GPU (to avoid VRAM contention) or
// maxWorkersBackend on CPU.
func (d Device) DefaultMaxInflight(maxWorkersBackend int) int {
	if d.Kind == GPU {
		return 1
	}
	if maxWorkersBackend < 1 {
		return 1
	}
	return maxWorkersBackend
}

// Probe is what the inference runtime collaborator reports about hardware
// it can see; the resolver never shells out to query devices itself.
type Probe struct {
	GPUAvailable bool
}

// Resolve implements the precedence explicit device string > UseGPU flag
// > auto-detect (the runtime's Probe).
func Resolve(deviceStr string, useGPU *bool, probe Probe) Device {
	if deviceStr != "" {
		return parseDeviceString(deviceStr)
	}

	if useGPU != nil {
		if *useGPU {
			return Device{Kind: GPU, Index: 0}
		}
		return Device{Kind: CPU}
	}

	if probe.GPUAvailable {
		return Device{Kind: GPU, Index: 0}
	}
	return Device{Kind: CPU}
}

func parseDeviceString(s string) Device {
	if s == "cpu" {
		return Device{Kind: CPU}
	}
	if s == "gpu" {
		return Device{Kind: GPU, Index: 0}
	}
	if strings.HasPrefix(s, "gpu:") {
		idx, err := strconv.Atoi(strings.TrimPrefix(s, "gpu:"))
		if err != nil || idx < 0 {
			idx = 0
		}
		return Device{Kind: GPU, Index: idx}
	}
	return Device{Kind: CPU}
}

// String renders the device the way the inference runtime expects it,
// e.g. "cpu", "gpu:0".
func (d Device) String() string {
	if d.Kind == CPU {
		return "cpu"
	}
	return "gpu:" + strconv.Itoa(d.Index)
}
