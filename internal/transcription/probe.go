package transcription

import (
	"context"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

var nvidiaDeviceNodes = []string{"/dev/nvidia0", "/dev/nvidiactl"}

const probeTimeout = 5 * time.Second

// HardwareProber detects NVIDIA GPUs through device nodes or nvidia-smi.
type HardwareProber struct {
	// Access checks a device node; defaults to unix.Access.
	Access func(path string, mode uint32) error
	// Run executes nvidia-smi; defaults to os/exec.
	Run func(ctx context.Context, name string, args ...string) ([]byte, error)
	// DeviceNodes overrides the nodes checked before falling back to nvidia-smi.
	DeviceNodes []string
	// SMIBinary overrides the nvidia-smi executable.
	SMIBinary string
}

// HasAccelerator reports whether a usable NVIDIA GPU is present.
func (p HardwareProber) HasAccelerator(ctx context.Context) bool {
	access := p.Access
	if access == nil {
		access = unix.Access
	}
	nodes := p.DeviceNodes
	if nodes == nil {
		nodes = nvidiaDeviceNodes
	}
	usable := 0
	for _, node := range nodes {
		if access(node, unix.R_OK|unix.W_OK) == nil {
			usable++
		}
	}
	if len(nodes) > 0 && usable == len(nodes) {
		return true
	}

	run := p.Run
	if run == nil {
		run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).Output() //nolint:gosec
		}
	}
	binary := p.SMIBinary
	if binary == "" {
		binary = "nvidia-smi"
	}
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	output, err := run(ctx, binary, "-L")
	if err != nil {
		return false
	}
	for _, line := range strings.Split(string(output), "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "GPU ") {
			return true
		}
	}
	return false
}
