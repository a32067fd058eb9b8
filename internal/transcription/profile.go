package transcription

import (
	"context"
	"strings"
)

// EnvBackend overrides backend selection for the process.
const EnvBackend = "VIDEOINSIGHT_ASR_BACKEND"

// Device identifies where inference runs.
type Device string

const (
	DeviceCPU Device = "cpu"
	DeviceGPU Device = "gpu"
)

// Variant identifies the backend implementation.
type Variant string

const (
	VariantWhisperCPP Variant = "whispercpp"
	VariantWhisperX   Variant = "whisperx"
)

// DeviceProfile is the outcome of backend selection.
type DeviceProfile struct {
	Device  Device  `json:"device"`
	Variant Variant `json:"variant"`
	Reason  string  `json:"reason"`
	// Downgraded is set when an accelerated backend was requested but the
	// hardware could not serve it.
	Downgraded bool `json:"downgraded,omitempty"`
}

// SelectionInput carries the two selection sources in priority order.
type SelectionInput struct {
	// Override is the raw value of EnvBackend.
	Override string
	// Configured is transcription.device from the config file.
	Configured string
}

// Prober reports whether an accelerator usable by WhisperX is present.
type Prober interface {
	HasAccelerator(ctx context.Context) bool
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context) bool

func (f ProberFunc) HasAccelerator(ctx context.Context) bool { return f(ctx) }

type choice int

const (
	choiceNone choice = iota
	choiceCPU
	choiceGPU
	choiceAuto
)

func parseOverride(value string) choice {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "whispercpp", "cpu", "a":
		return choiceCPU
	case "whisperx", "gpu", "cuda", "accelerated", "b":
		return choiceGPU
	default:
		return choiceNone
	}
}

func parseConfigured(value string) choice {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "cpu":
		return choiceCPU
	case "gpu", "cuda", "accelerated":
		return choiceGPU
	default:
		return choiceAuto
	}
}

// SelectProfile chooses a backend. The environment override wins over the
// configured device, which wins over probing. A CPU choice never probes.
// For the same input and probe answer the result is always the same.
func SelectProfile(ctx context.Context, in SelectionInput, prober Prober) DeviceProfile {
	source := "config"
	pick := parseOverride(in.Override)
	if pick != choiceNone {
		source = EnvBackend
	} else {
		pick = parseConfigured(in.Configured)
	}

	cpu := func(reason string, downgraded bool) DeviceProfile {
		return DeviceProfile{Device: DeviceCPU, Variant: VariantWhisperCPP, Reason: reason, Downgraded: downgraded}
	}

	if pick == choiceCPU {
		return cpu("cpu requested by "+source, false)
	}

	hasGPU := prober != nil && prober.HasAccelerator(ctx)
	switch pick {
	case choiceGPU:
		if hasGPU {
			return DeviceProfile{Device: DeviceGPU, Variant: VariantWhisperX, Reason: "gpu requested by " + source}
		}
		return cpu("gpu requested by "+source+" but no accelerator detected; using whispercpp", true)
	default:
		if hasGPU {
			return DeviceProfile{Device: DeviceGPU, Variant: VariantWhisperX, Reason: "auto: accelerator detected"}
		}
		return cpu("auto: no accelerator detected", false)
	}
}
