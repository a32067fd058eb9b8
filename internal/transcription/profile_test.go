package transcription

import (
	"context"
	"errors"
	"testing"
)

type countingProber struct {
	gpu   bool
	calls int
}

func (p *countingProber) HasAccelerator(context.Context) bool {
	p.calls++
	return p.gpu
}

func TestSelectProfile(t *testing.T) {
	tests := []struct {
		name       string
		in         SelectionInput
		gpu        bool
		want       Variant
		downgraded bool
		probes     bool
	}{
		{"auto with gpu", SelectionInput{Configured: "auto"}, true, VariantWhisperX, false, true},
		{"auto without gpu", SelectionInput{Configured: "auto"}, false, VariantWhisperCPP, false, true},
		{"empty config is auto", SelectionInput{}, true, VariantWhisperX, false, true},
		{"config cpu pins whispercpp", SelectionInput{Configured: "cpu"}, true, VariantWhisperCPP, false, false},
		{"config gpu with gpu", SelectionInput{Configured: "gpu"}, true, VariantWhisperX, false, true},
		{"config gpu downgrades", SelectionInput{Configured: "gpu"}, false, VariantWhisperCPP, true, true},
		{"env cpu beats config gpu", SelectionInput{Override: "cpu", Configured: "gpu"}, true, VariantWhisperCPP, false, false},
		{"env letter a", SelectionInput{Override: "A"}, true, VariantWhisperCPP, false, false},
		{"env whisperx beats config cpu", SelectionInput{Override: "whisperx", Configured: "cpu"}, true, VariantWhisperX, false, true},
		{"env cuda downgrades", SelectionInput{Override: "cuda", Configured: "cpu"}, false, VariantWhisperCPP, true, true},
		{"unknown env falls back to config", SelectionInput{Override: "tpu", Configured: "cpu"}, true, VariantWhisperCPP, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prober := &countingProber{gpu: tt.gpu}
			got := SelectProfile(context.Background(), tt.in, prober)
			if got.Variant != tt.want {
				t.Fatalf("variant = %s, want %s (%s)", got.Variant, tt.want, got.Reason)
			}
			if got.Downgraded != tt.downgraded {
				t.Fatalf("downgraded = %v, want %v", got.Downgraded, tt.downgraded)
			}
			if (prober.calls > 0) != tt.probes {
				t.Fatalf("probe calls = %d, want probing=%v", prober.calls, tt.probes)
			}
			wantDevice := DeviceCPU
			if tt.want == VariantWhisperX {
				wantDevice = DeviceGPU
			}
			if got.Device != wantDevice {
				t.Fatalf("device = %s, want %s", got.Device, wantDevice)
			}
			if got.Reason == "" {
				t.Fatal("expected a reason")
			}
		})
	}
}

func TestSelectProfileIsDeterministic(t *testing.T) {
	inputs := []SelectionInput{{Configured: "auto"}, {Override: "b"}, {Configured: "gpu"}}
	for _, in := range inputs {
		for _, gpu := range []bool{true, false} {
			first := SelectProfile(context.Background(), in, ProberFunc(func(context.Context) bool { return gpu }))
			for i := 0; i < 5; i++ {
				again := SelectProfile(context.Background(), in, ProberFunc(func(context.Context) bool { return gpu }))
				if again != first {
					t.Fatalf("selection changed for %+v gpu=%v: %+v vs %+v", in, gpu, first, again)
				}
			}
		}
	}
}

func TestHardwareProberDeviceNodes(t *testing.T) {
	prober := HardwareProber{
		Access:      func(string, uint32) error { return nil },
		DeviceNodes: []string{"/dev/nvidia0", "/dev/nvidiactl"},
		Run: func(context.Context, string, ...string) ([]byte, error) {
			t.Fatal("nvidia-smi should not run when device nodes are usable")
			return nil, nil
		},
	}
	if !prober.HasAccelerator(context.Background()) {
		t.Fatal("expected accelerator from device nodes")
	}
}

func TestHardwareProberFallsBackToSMI(t *testing.T) {
	denied := func(string, uint32) error { return errors.New("denied") }
	withGPU := HardwareProber{
		Access: denied,
		Run: func(_ context.Context, name string, args ...string) ([]byte, error) {
			if name != "nvidia-smi" || len(args) != 1 || args[0] != "-L" {
				t.Fatalf("unexpected command %s %v", name, args)
			}
			return []byte("GPU 0: NVIDIA GeForce RTX 4090 (UUID: GPU-abc)\n"), nil
		},
	}
	if !withGPU.HasAccelerator(context.Background()) {
		t.Fatal("expected accelerator from nvidia-smi")
	}

	missing := HardwareProber{
		Access: denied,
		Run: func(context.Context, string, ...string) ([]byte, error) {
			return nil, errors.New("executable file not found")
		},
	}
	if missing.HasAccelerator(context.Background()) {
		t.Fatal("expected no accelerator")
	}

	empty := HardwareProber{
		Access: denied,
		Run: func(context.Context, string, ...string) ([]byte, error) {
			return []byte("No devices found.\n"), nil
		},
	}
	if empty.HasAccelerator(context.Background()) {
		t.Fatal("expected no accelerator for empty listing")
	}
}
