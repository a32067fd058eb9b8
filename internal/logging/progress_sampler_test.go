package logging

import "testing"

func TestNewProgressSampler(t *testing.T) {
	tests := []struct {
		name       string
		bucketSize int
		wantSize   int
	}{
		{"default bucket size for zero", 0, 10},
		{"default bucket size for negative", -1, 10},
		{"custom bucket size", 20, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewProgressSampler(tt.bucketSize)
			if s.bucketSize != tt.wantSize {
				t.Errorf("bucketSize = %v, want %v", s.bucketSize, tt.wantSize)
			}
			if s.lastBucket != -1 {
				t.Errorf("lastBucket = %d, want -1", s.lastBucket)
			}
		})
	}
}

func TestProgressSampler_NilSampler(t *testing.T) {
	var s *ProgressSampler
	if !s.ShouldLog(50, "stage") {
		t.Error("ShouldLog on nil sampler should always return true")
	}
	s.Reset()
}

func TestProgressSampler_Buckets(t *testing.T) {
	s := NewProgressSampler(20)
	var logged []int
	for _, p := range []int{10, 12, 19, 20, 35, 40, 41, 99, 100, 100} {
		if s.ShouldLog(p, "") {
			logged = append(logged, p)
		}
	}
	want := []int{10, 20, 40, 99, 100}
	if len(logged) != len(want) {
		t.Fatalf("logged = %v, want %v", logged, want)
	}
	for i := range want {
		if logged[i] != want[i] {
			t.Fatalf("logged = %v, want %v", logged, want)
		}
	}
}

func TestProgressSampler_StageChangeResetsBucket(t *testing.T) {
	s := NewProgressSampler(10)
	if !s.ShouldLog(50, "download") {
		t.Fatal("first value should log")
	}
	if s.ShouldLog(55, "download") {
		t.Fatal("same bucket should not log")
	}
	if !s.ShouldLog(10, "transcribe") {
		t.Fatal("stage change should log")
	}
	if s.lastStage != "transcribe" {
		t.Fatalf("lastStage = %q, want transcribe", s.lastStage)
	}
}

func TestProgressSampler_UnknownPercent(t *testing.T) {
	s := NewProgressSampler(10)
	if !s.ShouldLog(-1, "probe") {
		t.Fatal("stage change with unknown percent should log")
	}
	if s.ShouldLog(-1, "probe") {
		t.Fatal("unknown percent on same stage should not log")
	}
	s.Reset()
	if !s.ShouldLog(0, "") {
		t.Fatal("first bucket after reset should log")
	}
}
