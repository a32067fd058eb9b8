package whisperx

// WhisperX invocation defaults for the accelerated backend.
const (
	DefaultModel = "large-v3"

	// CUDAIndexURL is the PyTorch wheel index for CUDA 12.8.
	CUDAIndexURL = "https://download.pytorch.org/whl/cu128"
	// PypiIndexURL is the default Python package index.
	PypiIndexURL = "https://pypi.org/simple"

	BatchSize    = "16"
	ChunkSize    = "15"
	VADOnset     = "0.08"
	VADOffset    = "0.07"
	BeamSize     = "5"
	OutputFormat = "json"

	CUDADevice      = "cuda"
	CUDAComputeType = "float16"

	UVXCommand = "uvx"

	// transcriptPrefix marks decoded segment lines in verbose output.
	transcriptPrefix = "Transcript:"
)

// Config contains settings for WhisperX transcription.
type Config struct {
	// Model is the Whisper model name (for example large-v3).
	Model string
	// ModelCacheDir is exported as HF_HOME so weights download once.
	ModelCacheDir string
	// HFToken authenticates Hugging Face downloads when set.
	HFToken string
	// UVXBinary overrides the uvx executable.
	UVXBinary string
}
