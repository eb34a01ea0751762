package model

// AudioData is the encoded microphone capture sent by clients.
type AudioData struct {
	Data        string `json:"data"`
	Format      string `json:"format,omitempty"`
	DurationSec int    `json:"durationSec,omitempty"`
}

type ChatRequest struct {
	Message   string     `json:"message,omitempty"`
	ImageData string     `json:"imageData,omitempty"`
	AudioData *AudioData `json:"audioData,omitempty"`
}

// ChatResponse is the normalized reply. Failures carry Error, a machine Code
// and optionally the upstream body in Details.
type ChatResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Error     string `json:"error,omitempty"`
	Code      string `json:"code,omitempty"`
	Details   string `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type TestResponse struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

type HealthResponse struct {
	OK bool `json:"ok"`
}

type ReadyResponse struct {
	OK          bool   `json:"ok"`
	ServiceName string `json:"service_name,omitempty"`
	Provider    string `json:"provider,omitempty"`
}
