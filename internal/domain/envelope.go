package domain

// Envelope is the uniform JSON shape returned at the service boundary.
// Success responses populate Images or Image; failures populate Error and
// Message.
type Envelope struct {
	Images  []string `json:"images,omitempty"`
	Image   string   `json:"image,omitempty"`
	Error   string   `json:"error,omitempty"`
	Message string   `json:"message,omitempty"`
	Details []string `json:"details,omitempty"`
	Stack   string   `json:"stack,omitempty"`
}

// UpscaleResult is the success payload of the upscale route.
type UpscaleResult struct {
	Success     bool   `json:"success"`
	Image       string `json:"image"`
	OriginalURL string `json:"originalUrl"`
	Scale       int    `json:"scale"`
}

// ErrorEnvelope builds a failure envelope.
func ErrorEnvelope(kind, message string, details []string) *Envelope {
	return &Envelope{Error: kind, Message: message, Details: details}
}
