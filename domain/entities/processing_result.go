package entities

// ProcessingResult is the terminal outcome of one pipeline run. Success
// fields and ErrorMessage are mutually exclusive; a result is never
// partially populated.
type ProcessingResult struct {
	Success      bool   `json:"success"`
	Transcript   string `json:"transcript,omitempty"`
	Response     string `json:"response,omitempty"`
	Audio        []byte `json:"audio,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// SuccessResult builds a successful outcome. Audio may be nil when speech
// synthesis degraded to a text-only answer.
func SuccessResult(transcript, response string, audio []byte) ProcessingResult {
	return ProcessingResult{
		Success:    true,
		Transcript: transcript,
		Response:   response,
		Audio:      audio,
	}
}

// FailureResult builds a failed outcome carrying only the error message
func FailureResult(message string) ProcessingResult {
	return ProcessingResult{
		ErrorMessage: message,
	}
}
