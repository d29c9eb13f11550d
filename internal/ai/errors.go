package ai

import "fmt"

// CapabilityError is a non-success response from one of the external
// AI providers. The pipeline decides per stage whether it is fatal.
type CapabilityError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *CapabilityError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s API error (%d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}
