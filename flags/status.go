package flags

import "fmt"

// BackendErrorText is shown when the backend cannot be reached or answers
// with something other than a boolean.
const BackendErrorText = "Backend API call failed, please check that the backend service is running"

// StatusText renders a result as the two-line status shown to users.
func StatusText(r Result) string {
	label := "Frontend check"
	if r.Source == SourceBackend {
		label = "Backend check"
	}
	if r.Enabled {
		return fmt.Sprintf("%s:\nNew feature enabled!", label)
	}
	return fmt.Sprintf("%s:\nFalling back to legacy logic", label)
}
