package inspect

// StatusClass groups HTTP status codes for display.
type StatusClass string

// Status classes.
const (
	StatusSuccess     StatusClass = "success"
	StatusRedirect    StatusClass = "redirect"
	StatusClientError StatusClass = "clientError"
	StatusServerError StatusClass = "serverError"
	StatusUnknown     StatusClass = "unknown"
)

// ClassifyStatus maps a status code to its class. Codes outside 200-599,
// including 0 for "no response", are StatusUnknown.
func ClassifyStatus(status int) StatusClass {
	switch {
	case status >= 200 && status < 300:
		return StatusSuccess
	case status >= 300 && status < 400:
		return StatusRedirect
	case status >= 400 && status < 500:
		return StatusClientError
	case status >= 500 && status < 600:
		return StatusServerError
	default:
		return StatusUnknown
	}
}
