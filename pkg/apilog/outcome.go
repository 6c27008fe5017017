package apilog

// OutcomeKind tags an Outcome.
type OutcomeKind string

// Outcome kinds.
const (
	OutcomeResponse OutcomeKind = "response"
	OutcomeError    OutcomeKind = "error"
)

// Outcome is the result of an attempt or of a whole request: either a
// response or an error, never both.
type Outcome struct {
	Kind     OutcomeKind
	Response *Response
	Error    *ErrorInfo
}

// ResponseOutcome returns a response outcome.
func ResponseOutcome(r Response) Outcome {
	return Outcome{Kind: OutcomeResponse, Response: &r}
}

// ErrorOutcome returns an error outcome.
func ErrorOutcome(e ErrorInfo) Outcome {
	return Outcome{Kind: OutcomeError, Error: &e}
}

// ErrorOutcomeFrom returns an error outcome for err.
func ErrorOutcomeFrom(err error) Outcome {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return ErrorOutcome(ErrorInfo{Message: msg})
}

// normalize returns copies of the response/error pair with exactly one set.
// Malformed outcomes degrade to an error describing the problem.
func (o Outcome) normalize() (*Response, *ErrorInfo) {
	switch o.Kind {
	case OutcomeResponse:
		if o.Response == nil {
			return &Response{}, nil
		}
		return o.Response.clone(), nil
	case OutcomeError:
		if o.Error == nil {
			return nil, &ErrorInfo{Message: "unknown error"}
		}
		return nil, o.Error.clone()
	default:
		switch {
		case o.Response != nil && o.Error == nil:
			return o.Response.clone(), nil
		case o.Error != nil:
			return nil, o.Error.clone()
		default:
			return nil, &ErrorInfo{Message: "missing outcome"}
		}
	}
}
