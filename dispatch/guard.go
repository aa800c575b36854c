package dispatch

import (
	"fmt"
)

// Diagnostic is a failure description shown to the host verbatim. Member
// implementations may return it as an error or panic with it.
type Diagnostic string

func (d Diagnostic) Error() string { return string(d) }

const unknownError = "<unknown error>"

// Render converts a recovered panic value or returned error into the text
// stored as the diagnostic. It never panics and never returns "".
func Render(r any) (text string) {
	defer func() {
		if recover() != nil {
			text = unknownError
		}
	}()

	switch v := r.(type) {
	case Diagnostic:
		text = string(v)
	case string:
		text = v
	case error:
		text = v.Error()
	case fmt.Stringer:
		text = v.String()
	default:
		text = unknownError
	}
	if text == "" {
		text = unknownError
	}
	return text
}

// failure is a recovered panic, kept apart from returned errors for logging.
type failure struct {
	value any
}

func (f failure) Error() string { return Render(f.value) }

// protect runs fn and turns a panic into a failure error.
func protect(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = failure{value: r}
		}
	}()
	return fn()
}

// swallow runs fn and drops any panic it raises.
func swallow(fn func()) {
	defer func() { _ = recover() }()
	fn()
}
