package parser

import "fmt"

// ErrMalformedPage indicates a detail page is missing a required structural
// location.
type ErrMalformedPage struct {
	Part string
}

func (e ErrMalformedPage) Error() string {
	return fmt.Sprintf("malformed detail page: missing %s", e.Part)
}

// ErrMalformedAvailability indicates the availability text carries no digit
// run, so no stock count can be read from it.
type ErrMalformedAvailability struct {
	Text string
}

func (e ErrMalformedAvailability) Error() string {
	return fmt.Sprintf("malformed availability text %q: no digits found", e.Text)
}
