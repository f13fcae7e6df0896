package shortener

import "errors"

var (
	// ErrInvalidURL means the input could not be parsed into an absolute URL.
	ErrInvalidURL = errors.New("the URL is malformed, please check it")

	// ErrSelfReferential means the destination points back at this service,
	// which would create a redirect loop through our own namespace.
	ErrSelfReferential = errors.New("cannot shorten a URL that points at this service")

	// ErrCodeSpaceExhausted means every generated candidate collided with an
	// existing code within the attempt bound. It signals the code length or
	// alphabet needs revisiting, not a transient condition worth looping on.
	ErrCodeSpaceExhausted = errors.New("could not allocate a unique short code, please retry")

	// ErrDestinationTaken reports an insert that lost a race on the
	// destination's unique index: another writer created the Link first.
	ErrDestinationTaken = errors.New("destination URL already has a link")

	// ErrCodeTaken reports an insert that collided on the short-code index.
	ErrCodeTaken = errors.New("short code already in use")
)
