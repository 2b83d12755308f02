// Package limiter enforces request size and per-endpoint rate ceilings.
//
// Both checks are pure verdicts: they never log, broadcast, or write a
// response. The actor decides what to do with a failure.
package limiter

import "fmt"

// SizeExceededError reports a request body over the tier's size ceiling.
// Size is the observed (or declared) byte count, MaxSize the ceiling.
type SizeExceededError struct {
	Size    int64
	MaxSize int64
}

func (e *SizeExceededError) Error() string {
	return fmt.Sprintf("request body of %d bytes exceeds limit of %d bytes", e.Size, e.MaxSize)
}

// CheckDeclaredSize validates a Content-Length declaration against the
// ceiling. A negative length means no declaration and passes; the body
// check catches undeclared or understated lengths after the read.
func CheckDeclaredSize(contentLength, maxSize int64) error {
	if contentLength > maxSize {
		return &SizeExceededError{Size: contentLength, MaxSize: maxSize}
	}
	return nil
}

// CheckBodySize validates the actually-read body length. Exactly at the
// limit passes; one byte over fails.
func CheckBodySize(size, maxSize int64) error {
	if size > maxSize {
		return &SizeExceededError{Size: size, MaxSize: maxSize}
	}
	return nil
}
