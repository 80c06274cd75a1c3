package core

import (
	"github.com/cockroachdb/errors"
)

var (
	// ErrConfig marks errors caused by an invalid description: mismatched
	// array lengths, out-of-range attachment indices, unknown names.
	ErrConfig = errors.New("configuration error")
	// ErrNativeCreation marks errors reported by the native API while
	// creating render passes, layouts, pipelines or other device objects.
	ErrNativeCreation = errors.New("native creation failure")
	// ErrSubpassOutOfRange is returned by lookups past the last subpass.
	ErrSubpassOutOfRange = errors.New("subpass index out of range")
)

// ConfigErrorf returns a new error marked as ErrConfig.
func ConfigErrorf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrConfig)
}

// NativeErrorf returns a new error marked as ErrNativeCreation.
func NativeErrorf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrNativeCreation)
}

// IsConfigError reports whether err, or anything it wraps, is a configuration error.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrConfig)
}

// IsNativeError reports whether err, or anything it wraps, came from the native API.
func IsNativeError(err error) bool {
	return errors.Is(err, ErrNativeCreation)
}
