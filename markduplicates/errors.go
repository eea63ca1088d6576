package markduplicates

import "github.com/pkg/errors"

// ConfigError reports a problem detected before Pass 1 begins: an
// unreadable or unwritable path, an unsupported sort order, or an
// invalid option combination. Per spec §7, configuration errors fail
// fast and never leave a pass partially run.
type ConfigError struct {
	cause error
}

func newConfigError(format string, args ...interface{}) error {
	return &ConfigError{cause: errors.Errorf(format, args...)}
}

func wrapConfigError(err error, format string, args ...interface{}) error {
	return &ConfigError{cause: errors.Wrapf(err, format, args...)}
}

func (e *ConfigError) Error() string { return "markduplicates: configuration: " + e.cause.Error() }
func (e *ConfigError) Unwrap() error { return e.cause }

// DataError reports a failure encountered mid-pass: a corrupt record,
// a spill failure, or file-handle exhaustion. It carries the record
// index and the offending resource so the operator can locate the
// input position that triggered it, per spec §7.
type DataError struct {
	RecordIndex int64
	Resource    string
	cause       error
}

func newDataError(recordIndex int64, resource string, cause error) error {
	return &DataError{RecordIndex: recordIndex, Resource: resource, cause: cause}
}

func (e *DataError) Error() string {
	return errors.Wrapf(e.cause, "markduplicates: data error at record %d (%s)", e.RecordIndex, e.Resource).Error()
}
func (e *DataError) Unwrap() error { return e.cause }

// IsFatal reports whether err should abort the run. Every error this
// package produces is fatal; there is no per-record recovery, since
// downstream metrics depend on complete traversal (spec §7). The
// predicate exists so callers have one place to apply that policy
// rather than asserting concrete types themselves.
func IsFatal(err error) bool {
	return err != nil
}
