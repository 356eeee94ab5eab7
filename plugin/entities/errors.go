package entities

import (
	"errors"
	"fmt"
)

// Sentinel errors for load and install failures.
// These allow both errors.Is() checks and errors.As() for detailed information.
var (
	// ErrModuleNotFound is returned when the module file is missing at load time.
	ErrModuleNotFound = errors.New("plugin module not found")

	// ErrNoCapability is returned when a module satisfies no variant of the contract.
	ErrNoCapability = errors.New("module does not implement the plugin contract")

	// ErrModuleNameUnknown is returned when the module's declared name is empty.
	ErrModuleNameUnknown = errors.New("module name cannot be determined")

	// ErrModuleLoad covers every other load failure, including unresolved dependencies.
	ErrModuleLoad = errors.New("module load failed")

	// ErrInvalidPackage is returned when a package path fails validation.
	ErrInvalidPackage = errors.New("invalid plugin package")

	// ErrInvalidDescriptor is returned when a descriptor is missing or malformed.
	ErrInvalidDescriptor = errors.New("invalid plugin descriptor")

	// ErrVersionTooOld is returned when the incoming version is not newer.
	ErrVersionTooOld = errors.New("incoming version is not newer than installed")

	// ErrVersionUnparsable is returned when a version cannot be compared.
	ErrVersionUnparsable = errors.New("cannot parse version")

	// ErrMoveFailed is returned when a directory cannot be relocated.
	ErrMoveFailed = errors.New("move failed")
)

// LoadError describes why a module could not be loaded.
// Kind is one of the module sentinels above; Err is the underlying cause,
// possibly an errors.Join aggregate.
type LoadError struct {
	Path string
	Kind error
	Err  error
}

func (e *LoadError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Path)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Path, e.Err)
}

// Is implements error matching for errors.Is() checks.
// This allows: errors.Is(err, entities.ErrNoCapability)
func (e *LoadError) Is(target error) bool {
	return target == e.Kind
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// PackageValidationError indicates a package path was rejected before any
// filesystem mutation.
type PackageValidationError struct {
	Path   string
	Reason string
}

func (e *PackageValidationError) Error() string {
	return fmt.Sprintf("invalid plugin package %q: %s", e.Path, e.Reason)
}

// Is implements error matching for errors.Is() checks.
func (e *PackageValidationError) Is(target error) bool {
	return target == ErrInvalidPackage
}

// MoveError indicates a directory relocation failure.
type MoveError struct {
	From string
	To   string
	Err  error
}

func (e *MoveError) Error() string {
	return fmt.Sprintf("move %s -> %s: %v", e.From, e.To, e.Err)
}

// Is implements error matching for errors.Is() checks.
func (e *MoveError) Is(target error) bool {
	return target == ErrMoveFailed
}

func (e *MoveError) Unwrap() error {
	return e.Err
}
