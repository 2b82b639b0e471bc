package physics

import "errors"

var (
	// ErrInvalidMaterial indicates a material constant outside its physical range.
	ErrInvalidMaterial = errors.New("physics: invalid material constants")

	// ErrNotImplemented is returned by models that only provide the mixed
	// stress form.
	ErrNotImplemented = errors.New("physics: not implemented")

	// ErrUnknownParam indicates SetParam was called with a name the model
	// does not expose.
	ErrUnknownParam = errors.New("physics: unknown parameter")
)
