package apperrors

import "errors"

var (
	ErrUnknownColumn      = errors.New("unknown column")
	ErrDuplicateColumn    = errors.New("duplicate column")
	ErrKindMismatch       = errors.New("column kind mismatch")
	ErrLengthMismatch     = errors.New("column length mismatch")
	ErrMalformedRecord    = errors.New("malformed record")
	ErrUnsupportedURI     = errors.New("unsupported storage uri")
	ErrUnsupportedFormat  = errors.New("unsupported table format")
	ErrMissingCredentials = errors.New("missing credentials")
	ErrInvalidConfig      = errors.New("invalid configuration")
)
