package model

import "errors"

var (
	ErrShapeMismatch     = errors.New("tensor shape mismatch")
	ErrNonPositiveShape  = errors.New("non-positive feature map size")
	ErrUnsupportedFormat = errors.New("unsupported model format")
	ErrInvalidConfig     = errors.New("invalid network config")
)
