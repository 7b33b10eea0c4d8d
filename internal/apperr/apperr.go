package apperr

import "errors"

// Общая таксономия ошибок ядра. Обработчики переводят их в HTTP-коды,
// внутри ядра ошибки только оборачиваются через fmt.Errorf("%w", ...).
var (
	ErrValidation = errors.New("validation error")
	ErrInvariant  = errors.New("invariant violation")
	ErrNotFound   = errors.New("not found")
)
