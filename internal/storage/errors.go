package storage

import (
	"errors"
	"fmt"
)

// ErrStorageUnavailable indica que o meio de armazenamento não respondeu
var ErrStorageUnavailable = errors.New("armazenamento indisponível")

// Unavailable embrulha uma falha de backend em ErrStorageUnavailable
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStorageUnavailable, err)
}

// IsUnavailable verifica se err representa armazenamento indisponível
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrStorageUnavailable)
}

// ValidationError descreve uma leitura rejeitada na entrada
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// AsValidation extrai um *ValidationError de err, se houver
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
