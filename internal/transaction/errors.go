package transaction

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNonceTooLow            = errors.New("nonce too low")
	ErrReplacementUnderpriced = errors.New("replacement transaction underpriced")
	ErrAlreadyKnown           = errors.New("already known")
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrNotRetriable           = errors.New("transaction not being retried")
	ErrMaxRetryCountExceeded  = errors.New("max retry count exceeded")
)

const nonceGasHint = "increasing the gas price or incrementing the nonce"

// ErrorMessages holds the provider error texts that identify each recoverable failure of a chain.
type ErrorMessages struct {
	NonceTooLow            string
	ReplacementUnderpriced string
	AlreadyKnown           string
	InsufficientFunds      string
}

func DefaultErrorMessages() ErrorMessages {
	return ErrorMessages{
		NonceTooLow:            "nonce too low",
		ReplacementUnderpriced: "replacement transaction underpriced",
		AlreadyKnown:           "already known",
		InsufficientFunds:      "insufficient funds",
	}
}

// withDefaults fills the messages left empty by configuration.
func (m ErrorMessages) withDefaults() ErrorMessages {
	d := DefaultErrorMessages()
	if m.NonceTooLow == "" {
		m.NonceTooLow = d.NonceTooLow
	}
	if m.ReplacementUnderpriced == "" {
		m.ReplacementUnderpriced = d.ReplacementUnderpriced
	}
	if m.AlreadyKnown == "" {
		m.AlreadyKnown = d.AlreadyKnown
	}
	if m.InsufficientFunds == "" {
		m.InsufficientFunds = d.InsufficientFunds
	}
	return m
}

// Classify wraps a provider error into one of the sentinel errors of this package.
// Unrecognized errors are wrapped into ErrNotRetriable.
func (m ErrorMessages) Classify(err error) error {
	if err == nil {
		return nil
	}

	text := strings.ToLower(err.Error())
	contains := func(message string) bool {
		return message != "" && strings.Contains(text, strings.ToLower(message))
	}

	switch {
	case contains(m.NonceTooLow) || contains(nonceGasHint):
		return fmt.Errorf("%w: %v", ErrNonceTooLow, err)
	case contains(m.ReplacementUnderpriced):
		return fmt.Errorf("%w: %v", ErrReplacementUnderpriced, err)
	case contains(m.AlreadyKnown):
		return fmt.Errorf("%w: %v", ErrAlreadyKnown, err)
	case contains(m.InsufficientFunds):
		return fmt.Errorf("%w: %v", ErrInsufficientFunds, err)
	default:
		return fmt.Errorf("%w: %v", ErrNotRetriable, err)
	}
}
