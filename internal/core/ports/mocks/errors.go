package mocks

import "errors"

var (
	// ErrTxFinished is returned when a finished transaction is used again.
	ErrTxFinished = errors.New("transaction already finished")

	// ErrAlreadyLinked is returned when a message is linked to a second topic.
	ErrAlreadyLinked = errors.New("message already linked to a topic")

	// ErrMessageNotFound is returned when a referenced message doesn't exist.
	ErrMessageNotFound = errors.New("message not found")

	// ErrUnknownSecret is returned by SecretOpener for unregistered ciphertexts.
	ErrUnknownSecret = errors.New("unknown secret")
)
