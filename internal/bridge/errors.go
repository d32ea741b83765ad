package bridge

import (
	"github.com/go-errors/errors"
)

var (
	// ErrMessageNotFound means the source transaction emitted no cross-domain
	// message. No claim is submitted.
	ErrMessageNotFound = errors.New("no cross-domain message in transaction")
	// ErrNotClaimable means the destination cannot accept the claim yet
	// (not checkpointed, not anchored, attestation pending).
	ErrNotClaimable = errors.New("message is not claimable yet")
	// ErrAlreadyRelayed means the destination already consumed the message.
	ErrAlreadyRelayed = errors.New("message already relayed")
	// ErrUnsupportedDirection means the chain family has no claim step for the
	// requested direction.
	ErrUnsupportedDirection = errors.New("relay direction not supported")
	ErrUnknownFamily        = errors.New("unknown chain bridge family")
)

// IsRetryable reports whether the same relay may succeed later.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrNotClaimable)
}
