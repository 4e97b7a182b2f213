package txstate

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"
)

// FailureKind tells apart the causes of a failed write that are presented differently to users.
type FailureKind string

const (
	FailureUserRejected FailureKind = "user_rejected"
	FailureReverted     FailureKind = "reverted"
	FailureNetwork      FailureKind = "network"
	FailureUnknown      FailureKind = "unknown"
)

// userRejectedCode is the EIP-1193 provider error code for a request the user declined.
const userRejectedCode = 4001

// Failure is the reason carried by a Failed state. Reason is the underlying message unchanged.
type Failure struct {
	Kind   FailureKind
	Reason string
	Err    error
}

func (f *Failure) Error() string {
	return string(f.Kind) + ": " + f.Reason
}

func (f *Failure) Unwrap() error {
	return f.Err
}

func newFailure(err error) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	return &Failure{Kind: Classify(err), Reason: err.Error(), Err: err}
}

// Classify maps a signer or node error to a FailureKind. Errors that carry no recognisable
// signal are FailureUnknown.
func Classify(err error) FailureKind {
	if err == nil {
		return FailureUnknown
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == userRejectedCode {
		return FailureUserRejected
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "user rejected"), strings.Contains(msg, "user denied"):
		return FailureUserRejected
	case strings.Contains(msg, "revert"):
		return FailureReverted
	}

	var dataErr rpc.DataError
	if errors.As(err, &dataErr) && dataErr.ErrorData() != nil {
		return FailureReverted
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.As(err, &netErr) {
		return FailureNetwork
	}
	for _, s := range []string{"connection refused", "connection reset", "no such host", "timeout", "eof"} {
		if strings.Contains(msg, s) {
			return FailureNetwork
		}
	}
	return FailureUnknown
}
