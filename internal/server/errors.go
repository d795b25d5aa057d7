package server

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/roach88/loopswap/internal/engine"
	"github.com/roach88/loopswap/internal/swaperr"
)

// statusCodes maps each domain code to the closest gRPC code.
var statusCodes = map[swaperr.Code]codes.Code{
	swaperr.CodeInvalidInstructionData:      codes.InvalidArgument,
	swaperr.CodeTooManyParticipants:         codes.InvalidArgument,
	swaperr.CodeInvalidAccountOwner:         codes.PermissionDenied,
	swaperr.CodeUpgradeAuthorityMismatch:    codes.PermissionDenied,
	swaperr.CodeUninitializedAccount:        codes.NotFound,
	swaperr.CodeNotRentExempt:               codes.FailedPrecondition,
	swaperr.CodeIncorrectProgramID:          codes.FailedPrecondition,
	swaperr.CodeInvalidAccountData:          codes.FailedPrecondition,
	swaperr.CodeTradeLoopVerificationFailed: codes.FailedPrecondition,
	swaperr.CodeMissingApprovals:            codes.FailedPrecondition,
	swaperr.CodeStepAlreadyExecuted:         codes.FailedPrecondition,
	swaperr.CodeInvalidProgramVersion:       codes.FailedPrecondition,
	swaperr.CodeInsufficientFunds:           codes.FailedPrecondition,
	swaperr.CodeInvalidMetadataAccount:      codes.FailedPrecondition,
	swaperr.CodeTradeTimeoutExceeded:        codes.FailedPrecondition,
	swaperr.CodeCancellationDenied:          codes.FailedPrecondition,
}

// mapErr converts an engine error to a gRPC status error.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, engine.ErrStopped):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	}
	code := swaperr.CodeOf(err)
	if grpcCode, ok := statusCodes[code]; ok {
		return status.Error(grpcCode, fmt.Sprintf("%s: %s", code, err.Error()))
	}
	return status.Error(codes.Internal, err.Error())
}

// mapRPC turns a status error back into a swaperr.Error when its message
// carries a known code. Other errors are returned unchanged.
func mapRPC(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	name, message, found := strings.Cut(st.Message(), ": ")
	if !found {
		return err
	}
	code, known := swaperr.ParseCode(name)
	if !known {
		return err
	}
	return swaperr.New(code, message)
}
