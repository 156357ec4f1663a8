// Package results carries the success/failure split used by application
// services: domain failures travel in Failure, infrastructure faults travel
// as a plain error next to the result.
package results

// OperationResult holds exactly one of Success or Failure when the operation
// completed without an infrastructure error.
type OperationResult[S any, F any] struct {
	Success *S
	Failure *F
}

// SuccessResult wraps a success payload.
func SuccessResult[S any, F any](payload S) OperationResult[S, F] {
	return OperationResult[S, F]{Success: &payload}
}

// FailureResult wraps a failure payload.
func FailureResult[S any, F any](payload F) OperationResult[S, F] {
	return OperationResult[S, F]{Failure: &payload}
}

// IsSuccess reports whether the result carries a success payload.
func (r OperationResult[S, F]) IsSuccess() bool {
	return r.Success != nil
}

// IsFailure reports whether the result carries a failure payload.
func (r OperationResult[S, F]) IsFailure() bool {
	return r.Failure != nil
}

// Map converts the success payload, leaving a failure untouched.
func Map[S any, F any, T any](r OperationResult[S, F], fn func(S) T) OperationResult[T, F] {
	if r.Success != nil {
		return SuccessResult[T, F](fn(*r.Success))
	}
	return OperationResult[T, F]{Failure: r.Failure}
}
