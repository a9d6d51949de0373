package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinels for the five error kinds every public operation reports. Match with errors.Is.
var (
	ErrValidation       = errors.New("validation failed")
	ErrConflict         = errors.New("conflict")
	ErrNotFound         = errors.New("not found")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrPartialBatch     = errors.New("partial batch failure")
)

// ValidationError describes malformed or missing input. It is always a client fault.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Invalid builds a ValidationError for field.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ConflictError reports a uniqueness violation.
type ConflictError struct {
	Kind   string
	Key    string
	Reason string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %q: %s", e.Kind, e.Key, e.Reason)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// LeagueExists is the conflict returned when a league name is taken.
func LeagueExists(leagueID string) error {
	return &ConflictError{Kind: "league", Key: leagueID, Reason: "league exists"}
}

// AlreadyMember is the conflict returned when joining a league twice.
func AlreadyMember(userID, leagueID string) error {
	return &ConflictError{Kind: "membership", Key: userID + "@" + leagueID, Reason: "already a member"}
}

// UserExists is the conflict returned when a user id is registered twice.
func UserExists(userID string) error {
	return &ConflictError{Kind: "user", Key: userID, Reason: "user exists"}
}

// NotFoundError reports a reference to an entity that does not exist.
type NotFoundError struct {
	Kind   string
	Key    string
	Reason string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q: %s", e.Kind, e.Key, e.Reason)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// NoSuchLeague is returned when a league id does not resolve.
func NoSuchLeague(leagueID string) error {
	return &NotFoundError{Kind: "league", Key: leagueID, Reason: "no such league"}
}

// NoSuchUser is returned when a user id does not resolve.
func NoSuchUser(userID string) error {
	return &NotFoundError{Kind: "user", Key: userID, Reason: "no such user"}
}

// StoreUnavailableError wraps a transient backend failure. Retrying is safe because
// every mutating operation is idempotent or replacement-based.
type StoreUnavailableError struct {
	Op  string
	Err error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("store unavailable during %s: %v", e.Op, e.Err)
}

func (e *StoreUnavailableError) Unwrap() error { return e.Err }

func (e *StoreUnavailableError) Is(target error) bool { return target == ErrStoreUnavailable }

// StoreError classifies an error returned by a store call. Errors that already carry
// one of the domain kinds pass through unchanged; anything else is StoreUnavailable.
func StoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	if isClassified(err) {
		return err
	}
	return &StoreUnavailableError{Op: op, Err: err}
}

func isClassified(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, ErrPartialBatch)
}

// FailedRecord pairs a record that was not applied with the reason.
type FailedRecord struct {
	Record StepRecord
	Err    error
}

// PartialBatchError reports an ingestion batch that was only partly applied.
// Applied records are durable; Failed records can be resubmitted as-is.
type PartialBatchError struct {
	Applied []StepRecord
	Failed  []FailedRecord
}

func (e *PartialBatchError) Error() string {
	dates := make([]string, 0, len(e.Failed))
	for _, f := range e.Failed {
		dates = append(dates, f.Record.Date.String())
	}
	cause := ""
	if len(e.Failed) > 0 && e.Failed[0].Err != nil {
		cause = ": " + e.Failed[0].Err.Error()
	}
	return fmt.Sprintf("partial batch failure: %d applied, %d failed [%s]%s",
		len(e.Applied), len(e.Failed), strings.Join(dates, ", "), cause)
}

func (e *PartialBatchError) Is(target error) bool { return target == ErrPartialBatch }

// FailedDates lists the dates that still need to be resubmitted.
func (e *PartialBatchError) FailedDates() []Date {
	out := make([]Date, 0, len(e.Failed))
	for _, f := range e.Failed {
		out = append(out, f.Record.Date)
	}
	return out
}

// LeagueCreationError is returned when the league row was written but the creator's
// membership could not be. The league is reported as failed.
type LeagueCreationError struct {
	LeagueID string
	Err      error
}

func (e *LeagueCreationError) Error() string {
	return fmt.Sprintf("league %q created but creator membership failed: %v", e.LeagueID, e.Err)
}

func (e *LeagueCreationError) Unwrap() error { return e.Err }

// ErrorKind is the coarse classification used at the transport boundary.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindValidation
	KindConflict
	KindNotFound
	KindStoreUnavailable
	KindPartialBatch
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindValidation:
		return "validation_failed"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindPartialBatch:
		return "partial_batch_failure"
	default:
		return "store_unavailable"
	}
}

// Classify maps err onto exactly one ErrorKind. Unclassified errors count as StoreUnavailable.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrPartialBatch):
		return KindPartialBatch
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	default:
		return KindStoreUnavailable
	}
}
