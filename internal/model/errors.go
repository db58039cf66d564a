package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures that are resolved into verdicts instead of aborting a run
type ErrorKind string

const (
	KindNetworkTransient      ErrorKind = "network_transient"
	KindNetworkTerminal       ErrorKind = "network_terminal"
	KindChallengeBlocked      ErrorKind = "challenge_blocked"
	KindMissingEvaluator      ErrorKind = "missing_evaluator"
	KindInsufficientEvidence  ErrorKind = "insufficient_evidence"
	KindMalformedManualUpload ErrorKind = "malformed_manual_upload"
)

// Configuration errors. These are the only errors that abort a run.
var (
	ErrInvalidRuleset  = errors.New("invalid ruleset")
	ErrMalformedSchema = errors.New("malformed schema")
)

// ReviewError carries a classified runtime failure
type ReviewError struct {
	Kind ErrorKind
	URL  string
	Err  error
}

func (e *ReviewError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.URL, e.Err)
}

func (e *ReviewError) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a wrapped ReviewError, or "" if err is not one
func KindOf(err error) ErrorKind {
	var re *ReviewError
	if errors.As(err, &re) {
		return re.Kind
	}
	return ""
}
