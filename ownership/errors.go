// Copyright 2026 The Nostrforge Authors
// SPDX-License-Identifier: Apache-2.0

package ownership

import "fmt"

// ValidationError reports malformed input: a missing tag, a bad
// address, a field that cannot be parsed. Never retried; the caller
// must fix the input.
type ValidationError struct {
	// Op names the operation that rejected the input.
	Op string
	// Field is the offending field or tag.
	Field string
	// Reason says what is wrong with it.
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: invalid %s: %s", e.Op, e.Field, e.Reason)
}

// AuthorizationError reports a well-formed request by the wrong
// identity: not the owner, not a maintainer, insufficient access
// level. Distinguished from ValidationError so callers can prompt
// re-authentication instead of input fixes.
type AuthorizationError struct {
	Op     string
	Reason string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

// NotFoundError reports an absent repository or announcement. For
// private repositories callers use a neutral denial instead, so
// existence is not leaked.
type NotFoundError struct {
	Op       string
	Resource string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: %s not found", e.Op, e.Resource)
}

// InvariantViolation reports a security-relevant rejection: a forged
// signature, a transfer whose address tag points at a different
// repository. These are never retried and never silently fixed up,
// and they are logged distinctly from ordinary validation failures.
type InvariantViolation struct {
	Op      string
	Reason  string
	EventID string
}

func (e *InvariantViolation) Error() string {
	if e.EventID != "" {
		return fmt.Sprintf("%s: %s (event %s)", e.Op, e.Reason, truncateKey(e.EventID))
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

// truncateKey shortens hex identifiers for messages and logs. Full
// pubkeys and event ids never appear in user-visible failures.
func truncateKey(hexID string) string {
	if len(hexID) <= 8 {
		return hexID
	}
	return hexID[:8] + "…"
}
