package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rigdev/repogov/internal/policy"
)

var (
	// ErrPolicyViolation is returned when a blocking change policy matches.
	ErrPolicyViolation = errors.New("change blocked by policy")
	// ErrNoChange is returned when the proposed content is already in place.
	ErrNoChange = errors.New("nothing to change")
)

// PolicyError lists the blocking violations that stopped a proposal.
type PolicyError struct {
	Violations []policy.PolicyViolation
}

func (e *PolicyError) Error() string {
	msgs := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		msgs = append(msgs, fmt.Sprintf("%s: %s", v.Name, v.Message))
	}
	return fmt.Sprintf("%v: %s", ErrPolicyViolation, strings.Join(msgs, "; "))
}

func (e *PolicyError) Unwrap() error { return ErrPolicyViolation }
