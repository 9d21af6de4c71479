package web

import (
	"errors"
	"net/http"

	"github.com/rigdev/repogov/internal/codehost"
	"github.com/rigdev/repogov/internal/core"
	"github.com/rigdev/repogov/internal/policy"
	"github.com/rigdev/repogov/internal/proposal"
)

type errorResponse struct {
	Error      string                   `json:"error"`
	Step       string                   `json:"step,omitempty"`
	Branch     string                   `json:"branch,omitempty"`
	Violations []policy.PolicyViolation `json:"violations,omitempty"`
}

// statusFor maps err to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, proposal.ErrInvalidChange):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrPolicyViolation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrNoChange):
		return http.StatusConflict
	case errors.Is(err, codehost.ErrPermission):
		return http.StatusForbidden
	case errors.Is(err, codehost.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, proposal.ErrCanceled):
		return http.StatusServiceUnavailable
	}

	var perr *proposal.Error
	var herr *codehost.HostError
	if errors.As(err, &perr) || errors.As(err, &herr) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (a *api) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	resp := errorResponse{
		Error:  err.Error(),
		Step:   string(proposal.StepOf(err)),
		Branch: proposal.BranchOf(err),
	}
	var policyErr *core.PolicyError
	if errors.As(err, &policyErr) {
		resp.Violations = policyErr.Violations
	}
	if status >= http.StatusInternalServerError {
		a.Log.Errorf("[web] %v", err)
	}
	writeJSON(w, status, resp)
}
