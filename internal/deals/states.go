package deals

import (
	"fmt"

	"voucher-wallet-go/internal/models"
	"voucher-wallet-go/internal/store"
)

// Phase is where a negotiation stands with respect to the points it involves
type Phase int

const (
	// PhaseNegotiating: a request is open, nothing is reserved
	PhaseNegotiating Phase = iota
	// PhaseReserved: points are counted in the deal's points_used but no wallet has moved
	PhaseReserved
	// PhaseSettled: the transfer committed
	PhaseSettled
	// PhaseClosed: rejected, cancelled or released
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseNegotiating:
		return "negotiating"
	case PhaseReserved:
		return "reserved"
	case PhaseSettled:
		return "settled"
	default:
		return "closed"
	}
}

var requestTransitions = map[string][]string{
	models.RequestStatusPending: {
		models.RequestStatusAccepted,
		models.RequestStatusRejected,
		models.RequestStatusCancelled,
	},
}

var confirmationTransitions = map[string][]string{
	models.ConfirmationStatusPending: {
		models.ConfirmationStatusConfirmed,
		models.ConfirmationStatusCancelled,
	},
	models.ConfirmationStatusConfirmed: {
		models.ConfirmationStatusCompleted,
		models.ConfirmationStatusCancelled,
	},
}

var transferTransitions = map[string][]string{
	models.TransferStatusPending: {
		models.TransferStatusCompleted,
		models.TransferStatusFailed,
		models.TransferStatusCancelled,
	},
}

func allowed(table map[string][]string, from, to string) bool {
	for _, next := range table[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CanTransitionRequest reports whether a deal request may move from one status to another
func CanTransitionRequest(from, to string) bool {
	return allowed(requestTransitions, from, to)
}

func CanTransitionConfirmation(from, to string) bool {
	return allowed(confirmationTransitions, from, to)
}

func CanTransitionTransfer(from, to string) bool {
	return allowed(transferTransitions, from, to)
}

func transitionRequest(r *models.DealRequest, to string) error {
	if !CanTransitionRequest(r.Status, to) {
		return fmt.Errorf("deal request %s is %s, cannot become %s: %w", r.Id, r.Status, to, store.ErrNotPending)
	}
	r.Status = to
	return nil
}

func transitionConfirmation(c *models.DealConfirmation, to string) error {
	if !CanTransitionConfirmation(c.Status, to) {
		return fmt.Errorf("deal confirmation %s is %s, cannot become %s: %w", c.Id, c.Status, to, store.ErrNotPending)
	}
	c.Status = to
	return nil
}

func transitionTransfer(t *models.PointsTransfer, to string) error {
	if !CanTransitionTransfer(t.Status, to) {
		return fmt.Errorf("points transfer %s is %s, cannot become %s: %w", t.TransactionId, t.Status, to, store.ErrWrongStatus)
	}
	t.Status = to
	return nil
}

// RequestPhase maps a deal request status to its phase
func RequestPhase(status string) Phase {
	switch status {
	case models.RequestStatusPending:
		return PhaseNegotiating
	case models.RequestStatusAccepted:
		return PhaseReserved
	default:
		return PhaseClosed
	}
}

// ConfirmationPhase maps a confirmation status to its phase. A confirmation
// left in confirmed holds reserved capacity on its deal until it completes
// or is cancelled.
func ConfirmationPhase(status string) Phase {
	switch status {
	case models.ConfirmationStatusPending:
		return PhaseNegotiating
	case models.ConfirmationStatusConfirmed:
		return PhaseReserved
	case models.ConfirmationStatusCompleted:
		return PhaseSettled
	default:
		return PhaseClosed
	}
}
