package workflow

import (
	"fmt"
	"strings"

	"github.com/spec-kit/maintenance-service/internal/domain"
)

// transitionMap lists the statuses each transition may be applied from.
// start from PENDING is additionally governed by the StartPolicy.
var transitionMap = map[domain.Transition][]domain.TicketStatus{
	domain.TransitionApprove:       {domain.TicketStatusPending},
	domain.TransitionStart:         {domain.TicketStatusApproved},
	domain.TransitionUpdateTask:    {domain.TicketStatusInProgress},
	domain.TransitionIssueMaterial: {domain.TicketStatusInProgress},
	domain.TransitionRecordLabor:   {domain.TicketStatusInProgress},
	domain.TransitionRecordCharges: {domain.TicketStatusInProgress, domain.TicketStatusOnHold},
	domain.TransitionHold:          {domain.TicketStatusPending, domain.TicketStatusApproved, domain.TicketStatusInProgress},
	domain.TransitionResume:        {domain.TicketStatusOnHold},
	domain.TransitionComplete:      {domain.TicketStatusInProgress},
	domain.TransitionCancel: {
		domain.TicketStatusPending,
		domain.TicketStatusApproved,
		domain.TicketStatusInProgress,
		domain.TicketStatusOnHold,
	},
	domain.TransitionDelete: {domain.TicketStatusPending},
}

// transitionOrder fixes the order AvailableTransitions reports in.
var transitionOrder = []domain.Transition{
	domain.TransitionApprove,
	domain.TransitionStart,
	domain.TransitionUpdateTask,
	domain.TransitionIssueMaterial,
	domain.TransitionRecordLabor,
	domain.TransitionRecordCharges,
	domain.TransitionHold,
	domain.TransitionResume,
	domain.TransitionComplete,
	domain.TransitionCancel,
	domain.TransitionDelete,
}

// Allowed reports whether tr may be applied to a ticket in status from,
// ignoring the start policy.
func Allowed(tr domain.Transition, from domain.TicketStatus) bool {
	for _, status := range transitionMap[tr] {
		if status == from {
			return true
		}
	}
	return false
}

// StartPolicy decides when a PENDING ticket may be started without approval.
type StartPolicy string

const (
	// StartPolicyEmergencyRepair lets repair tickets flagged as emergencies skip approval.
	StartPolicyEmergencyRepair StartPolicy = "emergency_repair"
	// StartPolicyRepair lets every repair ticket skip approval.
	StartPolicyRepair StartPolicy = "repair"
	// StartPolicyStrict requires approval for every ticket.
	StartPolicyStrict StartPolicy = "strict"
)

// ParseStartPolicy validates a configured policy name.
func ParseStartPolicy(name string) (StartPolicy, error) {
	switch p := StartPolicy(strings.ToLower(strings.TrimSpace(name))); p {
	case StartPolicyEmergencyRepair, StartPolicyRepair, StartPolicyStrict:
		return p, nil
	case "":
		return StartPolicyEmergencyRepair, nil
	default:
		return "", fmt.Errorf("unknown start policy %q", name)
	}
}

// AllowsDirectStart reports whether t may go from PENDING straight to IN_PROGRESS.
func (p StartPolicy) AllowsDirectStart(t *domain.Ticket) bool {
	if t.Kind != domain.TicketKindRepair {
		return false
	}
	switch p {
	case StartPolicyRepair:
		return true
	case StartPolicyEmergencyRepair:
		return t.Emergency
	default:
		return false
	}
}

// canStart applies the start guard including the policy.
func (p StartPolicy) canStart(t *domain.Ticket) bool {
	if Allowed(domain.TransitionStart, t.Status) {
		return true
	}
	return t.Status == domain.TicketStatusPending && p.AllowsDirectStart(t)
}

// AvailableTransitions lists the transitions whose status guard passes for t.
// Capability and task guards are not considered.
func AvailableTransitions(t *domain.Ticket, policy StartPolicy) []domain.Transition {
	available := make([]domain.Transition, 0, len(transitionOrder))
	for _, tr := range transitionOrder {
		ok := Allowed(tr, t.Status)
		if tr == domain.TransitionStart {
			ok = policy.canStart(t)
		}
		if tr == domain.TransitionResume {
			ok = ok && t.HeldFrom != nil
		}
		if ok {
			available = append(available, tr)
		}
	}
	return available
}
