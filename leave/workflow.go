/*
workflow.go - Leave request state machine

STATES:
  PENDING ──manager_approve──▶ PENDING_HR ──hr_approve──▶ APPROVED
     │                             │
     ├──manager_reject──▶ REJECTED ◀──hr_reject
     ├──approve (single)──▶ APPROVED
     ├──reject (single)──▶ REJECTED
     └──cancel──▶ CANCELLED

  APPROVED, REJECTED and CANCELLED are sinks. PENDING_MANAGER is an input
  alias of PENDING and never a distinct state.

LEDGER EFFECTS:
  Every transition declares what it does to the reservation: nothing
  (still reserved), commit (pending → used) or release (pending → 0).
  Next() validates the transition first; the Service applies the effect only
  after Next() succeeds, so a rejected action never touches the ledger.
*/
package leave

import (
	"time"

	"github.com/warp/leave-engine/core"
)

type Action string

const (
	ActionManagerApprove Action = "manager_approve"
	ActionManagerReject  Action = "manager_reject"
	ActionHRApprove      Action = "hr_approve"
	ActionHRReject       Action = "hr_reject"
	ActionApprove        Action = "approve"
	ActionReject         Action = "reject"
	ActionCancel         Action = "cancel"
)

type LedgerEffect int

const (
	EffectNone LedgerEffect = iota
	EffectCommit
	EffectRelease
)

type transition struct {
	to     Status
	effect LedgerEffect
	// flow restricts the transition to one approval flow; empty means any.
	flow ApprovalFlow
}

var transitions = map[Status]map[Action]transition{
	StatusPending: {
		ActionManagerApprove: {to: StatusPendingHR, effect: EffectNone, flow: FlowMultiLevel},
		ActionManagerReject:  {to: StatusRejected, effect: EffectRelease, flow: FlowMultiLevel},
		ActionApprove:        {to: StatusApproved, effect: EffectCommit, flow: FlowSingle},
		ActionReject:         {to: StatusRejected, effect: EffectRelease, flow: FlowSingle},
		ActionCancel:         {to: StatusCancelled, effect: EffectRelease},
	},
	StatusPendingHR: {
		ActionHRApprove: {to: StatusApproved, effect: EffectCommit, flow: FlowMultiLevel},
		ActionHRReject:  {to: StatusRejected, effect: EffectRelease, flow: FlowMultiLevel},
	},
}

// Next returns the state and ledger effect of applying action to a request
// in state from under the given approval flow.
func Next(from Status, action Action, flow ApprovalFlow) (Status, LedgerEffect, error) {
	t, ok := transitions[from][action]
	if !ok || (t.flow != "" && t.flow != flow) {
		return from, EffectNone, &core.TransitionError{
			Subject: "leave request",
			From:    string(from),
			Action:  string(action),
		}
	}
	return t.to, t.effect, nil
}

// Allowed lists the actions valid from a state under a flow.
func Allowed(from Status, flow ApprovalFlow) []Action {
	var actions []Action
	for _, a := range []Action{ActionManagerApprove, ActionManagerReject, ActionHRApprove, ActionHRReject, ActionApprove, ActionReject, ActionCancel} {
		if _, _, err := Next(from, a, flow); err == nil {
			actions = append(actions, a)
		}
	}
	return actions
}

// recordStage writes the actor's decision onto the request. It runs only
// after Next has accepted the transition.
func recordStage(r Request, action Action, actorID core.EmployeeID, remarks string, at time.Time) Request {
	acted := at
	switch action {
	case ActionManagerApprove:
		r.Manager = Stage{Status: StageApproved, ActorID: actorID, Remarks: remarks, ActedAt: &acted}
	case ActionManagerReject:
		r.Manager = Stage{Status: StageRejected, ActorID: actorID, Remarks: remarks, ActedAt: &acted}
		r.HR = Stage{Status: StageNotRequired}
	case ActionHRApprove:
		r.HR = Stage{Status: StageApproved, ActorID: actorID, Remarks: remarks, ActedAt: &acted}
	case ActionHRReject:
		r.HR = Stage{Status: StageRejected, ActorID: actorID, Remarks: remarks, ActedAt: &acted}
	case ActionApprove:
		r.Manager = Stage{Status: StageApproved, ActorID: actorID, Remarks: remarks, ActedAt: &acted}
		r.HR = Stage{Status: StageNotRequired}
	case ActionReject:
		r.Manager = Stage{Status: StageRejected, ActorID: actorID, Remarks: remarks, ActedAt: &acted}
		r.HR = Stage{Status: StageNotRequired}
	case ActionCancel:
		r.CancelRemarks = remarks
	}
	return r
}

func eventFor(to Status, action Action) core.EventKind {
	switch {
	case action == ActionManagerApprove:
		return core.EventLeaveManagerApproved
	case to == StatusApproved:
		return core.EventLeaveApproved
	case to == StatusRejected:
		return core.EventLeaveRejected
	default:
		return core.EventLeaveCancelled
	}
}
