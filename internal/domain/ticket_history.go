package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// HistoryAction tags a history entry.
type HistoryAction string

const (
	ActionTicketCreated        HistoryAction = "ticket_created"
	ActionAutoAssigned         HistoryAction = "auto_assigned"
	ActionApprovalRequested    HistoryAction = "approval_requested"
	ActionApprovalApproved     HistoryAction = "approval_approved"
	ActionApprovalRejected     HistoryAction = "approval_rejected"
	ActionApprovalNeedMoreInfo HistoryAction = "approval_need_more_info"
	ActionApprovalResubmitted  HistoryAction = "approval_resubmitted"
	ActionStatusChanged        HistoryAction = "status_changed"
)

// TicketHistory is an immutable audit trail entry.
type TicketHistory struct {
	ID        string
	TicketID  string
	UserID    *string
	Change    HistoryChange
	CreatedAt time.Time
}

// HistoryChange describes what a history entry changed. The set of implementations is closed.
type HistoryChange interface {
	Action() HistoryAction
	// Values returns the old and new snapshots stored with the entry. Either may be nil.
	Values() (oldValue, newValue any)
	historyChange()
}

// ApprovalSnapshot is the part of an approval request shown in history.
type ApprovalSnapshot struct {
	Status    RequestStatus `json:"status"`
	StageName string        `json:"stage_name"`
}

// StageSnapshot lists one created request in an ApprovalRequested entry.
type StageSnapshot struct {
	StageName  string        `json:"stage_name"`
	Order      int           `json:"order"`
	ApproverID *string       `json:"approver_id,omitempty"`
	Status     RequestStatus `json:"status"`
}

// TicketCreated is recorded once when a ticket is submitted.
type TicketCreated struct {
	Status         TicketStatus
	ApprovalStatus ApprovalStatus
}

// AutoAssigned is recorded when an assignment rule sets the assignee.
type AutoAssigned struct {
	RuleID      string
	RuleName    string
	OldAssignee *string
	NewAssignee string
}

// ApprovalRequested is recorded when the approval chain is created.
type ApprovalRequested struct {
	Stages []StageSnapshot
}

// ApprovalApproved is recorded when an approver approves a request.
type ApprovalApproved struct {
	Old          ApprovalSnapshot
	New          ApprovalSnapshot
	ApproverName string
	Comments     *string
}

// ApprovalRejected is recorded when an approver rejects a request.
type ApprovalRejected struct {
	Old          ApprovalSnapshot
	New          ApprovalSnapshot
	ApproverName string
	Comments     *string
}

// ApprovalNeedMoreInfo is recorded when an approver sends a request back to the requester.
type ApprovalNeedMoreInfo struct {
	Old          ApprovalSnapshot
	New          ApprovalSnapshot
	ApproverName string
	Comments     string
}

// ApprovalResubmitted is recorded when the requester puts a request back into review.
type ApprovalResubmitted struct {
	Old ApprovalSnapshot
	New ApprovalSnapshot
}

// StatusChanged is recorded when the ticket lifecycle status moves.
type StatusChanged struct {
	OldStatus      TicketStatus
	NewStatus      TicketStatus
	ApprovalStatus ApprovalStatus
}

type statusValue struct {
	Status         TicketStatus   `json:"status"`
	ApprovalStatus ApprovalStatus `json:"approval_status,omitempty"`
}

type assigneeValue struct {
	AssignedTo *string `json:"assigned_to"`
	RuleID     string  `json:"rule_id,omitempty"`
	RuleName   string  `json:"rule_name,omitempty"`
}

type stagesValue struct {
	Stages []StageSnapshot `json:"stages"`
}

type decisionValue struct {
	ApprovalSnapshot
	ApproverName string  `json:"approver_name,omitempty"`
	Comments     *string `json:"comments,omitempty"`
}

func (TicketCreated) Action() HistoryAction        { return ActionTicketCreated }
func (AutoAssigned) Action() HistoryAction         { return ActionAutoAssigned }
func (ApprovalRequested) Action() HistoryAction    { return ActionApprovalRequested }
func (ApprovalApproved) Action() HistoryAction     { return ActionApprovalApproved }
func (ApprovalRejected) Action() HistoryAction     { return ActionApprovalRejected }
func (ApprovalNeedMoreInfo) Action() HistoryAction { return ActionApprovalNeedMoreInfo }
func (ApprovalResubmitted) Action() HistoryAction  { return ActionApprovalResubmitted }
func (StatusChanged) Action() HistoryAction        { return ActionStatusChanged }

func (c TicketCreated) Values() (any, any) {
	return nil, statusValue{Status: c.Status, ApprovalStatus: c.ApprovalStatus}
}

func (c AutoAssigned) Values() (any, any) {
	newAssignee := c.NewAssignee
	return assigneeValue{AssignedTo: c.OldAssignee},
		assigneeValue{AssignedTo: &newAssignee, RuleID: c.RuleID, RuleName: c.RuleName}
}

func (c ApprovalRequested) Values() (any, any) {
	return nil, stagesValue{Stages: c.Stages}
}

func (c ApprovalApproved) Values() (any, any) {
	return c.Old, decisionValue{ApprovalSnapshot: c.New, ApproverName: c.ApproverName, Comments: c.Comments}
}

func (c ApprovalRejected) Values() (any, any) {
	return c.Old, decisionValue{ApprovalSnapshot: c.New, ApproverName: c.ApproverName, Comments: c.Comments}
}

func (c ApprovalNeedMoreInfo) Values() (any, any) {
	comments := c.Comments
	return c.Old, decisionValue{ApprovalSnapshot: c.New, ApproverName: c.ApproverName, Comments: &comments}
}

func (c ApprovalResubmitted) Values() (any, any) {
	return c.Old, c.New
}

func (c StatusChanged) Values() (any, any) {
	return statusValue{Status: c.OldStatus}, statusValue{Status: c.NewStatus, ApprovalStatus: c.ApprovalStatus}
}

func (TicketCreated) historyChange()        {}
func (AutoAssigned) historyChange()         {}
func (ApprovalRequested) historyChange()    {}
func (ApprovalApproved) historyChange()     {}
func (ApprovalRejected) historyChange()     {}
func (ApprovalNeedMoreInfo) historyChange() {}
func (ApprovalResubmitted) historyChange()  {}
func (StatusChanged) historyChange()        {}

// EncodeHistoryChange marshals the old/new snapshots of change to JSON. A nil snapshot encodes as nil.
func EncodeHistoryChange(change HistoryChange) (oldValue, newValue []byte, err error) {
	oldAny, newAny := change.Values()
	if oldAny != nil {
		if oldValue, err = json.Marshal(oldAny); err != nil {
			return nil, nil, fmt.Errorf("encode %s old value: %w", change.Action(), err)
		}
	}
	if newAny != nil {
		if newValue, err = json.Marshal(newAny); err != nil {
			return nil, nil, fmt.Errorf("encode %s new value: %w", change.Action(), err)
		}
	}
	return oldValue, newValue, nil
}

// DecodeHistoryChange rebuilds a HistoryChange from its stored action and JSON snapshots.
func DecodeHistoryChange(action HistoryAction, oldValue, newValue []byte) (HistoryChange, error) {
	switch action {
	case ActionTicketCreated:
		var nv statusValue
		if err := decodeValue(newValue, &nv); err != nil {
			return nil, err
		}
		return TicketCreated{Status: nv.Status, ApprovalStatus: nv.ApprovalStatus}, nil
	case ActionAutoAssigned:
		var ov, nv assigneeValue
		if err := decodeValues(oldValue, &ov, newValue, &nv); err != nil {
			return nil, err
		}
		change := AutoAssigned{RuleID: nv.RuleID, RuleName: nv.RuleName, OldAssignee: ov.AssignedTo}
		if nv.AssignedTo != nil {
			change.NewAssignee = *nv.AssignedTo
		}
		return change, nil
	case ActionApprovalRequested:
		var nv stagesValue
		if err := decodeValue(newValue, &nv); err != nil {
			return nil, err
		}
		return ApprovalRequested{Stages: nv.Stages}, nil
	case ActionApprovalApproved:
		var ov ApprovalSnapshot
		var nv decisionValue
		if err := decodeValues(oldValue, &ov, newValue, &nv); err != nil {
			return nil, err
		}
		return ApprovalApproved{Old: ov, New: nv.ApprovalSnapshot, ApproverName: nv.ApproverName, Comments: nv.Comments}, nil
	case ActionApprovalRejected:
		var ov ApprovalSnapshot
		var nv decisionValue
		if err := decodeValues(oldValue, &ov, newValue, &nv); err != nil {
			return nil, err
		}
		return ApprovalRejected{Old: ov, New: nv.ApprovalSnapshot, ApproverName: nv.ApproverName, Comments: nv.Comments}, nil
	case ActionApprovalNeedMoreInfo:
		var ov ApprovalSnapshot
		var nv decisionValue
		if err := decodeValues(oldValue, &ov, newValue, &nv); err != nil {
			return nil, err
		}
		change := ApprovalNeedMoreInfo{Old: ov, New: nv.ApprovalSnapshot, ApproverName: nv.ApproverName}
		if nv.Comments != nil {
			change.Comments = *nv.Comments
		}
		return change, nil
	case ActionApprovalResubmitted:
		var ov, nv ApprovalSnapshot
		if err := decodeValues(oldValue, &ov, newValue, &nv); err != nil {
			return nil, err
		}
		return ApprovalResubmitted{Old: ov, New: nv}, nil
	case ActionStatusChanged:
		var ov, nv statusValue
		if err := decodeValues(oldValue, &ov, newValue, &nv); err != nil {
			return nil, err
		}
		return StatusChanged{OldStatus: ov.Status, NewStatus: nv.Status, ApprovalStatus: nv.ApprovalStatus}, nil
	default:
		return nil, fmt.Errorf("unknown history action %q", action)
	}
}

func decodeValues(oldRaw []byte, oldDst any, newRaw []byte, newDst any) error {
	if err := decodeValue(oldRaw, oldDst); err != nil {
		return err
	}
	return decodeValue(newRaw, newDst)
}

func decodeValue(raw []byte, dst any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode history value: %w", err)
	}
	return nil
}
