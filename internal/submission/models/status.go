package models

// Status is the review state of a submission.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusSubmitted Status = "submitted"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusSubmitted, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// IsEditable reports whether indicators may change in this state.
func (s Status) IsEditable() bool {
	return s == StatusDraft || s == StatusRejected
}

// CanTransitionTo encodes the review state machine:
//
//	draft     -> draft, submitted
//	rejected  -> draft, submitted
//	submitted -> approved, rejected
//	approved  -> (terminal)
func (s Status) CanTransitionTo(target Status) bool {
	switch s {
	case StatusDraft, StatusRejected:
		return target == StatusDraft || target == StatusSubmitted
	case StatusSubmitted:
		return target == StatusApproved || target == StatusRejected
	}
	return false
}

func (s Status) String() string { return string(s) }
