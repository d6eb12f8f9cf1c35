// Package review owns the lifecycle of a submission: reviewer
// decisions, author self-service edits, and the hand-off of approvals
// to the escrow settlement coordinator.
package review

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/photon-storage/bounty-hub/auth"
	"github.com/photon-storage/bounty-hub/database/orm"
	"github.com/photon-storage/bounty-hub/errs"
	"github.com/photon-storage/bounty-hub/metrics"
)

// Decision is a reviewer verdict on a submission.
type Decision uint8

const (
	DecisionApprove Decision = iota + 1
	DecisionReject
	DecisionDuplicate
	DecisionSpam
	DecisionNeedsMoreInfo
)

var (
	decisionValue = map[Decision]string{
		DecisionApprove:       "APPROVE",
		DecisionReject:        "REJECT",
		DecisionDuplicate:     "DUPLICATE",
		DecisionSpam:          "SPAM",
		DecisionNeedsMoreInfo: "NEEDS_MORE_INFO",
	}

	decisionValueType = map[string]Decision{
		"APPROVE":         DecisionApprove,
		"REJECT":          DecisionReject,
		"DUPLICATE":       DecisionDuplicate,
		"SPAM":            DecisionSpam,
		"NEEDS_MORE_INFO": DecisionNeedsMoreInfo,
	}

	decisionStatus = map[Decision]orm.SubmissionStatus{
		DecisionReject:        orm.SubmissionRejected,
		DecisionDuplicate:     orm.SubmissionDuplicate,
		DecisionSpam:          orm.SubmissionSpam,
		DecisionNeedsMoreInfo: orm.SubmissionNeedsMoreInfo,
	}
)

// StrToDecision converts decision string to decision
func StrToDecision(str string) Decision {
	return decisionValueType[str]
}

// String returns the string of decision
func (d Decision) String() string {
	if _, ok := decisionValue[d]; !ok {
		return "unknown"
	}

	return decisionValue[d]
}

// Payload carries the reviewer-authored fields of one decision.
type Payload struct {
	// RejectionReason is required for REJECT.
	RejectionReason string
	// Message is required for NEEDS_MORE_INFO.
	Message string
	// Notes is optional reviewer commentary.
	Notes string
	// RewardOverride, in lamports, replaces the bounty's reward for
	// APPROVE. Zero means no override.
	RewardOverride int64
}

// Settler hands an approval to the escrow settlement coordinator.
type Settler interface {
	Settle(
		ctx context.Context,
		submissionID string,
		principal *auth.Principal,
		overrideLamports int64,
	) (*orm.Payment, error)
}

// Notifier enqueues user notifications, fire-and-forget.
type Notifier interface {
	Enqueue(ctx context.Context, userID, title, message, actionURL string)
}

// Machine drives guarded submission transitions.
type Machine struct {
	store    Store
	settler  Settler
	notifier Notifier
}

// NewMachine returns a new state machine instance.
func NewMachine(store Store, settler Settler, notifier Notifier) *Machine {
	return &Machine{
		store:    store,
		settler:  settler,
		notifier: notifier,
	}
}

// RequestReview records the reviewer's decision. The transition is a
// conditional write keyed on the status this request observed; losing
// the race yields errs.ErrConflict and the caller decides whether to
// retry. An APPROVE decision delegates to the settler and the
// submission only becomes APPROVED if settlement succeeds end-to-end.
func (m *Machine) RequestReview(
	ctx context.Context,
	submissionID string,
	principal *auth.Principal,
	decision Decision,
	payload Payload,
) (*orm.Submission, error) {
	sub, err := m.store.Submission(ctx, submissionID)
	if err != nil {
		return nil, err
	}

	action := auth.ActionReview
	if decision == DecisionApprove {
		action = auth.ActionApprovePayment
	}

	if !auth.CanAct(principal, action, auth.Resource{
		CompanyID: sub.CompanyID,
	}) {
		return nil, errs.ErrUnauthorized
	}

	if !sub.Status.Reviewable() {
		return nil, errors.Wrapf(errs.ErrInvalidState,
			"submission is %s", sub.Status)
	}

	if decision == DecisionApprove {
		if _, err := m.settler.Settle(
			ctx,
			submissionID,
			principal,
			payload.RewardOverride,
		); err != nil {
			return nil, err
		}

		metrics.ReviewDecision(decision.String())
		return m.store.Submission(ctx, submissionID)
	}

	target, ok := decisionStatus[decision]
	if !ok {
		return nil, errors.Wrap(errs.ErrValidation, "unknown decision")
	}

	fields, notifyTitle, notifyMsg, err := decisionFields(sub, decision, payload)
	if err != nil {
		return nil, err
	}

	fields["status"] = target
	fields["reviewed_by"] = principal.UserID
	fields["reviewed_at"] = time.Now()

	if err := m.store.TransitionCAS(ctx, submissionID, sub.Status, fields); err != nil {
		return nil, err
	}

	metrics.ReviewDecision(decision.String())
	m.notifier.Enqueue(
		ctx,
		sub.UserID,
		notifyTitle,
		notifyMsg,
		"/submissions/"+submissionID,
	)

	return m.store.Submission(ctx, submissionID)
}

func decisionFields(
	sub *orm.Submission,
	decision Decision,
	payload Payload,
) (map[string]interface{}, string, string, error) {
	fields := map[string]interface{}{}
	if payload.Notes != "" {
		fields["review_notes"] = payload.Notes
	}

	switch decision {
	case DecisionReject:
		if strings.TrimSpace(payload.RejectionReason) == "" {
			return nil, "", "", errors.Wrap(errs.ErrValidation,
				"rejection reason is required")
		}

		fields["rejection_reason"] = payload.RejectionReason
		return fields,
			"Submission rejected",
			fmt.Sprintf("Your submission %q has been rejected. Reason: %s",
				sub.Title, payload.RejectionReason),
			nil

	case DecisionNeedsMoreInfo:
		if strings.TrimSpace(payload.Message) == "" {
			return nil, "", "", errors.Wrap(errs.ErrValidation,
				"info request message is required")
		}

		fields["review_notes"] = payload.Message
		return fields,
			"More information requested",
			fmt.Sprintf("The reviewer requested more information on %q: %s",
				sub.Title, payload.Message),
			nil

	case DecisionDuplicate, DecisionSpam:
		if payload.RejectionReason != "" {
			fields["rejection_reason"] = payload.RejectionReason
		}

		word := "a duplicate"
		if decision == DecisionSpam {
			word = "spam"
		}

		return fields,
			"Submission closed",
			fmt.Sprintf("Your submission %q has been marked as %s.",
				sub.Title, word),
			nil
	}

	return nil, "", "", errors.Wrap(errs.ErrValidation, "unknown decision")
}

// UpdateOwn lets the author edit the submission before any verdict is
// recorded. Answering a NEEDS_MORE_INFO request is an edit too, so
// both pre-review statuses are editable.
func (m *Machine) UpdateOwn(
	ctx context.Context,
	submissionID string,
	principal *auth.Principal,
	title string,
	description string,
	severity string,
) (*orm.Submission, error) {
	sub, err := m.store.Submission(ctx, submissionID)
	if err != nil {
		return nil, err
	}

	if !auth.CanAct(principal, auth.ActionEditOwnSubmission, auth.Resource{
		AuthorID: sub.UserID,
	}) {
		return nil, errs.ErrUnauthorized
	}

	if !sub.Status.Reviewable() {
		return nil, errors.Wrap(errs.ErrInvalidState,
			"submission already reviewed")
	}

	fields := map[string]interface{}{}
	if title != "" {
		fields["title"] = title
	}
	if description != "" {
		fields["description"] = description
	}
	if severity != "" {
		fields["severity"] = severity
	}
	if len(fields) == 0 {
		return nil, errors.Wrap(errs.ErrValidation, "no fields to update")
	}

	if err := m.store.UpdateOwn(ctx, submissionID, sub.Status, fields); err != nil {
		return nil, err
	}

	return m.store.Submission(ctx, submissionID)
}

// DeleteOwn lets the author withdraw a submission while it is still
// pending. Once any review decision has been recorded the evidence is
// frozen.
func (m *Machine) DeleteOwn(
	ctx context.Context,
	submissionID string,
	principal *auth.Principal,
) error {
	sub, err := m.store.Submission(ctx, submissionID)
	if err != nil {
		return err
	}

	if !auth.CanAct(principal, auth.ActionDeleteOwnSubmission, auth.Resource{
		AuthorID: sub.UserID,
	}) {
		return errs.ErrUnauthorized
	}

	if sub.Status != orm.SubmissionPending {
		return errors.Wrap(errs.ErrInvalidState,
			"only pending submissions can be deleted")
	}

	return m.store.DeleteOwn(ctx, submissionID)
}
