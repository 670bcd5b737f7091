// Package workflow implements the case-lifecycle engine: two coupled state
// machines (case production status, session conversation stage) driven by
// inbound chat messages and a label classifier.
//
// The engine is pure. It receives value snapshots, returns new snapshots plus
// the messages to send, and performs no I/O of its own; the caller fetches
// inputs, persists outputs, and dispatches messages. The only external call
// is the classifier, which is injected and bounded by the caller's context.
package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Classifier resolves free-form text into a label from a closed set described
// in instructions. Implementations may return off-label text; callers match
// the result with MatchLabel rather than trusting it.
type Classifier interface {
	Classify(ctx context.Context, input, instructions string) (string, error)
}

// Engine computes case and session transitions. Safe for concurrent use;
// each invocation operates only on the snapshots it is given.
type Engine struct {
	oracle Classifier
	now    func() time.Time
}

// New returns an Engine backed by the given classifier.
func New(oracle Classifier) *Engine {
	return &Engine{oracle: oracle, now: time.Now}
}

// stamp writes the audit fields on a case snapshot.
func (e *Engine) stamp(c *CaseSnapshot, action ActionType) {
	t := e.now()
	c.LastWorkflowRun = &t
	c.LastActionType = string(action)
}

// AdvanceProduction runs the production step defined for the case's current
// status. Statuses with no defined step return NoAction, not an error: the
// orchestrator invokes this speculatively and must be able to call it early.
func (e *Engine) AdvanceProduction(c CaseSnapshot) Result {
	if c.CaseID == "" {
		return errorResult(fmt.Errorf("workflow: advance production: case id is required"))
	}
	if c.UserID == "" {
		return errorResult(fmt.Errorf("workflow: advance production: case %s has no owner", c.CaseID))
	}
	if !ValidStatus(c.Status) {
		return errorResult(fmt.Errorf("workflow: advance production: case %s has unknown status %q", c.CaseID, c.Status))
	}

	updated := c
	var content string

	switch c.Status {
	case StatusApprovedForProduction:
		updated.Status = StatusCasePlanningComplete
		content = msgPlanningStarted(c.PatientName)
	case StatusCasePlanningComplete:
		updated.Status = StatusAwaitingDelivery
		updated.DeliveryStatus = "In Transit"
		content = msgTrainingDispatched(c)
	case StatusFitConfirmedPhaseWise:
		updated.Status = StatusDispatchingPhaseWise
		content = msgPhaseWiseConfirmed(c.PatientName)
	case StatusFitConfirmedFullCase:
		updated.Status = StatusDispatchingFullCase
		content = msgFullCaseConfirmed(c.PatientName)
	default:
		// Stable waiting state, nothing to run.
		e.stamp(&updated, ActionAdvanceProduction)
		return Result{Status: NoAction, UpdatedCase: &updated}
	}

	e.stamp(&updated, ActionAdvanceProduction)
	return Result{
		Status:      Success,
		UpdatedCase: &updated,
		Messages:    []Message{{RecipientID: c.UserID, Content: content}},
	}
}

// ProcessMessage handles one inbound message, dispatching on the session's
// current stage. The case snapshot is required only for case-scoped stages;
// pass nil otherwise. ctx bounds the classifier call.
func (e *Engine) ProcessMessage(ctx context.Context, userID, body string, session SessionSnapshot, c *CaseSnapshot) Result {
	if userID == "" {
		return errorResult(fmt.Errorf("workflow: process message: user id is required"))
	}
	if body == "" {
		return errorResult(fmt.Errorf("workflow: process message: message body is required"))
	}
	if session.UserID != userID {
		return errorResult(fmt.Errorf("workflow: process message: session belongs to %q, not %q", session.UserID, userID))
	}
	if !ValidStage(session.CurrentStage) {
		return errorResult(fmt.Errorf("workflow: process message: unknown stage %q for user %s", session.CurrentStage, userID))
	}

	if caseScoped(session.CurrentStage) {
		if session.ActiveCase == nil {
			return errorResult(fmt.Errorf("workflow: process message: stage %s requires an active case for user %s", session.CurrentStage, userID))
		}
		if c == nil || c.CaseID != *session.ActiveCase {
			return errorResult(fmt.Errorf("workflow: process message: active case %s not found for user %s", *session.ActiveCase, userID))
		}
		if c.UserID != userID {
			return errorResult(fmt.Errorf("workflow: process message: case %s is not owned by user %s", c.CaseID, userID))
		}
	}

	touched := session
	touched.LastActivity = e.now()

	switch session.CurrentStage {
	case StageAwaitingDelivery:
		return e.handleAwaitingDelivery(userID, touched, *c)
	case StageAwaitingFitConfirmation:
		return e.handleFitConfirmation(ctx, userID, body, touched, *c)
	case StageAwaitingDispatchChoice:
		return e.handleDispatchChoice(ctx, userID, body, touched, *c)
	case StageGeneral:
		return e.handleGeneral(userID, body, touched)
	default:
		// Router-owned stage; the caller handles it and logs the pass-through.
		return Result{Status: NoAction}
	}
}

func (e *Engine) handleAwaitingDelivery(userID string, session SessionSnapshot, c CaseSnapshot) Result {
	if !strings.EqualFold(c.DeliveryStatus, "delivered") {
		return Result{
			Status:         Success,
			UpdatedSession: &session,
			Messages:       []Message{{RecipientID: userID, Content: msgDeliveryEcho(c.DeliveryStatus)}},
		}
	}

	c.Status = StatusAwaitingFitConfirmation
	e.stamp(&c, ActionProcessMessage)
	session.CurrentStage = StageAwaitingFitConfirmation
	return Result{
		Status:         Success,
		UpdatedCase:    &c,
		UpdatedSession: &session,
		Messages:       []Message{{RecipientID: userID, Content: msgFitCheckPrompt(c.PatientName)}},
	}
}

func (e *Engine) handleFitConfirmation(ctx context.Context, userID, body string, session SessionSnapshot, c CaseSnapshot) Result {
	label, err := e.classify(ctx, body, fitLabels)
	if err != nil {
		return errorResult(fmt.Errorf("workflow: classify fit confirmation for case %s: %w", c.CaseID, err))
	}

	switch label {
	case LabelYes:
		session.CurrentStage = StageAwaitingDispatchChoice
		return Result{
			Status:         Success,
			UpdatedSession: &session,
			Messages:       []Message{{RecipientID: userID, Content: msgDispatchChoicePrompt(c.PatientName)}},
		}
	case LabelNo:
		c.Status = StatusFitIssueReported
		e.stamp(&c, ActionProcessMessage)
		session.CurrentStage = StageGeneral
		return Result{
			Status:         Success,
			UpdatedCase:    &c,
			UpdatedSession: &session,
			Messages:       []Message{{RecipientID: userID, Content: msgFitIssueEscalation(c.PatientName)}},
		}
	default:
		return Result{
			Status:         Success,
			UpdatedSession: &session,
			Messages:       []Message{{RecipientID: userID, Content: msgFitReprompt()}},
		}
	}
}

func (e *Engine) handleDispatchChoice(ctx context.Context, userID, body string, session SessionSnapshot, c CaseSnapshot) Result {
	label, err := e.classify(ctx, body, dispatchLabels)
	if err != nil {
		return errorResult(fmt.Errorf("workflow: classify dispatch choice for case %s: %w", c.CaseID, err))
	}

	var next CaseStatus
	switch label {
	case LabelPhaseWise:
		next = StatusFitConfirmedPhaseWise
	case LabelFullCase:
		next = StatusFitConfirmedFullCase
	default:
		return Result{
			Status:         Success,
			UpdatedSession: &session,
			Messages:       []Message{{RecipientID: userID, Content: msgDispatchReprompt()}},
		}
	}

	c.Status = next
	e.stamp(&c, ActionProcessMessage)
	session.CurrentStage = StageGeneral
	// The new status has a production step of its own; tell the caller to
	// run it now rather than waiting for the next poll.
	return Result{
		Status:         Success,
		UpdatedCase:    &c,
		UpdatedSession: &session,
		NextAction:     &NextAction{Type: ActionAdvanceProduction, CaseID: c.CaseID},
	}
}

func (e *Engine) handleGeneral(userID, body string, session SessionSnapshot) Result {
	lowered := strings.ToLower(body)
	var content string
	switch {
	case containsWord(lowered, "hi", "hello", "hey", "namaste"):
		content = msgGreeting()
	case strings.Contains(lowered, "status") || strings.Contains(lowered, "track"):
		content = msgStatusHelp()
	default:
		content = msgGeneralHelp()
	}
	return Result{
		Status:         Success,
		UpdatedSession: &session,
		Messages:       []Message{{RecipientID: userID, Content: content}},
	}
}

// classify runs the oracle over one message body with a closed label set and
// resolves the reply by substring matching. A non-match folds into Unknown.
func (e *Engine) classify(ctx context.Context, body string, labels []string) (string, error) {
	instructions := fmt.Sprintf(
		"Classify the dentist's reply into exactly one of these labels: %s. Respond with the label only.",
		strings.Join(labels, ", "))
	raw, err := e.oracle.Classify(ctx, body, instructions)
	if err != nil {
		return "", err
	}
	label, ok := MatchLabel(raw, labels)
	if !ok {
		return LabelUnknown, nil
	}
	return label, nil
}

// containsWord reports whether any of the words appears as a whole token in
// the lowered text. Plain substring matching would fire "hi" inside "this".
func containsWord(lowered string, words ...string) bool {
	tokens := strings.FieldsFunc(lowered, func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	for _, tok := range tokens {
		for _, w := range words {
			if tok == w {
				return true
			}
		}
	}
	return false
}
