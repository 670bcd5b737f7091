package workflow

// ResultStatus classifies a workflow invocation's outcome. NoAction means no
// transition is defined for the current state; it marks a stable waiting
// state, not a failure.
type ResultStatus string

const (
	Success  ResultStatus = "Success"
	NoAction ResultStatus = "NoAction"
	Error    ResultStatus = "Error"
)

// ActionType names an engine entry point, for follow-up chaining and for the
// audit trail on cases.
type ActionType string

const (
	ActionAdvanceProduction ActionType = "advance_production"
	ActionProcessMessage    ActionType = "process_message"
)

// NextAction tells the caller to immediately invoke a follow-up engine
// action for a case. Emitted when a transition lands on a status that has a
// production step of its own, so the chaining is explicit rather than left
// to caller convention.
type NextAction struct {
	Type   ActionType
	CaseID string
}

// Message is one outbound chat message the caller should dispatch.
type Message struct {
	RecipientID string
	Content     string
}

// Result is the complete outcome of one engine invocation. UpdatedCase and
// UpdatedSession are nil when the corresponding record was not touched; on
// Error both are always nil and Messages is always empty.
type Result struct {
	UpdatedCase    *CaseSnapshot
	UpdatedSession *SessionSnapshot
	Messages       []Message
	Status         ResultStatus
	Err            error
	NextAction     *NextAction
}

func errorResult(err error) Result {
	return Result{Status: Error, Err: err}
}
