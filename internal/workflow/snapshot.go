package workflow

import "time"

// CaseStatus is the production-lifecycle position of a case. Statuses form a
// strict forward progression; the engine never assigns a status that is not a
// declared successor of the current one.
type CaseStatus string

const (
	StatusNew                     CaseStatus = "New"
	StatusApprovedForProduction   CaseStatus = "ApprovedForProduction"
	StatusCasePlanningComplete    CaseStatus = "CasePlanningComplete"
	StatusAwaitingDelivery        CaseStatus = "AwaitingDelivery"
	StatusAwaitingFitConfirmation CaseStatus = "AwaitingFitConfirmation"
	StatusFitConfirmedPhaseWise   CaseStatus = "FitConfirmed_PhaseWise"
	StatusFitConfirmedFullCase    CaseStatus = "FitConfirmed_FullCase"
	StatusDispatchingPhaseWise    CaseStatus = "Dispatching_PhaseWise"
	StatusDispatchingFullCase     CaseStatus = "Dispatching_FullCase"

	// StatusFitIssueReported is terminal. No transition leaves it; recovery
	// happens through a new case submission.
	StatusFitIssueReported CaseStatus = "FitIssueReported"
)

// ValidStatus reports whether s is a declared case status. Unknown values
// are rejected at the boundary rather than propagated.
func ValidStatus(s CaseStatus) bool {
	switch s {
	case StatusNew, StatusApprovedForProduction, StatusCasePlanningComplete,
		StatusAwaitingDelivery, StatusAwaitingFitConfirmation,
		StatusFitConfirmedPhaseWise, StatusFitConfirmedFullCase,
		StatusDispatchingPhaseWise, StatusDispatchingFullCase,
		StatusFitIssueReported:
		return true
	}
	return false
}

// Stage is a session's conversational position. The engine handles the four
// case-lifecycle stages; the remaining stages belong to the router's intake
// and scheduling flows and pass through the engine as no-ops.
type Stage string

const (
	StageGeneral                 Stage = "general"
	StageAwaitingDelivery        Stage = "awaiting_delivery"
	StageAwaitingFitConfirmation Stage = "awaiting_fit_confirmation"
	StageAwaitingDispatchChoice  Stage = "awaiting_dispatch_choice"

	// Router-owned stages.
	StageAwaitingEmail        Stage = "awaiting_email"
	StageAwaitingRegistration Stage = "awaiting_registration"
	StageIntent               Stage = "intent"
	StageAwaitingImages       Stage = "awaiting_images"
	StageQuoteConfirm         Stage = "quote_confirm"
	StageMachineConfirm       Stage = "machine_confirm"
	StageScheduling           Stage = "scheduling"
	StageTrackingCase         Stage = "tracking_case"
)

// ValidStage reports whether s is a declared session stage.
func ValidStage(s Stage) bool {
	switch s {
	case StageGeneral, StageAwaitingDelivery, StageAwaitingFitConfirmation,
		StageAwaitingDispatchChoice, StageAwaitingEmail,
		StageAwaitingRegistration, StageIntent, StageAwaitingImages,
		StageQuoteConfirm, StageMachineConfirm, StageScheduling,
		StageTrackingCase:
		return true
	}
	return false
}

// caseScoped reports whether a stage requires an active case to operate on.
func caseScoped(s Stage) bool {
	switch s {
	case StageAwaitingDelivery, StageAwaitingFitConfirmation, StageAwaitingDispatchChoice:
		return true
	}
	return false
}

// CaseSnapshot is a value copy of one case's state. The engine receives and
// returns copies; the caller owns persistence.
type CaseSnapshot struct {
	CaseID      string
	UserID      string
	PatientName string
	DentistName string
	Status      CaseStatus

	// DeliveryStatus is a free-form courier string, only meaningful while
	// Status is a delivery-waiting value.
	DeliveryStatus string

	TrackingIDTraining string
	TrackingIDFinal    string
	TrackingSite       string
	Notes              string
	Priority           string

	LastWorkflowRun *time.Time
	LastActionType  string
}

// SessionSnapshot is a value copy of one user's conversational state.
type SessionSnapshot struct {
	UserID       string
	CurrentStage Stage

	// ActiveCase is a weak reference by ID to the case under discussion.
	// Required for the case-scoped stages.
	ActiveCase *string

	LastActivity time.Time
}
