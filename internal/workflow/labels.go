package workflow

import "strings"

// Classifier label tokens. The matcher checks labels in slice order, so sets
// that contain both "Unknown" and "No" must list "Unknown" first: a lowered
// "unknown" contains "no" as a substring.
const (
	LabelYes     = "Yes"
	LabelNo      = "No"
	LabelUnknown = "Unknown"

	LabelPhaseWise = "PhaseWise"
	LabelFullCase  = "FullCase"

	LabelSubmitCase = "submit_case"
	LabelTrackCase  = "track_case"
	LabelNone       = "none"
)

var (
	fitLabels      = []string{LabelYes, LabelUnknown, LabelNo}
	dispatchLabels = []string{LabelPhaseWise, LabelFullCase, LabelUnknown}

	// IntentLabels is the label set for free-text intent classification in
	// the router's intake flow.
	IntentLabels = []string{LabelSubmitCase, LabelTrackCase, LabelNone}
)

// MatchLabel resolves a classifier response to one of the expected labels by
// case-insensitive substring matching, in label order. The response is
// untrusted free text; models pad answers with extra words, so exact
// comparison is deliberately avoided. Returns false when nothing matches.
func MatchLabel(response string, labels []string) (string, bool) {
	lowered := strings.ToLower(response)
	for _, label := range labels {
		if strings.Contains(lowered, strings.ToLower(label)) {
			return label, true
		}
	}
	return "", false
}
