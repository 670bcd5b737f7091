package workflow

import "fmt"

// Outbound message copy for the production workflow. Kept in one place so
// wording changes never touch transition logic.

func msgPlanningStarted(patient string) string {
	return fmt.Sprintf("Update from 3D-Align: case planning for %s is complete and the treatment plan has been finalized. Fabrication of the training aligner begins now.", patient)
}

func msgTrainingDispatched(c CaseSnapshot) string {
	msg := fmt.Sprintf("Update from 3D-Align: the training aligner for %s has been dispatched.", c.PatientName)
	if c.TrackingIDTraining != "" {
		msg += fmt.Sprintf(" Tracking ID: %s.", c.TrackingIDTraining)
	}
	if c.TrackingSite != "" {
		msg += fmt.Sprintf(" Track at %s.", c.TrackingSite)
	}
	return msg + " Please confirm the fit once the patient has tried it."
}

func msgFitCheckPrompt(patient string) string {
	return fmt.Sprintf("The training aligner for %s has been delivered. Did it fit well? Please reply with a quick yes or no.", patient)
}

func msgDeliveryEcho(deliveryStatus string) string {
	return fmt.Sprintf("Current delivery status: %s. We will let you know as soon as it arrives.", deliveryStatus)
}

func msgDispatchChoicePrompt(patient string) string {
	return fmt.Sprintf("Great news for %s! How would you like the aligners delivered: phase-wise (a few sets at a time) or the full case at once?", patient)
}

func msgFitIssueEscalation(patient string) string {
	return fmt.Sprintf("Sorry to hear the fit was off for %s. Our clinical team has been notified and will reach out to arrange a re-scan.", patient)
}

func msgFitReprompt() string {
	return "Sorry, I did not catch that. Did the training aligner fit well? Please reply yes or no."
}

func msgDispatchReprompt() string {
	return "Sorry, I did not catch that. Would you prefer phase-wise delivery or the full case at once?"
}

func msgPhaseWiseConfirmed(patient string) string {
	return fmt.Sprintf("Noted. The first phase of aligners for %s is now in production and will be dispatched shortly.", patient)
}

func msgFullCaseConfirmed(patient string) string {
	return fmt.Sprintf("Noted. The full set of aligners for %s is now in production and will be dispatched as one shipment.", patient)
}

func msgGreeting() string {
	return "Hello from 3D-Align! Send \"new case\" to submit a case or \"track\" to check on an existing one."
}

func msgStatusHelp() string {
	return "To check on a case, reply \"track\" and I will pull up the latest status for you."
}

func msgGeneralHelp() string {
	return "I can help you submit a new aligner case or track an existing one. Reply \"new case\" or \"track\" to get started."
}
