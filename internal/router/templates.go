package router

import (
	"fmt"
	"strings"

	"github.com/jilsnshah/alignflow/internal/models"
)

// Outbound copy for the router-owned intake and scheduling stages.

func msgWelcome() string {
	return "Welcome to 3D-Align! Please reply with your registered clinic email so I can verify your account."
}

func msgEmailNotFound(email string) string {
	return fmt.Sprintf("I could not find %s in our dentist directory. Please check the address or contact 3D-Align support to register.", email)
}

func msgEmailInvalid() string {
	return "That does not look like an email address. Please reply with your registered clinic email."
}

func msgRegistered(name string) string {
	return fmt.Sprintf("Thanks, %s! You are verified. Reply \"new case\" to submit an aligner case or \"track\" to check an existing one.", name)
}

func msgIntentHelp() string {
	return "I can help with two things: reply \"new case\" to submit a case or \"track\" to check on one."
}

func msgCaseCreated(caseID string) string {
	return fmt.Sprintf("Case %s created. Please send photos of the patient's teeth, with the patient's name as the first caption. Reply \"done\" when you have sent everything.", caseID)
}

func msgImagesReceived(n, total int) string {
	return fmt.Sprintf("Received %d image(s), %d so far. Reply \"done\" when finished.", n, total)
}

func msgNeedImages() string {
	return "I have not received any images yet. Please send at least one photo of the patient's teeth before replying \"done\"."
}

func msgQuote(patient string) string {
	return fmt.Sprintf("Thank you! The submission for %s is complete. The estimated cost for the full aligner treatment is Rs. 45,000, payable after the fit check. Shall we proceed?", patient)
}

func msgQuoteReprompt() string {
	return "Shall we proceed with the treatment at the quoted cost? Please reply yes or no."
}

func msgCancelled() string {
	return "No problem, the submission has been put on hold. Reply \"new case\" whenever you would like to continue."
}

func msgMachineQuestion() string {
	return "Do you have an intraoral scanner at your clinic? If yes, you can share the scan files directly; otherwise we will book a scanning appointment."
}

func msgShareScans() string {
	return "Great, please share the scan files with our team. We will review the case and confirm once production is approved."
}

func msgAskSlot() string {
	return "Let's book a scanning appointment. Please reply with your preferred date and time as YYYY-MM-DD HH:MM (slots are on the half hour, IST)."
}

func msgSlotRejected(reason string) string {
	return fmt.Sprintf("That slot will not work: %s. Please suggest another date and time as YYYY-MM-DD HH:MM.", reason)
}

func msgConfirmSlot(slot, location string) string {
	return fmt.Sprintf("That slot is free! Shall I book %s at %s? Please reply yes or no.", slot, location)
}

func msgSlotBusy() string {
	return "That slot is already taken. Please suggest another date and time."
}

func msgSlotBooked(slot, location string) string {
	return fmt.Sprintf("Booked! Your scanning appointment is confirmed for %s at %s. See you then.", slot, location)
}

func msgApology() string {
	return "Sorry, something went wrong on our side. Please send that again in a moment."
}

func msgNoCases() string {
	return "You have no cases on file yet. Reply \"new case\" to submit one."
}

func msgCaseList(cases []models.Case) string {
	var b strings.Builder
	b.WriteString("Your cases:\n")
	for _, c := range cases {
		fmt.Fprintf(&b, "- %s (%s): %s", c.ID, c.PatientName, c.Status)
		if c.DeliveryStatus != "" {
			fmt.Fprintf(&b, ", delivery %s", c.DeliveryStatus)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func alertNewSubmission(c *models.Case, images int) string {
	return fmt.Sprintf("New case submission: %s, patient %s, dentist %s, %d image(s) attached.", c.ID, c.PatientName, c.DentistName, images)
}

func alertFitIssue(caseID string) string {
	return fmt.Sprintf("Fit issue reported on case %s. Clinical follow-up needed.", caseID)
}

func alertWorkflowError(userID string, err error) string {
	return fmt.Sprintf("Workflow error for %s: %v", userID, err)
}
