// Package router is the webhook-facing controller. It resolves inbound chat
// messages to sessions, drives the intake and scheduling dialogues it owns,
// delegates the case-lifecycle stages to the workflow engine, and carries the
// engine's results to the stores and the notifier.
package router

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jilsnshah/alignflow/internal/alerts"
	"github.com/jilsnshah/alignflow/internal/config"
	"github.com/jilsnshah/alignflow/internal/media"
	"github.com/jilsnshah/alignflow/internal/models"
	"github.com/jilsnshah/alignflow/internal/notify"
	"github.com/jilsnshah/alignflow/internal/schedule"
	"github.com/jilsnshah/alignflow/internal/store"
	"github.com/jilsnshah/alignflow/internal/workflow"
)

// replyWindow is how long after a user's last inbound message free-form
// replies are deliverable on WhatsApp.
const replyWindow = 24 * time.Hour

// clinicLocation is where scanning appointments happen.
const clinicLocation = "3D-Align Studio, Mumbai"

// MediaFetcher downloads inbound media from the transport provider.
type MediaFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, string, error)
}

// Opts holds the router's collaborators. Cases, Sessions, Dentists,
// Messages, Engine, Oracle, and Notifier are required; the rest degrade to
// no-ops when absent.
type Opts struct {
	Cases        store.CaseStore
	Sessions     store.SessionStore
	Dentists     store.DentistStore
	Messages     store.MessageStore
	Appointments store.AppointmentStore
	Images       store.ImageStore
	Engine       *workflow.Engine
	Oracle       workflow.Classifier
	Notifier     notify.Notifier
	Alerter      alerts.Alerter
	Media        media.Store
	Fetcher      MediaFetcher
	Scheduler    schedule.Scheduler
	Calendar     config.CalendarConfig
}

// Router handles one inbound message at a time per user.
type Router struct {
	opts  Opts
	locks *keyLock
}

// New validates the collaborator set and returns a Router.
func New(opts Opts) (*Router, error) {
	var missing []string
	if opts.Cases == nil {
		missing = append(missing, "Cases")
	}
	if opts.Sessions == nil {
		missing = append(missing, "Sessions")
	}
	if opts.Dentists == nil {
		missing = append(missing, "Dentists")
	}
	if opts.Messages == nil {
		missing = append(missing, "Messages")
	}
	if opts.Engine == nil {
		missing = append(missing, "Engine")
	}
	if opts.Oracle == nil {
		missing = append(missing, "Oracle")
	}
	if opts.Notifier == nil {
		missing = append(missing, "Notifier")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("router: missing required collaborators: %s", strings.Join(missing, ", "))
	}
	if opts.Alerter == nil {
		opts.Alerter = alerts.Nop{}
	}
	return &Router{opts: opts, locks: newKeyLock()}, nil
}

// HandleMessage processes one inbound message. Invocations for the same user
// are serialized; different users proceed in parallel.
func (r *Router) HandleMessage(ctx context.Context, from, body string, mediaURLs []string) error {
	if from == "" {
		return fmt.Errorf("router: sender is required")
	}
	unlock := r.locks.lock(from)
	defer unlock()

	if err := r.opts.Messages.LogMessage(ctx, &models.MessageLog{
		UserID:    from,
		Direction: "in",
		Body:      body,
		CreatedAt: time.Now(),
	}); err != nil {
		log.Printf("router: log inbound from %s: %v", from, err)
	}

	sess, created, err := r.loadOrCreateSession(ctx, from)
	if err != nil {
		return err
	}
	if created {
		return r.reply(ctx, from, msgWelcome())
	}

	stage := workflow.Stage(sess.CurrentStage)
	switch stage {
	case workflow.StageAwaitingEmail, workflow.StageAwaitingRegistration:
		return r.handleAwaitingEmail(ctx, from, body, sess)
	case workflow.StageIntent:
		return r.handleIntent(ctx, from, body, sess)
	case workflow.StageAwaitingImages:
		return r.handleAwaitingImages(ctx, from, body, mediaURLs, sess)
	case workflow.StageQuoteConfirm:
		return r.handleQuoteConfirm(ctx, from, body, sess)
	case workflow.StageMachineConfirm:
		return r.handleMachineConfirm(ctx, from, body, sess)
	case workflow.StageScheduling:
		return r.handleScheduling(ctx, from, body, sess)
	case workflow.StageTrackingCase:
		return r.handleTrackingCase(ctx, from, body, sess)
	default:
		return r.handleEngineStage(ctx, from, body, sess)
	}
}

// AdvanceCase runs the production step for a case, serialized on its owner.
// Used by the ops CLI and API when a case is approved or delivery updates
// arrive.
func (r *Router) AdvanceCase(ctx context.Context, caseID string) error {
	c, err := r.opts.Cases.GetCase(ctx, caseID)
	if err != nil {
		return err
	}
	unlock := r.locks.lock(c.UserID)
	defer unlock()
	return r.advanceLocked(ctx, caseID)
}

// advanceLocked is AdvanceCase without taking the owner lock, for callers
// already holding it.
func (r *Router) advanceLocked(ctx context.Context, caseID string) error {
	c, err := r.opts.Cases.GetCase(ctx, caseID)
	if err != nil {
		return err
	}

	res := r.opts.Engine.AdvanceProduction(store.CaseSnapshot(c))
	if res.Status == workflow.Error {
		return fmt.Errorf("router: advance case %s: %w", caseID, res.Err)
	}
	if res.UpdatedCase != nil {
		store.ApplyCase(c, *res.UpdatedCase)
		if err := r.opts.Cases.PutCase(ctx, c); err != nil {
			return err
		}
		// The delivery-waiting status is conversational: the owner's next
		// message has to reach the engine's delivery stage, so the session
		// follows the case. Only on the actual transition; a NoAction pass
		// over a waiting case must not re-point the session.
		if res.Status == workflow.Success && res.UpdatedCase.Status == workflow.StatusAwaitingDelivery {
			if err := r.moveSessionToDelivery(ctx, c); err != nil {
				return err
			}
		}
	}
	r.deliver(ctx, res.Messages)
	return nil
}

// moveSessionToDelivery points the case owner's session at the case and the
// delivery-waiting stage.
func (r *Router) moveSessionToDelivery(ctx context.Context, c *models.Case) error {
	sess, err := r.opts.Sessions.GetSession(ctx, c.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Printf("router: case %s owner %s has no session yet; delivery follow-up starts on first contact", c.ID, c.UserID)
			return nil
		}
		return err
	}
	sess.ActiveCase = &c.ID
	sess.CurrentStage = string(workflow.StageAwaitingDelivery)
	return r.saveSession(ctx, sess)
}

// SetStatus records an ops-side status override, serialized on the case
// owner so an in-flight engine transition is never overwritten.
func (r *Router) SetStatus(ctx context.Context, caseID, status string) (*models.Case, error) {
	if !workflow.ValidStatus(workflow.CaseStatus(status)) {
		return nil, fmt.Errorf("router: unknown status %q", status)
	}
	return r.mutateCase(ctx, caseID, func(c *models.Case) {
		c.Status = status
	})
}

// SetDelivery records a courier update, serialized on the case owner.
func (r *Router) SetDelivery(ctx context.Context, caseID, deliveryStatus string) (*models.Case, error) {
	return r.mutateCase(ctx, caseID, func(c *models.Case) {
		c.DeliveryStatus = deliveryStatus
	})
}

// mutateCase applies fn to a case under the owner's lock. The case is
// re-read once the lock is held; the first read only resolves the owner.
func (r *Router) mutateCase(ctx context.Context, caseID string, fn func(c *models.Case)) (*models.Case, error) {
	c, err := r.opts.Cases.GetCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	unlock := r.locks.lock(c.UserID)
	defer unlock()

	c, err = r.opts.Cases.GetCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	fn(c)
	if err := r.opts.Cases.PutCase(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// handleEngineStage delegates the case-lifecycle stages to the engine and
// commits its result.
func (r *Router) handleEngineStage(ctx context.Context, userID, body string, sess *models.Session) error {
	var (
		caseRec  *models.Case
		caseSnap *workflow.CaseSnapshot
	)
	if sess.ActiveCase != nil {
		c, err := r.opts.Cases.GetCase(ctx, *sess.ActiveCase)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if err == nil {
			caseRec = c
			snap := store.CaseSnapshot(c)
			caseSnap = &snap
		}
		// On ErrNotFound the engine is handed a nil case and reports the
		// dangling reference itself.
	}

	res := r.opts.Engine.ProcessMessage(ctx, userID, body, store.SessionSnapshot(sess), caseSnap)
	if res.Status == workflow.Error {
		log.Printf("router: engine error for %s: %v", userID, res.Err)
		if err := r.opts.Alerter.Alert(ctx, alertWorkflowError(userID, res.Err)); err != nil {
			log.Printf("router: alert: %v", err)
		}
		return r.reply(ctx, userID, msgApology())
	}

	if res.UpdatedCase != nil && caseRec != nil {
		store.ApplyCase(caseRec, *res.UpdatedCase)
		if err := r.opts.Cases.PutCase(ctx, caseRec); err != nil {
			return err
		}
		if res.UpdatedCase.Status == workflow.StatusFitIssueReported {
			if err := r.opts.Alerter.Alert(ctx, alertFitIssue(caseRec.ID)); err != nil {
				log.Printf("router: alert: %v", err)
			}
		}
	}
	if res.UpdatedSession != nil {
		store.ApplySession(sess, *res.UpdatedSession)
		if err := r.opts.Sessions.PutSession(ctx, sess); err != nil {
			return err
		}
	}
	r.deliver(ctx, res.Messages)

	if res.NextAction != nil && res.NextAction.Type == workflow.ActionAdvanceProduction {
		return r.advanceLocked(ctx, res.NextAction.CaseID)
	}
	return nil
}

func (r *Router) handleAwaitingEmail(ctx context.Context, userID, body string, sess *models.Session) error {
	email := strings.ToLower(strings.TrimSpace(body))
	if !strings.Contains(email, "@") {
		return r.reply(ctx, userID, msgEmailInvalid())
	}

	d, err := r.opts.Dentists.DentistByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return r.reply(ctx, userID, msgEmailNotFound(email))
	}
	if err != nil {
		return err
	}

	if err := r.opts.Dentists.BindDentist(ctx, email, userID); err != nil {
		return err
	}
	sess.DentistEmail = email
	sess.CurrentStage = string(workflow.StageIntent)
	if err := r.saveSession(ctx, sess); err != nil {
		return err
	}
	return r.reply(ctx, userID, msgRegistered(d.Name))
}

func (r *Router) handleIntent(ctx context.Context, userID, body string, sess *models.Session) error {
	label, err := r.classifyIntent(ctx, body)
	if err != nil {
		log.Printf("router: classify intent for %s: %v", userID, err)
		return r.reply(ctx, userID, msgApology())
	}

	switch label {
	case workflow.LabelSubmitCase:
		return r.createCase(ctx, userID, sess)
	case workflow.LabelTrackCase:
		return r.reportCases(ctx, userID, sess)
	default:
		return r.reply(ctx, userID, msgIntentHelp())
	}
}

func (r *Router) createCase(ctx context.Context, userID string, sess *models.Session) error {
	var dentistName string
	if d, err := r.opts.Dentists.DentistByUser(ctx, userID); err == nil {
		dentistName = d.Name
	}

	c := &models.Case{
		ID:          uuid.NewString(),
		UserID:      userID,
		DentistName: dentistName,
		Status:      string(workflow.StatusNew),
		Priority:    "Normal",
	}
	if err := r.opts.Cases.PutCase(ctx, c); err != nil {
		return err
	}

	sess.ActiveCase = &c.ID
	sess.ImageCount = 0
	sess.CurrentStage = string(workflow.StageAwaitingImages)
	if err := r.saveSession(ctx, sess); err != nil {
		return err
	}
	return r.reply(ctx, userID, msgCaseCreated(c.ID))
}

func (r *Router) reportCases(ctx context.Context, userID string, sess *models.Session) error {
	cases, err := r.opts.Cases.CasesByUser(ctx, userID)
	if err != nil {
		return err
	}
	sess.CurrentStage = string(workflow.StageGeneral)
	if err := r.saveSession(ctx, sess); err != nil {
		return err
	}
	if len(cases) == 0 {
		return r.reply(ctx, userID, msgNoCases())
	}
	return r.reply(ctx, userID, msgCaseList(cases))
}

func (r *Router) handleAwaitingImages(ctx context.Context, userID, body string, mediaURLs []string, sess *models.Session) error {
	if sess.ActiveCase == nil {
		sess.CurrentStage = string(workflow.StageGeneral)
		if err := r.saveSession(ctx, sess); err != nil {
			return err
		}
		return r.reply(ctx, userID, msgApology())
	}
	c, err := r.opts.Cases.GetCase(ctx, *sess.ActiveCase)
	if err != nil {
		return err
	}

	trimmed := strings.TrimSpace(body)
	if strings.EqualFold(trimmed, "done") {
		if sess.ImageCount == 0 {
			return r.reply(ctx, userID, msgNeedImages())
		}
		sess.CurrentStage = string(workflow.StageQuoteConfirm)
		if err := r.saveSession(ctx, sess); err != nil {
			return err
		}
		if err := r.opts.Alerter.Alert(ctx, alertNewSubmission(c, sess.ImageCount)); err != nil {
			log.Printf("router: alert: %v", err)
		}
		return r.reply(ctx, userID, msgQuote(c.PatientName))
	}

	// The first caption names the patient.
	if c.PatientName == "" && trimmed != "" {
		c.PatientName = trimmed
		if err := r.opts.Cases.PutCase(ctx, c); err != nil {
			return err
		}
	}

	if len(mediaURLs) > 0 {
		saved, err := r.saveImages(ctx, userID, c, mediaURLs, sess)
		if err != nil {
			log.Printf("router: save images for case %s: %v", c.ID, err)
			return r.reply(ctx, userID, msgApology())
		}
		sess.ImageCount += saved
		if err := r.saveSession(ctx, sess); err != nil {
			return err
		}
		return r.reply(ctx, userID, msgImagesReceived(saved, sess.ImageCount))
	}

	return r.reply(ctx, userID, msgCaseCreated(c.ID))
}

// saveImages fetches each media URL from the transport and re-hosts it.
func (r *Router) saveImages(ctx context.Context, userID string, c *models.Case, urls []string, sess *models.Session) (int, error) {
	if r.opts.Fetcher == nil || r.opts.Media == nil {
		return 0, fmt.Errorf("router: media pipeline not configured")
	}

	saved := 0
	for i, url := range urls {
		data, contentType, err := r.opts.Fetcher.Fetch(ctx, url)
		if err != nil {
			return saved, err
		}
		name := media.ObjectName(c.ID, sess.ImageCount+i, contentType)
		publicURL, err := r.opts.Media.Save(ctx, name, contentType, bytes.NewReader(data))
		if err != nil {
			return saved, err
		}
		if r.opts.Images != nil {
			img := &models.CaseImage{CaseID: c.ID, UserID: userID, PublicURL: publicURL, MimeType: contentType}
			if err := r.opts.Images.PutImage(ctx, img); err != nil {
				return saved, err
			}
		}
		saved++
	}
	return saved, nil
}

func (r *Router) handleQuoteConfirm(ctx context.Context, userID, body string, sess *models.Session) error {
	label, err := r.classifyYesNo(ctx, body)
	if err != nil {
		log.Printf("router: classify quote confirm for %s: %v", userID, err)
		return r.reply(ctx, userID, msgApology())
	}

	switch label {
	case workflow.LabelYes:
		sess.CurrentStage = string(workflow.StageMachineConfirm)
		if err := r.saveSession(ctx, sess); err != nil {
			return err
		}
		return r.reply(ctx, userID, msgMachineQuestion())
	case workflow.LabelNo:
		sess.CurrentStage = string(workflow.StageGeneral)
		if err := r.saveSession(ctx, sess); err != nil {
			return err
		}
		return r.reply(ctx, userID, msgCancelled())
	default:
		return r.reply(ctx, userID, msgQuoteReprompt())
	}
}

func (r *Router) handleMachineConfirm(ctx context.Context, userID, body string, sess *models.Session) error {
	label, err := r.classifyYesNo(ctx, body)
	if err != nil {
		log.Printf("router: classify machine confirm for %s: %v", userID, err)
		return r.reply(ctx, userID, msgApology())
	}

	switch label {
	case workflow.LabelYes:
		sess.CurrentStage = string(workflow.StageGeneral)
		if err := r.saveSession(ctx, sess); err != nil {
			return err
		}
		return r.reply(ctx, userID, msgShareScans())
	case workflow.LabelNo:
		sess.CurrentStage = string(workflow.StageScheduling)
		if err := r.saveSession(ctx, sess); err != nil {
			return err
		}
		return r.reply(ctx, userID, msgAskSlot())
	default:
		return r.reply(ctx, userID, msgMachineQuestion())
	}
}

func (r *Router) handleScheduling(ctx context.Context, userID, body string, sess *models.Session) error {
	if r.opts.Scheduler == nil {
		sess.CurrentStage = string(workflow.StageGeneral)
		if err := r.saveSession(ctx, sess); err != nil {
			return err
		}
		return r.reply(ctx, userID, msgShareScans())
	}

	if sess.PendingSlot != "" {
		return r.handleSlotConfirm(ctx, userID, body, sess)
	}

	slot, err := schedule.ParseSlot(strings.TrimSpace(body), r.opts.Calendar, time.Now())
	if err != nil {
		return r.reply(ctx, userID, msgSlotRejected(slotReason(err)))
	}

	free, err := r.opts.Scheduler.CheckAvailability(ctx, slot)
	if err != nil {
		return err
	}
	if !free {
		return r.reply(ctx, userID, msgSlotBusy())
	}

	sess.PendingSlot = slot.Format(time.RFC3339)
	if err := r.saveSession(ctx, sess); err != nil {
		return err
	}
	return r.reply(ctx, userID, msgConfirmSlot(slot.Format("Mon, 02 Jan 2006 15:04"), clinicLocation))
}

// handleSlotConfirm resolves the yes/no turn on a proposed appointment slot.
func (r *Router) handleSlotConfirm(ctx context.Context, userID, body string, sess *models.Session) error {
	slot, err := time.Parse(time.RFC3339, sess.PendingSlot)
	if err != nil {
		sess.PendingSlot = ""
		if err := r.saveSession(ctx, sess); err != nil {
			return err
		}
		return r.reply(ctx, userID, msgAskSlot())
	}

	label, err := r.classifyYesNo(ctx, body)
	if err != nil {
		log.Printf("router: classify slot confirm for %s: %v", userID, err)
		return r.reply(ctx, userID, msgApology())
	}

	switch label {
	case workflow.LabelYes:
		summary := "Aligner scanning appointment"
		if sess.DentistEmail != "" {
			summary += " - " + sess.DentistEmail
		}
		eventID, err := r.opts.Scheduler.Book(ctx, slot, clinicLocation, summary)
		if err != nil {
			return err
		}

		if r.opts.Appointments != nil {
			appt := &models.Appointment{
				UserID:   userID,
				StartsAt: slot,
				Location: clinicLocation,
				EventID:  eventID,
			}
			if sess.ActiveCase != nil {
				appt.CaseID = *sess.ActiveCase
			}
			if err := r.opts.Appointments.PutAppointment(ctx, appt); err != nil {
				return err
			}
		}

		sess.PendingSlot = ""
		sess.CurrentStage = string(workflow.StageGeneral)
		if err := r.saveSession(ctx, sess); err != nil {
			return err
		}
		return r.reply(ctx, userID, msgSlotBooked(slot.Format("Mon, 02 Jan 2006 15:04"), clinicLocation))
	case workflow.LabelNo:
		sess.PendingSlot = ""
		if err := r.saveSession(ctx, sess); err != nil {
			return err
		}
		return r.reply(ctx, userID, msgAskSlot())
	default:
		return r.reply(ctx, userID, msgConfirmSlot(slot.Format("Mon, 02 Jan 2006 15:04"), clinicLocation))
	}
}

func (r *Router) handleTrackingCase(ctx context.Context, userID, body string, sess *models.Session) error {
	id := strings.TrimSpace(body)
	if c, err := r.opts.Cases.GetCase(ctx, id); err == nil && c.UserID == userID {
		sess.CurrentStage = string(workflow.StageGeneral)
		if err := r.saveSession(ctx, sess); err != nil {
			return err
		}
		return r.reply(ctx, userID, msgCaseList([]models.Case{*c}))
	}
	return r.reportCases(ctx, userID, sess)
}

func (r *Router) loadOrCreateSession(ctx context.Context, userID string) (*models.Session, bool, error) {
	sess, err := r.opts.Sessions.GetSession(ctx, userID)
	if err == nil {
		return sess, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, err
	}

	sess = &models.Session{
		UserID:       userID,
		CurrentStage: string(workflow.StageAwaitingEmail),
		LastActivity: time.Now(),
	}
	if err := r.opts.Sessions.PutSession(ctx, sess); err != nil {
		return nil, false, err
	}
	return sess, true, nil
}

func (r *Router) saveSession(ctx context.Context, sess *models.Session) error {
	sess.LastActivity = time.Now()
	return r.opts.Sessions.PutSession(ctx, sess)
}

// reply sends one message to one user and records it.
func (r *Router) reply(ctx context.Context, userID, content string) error {
	r.deliver(ctx, []workflow.Message{{RecipientID: userID, Content: content}})
	return nil
}

// deliver sends the engine's outbound messages, recording each and warning
// when a recipient has fallen outside the reply window.
func (r *Router) deliver(ctx context.Context, msgs []workflow.Message) {
	for _, m := range msgs {
		if last, err := r.opts.Messages.LastInbound(ctx, m.RecipientID); err == nil {
			if time.Since(last) > replyWindow {
				log.Printf("router: %s is outside the %s reply window, message may need a template", m.RecipientID, replyWindow)
			}
		}
		if err := r.opts.Notifier.Send(ctx, m.RecipientID, m.Content); err != nil {
			log.Printf("router: send to %s: %v", m.RecipientID, err)
			continue
		}
		if err := r.opts.Messages.LogMessage(ctx, &models.MessageLog{
			UserID:    m.RecipientID,
			Direction: "out",
			Body:      m.Content,
			CreatedAt: time.Now(),
		}); err != nil {
			log.Printf("router: log outbound to %s: %v", m.RecipientID, err)
		}
	}
}

func (r *Router) classifyIntent(ctx context.Context, body string) (string, error) {
	instructions := fmt.Sprintf(
		"Classify the dentist's message into exactly one of these labels: %s. Respond with the label only.",
		strings.Join(workflow.IntentLabels, ", "))
	raw, err := r.opts.Oracle.Classify(ctx, body, instructions)
	if err != nil {
		return "", err
	}
	label, ok := workflow.MatchLabel(raw, workflow.IntentLabels)
	if !ok {
		return workflow.LabelNone, nil
	}
	return label, nil
}

func (r *Router) classifyYesNo(ctx context.Context, body string) (string, error) {
	labels := []string{workflow.LabelYes, workflow.LabelUnknown, workflow.LabelNo}
	instructions := fmt.Sprintf(
		"Classify the dentist's reply into exactly one of these labels: %s. Respond with the label only.",
		strings.Join(labels, ", "))
	raw, err := r.opts.Oracle.Classify(ctx, body, instructions)
	if err != nil {
		return "", err
	}
	label, ok := workflow.MatchLabel(raw, labels)
	if !ok {
		return workflow.LabelUnknown, nil
	}
	return label, nil
}

// slotReason strips the package prefix from a slot validation error for
// user-facing copy.
func slotReason(err error) string {
	return strings.TrimPrefix(err.Error(), "schedule: ")
}
