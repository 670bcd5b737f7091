package router

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jilsnshah/alignflow/internal/config"
	"github.com/jilsnshah/alignflow/internal/models"
	"github.com/jilsnshah/alignflow/internal/store"
	"github.com/jilsnshah/alignflow/internal/workflow"
)

const testUser = "whatsapp:+919800000001"

type fakeOracle struct {
	reply string
	err   error
}

func (f *fakeOracle) Classify(ctx context.Context, input, instructions string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []workflow.Message
}

func (n *recordingNotifier) Send(ctx context.Context, recipientID, content string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, workflow.Message{RecipientID: recipientID, Content: content})
	return nil
}

func (n *recordingNotifier) last(t *testing.T) workflow.Message {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sent) == 0 {
		t.Fatal("no messages sent")
	}
	return n.sent[len(n.sent)-1]
}

type recordingAlerter struct {
	mu     sync.Mutex
	alerts []string
}

func (a *recordingAlerter) Alert(ctx context.Context, text string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.alerts = append(a.alerts, text)
	return nil
}

type fakeScheduler struct {
	free   bool
	booked []time.Time
}

func (s *fakeScheduler) CheckAvailability(ctx context.Context, start time.Time) (bool, error) {
	return s.free, nil
}

func (s *fakeScheduler) Book(ctx context.Context, start time.Time, location, summary string) (string, error) {
	s.booked = append(s.booked, start)
	return "evt-1", nil
}

type fixture struct {
	router   *Router
	mem      *store.Memory
	notifier *recordingNotifier
	alerter  *recordingAlerter
	oracle   *fakeOracle
	sched    *fakeScheduler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := store.NewMemory()
	oracle := &fakeOracle{}
	notifier := &recordingNotifier{}
	alerter := &recordingAlerter{}
	sched := &fakeScheduler{free: true}

	r, err := New(Opts{
		Cases:        mem,
		Sessions:     mem,
		Dentists:     mem,
		Messages:     mem,
		Appointments: mem,
		Images:       mem,
		Engine:       workflow.New(oracle),
		Oracle:       oracle,
		Notifier:     notifier,
		Alerter:      alerter,
		Scheduler:    sched,
		Calendar:     config.CalendarConfig{Timezone: "Asia/Kolkata", SlotMinutes: 30},
	})
	if err != nil {
		t.Fatalf("new router: %v", err)
	}
	return &fixture{router: r, mem: mem, notifier: notifier, alerter: alerter, oracle: oracle, sched: sched}
}

// seedSession installs a session in a known stage.
func (f *fixture) seedSession(t *testing.T, stage workflow.Stage, activeCase string) {
	t.Helper()
	sess := &models.Session{UserID: testUser, CurrentStage: string(stage)}
	if activeCase != "" {
		sess.ActiveCase = &activeCase
	}
	if err := f.mem.PutSession(context.Background(), sess); err != nil {
		t.Fatalf("seed session: %v", err)
	}
}

func (f *fixture) seedCase(t *testing.T, c models.Case) {
	t.Helper()
	if err := f.mem.PutCase(context.Background(), &c); err != nil {
		t.Fatalf("seed case: %v", err)
	}
}

func TestNew_MissingCollaborators(t *testing.T) {
	_, err := New(Opts{})
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"Cases", "Sessions", "Engine", "Notifier"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not name %s", err, want)
		}
	}
}

func TestHandleMessage_FirstContactAsksForEmail(t *testing.T) {
	f := newFixture(t)

	if err := f.router.HandleMessage(context.Background(), testUser, "hello", nil); err != nil {
		t.Fatalf("handle: %v", err)
	}

	sess, err := f.mem.GetSession(context.Background(), testUser)
	if err != nil {
		t.Fatalf("session not created: %v", err)
	}
	if sess.CurrentStage != "awaiting_email" {
		t.Errorf("stage = %q, want awaiting_email", sess.CurrentStage)
	}
	if !strings.Contains(f.notifier.last(t).Content, "email") {
		t.Errorf("welcome message %q does not ask for the email", f.notifier.last(t).Content)
	}
}

func TestHandleMessage_Registration(t *testing.T) {
	f := newFixture(t)
	f.mem.SeedDentist(models.Dentist{Email: "dr.mehta@example.com", Name: "Dr. Mehta"})
	f.seedSession(t, workflow.StageAwaitingEmail, "")

	t.Run("unknown email re-prompts", func(t *testing.T) {
		if err := f.router.HandleMessage(context.Background(), testUser, "dr.who@example.com", nil); err != nil {
			t.Fatalf("handle: %v", err)
		}
		sess, _ := f.mem.GetSession(context.Background(), testUser)
		if sess.CurrentStage != "awaiting_email" {
			t.Errorf("stage = %q, want unchanged", sess.CurrentStage)
		}
	})

	t.Run("not an email re-prompts", func(t *testing.T) {
		if err := f.router.HandleMessage(context.Background(), testUser, "mehta", nil); err != nil {
			t.Fatalf("handle: %v", err)
		}
		if !strings.Contains(f.notifier.last(t).Content, "email address") {
			t.Errorf("reply = %q", f.notifier.last(t).Content)
		}
	})

	t.Run("known email registers", func(t *testing.T) {
		if err := f.router.HandleMessage(context.Background(), testUser, "Dr.Mehta@Example.com", nil); err != nil {
			t.Fatalf("handle: %v", err)
		}
		sess, _ := f.mem.GetSession(context.Background(), testUser)
		if sess.CurrentStage != "intent" {
			t.Errorf("stage = %q, want intent", sess.CurrentStage)
		}
		if sess.DentistEmail != "dr.mehta@example.com" {
			t.Errorf("DentistEmail = %q", sess.DentistEmail)
		}
		d, err := f.mem.DentistByUser(context.Background(), testUser)
		if err != nil || d.Email != "dr.mehta@example.com" {
			t.Errorf("dentist not bound: %v", err)
		}
		if !strings.Contains(f.notifier.last(t).Content, "Dr. Mehta") {
			t.Errorf("reply %q does not greet by name", f.notifier.last(t).Content)
		}
	})
}

func TestHandleMessage_IntentSubmitCase(t *testing.T) {
	f := newFixture(t)
	f.oracle.reply = "submit_case"
	f.mem.SeedDentist(models.Dentist{Email: "dr.mehta@example.com", Name: "Dr. Mehta", UserID: testUser})
	f.seedSession(t, workflow.StageIntent, "")

	if err := f.router.HandleMessage(context.Background(), testUser, "I'd like to submit a new case", nil); err != nil {
		t.Fatalf("handle: %v", err)
	}

	sess, _ := f.mem.GetSession(context.Background(), testUser)
	if sess.CurrentStage != "awaiting_images" {
		t.Fatalf("stage = %q, want awaiting_images", sess.CurrentStage)
	}
	if sess.ActiveCase == nil {
		t.Fatal("no active case set")
	}
	c, err := f.mem.GetCase(context.Background(), *sess.ActiveCase)
	if err != nil {
		t.Fatalf("case not created: %v", err)
	}
	if c.Status != "New" || c.UserID != testUser || c.DentistName != "Dr. Mehta" {
		t.Errorf("case = %+v", c)
	}
}

func TestHandleMessage_IntentTrack(t *testing.T) {
	f := newFixture(t)
	f.oracle.reply = "track_case"
	f.seedCase(t, models.Case{ID: "case-5", UserID: testUser, PatientName: "Asha Verma", Status: "AwaitingDelivery", DeliveryStatus: "In Transit"})
	f.seedSession(t, workflow.StageIntent, "")

	if err := f.router.HandleMessage(context.Background(), testUser, "where is my case?", nil); err != nil {
		t.Fatalf("handle: %v", err)
	}

	reply := f.notifier.last(t).Content
	if !strings.Contains(reply, "case-5") || !strings.Contains(reply, "AwaitingDelivery") {
		t.Errorf("reply = %q", reply)
	}
	sess, _ := f.mem.GetSession(context.Background(), testUser)
	if sess.CurrentStage != "general" {
		t.Errorf("stage = %q, want general", sess.CurrentStage)
	}
}

func TestHandleMessage_ImageFlow(t *testing.T) {
	f := newFixture(t)
	f.seedCase(t, models.Case{ID: "case-7", UserID: testUser, Status: "New"})
	f.seedSession(t, workflow.StageAwaitingImages, "case-7")

	// Caption names the patient.
	if err := f.router.HandleMessage(context.Background(), testUser, "Asha Verma", nil); err != nil {
		t.Fatalf("handle caption: %v", err)
	}
	c, _ := f.mem.GetCase(context.Background(), "case-7")
	if c.PatientName != "Asha Verma" {
		t.Errorf("PatientName = %q", c.PatientName)
	}

	// Done without images is rejected.
	if err := f.router.HandleMessage(context.Background(), testUser, "done", nil); err != nil {
		t.Fatalf("handle done: %v", err)
	}
	sess, _ := f.mem.GetSession(context.Background(), testUser)
	if sess.CurrentStage != "awaiting_images" {
		t.Errorf("stage = %q, want awaiting_images until images arrive", sess.CurrentStage)
	}

	// Simulate that uploads were counted, then finish.
	sess.ImageCount = 3
	if err := f.mem.PutSession(context.Background(), sess); err != nil {
		t.Fatalf("update session: %v", err)
	}
	if err := f.router.HandleMessage(context.Background(), testUser, "done", nil); err != nil {
		t.Fatalf("handle done: %v", err)
	}

	sess, _ = f.mem.GetSession(context.Background(), testUser)
	if sess.CurrentStage != "quote_confirm" {
		t.Errorf("stage = %q, want quote_confirm", sess.CurrentStage)
	}
	if len(f.alerter.alerts) == 0 || !strings.Contains(f.alerter.alerts[0], "case-7") {
		t.Errorf("ops not alerted about the submission: %v", f.alerter.alerts)
	}
	if !strings.Contains(f.notifier.last(t).Content, "estimated cost") {
		t.Errorf("quote reply = %q", f.notifier.last(t).Content)
	}
}

func TestHandleMessage_QuoteAndMachineFlow(t *testing.T) {
	f := newFixture(t)
	f.seedCase(t, models.Case{ID: "case-7", UserID: testUser, PatientName: "Asha Verma", Status: "New"})
	f.seedSession(t, workflow.StageQuoteConfirm, "case-7")

	f.oracle.reply = "Yes"
	if err := f.router.HandleMessage(context.Background(), testUser, "yes please", nil); err != nil {
		t.Fatalf("quote yes: %v", err)
	}
	sess, _ := f.mem.GetSession(context.Background(), testUser)
	if sess.CurrentStage != "machine_confirm" {
		t.Fatalf("stage = %q, want machine_confirm", sess.CurrentStage)
	}

	f.oracle.reply = "No"
	if err := f.router.HandleMessage(context.Background(), testUser, "no scanner here", nil); err != nil {
		t.Fatalf("machine no: %v", err)
	}
	sess, _ = f.mem.GetSession(context.Background(), testUser)
	if sess.CurrentStage != "scheduling" {
		t.Fatalf("stage = %q, want scheduling", sess.CurrentStage)
	}
}

func TestHandleMessage_Scheduling(t *testing.T) {
	f := newFixture(t)
	f.seedCase(t, models.Case{ID: "case-7", UserID: testUser, Status: "New"})
	f.seedSession(t, workflow.StageScheduling, "case-7")

	t.Run("garbage slot re-prompts", func(t *testing.T) {
		if err := f.router.HandleMessage(context.Background(), testUser, "sometime next week", nil); err != nil {
			t.Fatalf("handle: %v", err)
		}
		sess, _ := f.mem.GetSession(context.Background(), testUser)
		if sess.CurrentStage != "scheduling" {
			t.Errorf("stage = %q, want scheduling", sess.CurrentStage)
		}
	})

	loc, _ := time.LoadLocation("Asia/Kolkata")
	slot := time.Now().In(loc).AddDate(0, 0, 2).Format("2006-01-02") + " 10:30"

	t.Run("busy slot re-prompts", func(t *testing.T) {
		f.sched.free = false
		if err := f.router.HandleMessage(context.Background(), testUser, slot, nil); err != nil {
			t.Fatalf("handle: %v", err)
		}
		if !strings.Contains(f.notifier.last(t).Content, "taken") {
			t.Errorf("reply = %q", f.notifier.last(t).Content)
		}
	})

	t.Run("free slot asks for confirmation then books", func(t *testing.T) {
		f.sched.free = true
		if err := f.router.HandleMessage(context.Background(), testUser, slot, nil); err != nil {
			t.Fatalf("handle slot: %v", err)
		}
		if len(f.sched.booked) != 0 {
			t.Fatalf("booked %d slots before confirmation", len(f.sched.booked))
		}
		sess, _ := f.mem.GetSession(context.Background(), testUser)
		if sess.PendingSlot == "" {
			t.Fatal("pending slot not recorded")
		}
		if !strings.Contains(f.notifier.last(t).Content, "yes or no") {
			t.Errorf("reply = %q, want a confirmation question", f.notifier.last(t).Content)
		}

		f.oracle.reply = "Yes"
		if err := f.router.HandleMessage(context.Background(), testUser, "yes, book it", nil); err != nil {
			t.Fatalf("handle confirm: %v", err)
		}
		if len(f.sched.booked) != 1 {
			t.Fatalf("booked %d slots, want 1", len(f.sched.booked))
		}
		appts, _ := f.mem.AppointmentsByUser(context.Background(), testUser)
		if len(appts) != 1 || appts[0].EventID != "evt-1" || appts[0].CaseID != "case-7" {
			t.Errorf("appointments = %+v", appts)
		}
		sess, _ = f.mem.GetSession(context.Background(), testUser)
		if sess.CurrentStage != "general" {
			t.Errorf("stage = %q, want general", sess.CurrentStage)
		}
		if sess.PendingSlot != "" {
			t.Errorf("PendingSlot = %q, want cleared after booking", sess.PendingSlot)
		}
	})

	t.Run("declined confirmation re-asks", func(t *testing.T) {
		f.seedSession(t, workflow.StageScheduling, "case-7")
		if err := f.router.HandleMessage(context.Background(), testUser, slot, nil); err != nil {
			t.Fatalf("handle slot: %v", err)
		}

		f.oracle.reply = "No"
		if err := f.router.HandleMessage(context.Background(), testUser, "no, another day", nil); err != nil {
			t.Fatalf("handle decline: %v", err)
		}
		if len(f.sched.booked) != 1 {
			t.Fatalf("booked %d slots, want no new booking after a decline", len(f.sched.booked))
		}
		sess, _ := f.mem.GetSession(context.Background(), testUser)
		if sess.CurrentStage != "scheduling" {
			t.Errorf("stage = %q, want scheduling", sess.CurrentStage)
		}
		if sess.PendingSlot != "" {
			t.Errorf("PendingSlot = %q, want cleared after a decline", sess.PendingSlot)
		}
		if !strings.Contains(f.notifier.last(t).Content, "YYYY-MM-DD") {
			t.Errorf("reply = %q, want a fresh slot prompt", f.notifier.last(t).Content)
		}
	})
}

func TestHandleMessage_DeliveredHandsOffToEngine(t *testing.T) {
	f := newFixture(t)
	f.seedCase(t, models.Case{
		ID: "case-7", UserID: testUser, PatientName: "Asha Verma",
		Status: "AwaitingDelivery", DeliveryStatus: "Delivered",
	})
	f.seedSession(t, workflow.StageAwaitingDelivery, "case-7")

	if err := f.router.HandleMessage(context.Background(), testUser, "it arrived", nil); err != nil {
		t.Fatalf("handle: %v", err)
	}

	c, _ := f.mem.GetCase(context.Background(), "case-7")
	if c.Status != "AwaitingFitConfirmation" {
		t.Errorf("status = %q, want AwaitingFitConfirmation", c.Status)
	}
	sess, _ := f.mem.GetSession(context.Background(), testUser)
	if sess.CurrentStage != "awaiting_fit_confirmation" {
		t.Errorf("stage = %q", sess.CurrentStage)
	}
}

func TestHandleMessage_DispatchChoiceChainsProduction(t *testing.T) {
	f := newFixture(t)
	f.oracle.reply = "PhaseWise"
	f.seedCase(t, models.Case{
		ID: "case-7", UserID: testUser, PatientName: "Asha Verma",
		Status: "AwaitingFitConfirmation",
	})
	f.seedSession(t, workflow.StageAwaitingDispatchChoice, "case-7")

	if err := f.router.HandleMessage(context.Background(), testUser, "phase wise please", nil); err != nil {
		t.Fatalf("handle: %v", err)
	}

	c, _ := f.mem.GetCase(context.Background(), "case-7")
	if c.Status != "Dispatching_PhaseWise" {
		t.Errorf("status = %q, want the chained production step applied", c.Status)
	}
	if !strings.Contains(f.notifier.last(t).Content, "production") {
		t.Errorf("reply = %q, want the production notification", f.notifier.last(t).Content)
	}
	sess, _ := f.mem.GetSession(context.Background(), testUser)
	if sess.CurrentStage != "general" {
		t.Errorf("stage = %q, want general", sess.CurrentStage)
	}
}

func TestHandleMessage_DanglingActiveCaseApologizes(t *testing.T) {
	f := newFixture(t)
	f.seedSession(t, workflow.StageAwaitingDelivery, "case-gone")

	if err := f.router.HandleMessage(context.Background(), testUser, "any update?", nil); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if !strings.Contains(f.notifier.last(t).Content, "Sorry") {
		t.Errorf("reply = %q, want an apology", f.notifier.last(t).Content)
	}
	sess, _ := f.mem.GetSession(context.Background(), testUser)
	if sess.CurrentStage != "awaiting_delivery" {
		t.Errorf("stage = %q, want unchanged so the next message retries", sess.CurrentStage)
	}
	if len(f.alerter.alerts) == 0 {
		t.Error("ops not alerted about the workflow error")
	}
}

func TestAdvanceCase(t *testing.T) {
	f := newFixture(t)
	f.seedCase(t, models.Case{
		ID: "case-7", UserID: testUser, PatientName: "Asha Verma",
		Status: "ApprovedForProduction",
	})

	if err := f.router.AdvanceCase(context.Background(), "case-7"); err != nil {
		t.Fatalf("advance: %v", err)
	}

	c, _ := f.mem.GetCase(context.Background(), "case-7")
	if c.Status != "CasePlanningComplete" {
		t.Errorf("status = %q, want CasePlanningComplete", c.Status)
	}
	if !strings.Contains(f.notifier.last(t).Content, "Asha Verma") {
		t.Errorf("notification = %q", f.notifier.last(t).Content)
	}

	if err := f.router.AdvanceCase(context.Background(), "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("advance missing case err = %v, want ErrNotFound", err)
	}
}

// Drives a case from production approval through delivery and into the fit
// check purely through the router's public entry points, the way the ops API
// and the webhook would.
func TestAdvanceCase_DeliveryReachesFitCheck(t *testing.T) {
	f := newFixture(t)
	f.seedCase(t, models.Case{
		ID: "case-7", UserID: testUser, PatientName: "Asha Verma",
		Status: "ApprovedForProduction",
	})
	f.seedSession(t, workflow.StageGeneral, "")

	if err := f.router.AdvanceCase(context.Background(), "case-7"); err != nil {
		t.Fatalf("advance to planning: %v", err)
	}
	if err := f.router.AdvanceCase(context.Background(), "case-7"); err != nil {
		t.Fatalf("advance to dispatch: %v", err)
	}

	c, _ := f.mem.GetCase(context.Background(), "case-7")
	if c.Status != "AwaitingDelivery" || c.DeliveryStatus != "In Transit" {
		t.Fatalf("case = %s/%s, want AwaitingDelivery/In Transit", c.Status, c.DeliveryStatus)
	}
	sess, _ := f.mem.GetSession(context.Background(), testUser)
	if sess.CurrentStage != "awaiting_delivery" {
		t.Fatalf("stage = %q, want awaiting_delivery after dispatch", sess.CurrentStage)
	}
	if sess.ActiveCase == nil || *sess.ActiveCase != "case-7" {
		t.Fatalf("ActiveCase = %v, want case-7", sess.ActiveCase)
	}

	if _, err := f.router.SetDelivery(context.Background(), "case-7", "Delivered"); err != nil {
		t.Fatalf("set delivery: %v", err)
	}
	if err := f.router.HandleMessage(context.Background(), testUser, "got the aligners today", nil); err != nil {
		t.Fatalf("handle: %v", err)
	}

	c, _ = f.mem.GetCase(context.Background(), "case-7")
	if c.Status != "AwaitingFitConfirmation" {
		t.Errorf("status = %q, want AwaitingFitConfirmation", c.Status)
	}
	sess, _ = f.mem.GetSession(context.Background(), testUser)
	if sess.CurrentStage != "awaiting_fit_confirmation" {
		t.Errorf("stage = %q, want awaiting_fit_confirmation", sess.CurrentStage)
	}
	if !strings.Contains(f.notifier.last(t).Content, "fit") {
		t.Errorf("reply = %q, want the fit question", f.notifier.last(t).Content)
	}
}

// Cases created from the ops CLI may belong to a dentist who has never
// messaged the bot; dispatch must not fail on the missing session.
func TestAdvanceCase_NoSessionYet(t *testing.T) {
	f := newFixture(t)
	f.seedCase(t, models.Case{
		ID: "case-8", UserID: testUser, PatientName: "Asha Verma",
		Status: "CasePlanningComplete",
	})

	if err := f.router.AdvanceCase(context.Background(), "case-8"); err != nil {
		t.Fatalf("advance: %v", err)
	}
	c, _ := f.mem.GetCase(context.Background(), "case-8")
	if c.Status != "AwaitingDelivery" {
		t.Errorf("status = %q, want AwaitingDelivery", c.Status)
	}
	if _, err := f.mem.GetSession(context.Background(), testUser); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("session err = %v, want ErrNotFound (none fabricated)", err)
	}
}

func TestSetStatus(t *testing.T) {
	f := newFixture(t)
	f.seedCase(t, models.Case{ID: "case-7", UserID: testUser, Status: "New"})

	c, err := f.router.SetStatus(context.Background(), "case-7", "ApprovedForProduction")
	if err != nil {
		t.Fatalf("set status: %v", err)
	}
	if c.Status != "ApprovedForProduction" {
		t.Errorf("returned status = %q", c.Status)
	}
	stored, _ := f.mem.GetCase(context.Background(), "case-7")
	if stored.Status != "ApprovedForProduction" {
		t.Errorf("stored status = %q", stored.Status)
	}

	if _, err := f.router.SetStatus(context.Background(), "case-7", "Shipped"); err == nil || !strings.Contains(err.Error(), `unknown status "Shipped"`) {
		t.Errorf("err = %v, want unknown-status error", err)
	}
	if _, err := f.router.SetStatus(context.Background(), "missing", "New"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

// gateNotifier blocks inside its first Send until released, holding the
// caller on the owner lock.
type gateNotifier struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (n *gateNotifier) Send(ctx context.Context, recipientID, content string) error {
	n.once.Do(func() {
		close(n.entered)
		<-n.release
	})
	return nil
}

func TestSetDelivery_SerializedWithMessageHandling(t *testing.T) {
	mem := store.NewMemory()
	oracle := &fakeOracle{}
	gate := &gateNotifier{entered: make(chan struct{}), release: make(chan struct{})}
	r, err := New(Opts{
		Cases:    mem,
		Sessions: mem,
		Dentists: mem,
		Messages: mem,
		Engine:   workflow.New(oracle),
		Oracle:   oracle,
		Notifier: gate,
	})
	if err != nil {
		t.Fatalf("new router: %v", err)
	}

	caseID := "case-7"
	if err := mem.PutCase(context.Background(), &models.Case{
		ID: caseID, UserID: testUser, PatientName: "Asha Verma",
		Status: "AwaitingDelivery", DeliveryStatus: "In Transit",
	}); err != nil {
		t.Fatalf("seed case: %v", err)
	}
	if err := mem.PutSession(context.Background(), &models.Session{
		UserID: testUser, CurrentStage: "awaiting_delivery", ActiveCase: &caseID,
	}); err != nil {
		t.Fatalf("seed session: %v", err)
	}

	handled := make(chan error, 1)
	go func() {
		handled <- r.HandleMessage(context.Background(), testUser, "any update?", nil)
	}()
	<-gate.entered

	updated := make(chan error, 1)
	go func() {
		_, err := r.SetDelivery(context.Background(), caseID, "Delivered")
		updated <- err
	}()

	select {
	case err := <-updated:
		t.Fatalf("delivery update finished while the owner's message was in flight (err = %v)", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(gate.release)
	if err := <-handled; err != nil {
		t.Fatalf("handle: %v", err)
	}
	if err := <-updated; err != nil {
		t.Fatalf("set delivery: %v", err)
	}
	c, _ := mem.GetCase(context.Background(), caseID)
	if c.DeliveryStatus != "Delivered" {
		t.Errorf("delivery status = %q, want Delivered", c.DeliveryStatus)
	}
}

func TestKeyLock_SerializesPerKey(t *testing.T) {
	k := newKeyLock()
	var counter int

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.lock("u1")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Errorf("counter = %d, want 50", counter)
	}
}
