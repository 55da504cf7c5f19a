package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/elshanq/resume-screener/internal/ai"
	"github.com/elshanq/resume-screener/internal/mail"
	"github.com/elshanq/resume-screener/internal/roles"
	"github.com/elshanq/resume-screener/internal/zoom"

	"go.uber.org/zap"
)

type fakeExtractor struct {
	text  string
	err   error
	calls int
}

func (f *fakeExtractor) Text(_ []byte) (string, error) {
	f.calls++
	return f.text, f.err
}

type fakeEvaluator struct {
	verdict  *ai.Verdict
	email    string
	emailErr error
	calls    int
}

func (f *fakeEvaluator) Evaluate(_ context.Context, _ string, _ roles.Role) *ai.Verdict {
	f.calls++
	return f.verdict
}

func (f *fakeEvaluator) ExtractEmail(_ context.Context, _ string) (string, error) {
	return f.email, f.emailErr
}

type fakeScheduler struct {
	meeting *zoom.MeetingInfo
	err     error
	calls   int
}

func (f *fakeScheduler) Schedule(_ context.Context, _ string) (*zoom.MeetingInfo, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.meeting, nil
}

type fakeNotifier struct {
	rejections    int
	selections    int
	confirmations int

	lastFeedback    string
	lastSuggestions []string
	lastDetails     mail.ConfirmationDetails

	rejectionErr    error
	selectionErr    error
	confirmationErr error
}

func (f *fakeNotifier) SendRejection(_ context.Context, _, _, feedback string, suggestions []string) error {
	if f.rejectionErr != nil {
		return f.rejectionErr
	}
	f.rejections++
	f.lastFeedback = feedback
	f.lastSuggestions = suggestions
	return nil
}

func (f *fakeNotifier) SendSelection(_ context.Context, _, _ string) error {
	if f.selectionErr != nil {
		return f.selectionErr
	}
	f.selections++
	return nil
}

func (f *fakeNotifier) SendConfirmation(_ context.Context, _, _ string, details mail.ConfirmationDetails) error {
	if f.confirmationErr != nil {
		return f.confirmationErr
	}
	f.confirmations++
	f.lastDetails = details
	return nil
}

func acceptVerdict() *ai.Verdict {
	return &ai.Verdict{
		Narrative: "Strong fit.",
		FitScore:  90,
		Decision:  ai.DecisionAccept,
	}
}

func rejectVerdict() *ai.Verdict {
	return &ai.Verdict{
		Narrative:   "Missing core skills.",
		FitScore:    30,
		Decision:    ai.DecisionReject,
		Suggestions: []string{"Gain more Go experience"},
	}
}

var backendRole = roles.Role{ID: "backend-engineer", Title: "Backend Engineer", Requirements: "Go"}

type fixture struct {
	pipeline  *Pipeline
	extractor *fakeExtractor
	evaluator *fakeEvaluator
	scheduler *fakeScheduler
	notifier  *fakeNotifier
}

func newFixture(verdict *ai.Verdict) *fixture {
	f := &fixture{
		extractor: &fakeExtractor{text: "resume text with experience"},
		evaluator: &fakeEvaluator{verdict: verdict, email: "jane@example.com"},
		scheduler: &fakeScheduler{meeting: &zoom.MeetingInfo{
			Date:    "2025-01-13",
			Time:    "11:00",
			JoinURL: "https://zoom.example/j/42",
		}},
		notifier: &fakeNotifier{},
	}
	f.pipeline = New(Deps{
		Extractor: f.extractor,
		Evaluator: f.evaluator,
		Scheduler: f.scheduler,
		Notifier:  f.notifier,
		Logger:    zap.NewNop(),
	}, 0)
	return f
}

func (f *fixture) submit(t *testing.T) {
	t.Helper()
	f.pipeline.SetRole(backendRole)
	if err := f.pipeline.Submit(context.Background(), []byte("%PDF-1.4 fake")); err != nil {
		t.Fatalf("submit: %v", err)
	}
}

func TestSubmitExtractsTextAndEmail(t *testing.T) {
	f := newFixture(acceptVerdict())
	f.submit(t)

	if got := f.pipeline.Stage(); got != StageResumeLoaded {
		t.Fatalf("unexpected stage: %s", got)
	}
	if f.pipeline.ResumeText() != "resume text with experience" {
		t.Fatalf("unexpected resume text: %q", f.pipeline.ResumeText())
	}
	if f.pipeline.Email() != "jane@example.com" {
		t.Fatalf("unexpected email: %q", f.pipeline.Email())
	}
}

func TestSubmitExtractionFailureKeepsSessionEmpty(t *testing.T) {
	f := newFixture(acceptVerdict())
	f.extractor.err = errors.New("no text layer")

	err := f.pipeline.Submit(context.Background(), []byte("%PDF-1.4 scanned"))
	if err == nil {
		t.Fatal("expected error")
	}

	if got := f.pipeline.Stage(); got != StageEmpty {
		t.Fatalf("expected empty stage after extraction failure, got %s", got)
	}
	if f.evaluator.calls != 0 || f.scheduler.calls != 0 {
		t.Fatal("downstream services must not be called on extraction failure")
	}
}

func TestSubmitSameBytesIsNoOp(t *testing.T) {
	f := newFixture(acceptVerdict())
	f.submit(t)

	if err := f.pipeline.Submit(context.Background(), []byte("%PDF-1.4 fake")); err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if f.extractor.calls != 1 {
		t.Fatalf("expected 1 extraction, got %d", f.extractor.calls)
	}
}

func TestSubmitDifferentBytesRequiresReset(t *testing.T) {
	f := newFixture(acceptVerdict())
	f.submit(t)

	err := f.pipeline.Submit(context.Background(), []byte("%PDF-1.4 other"))

	var validationErr ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestSubmitEmailExtractionFailureIsNonFatal(t *testing.T) {
	f := newFixture(acceptVerdict())
	f.evaluator.email = ""
	f.evaluator.emailErr = errors.New("model unavailable")

	f.pipeline.SetRole(backendRole)
	if err := f.pipeline.Submit(context.Background(), []byte("%PDF-1.4 fake")); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if f.pipeline.Email() != "" {
		t.Fatalf("unexpected email: %q", f.pipeline.Email())
	}
}

func TestEvaluateValidation(t *testing.T) {
	f := newFixture(acceptVerdict())
	f.evaluator.email = ""
	f.pipeline.SetRole(backendRole)
	if err := f.pipeline.Submit(context.Background(), []byte("%PDF-1.4 fake")); err != nil {
		t.Fatalf("submit: %v", err)
	}

	// No email was found and none was supplied.
	_, err := f.pipeline.Evaluate(context.Background())

	var validationErr ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if f.evaluator.calls != 0 {
		t.Fatal("evaluator must not run without an email")
	}
}

func TestEvaluateIsMemoized(t *testing.T) {
	f := newFixture(acceptVerdict())
	f.submit(t)

	if _, err := f.pipeline.Evaluate(context.Background()); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if _, err := f.pipeline.Evaluate(context.Background()); err != nil {
		t.Fatalf("re-evaluate: %v", err)
	}

	if f.evaluator.calls != 1 {
		t.Fatalf("expected 1 evaluation, got %d", f.evaluator.calls)
	}
}

func TestRoleChangeInvalidatesVerdict(t *testing.T) {
	f := newFixture(acceptVerdict())
	f.submit(t)

	if _, err := f.pipeline.Evaluate(context.Background()); err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	f.pipeline.SetRole(roles.Role{ID: "data-analyst", Title: "Data Analyst"})

	if f.pipeline.Verdict() != nil {
		t.Fatal("expected verdict cleared after role change")
	}

	if _, err := f.pipeline.Evaluate(context.Background()); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if f.evaluator.calls != 2 {
		t.Fatalf("expected re-evaluation after role change, got %d calls", f.evaluator.calls)
	}
}

func TestSetRoleSameIDKeepsVerdict(t *testing.T) {
	f := newFixture(acceptVerdict())
	f.submit(t)

	if _, err := f.pipeline.Evaluate(context.Background()); err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	f.pipeline.SetRole(backendRole)

	if f.pipeline.Verdict() == nil {
		t.Fatal("re-selecting the same role must keep the verdict")
	}
}

func TestSetEmailLockedAfterEvaluation(t *testing.T) {
	f := newFixture(acceptVerdict())
	f.submit(t)

	if _, err := f.pipeline.Evaluate(context.Background()); err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	if err := f.pipeline.SetEmail("other@example.com"); err == nil {
		t.Fatal("expected error changing email after evaluation")
	}
}

func TestRejectSendsFeedbackOnce(t *testing.T) {
	f := newFixture(rejectVerdict())
	f.submit(t)

	verdict, err := f.pipeline.Evaluate(context.Background())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if verdict.Accepted() {
		t.Fatal("expected reject verdict")
	}

	if f.notifier.rejections != 1 {
		t.Fatalf("expected 1 rejection email, got %d", f.notifier.rejections)
	}
	if f.notifier.lastFeedback != "Missing core skills." {
		t.Fatalf("unexpected feedback: %q", f.notifier.lastFeedback)
	}
	if len(f.notifier.lastSuggestions) != 1 {
		t.Fatalf("unexpected suggestions: %v", f.notifier.lastSuggestions)
	}
	if got := f.pipeline.Stage(); got != StageOutcomeSent {
		t.Fatalf("unexpected stage: %s", got)
	}

	// Evaluating again must neither rescore nor resend.
	if _, err := f.pipeline.Evaluate(context.Background()); err != nil {
		t.Fatalf("re-evaluate: %v", err)
	}
	if f.notifier.rejections != 1 {
		t.Fatalf("rejection email resent: %d", f.notifier.rejections)
	}
	if f.scheduler.calls != 0 || f.notifier.selections != 0 {
		t.Fatal("rejected candidates must not reach scheduling")
	}
}

func TestRejectionSendFailureIsRetried(t *testing.T) {
	f := newFixture(rejectVerdict())
	f.submit(t)

	f.notifier.rejectionErr = errors.New("relay unreachable")

	verdict, err := f.pipeline.Evaluate(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if verdict == nil {
		t.Fatal("verdict must be returned alongside the dispatch error")
	}
	if got := f.pipeline.Stage(); got != StageEvaluated {
		t.Fatalf("unexpected stage: %s", got)
	}

	f.notifier.rejectionErr = nil
	if _, err := f.pipeline.Evaluate(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}

	if f.evaluator.calls != 1 {
		t.Fatalf("retry must reuse the memoized verdict, got %d evaluations", f.evaluator.calls)
	}
	if f.notifier.rejections != 1 {
		t.Fatalf("expected 1 rejection email, got %d", f.notifier.rejections)
	}
}

func TestProceedSchedulesAndConfirms(t *testing.T) {
	f := newFixture(acceptVerdict())
	f.submit(t)

	if _, err := f.pipeline.Evaluate(context.Background()); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if err := f.pipeline.Proceed(context.Background()); err != nil {
		t.Fatalf("proceed: %v", err)
	}

	if f.notifier.selections != 1 || f.scheduler.calls != 1 || f.notifier.confirmations != 1 {
		t.Fatalf("unexpected counts: selections=%d scheduled=%d confirmations=%d",
			f.notifier.selections, f.scheduler.calls, f.notifier.confirmations)
	}
	if f.notifier.lastDetails.JoinURL != "https://zoom.example/j/42" {
		t.Fatalf("confirmation carries wrong join url: %q", f.notifier.lastDetails.JoinURL)
	}
	if f.notifier.lastDetails.Date != "2025-01-13" || f.notifier.lastDetails.Time != "11:00" {
		t.Fatalf("confirmation carries wrong slot: %+v", f.notifier.lastDetails)
	}
	if got := f.pipeline.Stage(); got != StageOutcomeSent {
		t.Fatalf("unexpected stage: %s", got)
	}
}

func TestProceedRequiresAcceptedVerdict(t *testing.T) {
	f := newFixture(rejectVerdict())
	f.submit(t)

	if _, err := f.pipeline.Evaluate(context.Background()); err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	err := f.pipeline.Proceed(context.Background())

	var validationErr ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestProceedSchedulingFailureWithholdsConfirmation(t *testing.T) {
	f := newFixture(acceptVerdict())
	f.submit(t)

	if _, err := f.pipeline.Evaluate(context.Background()); err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	f.scheduler.err = errors.New("zoom api down")

	if err := f.pipeline.Proceed(context.Background()); err == nil {
		t.Fatal("expected error")
	}

	if f.notifier.confirmations != 0 {
		t.Fatal("confirmation must not be sent without a meeting")
	}
	if f.pipeline.Meeting() != nil {
		t.Fatal("no meeting should be recorded")
	}
	if got := f.pipeline.Stage(); got != StageEvaluated {
		t.Fatalf("unexpected stage: %s", got)
	}
}

func TestProceedRetryDoesNotResendSelection(t *testing.T) {
	f := newFixture(acceptVerdict())
	f.submit(t)

	if _, err := f.pipeline.Evaluate(context.Background()); err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	f.scheduler.err = errors.New("zoom api down")
	if err := f.pipeline.Proceed(context.Background()); err == nil {
		t.Fatal("expected error")
	}

	f.scheduler.err = nil
	if err := f.pipeline.Proceed(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}

	if f.notifier.selections != 1 {
		t.Fatalf("selection email resent on retry: %d", f.notifier.selections)
	}
	if f.notifier.confirmations != 1 {
		t.Fatalf("expected 1 confirmation, got %d", f.notifier.confirmations)
	}
}

func TestProceedIsIdempotentAfterCompletion(t *testing.T) {
	f := newFixture(acceptVerdict())
	f.submit(t)

	if _, err := f.pipeline.Evaluate(context.Background()); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if err := f.pipeline.Proceed(context.Background()); err != nil {
		t.Fatalf("proceed: %v", err)
	}
	if err := f.pipeline.Proceed(context.Background()); err != nil {
		t.Fatalf("second proceed: %v", err)
	}

	if f.notifier.selections != 1 || f.scheduler.calls != 1 || f.notifier.confirmations != 1 {
		t.Fatalf("outcome repeated: selections=%d scheduled=%d confirmations=%d",
			f.notifier.selections, f.scheduler.calls, f.notifier.confirmations)
	}
}

func TestReset(t *testing.T) {
	f := newFixture(acceptVerdict())
	f.submit(t)

	if _, err := f.pipeline.Evaluate(context.Background()); err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	f.pipeline.Reset()

	if got := f.pipeline.Stage(); got != StageEmpty {
		t.Fatalf("unexpected stage after reset: %s", got)
	}
	if f.pipeline.Verdict() != nil || f.pipeline.Email() != "" {
		t.Fatal("application state survived reset")
	}
	if _, ok := f.pipeline.Role(); ok {
		t.Fatal("role survived reset")
	}
}
