// Package pipeline drives one candidate application from "no résumé" to
// "outcome delivered". It owns the session's Application record and sequences
// the extractor, evaluator, scheduler and notifier; the surrounding
// presentation layer only supplies inputs and displays results.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/elshanq/resume-screener/internal/ai"
	"github.com/elshanq/resume-screener/internal/mail"
	"github.com/elshanq/resume-screener/internal/roles"
	"github.com/elshanq/resume-screener/internal/zoom"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Stage is the coarse lifecycle marker of the Application. It is derived from
// the record's contents, never set directly.
type Stage string

const (
	StageEmpty        Stage = "empty"
	StageResumeLoaded Stage = "resume_loaded"
	StageEvaluated    Stage = "evaluated"
	StageOutcomeSent  Stage = "outcome_sent"
)

// ValidationError reports a call made with missing prerequisites. It is raised
// before any external request.
type ValidationError string

func (e ValidationError) Error() string { return string(e) }

// Extractor converts PDF bytes into plain text.
type Extractor interface {
	Text(pdf []byte) (string, error)
}

// Scheduler books the interview meeting.
type Scheduler interface {
	Schedule(ctx context.Context, roleTitle string) (*zoom.MeetingInfo, error)
}

// Notifier delivers the candidate-facing e-mails.
type Notifier interface {
	SendRejection(ctx context.Context, to, role, feedback string, suggestions []string) error
	SendSelection(ctx context.Context, to, role string) error
	SendConfirmation(ctx context.Context, to, role string, details mail.ConfirmationDetails) error
}

// Application is the single mutable record of one candidate session. It is
// owned exclusively by the pipeline driving the session.
type Application struct {
	resumeBytes []byte
	resumeHash  string
	resumeText  string
	email       string
	role        roles.Role
	hasRole     bool

	verdict *ai.Verdict
	// verdictKey identifies the (resume, role) pair the verdict belongs to;
	// evaluation is memoized on it.
	verdictKey string

	rejectionSent    bool
	selectionSent    bool
	meeting          *zoom.MeetingInfo
	confirmationSent bool
}

// Pipeline sequences one Application through the screening states. It is not
// safe for concurrent use: one session is processed by at most one invocation
// at a time.
type Pipeline struct {
	extractor Extractor
	evaluator ai.Evaluator
	scheduler Scheduler
	notifier  Notifier
	logger    *zap.Logger

	// callTimeout bounds every external call; none of the external services
	// are locally controlled, so a call fails rather than hangs.
	callTimeout time.Duration

	app Application
}

// Deps aggregates the pipeline's collaborators.
type Deps struct {
	Extractor Extractor
	Evaluator ai.Evaluator
	Scheduler Scheduler
	Notifier  Notifier
	Logger    *zap.Logger
}

const defaultCallTimeout = 60 * time.Second

func New(deps Deps, callTimeout time.Duration) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if callTimeout <= 0 {
		callTimeout = defaultCallTimeout
	}

	return &Pipeline{
		extractor:   deps.Extractor,
		evaluator:   deps.Evaluator,
		scheduler:   deps.Scheduler,
		notifier:    deps.Notifier,
		logger:      logger,
		callTimeout: callTimeout,
	}
}

// Stage derives the current lifecycle stage from the Application record.
func (p *Pipeline) Stage() Stage {
	switch {
	case p.app.resumeText == "":
		return StageEmpty
	case p.app.verdict == nil:
		return StageResumeLoaded
	case p.outcomeComplete():
		return StageOutcomeSent
	default:
		return StageEvaluated
	}
}

func (p *Pipeline) outcomeComplete() bool {
	if p.app.verdict == nil {
		return false
	}
	if p.app.verdict.Accepted() {
		return p.app.selectionSent && p.app.meeting != nil && p.app.confirmationSent
	}
	return p.app.rejectionSent
}

// Submit stores the résumé and extracts its text. Submitting the same bytes
// again is a no-op; the extracted text is computed at most once per document.
// On extraction failure the session stays empty and the error is returned to
// be reported.
func (p *Pipeline) Submit(ctx context.Context, pdf []byte) error {
	if len(pdf) == 0 {
		return ValidationError("a resume document is required")
	}

	hash := hashBytes(pdf)

	if p.app.resumeHash != "" {
		if p.app.resumeHash == hash {
			p.logger.Debug("resume already submitted", zap.String("resume_hash", hash))
			return nil
		}
		return ValidationError("a different resume is already loaded; reset the application first")
	}

	text, err := p.extractor.Text(pdf)
	if err != nil {
		return fmt.Errorf("processing resume: %w", err)
	}

	p.app.resumeBytes = pdf
	p.app.resumeHash = hash
	p.app.resumeText = text

	p.logger.Info("resume loaded",
		zap.String("resume_hash", hash),
		zap.Int("text_length", len(text)),
	)

	if email, err := p.extractEmail(ctx, text); err != nil {
		p.logger.Warn("email extraction failed", zap.Error(err))
	} else if email != "" {
		p.app.email = email
		p.logger.Info("candidate email found in resume", zap.String("email", email))
	}

	return nil
}

func (p *Pipeline) extractEmail(ctx context.Context, text string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()

	return p.evaluator.ExtractEmail(ctx, text)
}

// SetEmail overrides the candidate e-mail. The address is mutable only until
// an evaluation exists.
func (p *Pipeline) SetEmail(email string) error {
	if p.app.verdict != nil {
		return ValidationError("candidate email cannot change after evaluation")
	}
	p.app.email = email
	return nil
}

// SetRole fixes the role the candidate is screened for. Changing the role
// after a verdict exists invalidates the verdict and forces re-evaluation.
func (p *Pipeline) SetRole(role roles.Role) {
	if p.app.hasRole && p.app.role.ID == role.ID {
		return
	}

	if p.app.verdict != nil {
		p.logger.Info("role changed, invalidating verdict",
			zap.String("old_role", p.app.role.ID),
			zap.String("new_role", role.ID),
		)
		p.clearVerdict()
	}

	p.app.role = role
	p.app.hasRole = true
}

func (p *Pipeline) clearVerdict() {
	p.app.verdict = nil
	p.app.verdictKey = ""
	p.app.rejectionSent = false
	p.app.selectionSent = false
	p.app.meeting = nil
	p.app.confirmationSent = false
}

// Evaluate scores the loaded résumé against the selected role. The result is
// memoized by (résumé hash, role): repeating the call for the same pair does
// not invoke the evaluator again. A reject verdict dispatches the rejection
// mail immediately; a failed dispatch is returned for reporting and retried on
// the next Evaluate call for the same pair.
func (p *Pipeline) Evaluate(ctx context.Context) (*ai.Verdict, error) {
	if p.app.resumeText == "" {
		return nil, ValidationError("a processed resume is required before evaluation")
	}
	if p.app.email == "" {
		return nil, ValidationError("a candidate email is required before evaluation")
	}
	if !p.app.hasRole {
		return nil, ValidationError("a role is required before evaluation")
	}

	key := p.app.resumeHash + "/" + p.app.role.ID

	if p.app.verdict != nil && p.app.verdictKey == key {
		p.logger.Debug("evaluation cache hit", zap.String("verdict_key", key))
	} else {
		evalCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
		verdict := p.evaluator.Evaluate(evalCtx, p.app.resumeText, p.app.role)
		cancel()

		p.app.verdict = verdict
		p.app.verdictKey = key
		p.app.rejectionSent = false
		p.app.selectionSent = false
		p.app.meeting = nil
		p.app.confirmationSent = false

		p.logger.Info("resume evaluated",
			zap.String("role", p.app.role.ID),
			zap.Int("fit_score", verdict.FitScore),
			zap.String("decision", string(verdict.Decision)),
		)
	}

	if !p.app.verdict.Accepted() && !p.app.rejectionSent {
		if err := p.sendRejection(ctx); err != nil {
			return p.app.verdict, err
		}
	}

	return p.app.verdict, nil
}

func (p *Pipeline) sendRejection(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()

	verdict := p.app.verdict
	if err := p.notifier.SendRejection(ctx, p.app.email, p.app.role.Title, verdict.Narrative, verdict.Suggestions); err != nil {
		return fmt.Errorf("sending rejection email: %w", err)
	}

	p.app.rejectionSent = true
	p.logger.Info("rejection email sent", zap.String("role", p.app.role.ID))
	return nil
}

// Proceed executes the accepted-candidate outcome: the selection mail and the
// meeting scheduling run concurrently, the confirmation mail goes out only
// after a meeting with a join link exists. Each half completes at most once;
// calling Proceed again retries only what is still missing, so a scheduling
// failure can be retried without a duplicate selection mail.
func (p *Pipeline) Proceed(ctx context.Context) error {
	if p.app.verdict == nil || !p.app.verdict.Accepted() {
		return ValidationError("proceed requires an accepted evaluation")
	}
	if p.app.email == "" {
		return ValidationError("a candidate email is required to proceed")
	}

	if p.outcomeComplete() {
		p.logger.Debug("outcome already delivered, nothing to do")
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)

	if !p.app.selectionSent {
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(gctx, p.callTimeout)
			defer cancel()

			if err := p.notifier.SendSelection(callCtx, p.app.email, p.app.role.Title); err != nil {
				return fmt.Errorf("sending selection email: %w", err)
			}
			p.app.selectionSent = true
			p.logger.Info("selection email sent", zap.String("role", p.app.role.ID))
			return nil
		})
	}

	if p.app.meeting == nil {
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(gctx, p.callTimeout)
			defer cancel()

			meeting, err := p.scheduler.Schedule(callCtx, p.app.role.Title)
			if err != nil {
				return fmt.Errorf("scheduling interview: %w", err)
			}
			p.app.meeting = meeting
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	// The confirmation needs the join link; it is only reachable once the
	// scheduler has returned a meeting.
	if !p.app.confirmationSent {
		callCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
		defer cancel()

		err := p.notifier.SendConfirmation(callCtx, p.app.email, p.app.role.Title, mail.ConfirmationDetails{
			Date:    p.app.meeting.Date,
			Time:    p.app.meeting.Time,
			JoinURL: p.app.meeting.JoinURL,
		})
		if err != nil {
			return fmt.Errorf("sending confirmation email: %w", err)
		}
		p.app.confirmationSent = true
		p.logger.Info("confirmation email sent",
			zap.String("role", p.app.role.ID),
			zap.String("interview_date", p.app.meeting.Date),
		)
	}

	return nil
}

// Reset discards the Application and returns the session to the empty stage.
func (p *Pipeline) Reset() {
	p.app = Application{}
	p.logger.Info("application reset")
}

func (p *Pipeline) ResumeText() string { return p.app.resumeText }

func (p *Pipeline) Email() string { return p.app.email }

func (p *Pipeline) Role() (roles.Role, bool) { return p.app.role, p.app.hasRole }

func (p *Pipeline) Verdict() *ai.Verdict { return p.app.verdict }

func (p *Pipeline) Meeting() *zoom.MeetingInfo { return p.app.meeting }

func hashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
