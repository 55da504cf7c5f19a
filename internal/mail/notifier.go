// Package mail sends the candidate-facing transactional e-mails over an
// authenticated SMTP relay. Every send uses a fresh session: connect, upgrade
// with STARTTLS, authenticate, send, close.
package mail

import (
	"context"
	"errors"
	"fmt"
	"net/textproto"
	"strings"

	gomail "github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

// FailureKind classifies notification failures for the caller: validation
// failures happen before any network activity, credential failures mean the
// relay rejected the login, transport failures mean the relay was unreachable
// or refused the message.
type FailureKind string

const (
	KindValidation  FailureKind = "validation"
	KindCredentials FailureKind = "credentials"
	KindTransport   FailureKind = "transport"
)

// NotificationError is a failed or refused e-mail delivery. Sends are never
// retried automatically.
type NotificationError struct {
	Kind FailureKind
	Op   string
	Err  error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("mail %s (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *NotificationError) Unwrap() error { return e.Err }

// Notifier delivers HTML mail through a STARTTLS-capable relay.
type Notifier struct {
	host     string
	port     int
	username string
	password string
	sender   string
	logger   *zap.Logger
}

// NewNotifier fails fast on missing relay credentials; a notifier that cannot
// authenticate is a configuration error, not a runtime condition.
func NewNotifier(host string, port int, username, password string, logger *zap.Logger) (*Notifier, error) {
	host = strings.TrimSpace(host)
	username = strings.TrimSpace(username)

	if host == "" || username == "" || password == "" {
		return nil, errors.New("mail host, username and password are required")
	}

	if port <= 0 {
		port = 587
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Notifier{
		host:     host,
		port:     port,
		username: username,
		password: password,
		sender:   username,
		logger:   logger,
	}, nil
}

// SendRejection mails the evaluation feedback and improvement suggestions.
func (n *Notifier) SendRejection(ctx context.Context, to, role, feedback string, suggestions []string) error {
	const op = "rejection"

	if err := requireArgs(map[string]string{"recipient": to, "role": role, "feedback": feedback}); err != nil {
		return &NotificationError{Kind: KindValidation, Op: op, Err: err}
	}

	body, err := renderRejection(role, feedback, suggestions)
	if err != nil {
		return &NotificationError{Kind: KindValidation, Op: op, Err: err}
	}

	subject := fmt.Sprintf("Your application for the %s position", role)
	return n.send(ctx, op, to, subject, body)
}

// SendSelection mails the congratulation for passing the initial screening.
func (n *Notifier) SendSelection(ctx context.Context, to, role string) error {
	const op = "selection"

	if err := requireArgs(map[string]string{"recipient": to, "role": role}); err != nil {
		return &NotificationError{Kind: KindValidation, Op: op, Err: err}
	}

	body, err := renderSelection(role)
	if err != nil {
		return &NotificationError{Kind: KindValidation, Op: op, Err: err}
	}

	subject := fmt.Sprintf("Congratulations! You have been selected for the %s position", role)
	return n.send(ctx, op, to, subject, body)
}

// ConfirmationDetails carries the scheduled interview data the confirmation
// template requires. All fields are mandatory.
type ConfirmationDetails struct {
	Date    string
	Time    string
	JoinURL string
}

// SendConfirmation mails the interview date, time and meeting link.
func (n *Notifier) SendConfirmation(ctx context.Context, to, role string, details ConfirmationDetails) error {
	const op = "confirmation"

	if err := requireArgs(map[string]string{
		"recipient": to,
		"role":      role,
		"date":      details.Date,
		"time":      details.Time,
		"join url":  details.JoinURL,
	}); err != nil {
		return &NotificationError{Kind: KindValidation, Op: op, Err: err}
	}

	body, err := renderConfirmation(role, details)
	if err != nil {
		return &NotificationError{Kind: KindValidation, Op: op, Err: err}
	}

	subject := fmt.Sprintf("Interview Confirmation - %s position", role)
	return n.send(ctx, op, to, subject, body)
}

func (n *Notifier) send(ctx context.Context, op, to, subject, body string) error {
	msg := gomail.NewMsg()
	if err := msg.From(n.sender); err != nil {
		return &NotificationError{Kind: KindValidation, Op: op, Err: err}
	}
	if err := msg.To(to); err != nil {
		return &NotificationError{Kind: KindValidation, Op: op, Err: err}
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, body)

	// A fresh client per send keeps the relay session scoped to one message.
	client, err := gomail.NewClient(n.host,
		gomail.WithPort(n.port),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(n.username),
		gomail.WithPassword(n.password),
	)
	if err != nil {
		return &NotificationError{Kind: KindTransport, Op: op, Err: err}
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return &NotificationError{Kind: classifyDeliveryError(err), Op: op, Err: err}
	}

	n.logger.Info("email sent",
		zap.String("kind", op),
		zap.String("to", to),
	)

	return nil
}

func requireArgs(args map[string]string) error {
	for name, value := range args {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%s is required", name)
		}
	}
	return nil
}

// classifyDeliveryError separates relay login rejections from generic
// transport problems. Protocol replies surface as a wrapped textproto.Error
// whose code is authoritative; the text markers catch only auth-mechanism
// failures reported without a reply code.
func classifyDeliveryError(err error) FailureKind {
	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		switch protoErr.Code {
		case 535, 534, 530, 454:
			return KindCredentials
		}
		return KindTransport
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"authentication failed", "auth failed", "username and password not accepted"} {
		if strings.Contains(msg, marker) {
			return KindCredentials
		}
	}

	return KindTransport
}
