// Package registration implements account sign-up: request validation, the
// username pre-check and account creation through the user directory.
package registration

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/ayush/registration-service/internal/identity"
	"github.com/ayush/registration-service/internal/models"
)

const (
	MsgRegistered     = "User registered successfully."
	MsgUsernameExists = "Username already exists."
)

// Kind tags a registration Result.
type Kind int

const (
	ValidationFailed Kind = iota
	Conflict
	Success
)

func (k Kind) String() string {
	switch k {
	case ValidationFailed:
		return "validation_failed"
	case Conflict:
		return "conflict"
	case Success:
		return "success"
	default:
		return "unknown"
	}
}

// Result is the outcome of Register. Message is set for Success and
// Conflict; Findings for ValidationFailed.
type Result struct {
	Kind     Kind
	Message  string
	Findings []Finding
}

// Directory is the user directory Register consults.
type Directory interface {
	FindByUsername(ctx context.Context, username string) (*models.Account, error)
	CreateAccount(ctx context.Context, account *models.Account, password string) (identity.Result, error)
}

// Reserver claims a username for the duration of one registration.
type Reserver interface {
	Reserve(ctx context.Context, name string) (release func(), ok bool, err error)
}

// Service registers accounts. It holds no mutable state and is safe for
// concurrent use.
type Service struct {
	dir      Directory
	reserver Reserver
	observer Observer
	tracer   trace.Tracer
}

// Option configures a Service.
type Option func(*Service)

// WithReserver adds a cross-request username claim ahead of the directory
// calls. A claim held by another request is not a conflict by itself.
func WithReserver(r Reserver) Option {
	return func(s *Service) { s.reserver = r }
}

// WithObserver replaces the default log observer.
func WithObserver(o Observer) Option {
	return func(s *Service) { s.observer = o }
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

func NewService(dir Directory, opts ...Option) *Service {
	s := &Service{
		dir:      dir,
		observer: NewLogObserver(slog.Default()),
		tracer:   noop.NewTracerProvider().Tracer("registration"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register validates req, rejects taken usernames and asks the directory to
// create the account. The error return is reserved for directory failures;
// every client-correctable outcome is a Result.
func (s *Service) Register(ctx context.Context, req models.RegistrationRequest) (Result, error) {
	ctx, span := s.tracer.Start(ctx, "registration.Register",
		trace.WithAttributes(attribute.String("registration.username", req.Username)))
	defer span.End()

	res, err := s.register(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}
	span.SetAttributes(attribute.String("registration.result", res.Kind.String()))
	return res, nil
}

func (s *Service) register(ctx context.Context, req models.RegistrationRequest) (Result, error) {
	if findings := Validate(req); len(findings) > 0 {
		return Result{Kind: ValidationFailed, Findings: findings}, nil
	}

	if s.reserver != nil {
		release, ok, err := s.reserver.Reserve(ctx, identity.Normalize(req.Username))
		if err != nil {
			return Result{}, fmt.Errorf("reserve username: %w", err)
		}
		defer release()
		if !ok {
			// Another request holds the claim; the store's conditional
			// insert still decides who gets the name.
			trace.SpanFromContext(ctx).AddEvent("username reservation held elsewhere")
		}
	}

	existing, err := s.dir.FindByUsername(ctx, req.Username)
	if err != nil {
		return Result{}, err
	}
	if existing != nil {
		return Result{Kind: Conflict, Message: MsgUsernameExists}, nil
	}

	account := &models.Account{
		Username: req.Username,
		Email:    req.Email,
	}
	created, err := s.dir.CreateAccount(ctx, account, req.Password)
	if err != nil {
		return Result{}, err
	}

	if created.Succeeded {
		s.observer.Registered(ctx, account)
		return Result{Kind: Success, Message: MsgRegistered}, nil
	}

	findings := make([]Finding, 0, len(created.Errors))
	for _, e := range created.Errors {
		s.observer.CreationFailed(ctx, req.Username, e)
		findings = append(findings, Finding{
			Field:   e.Code.Field(),
			Rule:    string(e.Code),
			Message: e.Description,
		})
	}
	return Result{Kind: ValidationFailed, Findings: findings}, nil
}
