package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	authmetrics "amlstat/internal/auth/metrics"
	"amlstat/internal/auth/models"
	orgmodels "amlstat/internal/organization/models"
	id "amlstat/pkg/domain"
	dErrors "amlstat/pkg/domain-errors"
	audit "amlstat/pkg/platform/audit"
	"amlstat/pkg/platform/sentinel"
	txcontext "amlstat/pkg/platform/tx"
	"amlstat/pkg/requestcontext"
)

const (
	defaultTokenTTL = 8 * time.Hour
	// invalidCredentials is shared by every login failure that must not reveal
	// whether the account exists.
	invalidCredentials = "invalid email or password"
)

type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, userID id.UserID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context, orgID *id.OrganizationID) ([]*models.User, error)
	Execute(ctx context.Context, userID id.UserID, validate func(*models.User) error, mutate func(*models.User)) (*models.User, error)
}

type OrganizationReader interface {
	FindByID(ctx context.Context, orgID id.OrganizationID) (*orgmodels.Organization, error)
}

// TokenIssuer signs access tokens for authenticated principals.
type TokenIssuer interface {
	GenerateAccessToken(p id.Principal, expiresIn time.Duration) (string, time.Time, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// LoginLimiter throttles repeated failed logins from one client.
type LoginLimiter interface {
	Check(ctx context.Context, address, clientIP string) error
	RecordFailure(ctx context.Context, address, clientIP string) (bool, error)
	Clear(ctx context.Context, address, clientIP string) error
}

// Service manages accounts and issues access tokens.
type Service struct {
	users      UserStore
	orgs       OrganizationReader
	tokens     TokenIssuer
	tokenTTL   time.Duration
	bcryptCost int
	tx         txcontext.Runner
	audit      AuditPublisher
	limiter    LoginLimiter
	logger     *slog.Logger
	metrics    *authmetrics.Metrics

	dummyOnce sync.Once
	dummyHash []byte
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *authmetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.audit = publisher
	}
}

func WithLoginLimiter(limiter LoginLimiter) Option {
	return func(s *Service) {
		s.limiter = limiter
	}
}

func WithTxRunner(runner txcontext.Runner) Option {
	return func(s *Service) {
		s.tx = runner
	}
}

func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.tokenTTL = ttl
	}
}

// WithBcryptCost overrides the password hashing cost. Tests use bcrypt.MinCost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		s.bcryptCost = cost
	}
}

func New(users UserStore, orgs OrganizationReader, tokens TokenIssuer, opts ...Option) *Service {
	s := &Service{
		users:      users,
		orgs:       orgs,
		tokens:     tokens,
		tokenTTL:   defaultTokenTTL,
		bcryptCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = txcontext.NewLockingRunner()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// CreateUser registers an account. Administrators only.
func (s *Service) CreateUser(ctx context.Context, p id.Principal, req *models.CreateUserRequest) (*models.User, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.OrganizationID != nil {
		if _, err := s.orgs.FindByID(ctx, *req.OrganizationID); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil, dErrors.New(dErrors.CodeValidation, "organization_id does not reference an existing organization")
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load organization")
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
	}
	return s.create(ctx, p.UserID, req, string(hash))
}

func (s *Service) create(ctx context.Context, actor id.UserID, req *models.CreateUserRequest, hash string) (*models.User, error) {
	var user *models.User
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		u, err := models.NewUser(id.NewUserID(), req.Email, req.Name, hash, req.Role, req.OrganizationID, requestcontext.Now(txCtx))
		if err != nil {
			return asValidation(err)
		}
		if err := s.users.Create(txCtx, u); err != nil {
			return wrapUserErr(err, "failed to create user")
		}
		if actor.IsNil() {
			actor = u.ID
		}
		if err := s.emit(txCtx, audit.EventUserCreated, actor, u, ""); err != nil {
			return err
		}
		user = u
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementUserCreated(string(user.Role))
	}
	s.logAudit(ctx, audit.EventUserCreated, user, actor)
	return user, nil
}

// ListUsers returns accounts, optionally restricted to one organization.
// Administrators only.
func (s *Service) ListUsers(ctx context.Context, p id.Principal, orgID *id.OrganizationID) ([]*models.User, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	users, err := s.users.List(ctx, orgID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list users")
	}
	return users, nil
}

// DeactivateUser blocks future logins for the account. Tokens already issued
// stay valid until they expire.
func (s *Service) DeactivateUser(ctx context.Context, p id.Principal, userID id.UserID) (*models.User, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	if userID == p.UserID {
		return nil, dErrors.New(dErrors.CodeValidation, "administrators cannot deactivate their own account")
	}

	var user *models.User
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		now := requestcontext.Now(txCtx)
		u, err := s.users.Execute(txCtx, userID,
			func(u *models.User) error {
				if err := u.CanDeactivate(); err != nil {
					return dErrors.New(dErrors.CodeConflict, dErrors.MessageOf(err))
				}
				return nil
			},
			func(u *models.User) { u.ApplyDeactivation(now) },
		)
		if err != nil {
			return wrapUserErr(err, "failed to deactivate user")
		}
		if err := s.emit(txCtx, audit.EventUserDeactivated, p.UserID, u, ""); err != nil {
			return err
		}
		user = u
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementUserDeactivated()
	}
	s.logAudit(ctx, audit.EventUserDeactivated, user, p.UserID)
	return user, nil
}

// Login verifies credentials and issues an access token. Unknown accounts,
// wrong passwords and deactivated accounts fail identically.
func (s *Service) Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResult, error) {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.ObserveLogin(start)
		}
	}()

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if s.limiter != nil {
		if err := s.limiter.Check(ctx, req.Email, requestcontext.ClientIP(ctx)); err != nil {
			if dErrors.HasCode(err, dErrors.CodeTooManyRequests) {
				s.recordFailure(ctx, nil, req.Email, "locked_out", authmetrics.OutcomeLockedOut)
			}
			return nil, err
		}
	}

	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
		}
		// Spend the same bcrypt work as a real comparison.
		_ = bcrypt.CompareHashAndPassword(s.dummy(), []byte(req.Password))
		return nil, s.authFailure(ctx, nil, req.Email, "unknown_email")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, s.authFailure(ctx, user, req.Email, "password_mismatch")
	}
	if !user.IsActive() {
		return nil, s.authFailure(ctx, user, req.Email, "user_inactive")
	}
	if user.OrganizationID != nil {
		org, err := s.orgs.FindByID(ctx, *user.OrganizationID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load organization")
		}
		if !org.IsActive() {
			s.recordFailure(ctx, user, req.Email, "organization_inactive", authmetrics.OutcomeInactiveOrganization)
			return nil, dErrors.New(dErrors.CodeForbidden, "organization is deactivated")
		}
	}

	token, expiresAt, err := s.tokens.GenerateAccessToken(user.Principal(), s.tokenTTL)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue access token")
	}
	if err := s.emit(ctx, audit.EventLoginSucceeded, user.ID, user, ""); err != nil {
		return nil, err
	}

	if s.limiter != nil {
		if err := s.limiter.Clear(ctx, req.Email, requestcontext.ClientIP(ctx)); err != nil {
			s.logger.ErrorContext(ctx, "failed to clear login failures",
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
		}
	}
	if s.metrics != nil {
		s.metrics.IncrementLogin(authmetrics.OutcomeSuccess)
	}
	s.logAudit(ctx, audit.EventLoginSucceeded, user, user.ID)
	return &models.LoginResult{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.tokenTTL.Seconds()),
		ExpiresAt:   expiresAt,
		User:        user,
	}, nil
}

// BootstrapAdmin seeds an administrator account unless one with the address
// already exists. It reports whether an account was created.
func (s *Service) BootstrapAdmin(ctx context.Context, address, password string) (bool, error) {
	req := &models.CreateUserRequest{Email: address, Password: password, Role: id.RoleAdmin}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return false, err
	}
	if _, err := s.users.FindByEmail(ctx, req.Email); err == nil {
		return false, nil
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up bootstrap admin")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
	}
	if _, err := s.create(ctx, id.UserID{}, req, string(hash)); err != nil {
		if dErrors.HasCode(err, dErrors.CodeConflict) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *Service) dummy() []byte {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), s.bcryptCost)
	})
	return s.dummyHash
}

// authFailure records a rejected login and returns the uniform error.
func (s *Service) authFailure(ctx context.Context, user *models.User, address, reason string) error {
	s.recordFailure(ctx, user, address, reason, authmetrics.OutcomeInvalidCredentials)
	if s.limiter != nil {
		if _, err := s.limiter.RecordFailure(ctx, address, requestcontext.ClientIP(ctx)); err != nil {
			s.logger.ErrorContext(ctx, "failed to count login failure",
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
		}
	}
	return dErrors.New(dErrors.CodeUnauthorized, invalidCredentials)
}

// recordFailure logs and audits a failed login. The request fails either
// way, so an audit write error is only logged.
func (s *Service) recordFailure(ctx context.Context, user *models.User, address, reason, outcome string) {
	if s.metrics != nil {
		s.metrics.IncrementLogin(outcome)
	}
	s.logger.WarnContext(ctx, string(audit.EventAuthFailed),
		"reason", reason,
		"email", address,
		"request_id", requestcontext.RequestID(ctx),
		"event", string(audit.EventAuthFailed),
		"log_type", "audit",
	)
	if s.audit == nil {
		return
	}
	event := audit.Event{
		Action:      audit.EventAuthFailed,
		SubjectType: audit.SubjectUser,
		SubjectID:   address,
		Reason:      reason,
	}
	if user != nil {
		event.SubjectID = user.ID.String()
		event.ActorID = user.ID
		if user.OrganizationID != nil {
			event.OrganizationID = *user.OrganizationID
		}
	}
	if err := s.audit.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to record auth failure",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
}

func (s *Service) emit(ctx context.Context, event audit.AuditEvent, actor id.UserID, user *models.User, reason string) error {
	if s.audit == nil {
		return nil
	}
	e := audit.Event{
		Action:      event,
		SubjectType: audit.SubjectUser,
		SubjectID:   user.ID.String(),
		ActorID:     actor,
		Reason:      reason,
	}
	if user.OrganizationID != nil {
		e.OrganizationID = *user.OrganizationID
	}
	if err := s.audit.Emit(ctx, e); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
	}
	return nil
}

func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, user *models.User, actor id.UserID) {
	attrs := []any{
		"user_id", user.ID,
		"role", user.Role,
		"actor_id", actor,
		"request_id", requestcontext.RequestID(ctx),
		"event", string(event),
		"log_type", "audit",
	}
	if user.OrganizationID != nil {
		attrs = append(attrs, "organization_id", *user.OrganizationID)
	}
	s.logger.InfoContext(ctx, string(event), attrs...)
}

func requireAdmin(p id.Principal) error {
	if !p.IsAdmin() {
		return dErrors.New(dErrors.CodeForbidden, "administrator role required")
	}
	return nil
}

// asValidation reports model invariant violations as validation errors.
func asValidation(err error) error {
	if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
		return dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
	}
	return err
}

func wrapUserErr(err error, msg string) error {
	var de *dErrors.Error
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "user not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "email is already registered")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}
