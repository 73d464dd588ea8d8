package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cosmicconnect/backend/internal/models"
	"github.com/cosmicconnect/backend/internal/notify"
	"github.com/cosmicconnect/backend/pkg/utils"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidAdminLogin  = errors.New("invalid admin credentials")
	ErrEntryDenied        = errors.New("invalid entry secret")
	ErrRoleNotAllowed     = errors.New("role cannot be self-assigned")
	ErrInvalidLink        = errors.New("link is invalid or has expired")
	ErrAlreadyVerified    = errors.New("email already verified")
	ErrPasswordTooShort   = errors.New("password must be at least 6 characters")
)

// AdminRecoveryMessage is returned for every admin recovery request, whether or not the address is an admin.
const AdminRecoveryMessage = "If an admin account with that email exists, a recovery link has been sent."

const minPasswordLen = 6

// recoveryTimeout bounds a detached admin recovery attempt.
const recoveryTimeout = 30 * time.Second

// CredentialStore persists identity records.
type CredentialStore interface {
	CreateAccount(ctx context.Context, email, passwordHash string, role models.Role, verified bool) (*models.User, error)
	GetCredentialByEmail(ctx context.Context, email string) (*models.Credential, error)
	GetCredential(ctx context.Context, id uuid.UUID) (*models.Credential, error)
	MarkEmailVerified(ctx context.Context, id uuid.UUID) error
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
}

// UserLookup resolves a uid to its role-bearing record.
type UserLookup interface {
	GetByID(ctx context.Context, uid uuid.UUID) (*models.User, error)
}

// Tokens issues and consumes single-use links.
type Tokens interface {
	Issue(ctx context.Context, p Purpose, uid uuid.UUID) (string, error)
	Consume(ctx context.Context, p Purpose, token string) (uuid.UUID, error)
}

// Mailer sends account emails.
type Mailer interface {
	SendVerificationEmail(ctx context.Context, to, link string) (notify.Outcome, error)
	SendPasswordResetEmail(ctx context.Context, to, link string) (notify.Outcome, error)
}

// Result is returned by the sign-in operations.
type Result struct {
	Token         string       `json:"token"`
	User          *models.User `json:"user"`
	EmailVerified bool         `json:"email_verified"`
}

// Service implements the identity operations.
type Service struct {
	creds       CredentialStore
	users       UserLookup
	tokens      Tokens
	mail        Mailer
	jwt         *JWTService
	baseURL     string
	entrySecret string
	logger      *zap.Logger
	background  sync.WaitGroup
}

// Options configures a Service.
type Options struct {
	PublicBaseURL    string
	AdminEntrySecret string
}

// NewService creates an auth service.
func NewService(creds CredentialStore, users UserLookup, tokens Tokens, mail Mailer, jwt *JWTService, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		creds:       creds,
		users:       users,
		tokens:      tokens,
		mail:        mail,
		jwt:         jwt,
		baseURL:     opts.PublicBaseURL,
		entrySecret: opts.AdminEntrySecret,
		logger:      logger,
	}
}

// Register creates a volunteer or coordinator account and sends a verification link.
func (s *Service) Register(ctx context.Context, email, password string, role models.Role) (*Result, error) {
	if role != models.RoleVolunteer && role != models.RoleCoordinator {
		return nil, ErrRoleNotAllowed
	}
	user, err := s.Provision(ctx, email, password, role, false)
	if err != nil {
		return nil, err
	}
	if err := s.sendVerification(ctx, user.UID, user.Email); err != nil {
		s.logger.Warn("verification email not sent", zap.String("uid", user.UID.String()), zap.Error(err))
	}
	return s.issue(user, false)
}

// Provision creates an account with any role. Used by admins and the operator CLI.
func (s *Service) Provision(ctx context.Context, email, password string, role models.Role, verified bool) (*models.User, error) {
	if !role.Valid() {
		return nil, ErrRoleNotAllowed
	}
	if len(password) < minPasswordLen {
		return nil, ErrPasswordTooShort
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return s.creds.CreateAccount(ctx, NormalizeEmail(email), hash, role, verified)
}

// Login checks credentials. An identity without a users record cannot sign in.
func (s *Service) Login(ctx context.Context, email, password string) (*Result, error) {
	cred, user, err := s.authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return s.issue(user, cred.EmailVerified)
}

// AdminLogin is Login restricted to admins, optionally behind an entry secret.
func (s *Service) AdminLogin(ctx context.Context, email, password, entrySecret string) (*Result, error) {
	if s.entrySecret != "" && subtle.ConstantTimeCompare([]byte(entrySecret), []byte(s.entrySecret)) != 1 {
		return nil, ErrEntryDenied
	}
	cred, user, err := s.authenticate(ctx, email, password)
	if err != nil {
		return nil, ErrInvalidAdminLogin
	}
	if user.Role != models.RoleAdmin {
		s.logger.Warn("non-admin attempted admin login", zap.String("uid", user.UID.String()))
		return nil, ErrInvalidAdminLogin
	}
	return s.issue(user, cred.EmailVerified)
}

// VerifyEmail consumes a verification link.
func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	uid, err := s.tokens.Consume(ctx, PurposeEmailVerification, token)
	if err != nil {
		return err
	}
	if err := s.creds.MarkEmailVerified(ctx, uid); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return ErrInvalidLink
		}
		return err
	}
	return nil
}

// ResendVerification issues a new verification link for uid.
func (s *Service) ResendVerification(ctx context.Context, uid uuid.UUID) error {
	cred, err := s.creds.GetCredential(ctx, uid)
	if err != nil {
		return err
	}
	if cred.EmailVerified {
		return ErrAlreadyVerified
	}
	return s.sendVerification(ctx, cred.ID, cred.Email)
}

// RequestAdminPasswordReset emails a reset link if email belongs to an admin.
// The lookup and send run detached from the request so the caller returns in
// the same time for every address. Callers always answer with AdminRecoveryMessage.
func (s *Service) RequestAdminPasswordReset(_ context.Context, email string) {
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		ctx, cancel := context.WithTimeout(context.Background(), recoveryTimeout)
		defer cancel()
		s.sendAdminReset(ctx, email)
	}()
}

// Wait blocks until detached recovery emails have finished.
func (s *Service) Wait() {
	s.background.Wait()
}

func (s *Service) sendAdminReset(ctx context.Context, email string) {
	cred, err := s.creds.GetCredentialByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			s.logger.Error("admin recovery lookup failed", zap.Error(err))
		}
		return
	}
	user, err := s.users.GetByID(ctx, cred.ID)
	if err != nil || user.Role != models.RoleAdmin {
		return
	}
	token, err := s.tokens.Issue(ctx, PurposePasswordReset, cred.ID)
	if err != nil {
		s.logger.Error("issue reset token failed", zap.Error(err))
		return
	}
	if _, err := s.mail.SendPasswordResetEmail(ctx, cred.Email, s.baseURL+"/admin/reset-password?token="+token); err != nil {
		s.logger.Error("send reset email failed", zap.Error(err))
	}
}

// ResetPassword consumes a reset link and stores the new password.
func (s *Service) ResetPassword(ctx context.Context, token, password string) error {
	if len(password) < minPasswordLen {
		return ErrPasswordTooShort
	}
	uid, err := s.tokens.Consume(ctx, PurposePasswordReset, token)
	if err != nil {
		return err
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.creds.UpdatePassword(ctx, uid, hash); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return ErrInvalidLink
		}
		return err
	}
	return nil
}

func (s *Service) authenticate(ctx context.Context, email, password string) (*models.Credential, *models.User, error) {
	cred, err := s.creds.GetCredentialByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}
	if !utils.CheckPassword(password, cred.PasswordHash) {
		return nil, nil, ErrInvalidCredentials
	}
	user, err := s.users.GetByID(ctx, cred.ID)
	if err != nil {
		// Fail closed: an identity without a profile is not signed in.
		return nil, nil, ErrInvalidCredentials
	}
	return cred, user, nil
}

func (s *Service) sendVerification(ctx context.Context, uid uuid.UUID, email string) error {
	token, err := s.tokens.Issue(ctx, PurposeEmailVerification, uid)
	if err != nil {
		return err
	}
	_, err = s.mail.SendVerificationEmail(ctx, email, s.baseURL+"/verify-email?token="+token)
	return err
}

func (s *Service) issue(user *models.User, verified bool) (*Result, error) {
	token, err := s.jwt.Generate(user.UID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	return &Result{Token: token, User: user, EmailVerified: verified}, nil
}
