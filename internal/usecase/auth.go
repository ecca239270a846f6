package usecase

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/solstyle/auth-api/internal/auth"
	"github.com/solstyle/auth-api/internal/config"
	"github.com/solstyle/auth-api/internal/mailer"
	"github.com/solstyle/auth-api/internal/repository"
	"github.com/solstyle/auth-api/internal/security"
)

// AuthUsecase defines the interface for the authentication workflow: account
// registration, passcode issuance, verification and login.
type AuthUsecase interface {
	Register(ctx context.Context, params RegisterParams) (*RegisterResult, error)
	RequestOTP(ctx context.Context, email string) (*RequestOTPResult, error)
	VerifyOTPAndActivate(ctx context.Context, email, code string) (*ActivationResult, error)
	Login(ctx context.Context, params LoginParams) (*LoginResult, error)
}

// RegisterParams defines the parameters for user registration.
type RegisterParams struct {
	Name     string
	Email    string
	Password string
	Phone    string
}

// LoginParams defines the parameters for user login.
type LoginParams struct {
	Email    string
	Password string
}

// RegisterResult is returned by a successful registration or an unverified
// re-registration (which resends the passcode instead of creating a duplicate).
type RegisterResult struct {
	Message string
	UserID  string
	Email   string
}

// RequestOTPResult is returned after a passcode has been (re)issued.
type RequestOTPResult struct {
	Message string
	Email   string
}

// ActivationResult is returned after a successful account activation.
type ActivationResult struct {
	Message  string
	UserID   string
	Name     string
	Email    string
	Verified bool
	Token    string
}

// LoginResult is returned after a successful login.
type LoginResult struct {
	UserID   string
	Name     string
	Email    string
	Verified bool
	Token    string
}

var (
	ErrAlreadyRegistered   = errors.New("user already exists and is verified, please login")
	ErrUserNotFound        = errors.New("user not found")
	ErrAlreadyVerified     = errors.New("user is already verified, proceed to login")
	ErrInvalidOrExpiredOTP = errors.New("invalid or expired OTP code")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrAccountBlocked      = errors.New("access denied, your account has been suspended")
	ErrAccountNotVerified  = errors.New("account not verified, please verify your email first")
	ErrOTPDelivery         = errors.New("failed to send verification email")
)

type authUsecase struct {
	userRepo repository.UserRepository
	otpRepo  repository.OTPRepository
	sender   mailer.OTPSender
	jwtAuth  auth.JWTAuthenticator
	tokenCfg *config.TokenConfig
}

// NewAuthUsecase creates a new instance of AuthUsecase.
func NewAuthUsecase(
	userRepo repository.UserRepository,
	otpRepo repository.OTPRepository,
	sender mailer.OTPSender,
	jwtAuth auth.JWTAuthenticator,
	tokenCfg *config.TokenConfig,
) AuthUsecase {
	return &authUsecase{
		userRepo: userRepo,
		otpRepo:  otpRepo,
		sender:   sender,
		jwtAuth:  jwtAuth,
		tokenCfg: tokenCfg,
	}
}

func (u *authUsecase) Register(ctx context.Context, params RegisterParams) (*RegisterResult, error) {
	email := NormalizeEmail(params.Email)

	user, err := u.userRepo.GetUserByEmail(ctx, email)
	if err == nil {
		if user.Verified {
			return nil, ErrAlreadyRegistered
		}

		// Unverified account registered again: resend the passcode instead of
		// creating a duplicate user.
		if err := u.issueOTP(ctx, email); err != nil {
			return nil, err
		}

		return &RegisterResult{
			Message: "Account exists but is unverified. A new OTP has been sent to your email.",
			UserID:  user.ID.Hex(),
			Email:   email,
		}, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	user, err = u.userRepo.CreateUser(ctx, repository.CreateUserParams{
		Name:     strings.TrimSpace(params.Name),
		Email:    email,
		Password: params.Password,
		Phone:    strings.TrimSpace(params.Phone),
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrAlreadyRegistered
		}

		return nil, err
	}

	// The user record is committed at this point. A delivery failure is
	// reported but does not roll it back.
	if err := u.issueOTP(ctx, email); err != nil {
		return nil, err
	}

	return &RegisterResult{
		Message: "Registration successful. OTP sent to your email for verification.",
		UserID:  user.ID.Hex(),
		Email:   user.Email,
	}, nil
}

func (u *authUsecase) RequestOTP(ctx context.Context, email string) (*RequestOTPResult, error) {
	email = NormalizeEmail(email)

	user, err := u.userRepo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}

		return nil, err
	}

	if user.Verified {
		return nil, ErrAlreadyVerified
	}

	if err := u.issueOTP(ctx, email); err != nil {
		return nil, err
	}

	return &RequestOTPResult{
		Message: fmt.Sprintf("A new 6-digit OTP has been sent to %s. It is valid for 10 minutes.", email),
		Email:   email,
	}, nil
}

func (u *authUsecase) VerifyOTPAndActivate(ctx context.Context, email, code string) (*ActivationResult, error) {
	email = NormalizeEmail(email)

	// A missing record covers wrong code, never issued and expired alike; the
	// caller must not learn which.
	otp, err := u.otpRepo.GetOTP(ctx, email, code)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrInvalidOrExpiredOTP
		}

		return nil, err
	}

	// The TTL sweep is periodic, so a record past its lifetime can still be
	// found briefly. Treat it as expired regardless.
	if time.Since(otp.CreatedAt) > repository.OTPTTL {
		_ = u.otpRepo.ConsumeOTP(ctx, otp.ID)
		return nil, ErrInvalidOrExpiredOTP
	}

	user, err := u.userRepo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}

		return nil, err
	}

	verified := true
	user, err = u.userRepo.UpdateUser(ctx, user.ID.Hex(), repository.UpdateUserParams{
		Verified: &verified,
	})
	if err != nil {
		return nil, err
	}

	if err := u.otpRepo.ConsumeOTP(ctx, otp.ID); err != nil {
		return nil, err
	}

	token, err := u.generateToken(user.ID.Hex())
	if err != nil {
		return nil, err
	}

	return &ActivationResult{
		Message:  "Email successfully verified. Account activated.",
		UserID:   user.ID.Hex(),
		Name:     user.Name,
		Email:    user.Email,
		Verified: user.Verified,
		Token:    token,
	}, nil
}

func (u *authUsecase) Login(ctx context.Context, params LoginParams) (*LoginResult, error) {
	email := NormalizeEmail(params.Email)

	user, err := u.userRepo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			// Identical to the wrong-password error so login cannot be used as
			// a user-existence oracle.
			return nil, ErrInvalidCredentials
		}

		return nil, err
	}

	if ok, err := security.VerifyPassword(params.Password, user.PasswordHash); err != nil {
		return nil, err
	} else if !ok {
		return nil, ErrInvalidCredentials
	}

	// Credential validity is checked before block and verification status, so
	// these responses are only reachable with a valid password.
	if user.Blocked {
		return nil, ErrAccountBlocked
	}

	if !user.Verified {
		return nil, ErrAccountNotVerified
	}

	token, err := u.generateToken(user.ID.Hex())
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		UserID:   user.ID.Hex(),
		Name:     user.Name,
		Email:    user.Email,
		Verified: user.Verified,
		Token:    token,
	}, nil
}

// issueOTP generates a fresh passcode, replaces any previous one for the email
// and delivers it through the gateway.
func (u *authUsecase) issueOTP(ctx context.Context, email string) error {
	code, err := GenerateOTPCode()
	if err != nil {
		return err
	}

	if _, err := u.otpRepo.ReplaceOTP(ctx, email, code); err != nil {
		return err
	}

	if err := u.sender.SendOTP(ctx, email, code); err != nil {
		return fmt.Errorf("%w: %v", ErrOTPDelivery, err)
	}

	return nil
}

func (u *authUsecase) generateToken(userID string) (string, error) {
	now := time.Now()
	claims := auth.UserClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(u.tokenCfg.ExpiresIn)),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    u.tokenCfg.Issuer,
			Audience:  jwt.ClaimStrings{u.tokenCfg.Issuer},
		},
	}

	return u.jwtAuth.GenerateToken(claims, u.tokenCfg.Secret)
}

// NormalizeEmail canonicalizes an email before any lookup or uniqueness check.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// GenerateOTPCode returns a 6-digit numeric passcode drawn uniformly from
// [100000, 999999].
func GenerateOTPCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}

	return strconv.FormatInt(n.Int64()+100000, 10), nil
}
