package usecase

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/solstyle/auth-api/internal/auth"
	"github.com/solstyle/auth-api/internal/config"
	"github.com/solstyle/auth-api/internal/model"
	"github.com/solstyle/auth-api/internal/repository"
	"github.com/solstyle/auth-api/internal/security"
)

type fakeUserRepo struct {
	users map[string]*model.User // keyed by email
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User)}
}

func (r *fakeUserRepo) CreateUser(_ context.Context, params repository.CreateUserParams) (*model.User, error) {
	if _, ok := r.users[params.Email]; ok {
		return nil, repository.ErrDuplicateEmail
	}

	passwordHash, err := security.HashPassword(params.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user := &model.User{
		ID:           bson.NewObjectID(),
		Name:         params.Name,
		Email:        params.Email,
		PasswordHash: passwordHash,
		Phone:        params.Phone,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.users[params.Email] = user

	return user, nil
}

func (r *fakeUserRepo) GetUser(_ context.Context, id string) (*model.User, error) {
	for _, user := range r.users {
		if user.ID.Hex() == id {
			return user, nil
		}
	}

	return nil, mongo.ErrNoDocuments
}

func (r *fakeUserRepo) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	user, ok := r.users[email]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}

	return user, nil
}

func (r *fakeUserRepo) UpdateUser(
	_ context.Context,
	id string,
	params repository.UpdateUserParams,
) (*model.User, error) {
	for _, user := range r.users {
		if user.ID.Hex() != id {
			continue
		}

		if params.Name != nil {
			user.Name = *params.Name
		}
		if params.Phone != nil {
			user.Phone = *params.Phone
		}
		if params.Verified != nil {
			user.Verified = *params.Verified
		}
		if params.Password != nil {
			passwordHash, err := security.HashPassword(*params.Password)
			if err != nil {
				return nil, err
			}
			user.PasswordHash = passwordHash
		}
		user.UpdatedAt = time.Now()

		return user, nil
	}

	return nil, mongo.ErrNoDocuments
}

type fakeOTPRepo struct {
	otps map[string]*model.OTP // keyed by email
}

func newFakeOTPRepo() *fakeOTPRepo {
	return &fakeOTPRepo{otps: make(map[string]*model.OTP)}
}

func (r *fakeOTPRepo) ReplaceOTP(_ context.Context, email, code string) (*model.OTP, error) {
	otp := &model.OTP{
		ID:        bson.NewObjectID(),
		Email:     email,
		Code:      code,
		CreatedAt: time.Now(),
	}
	r.otps[email] = otp

	return otp, nil
}

func (r *fakeOTPRepo) GetOTP(_ context.Context, email, code string) (*model.OTP, error) {
	otp, ok := r.otps[email]
	if !ok || otp.Code != code {
		return nil, mongo.ErrNoDocuments
	}

	return otp, nil
}

func (r *fakeOTPRepo) ConsumeOTP(_ context.Context, id bson.ObjectID) error {
	for email, otp := range r.otps {
		if otp.ID == id {
			delete(r.otps, email)
		}
	}

	return nil
}

func (r *fakeOTPRepo) PurgeOTPs(_ context.Context, email string) error {
	delete(r.otps, email)
	return nil
}

type fakeSender struct {
	sent []string // codes in delivery order
	fail bool
}

func (s *fakeSender) SendOTP(_ context.Context, _, code string) error {
	if s.fail {
		return assert.AnError
	}

	s.sent = append(s.sent, code)
	return nil
}

type testEnv struct {
	usecase  AuthUsecase
	userRepo *fakeUserRepo
	otpRepo  *fakeOTPRepo
	sender   *fakeSender
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	userRepo := newFakeUserRepo()
	otpRepo := newFakeOTPRepo()
	sender := &fakeSender{}

	jwtAuth := auth.NewJWTAuthenticator("solstyle-auth", "solstyle-auth")
	tokenCfg := &config.TokenConfig{
		Secret:    "test-secret",
		Issuer:    "solstyle-auth",
		ExpiresIn: 720 * time.Hour,
	}

	return &testEnv{
		usecase:  NewAuthUsecase(userRepo, otpRepo, sender, jwtAuth, tokenCfg),
		userRepo: userRepo,
		otpRepo:  otpRepo,
		sender:   sender,
	}
}

func registerAlice(t *testing.T, env *testEnv) *RegisterResult {
	t.Helper()

	result, err := env.usecase.Register(context.Background(), RegisterParams{
		Name:     "Alice",
		Email:    "alice@example.com",
		Password: "correct-horse",
		Phone:    "555-0100",
	})
	require.NoError(t, err)

	return result
}

func TestRegister_CreatesUnverifiedUserAndSendsOTP(t *testing.T) {
	env := newTestEnv(t)

	result := registerAlice(t, env)
	assert.NotEmpty(t, result.UserID)
	assert.Equal(t, "alice@example.com", result.Email)

	user, err := env.userRepo.GetUserByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.False(t, user.Verified)
	assert.NotEqual(t, "correct-horse", user.PasswordHash)

	require.Len(t, env.sender.sent, 1)
	assert.Equal(t, env.otpRepo.otps["alice@example.com"].Code, env.sender.sent[0])
}

func TestRegister_NormalizesEmail(t *testing.T) {
	env := newTestEnv(t)

	result, err := env.usecase.Register(context.Background(), RegisterParams{
		Name:     "Alice",
		Email:    "  Alice@Example.COM ",
		Password: "correct-horse",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", result.Email)

	_, err = env.userRepo.GetUserByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
}

func TestRegister_UnverifiedTwice_ResendsWithoutDuplicate(t *testing.T) {
	env := newTestEnv(t)

	first := registerAlice(t, env)
	second := registerAlice(t, env)

	assert.Equal(t, first.UserID, second.UserID)
	assert.Contains(t, second.Message, "unverified")
	assert.Len(t, env.userRepo.users, 1)
	assert.Len(t, env.sender.sent, 2)
}

func TestRegister_VerifiedUser_Fails(t *testing.T) {
	env := newTestEnv(t)

	registerAlice(t, env)
	verifyAlice(t, env)

	_, err := env.usecase.Register(context.Background(), RegisterParams{
		Name:     "Alice",
		Email:    "alice@example.com",
		Password: "correct-horse",
	})
	assert.ErrorIs(t, err, ErrAlreadyRegistered)
}

func TestRegister_DeliveryFailure_UserStillCreated(t *testing.T) {
	env := newTestEnv(t)
	env.sender.fail = true

	_, err := env.usecase.Register(context.Background(), RegisterParams{
		Name:     "Alice",
		Email:    "alice@example.com",
		Password: "correct-horse",
	})
	require.ErrorIs(t, err, ErrOTPDelivery)

	// The user record and the passcode are committed before the send.
	_, err = env.userRepo.GetUserByEmail(context.Background(), "alice@example.com")
	assert.NoError(t, err)
	assert.Contains(t, env.otpRepo.otps, "alice@example.com")
}

func TestRequestOTP_UnknownUser(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.usecase.RequestOTP(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestRequestOTP_AlreadyVerified(t *testing.T) {
	env := newTestEnv(t)

	registerAlice(t, env)
	verifyAlice(t, env)

	_, err := env.usecase.RequestOTP(context.Background(), "alice@example.com")
	assert.ErrorIs(t, err, ErrAlreadyVerified)
}

func TestRequestOTP_ReplacesPreviousCode(t *testing.T) {
	env := newTestEnv(t)

	registerAlice(t, env)
	firstCode := env.otpRepo.otps["alice@example.com"].Code

	result, err := env.usecase.RequestOTP(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Contains(t, result.Message, "alice@example.com")
	assert.Contains(t, result.Message, "10 minutes")

	// The old code no longer verifies once replaced, unless the draw repeated.
	newCode := env.otpRepo.otps["alice@example.com"].Code
	if firstCode != newCode {
		_, err = env.usecase.VerifyOTPAndActivate(context.Background(), "alice@example.com", firstCode)
		assert.ErrorIs(t, err, ErrInvalidOrExpiredOTP)
	}
}

func verifyAlice(t *testing.T, env *testEnv) *ActivationResult {
	t.Helper()

	code := env.otpRepo.otps["alice@example.com"].Code
	result, err := env.usecase.VerifyOTPAndActivate(context.Background(), "alice@example.com", code)
	require.NoError(t, err)

	return result
}

func TestVerifyOTP_ActivatesAndIssuesToken(t *testing.T) {
	env := newTestEnv(t)

	registerAlice(t, env)
	result := verifyAlice(t, env)

	assert.True(t, result.Verified)
	assert.NotEmpty(t, result.Token)
	assert.Equal(t, "Alice", result.Name)

	user, err := env.userRepo.GetUserByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.True(t, user.Verified)
}

func TestVerifyOTP_ConsumedCodeFailsSecondTime(t *testing.T) {
	env := newTestEnv(t)

	registerAlice(t, env)
	code := env.otpRepo.otps["alice@example.com"].Code
	verifyAlice(t, env)

	_, err := env.usecase.VerifyOTPAndActivate(context.Background(), "alice@example.com", code)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredOTP)
}

func TestVerifyOTP_WrongCode(t *testing.T) {
	env := newTestEnv(t)

	registerAlice(t, env)
	code := env.otpRepo.otps["alice@example.com"].Code

	wrong := "000000"
	if code == wrong {
		wrong = "000001"
	}

	_, err := env.usecase.VerifyOTPAndActivate(context.Background(), "alice@example.com", wrong)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredOTP)
}

func TestVerifyOTP_ExpiredRecordRejectedEvenIfStillStored(t *testing.T) {
	env := newTestEnv(t)

	registerAlice(t, env)
	otp := env.otpRepo.otps["alice@example.com"]
	otp.CreatedAt = time.Now().Add(-11 * time.Minute)

	_, err := env.usecase.VerifyOTPAndActivate(context.Background(), "alice@example.com", otp.Code)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredOTP)
	assert.Empty(t, env.otpRepo.otps)
}

func TestVerifyOTP_MissingUser(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.otpRepo.ReplaceOTP(context.Background(), "ghost@example.com", "123456")
	require.NoError(t, err)

	_, err = env.usecase.VerifyOTPAndActivate(context.Background(), "ghost@example.com", "123456")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestLogin_BeforeVerification(t *testing.T) {
	env := newTestEnv(t)

	registerAlice(t, env)

	_, err := env.usecase.Login(context.Background(), LoginParams{
		Email:    "alice@example.com",
		Password: "correct-horse",
	})
	assert.ErrorIs(t, err, ErrAccountNotVerified)
}

func TestLogin_AfterVerification(t *testing.T) {
	env := newTestEnv(t)

	registerAlice(t, env)
	verifyAlice(t, env)

	result, err := env.usecase.Login(context.Background(), LoginParams{
		Email:    "Alice@Example.com",
		Password: "correct-horse",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	assert.True(t, result.Verified)
}

func TestLogin_WrongPasswordAndUnknownEmailAreIndistinguishable(t *testing.T) {
	env := newTestEnv(t)

	registerAlice(t, env)
	verifyAlice(t, env)

	_, errWrongPassword := env.usecase.Login(context.Background(), LoginParams{
		Email:    "alice@example.com",
		Password: "wrong-password",
	})
	_, errUnknownEmail := env.usecase.Login(context.Background(), LoginParams{
		Email:    "nobody@example.com",
		Password: "correct-horse",
	})

	require.ErrorIs(t, errWrongPassword, ErrInvalidCredentials)
	require.ErrorIs(t, errUnknownEmail, ErrInvalidCredentials)
	assert.Equal(t, errWrongPassword.Error(), errUnknownEmail.Error())
}

func TestLogin_BlockedAccount(t *testing.T) {
	env := newTestEnv(t)

	registerAlice(t, env)
	verifyAlice(t, env)
	env.userRepo.users["alice@example.com"].Blocked = true

	_, err := env.usecase.Login(context.Background(), LoginParams{
		Email:    "alice@example.com",
		Password: "correct-horse",
	})
	assert.ErrorIs(t, err, ErrAccountBlocked)
}

func TestLogin_BlockedCheckedAfterCredentials(t *testing.T) {
	env := newTestEnv(t)

	registerAlice(t, env)
	verifyAlice(t, env)
	env.userRepo.users["alice@example.com"].Blocked = true

	// A wrong password must not reveal the block status.
	_, err := env.usecase.Login(context.Background(), LoginParams{
		Email:    "alice@example.com",
		Password: "wrong-password",
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestGenerateOTPCode(t *testing.T) {
	for i := 0; i < 100; i++ {
		code, err := GenerateOTPCode()
		require.NoError(t, err)
		require.Len(t, code, 6)

		n, err := strconv.Atoi(code)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 100000)
		assert.LessOrEqual(t, n, 999999)
	}
}

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"alice@example.com", "alice@example.com"},
		{"  Alice@Example.COM ", "alice@example.com"},
		{"\tBOB@EXAMPLE.COM\n", "bob@example.com"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeEmail(tt.in))
	}
}
