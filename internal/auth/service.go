package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/meridianlaw/caseflow/internal/database/models"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInactiveUser       = errors.New("account is deactivated")
	ErrResetTokenInvalid  = errors.New("reset token is invalid or has expired")
)

// resetTokenTTL bounds how long a password reset link stays usable.
const resetTokenTTL = 10 * time.Minute

// ResetSender hands a freshly minted plaintext reset token to the delivery
// path. The plaintext never touches the database.
type ResetSender interface {
	SendPasswordReset(ctx context.Context, user *models.User, plaintextToken, resetURL string) error
}

type Service struct {
	db      *gorm.DB
	jwt     *JWTService
	reset   ResetSender
	baseURL string
}

func NewService(db *gorm.DB, jwt *JWTService, reset ResetSender, baseURL string) *Service {
	return &Service{db: db, jwt: jwt, reset: reset, baseURL: baseURL}
}

type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
	Role      models.Role
}

type LoginInput struct {
	Email    string
	Password string
}

type AuthResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Register creates a client account. The requested role is ignored on the
// public path; privileged roles go through RegisterStaff.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*AuthResponse, error) {
	return s.createUser(ctx, input, models.RoleClient)
}

// RegisterStaff creates a staff account. Unrecognized roles fall back to
// paralegal rather than failing; route-level middleware restricts callers
// to admins.
func (s *Service) RegisterStaff(ctx context.Context, input RegisterInput) (*AuthResponse, error) {
	role := input.Role
	if !models.StaffRoles[role] {
		role = models.RoleParalegal
	}
	return s.createUser(ctx, input, role)
}

func (s *Service) createUser(ctx context.Context, input RegisterInput, role models.Role) (*AuthResponse, error) {
	var existing models.User
	if err := s.db.WithContext(ctx).Where("email = ?", input.Email).First(&existing).Error; err == nil {
		return nil, ErrUserExists
	}

	hash, err := HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	user := models.User{
		Email:        input.Email,
		PasswordHash: hash,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Role:         role,
		IsActive:     true,
	}

	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		// A concurrent registration can slip past the lookup above and
		// land on the unique email index instead.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrUserExists
		}
		return nil, err
	}

	token, err := s.jwt.GenerateToken(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, err
	}

	return &AuthResponse{Token: token, User: &user}, nil
}

func (s *Service) Login(ctx context.Context, input LoginInput) (*AuthResponse, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", input.Email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !user.IsActive {
		return nil, ErrInactiveUser
	}

	if !CheckPassword(input.Password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	now := time.Now()
	if err := s.db.WithContext(ctx).Model(&user).Update("last_login_at", now).Error; err != nil {
		return nil, err
	}
	user.LastLoginAt = &now

	token, err := s.jwt.GenerateToken(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, err
	}

	return &AuthResponse{Token: token, User: &user}, nil
}

// Verify validates a token end to end: signature and expiry, then the
// subject account must still exist, be active, and not have changed its
// password since the token was issued. The password-change comparison runs
// at second granularity, matching the iat claim.
func (s *Service) Verify(ctx context.Context, tokenString string) (*models.User, *Claims, error) {
	claims, err := s.jwt.ValidateToken(tokenString)
	if err != nil {
		return nil, nil, err
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", claims.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrInvalidToken
		}
		return nil, nil, err
	}

	if !user.IsActive {
		return nil, nil, ErrInactiveUser
	}

	if user.PasswordChangedAt != nil && claims.IssuedAt != nil &&
		user.PasswordChangedAt.Unix() > claims.IssuedAt.Time.Unix() {
		return nil, nil, ErrInvalidToken
	}

	return &user, claims, nil
}

func (s *Service) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

type ProfileUpdate struct {
	FirstName   *string
	LastName    *string
	Email       *string
	Phone       *string
	Address     *models.Address
	Languages   []string
	NotifyEmail *bool
	NotifySMS   *bool
}

// UpdateProfile patches the caller's own profile fields. Password changes go
// through ChangePassword so token invalidation happens.
func (s *Service) UpdateProfile(ctx context.Context, userID uuid.UUID, patch ProfileUpdate) (*models.User, error) {
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if patch.FirstName != nil {
		updates["first_name"] = *patch.FirstName
	}
	if patch.LastName != nil {
		updates["last_name"] = *patch.LastName
	}
	if patch.Email != nil && *patch.Email != user.Email {
		var existing models.User
		if err := s.db.WithContext(ctx).Where("email = ?", *patch.Email).First(&existing).Error; err == nil {
			return nil, ErrUserExists
		}
		updates["email"] = *patch.Email
	}
	if patch.Phone != nil {
		updates["phone"] = *patch.Phone
	}
	if patch.Address != nil {
		user.Address = *patch.Address
		if err := s.db.WithContext(ctx).Model(user).Update("address", user.Address).Error; err != nil {
			return nil, err
		}
	}
	if patch.Languages != nil {
		user.Languages = patch.Languages
		if err := s.db.WithContext(ctx).Model(user).Update("languages", user.Languages).Error; err != nil {
			return nil, err
		}
	}
	if patch.NotifyEmail != nil {
		updates["notify_email"] = *patch.NotifyEmail
	}
	if patch.NotifySMS != nil {
		updates["notify_sms"] = *patch.NotifySMS
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
			return nil, err
		}
	}

	return s.GetUserByID(ctx, userID)
}

// ChangePassword re-hashes and stamps PasswordChangedAt, which logically
// invalidates every previously issued token.
func (s *Service) ChangePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) (*AuthResponse, error) {
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if !CheckPassword(currentPassword, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if err := s.db.WithContext(ctx).Model(user).Updates(map[string]interface{}{
		"password_hash":       hash,
		"password_changed_at": now,
	}).Error; err != nil {
		return nil, err
	}
	user.PasswordHash = hash
	user.PasswordChangedAt = &now

	token, err := s.jwt.GenerateToken(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, err
	}

	return &AuthResponse{Token: token, User: user}, nil
}

// ForgotPassword mints a single-use reset token, stores only its hash with a
// ten-minute expiry, and hands the plaintext to the reset sender. If the
// sender rejects the message the reset fields are cleared again so no
// orphaned token hash stays behind.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	plaintext, digest, err := newResetToken()
	if err != nil {
		return err
	}

	expiry := time.Now().Add(resetTokenTTL)
	if err := s.db.WithContext(ctx).Model(&user).Updates(map[string]interface{}{
		"reset_token_hash":   digest,
		"reset_token_expiry": expiry,
	}).Error; err != nil {
		return err
	}

	resetURL := s.baseURL + "/api/v1/auth/resetpassword/" + plaintext
	if err := s.reset.SendPasswordReset(ctx, &user, plaintext, resetURL); err != nil {
		// Roll the token back; the user can request a fresh one.
		s.db.WithContext(ctx).Model(&user).Updates(map[string]interface{}{
			"reset_token_hash":   "",
			"reset_token_expiry": nil,
		})
		return err
	}

	return nil
}

// ResetPassword consumes a reset token. The supplied plaintext is hashed and
// matched against the stored digest; a match only counts while unexpired.
func (s *Service) ResetPassword(ctx context.Context, plaintextToken, newPassword string) (*AuthResponse, error) {
	digest := HashResetToken(plaintextToken)

	var user models.User
	if err := s.db.WithContext(ctx).
		Where("reset_token_hash = ? AND reset_token_expiry > ?", digest, time.Now()).
		First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrResetTokenInvalid
		}
		return nil, err
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if err := s.db.WithContext(ctx).Model(&user).Updates(map[string]interface{}{
		"password_hash":       hash,
		"password_changed_at": now,
		"reset_token_hash":    "",
		"reset_token_expiry":  nil,
	}).Error; err != nil {
		return nil, err
	}
	user.PasswordHash = hash
	user.PasswordChangedAt = &now

	token, err := s.jwt.GenerateToken(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, err
	}

	return &AuthResponse{Token: token, User: &user}, nil
}

// Deactivate flips the account off; tokens stop verifying immediately.
// Accounts are never hard-deleted.
func (s *Service) Deactivate(ctx context.Context, userID uuid.UUID) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("is_active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}
