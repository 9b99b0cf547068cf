package account

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/intopays/subpay/internal/models"
	"github.com/intopays/subpay/pkg/apperr"
	"github.com/intopays/subpay/pkg/token"
	"github.com/intopays/subpay/pkg/tool"
	"github.com/intopays/subpay/pkg/types"
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Service manages account registration, credentials and login tokens. Login
// tokens are signed with the account's own secret key, so rotating that key
// invalidates every outstanding session for the account.
type Service struct {
	db     *gorm.DB
	signer *token.Signer
	log    *zap.SugaredLogger
}

func NewService(db *gorm.DB, signer *token.Signer, log *zap.SugaredLogger) *Service {
	return &Service{db: db, signer: signer, log: log}
}

type RegisterParams struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (p RegisterParams) validate() error {
	if p.Name == "" {
		return apperr.Validationf("name is required")
	}
	if p.Email == "" || !emailPattern.MatchString(p.Email) {
		return apperr.Validationf("a valid email is required")
	}
	return validatePassword(p.Password)
}

// validatePassword requires at least 8 characters mixing upper case, lower
// case and digits.
func validatePassword(password string) error {
	if len(password) < 8 {
		return apperr.Validationf("password must have at least 8 characters")
	}
	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper || !lower || !digit {
		return apperr.Validationf("password must mix upper case, lower case and digits")
	}
	return nil
}

// Register creates a CUSTOMER account. The email must be unused.
func (s *Service) Register(ctx context.Context, params RegisterParams) (*models.Account, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	var existing models.Account
	err := s.db.WithContext(ctx).Where("email = ?", params.Email).First(&existing).Error
	if err == nil {
		return nil, fmt.Errorf("email %s is already registered: %w", params.Email, apperr.ErrConflict)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(params.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	acct := &models.Account{
		ID:        tool.GenerateUUIDV7(),
		Name:      params.Name,
		Email:     params.Email,
		Password:  string(hashed),
		SecretKey: tool.GenerateCorrelationCode(),
		Role:      types.PermissionRoleCustomer,
	}
	if err := s.db.WithContext(ctx).Create(acct).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("email %s is already registered: %w", params.Email, apperr.ErrConflict)
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	return acct, nil
}

// Login checks the credentials and issues a token signed with the account's
// secret key. Wrong email and wrong password are indistinguishable to the
// caller.
func (s *Service) Login(ctx context.Context, email, password string) (string, *models.Account, error) {
	var acct models.Account
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&acct).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, fmt.Errorf("invalid credentials: %w", apperr.ErrUnauthorized)
		}
		return "", nil, fmt.Errorf("failed to load account: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(acct.Password), []byte(password)) != nil {
		return "", nil, fmt.Errorf("invalid credentials: %w", apperr.ErrUnauthorized)
	}

	signed, err := s.signer.Issue(token.Claims{AccountID: acct.ID, Email: acct.Email}, acct.SecretKey)
	if err != nil {
		return "", nil, err
	}
	return signed, &acct, nil
}

func (s *Service) FindByID(ctx context.Context, id string) (*models.Account, error) {
	var acct models.Account
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&acct).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("account: %w", apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	return &acct, nil
}

type UpdateParams struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

// Update changes the caller's own profile. A password change rotates the
// account secret key, which logs out every session.
func (s *Service) Update(ctx context.Context, acct *models.Account, params UpdateParams) (*models.Account, error) {
	if params.Name != "" {
		acct.Name = params.Name
	}
	if params.Password != "" {
		if err := validatePassword(params.Password); err != nil {
			return nil, err
		}
		hashed, err := bcrypt.GenerateFromPassword([]byte(params.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		acct.Password = string(hashed)
		acct.SecretKey = tool.GenerateCorrelationCode()
	}
	if err := s.db.WithContext(ctx).Save(acct).Error; err != nil {
		return nil, fmt.Errorf("failed to update account: %w", err)
	}
	return acct, nil
}

// Logout rotates the account's secret key, invalidating every outstanding
// login token at once.
func (s *Service) Logout(ctx context.Context, acct *models.Account) error {
	acct.SecretKey = tool.GenerateCorrelationCode()
	if err := s.db.WithContext(ctx).Model(acct).Update("secret_key", acct.SecretKey).Error; err != nil {
		return fmt.Errorf("failed to rotate secret key: %w", err)
	}
	return nil
}

// Delete soft-deletes an account. Accounts delete themselves; privileged
// roles may delete anyone.
func (s *Service) Delete(ctx context.Context, caller *models.Account, id string) error {
	if caller.ID != id && !caller.Role.Privileged() {
		return fmt.Errorf("cannot delete another account: %w", apperr.ErrForbidden)
	}
	if err := s.db.WithContext(ctx).Delete(&models.Account{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	return nil
}
