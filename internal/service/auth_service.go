package service

import (
	"errors"

	"reportgate/config"
	"reportgate/internal/auth"
	"reportgate/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var ErrInvalidCredentials = errors.New("invalid email or password")

// AdminStore is the account lookup the login flow needs.
type AdminStore interface {
	GetByEmail(email string) (*models.Admin, error)
}

type AuthService struct {
	admins AdminStore
	jwtCfg *config.JWTConfig
}

func NewAuthService(admins AdminStore, jwtCfg *config.JWTConfig) *AuthService {
	return &AuthService{admins: admins, jwtCfg: jwtCfg}
}

// Login checks credentials and returns a signed access token. Unknown email
// and wrong password are indistinguishable to the caller.
func (s *AuthService) Login(email, password string) (string, *models.Admin, error) {
	admin, err := s.admins.GetByEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}
	token, err := auth.GenerateAccessToken(s.jwtCfg, admin.ID, admin.Email)
	if err != nil {
		return "", nil, err
	}
	return token, admin, nil
}
