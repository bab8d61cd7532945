package auth

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"bastaku-campaign-api/database"
	"bastaku-campaign-api/logger"
	"bastaku-campaign-api/models"
)

const (
	DefaultTokenDuration = 24 * time.Hour
	tokenTypeAccess      = "access"
	minPasswordLength    = 8
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrTokenExpired       = errors.New("token expired")
	ErrInvalidToken       = errors.New("invalid token")
)

// RegistrationError reports a registration field that failed validation.
type RegistrationError struct {
	Field   string
	Message string
}

func (e *RegistrationError) Error() string {
	return e.Field + ": " + e.Message
}

// UserStore is the slice of the database the auth service needs.
type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) (int64, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

type JWTService struct {
	secretKey     []byte
	issuer        string
	tokenDuration time.Duration
	users         UserStore
	bcryptCost    int
	now           func() time.Time
}

func NewJWTService(secretKey, issuer string, tokenDuration time.Duration, users UserStore) *JWTService {
	if tokenDuration <= 0 {
		tokenDuration = DefaultTokenDuration
	}
	return &JWTService{
		secretKey:     []byte(secretKey),
		issuer:        issuer,
		tokenDuration: tokenDuration,
		users:         users,
		bcryptCost:    bcrypt.DefaultCost,
		now:           time.Now,
	}
}

type Claims struct {
	UserID       int64  `json:"user_id"`
	Email        string `json:"email"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	IsWholesaler bool   `json:"is_wholesaler"`
	TokenType    string `json:"token_type"`
	jwt.RegisteredClaims
}

func validateRegistration(req *models.RegisterRequest) error {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)

	if req.FirstName == "" {
		return &RegistrationError{Field: "first_name", Message: "is required"}
	}
	if req.LastName == "" {
		return &RegistrationError{Field: "last_name", Message: "is required"}
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return &RegistrationError{Field: "email", Message: "is not a valid address"}
	}
	if len(req.Password) < minPasswordLength {
		return &RegistrationError{Field: "password", Message: "must be at least 8 characters"}
	}
	return nil
}

// Register creates a retail account and signs the user in.
func (j *JWTService) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	if err := validateRegistration(&req); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), j.bcryptCost)
	if err != nil {
		return nil, errors.Wrap(err, "failed to hash password")
	}

	user := &models.User{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		Phone:        strings.TrimSpace(req.Phone),
		PasswordHash: string(hash),
	}
	if _, err := j.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	logger.Get().Infow("user registered", "user_id", user.ID)
	return j.issue(toAuthUser(user))
}

func (j *JWTService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	user, err := j.users.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return j.issue(toAuthUser(user))
}

func (j *JWTService) issue(user models.AuthUser) (*models.AuthResponse, error) {
	token, expiresAt, err := j.GenerateToken(user)
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate access token")
	}
	return &models.AuthResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      user,
	}, nil
}

func (j *JWTService) GenerateToken(user models.AuthUser) (string, time.Time, error) {
	now := j.now()
	expiresAt := now.Add(j.tokenDuration)
	claims := Claims{
		UserID:       user.ID,
		Email:        user.Email,
		FirstName:    user.FirstName,
		LastName:     user.LastName,
		IsWholesaler: user.IsWholesaler,
		TokenType:    tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Email,
			Issuer:    j.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(j.secretKey)
	return signed, expiresAt, err
}

func (j *JWTService) ValidateToken(tokenString string) (*models.AuthUser, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secretKey, nil
	}, jwt.WithIssuer(j.issuer), jwt.WithTimeFunc(j.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.TokenType != tokenTypeAccess {
		return nil, ErrInvalidToken
	}

	return &models.AuthUser{
		ID:           claims.UserID,
		Email:        claims.Email,
		FirstName:    claims.FirstName,
		LastName:     claims.LastName,
		IsWholesaler: claims.IsWholesaler,
	}, nil
}

func toAuthUser(u *models.User) models.AuthUser {
	return models.AuthUser{
		ID:           u.ID,
		Email:        u.Email,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		IsWholesaler: u.IsWholesaler,
	}
}
