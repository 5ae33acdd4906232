package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/lunareading/backend/internal/models"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	minGradeLevel = 1
	maxGradeLevel = 12
	// initialReadingLevelFactor seeds the reading level of a new user below the grade level
	initialReadingLevelFactor = 0.8
)

// UserSharedRepository is the interface that wraps the uniqueness checks of the User table
type UserSharedRepository interface {
	// Method ExistsByEmail checks if a user with such email exists.
	//
	// "email" parameter is used to check if a user with such email exists.
	//
	// If some error occurs during check, the error will be returned together with "false" value.
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	// Method ExistsByUsername checks if a user with such username exists.
	//
	// "username" parameter is used to check if a user with such username exists.
	//
	// If some error occurs during check, the error will be returned together with "false" value.
	ExistsByUsername(ctx context.Context, username string) (bool, error)
}

// UserRepository is the interface that wraps methods for User table data access
type UserRepository interface {
	UserSharedRepository
	// Method Create inserts a new user into the database.
	//
	// "user" parameter is used to create a new user. Its ID is set on success.
	//
	// If the username or email is taken, an error wrapping models.ErrAlreadyExists is returned.
	Create(ctx context.Context, user *models.User) error
	// Method GetByEmailOrUsername retrieves a user by email or username.
	//
	// "login" parameter is used to retrieve a user by email or username.
	//
	// If user with such email or username does not exist, an error wrapping models.ErrNotFound is returned.
	GetByEmailOrUsername(ctx context.Context, login string) (*models.User, error)
}

// AccessTokenGenerator issues access tokens
type AccessTokenGenerator interface {
	GenerateAccessToken(userID int) (string, error)
	AccessTokenExpiry() time.Duration
}

// authService implements AuthService
type authService struct {
	userRepo       UserRepository
	tokenGenerator AccessTokenGenerator
	logger         *zap.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(userRepo UserRepository, tokenGenerator AccessTokenGenerator, logger *zap.Logger) *authService {
	return &authService{
		userRepo:       userRepo,
		tokenGenerator: tokenGenerator,
		logger:         logger,
	}
}

// emailRegex validates email format
var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// usernameRegex allows letters, digits, dots, dashes and underscores
var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9._\-]{3,80}$`)

// passwordRegex validates password: at least 8 chars with at least one letter and one number
var passwordRegex = []*regexp.Regexp{
	regexp.MustCompile(`.{8,}`),
	regexp.MustCompile(`[a-zA-Z]`),
	regexp.MustCompile(`[0-9]`),
}

// Register creates a new user account and signs the user in
func (s *authService) Register(ctx context.Context, req *models.RegisterRequest) (*models.AuthResponse, error) {
	normalizedEmail, normalizedUsername, err := checkRegisterCredentials(ctx, s.userRepo, req.Email, req.Username, req.Password)
	if err != nil {
		return nil, err
	}
	if err := validateGradeLevel(req.GradeLevel); err != nil {
		return nil, err
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     normalizedUsername,
		Email:        normalizedEmail,
		PasswordHash: string(passwordHash),
		GradeLevel:   req.GradeLevel,
		ReadingLevel: initialReadingLevel(req.GradeLevel),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user registered", zap.Int("user_id", user.ID))
	return s.authResponse(user)
}

// Login authenticates a user by email or username
func (s *authService) Login(ctx context.Context, req *models.LoginRequest) (*models.AuthResponse, error) {
	login := strings.TrimSpace(req.Login)
	if login == "" {
		return nil, fmt.Errorf("%w: login cannot be empty", models.ErrValidation)
	}
	if req.Password == "" {
		return nil, fmt.Errorf("%w: password cannot be empty", models.ErrValidation)
	}

	user, err := s.userRepo.GetByEmailOrUsername(ctx, login)
	if errors.Is(err, models.ErrNotFound) {
		return nil, models.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, models.ErrInvalidCredentials
	}

	return s.authResponse(user)
}

func (s *authService) authResponse(user *models.User) (*models.AuthResponse, error) {
	token, err := s.tokenGenerator.GenerateAccessToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return &models.AuthResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.tokenGenerator.AccessTokenExpiry().Seconds()),
		User:        user,
	}, nil
}

// initialReadingLevel estimates the reading level of a user with no answers yet
func initialReadingLevel(gradeLevel int) float64 {
	return math.Round(float64(gradeLevel)*initialReadingLevelFactor*100) / 100
}

func validateGradeLevel(gradeLevel int) error {
	if gradeLevel < minGradeLevel || gradeLevel > maxGradeLevel {
		return fmt.Errorf("%w: grade level must be between %d and %d", models.ErrValidation, minGradeLevel, maxGradeLevel)
	}
	return nil
}

// Method that combines all checks for register credentials
//
// The checks do not depend on each other, so they run in parallel.
// The first failure in order password, email, username is returned.
func checkRegisterCredentials(ctx context.Context, userRepo UserSharedRepository, email, username, password string) (string, string, error) {
	normalizedEmail := strings.TrimSpace(strings.ToLower(email))
	normalizedUsername := strings.TrimSpace(username)

	passwordErr := make(chan error, 1)
	emailErr := make(chan error, 1)
	usernameErr := make(chan error, 1)

	go func() {
		for _, regex := range passwordRegex {
			if !regex.MatchString(password) {
				passwordErr <- fmt.Errorf("%w: password must be at least 8 characters long and contain a letter and a number", models.ErrValidation)
				return
			}
		}
		passwordErr <- nil
	}()

	go func() {
		if !emailRegex.MatchString(normalizedEmail) || len(normalizedEmail) > 120 {
			emailErr <- fmt.Errorf("%w: invalid email format", models.ErrValidation)
			return
		}
		exists, err := userRepo.ExistsByEmail(ctx, normalizedEmail)
		if err != nil {
			emailErr <- fmt.Errorf("failed to check email: %w", err)
			return
		}
		if exists {
			emailErr <- fmt.Errorf("email %w", models.ErrAlreadyExists)
			return
		}
		emailErr <- nil
	}()

	go func() {
		if !usernameRegex.MatchString(normalizedUsername) {
			usernameErr <- fmt.Errorf("%w: username must be 3 to 80 letters, digits, dots, dashes or underscores", models.ErrValidation)
			return
		}
		exists, err := userRepo.ExistsByUsername(ctx, normalizedUsername)
		if err != nil {
			usernameErr <- fmt.Errorf("failed to check username: %w", err)
			return
		}
		if exists {
			usernameErr <- fmt.Errorf("username %w", models.ErrAlreadyExists)
			return
		}
		usernameErr <- nil
	}()

	for _, ch := range []chan error{passwordErr, emailErr, usernameErr} {
		if err := <-ch; err != nil {
			return "", "", err
		}
	}

	return normalizedEmail, normalizedUsername, nil
}
