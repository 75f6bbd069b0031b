package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"majlis/internal/config"
	"majlis/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// MockUserRepository is a mock of the UserRepository interface
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) Update(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) CountPosts(ctx context.Context, userID uint) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockUserRepository) CountComments(ctx context.Context, userID uint) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestRegister(t *testing.T) {
	tests := []struct {
		name           string
		body           map[string]string
		mockSetup      func(mockRepo *MockUserRepository)
		expectedStatus int
		expectedError  string
	}{
		{
			name: "Success",
			body: map[string]string{
				"username": "testuser",
				"email":    "test@example.com",
				"password": "Password123!",
			},
			mockSetup: func(mockRepo *MockUserRepository) {
				mockRepo.On("GetByEmail", mock.Anything, "test@example.com").Return(nil, nil)
				mockRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "Duplicate User",
			body: map[string]string{
				"username": "testuser",
				"email":    "exists@example.com",
				"password": "Password123!",
			},
			mockSetup: func(mockRepo *MockUserRepository) {
				mockRepo.On("GetByEmail", mock.Anything, "exists@example.com").Return(&models.User{ID: 1}, nil)
			},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "المستخدم موجود بالفعل",
		},
		{
			name: "Weak Password",
			body: map[string]string{
				"username": "testuser",
				"email":    "test@example.com",
				"password": "short",
			},
			mockSetup:      func(*MockUserRepository) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "Invalid Email",
			body: map[string]string{
				"username": "testuser",
				"email":    "not-an-email",
				"password": "Password123!",
			},
			mockSetup:      func(*MockUserRepository) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "Missing Fields",
			body: map[string]string{
				"username": "testuser",
			},
			mockSetup:      func(*MockUserRepository) {},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			mockRepo := new(MockUserRepository)
			s := &Server{
				config:   &config.Config{JWTSecret: "test_secret"},
				userRepo: mockRepo,
			}
			app.Post("/register", s.Register)

			tt.mockSetup(mockRepo)
			body, _ := json.Marshal(tt.body)
			req := httptest.NewRequest(http.MethodPost, "/register", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")

			resp, err := app.Test(req)
			assert.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			parsed := decodeBody(t, resp)
			if tt.expectedStatus == http.StatusOK {
				assert.NotEmpty(t, parsed["token"])
				require.NotNil(t, parsed["user"])
				// The password hash must never leave the server.
				userObj, ok := parsed["user"].(map[string]interface{})
				require.True(t, ok)
				assert.NotContains(t, userObj, "password")
				assert.NotContains(t, userObj, "Password")
			} else if tt.expectedError != "" {
				assert.Equal(t, tt.expectedError, parsed["error"])
			}
			mockRepo.AssertExpectations(t)
		})
	}
}

func TestLogin(t *testing.T) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("Password123!"), bcrypt.MinCost)
	assert.NoError(t, err)
	storedUser := &models.User{ID: 7, Username: "amira", Email: "amira@example.com", Password: string(hashed)}

	tests := []struct {
		name           string
		body           map[string]string
		mockSetup      func(mockRepo *MockUserRepository)
		expectedStatus int
		expectedError  string
	}{
		{
			name: "Success",
			body: map[string]string{"email": "amira@example.com", "password": "Password123!"},
			mockSetup: func(mockRepo *MockUserRepository) {
				mockRepo.On("GetByEmail", mock.Anything, "amira@example.com").Return(storedUser, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "Unknown Email",
			body: map[string]string{"email": "ghost@example.com", "password": "Password123!"},
			mockSetup: func(mockRepo *MockUserRepository) {
				mockRepo.On("GetByEmail", mock.Anything, "ghost@example.com").Return(nil, nil)
			},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "بيانات الاعتماد غير صالحة",
		},
		{
			name: "Wrong Password",
			body: map[string]string{"email": "amira@example.com", "password": "WrongPass456!"},
			mockSetup: func(mockRepo *MockUserRepository) {
				mockRepo.On("GetByEmail", mock.Anything, "amira@example.com").Return(storedUser, nil)
			},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "بيانات الاعتماد غير صالحة",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			mockRepo := new(MockUserRepository)
			s := &Server{
				config:   &config.Config{JWTSecret: "test_secret"},
				userRepo: mockRepo,
			}
			app.Post("/login", s.Login)

			tt.mockSetup(mockRepo)
			body, _ := json.Marshal(tt.body)
			req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")

			resp, err := app.Test(req)
			assert.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			parsed := decodeBody(t, resp)
			if tt.expectedStatus == http.StatusOK {
				assert.NotEmpty(t, parsed["token"])
			} else {
				assert.Equal(t, tt.expectedError, parsed["error"])
			}
			mockRepo.AssertExpectations(t)
		})
	}
}

func TestMe(t *testing.T) {
	app := fiber.New()
	mockRepo := new(MockUserRepository)
	s := &Server{
		config:   &config.Config{JWTSecret: "test_secret"},
		userRepo: mockRepo,
	}

	app.Get("/me", func(c *fiber.Ctx) error {
		c.Locals("userID", uint(7))
		return c.Next()
	}, s.Me)

	mockRepo.On("GetByID", mock.Anything, uint(7)).
		Return(&models.User{ID: 7, Username: "amira", Email: "amira@example.com"}, nil)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	resp, err := app.Test(req)
	assert.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	parsed := decodeBody(t, resp)
	assert.Equal(t, "amira", parsed["username"])
	mockRepo.AssertExpectations(t)
}

func TestMe_NotFound(t *testing.T) {
	app := fiber.New()
	mockRepo := new(MockUserRepository)
	s := &Server{
		config:   &config.Config{JWTSecret: "test_secret"},
		userRepo: mockRepo,
	}

	app.Get("/me", func(c *fiber.Ctx) error {
		c.Locals("userID", uint(99))
		return c.Next()
	}, s.Me)

	mockRepo.On("GetByID", mock.Anything, uint(99)).
		Return(nil, models.NewNotFoundError("User", uint(99)))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	resp, err := app.Test(req)
	assert.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	mockRepo.AssertExpectations(t)
}
