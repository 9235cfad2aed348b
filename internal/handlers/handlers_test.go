package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/anonto42/yellowcard/backend/internal/handlers/mocks"
	"github.com/anonto42/yellowcard/backend/internal/middleware"
	"github.com/anonto42/yellowcard/backend/internal/models"
	"github.com/anonto42/yellowcard/backend/internal/push"
	"github.com/anonto42/yellowcard/backend/internal/readstate"
	"github.com/anonto42/yellowcard/backend/internal/repositories"
	"github.com/anonto42/yellowcard/backend/validators"
)

const testSecret = "handler-test-secret"

type stubVerifier struct{}

// VerifyIDToken accepts "id-<uid>" tokens signed in just now and
// "id-stale-<uid>" tokens signed in an hour ago.
func (stubVerifier) VerifyIDToken(_ context.Context, idToken string) (*auth.Token, error) {
	if !strings.HasPrefix(idToken, "id-") {
		return nil, errors.New("bad token")
	}
	uid := strings.TrimPrefix(idToken, "id-")
	authTime := time.Now()
	if rest, ok := strings.CutPrefix(uid, "stale-"); ok {
		uid = rest
		authTime = authTime.Add(-time.Hour)
	}
	return &auth.Token{
		UID:      uid,
		AuthTime: authTime.Unix(),
		Claims:   map[string]interface{}{"email": "fb@example.com"},
	}, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

type HandlersTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller

	identity      *mocks.MockIdentityProvider
	members       *mocks.MockMemberStore
	feedback      *mocks.MockFeedbackStore
	notifications *mocks.MockNotificationStore
	readState     *mocks.MockReadState
	pusher        *mocks.MockPusher
	bot           *mocks.MockChatbot

	e *echo.Echo
}

func (s *HandlersTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.identity = mocks.NewMockIdentityProvider(s.ctrl)
	s.members = mocks.NewMockMemberStore(s.ctrl)
	s.feedback = mocks.NewMockFeedbackStore(s.ctrl)
	s.notifications = mocks.NewMockNotificationStore(s.ctrl)
	s.readState = mocks.NewMockReadState(s.ctrl)
	s.pusher = mocks.NewMockPusher(s.ctrl)
	s.bot = mocks.NewMockChatbot(s.ctrl)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.e = echo.New()
	s.e.Validator = validators.NewValidator()

	NewAuthHandler(s.identity, s.members, stubVerifier{}, testSecret, time.Hour, logger).
		RegisterAuthRoutes(s.e.Group("/api/v1/auth"))

	api := s.e.Group("/api/v1", middleware.JWTAuthMiddleware(testSecret))
	NewUserHandler(s.members, s.identity, stubVerifier{}, logger).RegisterProfileRoutes(api)
	NewFeedHandler(s.readState, logger).RegisterFeedRoutes(api)
	NewNotificationHandler(s.notifications, s.pusher, logger).RegisterNotificationRoutes(api)
	NewChatbotHandler(s.bot, logger).RegisterChatbotRoutes(api)
	NewFeedbackHandler(s.feedback, s.members, logger).RegisterFeedbackRoutes(api)
}

func (s *HandlersTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestHandlersTestSuite(t *testing.T) {
	suite.Run(t, new(HandlersTestSuite))
}

func (s *HandlersTestSuite) token(uid, role string) string {
	claims := &models.JwtCustomClaims{
		UID:   uid,
		Email: uid + "@example.com",
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	s.Require().NoError(err)
	return signed
}

func (s *HandlersTestSuite) do(method, path, bearer, body string) (*httptest.ResponseRecorder, envelope) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)

	var env envelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	return rec, env
}

func (s *HandlersTestSuite) TestRegister() {
	s.identity.EXPECT().CreateUser(gomock.Any(), gomock.Any()).
		Return(&auth.UserRecord{UserInfo: &auth.UserInfo{UID: "u1", Email: "ada@example.com"}}, nil)
	s.members.EXPECT().CreateMember(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, m *models.Member) error {
			s.Equal("u1", m.UID)
			s.Equal(models.RoleMember, m.Role)
			s.True(strings.HasPrefix(m.MemberID, "M"))
			return nil
		})

	rec, env := s.do(http.MethodPost, "/api/v1/auth/register", "",
		`{"email":"ada@example.com","password":"secret1","firstName":"Ada","lastName":"Lovelace"}`)
	s.Equal(http.StatusCreated, rec.Code)
	s.True(env.Success)

	var member models.Member
	s.Require().NoError(json.Unmarshal(env.Data, &member))
	s.Equal("Ada", member.FirstName)
}

func (s *HandlersTestSuite) TestRegisterKeepsGivenMemberID() {
	s.identity.EXPECT().CreateUser(gomock.Any(), gomock.Any()).
		Return(&auth.UserRecord{UserInfo: &auth.UserInfo{UID: "u1", Email: "ada@example.com"}}, nil)
	s.members.EXPECT().CreateMember(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, m *models.Member) error {
			s.Equal("YC-42", m.MemberID)
			return nil
		})

	rec, _ := s.do(http.MethodPost, "/api/v1/auth/register", "",
		`{"email":"ada@example.com","password":"secret1","firstName":"Ada","lastName":"Lovelace","memberId":"YC-42"}`)
	s.Equal(http.StatusCreated, rec.Code)
}

func (s *HandlersTestSuite) TestRegisterRollsBackOnProfileFailure() {
	s.identity.EXPECT().CreateUser(gomock.Any(), gomock.Any()).
		Return(&auth.UserRecord{UserInfo: &auth.UserInfo{UID: "u1"}}, nil)
	s.members.EXPECT().CreateMember(gomock.Any(), gomock.Any()).Return(errors.New("firestore down"))
	s.identity.EXPECT().DeleteUser(gomock.Any(), "u1").Return(nil)

	rec, _ := s.do(http.MethodPost, "/api/v1/auth/register", "",
		`{"email":"ada@example.com","password":"secret1","firstName":"Ada","lastName":"Lovelace"}`)
	s.Equal(http.StatusInternalServerError, rec.Code)
}

func (s *HandlersTestSuite) TestRegisterValidation() {
	rec, env := s.do(http.MethodPost, "/api/v1/auth/register", "", `{"email":"ada@example.com","password":"123"}`)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Contains(env.Message, "FirstName is required")
}

func (s *HandlersTestSuite) TestLogin() {
	s.members.EXPECT().GetMember(gomock.Any(), "u1").
		Return(&models.Member{UID: "u1", Role: models.RoleMember, Email: "ada@example.com"}, nil)

	rec, env := s.do(http.MethodPost, "/api/v1/auth/login", "id-u1", "")
	s.Require().Equal(http.StatusOK, rec.Code)

	var data struct {
		Token string `json:"token"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &data))

	claims := &models.JwtCustomClaims{}
	_, err := jwt.ParseWithClaims(data.Token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(testSecret), nil
	})
	s.Require().NoError(err)
	s.Equal("u1", claims.UID)
	s.Equal(models.RoleMember, claims.Role)
}

func (s *HandlersTestSuite) TestLoginMembersOnly() {
	s.members.EXPECT().GetMember(gomock.Any(), "staff").
		Return(&models.Member{UID: "staff", Role: "staff"}, nil)
	rec, env := s.do(http.MethodPost, "/api/v1/auth/login", "id-staff", "")
	s.Equal(http.StatusForbidden, rec.Code)
	s.Equal("Access denied. Members only.", env.Message)

	s.members.EXPECT().GetMember(gomock.Any(), "ghost").Return(nil, repositories.ErrMemberNotFound)
	rec, _ = s.do(http.MethodPost, "/api/v1/auth/login", "id-ghost", "")
	s.Equal(http.StatusForbidden, rec.Code)

	rec, _ = s.do(http.MethodPost, "/api/v1/auth/login", "forged", "")
	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *HandlersTestSuite) TestProfile() {
	s.members.EXPECT().GetMember(gomock.Any(), "u1").
		Return(&models.Member{UID: "u1", FirstName: "Ada", Role: models.RoleMember}, nil)
	rec, _ := s.do(http.MethodGet, "/api/v1/profile", s.token("u1", models.RoleMember), "")
	s.Equal(http.StatusOK, rec.Code)

	s.members.EXPECT().GetMember(gomock.Any(), "u2").Return(nil, repositories.ErrMemberNotFound)
	rec, _ = s.do(http.MethodGet, "/api/v1/profile", s.token("u2", models.RoleMember), "")
	s.Equal(http.StatusNotFound, rec.Code)

	rec, _ = s.do(http.MethodGet, "/api/v1/profile", "", "")
	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *HandlersTestSuite) TestChangePassword() {
	s.identity.EXPECT().UpdateUser(gomock.Any(), "u1", gomock.Any()).Return(&auth.UserRecord{}, nil)
	rec, _ := s.do(http.MethodPut, "/api/v1/profile/password", s.token("u1", models.RoleMember),
		`{"idToken":"id-u1","newPassword":"longer-secret"}`)
	s.Equal(http.StatusOK, rec.Code)

	rec, _ = s.do(http.MethodPut, "/api/v1/profile/password", s.token("u1", models.RoleMember),
		`{"idToken":"id-u1","newPassword":"x"}`)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlersTestSuite) TestChangePasswordRequiresRecentSignIn() {
	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "missing id token", body: `{"newPassword":"longer-secret"}`, want: http.StatusBadRequest},
		{name: "invalid id token", body: `{"idToken":"garbage","newPassword":"longer-secret"}`, want: http.StatusUnauthorized},
		{name: "stale sign-in", body: `{"idToken":"id-stale-u1","newPassword":"longer-secret"}`, want: http.StatusUnauthorized},
		{name: "other account", body: `{"idToken":"id-u2","newPassword":"longer-secret"}`, want: http.StatusForbidden},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			// UpdateUser must not be reached
			rec, _ := s.do(http.MethodPut, "/api/v1/profile/password", s.token("u1", models.RoleMember), tt.body)
			s.Equal(tt.want, rec.Code)
		})
	}
}

func (s *HandlersTestSuite) TestGetFeed() {
	view := readstate.View{
		Category:    readstate.Announcements,
		Items:       []models.ContentItem{{ID: "a1", Title: "Office move"}, {ID: "a2"}},
		UnreadState: readstate.UnreadState{UnreadCount: 1, Read: map[string]bool{"a1": true, "a2": false}},
		Badge:       "1",
	}
	s.readState.EXPECT().Snapshot(gomock.Any(), "u1", readstate.Announcements).Return(view, nil)

	rec, env := s.do(http.MethodGet, "/api/v1/feeds/announcements", s.token("u1", models.RoleMember), "")
	s.Require().Equal(http.StatusOK, rec.Code)

	var got struct {
		Items       []models.ContentItem `json:"items"`
		UnreadCount int                  `json:"unreadCount"`
		Read        map[string]bool      `json:"read"`
		Badge       string               `json:"badge"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &got))
	s.Len(got.Items, 2)
	s.Equal(1, got.UnreadCount)
	s.True(got.Read["a1"])
	s.Equal("1", got.Badge)
}

func (s *HandlersTestSuite) TestGetFeedErrors() {
	rec, _ := s.do(http.MethodGet, "/api/v1/feeds/stories", s.token("u1", models.RoleMember), "")
	s.Equal(http.StatusNotFound, rec.Code)

	s.readState.EXPECT().Snapshot(gomock.Any(), "u1", readstate.Benefits).Return(readstate.View{}, errors.New("unavailable"))
	rec, _ = s.do(http.MethodGet, "/api/v1/feeds/benefits", s.token("u1", models.RoleMember), "")
	s.Equal(http.StatusServiceUnavailable, rec.Code)
}

func (s *HandlersTestSuite) TestMarkRead() {
	s.readState.EXPECT().MarkRead(gomock.Any(), "u1", readstate.Notifications, "n1").
		Return(readstate.NewReadSet("n1"), nil)
	rec, env := s.do(http.MethodPost, "/api/v1/feeds/notifications/n1/read", s.token("u1", models.RoleMember), "")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"id":"n1","read":true}`, string(env.Data))

	s.readState.EXPECT().MarkRead(gomock.Any(), "u1", readstate.Notifications, "n2").
		Return(nil, errors.New("disk full"))
	rec, _ = s.do(http.MethodPost, "/api/v1/feeds/notifications/n2/read", s.token("u1", models.RoleMember), "")
	s.Equal(http.StatusInternalServerError, rec.Code)
}

func (s *HandlersTestSuite) TestBadges() {
	s.readState.EXPECT().Badges(gomock.Any(), "u1").Return([]readstate.Badge{
		readstate.NewBadge("u1", readstate.Notifications, 120),
		readstate.NewBadge("u1", readstate.Announcements, 0),
	}, nil)

	rec, env := s.do(http.MethodGet, "/api/v1/badges", s.token("u1", models.RoleMember), "")
	s.Require().Equal(http.StatusOK, rec.Code)

	var badges []readstate.Badge
	s.Require().NoError(json.Unmarshal(env.Data, &badges))
	s.Require().Len(badges, 2)
	s.Equal("99+", badges[0].Value)
	s.False(badges[1].Visible)
}

func (s *HandlersTestSuite) TestCreateNotificationRequiresAdmin() {
	rec, _ := s.do(http.MethodPost, "/api/v1/notifications", s.token("u1", models.RoleMember), `{"title":"t","body":"b"}`)
	s.Equal(http.StatusForbidden, rec.Code)
}

func (s *HandlersTestSuite) TestCreateNotification() {
	item := &models.ContentItem{ID: "n9", Title: "Payout", Body: "Claims open Monday"}
	s.notifications.EXPECT().CreateNotification(gomock.Any(), "Payout", "Claims open Monday").Return(item, nil)
	s.pusher.EXPECT().Broadcast(gomock.Any(), item).Return(errors.New("fcm quota"))

	rec, env := s.do(http.MethodPost, "/api/v1/notifications", s.token("admin", models.RoleAdmin),
		`{"title":" Payout ","body":"Claims open Monday"}`)
	s.Require().Equal(http.StatusCreated, rec.Code)

	var data struct {
		Notification models.ContentItem `json:"notification"`
		Pushed       bool               `json:"pushed"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &data))
	s.Equal("n9", data.Notification.ID)
	s.False(data.Pushed)
}

func (s *HandlersTestSuite) TestRegisterDevice() {
	req := models.RegisterDeviceRequest{Token: "tok", Platform: "ios"}
	s.pusher.EXPECT().RegisterDevice(gomock.Any(), "u1", req).
		Return(&models.DeviceToken{ID: 1, UID: "u1", Token: "tok", Platform: "ios"}, nil)
	rec, _ := s.do(http.MethodPost, "/api/v1/devices", s.token("u1", models.RoleMember), `{"token":"tok","platform":"ios"}`)
	s.Equal(http.StatusCreated, rec.Code)

	s.pusher.EXPECT().RegisterDevice(gomock.Any(), "u1", gomock.Any()).Return(nil, push.ErrTokenRejected)
	rec, _ = s.do(http.MethodPost, "/api/v1/devices", s.token("u1", models.RoleMember), `{"token":"bad"}`)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlersTestSuite) TestListDevices() {
	s.pusher.EXPECT().ListDevices(gomock.Any(), "u1").
		Return([]models.DeviceToken{{ID: 1, UID: "u1", Token: "tok", Platform: "ios"}}, nil)
	rec, env := s.do(http.MethodGet, "/api/v1/devices", s.token("u1", models.RoleMember), "")
	s.Require().Equal(http.StatusOK, rec.Code)

	var devices []models.DeviceToken
	s.Require().NoError(json.Unmarshal(env.Data, &devices))
	s.Require().Len(devices, 1)
	s.Equal("tok", devices[0].Token)

	s.pusher.EXPECT().ListDevices(gomock.Any(), "u1").Return(nil, errors.New("db down"))
	rec, _ = s.do(http.MethodGet, "/api/v1/devices", s.token("u1", models.RoleMember), "")
	s.Equal(http.StatusInternalServerError, rec.Code)

	rec, _ = s.do(http.MethodGet, "/api/v1/devices", "", "")
	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *HandlersTestSuite) TestFeedback() {
	s.members.EXPECT().GetMember(gomock.Any(), "u1").
		Return(&models.Member{UID: "u1", FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"}, nil)
	s.feedback.EXPECT().CreateFeedback(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, f *models.Feedback) (string, error) {
			s.Equal("Ada Lovelace", f.FullName)
			s.Equal("ada@example.com", f.Email)
			s.Equal("Great app", f.Message)
			return "f1", nil
		})

	rec, env := s.do(http.MethodPost, "/api/v1/feedback", s.token("u1", models.RoleMember), `{"message":"  Great app "}`)
	s.Require().Equal(http.StatusCreated, rec.Code)
	s.JSONEq(`{"id":"f1"}`, string(env.Data))

	rec, env = s.do(http.MethodPost, "/api/v1/feedback", s.token("u1", models.RoleMember), `{"message":"   "}`)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal("Please enter your feedback.", env.Message)
}

func (s *HandlersTestSuite) TestChatbot() {
	greeting := models.ChatResponse{
		Message:      models.ChatMessage{Sender: "bot", Text: "Hello!"},
		QuickReplies: []models.QuickReply{{Title: "View Benefits", Value: "benefits"}},
	}
	s.bot.EXPECT().Greeting().Return(greeting)
	rec, _ := s.do(http.MethodGet, "/api/v1/chatbot/greeting", s.token("u1", models.RoleMember), "")
	s.Equal(http.StatusOK, rec.Code)

	s.bot.EXPECT().Respond(gomock.Any(), "u1", "View Benefits").
		Return(models.ChatResponse{Message: models.ChatMessage{Sender: "bot", Text: "Your benefits..."}})
	rec, env := s.do(http.MethodPost, "/api/v1/chatbot/messages", s.token("u1", models.RoleMember), `{"message":"View Benefits"}`)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Contains(string(env.Data), "Your benefits...")

	s.bot.EXPECT().History(gomock.Any(), "u1", int64(maxHistoryLimit)).Return(nil, nil)
	rec, env = s.do(http.MethodGet, "/api/v1/chatbot/messages?limit=5000", s.token("u1", models.RoleMember), "")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.JSONEq(`[]`, string(env.Data))

	rec, _ = s.do(http.MethodGet, "/api/v1/chatbot/messages?limit=-1", s.token("u1", models.RoleMember), "")
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlersTestSuite) TestHealth() {
	s.e.GET("/health", HealthCheck)
	rec, _ := s.do(http.MethodGet, "/health", "", "")
	s.Equal(http.StatusOK, rec.Code)
}
