package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"timetable/backend/config"
	"timetable/backend/internal/dto"
	"timetable/backend/internal/model"
	"timetable/backend/internal/repository"
	"timetable/backend/pkg/jwt"
	"timetable/backend/pkg/redis"
)

// ── Mock TokenBlacklist ──

type mockBlacklist struct {
	mu   sync.Mutex
	jtis map[string]bool
}

func newMockBlacklist() *mockBlacklist {
	return &mockBlacklist{jtis: make(map[string]bool)}
}

func (m *mockBlacklist) BlacklistToken(_ context.Context, jti string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jtis[jti] = true
	return nil
}

func (m *mockBlacklist) IsBlacklisted(_ context.Context, jti string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.jtis[jti], nil
}

// ── 测试辅助 ──

func testAuthConfig() *config.Config {
	return &config.Config{
		Auth: config.AuthConfig{
			JWTSecret:               "test-secret-key-at-least-16",
			AccessTokenTTL:          15 * time.Minute,
			RefreshTokenTTLDefault:  24 * time.Hour,
			RefreshTokenTTLRemember: 7 * 24 * time.Hour,
		},
	}
}

func setupTestAuthService(t *testing.T) (AuthService, *mockUserRepo, *mockBlacklist, *jwt.Manager) {
	t.Helper()
	userRepo := newMockUserRepo()
	repoAgg := &repository.Repository{
		User:           userRepo,
		Timetable:      newMockTimetableRepo(),
		TemplateSlot:   newMockTemplateSlotRepo(),
		WeeklyInstance: newMockWeeklyInstanceRepo(),
		Occurrence:     newMockOccurrenceRepo(),
	}
	cfg := testAuthConfig()
	jwtMgr := jwt.NewManager(&cfg.Auth)
	blacklist := newMockBlacklist()
	svc := NewAuthService(cfg, repoAgg, jwtMgr, blacklist, zap.NewNop())
	return svc, userRepo, blacklist, jwtMgr
}

func seedAuthUser(t *testing.T, userRepo *mockUserRepo, username, password string, active bool) *model.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt 失败: %v", err)
	}
	user := &model.User{
		UserID:         "user-" + username,
		Username:       username,
		Name:           "测试用户",
		PasswordHash:   string(hash),
		Role:           "teacher",
		OrganizationID: "org-1",
		IsActive:       active,
	}
	userRepo.users[user.UserID] = user
	return user
}

// ── Login ──

func TestLogin(t *testing.T) {
	svc, userRepo, _, jwtMgr := setupTestAuthService(t)
	seedAuthUser(t, userRepo, "teacher1", "password123", true)

	resp, err := svc.Login(context.Background(), &dto.LoginRequest{
		Username: "teacher1",
		Password: "password123",
	})
	if err != nil {
		t.Fatalf("Login 失败: %v", err)
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		t.Fatal("token 对不完整")
	}
	if resp.User.Username != "teacher1" {
		t.Errorf("user.username = %s", resp.User.Username)
	}

	claims, err := jwtMgr.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("解析 access token 失败: %v", err)
	}
	if claims.TokenType != "access" || claims.Role != "teacher" || claims.OrganizationID != "org-1" {
		t.Errorf("claims 不完整: %+v", claims)
	}
}

func TestLoginFailures(t *testing.T) {
	svc, userRepo, _, _ := setupTestAuthService(t)
	seedAuthUser(t, userRepo, "teacher1", "password123", true)
	seedAuthUser(t, userRepo, "disabled", "password123", false)

	tests := []struct {
		name    string
		req     dto.LoginRequest
		wantErr error
	}{
		{"用户不存在", dto.LoginRequest{Username: "nobody", Password: "x"}, ErrInvalidCredentials},
		{"密码错误", dto.LoginRequest{Username: "teacher1", Password: "wrong"}, ErrInvalidCredentials},
		{"账号禁用", dto.LoginRequest{Username: "disabled", Password: "password123"}, ErrUserDisabled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Login(context.Background(), &tt.req); !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// ── RefreshToken / Logout ──

func TestRefreshTokenRotation(t *testing.T) {
	svc, userRepo, _, _ := setupTestAuthService(t)
	seedAuthUser(t, userRepo, "teacher1", "password123", true)

	resp, err := svc.Login(context.Background(), &dto.LoginRequest{
		Username: "teacher1", Password: "password123", RememberMe: true,
	})
	if err != nil {
		t.Fatalf("Login 失败: %v", err)
	}

	renewed, err := svc.RefreshToken(context.Background(), resp.RefreshToken)
	if err != nil {
		t.Fatalf("RefreshToken 失败: %v", err)
	}
	if renewed.AccessToken == "" || renewed.RefreshToken == "" {
		t.Fatal("新 token 对不完整")
	}

	t.Run("旧refresh_token已轮换失效", func(t *testing.T) {
		if _, err := svc.RefreshToken(context.Background(), resp.RefreshToken); !errors.Is(err, ErrTokenRevoked) {
			t.Errorf("err = %v, want ErrTokenRevoked", err)
		}
	})

	t.Run("access_token不能用于刷新", func(t *testing.T) {
		if _, err := svc.RefreshToken(context.Background(), renewed.AccessToken); !errors.Is(err, ErrNotRefreshToken) {
			t.Errorf("err = %v, want ErrNotRefreshToken", err)
		}
	})
}

func TestLogoutBlacklistsToken(t *testing.T) {
	svc, userRepo, blacklist, jwtMgr := setupTestAuthService(t)
	seedAuthUser(t, userRepo, "teacher1", "password123", true)

	resp, err := svc.Login(context.Background(), &dto.LoginRequest{
		Username: "teacher1", Password: "password123",
	})
	if err != nil {
		t.Fatalf("Login 失败: %v", err)
	}
	claims, _ := jwtMgr.ParseToken(resp.AccessToken)

	if err := svc.Logout(context.Background(), claims); err != nil {
		t.Fatalf("Logout 失败: %v", err)
	}
	blocked, _ := blacklist.IsBlacklisted(context.Background(), claims.ID)
	if !blocked {
		t.Error("登出后 jti 应进入黑名单")
	}
}

// Redis 连接失败时 main 传入的是 nil 的 *redis.Client。
// 降级模式下登出与刷新应跳过黑名单操作，而不是解引用空指针。
func TestAuthDegradedWithoutBlacklist(t *testing.T) {
	userRepo := newMockUserRepo()
	repoAgg := &repository.Repository{
		User:           userRepo,
		Timetable:      newMockTimetableRepo(),
		TemplateSlot:   newMockTemplateSlotRepo(),
		WeeklyInstance: newMockWeeklyInstanceRepo(),
		Occurrence:     newMockOccurrenceRepo(),
	}
	cfg := testAuthConfig()
	jwtMgr := jwt.NewManager(&cfg.Auth)

	var rdb *redis.Client
	svc := NewService(cfg, repoAgg, jwtMgr, rdb, zap.NewNop())
	seedAuthUser(t, userRepo, "teacher1", "password123", true)

	resp, err := svc.Auth.Login(context.Background(), &dto.LoginRequest{
		Username: "teacher1", Password: "password123",
	})
	if err != nil {
		t.Fatalf("Login 失败: %v", err)
	}

	claims, err := jwtMgr.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("解析 access token 失败: %v", err)
	}
	if err := svc.Auth.Logout(context.Background(), claims); err != nil {
		t.Fatalf("降级模式 Logout 失败: %v", err)
	}

	if _, err := svc.Auth.RefreshToken(context.Background(), resp.RefreshToken); err != nil {
		t.Fatalf("降级模式 RefreshToken 失败: %v", err)
	}
}

// ── ChangePassword / GetCurrentUser ──

func TestChangePassword(t *testing.T) {
	svc, userRepo, _, _ := setupTestAuthService(t)
	user := seedAuthUser(t, userRepo, "teacher1", "password123", true)

	err := svc.ChangePassword(context.Background(), user.UserID, &dto.ChangePasswordRequest{
		OldPassword: "password123",
		NewPassword: "newpassword456",
	})
	if err != nil {
		t.Fatalf("ChangePassword 失败: %v", err)
	}

	// 新密码可登录
	if _, err := svc.Login(context.Background(), &dto.LoginRequest{
		Username: "teacher1", Password: "newpassword456",
	}); err != nil {
		t.Errorf("新密码登录失败: %v", err)
	}

	t.Run("旧密码错误", func(t *testing.T) {
		err := svc.ChangePassword(context.Background(), user.UserID, &dto.ChangePasswordRequest{
			OldPassword: "wrong",
			NewPassword: "whatever123",
		})
		if !errors.Is(err, ErrOldPasswordWrong) {
			t.Errorf("err = %v, want ErrOldPasswordWrong", err)
		}
	})
}

func TestGetCurrentUser(t *testing.T) {
	svc, userRepo, _, _ := setupTestAuthService(t)
	user := seedAuthUser(t, userRepo, "teacher1", "password123", true)

	detail, err := svc.GetCurrentUser(context.Background(), user.UserID)
	if err != nil {
		t.Fatalf("GetCurrentUser 失败: %v", err)
	}
	if detail.Username != "teacher1" || detail.OrganizationID != "org-1" {
		t.Errorf("detail = %+v", detail)
	}

	if _, err := svc.GetCurrentUser(context.Background(), "user-nope"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("err = %v, want ErrUserNotFound", err)
	}
}
