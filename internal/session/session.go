package session

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/thucchien/types"
)

// Config 会话配置
type Config struct {
	CookieName string        `yaml:"cookie_name" json:"cookie_name" env:"COOKIE_NAME"`
	SecretKey  string        `yaml:"secret_key" json:"-" env:"SECRET_KEY"`
	MaxAge     time.Duration `yaml:"max_age" json:"max_age" env:"MAX_AGE"`
	Secure     bool          `yaml:"secure" json:"secure" env:"SECURE"`
	Issuer     string        `yaml:"issuer" json:"issuer" env:"ISSUER"`
}

// DefaultConfig 返回默认会话配置
func DefaultConfig() Config {
	return Config{
		CookieName: "thucchien_session",
		MaxAge:     30 * 24 * time.Hour,
		Issuer:     "thucchien",
	}
}

// Claims 会话声明
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// Manager 签发与校验会话 cookie
type Manager struct {
	cfg    Config
	secret []byte
	logger *zap.Logger
	now    func() time.Time
}

// NewManager 创建会话管理器
// 未配置密钥时生成进程级随机密钥，重启后旧会话失效
func NewManager(cfg Config, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultConfig()
	if cfg.CookieName == "" {
		cfg.CookieName = def.CookieName
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = def.MaxAge
	}
	if cfg.Issuer == "" {
		cfg.Issuer = def.Issuer
	}

	secret := []byte(cfg.SecretKey)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generate session secret: %w", err)
		}
		logger.Warn("session.secret_key not set, using an ephemeral key")
	}

	return &Manager{
		cfg:    cfg,
		secret: secret,
		logger: logger.With(zap.String("component", "session")),
		now:    time.Now,
	}, nil
}

// Middleware 确保每个请求都带有 user_id
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := m.fromRequest(r)
		if err != nil {
			userID = uuid.NewString()
			if err := m.Issue(w, userID); err != nil {
				m.logger.Error("failed to issue session", zap.Error(err))
			}
		}
		next.ServeHTTP(w, r.WithContext(types.WithUserID(r.Context(), userID)))
	})
}

// Issue 签发会话 cookie
func (m *Manager) Issue(w http.ResponseWriter, userID string) error {
	token, err := m.Sign(userID)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.cfg.MaxAge / time.Second),
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Sign 生成会话令牌
func (m *Manager) Sign(userID string) (string, error) {
	now := m.now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.cfg.MaxAge)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign session: %w", err)
	}
	return signed, nil
}

// Parse 校验令牌并返回 user_id
func (m *Manager) Parse(token string) (string, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return "", err
	}
	if _, err := uuid.Parse(claims.UserID); err != nil {
		return "", fmt.Errorf("invalid user_id claim: %w", err)
	}
	return claims.UserID, nil
}

func (m *Manager) fromRequest(r *http.Request) (string, error) {
	c, err := r.Cookie(m.cfg.CookieName)
	if err != nil {
		return "", err
	}
	id, err := m.Parse(c.Value)
	if err != nil {
		if !errors.Is(err, jwt.ErrTokenExpired) {
			m.logger.Debug("rejecting session cookie", zap.Error(err))
		}
		return "", err
	}
	return id, nil
}

// Clear 使会话 cookie 失效
func (m *Manager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// UserID 从上下文读取会话用户
func UserID(ctx context.Context) (string, bool) {
	return types.UserID(ctx)
}
