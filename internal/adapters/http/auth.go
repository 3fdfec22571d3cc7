package httpadapter

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/PabloGalante/twogether/internal/domain"
	"github.com/PabloGalante/twogether/internal/observability"
)

const (
	tokenTTL    = 30 * 24 * time.Hour
	tokenIssuer = "twogether"
	claimsKey   = "partner_claims"
)

var errUnauthorized = errors.New("unauthorized")

// PartnerClaims binds a token to one session and one side of it.
type PartnerClaims struct {
	SessionID domain.SessionID `json:"sid"`
	Role      domain.Party     `json:"role"`
	jwt.RegisteredClaims
}

// Auth issues and checks partner tokens. A nil *Auth means auth is disabled
// and every check passes.
type Auth struct {
	secret []byte
	now    func() time.Time
}

// NewAuth returns nil when secret is empty.
func NewAuth(secret string) *Auth {
	if secret == "" {
		return nil
	}
	return &Auth{secret: []byte(secret), now: time.Now}
}

func (a *Auth) Issue(sessionID domain.SessionID, role domain.Party) (string, error) {
	now := a.now()
	claims := PartnerClaims{
		SessionID: sessionID,
		Role:      role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   string(sessionID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func (a *Auth) Parse(raw string) (*PartnerClaims, error) {
	claims := &PartnerClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: invalid or expired token", errUnauthorized)
	}
	if !claims.Role.Valid() || claims.SessionID == "" {
		return nil, fmt.Errorf("%w: malformed claims", errUnauthorized)
	}
	return claims, nil
}

func bearerToken(c *gin.Context) (string, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", fmt.Errorf("%w: authorization header required", errUnauthorized)
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", fmt.Errorf("%w: invalid authorization header format", errUnauthorized)
	}
	return parts[1], nil
}

// authenticate parses the bearer token and stores the claims on the context.
func (a *Auth) authenticate(c *gin.Context) (*PartnerClaims, bool) {
	raw, err := bearerToken(c)
	if err == nil {
		var claims *PartnerClaims
		if claims, err = a.Parse(raw); err == nil {
			c.Set(claimsKey, claims)
			c.Request = c.Request.WithContext(observability.WithParty(c.Request.Context(), string(claims.Role)))
			return claims, true
		}
	}
	abortAuth(c, http.StatusUnauthorized, err)
	return nil, false
}

// requireSessionRole lets through tokens issued for the :id session and, when
// roles are given, only those roles.
func (a *Auth) requireSessionRole(roles ...domain.Party) gin.HandlerFunc {
	return func(c *gin.Context) {
		if a == nil {
			c.Next()
			return
		}
		claims, ok := a.authenticate(c)
		if !ok {
			return
		}
		if claims.SessionID != domain.SessionID(c.Param("id")) {
			abortAuth(c, http.StatusForbidden, errors.New("token belongs to another session"))
			return
		}
		if len(roles) > 0 && !hasRole(roles, claims.Role) {
			abortAuth(c, http.StatusForbidden, fmt.Errorf("partner %s may not do this", claims.Role))
			return
		}
		c.Next()
	}
}

func hasRole(roles []domain.Party, role domain.Party) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

func claimsFrom(c *gin.Context) *PartnerClaims {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*PartnerClaims)
	return claims
}

func abortAuth(c *gin.Context, status int, err error) {
	code := "unauthorized"
	if status == http.StatusForbidden {
		code = "forbidden"
	}
	msg := strings.TrimPrefix(err.Error(), errUnauthorized.Error()+": ")
	c.AbortWithStatusJSON(status, errorResponse{Error: msg, Code: code})
}
