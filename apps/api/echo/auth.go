package echoapi

import (
	"net/http"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/edusuite/usafiri/core"
	"github.com/edusuite/usafiri/core/user"
)

const (
	jwtContextKey     = "userToken"
	contextUserKey    = "user"
	refreshCookieName = "refreshToken"
	claimsAudience    = "usafiri-api"
	refreshTokenScope = "refresh"
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	Scope              string `json:"scope,omitempty"`
	Email              string `json:"email,omitempty"`
	Role               string `json:"role,omitempty"`
	IsAdmin            bool   `json:"is_admin,omitempty"`
	NeedPasswordChange bool   `json:"need_password_change,omitempty"`
}

// jwtAuth holds the signing configuration shared by the auth middleware and
// the token issuing helpers.
type jwtAuth struct {
	conf       *core.Config
	middleware middleware.JWTConfig
}

func newJWTAuth(conf *core.Config) *jwtAuth {
	return &jwtAuth{
		conf: conf,
		middleware: middleware.JWTConfig{
			SigningKey:    []byte(conf.SecretKey),
			SigningMethod: middleware.AlgorithmHS256,
			ContextKey:    jwtContextKey,
			Claims:        new(Claims),
		},
	}
}

// GetUserClaims builds the access token claims for usr.
func (ja *jwtAuth) GetUserClaims(usr user.User) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    ja.conf.AppName,
			Subject:   usr.ID,
			Audience:  claimsAudience,
			ExpiresAt: now.Add(ja.conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		Email:              usr.Email,
		Role:               usr.Role,
		IsAdmin:            usr.IsAdmin(),
		NeedPasswordChange: usr.NeedPasswordChange,
	}
}

// getRefreshClaims builds the longer-lived refresh token claims for usr.
func (ja *jwtAuth) getRefreshClaims(usr user.User) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    ja.conf.AppName,
			Subject:   usr.ID,
			Audience:  claimsAudience,
			ExpiresAt: now.Add(ja.conf.Server.JWTRefreshExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		Scope: refreshTokenScope,
	}
}

// GenerateToken generates a signed JWT token string representing the Claims.
func (ja *jwtAuth) GenerateToken(claims *Claims) (string, error) {
	method := jwt.GetSigningMethod(ja.middleware.SigningMethod)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString(ja.middleware.SigningKey.([]byte))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// parseToken validates a raw token string and returns its claims.
func (ja *jwtAuth) parseToken(raw string) (*Claims, error) {
	claims := new(Claims)
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != ja.middleware.SigningMethod {
			return nil, errors.New("unexpected signing method")
		}
		return ja.middleware.SigningKey, nil
	})
	if err != nil || !token.Valid {
		return nil, errRefreshExpired
	}
	return claims, nil
}

// setRefreshCookie stores the refresh token in an HttpOnly cookie.
func (ja *jwtAuth) setRefreshCookie(ctx echo.Context, token string) {
	ctx.SetCookie(&http.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ja.conf.Server.JWTRefreshExpirationDelta / time.Second),
		HttpOnly: true,
		Secure:   !ja.conf.Debug,
		SameSite: http.SameSiteStrictMode,
	})
}

func (ja *jwtAuth) clearRefreshCookie(ctx echo.Context) {
	ctx.SetCookie(&http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(jwtContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

func getContextUser(ctx echo.Context, svc user.ServiceInterface, clms ...Claims) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}

	var claims Claims
	var err error
	if len(clms) > 0 {
		claims = clms[0]
	} else {
		claims, err = getContextClaims(ctx)
		if err != nil {
			return user.User{}, errors.Wrap(err, "getting context claims")
		}
	}

	usr, err := svc.GetByID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return user.User{}, errors.Wrap(err, "finding user by ID")
	}
	ctx.Set(contextUserKey, usr)
	return usr, nil
}

// adminMiddleware only lets admin users through. When roles are given, the
// user's role must additionally be one of them.
func adminMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if !claims.IsAdmin {
				return errHttpForbidden
			}
			if len(roles) > 0 {
				var match bool
				for _, role := range roles {
					if claims.Role == role {
						match = true
						break
					}
				}
				if !match {
					return errHttpForbidden
				}
			}
			return next(ctx)
		}
	}
}
