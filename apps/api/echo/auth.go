package echoapi

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/aaronlou/innergrow.ai/core"
	"github.com/aaronlou/innergrow.ai/core/user"
)

const authScheme = "Token"

var (
	// appJWTConfig is the default token auth middleware config.
	appJWTConfig = middleware.JWTConfig{
		SigningKey:    []byte(core.Conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    "userToken",
		Claims:        new(Claims),
		AuthScheme:    authScheme,
	}
	contextUserKey = "user"
)

// Claims represents the authorization claims transmitted via a JWT.
// The standard `jti` claim carries the key of the server-side token, which logout revokes.
type Claims struct {
	jwt.StandardClaims
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
}

func GetUserClaims(usr user.User, tok user.AuthToken) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Id:        tok.Key,
			Issuer:    core.Conf.AppName,
			Subject:   usr.ID,
			ExpiresAt: now.Add(core.Conf.Server.TokenExpiration).Unix(),
			IssuedAt:  now.Unix(),
		},
		Username: usr.Username,
		Email:    usr.Email,
	}
}

// GenerateToken generates a signed JWT token string representing the user Claims.
func GenerateToken(claims *Claims) (string, error) {
	method := jwt.GetSigningMethod(appJWTConfig.SigningMethod)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString(appJWTConfig.SigningKey)
	if err != nil {
		return "", errors.New("signing token")
	}
	return ss, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(appJWTConfig.ContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

func getContextUser(ctx echo.Context) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}
	return user.User{}, errUnauthorized
}

// getOptionalContextUser returns nil on anonymous requests.
func getOptionalContextUser(ctx echo.Context) *user.User {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return &usr
	}
	return nil
}

// authMiddleware verifies the JWT, then checks that its token was not revoked and loads the user.
// When optional is set, requests without an Authorization header go through anonymously.
func authMiddleware(svc *user.Service, optional bool) echo.MiddlewareFunc {
	config := appJWTConfig
	if optional {
		config.Skipper = func(ctx echo.Context) bool {
			return ctx.Request().Header.Get(echo.HeaderAuthorization) == ""
		}
	}
	jwtAuth := middleware.JWTWithConfig(config)

	session := func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				if optional {
					return next(ctx)
				}
				return err
			}
			usr, err := sessionUser(ctx, svc, claims)
			if err != nil {
				return err
			}
			ctx.Set(contextUserKey, usr)
			return next(ctx)
		}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return jwtAuth(session(next))
	}
}

func sessionUser(ctx echo.Context, svc *user.Service, claims Claims) (user.User, error) {
	tok, err := svc.GetToken(ctx.Request().Context(), claims.Id)
	if err != nil {
		if errors.Cause(err) == user.ErrTokenNotFound {
			return user.User{}, errInvalidToken
		}
		return user.User{}, errors.Wrap(err, "finding token")
	}
	if tok.UserID != claims.Subject {
		return user.User{}, errInvalidToken
	}

	usr, err := svc.GetByID(ctx.Request().Context(), tok.UserID)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.User{}, errUserInactive
		}
		return user.User{}, errors.Wrap(err, "finding user by ID")
	}
	if !usr.IsActive {
		return user.User{}, errUserInactive
	}
	return usr, nil
}

// issueToken returns a signed token for the user's current server-side token.
func issueToken(ctx echo.Context, svc *user.Service, usr user.User) (string, error) {
	tok, err := svc.IssueToken(ctx.Request().Context(), usr)
	if err != nil {
		return "", errors.Wrap(err, "issuing token")
	}
	token, err := GenerateToken(GetUserClaims(usr, tok))
	return token, errors.Wrap(err, "generating token")
}
