package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/refdata-io/lookupd"
)

const callerKey = "lookupd.caller"

// authenticator verifies bearer tokens and attaches the Caller to the
// request context. HS256 only; the signing secret is shared with the
// identity provider.
type authenticator struct {
	secret   []byte
	disabled bool
	logger   lookupd.Logger
}

func newAuthenticator(secret string, disabled bool, logger lookupd.Logger) *authenticator {
	return &authenticator{secret: []byte(secret), disabled: disabled, logger: logger}
}

// middleware authenticates a bearer token when one is presented. Requests
// without a token proceed anonymously; read routes are open, so rejection
// happens at requireScope, not here. A presented-but-invalid token is always
// rejected. With auth disabled every request runs as an administrator, for
// development only.
func (a *authenticator) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.disabled {
			c.Set(callerKey, lookupd.Caller{
				Subject: "dev",
				Roles:   []string{"Administrator"},
				Scopes:  []string{lookupd.ScopeAll},
			})
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "missing bearer token"})
			return
		}
		raw := strings.TrimPrefix(header, "Bearer ")

		token, err := jwt.Parse([]byte(raw),
			jwt.WithKey(jwa.HS256, a.secret),
			jwt.WithValidate(true),
		)
		if err != nil {
			a.logger.Debug("token rejected", "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "invalid token"})
			return
		}

		c.Set(callerKey, callerFromToken(token))
		c.Next()
	}
}

// callerFromToken maps token claims onto a Caller. Scopes live in the
// space-separated "scope" claim; user roles in the "roles" claim. A token
// issued through the client-credentials grant carries "gty" and counts as a
// machine caller.
func callerFromToken(token jwt.Token) lookupd.Caller {
	caller := lookupd.Caller{Subject: token.Subject()}

	if v, ok := token.Get("scope"); ok {
		if s, ok := v.(string); ok && s != "" {
			caller.Scopes = strings.Fields(s)
		}
	}
	if v, ok := token.Get("roles"); ok {
		if roles, ok := v.([]interface{}); ok {
			for _, r := range roles {
				if s, ok := r.(string); ok {
					caller.Roles = append(caller.Roles, s)
				}
			}
		}
	}
	if _, ok := token.Get("gty"); ok {
		caller.Machine = true
	}
	return caller
}

// caller returns the request principal and whether it authenticated.
func caller(c *gin.Context) (lookupd.Caller, bool) {
	if v, ok := c.Get(callerKey); ok {
		if cl, ok := v.(lookupd.Caller); ok {
			return cl, true
		}
	}
	return lookupd.Caller{}, false
}

// requireScope gates a route on one scope. Administrators pass regardless.
// Anonymous callers get 401, authenticated callers without the scope 403.
func requireScope(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		cl, authenticated := caller(c)
		if cl.HasScope(scope) || cl.IsAdmin() {
			c.Next()
			return
		}
		if !authenticated {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "authentication required"})
			return
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "you are not allowed to perform that action"})
	}
}
