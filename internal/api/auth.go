package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

var (
	errMissingToken = errors.New("missing authorization token")
	errInvalidToken = errors.New("invalid token")
)

// Identity is the caller a bearer token names.
type Identity struct {
	UserID string
	Admin  bool
}

// Verifier checks HMAC-signed bearer tokens.
type Verifier struct {
	secret     []byte
	adminClaim string
}

// NewVerifier creates a Verifier. adminClaim names the boolean claim that
// grants quiz import rights.
func NewVerifier(secret, adminClaim string) *Verifier {
	return &Verifier{secret: []byte(secret), adminClaim: adminClaim}
}

// Issue signs a token for userID that expires after ttl.
func (v *Verifier) Issue(userID string, admin bool, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(ttl).Unix(),
	}
	if admin && v.adminClaim != "" {
		claims[v.adminClaim] = true
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// Verify parses raw and returns the identity it carries.
func (v *Verifier) Verify(raw string) (Identity, error) {
	token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", errInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Identity{}, errInvalidToken
	}

	userID := userIDFrom(claims)
	if userID == "" {
		return Identity{}, fmt.Errorf("%w: no user id claim", errInvalidToken)
	}
	admin, _ := claims[v.adminClaim].(bool)
	return Identity{UserID: userID, Admin: admin}, nil
}

// userIDFrom reads the first non-empty of uid, sub and user_id. Numeric ids
// are accepted since some issuers encode them that way.
func userIDFrom(claims jwt.MapClaims) string {
	for _, key := range []string{"uid", "sub", "user_id"} {
		switch v := claims[key].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

type identityKey struct{}

func identityFrom(ctx context.Context) Identity {
	id, _ := ctx.Value(identityKey{}).(Identity)
	return id
}

// bearerToken extracts the token from the Authorization header. Browsers
// cannot set headers on a websocket handshake, so the token query parameter
// is accepted when allowQuery is set.
func bearerToken(r *http.Request, allowQuery bool) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if allowQuery {
		return r.URL.Query().Get("token")
	}
	return ""
}

// authenticate resolves the caller or writes a 401 and returns false.
func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request, allowQuery bool) (*http.Request, bool) {
	raw := bearerToken(r, allowQuery)
	if raw == "" {
		respondError(w, http.StatusUnauthorized, "Unauthorized: "+errMissingToken.Error())
		return r, false
	}
	id, err := h.auth.Verify(raw)
	if err != nil {
		h.logger.Debug("token rejected", "error", err)
		respondError(w, http.StatusUnauthorized, "Unauthorized: invalid token")
		return r, false
	}
	return r.WithContext(context.WithValue(r.Context(), identityKey{}, id)), true
}
