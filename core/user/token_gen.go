package user

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base32"
	"encoding/base64"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/edusuite/usafiri/core"
)

// Single-use token generation for email verification and password reset links.
// A token embeds its issue timestamp and an HMAC over user state; changing the
// password (or logging in, for reset tokens) invalidates outstanding tokens
// without any server-side storage.

const (
	scopeEmailVerif    = "email-verification"
	scopePasswordReset = "password-reset"
)

var (
	salt    = []byte("usafiri.core.user.token_gen")
	NowFunc = time.Now // mockable
)

// EncodeUID base64 encodes given User ID for use in links.
func EncodeUID(usr User) string {
	return base64.RawURLEncoding.EncodeToString([]byte(usr.ID))
}

// decodeUID base64 decodes given UID.
func decodeUID(uid string) (string, error) {
	idBytes, err := base64.RawURLEncoding.DecodeString(uid)
	if err != nil {
		return "", err
	}
	return string(idBytes), nil
}

// MakeToken generates a scoped single-use token for a given User.
func MakeToken(conf *core.Config, usr User, scope string) (string, error) {
	return makeTokenWithTimestamp(conf, usr, scope, numDaysSince2001(NowFunc()))
}

// verifyToken checks that a scoped token for a given User is valid.
func verifyToken(conf *core.Config, usr User, token, scope string) error {
	if token == "" {
		return ErrInvalidToken
	}

	parts := strings.SplitN(token, "-", 2)
	if len(parts) < 2 {
		return ErrInvalidToken
	}

	data, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(parts[0])
	if err != nil {
		return ErrInvalidToken
	}
	ts, err := strconv.Atoi(string(data))
	if err != nil {
		return ErrInvalidToken
	}

	// check that token has not been tampered with
	newToken, err := makeTokenWithTimestamp(conf, usr, scope, ts)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare([]byte(newToken), []byte(token)) == 0 {
		return ErrInvalidToken
	}

	// check that the timestamp is within limit
	timeout := conf.PasswordResetTimeoutDelta
	if scope == scopeEmailVerif {
		timeout = conf.EmailVerifTimeoutDelta
	}
	if (numDaysSince2001(NowFunc()) - ts) > int(timeout/(24*time.Hour)) {
		return errTokenExpired
	}
	return nil
}

func makeTokenWithTimestamp(conf *core.Config, usr User, scope string, ts int) (string, error) {
	tsB32 := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString([]byte(strconv.Itoa(ts)))
	sig, err := sign(conf, hashValue(usr, scope, ts))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s", tsB32, sig), nil
}

func numDaysSince2001(t time.Time) int {
	ref := time.Date(2001, time.January, 1, 0, 0, 0, 0, time.UTC)
	return int(math.Ceil(t.Sub(ref).Hours() / 24))
}

func sign(conf *core.Config, val []byte) (string, error) {
	key := sha256.Sum256(append(salt, conf.SecretKey...))
	h := hmac.New(sha256.New, key[:])
	if _, err := h.Write(val); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil)), nil
}

func hashValue(usr User, scope string, ts int) []byte {
	var val bytes.Buffer
	val.WriteString(scope)
	val.WriteString(usr.ID)
	val.Write(usr.PasswordHash)
	if scope == scopeEmailVerif {
		val.WriteString(strconv.FormatBool(usr.IsVerified))
	} else if !usr.LastLogin.IsZero() {
		val.WriteString(usr.LastLogin.String())
	}
	val.WriteString(strconv.Itoa(ts))
	return val.Bytes()
}
