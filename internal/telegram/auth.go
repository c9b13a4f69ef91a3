// Package telegram verifies the authenticity of Telegram-provided
// identities. The console and mini-app receive a signed payload from the
// Telegram Login Widget; this package checks the signature so that the
// tgUserId stored on user sessions is known to come from Telegram and not
// from a forged request.
//
// The scheme is Telegram's documented one: the data-check string is every
// received field except hash, sorted by key and joined as "key=value"
// lines; the signing key is SHA256(bot token); the signature is
// HMAC-SHA256 over the data-check string, hex-encoded. Comparison is
// constant-time.
package telegram

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Verification errors.
var (
	// ErrInvalidHash means the payload signature does not match the bot
	// token, i.e. the payload was forged or corrupted.
	ErrInvalidHash = errors.New("telegram auth: invalid hash")

	// ErrMissingHash means the payload carried no signature at all.
	ErrMissingHash = errors.New("telegram auth: missing hash")

	// ErrAuthDataExpired means the payload is authentic but older than
	// the accepted freshness window (replay protection).
	ErrAuthDataExpired = errors.New("telegram auth: auth_date too old")
)

// DefaultMaxAuthAge is the default freshness window for login payloads.
const DefaultMaxAuthAge = 24 * time.Hour

// LoginData is the identity payload the Telegram Login Widget posts.
type LoginData struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
	PhotoURL  string `json:"photo_url,omitempty"`
	AuthDate  int64  `json:"auth_date"`
	Hash      string `json:"hash"`
}

// Verifier checks login payloads against a bot token.
type Verifier struct {
	secret []byte // SHA256(bot token)

	// MaxAuthAge bounds how old an accepted auth_date may be. Zero
	// disables the freshness check (useful in tests).
	MaxAuthAge time.Duration

	// now is a test seam.
	now func() time.Time
}

// NewVerifier derives the signing secret from the bot token.
func NewVerifier(botToken string) *Verifier {
	secret := sha256.Sum256([]byte(botToken))
	return &Verifier{
		secret:     secret[:],
		MaxAuthAge: DefaultMaxAuthAge,
		now:        time.Now,
	}
}

// Verify checks the payload signature and freshness.
//
// It returns ErrMissingHash when no signature is present, ErrInvalidHash
// when the signature does not match, and ErrAuthDataExpired when the
// signature matches but auth_date falls outside the freshness window.
func (v *Verifier) Verify(d LoginData) error {
	if strings.TrimSpace(d.Hash) == "" {
		return ErrMissingHash
	}

	expected := v.sign(checkString(d))
	if !hmac.Equal([]byte(strings.ToLower(d.Hash)), []byte(expected)) {
		return ErrInvalidHash
	}

	if v.MaxAuthAge > 0 {
		issued := time.Unix(d.AuthDate, 0)
		if v.now().Sub(issued) > v.MaxAuthAge {
			return ErrAuthDataExpired
		}
	}
	return nil
}

// Sign computes the hex signature for a payload. Exported for tests and
// for tooling that fabricates widget payloads against a local bot.
func (v *Verifier) Sign(d LoginData) string {
	return v.sign(checkString(d))
}

func (v *Verifier) sign(data string) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

// checkString builds the data-check string: all present fields except
// hash, as "key=value" lines sorted by key. Optional fields that were not
// sent are omitted, matching what Telegram signed.
func checkString(d LoginData) string {
	pairs := []string{
		"auth_date=" + strconv.FormatInt(d.AuthDate, 10),
		"first_name=" + d.FirstName,
		"id=" + strconv.FormatInt(d.ID, 10),
	}
	if d.LastName != "" {
		pairs = append(pairs, "last_name="+d.LastName)
	}
	if d.PhotoURL != "" {
		pairs = append(pairs, "photo_url="+d.PhotoURL)
	}
	if d.Username != "" {
		pairs = append(pairs, "username="+d.Username)
	}
	sort.Strings(pairs)
	return strings.Join(pairs, "\n")
}
