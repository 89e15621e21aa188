package webapi

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
)

var (
	ErrInitDataSignature = errors.New("init data signature mismatch")
	ErrInitDataExpired   = errors.New("init data is too old")
	ErrInitDataNoUser    = errors.New("init data carries no user")
)

// initDataMaxAge bounds how old a Mini App launch may be before its init
// data is rejected. Telegram includes auth_date with every launch.
const initDataMaxAge = 24 * time.Hour

// ValidateInitData checks the HMAC signature of a Telegram Mini App
// initData string against the bot token and returns the launching user's
// Telegram ID.
//
// Per Telegram's scheme, the secret key is HMAC-SHA256 of the bot token
// keyed with the literal string "WebAppData", and the signed payload is
// every key=value pair except hash, sorted by key and joined with
// newlines.
func ValidateInitData(initData, botToken string, now time.Time) (int64, error) {
	values, err := url.ParseQuery(initData)
	if err != nil {
		return 0, fmt.Errorf("parsing init data: %w", err)
	}

	gotHash := values.Get("hash")
	if gotHash == "" {
		return 0, ErrInitDataSignature
	}
	values.Del("hash")

	pairs := make([]string, 0, len(values))
	for key := range values {
		pairs = append(pairs, key+"="+values.Get(key))
	}
	sort.Strings(pairs)
	checkString := strings.Join(pairs, "\n")

	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(botToken))

	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(checkString))
	wantHash := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(gotHash), []byte(wantHash)) {
		return 0, ErrInitDataSignature
	}

	if authDate := values.Get("auth_date"); authDate != "" {
		var unix int64
		if _, err := fmt.Sscanf(authDate, "%d", &unix); err == nil {
			if now.Sub(time.Unix(unix, 0)) > initDataMaxAge {
				return 0, ErrInitDataExpired
			}
		}
	}

	userJSON := values.Get("user")
	if userJSON == "" {
		return 0, ErrInitDataNoUser
	}
	var user struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal([]byte(userJSON), &user); err != nil || user.ID == 0 {
		return 0, ErrInitDataNoUser
	}

	return user.ID, nil
}
