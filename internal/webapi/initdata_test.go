package webapi

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"testing"
	"time"
)

const testBotToken = "12345:TEST_TOKEN"

var testNow = time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

// signInitData builds a signed initData query string the way Telegram
// clients do.
func signInitData(t *testing.T, botToken string, fields map[string]string) string {
	t.Helper()

	pairs := make([]string, 0, len(fields))
	for key, value := range fields {
		pairs = append(pairs, key+"="+value)
	}
	sort.Strings(pairs)

	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(botToken))
	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(strings.Join(pairs, "\n")))
	hash := hex.EncodeToString(mac.Sum(nil))

	values := url.Values{}
	for key, value := range fields {
		values.Set(key, value)
	}
	values.Set("hash", hash)
	return values.Encode()
}

func validFields() map[string]string {
	return map[string]string{
		"auth_date": fmt.Sprintf("%d", testNow.Add(-time.Minute).Unix()),
		"query_id":  "AAE1",
		"user":      `{"id":100,"first_name":"Alice"}`,
	}
}

func TestValidateInitData(t *testing.T) {
	t.Run("accepts a correctly signed payload", func(t *testing.T) {
		initData := signInitData(t, testBotToken, validFields())
		userID, err := ValidateInitData(initData, testBotToken, testNow)
		if err != nil {
			t.Fatalf("ValidateInitData failed: %v", err)
		}
		if userID != 100 {
			t.Errorf("userID = %d, want 100", userID)
		}
	})

	t.Run("rejects a payload signed with another token", func(t *testing.T) {
		initData := signInitData(t, "999:OTHER_TOKEN", validFields())
		if _, err := ValidateInitData(initData, testBotToken, testNow); !errors.Is(err, ErrInitDataSignature) {
			t.Errorf("err = %v, want signature mismatch", err)
		}
	})

	t.Run("rejects a tampered payload", func(t *testing.T) {
		initData := signInitData(t, testBotToken, validFields())
		tampered := strings.Replace(initData, "100", "200", 1)
		if _, err := ValidateInitData(tampered, testBotToken, testNow); !errors.Is(err, ErrInitDataSignature) {
			t.Errorf("err = %v, want signature mismatch", err)
		}
	})

	t.Run("rejects a missing hash", func(t *testing.T) {
		if _, err := ValidateInitData("user=%7B%22id%22%3A100%7D", testBotToken, testNow); !errors.Is(err, ErrInitDataSignature) {
			t.Errorf("err = %v, want signature mismatch", err)
		}
	})

	t.Run("rejects stale auth_date", func(t *testing.T) {
		fields := validFields()
		fields["auth_date"] = fmt.Sprintf("%d", testNow.Add(-48*time.Hour).Unix())
		initData := signInitData(t, testBotToken, fields)
		if _, err := ValidateInitData(initData, testBotToken, testNow); !errors.Is(err, ErrInitDataExpired) {
			t.Errorf("err = %v, want expiry error", err)
		}
	})

	t.Run("rejects missing user", func(t *testing.T) {
		fields := validFields()
		delete(fields, "user")
		initData := signInitData(t, testBotToken, fields)
		if _, err := ValidateInitData(initData, testBotToken, testNow); !errors.Is(err, ErrInitDataNoUser) {
			t.Errorf("err = %v, want no-user error", err)
		}
	})
}

func TestJWTRoundTrip(t *testing.T) {
	manager := NewJWTManager("test-secret-key-32-bytes-long!!!", time.Hour)

	token, err := manager.Generate(100)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	claims, err := manager.Validate(token)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if claims.UserID != 100 {
		t.Errorf("UserID = %d, want 100", claims.UserID)
	}

	other := NewJWTManager("a-different-secret-entirely!!!!!", time.Hour)
	if _, err := other.Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want invalid token", err)
	}
}
