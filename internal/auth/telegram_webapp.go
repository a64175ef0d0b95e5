package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	initdata "github.com/telegram-mini-apps/init-data-golang"
)

// DefaultInitDataTTL is the maximum accepted age of auth_date.
// initData is regenerated every time the mini-app opens, so 5 minutes is plenty.
const DefaultInitDataTTL = 5 * time.Minute

// ValidateInitData checks the signature and freshness of Telegram WebApp initData
// and returns the parsed payload.
// https://core.telegram.org/bots/webapps#validating-data-received-via-the-mini-app
func ValidateInitData(raw string, botToken string, maxAge time.Duration) (initdata.InitData, error) {
	if maxAge <= 0 {
		maxAge = DefaultInitDataTTL
	}

	vals, err := url.ParseQuery(raw)
	if err != nil {
		return initdata.InitData{}, fmt.Errorf("invalid initData format: %w", err)
	}
	authDateUnix, err := strconv.ParseInt(vals.Get("auth_date"), 10, 64)
	if err != nil {
		return initdata.InitData{}, fmt.Errorf("auth_date is missing or not a unix timestamp")
	}
	// clock skew up to 1 minute
	if time.Unix(authDateUnix, 0).After(time.Now().Add(1 * time.Minute)) {
		return initdata.InitData{}, fmt.Errorf("auth_date is in the future")
	}

	if err := initdata.Validate(raw, botToken, maxAge); err != nil {
		return initdata.InitData{}, fmt.Errorf("initData rejected: %w", err)
	}

	return initdata.Parse(raw)
}

// ParseInitDataUser extracts the Telegram user without checking the signature.
// Only the server can validate initData; the client uses this for logging.
func ParseInitDataUser(raw string) (initdata.User, error) {
	data, err := initdata.Parse(raw)
	if err != nil {
		return initdata.User{}, fmt.Errorf("invalid initData: %w", err)
	}
	return data.User, nil
}

// SignInitData builds initData signed with botToken the same way Telegram does.
func SignInitData(botToken string, authDate time.Time, fields map[string]string) string {
	params := url.Values{}
	params.Set("auth_date", strconv.FormatInt(authDate.Unix(), 10))
	for k, v := range fields {
		params.Set(k, v)
	}

	var pairs []string
	for key, values := range params {
		for _, v := range values {
			pairs = append(pairs, fmt.Sprintf("%s=%s", key, v))
		}
	}
	sort.Strings(pairs)
	dataCheckString := strings.Join(pairs, "\n")

	// secret_key = HMAC-SHA256("WebAppData", bot_token)
	secretKey := hmacSHA256([]byte("WebAppData"), []byte(botToken))
	hash := hmacSHA256(secretKey, []byte(dataCheckString))
	params.Set("hash", hex.EncodeToString(hash))

	return params.Encode()
}

func hmacSHA256(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}
