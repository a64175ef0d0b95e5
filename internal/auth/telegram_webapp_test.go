package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"
)

const testBotToken = "test-bot-token-12345"

func TestValidateInitData_ValidHash(t *testing.T) {
	initData := SignInitData(testBotToken, time.Now().Add(-30*time.Second), map[string]string{
		"query_id": "test_query_id",
		"user":     `{"id":123456,"first_name":"Test","username":"testuser"}`,
	})

	data, err := ValidateInitData(initData, testBotToken, 5*time.Minute)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if data.User.ID != 123456 {
		t.Errorf("expected user id 123456, got %d", data.User.ID)
	}
	if data.User.Username != "testuser" {
		t.Errorf("expected username testuser, got %s", data.User.Username)
	}
}

func TestValidateInitData_ExpiredAuthDate(t *testing.T) {
	// 10 minutes old with a 5 minute window
	initData := SignInitData(testBotToken, time.Now().Add(-10*time.Minute), map[string]string{
		"user": `{"id":123456}`,
	})

	_, err := ValidateInitData(initData, testBotToken, 5*time.Minute)
	if err == nil {
		t.Fatal("expected error for expired initData")
	}
}

func TestValidateInitData_FutureAuthDate(t *testing.T) {
	initData := SignInitData(testBotToken, time.Now().Add(5*time.Minute), map[string]string{
		"user": `{"id":123456}`,
	})

	_, err := ValidateInitData(initData, testBotToken, 5*time.Minute)
	if err == nil {
		t.Fatal("expected error for future auth_date")
	}
	if !strings.Contains(err.Error(), "future") {
		t.Errorf("expected 'future' in error, got: %s", err.Error())
	}
}

func TestValidateInitData_DefaultMaxAge(t *testing.T) {
	initData := SignInitData(testBotToken, time.Now().Add(-10*time.Second), map[string]string{
		"user": `{"id":123456}`,
	})

	if _, err := ValidateInitData(initData, testBotToken, 0); err != nil {
		t.Fatalf("expected no error with default maxAge, got: %v", err)
	}
}

func TestValidateInitData_WrongBotToken(t *testing.T) {
	initData := SignInitData(testBotToken, time.Now(), map[string]string{
		"user": `{"id":123456}`,
	})

	if _, err := ValidateInitData(initData, "another-token", 5*time.Minute); err == nil {
		t.Fatal("expected error for data signed with another token")
	}
}

func TestValidateInitData_InvalidHash(t *testing.T) {
	params := url.Values{}
	params.Set("auth_date", strconv.FormatInt(time.Now().Unix(), 10))
	params.Set("user", `{"id":123456}`)
	params.Set("hash", "invalidhash")

	if _, err := ValidateInitData(params.Encode(), testBotToken, 5*time.Minute); err == nil {
		t.Fatal("expected error for invalid hash")
	}
}

func TestValidateInitData_MissingAuthDate(t *testing.T) {
	params := url.Values{}
	params.Set("user", `{"id":123456}`)
	params.Set("hash", "somehash")

	if _, err := ValidateInitData(params.Encode(), "token", 5*time.Minute); err == nil {
		t.Fatal("expected error for missing auth_date")
	}
}

func TestParseInitDataUser(t *testing.T) {
	initData := SignInitData(testBotToken, time.Now(), map[string]string{
		"user": `{"id":777,"first_name":"Box","username":"boxer"}`,
	})

	user, err := ParseInitDataUser(initData)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if user.ID != 777 || user.Username != "boxer" {
		t.Errorf("unexpected user: %+v", user)
	}
}

func TestHmacSHA256(t *testing.T) {
	key := []byte("test-key")
	data := []byte("test-data")

	result := hmacSHA256(key, data)

	h := hmac.New(sha256.New, key)
	h.Write(data)
	expected := h.Sum(nil)

	if !hmac.Equal(result, expected) {
		t.Error("hmacSHA256 result doesn't match expected")
	}
}
