package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/sla-escalation-service/internal/domain"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", time.Hour)
	role := domain.StaffRoleSupervisor

	token, exp, err := tm.GenerateToken("staff-1", domain.SubjectTypeStaff, &role)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if time.Until(exp) <= 0 {
		t.Fatalf("expiry %s is not in the future", exp)
	}

	claims, err := tm.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.SubjectID != "staff-1" || claims.Subject != domain.SubjectTypeStaff {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.Role == nil || *claims.Role != role {
		t.Fatalf("role = %v, want %s", claims.Role, role)
	}
}

func TestParseTokenRejectsForeignSecret(t *testing.T) {
	token, _, err := NewTokenManager("one", time.Hour).GenerateToken("staff-1", domain.SubjectTypeStaff, nil)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := NewTokenManager("two", time.Hour).ParseToken(token); err == nil {
		t.Fatalf("expected signature failure")
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	issued := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	tm := NewTokenManager("secret", time.Hour)
	tm.now = func() time.Time { return issued }
	token, _, err := tm.GenerateToken("staff-1", domain.SubjectTypeStaff, nil)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := tm.ParseToken(token); err != nil {
		t.Fatalf("fresh token rejected: %v", err)
	}

	tm.now = func() time.Time { return issued.Add(61 * time.Minute) }
	if _, err := tm.ParseToken(token); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}

func TestParseTokenRejectsForeignIssuer(t *testing.T) {
	claims := &Claims{
		SubjectID: "staff-1",
		Subject:   domain.SubjectTypeStaff,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "another-service",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := NewTokenManager("secret", time.Hour).ParseToken(token); err == nil {
		t.Fatalf("expected issuer mismatch to be rejected")
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse", 4)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if err := ComparePassword(hash, "correct horse"); err != nil {
		t.Fatalf("ComparePassword: %v", err)
	}
	if err := ComparePassword(hash, "wrong"); err == nil {
		t.Fatalf("expected mismatch")
	}
}

func TestValidatePassword(t *testing.T) {
	cases := []struct {
		password string
		want     error
	}{
		{"short", ErrPasswordTooShort},
		{"eight ch", nil},
		{strings.Repeat("a", 72), nil},
		{strings.Repeat("a", 73), ErrPasswordTooLong},
		{strings.Repeat("é", 7), ErrPasswordTooShort},
	}
	for _, tc := range cases {
		if err := ValidatePassword(tc.password); !errors.Is(err, tc.want) {
			t.Fatalf("ValidatePassword(%q) = %v, want %v", tc.password, err, tc.want)
		}
	}
	if _, err := HashPassword("short", 4); !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("HashPassword accepted a short password: %v", err)
	}
}
