package domain

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestUser_SafeStripsHash(t *testing.T) {
	u := &User{ID: "u1", Email: "a@x.com", Username: "alice", PasswordHash: "$2a$10$secret"}
	pub := u.Safe()
	b, err := json.Marshal(pub)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if strings.Contains(string(b), "secret") || strings.Contains(strings.ToLower(string(b)), "password") {
		t.Errorf("sanitized user leaked credential material: %s", b)
	}
	if pub.Roles == nil {
		t.Error("Roles should be an empty slice, not nil")
	}
	var nilUser *User
	if nilUser.Safe() != nil {
		t.Error("Safe on nil user should return nil")
	}
}

func TestUser_Validate(t *testing.T) {
	testCases := []struct {
		name    string
		user    User
		wantErr bool
	}{
		{"valid", User{Email: "a@x.com", Username: "al", PasswordHash: "h"}, false},
		{"missing email", User{Username: "al", PasswordHash: "h"}, true},
		{"short username", User{Email: "a@x.com", Username: "a", PasswordHash: "h"}, true},
		{"long username", User{Email: "a@x.com", Username: strings.Repeat("a", 33), PasswordHash: "h"}, true},
		{"missing hash", User{Email: "a@x.com", Username: "al"}, true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.user.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() err = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  A@X.Com "); got != "a@x.com" {
		t.Errorf("NormalizeEmail = %q, want a@x.com", got)
	}
}
