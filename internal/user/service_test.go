package user

import (
	"context"
	"strings"
	"testing"
)

func TestRegisterRejectsUnknownRole(t *testing.T) {
	svc := NewService(nil)
	_, err := svc.Register(context.Background(), RegisterInput{
		Name:       "A Student",
		Email:      "a@example.com",
		Password:   "correct-horse",
		Role:       "superuser",
		RollNumber: "R-1",
	})
	if err == nil || !strings.Contains(err.Error(), "unknown role") {
		t.Fatalf("err = %v, want unknown role", err)
	}
}
