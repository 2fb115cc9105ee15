package instance

import "testing"

func TestGetIDPrefersEnv(t *testing.T) {
	t.Setenv("GIFTSHOP_WORKER_ID", "mailer-2")
	if got := GetID(); got != "mailer-2" {
		t.Fatalf("expected mailer-2, got %q", got)
	}
}

func TestGetIDFallsBack(t *testing.T) {
	t.Setenv("GIFTSHOP_WORKER_ID", "")
	if got := GetID(); got == "" {
		t.Fatalf("expected non-empty id")
	}
}
