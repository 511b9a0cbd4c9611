package locale

import (
	"strings"
	"testing"
	"time"
)

func TestIn_MembershipCodes(t *testing.T) {
	t.Parallel()

	for code, want := range map[string]string{
		"EN": "EN",
		"ES": "ES",
		"FR": "FR",
		"DE": "DE",
	} {
		if got := In(code).Code(); got != want {
			t.Fatalf("In(%q).Code() = %q, want %q", code, got, want)
		}
	}
}

func TestIn_Bcp47TagsMatch(t *testing.T) {
	t.Parallel()

	if got := In("fr-CA").Code(); got != "FR" {
		t.Fatalf("expected fr-CA to match FR, got %q", got)
	}
	if got := In("es-419").Code(); got != "ES" {
		t.Fatalf("expected es-419 to match ES, got %q", got)
	}
}

func TestIn_FallsBackToEnglish(t *testing.T) {
	t.Parallel()

	if got := In("").Code(); got != "EN" {
		t.Fatalf("expected empty language to fall back to EN, got %q", got)
	}
	if got := In("not a tag").Code(); got != "EN" {
		t.Fatalf("expected garbage to fall back to EN, got %q", got)
	}
}

func TestHotlinePrefix(t *testing.T) {
	t.Parallel()

	if got := In("EN").HotlinePrefix(7); got != "HOTLINE #7" {
		t.Fatalf("unexpected prefix: %q", got)
	}
	if got := In("ES").HotlinePrefix(3); got != "LÍNEA DIRECTA #3" {
		t.Fatalf("unexpected spanish prefix: %q", got)
	}
}

func TestDeauthorization_IncludesReAddInstructions(t *testing.T) {
	t.Parallel()

	for _, code := range []string{"EN", "ES", "FR", "DE"} {
		alert := In(code).Deauthorization("+15552220000")
		if !strings.Contains(alert, "ADD +15552220000") {
			t.Fatalf("%s alert missing re-add instructions: %q", code, alert)
		}
		if !strings.Contains(alert, "+15552220000") {
			t.Fatalf("%s alert missing member number", code)
		}
	}
}

func TestRateLimitMessages(t *testing.T) {
	t.Parallel()

	msg := In("EN").RateLimitRetrying("+15550001111", 8*time.Second)
	if !strings.Contains(msg, "+15550001111") || !strings.Contains(msg, "8 seconds") {
		t.Fatalf("unexpected retry message: %q", msg)
	}

	msg = In("EN").RateLimitAbandoned("+15550001111")
	if !strings.Contains(msg, "dropped") {
		t.Fatalf("unexpected abandonment message: %q", msg)
	}
}

func TestHotlineDisabled_DistinguishesSubscribers(t *testing.T) {
	t.Parallel()

	sub := In("EN").HotlineDisabled(true)
	other := In("EN").HotlineDisabled(false)
	if sub == other {
		t.Fatalf("expected distinct notices for subscribers and strangers")
	}
}
