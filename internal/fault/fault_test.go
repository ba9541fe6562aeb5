package fault

import (
	"errors"
	"fmt"
	"testing"
)

func TestExitCode(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: 0},
		{name: "plain", err: errors.New("x"), want: 1},
		{name: "validation", err: New(KindValidation, "parse", "bad date %q", "2025/01/01"), want: 2},
		{name: "fetch", err: Wrap(KindFetch, "download", errors.New("empty")), want: 3},
		{name: "output", err: Wrap(KindOutput, "write", errors.New("disk full")), want: 4},
		{name: "policy", err: New(KindPolicy, "gate", "denied"), want: 5},
		{name: "merge precondition", err: New(KindMergePrecondition, "merge", "no date"), want: 1},
		{name: "wrapped twice", err: fmt.Errorf("run: %w", Wrap(KindOutput, "write", errors.New("x"))), want: 4},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ExitCode(tc.err); got != tc.want {
				t.Fatalf("ExitCode=%d want %d", got, tc.want)
			}
		})
	}
}

func TestErrorMessageAndUnwrap(t *testing.T) {
	inner := errors.New("boom")
	err := Wrap(KindFetch, "price", inner)
	if err.Error() != "price: boom" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if !errors.Is(err, inner) {
		t.Fatalf("expected errors.Is to reach inner error")
	}
	if Wrap(KindFetch, "x", nil) != nil {
		t.Fatalf("wrapping nil must yield nil")
	}
	if !Is(err, KindFetch) || Is(err, KindOutput) {
		t.Fatalf("Is mismatch")
	}
	if KindFetch.String() != "DownloadError" {
		t.Fatalf("unexpected kind name %s", KindFetch)
	}
}
