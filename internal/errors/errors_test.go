package errors

import (
	"errors"
	"fmt"
	"reflect"
	"testing"
)

type ping struct{}

// -----------------------------------------------------------------------------
// Severity Tests
// -----------------------------------------------------------------------------

func TestSeverity_String(t *testing.T) {
	tests := []struct {
		severity Severity
		want     string
	}{
		{SeverityWarning, "warning"},
		{SeverityError, "error"},
		{SeverityCritical, "critical"},
		{Severity(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.severity.String(); got != tt.want {
				t.Errorf("Severity.String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSeverityOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Severity
	}{
		{"nil", nil, SeverityWarning},
		{"plain", New("boom"), SeverityWarning},
		{"fatal", Fatal(New("boom")), SeverityCritical},
		{"invalid argument", fmt.Errorf("mailbox: %w", ErrInvalidArgument), SeverityError},
		{"no such subscription", NewSubscriptionError("unsubscribe", ErrNoSuchSubscription), SeverityError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SeverityOf(tt.err); got != tt.want {
				t.Errorf("SeverityOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

// -----------------------------------------------------------------------------
// Fatal Tests
// -----------------------------------------------------------------------------

func TestFatal(t *testing.T) {
	cause := New("inbox closed")
	err := Fatal(cause)

	if !IsFatal(err) {
		t.Error("IsFatal(Fatal(err)) = false, want true")
	}
	if !errors.Is(err, cause) {
		t.Error("Fatal should keep the cause reachable through errors.Is")
	}
	if err.Error() != "inbox closed" {
		t.Errorf("Error() = %q, want %q", err.Error(), "inbox closed")
	}
	if IsFatal(cause) {
		t.Error("IsFatal(plain) = true, want false")
	}
}

func TestFatal_Nil(t *testing.T) {
	if Fatal(nil) != nil {
		t.Error("Fatal(nil) should be nil")
	}
}

func TestFatal_Idempotent(t *testing.T) {
	err := Fatal(New("x"))
	if Fatal(err) != err {
		t.Error("Fatal should not re-wrap an already fatal error")
	}
}

func TestFatal_WrappedByCaller(t *testing.T) {
	err := fmt.Errorf("mailbox 7: %w", Fatal(New("x")))
	if !IsFatal(err) {
		t.Error("IsFatal should see through caller wrapping")
	}
}

func TestFatal_As(t *testing.T) {
	inner := NewSubscriptionError("subscribe", ErrInvalidArgument)
	err := Fatal(inner)

	var subErr *SubscriptionError
	if !errors.As(err, &subErr) {
		t.Fatal("errors.As should find the wrapped SubscriptionError")
	}
	if subErr != inner {
		t.Error("errors.As returned a different SubscriptionError")
	}
}

// -----------------------------------------------------------------------------
// SubscriptionError Tests
// -----------------------------------------------------------------------------

func TestSubscriptionError_Error(t *testing.T) {
	typ := reflect.TypeFor[ping]()

	tests := []struct {
		name string
		err  *SubscriptionError
		want string
	}{
		{
			name: "op and type",
			err:  NewSubscriptionError("unsubscribe", ErrNoSuchSubscription).WithMessageType(typ),
			want: "subscription error [op=unsubscribe, type=errors.ping]: no such subscription",
		},
		{
			name: "op only",
			err:  NewSubscriptionError("subscribe", ErrInvalidArgument),
			want: "subscription error [op=subscribe]: invalid argument",
		},
		{
			name: "bare",
			err:  &SubscriptionError{},
			want: "subscription error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSubscriptionError_Is(t *testing.T) {
	err := NewSubscriptionError("unsubscribe", ErrNoSuchSubscription)
	if !errors.Is(err, ErrNoSuchSubscription) {
		t.Error("errors.Is(err, ErrNoSuchSubscription) = false, want true")
	}
	if errors.Is(err, ErrInvalidArgument) {
		t.Error("errors.Is(err, ErrInvalidArgument) = true, want false")
	}
}

// -----------------------------------------------------------------------------
// DeliveryError Tests
// -----------------------------------------------------------------------------

func TestDeliveryError(t *testing.T) {
	cause := Fatal(New("disk full"))
	err := NewDeliveryError(reflect.TypeFor[ping](), 2, cause)

	want := "delivery aborted [type=errors.ping, attempt=2]: disk full"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if !IsFatal(err) {
		t.Error("DeliveryError should report the fatal cause")
	}
	if err.Severity() != SeverityCritical {
		t.Errorf("Severity() = %v, want %v", err.Severity(), SeverityCritical)
	}
	if errors.Unwrap(err) != cause {
		t.Error("Unwrap should return the cause")
	}
}
