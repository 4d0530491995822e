package llm

import (
	"errors"
	"testing"
)

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"authentication", &AuthenticationError{}, false},
		{"invalid request", &InvalidRequestError{}, false},
		{"context length", &ContextLengthError{}, false},
		{"configuration", &ConfigurationError{}, false},
		{"rate limit", &RateLimitError{}, true},
		{"server", &ServerError{}, true},
		{"network", &NetworkError{}, true},
		{"request timeout", &RequestTimeoutError{}, true},
		{"unknown", errors.New("mystery"), true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsRetryable(tc.err); got != tc.want {
				t.Errorf("IsRetryable(%T) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestClientErrorUnwrap(t *testing.T) {
	cause := errors.New("underlying")
	err := &NetworkError{ClientError: ClientError{Message: "connection refused", Cause: cause}}

	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause")
	}
	if err.Error() != "connection refused: underlying" {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestProviderErrorMessage(t *testing.T) {
	err := &RateLimitError{ProviderError: ProviderError{
		ClientError: ClientError{Message: "slow down"},
		Provider:    "openai",
		StatusCode:  429,
		Retryable:   true,
	}}
	want := "[openai] slow down (status=429, retryable=true)"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}
