package tracking

import (
	"errors"
	"net/http"
	"strings"
	"testing"
)

func TestAPIErrorUnwrap(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusNotFound, ErrNotFound},
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusForbidden, ErrForbidden},
		{http.StatusInternalServerError, ErrUnexpectedAPI},
	}
	for _, tc := range cases {
		err := error(&APIError{StatusCode: tc.status})
		if !errors.Is(err, tc.want) {
			t.Fatalf("status %d: errors.Is(%v) = false", tc.status, tc.want)
		}
	}
}

func TestAPIErrorMessage(t *testing.T) {
	err := &APIError{StatusCode: 404, ErrorCode: "RESOURCE_DOES_NOT_EXIST", Message: "Run 'abc' not found"}
	if !strings.Contains(err.Error(), "RESOURCE_DOES_NOT_EXIST") || !strings.Contains(err.Error(), "Run 'abc' not found") {
		t.Fatalf("Error()=%q", err.Error())
	}
	bodyOnly := &APIError{StatusCode: 502, Body: " bad gateway \n"}
	if got := bodyOnly.Error(); got != "tracking api error (status=502): bad gateway" {
		t.Fatalf("Error()=%q", got)
	}
}
