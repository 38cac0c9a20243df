package shopify

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var ErrNotConfigured = errors.New("shopify: store domain or access token not configured")

// Category is the coarse class of a remote failure surfaced to callers.
type Category string

const (
	CategoryUnauthorized  Category = "unauthorized"
	CategoryStoreNotFound Category = "store_not_found"
	CategoryRateLimited   Category = "rate_limited"
	CategoryNotConfigured Category = "not_configured"
	CategoryOther         Category = "other"
)

type HTTPError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("shopify request failed: %s", e.Status)
	}
	return fmt.Sprintf("shopify request failed: %s: %s", e.Status, e.Body)
}

type GraphQLErrors struct {
	Errors []GraphQLError
}

func (e *GraphQLErrors) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		parts = append(parts, strings.TrimSpace(err.Message))
	}
	return "shopify graphql errors: " + strings.Join(parts, "; ")
}

func (e *GraphQLErrors) throttled() bool {
	for _, err := range e.Errors {
		if code, ok := err.Extensions["code"].(string); ok && strings.EqualFold(code, "THROTTLED") {
			return true
		}
	}
	return false
}

// UserErrors carries the userErrors list of a mutation payload.
type UserErrors struct {
	Action string
	Errors []userError
}

func (e *UserErrors) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, ue := range e.Errors {
		msg := strings.TrimSpace(ue.Message)
		if len(ue.Field) > 0 {
			msg = strings.Join(ue.Field, ".") + ": " + msg
		}
		parts = append(parts, msg)
	}
	if len(parts) == 0 {
		return fmt.Sprintf("shopify %s failed with user errors", e.Action)
	}
	return fmt.Sprintf("shopify %s failed: %s", e.Action, strings.Join(parts, "; "))
}

func userErrorsToError(action string, errs []userError) error {
	if len(errs) == 0 {
		return nil
	}
	return &UserErrors{Action: action, Errors: errs}
}

// Categorize maps err to a coarse category. Typed errors are inspected first,
// then the message is matched against known phrases.
func Categorize(err error) Category {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrNotConfigured) {
		return CategoryNotConfigured
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		switch httpErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return CategoryUnauthorized
		case http.StatusNotFound:
			return CategoryStoreNotFound
		case http.StatusTooManyRequests:
			return CategoryRateLimited
		}
	}
	var gqlErr *GraphQLErrors
	if errors.As(err, &gqlErr) && gqlErr.throttled() {
		return CategoryRateLimited
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "401"), strings.Contains(msg, "unauthorized"),
		strings.Contains(msg, "access denied"), strings.Contains(msg, "invalid api key"):
		return CategoryUnauthorized
	case strings.Contains(msg, "404"), strings.Contains(msg, "not found"):
		return CategoryStoreNotFound
	case strings.Contains(msg, "429"), strings.Contains(msg, "throttled"), strings.Contains(msg, "rate limit"):
		return CategoryRateLimited
	}
	return CategoryOther
}

// Describe renders err as a message suitable for API responses.
func Describe(err error) string {
	switch Categorize(err) {
	case CategoryUnauthorized:
		return "Shopify authorization failed: check the access token and its discount scopes"
	case CategoryStoreNotFound:
		return "Shopify store or resource not found: check the store domain"
	case CategoryRateLimited:
		return "Shopify rate limit reached: try again shortly"
	case CategoryNotConfigured:
		return "Shopify is not configured"
	case "":
		return ""
	}
	return "Shopify request failed: " + err.Error()
}
