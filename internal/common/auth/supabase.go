// internal/common/auth/supabase.go
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"dealflow-workers/internal/common/errors"
	commonhttp "dealflow-workers/internal/common/http"
)

// SupabaseClient talks to the GoTrue admin API with the project's
// service-role key. The key is a static credential, so unlike an OAuth
// client there is no token exchange or refresh to manage.
type SupabaseClient struct {
	projectURL     string
	serviceRoleKey string
	httpClient     *commonhttp.Client
}

// AdminUser is the subset of the GoTrue admin user object we read.
// Role assignments for staff live in app_metadata, which only the
// admin API can write; the top-level role is the Postgres role name.
type AdminUser struct {
	ID           string                 `json:"id"`
	Email        string                 `json:"email"`
	Role         string                 `json:"role"`
	AppMetadata  map[string]interface{} `json:"app_metadata"`
	UserMetadata map[string]interface{} `json:"user_metadata"`
	CreatedAt    time.Time              `json:"created_at"`
}

// NewSupabaseClient creates a client for the GoTrue admin API.
// timeout guards every request; role lookups sit on the hot path of
// state-sync workers, so keep it short.
func NewSupabaseClient(projectURL, serviceRoleKey string, timeout time.Duration) *SupabaseClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &SupabaseClient{
		projectURL:     strings.TrimSuffix(projectURL, "/"),
		serviceRoleKey: serviceRoleKey,
		httpClient:     commonhttp.NewClient(timeout),
	}
}

// GetUser retrieves a user by their unique ID via the admin endpoint.
func (s *SupabaseClient) GetUser(ctx context.Context, userID string) (*AdminUser, error) {
	userURL := fmt.Sprintf("%s/auth/v1/admin/users/%s", s.projectURL, userID)

	req, err := http.NewRequestWithContext(ctx, "GET", userURL, nil)
	if err != nil {
		return nil, &errors.StandardError{
			Code:      "HTTP_REQUEST_ERROR",
			Message:   "Failed to create admin user request",
			Details:   err.Error(),
			Retryable: false,
		}
	}

	// GoTrue wants the key both as apikey and as the bearer token.
	req.Header.Set("apikey", s.serviceRoleKey)
	req.Header.Set("Authorization", "Bearer "+s.serviceRoleKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, &errors.StandardError{
			Code:      "NETWORK_ERROR",
			Message:   "Failed to send admin user request",
			Details:   err.Error(),
			Retryable: true,
		}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decode
	case resp.StatusCode == http.StatusNotFound:
		return nil, &errors.StandardError{
			Code:      "USER_NOT_FOUND",
			Message:   "User not found",
			Details:   fmt.Sprintf("No auth user with id: %s", userID),
			Retryable: false,
		}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		// A rejected service-role key never fixes itself on retry.
		body, _ := io.ReadAll(resp.Body)
		return nil, &errors.StandardError{
			Code:      "AUTH_LOOKUP_FAILED",
			Message:   "Admin API rejected the service-role key",
			Details:   fmt.Sprintf("Status: %d, Body: %s", resp.StatusCode, string(body)),
			Retryable: false,
		}
	default:
		body, _ := io.ReadAll(resp.Body)
		return nil, &errors.StandardError{
			Code:      "AUTH_LOOKUP_FAILED",
			Message:   "Admin API error during user retrieval",
			Details:   fmt.Sprintf("Status: %d, Body: %s", resp.StatusCode, string(body)),
			Retryable: s.isTransientHTTPError(resp.StatusCode),
		}
	}

	var user AdminUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, &errors.StandardError{
			Code:      "DESERIALIZATION_ERROR",
			Message:   "Failed to decode admin user response",
			Details:   err.Error(),
			Retryable: false,
		}
	}

	return &user, nil
}

// GetUserRole resolves the effective role for a user. app_metadata.role
// wins over the top-level Postgres role because that is where staff
// roles are assigned.
func (s *SupabaseClient) GetUserRole(ctx context.Context, userID string) (string, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return "", err
	}

	if user.AppMetadata != nil {
		if role, ok := user.AppMetadata["role"].(string); ok && role != "" {
			return role, nil
		}
	}

	return user.Role, nil
}

// IsAdmin reports whether the user may perform privileged state changes.
func (s *SupabaseClient) IsAdmin(ctx context.Context, userID string) (bool, error) {
	role, err := s.GetUserRole(ctx, userID)
	if err != nil {
		return false, err
	}

	switch role {
	case "admin", "service_role":
		return true, nil
	default:
		return false, nil
	}
}

// isTransientHTTPError returns true if the HTTP status code indicates a potentially transient error.
func (s *SupabaseClient) isTransientHTTPError(statusCode int) bool {
	switch statusCode {
	case http.StatusInternalServerError, // 500
		http.StatusBadGateway,         // 502
		http.StatusServiceUnavailable, // 503
		http.StatusGatewayTimeout:     // 504
		return true
	default:
		return false
	}
}
