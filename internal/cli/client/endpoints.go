package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// Health calls the unauthenticated liveness probe
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var out HealthResponse
	if err := c.do(ctx, http.MethodGet, "/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login authenticates the user and returns a JWT token
func (c *Client) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	var out LoginResponse
	opts := RequestOptions{Method: http.MethodPost, Body: req, SkipUnauthorizedHook: true}
	if err := c.send(ctx, "/api/login", opts, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Register creates an account
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*UserResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	var out UserResponse
	opts := RequestOptions{Method: http.MethodPost, Body: req, SkipUnauthorizedHook: true}
	if err := c.send(ctx, "/api/register", opts, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Verify checks that the current token is still accepted
func (c *Client) Verify(ctx context.Context) (*VerifyResponse, error) {
	var out VerifyResponse
	if err := c.do(ctx, http.MethodGet, "/api/verify", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Profile returns the authenticated user
func (c *Client) Profile(ctx context.Context) (*User, error) {
	var out UserResponse
	if err := c.do(ctx, http.MethodGet, "/api/profile", nil, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// UpdateProfile changes the caller's email and/or password
func (c *Client) UpdateProfile(ctx context.Context, req UpdateProfileRequest) (*User, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	var out UserResponse
	if err := c.do(ctx, http.MethodPut, "/api/profile", req, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// Logout revokes the current token
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
}

// LogoutAll revokes every token issued to the caller
func (c *Client) LogoutAll(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/auth/logout-all", nil, nil)
}

// RevokeToken blacklists a token. Only admins may revoke other users' tokens.
func (c *Client) RevokeToken(ctx context.Context, req RevokeTokenRequest) (*MessageResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	var out MessageResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/revoke-token", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SendVerificationEmail emails the caller a verification link
func (c *Client) SendVerificationEmail(ctx context.Context) (*VerificationSent, error) {
	var out VerificationSent
	if err := c.do(ctx, http.MethodPost, "/api/auth/send-verification", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// EmailStatus reports whether the caller's email is verified
func (c *Client) EmailStatus(ctx context.Context) (*EmailStatus, error) {
	var out EmailStatus
	if err := c.do(ctx, http.MethodGet, "/api/auth/email-status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyEmail consumes a verification token from an emailed link
func (c *Client) VerifyEmail(ctx context.Context, token string) (*MessageResponse, error) {
	req := struct {
		Token string `json:"token" validate:"required"`
	}{Token: token}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	var out MessageResponse
	opts := RequestOptions{Query: url.Values{"token": {token}}, SkipUnauthorizedHook: true}
	if err := c.send(ctx, "/api/auth/verify", opts, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetupTwoFactor creates or returns the pending TOTP secret
func (c *Client) SetupTwoFactor(ctx context.Context) (*TwoFactorSetup, error) {
	var out TwoFactorSetup
	if err := c.do(ctx, http.MethodPost, "/api/auth/2fa/setup", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// EnableTwoFactor confirms enrollment with a code from the authenticator
func (c *Client) EnableTwoFactor(ctx context.Context, otp string) (*MessageResponse, error) {
	return c.otpCall(ctx, "/api/auth/2fa/enable", otp)
}

// DisableTwoFactor turns 2FA off
func (c *Client) DisableTwoFactor(ctx context.Context, otp string) (*MessageResponse, error) {
	return c.otpCall(ctx, "/api/auth/2fa/disable", otp)
}

func (c *Client) otpCall(ctx context.Context, path, otp string) (*MessageResponse, error) {
	req := otpRequest{OTP: otp}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	var out MessageResponse
	if err := c.do(ctx, http.MethodPost, path, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// TwoFactorStatus reports whether 2FA is on for the caller
func (c *Client) TwoFactorStatus(ctx context.Context) (*TwoFactorStatus, error) {
	var out TwoFactorStatus
	if err := c.do(ctx, http.MethodGet, "/api/auth/2fa/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SystemMetrics fetches the dashboard metrics
func (c *Client) SystemMetrics(ctx context.Context) (*SystemMetrics, error) {
	var out SystemMetrics
	if err := c.do(ctx, http.MethodGet, "/api/system/metrics", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListDecisions returns decisions, optionally filtered by status
func (c *Client) ListDecisions(ctx context.Context, status string) ([]Decision, error) {
	opts := RequestOptions{}
	if status != "" {
		opts.Query = url.Values{"status": {status}}
	}
	resp, err := c.Request(ctx, "/api/decisions", opts)
	if err != nil {
		return nil, err
	}
	var out struct {
		Decisions []Decision `json:"decisions"`
	}
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	return out.Decisions, nil
}

// GetDecision returns one decision
func (c *Client) GetDecision(ctx context.Context, id string) (*Decision, error) {
	var out DecisionResponse
	if err := c.do(ctx, http.MethodGet, "/api/decisions/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out.Decision, nil
}

// CreateDecision proposes a new decision (admin only)
func (c *Client) CreateDecision(ctx context.Context, req CreateDecisionRequest) (*Decision, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	var out DecisionResponse
	if err := c.do(ctx, http.MethodPost, "/api/decisions", req, &out); err != nil {
		return nil, err
	}
	return &out.Decision, nil
}

// ApproveDecision approves a pending decision
func (c *Client) ApproveDecision(ctx context.Context, id, comment string) (*Decision, error) {
	return c.review(ctx, id, "approve", comment)
}

// RejectDecision rejects a pending decision
func (c *Client) RejectDecision(ctx context.Context, id, comment string) (*Decision, error) {
	return c.review(ctx, id, "reject", comment)
}

func (c *Client) review(ctx context.Context, id, verb, comment string) (*Decision, error) {
	req := reviewRequest{Comment: comment}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	var out DecisionResponse
	path := "/api/decisions/" + url.PathEscape(id) + "/" + verb
	if err := c.do(ctx, http.MethodPost, path, req, &out); err != nil {
		return nil, err
	}
	return &out.Decision, nil
}

// ListUsers returns every account (admin only)
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	var out struct {
		Users []User `json:"users"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/admin/users", nil, &out); err != nil {
		return nil, err
	}
	return out.Users, nil
}

// GetUser returns one account (admin only)
func (c *Client) GetUser(ctx context.Context, id string) (*User, error) {
	var out UserResponse
	if err := c.do(ctx, http.MethodGet, "/api/admin/users/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// UpdateUserRole sets a user's role (admin only)
func (c *Client) UpdateUserRole(ctx context.Context, id, role string) (*User, error) {
	req := struct {
		Role string `json:"role" validate:"required,oneof=admin user"`
	}{Role: role}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	var out UserResponse
	if err := c.do(ctx, http.MethodPut, "/api/admin/users/"+url.PathEscape(id)+"/role", req, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// UpdateUserStatus activates or deactivates a user (admin only)
func (c *Client) UpdateUserStatus(ctx context.Context, id string, active bool) (*User, error) {
	req := struct {
		IsActive bool `json:"is_active"`
	}{IsActive: active}
	var out UserResponse
	if err := c.do(ctx, http.MethodPut, "/api/admin/users/"+url.PathEscape(id)+"/status", req, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// ListBlacklist returns one page of revoked tokens (admin only)
func (c *Client) ListBlacklist(ctx context.Context, page, perPage int) (*BlacklistPage, error) {
	resp, err := c.Request(ctx, "/api/admin/blacklist", RequestOptions{Query: pageQuery(page, perPage)})
	if err != nil {
		return nil, err
	}
	var out BlacklistPage
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CleanupBlacklist purges expired revocations (admin only)
func (c *Client) CleanupBlacklist(ctx context.Context) (*CleanupResponse, error) {
	var out CleanupResponse
	if err := c.do(ctx, http.MethodPost, "/api/admin/blacklist/cleanup", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListAuditLogs returns one page of the audit log (admin only)
func (c *Client) ListAuditLogs(ctx context.Context, filter AuditFilter) (*AuditPage, error) {
	if err := validateRequest(filter); err != nil {
		return nil, err
	}

	query := pageQuery(filter.Page, filter.PerPage)
	for key, value := range map[string]string{
		"action":     filter.Action,
		"user_id":    filter.UserID,
		"status":     filter.Status,
		"start_date": filter.StartDate,
		"end_date":   filter.EndDate,
	} {
		if value != "" {
			query.Set(key, value)
		}
	}

	resp, err := c.Request(ctx, "/api/admin/audit-logs", RequestOptions{Query: query})
	if err != nil {
		return nil, err
	}
	var out AuditPage
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MyAuditLogs returns one page of the caller's own audit entries
func (c *Client) MyAuditLogs(ctx context.Context, action string, page, perPage int) (*AuditPage, error) {
	query := pageQuery(page, perPage)
	if action != "" {
		query.Set("action", action)
	}
	resp, err := c.Request(ctx, "/api/audit-logs/my", RequestOptions{Query: query})
	if err != nil {
		return nil, err
	}
	var out AuditPage
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AuditStats summarizes the last days days of the audit log (admin only).
// days <= 0 uses the server default.
func (c *Client) AuditStats(ctx context.Context, days int) (*AuditStats, error) {
	opts := RequestOptions{}
	if days > 0 {
		opts.Query = url.Values{"days": {strconv.Itoa(days)}}
	}
	resp, err := c.Request(ctx, "/api/admin/audit-logs/stats", opts)
	if err != nil {
		return nil, err
	}
	var out AuditStats
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CleanupAuditLogs deletes entries older than days (admin only).
// days <= 0 uses the server default.
func (c *Client) CleanupAuditLogs(ctx context.Context, days int) (*CleanupResponse, error) {
	var body any
	if days > 0 {
		body = map[string]int{"days": days}
	}
	var out CleanupResponse
	if err := c.do(ctx, http.MethodPost, "/api/admin/audit-logs/cleanup", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ExportAuditLogs exports entries as JSON or CSV (admin only)
func (c *Client) ExportAuditLogs(ctx context.Context, req ExportAuditLogsRequest) (*AuditExport, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	var out AuditExport
	if err := c.do(ctx, http.MethodPost, "/api/admin/audit-logs/export", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func pageQuery(page, perPage int) url.Values {
	query := url.Values{}
	if page > 0 {
		query.Set("page", strconv.Itoa(page))
	}
	if perPage > 0 {
		query.Set("per_page", strconv.Itoa(perPage))
	}
	return query
}
