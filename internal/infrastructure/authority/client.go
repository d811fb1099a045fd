package authority

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/clinic/terminal/internal/domain/authority"
	"github.com/clinic/terminal/internal/domain/catalog"
	"github.com/clinic/terminal/internal/domain/identity"
	"github.com/clinic/terminal/internal/domain/patient"
	"github.com/clinic/terminal/internal/domain/shared"
	"github.com/clinic/terminal/internal/domain/syncqueue"
	"github.com/clinic/terminal/internal/infrastructure/config"
)

// maxResponseSize caps the body read from the central server (10MB)
const maxResponseSize = 10 * 1024 * 1024

// Client implements authority.Gateway against the central server's REST
// API. Transport failures are folded into shared.ErrConnectivityTimeout
// so callers feed a single error into the connectivity state machine.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new REST client for the central server
func NewClient(cfg *config.AuthorityConfig, logger *zap.Logger) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger.Named("authority"),
	}
}

// Health performs the cheap authenticated probe
func (c *Client) Health(ctx context.Context) error {
	var out struct {
		Status string `json:"status"`
	}
	return c.do(ctx, http.MethodGet, "/health", nil, &out)
}

// Login validates a credential against the central server
func (c *Client) Login(ctx context.Context, username, password string) (*identity.User, error) {
	body := map[string]string{"username": username, "password": password}
	var out struct {
		User struct {
			ID          string `json:"id"`
			Username    string `json:"username"`
			DisplayName string `json:"display_name"`
			Role        string `json:"role"`
			BranchID    string `json:"branch_id"`
		} `json:"user"`
	}
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, &out); err != nil {
		return nil, err
	}
	return &identity.User{
		RemoteID:    out.User.ID,
		Username:    identity.NormalizeUsername(out.User.Username),
		DisplayName: out.User.DisplayName,
		Role:        identity.Role(out.User.Role),
		BranchID:    out.User.BranchID,
	}, nil
}

// RequestRange reserves a fresh identifier block
func (c *Client) RequestRange(ctx context.Context, req authority.RangeRequest) (*authority.RangeGrant, error) {
	body := map[string]any{
		"kind":        string(req.Kind),
		"terminal_id": req.TerminalID,
		"branch_code": req.BranchCode,
		"size":        req.Size,
	}
	var out struct {
		AuthorityID string `json:"authority_id"`
		BatchID     string `json:"batch_id"`
		Prefix      string `json:"prefix"`
		Start       int64  `json:"range_start"`
		End         int64  `json:"range_end"`
	}
	if err := c.do(ctx, http.MethodPost, "/pools/request", body, &out); err != nil {
		return nil, err
	}

	c.logger.Info("range granted",
		zap.String("batch_id", out.BatchID),
		zap.Int64("start", out.Start),
		zap.Int64("end", out.End))

	return &authority.RangeGrant{
		AuthorityID: out.AuthorityID,
		BatchID:     out.BatchID,
		Prefix:      out.Prefix,
		Start:       out.Start,
		End:         out.End,
	}, nil
}

// ReportUsage reports the highest consumed value of a batch
func (c *Client) ReportUsage(ctx context.Context, batchID string, lastUsed int64) error {
	body := map[string]any{"batch_id": batchID, "last_used": lastUsed}
	return c.do(ctx, http.MethodPost, "/pools/usage", body, nil)
}

// ReturnRange gives the unused tail of a batch back to the server
func (c *Client) ReturnRange(ctx context.Context, batchID string, fromValue int64) error {
	body := map[string]any{"batch_id": batchID, "from_value": fromValue}
	return c.do(ctx, http.MethodPost, "/pools/return", body, nil)
}

// Push uploads one locally created record
func (c *Client) Push(ctx context.Context, entityType syncqueue.EntityType, payload []byte) (*authority.PushResult, error) {
	path := fmt.Sprintf("/sync/%s", url.PathEscape(string(entityType)))
	var out struct {
		ID string `json:"id"`
	}
	if err := c.doRaw(ctx, http.MethodPost, path, payload, &out); err != nil {
		return nil, err
	}
	return &authority.PushResult{RemoteID: out.ID}, nil
}

// FetchCatalog pulls the reference-data mirror
func (c *Client) FetchCatalog(ctx context.Context) (*authority.CatalogSnapshot, error) {
	var out struct {
		Studies []struct {
			ID        string          `json:"id"`
			Code      string          `json:"code"`
			Name      string          `json:"name"`
			Category  string          `json:"category"`
			Price     decimal.Decimal `json:"price"`
			UpdatedAt time.Time       `json:"updated_at"`
		} `json:"studies"`
		Branches []struct {
			ID   string `json:"id"`
			Code string `json:"code"`
			Name string `json:"name"`
		} `json:"branches"`
		Equipment []struct {
			ID       string `json:"id"`
			Name     string `json:"name"`
			Modality string `json:"modality"`
			BranchID string `json:"branch_id"`
			Active   bool   `json:"active"`
		} `json:"equipment"`
		Staff []struct {
			ID          string `json:"id"`
			Username    string `json:"username"`
			DisplayName string `json:"display_name"`
			Role        string `json:"role"`
			BranchID    string `json:"branch_id"`
		} `json:"staff"`
	}
	if err := c.do(ctx, http.MethodGet, "/sync/catalog", nil, &out); err != nil {
		return nil, err
	}

	snapshot := &authority.CatalogSnapshot{}
	for _, s := range out.Studies {
		snapshot.Studies = append(snapshot.Studies, catalog.Study{
			RemoteID: s.ID, Code: s.Code, Name: s.Name,
			Category: s.Category, Price: s.Price, UpdatedAt: s.UpdatedAt,
		})
	}
	for _, b := range out.Branches {
		snapshot.Branches = append(snapshot.Branches, catalog.Branch{
			RemoteID: b.ID, Code: b.Code, Name: b.Name,
		})
	}
	for _, e := range out.Equipment {
		snapshot.Equipment = append(snapshot.Equipment, catalog.Equipment{
			RemoteID: e.ID, Name: e.Name, Modality: e.Modality,
			BranchID: e.BranchID, Active: e.Active,
		})
	}
	for _, s := range out.Staff {
		snapshot.Staff = append(snapshot.Staff, catalog.StaffMember{
			RemoteID: s.ID, Username: s.Username, DisplayName: s.DisplayName,
			Role: s.Role, BranchID: s.BranchID,
		})
	}
	return snapshot, nil
}

// FetchPatients pulls the patient directory incrementally
func (c *Client) FetchPatients(ctx context.Context, updatedSince time.Time) ([]*patient.Patient, error) {
	path := "/sync/patients"
	if !updatedSince.IsZero() {
		path += "?updated_since=" + url.QueryEscape(updatedSince.UTC().Format(time.RFC3339))
	}

	var out struct {
		Patients []struct {
			ID         string     `json:"id"`
			DocumentID string     `json:"document_id"`
			FirstName  string     `json:"first_name"`
			LastName   string     `json:"last_name"`
			Phone      string     `json:"phone"`
			Email      string     `json:"email"`
			BirthDate  *time.Time `json:"birth_date"`
			Sex        string     `json:"sex"`
			Address    string     `json:"address"`
			BranchID   string     `json:"branch_id"`
		} `json:"patients"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}

	patients := make([]*patient.Patient, 0, len(out.Patients))
	for _, row := range out.Patients {
		p, err := patient.NewPatient(row.DocumentID, row.FirstName, row.LastName, row.BranchID)
		if err != nil {
			c.logger.Warn("skipping malformed patient from server",
				zap.String("remote_id", row.ID), zap.Error(err))
			continue
		}
		p.Phone = row.Phone
		p.Email = row.Email
		p.BirthDate = row.BirthDate
		p.Sex = row.Sex
		p.Address = row.Address
		p.RemoteID = row.ID
		p.Synced = true
		patients = append(patients, p)
	}
	return patients, nil
}

// do marshals body as JSON and decodes the response into out.
func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}
	return c.doRaw(ctx, method, path, payload, out)
}

// doRaw sends a prepared JSON payload and classifies the outcome:
// transport errors and 5xx become ErrConnectivityTimeout, 401/403
// become ErrUnauthorized, 400/422 become ErrInvalidInput, and the
// remaining 4xx become ErrSyncConflict. Only the conflict class means
// "the authority saw the record and said no".
func (c *Client) doRaw(ctx context.Context, method, path string, payload []byte, out any) error {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Connection refused, DNS failure and timeouts are all the same
		// signal from the terminal's point of view.
		return shared.ErrConnectivityTimeout
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return shared.ErrConnectivityTimeout
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out == nil || len(data) == 0 {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return shared.ErrUnauthorized
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		c.logger.Warn("server rejected malformed request",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", data))
		return shared.ErrInvalidInput
	case resp.StatusCode >= 500:
		c.logger.Warn("server error", zap.String("path", path), zap.Int("status", resp.StatusCode))
		return shared.ErrConnectivityTimeout
	default:
		c.logger.Warn("server rejected request",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", data))
		return shared.ErrSyncConflict
	}
}
