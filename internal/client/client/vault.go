package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/dmitrijs2005/meecokeeper/internal/client/models"
)

func (c *HTTPClient) CreateVaultUser(ctx context.Context, publicKey, admissionToken string) (*CreatedVaultUser, error) {
	body := map[string]string{"public_key": publicKey, "admission_token": admissionToken}
	var resp CreatedVaultUser
	if err := c.do(ctx, c.vault(http.MethodPost, "/me", "").withBody(body), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) CreateVaultSession(ctx context.Context, publicKey string) (string, error) {
	body := map[string]string{"public_key": publicKey}
	var resp struct {
		Session struct {
			EncryptedSessionAuthenticationString string `json:"encrypted_session_authentication_string"`
		} `json:"session"`
	}
	if err := c.do(ctx, c.vault(http.MethodPost, "/session", "").withBody(body), &resp); err != nil {
		return "", err
	}
	return resp.Session.EncryptedSessionAuthenticationString, nil
}

type vaultUserResponse struct {
	User VaultUser `json:"user"`
}

func (c *HTTPClient) GetVaultUser(ctx context.Context, token string) (*VaultUser, error) {
	var resp vaultUserResponse
	if err := c.do(ctx, c.vault(http.MethodGet, "/me", token), &resp); err != nil {
		return nil, err
	}
	return &resp.User, nil
}

func (c *HTTPClient) UpdateVaultUser(ctx context.Context, token, privateDEKExternalID string) (*VaultUser, error) {
	body := map[string]any{"user": map[string]string{"private_dek_external_id": privateDEKExternalID}}
	var resp vaultUserResponse
	if err := c.do(ctx, c.vault(http.MethodPut, "/me", token).withBody(body), &resp); err != nil {
		return nil, err
	}
	return &resp.User, nil
}

func (c *HTTPClient) DeleteVaultSession(ctx context.Context, token string) error {
	return c.do(ctx, c.vault(http.MethodDelete, "/session", token), nil)
}

func (c *HTTPClient) ListItems(ctx context.Context, token string, templateIDs string, opts models.PageOptions) (*ItemsPage, error) {
	q := pageQuery(opts)
	if templateIDs != "" {
		q.Set("template_ids", templateIDs)
	}
	var resp ItemsPage
	if err := c.do(ctx, c.vault(http.MethodGet, "/items", token).withQuery(q), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) GetItem(ctx context.Context, token, id string) (*models.ItemResponse, error) {
	var resp models.ItemResponse
	if err := c.do(ctx, c.vault(http.MethodGet, "/items/"+url.PathEscape(id), token), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) CreateItem(ctx context.Context, token string, req CreateItemRequest) (*models.ItemResponse, error) {
	var resp models.ItemResponse
	if err := c.do(ctx, c.vault(http.MethodPost, "/items", token).withBody(req), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) UpdateItem(ctx context.Context, token, id string, req UpdateItemRequest) (*models.ItemResponse, error) {
	var resp models.ItemResponse
	if err := c.do(ctx, c.vault(http.MethodPut, "/items/"+url.PathEscape(id), token).withBody(req), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) DeleteItem(ctx context.Context, token, id string) error {
	return c.do(ctx, c.vault(http.MethodDelete, "/items/"+url.PathEscape(id), token), nil)
}

func (c *HTTPClient) DeleteSlot(ctx context.Context, token, id string) error {
	return c.do(ctx, c.vault(http.MethodDelete, "/slots/"+url.PathEscape(id), token), nil)
}

func (c *HTTPClient) ListConnections(ctx context.Context, token string, opts models.PageOptions) (*ConnectionsPage, error) {
	var resp ConnectionsPage
	if err := c.do(ctx, c.vault(http.MethodGet, "/connections", token).withQuery(pageQuery(opts)), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) GetConnection(ctx context.Context, token, id string) (*models.Connection, error) {
	var resp struct {
		Connection models.Connection `json:"connection"`
	}
	if err := c.do(ctx, c.vault(http.MethodGet, "/connections/"+url.PathEscape(id), token), &resp); err != nil {
		return nil, err
	}
	return &resp.Connection, nil
}

func (c *HTTPClient) CreateInvitation(ctx context.Context, token string, req CreateInvitationRequest) (*models.Invitation, error) {
	body := map[string]any{
		"public_key": req.PublicKey,
		"invitation": map[string]string{"encrypted_recipient_name": req.EncryptedRecipientName},
	}
	var resp struct {
		Invitation models.Invitation `json:"invitation"`
	}
	if err := c.do(ctx, c.vault(http.MethodPost, "/invitations", token).withBody(body), &resp); err != nil {
		return nil, err
	}
	return &resp.Invitation, nil
}

func (c *HTTPClient) CreateConnection(ctx context.Context, token string, req CreateConnectionRequest) (*models.Connection, error) {
	body := map[string]any{
		"public_key": req.PublicKey,
		"connection": map[string]string{
			"encrypted_recipient_name": req.EncryptedRecipientName,
			"invitation_token":         req.InvitationToken,
		},
	}
	var resp struct {
		Connection models.Connection `json:"connection"`
	}
	if err := c.do(ctx, c.vault(http.MethodPost, "/connections", token).withBody(body), &resp); err != nil {
		return nil, err
	}
	return &resp.Connection, nil
}

func (c *HTTPClient) CreateShares(ctx context.Context, token, itemID string, shares []models.NewShare) ([]models.Share, error) {
	body := map[string]any{"shares": shares}
	var resp struct {
		Shares []models.Share `json:"shares"`
	}
	path := "/items/" + url.PathEscape(itemID) + "/shares"
	if err := c.do(ctx, c.vault(http.MethodPost, path, token).withBody(body), &resp); err != nil {
		return nil, err
	}
	return resp.Shares, nil
}

func (c *HTTPClient) GetItemShares(ctx context.Context, token, itemID string) ([]models.SharePublicKey, error) {
	var resp struct {
		Shares []models.SharePublicKey `json:"shares"`
	}
	path := "/items/" + url.PathEscape(itemID) + "/shares"
	if err := c.do(ctx, c.vault(http.MethodGet, path, token), &resp); err != nil {
		return nil, err
	}
	return resp.Shares, nil
}

func (c *HTTPClient) UpdateItemShares(ctx context.Context, token, itemID string, req models.UpdateSharesRequest) error {
	path := "/items/" + url.PathEscape(itemID) + "/shares"
	return c.do(ctx, c.vault(http.MethodPut, path, token).withBody(req), nil)
}

func (c *HTTPClient) ListIncomingShares(ctx context.Context, token string, acceptance models.AcceptanceStatus, opts models.PageOptions) (*SharesPage, error) {
	q := pageQuery(opts)
	if acceptance != "" {
		q.Set("acceptance", string(acceptance))
	}
	var resp SharesPage
	if err := c.do(ctx, c.vault(http.MethodGet, "/incoming_shares", token).withQuery(q), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) ListOutgoingShares(ctx context.Context, token string, opts models.PageOptions) (*SharesPage, error) {
	var resp SharesPage
	if err := c.do(ctx, c.vault(http.MethodGet, "/outgoing_shares", token).withQuery(pageQuery(opts)), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

type shareResponse struct {
	Share models.Share `json:"share"`
}

func (c *HTTPClient) GetIncomingShare(ctx context.Context, token, id string) (*models.Share, error) {
	var resp shareResponse
	if err := c.do(ctx, c.vault(http.MethodGet, "/incoming_shares/"+url.PathEscape(id), token), &resp); err != nil {
		return nil, err
	}
	return &resp.Share, nil
}

func (c *HTTPClient) GetOutgoingShare(ctx context.Context, token, id string) (*models.Share, error) {
	var resp shareResponse
	if err := c.do(ctx, c.vault(http.MethodGet, "/outgoing_shares/"+url.PathEscape(id), token), &resp); err != nil {
		return nil, err
	}
	return &resp.Share, nil
}

func (c *HTTPClient) GetIncomingShareItem(ctx context.Context, token, id string) (*models.ShareWithItem, error) {
	var resp models.ShareWithItem
	path := "/incoming_shares/" + url.PathEscape(id) + "/item"
	if err := c.do(ctx, c.vault(http.MethodGet, path, token), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) AcceptIncomingShare(ctx context.Context, token, id string) (*models.Share, error) {
	var resp shareResponse
	path := "/incoming_shares/" + url.PathEscape(id) + "/accept"
	if err := c.do(ctx, c.vault(http.MethodPut, path, token), &resp); err != nil {
		return nil, err
	}
	return &resp.Share, nil
}

func (c *HTTPClient) DeleteShare(ctx context.Context, token, id string) error {
	return c.do(ctx, c.vault(http.MethodDelete, "/shares/"+url.PathEscape(id), token), nil)
}

func (c *HTTPClient) ListClientTasks(ctx context.Context, token string, q ClientTaskQuery) (*ClientTasksPage, error) {
	query := pageQuery(q.PageOptions)
	query.Set("supress_changing_state", strconv.FormatBool(q.SuppressChangingState))
	if q.State != "" {
		query.Set("state", string(q.State))
	}
	var resp ClientTasksPage
	if err := c.do(ctx, c.vault(http.MethodGet, "/client_task_queue", token).withQuery(query), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) UpdateClientTasks(ctx context.Context, token string, updates []models.ClientTaskUpdate) ([]models.ClientTask, error) {
	body := map[string]any{"client_tasks": updates}
	var resp struct {
		ClientTasks []models.ClientTask `json:"client_tasks"`
	}
	if err := c.do(ctx, c.vault(http.MethodPut, "/client_task_queue", token).withBody(body), &resp); err != nil {
		return nil, err
	}
	return resp.ClientTasks, nil
}
