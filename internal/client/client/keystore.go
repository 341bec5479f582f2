package client

import (
	"context"
	"net/http"
	"net/url"
)

func (c *HTTPClient) GenerateUsername(ctx context.Context) (string, error) {
	var resp struct {
		Username string `json:"username"`
	}
	if err := c.do(ctx, c.keystore(http.MethodPost, "/srp/username", "").withBody(struct{}{}), &resp); err != nil {
		return "", err
	}
	return resp.Username, nil
}

func (c *HTTPClient) CreateSRPUser(ctx context.Context, username, salt, verifier string) error {
	body := map[string]string{
		"username":     username,
		"srp_salt":     salt,
		"srp_verifier": verifier,
	}
	return c.do(ctx, c.keystore(http.MethodPost, "/srp/users", "").withBody(body), nil)
}

func (c *HTTPClient) CreateSRPChallenge(ctx context.Context, username, srpA string) (*SRPChallenge, error) {
	body := map[string]string{"username": username, "srp_a": srpA}
	var resp struct {
		Challenge SRPChallenge `json:"challenge"`
	}
	if err := c.do(ctx, c.keystore(http.MethodPost, "/srp/challenges", "").withBody(body), &resp); err != nil {
		return nil, err
	}
	return &resp.Challenge, nil
}

func (c *HTTPClient) CreateSRPSession(ctx context.Context, username, srpA, srpM string) (string, error) {
	body := map[string]string{"username": username, "srp_a": srpA, "srp_m": srpM}
	var resp struct {
		Session struct {
			SessionAuthenticationString string `json:"session_authentication_string"`
		} `json:"session"`
	}
	if err := c.do(ctx, c.keystore(http.MethodPost, "/srp/session", "").withBody(body), &resp); err != nil {
		return "", err
	}
	return resp.Session.SessionAuthenticationString, nil
}

func (c *HTTPClient) DeleteKeystoreSession(ctx context.Context, token string) error {
	return c.do(ctx, c.keystore(http.MethodDelete, "/session", token), nil)
}

func (c *HTTPClient) GetExternalAdmissionToken(ctx context.Context, token string) (string, error) {
	var resp struct {
		ExternalAdmissionToken struct {
			VaultAPIAdmissionToken string `json:"vault_api_admission_token"`
		} `json:"external_admission_token"`
	}
	if err := c.do(ctx, c.keystore(http.MethodGet, "/external_admission_tokens", token), &resp); err != nil {
		return "", err
	}
	return resp.ExternalAdmissionToken.VaultAPIAdmissionToken, nil
}

type keyEncryptionKeyBody struct {
	SerializedKeyEncryptionKey string `json:"serialized_key_encryption_key"`
}

func (c *HTTPClient) CreateKeyEncryptionKey(ctx context.Context, token, serialized string) error {
	body := keyEncryptionKeyBody{SerializedKeyEncryptionKey: serialized}
	return c.do(ctx, c.keystore(http.MethodPost, "/key_encryption_key", token).withBody(body), nil)
}

func (c *HTTPClient) GetKeyEncryptionKey(ctx context.Context, token string) (string, error) {
	var resp struct {
		KeyEncryptionKey keyEncryptionKeyBody `json:"key_encryption_key"`
	}
	if err := c.do(ctx, c.keystore(http.MethodGet, "/key_encryption_key", token), &resp); err != nil {
		return "", err
	}
	return resp.KeyEncryptionKey.SerializedKeyEncryptionKey, nil
}

type dataEncryptionKeyResponse struct {
	DataEncryptionKey DataEncryptionKey `json:"data_encryption_key"`
}

func (c *HTTPClient) CreateDataEncryptionKey(ctx context.Context, token, serialized string) (*DataEncryptionKey, error) {
	body := map[string]string{"serialized_data_encryption_key": serialized}
	var resp dataEncryptionKeyResponse
	if err := c.do(ctx, c.keystore(http.MethodPost, "/data_encryption_keys", token).withBody(body), &resp); err != nil {
		return nil, err
	}
	return &resp.DataEncryptionKey, nil
}

func (c *HTTPClient) GetDataEncryptionKey(ctx context.Context, token, id string) (*DataEncryptionKey, error) {
	var resp dataEncryptionKeyResponse
	if err := c.do(ctx, c.keystore(http.MethodGet, "/data_encryption_keys/"+url.PathEscape(id), token), &resp); err != nil {
		return nil, err
	}
	return &resp.DataEncryptionKey, nil
}

type keypairResponse struct {
	Keypair Keypair `json:"keypair"`
}

func (c *HTTPClient) CreateKeypair(ctx context.Context, token string, kp NewKeypair) (*Keypair, error) {
	var resp keypairResponse
	if err := c.do(ctx, c.keystore(http.MethodPost, "/keypairs", token).withBody(kp), &resp); err != nil {
		return nil, err
	}
	return &resp.Keypair, nil
}

func (c *HTTPClient) GetKeypair(ctx context.Context, token, id string) (*Keypair, error) {
	var resp keypairResponse
	if err := c.do(ctx, c.keystore(http.MethodGet, "/keypairs/"+url.PathEscape(id), token), &resp); err != nil {
		return nil, err
	}
	return &resp.Keypair, nil
}

func (c *HTTPClient) GetKeypairByExternalID(ctx context.Context, token, externalID string) (*Keypair, error) {
	var resp keypairResponse
	path := "/keypairs/external_id/" + url.PathEscape(externalID)
	if err := c.do(ctx, c.keystore(http.MethodGet, path, token), &resp); err != nil {
		return nil, err
	}
	return &resp.Keypair, nil
}
