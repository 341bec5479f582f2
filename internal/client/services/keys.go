package services

import (
	"context"

	"github.com/dmitrijs2005/meecokeeper/internal/client/client"
	"github.com/dmitrijs2005/meecokeeper/internal/client/models"
	"github.com/dmitrijs2005/meecokeeper/internal/cryptox"
)

// generateKey returns a fresh 256-bit key.
func generateKey(c cryptox.Cryppo) (models.EncryptionKey, error) {
	b, err := c.GenerateRandomKey(cryptox.DefaultKeyBits)
	if err != nil {
		return models.EncryptionKey{}, err
	}
	return models.NewEncryptionKey(b, models.KeyGenerated), nil
}

// unwrapKey decrypts a serialized key with wrapping.
func unwrapKey(c cryptox.Cryppo, serialized string, wrapping models.EncryptionKey) (models.EncryptionKey, error) {
	b, err := c.DecryptWithKey(serialized, wrapping.Bytes())
	if err != nil {
		return models.EncryptionKey{}, err
	}
	return models.NewEncryptionKey(b, models.KeyDecrypted), nil
}

// storeKeypair generates an RSA keypair, wraps its private half under the KEK
// and stores it in the keystore.
func storeKeypair(ctx context.Context, api client.KeystoreAPI, c cryptox.Cryppo, keystoreToken string, kek models.EncryptionKey, externalIDs []string) (*cryptox.KeyPair, *client.Keypair, error) {
	kp, err := c.GenerateRSAKeyPair(0)
	if err != nil {
		return nil, nil, err
	}

	wrapped, err := c.EncryptWithKey([]byte(kp.PrivateKey), kek.Bytes(), cryptox.CipherStrategyAESGCM)
	if err != nil {
		return nil, nil, err
	}

	if externalIDs == nil {
		externalIDs = []string{}
	}
	stored, err := api.CreateKeypair(ctx, keystoreToken, client.NewKeypair{
		PublicKey:              kp.PublicKey,
		EncryptedSerializedKey: wrapped,
		Metadata:               map[string]string{},
		ExternalIdentifiers:    externalIDs,
	})
	if err != nil {
		return nil, nil, err
	}
	return kp, stored, nil
}

// privateKeyOf unwraps the private key of a stored keypair with the KEK.
func privateKeyOf(c cryptox.Cryppo, kp *client.Keypair, kek models.EncryptionKey) (string, error) {
	b, err := c.DecryptWithKey(kp.EncryptedSerializedKey, kek.Bytes())
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// unwrapShareDEK walks keypair -> private key -> share DEK for an incoming share.
func unwrapShareDEK(ctx context.Context, api client.KeystoreAPI, c cryptox.Cryppo, creds *models.AuthData, share models.Share) (models.EncryptionKey, error) {
	kp, err := api.GetKeypair(ctx, creds.KeystoreAccessToken, share.KeypairExternalID)
	if err != nil {
		return models.EncryptionKey{}, err
	}
	privateKey, err := privateKeyOf(c, kp, creds.KeyEncryptionKey)
	if err != nil {
		return models.EncryptionKey{}, err
	}
	dek, err := c.DecryptSerializedWithPrivateKey(privateKey, share.EncryptedDEK)
	if err != nil {
		return models.EncryptionKey{}, err
	}
	return models.NewEncryptionKey(dek, models.KeyDecrypted), nil
}
