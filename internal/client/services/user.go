package services

import (
	"context"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/meecokeeper/internal/client/client"
	"github.com/dmitrijs2005/meecokeeper/internal/client/models"
	"github.com/dmitrijs2005/meecokeeper/internal/common"
	"github.com/dmitrijs2005/meecokeeper/internal/cryptox"
	"github.com/dmitrijs2005/meecokeeper/internal/logging"
	"github.com/dmitrijs2005/meecokeeper/internal/srp"
	"golang.org/x/sync/errgroup"
)

// VaultKeypairExternalID is the keystore external id of the keypair that
// identifies the user to the vault.
const VaultKeypairExternalID = "auth"

// UserAPI is the slice of the platform UserService talks to.
type UserAPI interface {
	client.KeystoreAPI
	client.VaultUserAPI
}

// UserService creates users and signs them in.
//
// Create registers a new keystore user via SRP and builds the full key
// hierarchy: PDK -> KEK -> vault keypair and DEK. GetAuthData signs an
// existing user in and unwraps the same hierarchy. A wrong passphrase or
// secret is reported as common.ErrLoginFailed.
type UserService interface {
	GenerateUsername(ctx context.Context) (string, error)
	Create(ctx context.Context, passphrase, secret string) (*models.AuthData, error)
	GetAuthData(ctx context.Context, passphrase, secret string) (*models.AuthData, error)
	CreateKeystoreToken(ctx context.Context, passphrase, secret string) (string, error)
	GetOrCreateVaultToken(ctx context.Context, passphrase, secret string) (string, error)
	GetUser(ctx context.Context, vaultToken string) (*client.VaultUser, error)
	DeleteSessionTokens(ctx context.Context, vaultToken, keystoreToken string) error
}

type userService struct {
	api    UserAPI
	cryppo cryptox.Cryppo
	log    logging.Logger
}

func NewUserService(api UserAPI, deps Deps) UserService {
	deps = deps.withDefaults()
	return &userService{api: api, cryppo: deps.Cryppo, log: deps.Log}
}

func (s *userService) GenerateUsername(ctx context.Context) (string, error) {
	s.log.Debug(ctx, "generating username")
	return s.api.GenerateUsername(ctx)
}

func (s *userService) Create(ctx context.Context, passphrase, secret string) (*models.AuthData, error) {
	username, err := cryptox.UsernameFromSecret(secret)
	if err != nil {
		return nil, err
	}
	srpPassword, err := cryptox.DeriveSRPPassword(passphrase, secret)
	if err != nil {
		return nil, err
	}

	if err := s.registerSRP(ctx, username, srpPassword); err != nil {
		return nil, err
	}

	keystoreToken, err := s.loginSRP(ctx, username, srpPassword)
	if err != nil {
		return nil, err
	}

	s.log.Debug(ctx, "requesting external admission token")
	admissionToken, err := s.api.GetExternalAdmissionToken(ctx, keystoreToken)
	if err != nil {
		return nil, err
	}

	pdk, err := s.derivePDK(passphrase, secret)
	if err != nil {
		return nil, err
	}

	s.log.Debug(ctx, "generating and storing key encryption key")
	kek, err := generateKey(s.cryppo)
	if err != nil {
		return nil, err
	}
	wrappedKEK, err := s.cryppo.EncryptWithKey(kek.Bytes(), pdk.Bytes(), cryptox.CipherStrategyAESGCM)
	if err != nil {
		return nil, err
	}
	if err := s.api.CreateKeyEncryptionKey(ctx, keystoreToken, wrappedKEK); err != nil {
		return nil, err
	}

	s.log.Debug(ctx, "generating and storing vault keypair")
	keyPair, _, err := storeKeypair(ctx, s.api, s.cryppo, keystoreToken, kek, []string{VaultKeypairExternalID})
	if err != nil {
		return nil, err
	}

	s.log.Debug(ctx, "creating vault user")
	created, err := s.api.CreateVaultUser(ctx, keyPair.PublicKey, admissionToken)
	if err != nil {
		return nil, err
	}
	vaultToken, err := s.cryppo.DecryptSerializedWithPrivateKey(keyPair.PrivateKey, created.EncryptedSessionAuthenticationString)
	if err != nil {
		return nil, err
	}

	s.log.Debug(ctx, "generating and storing data encryption key")
	dek, err := generateKey(s.cryppo)
	if err != nil {
		return nil, err
	}
	wrappedDEK, err := s.cryppo.EncryptWithKey(dek.Bytes(), kek.Bytes(), cryptox.CipherStrategyAESGCM)
	if err != nil {
		return nil, err
	}
	stored, err := s.api.CreateDataEncryptionKey(ctx, keystoreToken, wrappedDEK)
	if err != nil {
		return nil, err
	}
	if _, err := s.api.UpdateVaultUser(ctx, string(vaultToken), stored.ID); err != nil {
		return nil, err
	}

	s.log.Info(ctx, "user created", "username", username, "vault_user_id", created.User.ID)

	return &models.AuthData{
		Secret:               secret,
		KeystoreAccessToken:  keystoreToken,
		VaultAccessToken:     string(vaultToken),
		DataEncryptionKey:    dek,
		KeyEncryptionKey:     kek,
		PassphraseDerivedKey: pdk,
	}, nil
}

func (s *userService) GetAuthData(ctx context.Context, passphrase, secret string) (*models.AuthData, error) {
	sess, err := s.openSessions(ctx, passphrase, secret)
	if err != nil {
		return nil, err
	}

	user, err := s.api.GetVaultUser(ctx, sess.vaultToken)
	if err != nil {
		return nil, err
	}

	s.log.Debug(ctx, "requesting data encryption key")
	storedDEK, err := s.api.GetDataEncryptionKey(ctx, sess.keystoreToken, user.PrivateDEKExternalID)
	if err != nil {
		return nil, err
	}
	dek, err := unwrapKey(s.cryppo, storedDEK.SerializedDataEncryptionKey, sess.kek)
	if err != nil {
		return nil, err
	}

	return &models.AuthData{
		Secret:               secret,
		KeystoreAccessToken:  sess.keystoreToken,
		VaultAccessToken:     sess.vaultToken,
		DataEncryptionKey:    dek,
		KeyEncryptionKey:     sess.kek,
		PassphraseDerivedKey: sess.pdk,
	}, nil
}

func (s *userService) CreateKeystoreToken(ctx context.Context, passphrase, secret string) (string, error) {
	username, err := cryptox.UsernameFromSecret(secret)
	if err != nil {
		return "", err
	}
	srpPassword, err := cryptox.DeriveSRPPassword(passphrase, secret)
	if err != nil {
		return "", err
	}
	return s.loginSRP(ctx, username, srpPassword)
}

func (s *userService) GetOrCreateVaultToken(ctx context.Context, passphrase, secret string) (string, error) {
	sess, err := s.openSessions(ctx, passphrase, secret)
	if err != nil {
		return "", err
	}
	return sess.vaultToken, nil
}

func (s *userService) GetUser(ctx context.Context, vaultToken string) (*client.VaultUser, error) {
	return s.api.GetVaultUser(ctx, vaultToken)
}

// DeleteSessionTokens invalidates whichever of the two tokens is non-empty.
func (s *userService) DeleteSessionTokens(ctx context.Context, vaultToken, keystoreToken string) error {
	g, ctx := errgroup.WithContext(ctx)
	if vaultToken != "" {
		g.Go(func() error { return s.api.DeleteVaultSession(ctx, vaultToken) })
	}
	if keystoreToken != "" {
		g.Go(func() error { return s.api.DeleteKeystoreSession(ctx, keystoreToken) })
	}
	return g.Wait()
}

type sessions struct {
	keystoreToken string
	vaultToken    string
	pdk           models.EncryptionKey
	kek           models.EncryptionKey
}

// openSessions logs into the keystore, unwraps the KEK and the vault keypair
// and opens a vault session with it.
func (s *userService) openSessions(ctx context.Context, passphrase, secret string) (*sessions, error) {
	username, err := cryptox.UsernameFromSecret(secret)
	if err != nil {
		return nil, err
	}

	s.log.Debug(ctx, "deriving keys")
	pdk, err := s.derivePDK(passphrase, secret)
	if err != nil {
		return nil, err
	}
	srpPassword, err := cryptox.DeriveSRPPassword(passphrase, secret)
	if err != nil {
		return nil, err
	}

	keystoreToken, err := s.loginSRP(ctx, username, srpPassword)
	if err != nil {
		return nil, err
	}

	s.log.Debug(ctx, "requesting key encryption key")
	wrappedKEK, err := s.api.GetKeyEncryptionKey(ctx, keystoreToken)
	if err != nil {
		return nil, err
	}
	kek, err := unwrapKey(s.cryppo, wrappedKEK, pdk)
	if err != nil {
		return nil, err
	}

	kp, err := s.api.GetKeypairByExternalID(ctx, keystoreToken, VaultKeypairExternalID)
	if err != nil {
		return nil, err
	}
	privateKey, err := privateKeyOf(s.cryppo, kp, kek)
	if err != nil {
		return nil, err
	}

	s.log.Debug(ctx, "opening vault session")
	encryptedToken, err := s.api.CreateVaultSession(ctx, kp.PublicKey)
	if err != nil {
		return nil, err
	}
	vaultToken, err := s.cryppo.DecryptSerializedWithPrivateKey(privateKey, encryptedToken)
	if err != nil {
		return nil, err
	}

	return &sessions{keystoreToken: keystoreToken, vaultToken: string(vaultToken), pdk: pdk, kek: kek}, nil
}

func (s *userService) derivePDK(passphrase, secret string) (models.EncryptionKey, error) {
	b, err := cryptox.DerivePassphraseKey(passphrase, secret)
	if err != nil {
		return models.EncryptionKey{}, err
	}
	defer common.WipeByteArray(b)
	return models.NewEncryptionKey(b, models.KeyDerived), nil
}

// registerSRP creates the keystore user. An already taken username is not an
// error: the caller goes on to log in.
func (s *userService) registerSRP(ctx context.Context, username, password string) error {
	c, err := srp.NewClient(username, password)
	if err != nil {
		return err
	}
	salt, verifier, err := c.CreateVerifier()
	if err != nil {
		return err
	}

	s.log.Debug(ctx, "creating SRP keystore user", "username", username)
	err = s.api.CreateSRPUser(ctx, username, salt, verifier)

	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusBadRequest && apiErr.HasErrorCode("username_taken") {
		s.log.Info(ctx, "keystore user exists, logging in", "username", username)
		return nil
	}
	return err
}

func (s *userService) loginSRP(ctx context.Context, username, password string) (string, error) {
	c, err := srp.NewClient(username, password)
	if err != nil {
		return "", err
	}

	s.log.Debug(ctx, "requesting SRP challenge", "username", username)
	challenge, err := s.api.CreateSRPChallenge(ctx, username, c.ClientPublic())
	if err != nil {
		return "", err
	}

	proof, err := c.ComputeProof(challenge.ChallengeSalt, challenge.ChallengeB)
	if err != nil {
		return "", err
	}

	token, err := s.api.CreateSRPSession(ctx, username, c.ClientPublic(), proof)
	if client.StatusCode(err) == http.StatusUnauthorized {
		return "", common.NewServiceError(common.ErrCodeLoginFailed, common.ErrLoginFailed, "Login failed - please check details")
	}
	return token, err
}
