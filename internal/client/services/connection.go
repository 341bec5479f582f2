package services

import (
	"context"

	"github.com/dmitrijs2005/meecokeeper/internal/client/client"
	"github.com/dmitrijs2005/meecokeeper/internal/client/models"
	"github.com/dmitrijs2005/meecokeeper/internal/common"
	"github.com/dmitrijs2005/meecokeeper/internal/cryptox"
	"github.com/dmitrijs2005/meecokeeper/internal/logging"
	"golang.org/x/sync/errgroup"
)

// ConnectionAPI is the slice of the platform ConnectionService talks to.
type ConnectionAPI interface {
	client.ConnectionAPI
	client.KeystoreAPI
	client.VaultUserAPI
}

// ConnectionCreateData drives CreateConnection when the caller holds the
// credentials of both users.
type ConnectionCreateData struct {
	From     *models.AuthData
	To       *models.AuthData
	FromName string
	ToName   string
}

// ConnectionPair is the same connection as seen by each of its users.
type ConnectionPair struct {
	FromUserConnection models.Connection
	ToUserConnection   models.Connection
}

// ConnectionLookup is the result of FindConnectionBetween. Pair is only
// meaningful when Found is true.
type ConnectionLookup struct {
	Found bool
	Pair  ConnectionPair
}

// CreatedConnection is the outcome of a full invitation handshake.
type CreatedConnection struct {
	Invitation *models.Invitation
	ConnectionPair
}

// ConnectionService sets up connections between users so they can share.
type ConnectionService interface {
	CreateInvitation(ctx context.Context, creds *models.AuthData, recipientName string) (*models.Invitation, error)
	AcceptInvitation(ctx context.Context, creds *models.AuthData, name, invitationToken string) (*models.Connection, error)
	CreateConnection(ctx context.Context, data ConnectionCreateData) (*CreatedConnection, error)
	FindConnectionBetween(ctx context.Context, from, to *models.AuthData) (ConnectionLookup, error)
	Get(ctx context.Context, creds *models.AuthData, id string) (*models.Connection, error)
	ListConnections(ctx context.Context, creds *models.AuthData, opts models.PageOptions) ([]models.DecryptedConnection, error)
	ListAll(ctx context.Context, creds *models.AuthData) ([]models.DecryptedConnection, error)
}

type connectionService struct {
	api    ConnectionAPI
	cryppo cryptox.Cryppo
	log    logging.Logger
}

func NewConnectionService(api ConnectionAPI, deps Deps) ConnectionService {
	deps = deps.withDefaults()
	return &connectionService{api: api, cryppo: deps.Cryppo, log: deps.Log}
}

func (s *connectionService) CreateInvitation(ctx context.Context, creds *models.AuthData, recipientName string) (*models.Invitation, error) {
	s.log.Debug(ctx, "generating key pair")
	kp, stored, err := storeKeypair(ctx, s.api, s.cryppo, creds.KeystoreAccessToken, creds.KeyEncryptionKey, nil)
	if err != nil {
		return nil, err
	}

	encryptedName, err := s.encryptName(recipientName, creds)
	if err != nil {
		return nil, err
	}

	s.log.Debug(ctx, "sending invitation request")
	inv, err := s.api.CreateInvitation(ctx, creds.VaultAccessToken, client.CreateInvitationRequest{
		PublicKey:              client.InvitationPublicKey{KeypairExternalID: stored.ID, PublicKey: kp.PublicKey},
		EncryptedRecipientName: encryptedName,
	})
	if err != nil {
		return nil, err
	}
	s.log.Info(ctx, "invitation created", "invitation_id", inv.ID)
	return inv, nil
}

func (s *connectionService) AcceptInvitation(ctx context.Context, creds *models.AuthData, name, invitationToken string) (*models.Connection, error) {
	s.log.Debug(ctx, "generating key pair")
	kp, stored, err := storeKeypair(ctx, s.api, s.cryppo, creds.KeystoreAccessToken, creds.KeyEncryptionKey, nil)
	if err != nil {
		return nil, err
	}

	encryptedName, err := s.encryptName(name, creds)
	if err != nil {
		return nil, err
	}

	s.log.Debug(ctx, "accepting invitation")
	conn, err := s.api.CreateConnection(ctx, creds.VaultAccessToken, client.CreateConnectionRequest{
		PublicKey:              client.InvitationPublicKey{KeypairExternalID: stored.ID, PublicKey: kp.PublicKey},
		EncryptedRecipientName: encryptedName,
		InvitationToken:        invitationToken,
	})
	if err != nil {
		return nil, err
	}
	s.log.Info(ctx, "invitation accepted", "connection_id", conn.Own.ID)
	return conn, nil
}

// CreateConnection runs both halves of the handshake. It refuses to create a
// second connection between the same users, before any keypair is generated.
func (s *connectionService) CreateConnection(ctx context.Context, data ConnectionCreateData) (*CreatedConnection, error) {
	s.log.Debug(ctx, "checking for an existing connection")
	existing, err := s.FindConnectionBetween(ctx, data.From, data.To)
	if err != nil {
		return nil, err
	}
	if existing.Found {
		return nil, common.NewServiceError(common.ErrCodeProtocol, common.ErrAlreadyConnected,
			"connection %s exists between the specified users", existing.Pair.FromUserConnection.Own.ID)
	}

	inv, err := s.CreateInvitation(ctx, data.From, data.ToName)
	if err != nil {
		return nil, err
	}
	if _, err := s.AcceptInvitation(ctx, data.To, data.FromName, inv.Token); err != nil {
		return nil, err
	}

	lookup, err := s.FindConnectionBetween(ctx, data.From, data.To)
	if err != nil {
		return nil, err
	}
	if !lookup.Found {
		return nil, common.NewServiceError(common.ErrCodeProtocol, common.ErrorNotFound,
			"connection for invitation %s not visible to both users", inv.ID)
	}

	return &CreatedConnection{Invitation: inv, ConnectionPair: lookup.Pair}, nil
}

// FindConnectionBetween looks for a connection visible to both users.
func (s *connectionService) FindConnectionBetween(ctx context.Context, from, to *models.AuthData) (ConnectionLookup, error) {
	var (
		fromUser, toUser   *client.VaultUser
		fromConns, toConns []models.Connection
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		fromUser, err = s.api.GetVaultUser(gctx, from.VaultAccessToken)
		return err
	})
	g.Go(func() (err error) {
		toUser, err = s.api.GetVaultUser(gctx, to.VaultAccessToken)
		return err
	})
	g.Go(func() (err error) {
		fromConns, err = s.listAllRaw(gctx, from)
		return err
	})
	g.Go(func() (err error) {
		toConns, err = s.listAllRaw(gctx, to)
		return err
	})
	if err := g.Wait(); err != nil {
		return ConnectionLookup{}, err
	}

	var pair ConnectionPair
	var fromFound, toFound bool
	for _, c := range fromConns {
		if c.TheOtherUser.UserID == toUser.ID {
			pair.FromUserConnection, fromFound = c, true
			break
		}
	}
	for _, c := range toConns {
		if c.TheOtherUser.UserID == fromUser.ID {
			pair.ToUserConnection, toFound = c, true
			break
		}
	}

	if !fromFound || !toFound {
		return ConnectionLookup{}, nil
	}
	return ConnectionLookup{Found: true, Pair: pair}, nil
}

func (s *connectionService) Get(ctx context.Context, creds *models.AuthData, id string) (*models.Connection, error) {
	return s.api.GetConnection(ctx, creds.VaultAccessToken, id)
}

func (s *connectionService) ListConnections(ctx context.Context, creds *models.AuthData, opts models.PageOptions) ([]models.DecryptedConnection, error) {
	s.log.Debug(ctx, "fetching connections")
	page, err := s.api.ListConnections(ctx, creds.VaultAccessToken, opts)
	if err != nil {
		return nil, err
	}
	if page.HasNext() && opts.PerPage == 0 {
		s.log.Warn(ctx, "some results omitted, but page limit was not explicitly set")
	}
	return s.decryptNames(page.Connections, creds)
}

func (s *connectionService) ListAll(ctx context.Context, creds *models.AuthData) ([]models.DecryptedConnection, error) {
	conns, err := s.listAllRaw(ctx, creds)
	if err != nil {
		return nil, err
	}
	return s.decryptNames(conns, creds)
}

func (s *connectionService) listAllRaw(ctx context.Context, creds *models.AuthData) ([]models.Connection, error) {
	pages, err := client.GetAllPaged(ctx, func(ctx context.Context, cursor string) (*client.ConnectionsPage, error) {
		return s.api.ListConnections(ctx, creds.VaultAccessToken, models.PageOptions{NextPageAfter: cursor})
	})
	if err != nil {
		return nil, err
	}
	var out []models.Connection
	for _, p := range pages {
		out = append(out, p.Connections...)
	}
	return out, nil
}

func (s *connectionService) decryptNames(conns []models.Connection, creds *models.AuthData) ([]models.DecryptedConnection, error) {
	out := make([]models.DecryptedConnection, 0, len(conns))
	for _, c := range conns {
		d := models.DecryptedConnection{Connection: c}
		if c.Own.EncryptedRecipientName != "" {
			name, err := s.cryppo.DecryptWithKey(c.Own.EncryptedRecipientName, creds.DataEncryptionKey.Bytes())
			if err != nil {
				return nil, err
			}
			d.Name = string(name)
		}
		out = append(out, d)
	}
	return out, nil
}

func (s *connectionService) encryptName(name string, creds *models.AuthData) (string, error) {
	return s.cryppo.EncryptWithKey([]byte(name), creds.DataEncryptionKey.Bytes(), cryptox.CipherStrategyAESGCM)
}
