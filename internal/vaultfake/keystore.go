package vaultfake

import (
	"net/http"
	"slices"

	"github.com/dmitrijs2005/meecokeeper/internal/client/client"
	"github.com/dmitrijs2005/meecokeeper/internal/common"
	"github.com/dmitrijs2005/meecokeeper/internal/srp"
)

type srpUser struct {
	salt     string
	verifier string
}

type keystoreState struct {
	users    map[string]srpUser
	pending  map[string]*srp.Server
	sessions map[string]string
	keks     map[string]string
	deks     map[string]ownedDEK
	keypairs map[string]ownedKeypair
}

type ownedDEK struct {
	owner string
	dek   client.DataEncryptionKey
}

type ownedKeypair struct {
	owner string
	kp    client.Keypair
}

func (k *keystoreState) init() {
	k.users = map[string]srpUser{}
	k.pending = map[string]*srp.Server{}
	k.sessions = map[string]string{}
	k.keks = map[string]string{}
	k.deks = map[string]ownedDEK{}
	k.keypairs = map[string]ownedKeypair{}
}

// KeystoreHandler serves the keystore API.
func (s *Server) KeystoreHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /srp/username", s.wrap(s.generateUsername))
	mux.HandleFunc("POST /srp/users", s.wrap(s.createSRPUser))
	mux.HandleFunc("POST /srp/challenges", s.wrap(s.createSRPChallenge))
	mux.HandleFunc("POST /srp/session", s.wrap(s.createSRPSession))
	mux.HandleFunc("DELETE /session", s.wrap(s.keystoreAuth(s.deleteKeystoreSession)))
	mux.HandleFunc("GET /external_admission_tokens", s.wrap(s.keystoreAuth(s.externalAdmissionToken)))
	mux.HandleFunc("POST /key_encryption_key", s.wrap(s.keystoreAuth(s.createKEK)))
	mux.HandleFunc("GET /key_encryption_key", s.wrap(s.keystoreAuth(s.getKEK)))
	mux.HandleFunc("POST /data_encryption_keys", s.wrap(s.keystoreAuth(s.createDEK)))
	mux.HandleFunc("GET /data_encryption_keys/{id}", s.wrap(s.keystoreAuth(s.getDEK)))
	mux.HandleFunc("POST /keypairs", s.wrap(s.keystoreAuth(s.createKeypair)))
	mux.HandleFunc("GET /keypairs/{id}", s.wrap(s.keystoreAuth(s.getKeypair)))
	mux.HandleFunc("GET /keypairs/external_id/{id}", s.wrap(s.keystoreAuth(s.getKeypairByExternalID)))
	return mux
}

type keystoreHandler func(r *http.Request, username string) (int, any, error)

// keystoreAuth resolves the session token to the keystore username. The
// state lock is held for the whole call.
func (s *Server) keystoreAuth(h keystoreHandler) handlerFunc {
	return func(r *http.Request) (int, any, error) {
		sid, err := s.keystoreTokens.Subject(bearer(r))
		if err != nil {
			return 0, nil, errUnauthorized
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		username, ok := s.ks.sessions[sid]
		if !ok {
			return 0, nil, errUnauthorized
		}
		return h(r, username)
	}
}

func (s *Server) generateUsername(r *http.Request) (int, any, error) {
	username, err := common.MakeRandHexString(12)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, map[string]string{"username": username}, nil
}

func (s *Server) createSRPUser(r *http.Request) (int, any, error) {
	var req struct {
		Username string `json:"username"`
		Salt     string `json:"srp_salt"`
		Verifier string `json:"srp_verifier"`
	}
	if err := decode(r, &req); err != nil {
		return 0, nil, err
	}
	if req.Username == "" || req.Salt == "" || req.Verifier == "" {
		return 0, nil, badRequest("invalid_user", "username, srp_salt and srp_verifier are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ks.users[req.Username]; ok {
		return 0, nil, badRequest("username_taken", "username is already taken")
	}
	s.ks.users[req.Username] = srpUser{salt: req.Salt, verifier: req.Verifier}
	return http.StatusCreated, map[string]any{"user": map[string]string{"username": req.Username}}, nil
}

// createSRPChallenge answers unknown usernames with a challenge for a random
// verifier, so a failed login looks the same whether or not the user exists.
func (s *Server) createSRPChallenge(r *http.Request) (int, any, error) {
	var req struct {
		Username string `json:"username"`
		A        string `json:"srp_a"`
	}
	if err := decode(r, &req); err != nil {
		return 0, nil, err
	}

	s.mu.Lock()
	u, ok := s.ks.users[req.Username]
	s.mu.Unlock()
	if !ok {
		decoy, err := srp.NewClient(req.Username, newID())
		if err != nil {
			return 0, nil, err
		}
		if u.salt, u.verifier, err = decoy.CreateVerifier(); err != nil {
			return 0, nil, err
		}
	}

	srv, err := srp.NewServer(req.Username, u.salt, u.verifier)
	if err != nil {
		return 0, nil, err
	}

	s.mu.Lock()
	if ok {
		s.ks.pending[req.Username] = srv
	}
	s.mu.Unlock()

	return http.StatusOK, map[string]any{"challenge": client.SRPChallenge{
		ChallengeB:    srv.ServerPublic(),
		ChallengeSalt: srv.Salt(),
	}}, nil
}

func (s *Server) createSRPSession(r *http.Request) (int, any, error) {
	var req struct {
		Username string `json:"username"`
		A        string `json:"srp_a"`
		M        string `json:"srp_m"`
	}
	if err := decode(r, &req); err != nil {
		return 0, nil, err
	}

	s.mu.Lock()
	srv, ok := s.ks.pending[req.Username]
	delete(s.ks.pending, req.Username)
	s.mu.Unlock()
	if !ok {
		return 0, nil, errUnauthorized
	}
	if err := srv.VerifyProof(req.A, req.M); err != nil {
		return 0, nil, errUnauthorized
	}

	sid := newID()
	token, err := s.keystoreTokens.Issue(sid)
	if err != nil {
		return 0, nil, err
	}
	s.mu.Lock()
	s.ks.sessions[sid] = req.Username
	s.mu.Unlock()

	return http.StatusOK, map[string]any{"session": map[string]string{"session_authentication_string": token}}, nil
}

func (s *Server) deleteKeystoreSession(r *http.Request, username string) (int, any, error) {
	sid, _ := s.keystoreTokens.Subject(bearer(r))
	delete(s.ks.sessions, sid)
	return http.StatusNoContent, nil, nil
}

func (s *Server) externalAdmissionToken(r *http.Request, username string) (int, any, error) {
	token, err := s.admissionTokens.Issue(username)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, map[string]any{"external_admission_token": map[string]string{"vault_api_admission_token": token}}, nil
}

func (s *Server) createKEK(r *http.Request, username string) (int, any, error) {
	var req struct {
		Serialized string `json:"serialized_key_encryption_key"`
	}
	if err := decode(r, &req); err != nil {
		return 0, nil, err
	}
	if _, ok := s.ks.keks[username]; ok {
		return 0, nil, badRequest("kek_exists", "key encryption key already stored")
	}
	s.ks.keks[username] = req.Serialized
	return http.StatusCreated, map[string]any{"key_encryption_key": req}, nil
}

func (s *Server) getKEK(r *http.Request, username string) (int, any, error) {
	kek, ok := s.ks.keks[username]
	if !ok {
		return 0, nil, errNotFound
	}
	return http.StatusOK, map[string]any{"key_encryption_key": map[string]string{"serialized_key_encryption_key": kek}}, nil
}

func (s *Server) createDEK(r *http.Request, username string) (int, any, error) {
	var req struct {
		Serialized string `json:"serialized_data_encryption_key"`
	}
	if err := decode(r, &req); err != nil {
		return 0, nil, err
	}
	dek := client.DataEncryptionKey{ID: newID(), SerializedDataEncryptionKey: req.Serialized}
	s.ks.deks[dek.ID] = ownedDEK{owner: username, dek: dek}
	return http.StatusCreated, map[string]any{"data_encryption_key": dek}, nil
}

func (s *Server) getDEK(r *http.Request, username string) (int, any, error) {
	d, ok := s.ks.deks[r.PathValue("id")]
	if !ok || d.owner != username {
		return 0, nil, errNotFound
	}
	return http.StatusOK, map[string]any{"data_encryption_key": d.dek}, nil
}

func (s *Server) createKeypair(r *http.Request, username string) (int, any, error) {
	var req client.NewKeypair
	if err := decode(r, &req); err != nil {
		return 0, nil, err
	}
	for _, ext := range req.ExternalIdentifiers {
		if _, ok := s.keypairByExternalID(username, ext); ok {
			return 0, nil, badRequest("external_identifier_taken", "external identifier "+ext+" already used")
		}
	}
	kp := client.Keypair{
		ID:                     newID(),
		PublicKey:              req.PublicKey,
		EncryptedSerializedKey: req.EncryptedSerializedKey,
		Metadata:               req.Metadata,
		ExternalIdentifiers:    req.ExternalIdentifiers,
	}
	s.ks.keypairs[kp.ID] = ownedKeypair{owner: username, kp: kp}
	return http.StatusCreated, map[string]any{"keypair": kp}, nil
}

func (s *Server) getKeypair(r *http.Request, username string) (int, any, error) {
	k, ok := s.ks.keypairs[r.PathValue("id")]
	if !ok || k.owner != username {
		return 0, nil, errNotFound
	}
	return http.StatusOK, map[string]any{"keypair": k.kp}, nil
}

func (s *Server) getKeypairByExternalID(r *http.Request, username string) (int, any, error) {
	kp, ok := s.keypairByExternalID(username, r.PathValue("id"))
	if !ok {
		return 0, nil, errNotFound
	}
	return http.StatusOK, map[string]any{"keypair": kp}, nil
}

func (s *Server) keypairByExternalID(username, ext string) (client.Keypair, bool) {
	for _, k := range s.ks.keypairs {
		if k.owner == username && slices.Contains(k.kp.ExternalIdentifiers, ext) {
			return k.kp, true
		}
	}
	return client.Keypair{}, false
}
