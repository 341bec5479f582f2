// Package srp implements the SRP-6a password authenticated key exchange
// (RFC 5054 2048-bit group, SHA-256) used to open keystore sessions.
//
// All values cross the wire hex encoded. The client half drives registration
// (CreateVerifier) and login (ClientPublic, ComputeProof); the server half is
// what the keystore runs and is used by the in-process fake.
package srp

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
)

var (
	ErrInvalidPublic = errors.New("srp: invalid public value")
	ErrBadProof      = errors.New("srp: client proof mismatch")
	ErrNoChallenge   = errors.New("srp: proof requested before challenge")
)

const (
	saltBytes      = 32
	ephemeralBytes = 32
)

// RFC 5054 appendix A, 2048-bit group.
var (
	groupN, _ = new(big.Int).SetString(""+
		"AC6BDB41324A9A9BF166DE5E1389582FAF72B6651987EE07FC3192943DB56050"+
		"A37329CBB4A099ED8193E0757767A13DD52312AB4B03310DCD7F48A9DA04FD50"+
		"E8083969EDB767B0CF6095179A163AB3661A05FBD5FAAAE82918A9962F0B93B8"+
		"55F97993EC975EEAA80D740ADBF4FF747359D041D5C33EA71D281E446B14773B"+
		"CA97B43A23FB801676BD207A436C6481F1D2B9078717461A5B9D32E688F87748"+
		"544523B524B0D57D5EA77A2775D2ECFA032CFBDBF52FB3786160279004E57AE6"+
		"AF874E7303CE53299CCC041C7BC308D82A5698F3A8D0C38271AE35F8E9DBFBB6"+
		"94B5C803D89F7AE435DE236D525F54759B65E372FCD68EF20FA7111F9E4AFF73", 16)
	groupG = big.NewInt(2)
	padLen = len(groupN.Bytes())
	k      = hashInt(pad(groupN), pad(groupG))
)

// Client is one side of an SRP exchange. A Client is single use: create a new
// one for every login attempt.
type Client struct {
	username string
	password string

	a *big.Int
	A *big.Int

	key []byte
}

// NewClient prepares an exchange for username/password and picks a fresh
// private ephemeral.
func NewClient(username, password string) (*Client, error) {
	a, err := randomInt(ephemeralBytes)
	if err != nil {
		return nil, err
	}
	return &Client{
		username: username,
		password: password,
		a:        a,
		A:        new(big.Int).Exp(groupG, a, groupN),
	}, nil
}

// CreateVerifier returns a fresh salt and the matching verifier, both hex,
// for registration.
func (c *Client) CreateVerifier() (salt string, verifier string, err error) {
	s := make([]byte, saltBytes)
	if _, err := rand.Read(s); err != nil {
		return "", "", err
	}
	x := privateKey(s, c.username, c.password)
	v := new(big.Int).Exp(groupG, x, groupN)
	return hex.EncodeToString(s), hex.EncodeToString(v.Bytes()), nil
}

// ClientPublic returns A.
func (c *Client) ClientPublic() string {
	return hex.EncodeToString(c.A.Bytes())
}

// ComputeProof answers the server challenge (salt, B) with M1.
func (c *Client) ComputeProof(saltHex, serverPublicHex string) (string, error) {
	s, err := hex.DecodeString(saltHex)
	if err != nil {
		return "", fmt.Errorf("srp: salt: %w", err)
	}
	B, err := parsePublic(serverPublicHex)
	if err != nil {
		return "", err
	}

	u := hashInt(pad(c.A), pad(B))
	if u.Sign() == 0 {
		return "", ErrInvalidPublic
	}

	x := privateKey(s, c.username, c.password)

	// S = (B - k*g^x) ^ (a + u*x) mod N
	gx := new(big.Int).Exp(groupG, x, groupN)
	base := new(big.Int).Sub(B, new(big.Int).Mul(k, gx))
	base.Mod(base, groupN)
	exp := new(big.Int).Add(c.a, new(big.Int).Mul(u, x))
	S := new(big.Int).Exp(base, exp, groupN)

	c.key = hashBytes(S.Bytes())
	return hex.EncodeToString(proof(c.username, s, c.A, B, c.key)), nil
}

// SessionKey returns K once ComputeProof has run.
func (c *Client) SessionKey() ([]byte, error) {
	if c.key == nil {
		return nil, ErrNoChallenge
	}
	return c.key, nil
}

// Server is the verifier side of the exchange.
type Server struct {
	username string
	salt     []byte
	v        *big.Int

	b *big.Int
	B *big.Int

	key []byte
}

// NewServer creates the server half for a stored salt and verifier.
func NewServer(username, saltHex, verifierHex string) (*Server, error) {
	s, err := hex.DecodeString(saltHex)
	if err != nil {
		return nil, fmt.Errorf("srp: salt: %w", err)
	}
	vb, err := hex.DecodeString(verifierHex)
	if err != nil {
		return nil, fmt.Errorf("srp: verifier: %w", err)
	}
	b, err := randomInt(ephemeralBytes)
	if err != nil {
		return nil, err
	}
	v := new(big.Int).SetBytes(vb)

	// B = k*v + g^b mod N
	B := new(big.Int).Mul(k, v)
	B.Add(B, new(big.Int).Exp(groupG, b, groupN))
	B.Mod(B, groupN)

	return &Server{username: username, salt: s, v: v, b: b, B: B}, nil
}

// Salt returns the stored salt, hex encoded.
func (s *Server) Salt() string {
	return hex.EncodeToString(s.salt)
}

// ServerPublic returns B.
func (s *Server) ServerPublic() string {
	return hex.EncodeToString(s.B.Bytes())
}

// VerifyProof checks the client's M1 against A. ErrBadProof means the
// password was wrong.
func (s *Server) VerifyProof(clientPublicHex, proofHex string) error {
	A, err := parsePublic(clientPublicHex)
	if err != nil {
		return err
	}
	m1, err := hex.DecodeString(proofHex)
	if err != nil {
		return ErrBadProof
	}

	u := hashInt(pad(A), pad(s.B))
	if u.Sign() == 0 {
		return ErrInvalidPublic
	}

	// S = (A * v^u) ^ b mod N
	base := new(big.Int).Mul(A, new(big.Int).Exp(s.v, u, groupN))
	base.Mod(base, groupN)
	S := new(big.Int).Exp(base, s.b, groupN)

	key := hashBytes(S.Bytes())
	want := proof(s.username, s.salt, A, s.B, key)
	if subtle.ConstantTimeCompare(want, m1) != 1 {
		return ErrBadProof
	}
	s.key = key
	return nil
}

// SessionKey returns K after a successful VerifyProof.
func (s *Server) SessionKey() ([]byte, error) {
	if s.key == nil {
		return nil, ErrNoChallenge
	}
	return s.key, nil
}

// x = H(s | H(I ":" P))
func privateKey(salt []byte, username, password string) *big.Int {
	inner := hashBytes([]byte(username + ":" + password))
	return hashInt(salt, inner)
}

// M1 = H(H(N) xor H(g) | H(I) | s | A | B | K)
func proof(username string, salt []byte, A, B *big.Int, key []byte) []byte {
	hn := hashBytes(groupN.Bytes())
	hg := hashBytes(groupG.Bytes())
	for i := range hn {
		hn[i] ^= hg[i]
	}
	return hashBytes(hn, hashBytes([]byte(username)), salt, A.Bytes(), B.Bytes(), key)
}

func parsePublic(h string) (*big.Int, error) {
	raw, err := hex.DecodeString(h)
	if err != nil || len(raw) == 0 {
		return nil, ErrInvalidPublic
	}
	v := new(big.Int).SetBytes(raw)
	if new(big.Int).Mod(v, groupN).Sign() == 0 {
		return nil, ErrInvalidPublic
	}
	return v, nil
}

func randomInt(n int) (*big.Int, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(b), nil
}

func pad(v *big.Int) []byte {
	out := make([]byte, padLen)
	return v.FillBytes(out)
}

func hashBytes(parts ...[]byte) []byte {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

func hashInt(parts ...[]byte) *big.Int {
	return new(big.Int).SetBytes(hashBytes(parts...))
}
