// Package security provides payload fingerprints and signed envelopes for served yield data
package security

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"
)

var (
	ErrHashMismatch     = errors.New("payload hash mismatch")
	ErrSignatureInvalid = errors.New("signature verification failed")
	ErrSignatureExpired = errors.New("signature expired")
)

// VerificationOptions configures the behavior of data integrity checks
type VerificationOptions struct {
	SignatureEnabled  bool          `json:"signature_enabled"`
	SignatureValidity time.Duration `json:"signature_validity"`
}

// Envelope is a signed payload. Signature is a 65 byte secp256k1 signature over Hash.
type Envelope struct {
	Payload    json.RawMessage `json:"payload"`
	Hash       string          `json:"keccak256"`
	Signature  string          `json:"signature"`
	Signer     string          `json:"signer"`
	SignedAt   int64           `json:"signed_at"`
	ValidUntil int64           `json:"valid_until,omitempty"`
}

// DataIntegrityService fingerprints and signs payloads with one secp256k1 key
type DataIntegrityService struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	opts       VerificationOptions
	now        func() time.Time
}

// NewDataIntegrityService creates a service with a freshly generated key
func NewDataIntegrityService(opts VerificationOptions) (*DataIntegrityService, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return newService(key, opts), nil
}

// NewDataIntegrityServiceFromKey creates a service from a hex encoded private key
func NewDataIntegrityServiceFromKey(hexKey string, opts VerificationOptions) (*DataIntegrityService, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse signing key: %w", err)
	}
	return newService(key, opts), nil
}

func newService(key *ecdsa.PrivateKey, opts VerificationOptions) *DataIntegrityService {
	s := &DataIntegrityService{
		privateKey: key,
		address:    crypto.PubkeyToAddress(key.PublicKey),
		opts:       opts,
		now:        time.Now,
	}
	logrus.WithField("signer", s.address.Hex()).Info("Data integrity service initialized")
	return s
}

// WithClock replaces the time source used for envelope timestamps
func (s *DataIntegrityService) WithClock(now func() time.Time) *DataIntegrityService {
	if now != nil {
		s.now = now
	}
	return s
}

// Enabled reports whether signed envelopes may be served
func (s *DataIntegrityService) Enabled() bool {
	return s != nil && s.opts.SignatureEnabled
}

// Address returns the signer address
func (s *DataIntegrityService) Address() string {
	return s.address.Hex()
}

// Fingerprint returns the keccak256 hash of the JSON encoding of payload
func Fingerprint(payload interface{}) (string, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}
	return crypto.Keccak256Hash(b).Hex(), nil
}

// SignPayload wraps payload in a signed envelope
func (s *DataIntegrityService) SignPayload(payload interface{}) (*Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	hash := crypto.Keccak256Hash(b)
	sig, err := crypto.Sign(hash.Bytes(), s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign payload: %w", err)
	}

	now := s.now()
	env := &Envelope{
		Payload:   b,
		Hash:      hash.Hex(),
		Signature: hexutil.Encode(sig),
		Signer:    s.address.Hex(),
		SignedAt:  now.Unix(),
	}
	if s.opts.SignatureValidity > 0 {
		env.ValidUntil = now.Add(s.opts.SignatureValidity).Unix()
	}
	return env, nil
}

// Verify checks the envelope hash, expiry and signature and returns the recovered signer
func Verify(env *Envelope, now time.Time) (common.Address, error) {
	if env == nil {
		return common.Address{}, ErrSignatureInvalid
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, env.Payload); err != nil {
		return common.Address{}, fmt.Errorf("invalid payload: %w", err)
	}
	hash := crypto.Keccak256Hash(compact.Bytes())
	if hash.Hex() != env.Hash {
		return common.Address{}, ErrHashMismatch
	}

	if env.ValidUntil > 0 && now.Unix() > env.ValidUntil {
		return common.Address{}, fmt.Errorf("%w at %v", ErrSignatureExpired, time.Unix(env.ValidUntil, 0).UTC())
	}

	sig, err := hexutil.Decode(env.Signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to decode signature: %w", err)
	}
	pub, err := crypto.SigToPub(hash.Bytes(), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}

	signer := crypto.PubkeyToAddress(*pub)
	if !strings.EqualFold(signer.Hex(), env.Signer) {
		return common.Address{}, ErrSignatureInvalid
	}
	return signer, nil
}
