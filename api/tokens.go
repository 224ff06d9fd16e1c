package api

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/awnumar/memguard"
	"github.com/golang-jwt/jwt/v5"

	"github.com/jmcleod/credvault/internal/util"
	"github.com/jmcleod/credvault/internal/uuid"
)

const (
	defaultTokenTTL   = 24 * time.Hour
	signingKeySize    = 32
	minSigningKeySize = 32
	tokenIssuer       = "credvault"
)

var errInvalidToken = errors.New("could not validate credentials")

// tokenSigner signs and verifies HS256 bearer tokens. The signing key is
// kept sealed in a memguard enclave and only opened for the duration of a
// sign or verify call.
type tokenSigner struct {
	key *memguard.Enclave
	ttl time.Duration
	now func() time.Time
}

// newTokenSigner seals key; an empty key is replaced with a random one, which
// invalidates every token on restart.
func newTokenSigner(key []byte, ttl time.Duration) (*tokenSigner, error) {
	if len(key) == 0 {
		random, err := util.RandomBytes(signingKeySize)
		if err != nil {
			return nil, fmt.Errorf("generating signing key: %w", err)
		}
		key = random
	} else if len(key) < minSigningKeySize {
		return nil, fmt.Errorf("signing key must be at least %d bytes", minSigningKeySize)
	}
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	// NewEnclave copies and wipes key.
	return &tokenSigner{
		key: memguard.NewEnclave(util.CopyBytes(key)),
		ttl: ttl,
		now: time.Now,
	}, nil
}

// issue returns a signed token whose subject is accountID.
func (s *tokenSigner) issue(accountID uint64) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   strconv.FormatUint(accountID, 10),
		ID:        uuid.New(),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}

	buf, err := s.key.Open()
	if err != nil {
		return "", fmt.Errorf("opening signing key: %w", err)
	}
	defer buf.Destroy()

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(buf.Bytes())
}

// verify checks signature, algorithm, issuer, expiry and token ID and returns the
// account ID in the subject.
func (s *tokenSigner) verify(token string) (uint64, error) {
	buf, err := s.key.Open()
	if err != nil {
		return 0, fmt.Errorf("opening signing key: %w", err)
	}
	defer buf.Destroy()

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return buf.Bytes(), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid || !uuid.Valid(claims.ID) {
		return 0, errInvalidToken
	}
	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || id == 0 {
		return 0, errInvalidToken
	}
	return id, nil
}
