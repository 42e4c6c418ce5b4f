package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrTokenInvalid = errors.New("storage: invalid download token")
	ErrTokenExpired = errors.New("storage: download token expired")
)

// DownloadGrant is the content of a verified download token.
type DownloadGrant struct {
	FileID    string
	Subject   string
	ExpiresAt time.Time
}

// SignedURLSigner issues and verifies HMAC signed download tokens that bind a
// file to the user it was issued for.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSignedURLSigner constructs a signer with the provided secret and TTL.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &SignedURLSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Generate returns a token for fileID usable by subject until the returned expiry.
func (s *SignedURLSigner) Generate(fileID, subject string) (string, time.Time, error) {
	if fileID == "" || subject == "" {
		return "", time.Time{}, fmt.Errorf("fileID and subject required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := s.now().Add(s.ttl).Truncate(time.Second)
	encodedSubject := base64.RawURLEncoding.EncodeToString([]byte(subject))
	ts := strconv.FormatInt(expiresAt.Unix(), 10)
	token := strings.Join([]string{fileID, ts, encodedSubject, s.sign(fileID, ts, encodedSubject)}, ".")
	return token, expiresAt, nil
}

// Parse validates a token and returns the grant it carries.
func (s *SignedURLSigner) Parse(token string) (DownloadGrant, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return DownloadGrant{}, ErrTokenInvalid
	}
	fileID, ts, encodedSubject, signature := parts[0], parts[1], parts[2], parts[3]

	if !hmac.Equal([]byte(s.sign(fileID, ts, encodedSubject)), []byte(signature)) {
		return DownloadGrant{}, ErrTokenInvalid
	}
	subject, err := base64.RawURLEncoding.DecodeString(encodedSubject)
	if err != nil {
		return DownloadGrant{}, ErrTokenInvalid
	}
	expUnix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return DownloadGrant{}, ErrTokenInvalid
	}
	grant := DownloadGrant{FileID: fileID, Subject: string(subject), ExpiresAt: time.Unix(expUnix, 0)}
	if s.now().After(grant.ExpiresAt) {
		return grant, ErrTokenExpired
	}
	return grant, nil
}

func (s *SignedURLSigner) sign(fileID, ts, encodedSubject string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(fileID + "|" + ts + "|" + encodedSubject))
	return hex.EncodeToString(mac.Sum(nil))
}
