package qr

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/skip2/go-qrcode"
)

var ErrInvalidPass = errors.New("invalid booking pass")

// BookingPass identifies an accepted proposal; it travels encrypted inside the QR code.
type BookingPass struct {
	ProposalID  string    `json:"proposalId"`
	EventID     string    `json:"eventId"`
	ClientID    string    `json:"clientId"`
	OrganizerID string    `json:"organizerId"`
	IssuedAt    time.Time `json:"issuedAt"`
}

type QRGenerator struct {
	secret []byte
}

func NewQRGenerator(secret string) *QRGenerator {
	hashed := sha256.Sum256([]byte(secret)) // normalize to 32 bytes
	return &QRGenerator{secret: hashed[:]}
}

// GenerateEncryptedQR returns the PNG and the encrypted token it encodes.
func (q *QRGenerator) GenerateEncryptedQR(pass BookingPass) ([]byte, string, error) {
	data, err := json.Marshal(pass)
	if err != nil {
		return nil, "", err
	}

	token, err := encryptAES(data, q.secret)
	if err != nil {
		return nil, "", err
	}

	png, err := qrcode.Encode(token, qrcode.Medium, 256)
	if err != nil {
		return nil, "", err
	}
	return png, token, nil
}

// DecryptPass reverses GenerateEncryptedQR's token. Tampered tokens fail authentication.
func (q *QRGenerator) DecryptPass(token string) (*BookingPass, error) {
	data, err := decryptAES(token, q.secret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPass, err)
	}
	var pass BookingPass
	if err := json.Unmarshal(data, &pass); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPass, err)
	}
	return &pass, nil
}

// ShareQR encodes a plain URL.
func (q *QRGenerator) ShareQR(url string) ([]byte, error) {
	return qrcode.Encode(url, qrcode.Medium, 256)
}

func encryptAES(data []byte, key []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := gcm.Seal(nonce, nonce, data, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

func decryptAES(token string, key []byte) ([]byte, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(raw) < gcm.NonceSize() {
		return nil, errors.New("token too short")
	}
	nonce, sealed := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	return gcm.Open(nil, nonce, sealed, nil)
}
