package qr

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"

	"github.com/skip2/go-qrcode"

	"ms-booking/internal/models"
)

var ErrMalformedPayload = errors.New("malformed boarding pass payload")

// Generator seals boarding passes with AES-GCM and renders them as QR codes.
type Generator struct {
	secret []byte
}

func NewGenerator(secret string) *Generator {
	hashed := sha256.Sum256([]byte(secret)) // normalize to 32 bytes
	return &Generator{secret: hashed[:]}
}

// GenerateEncryptedQR returns a 256px PNG encoding the sealed pass.
func (g *Generator) GenerateEncryptedQR(pass models.BoardingPass) ([]byte, error) {
	sealed, err := g.Seal(pass)
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(sealed, qrcode.Medium, 256)
}

// Seal encrypts pass into a URL-safe string.
func (g *Generator) Seal(pass models.BoardingPass) (string, error) {
	data, err := json.Marshal(pass)
	if err != nil {
		return "", err
	}

	gcm, err := g.aead()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ciphertext := gcm.Seal(nonce, nonce, data, nil)
	return base64.URLEncoding.EncodeToString(ciphertext), nil
}

// Open reverses Seal. Tampered or foreign payloads fail authentication.
func (g *Generator) Open(sealed string) (*models.BoardingPass, error) {
	raw, err := base64.URLEncoding.DecodeString(sealed)
	if err != nil {
		return nil, ErrMalformedPayload
	}

	gcm, err := g.aead()
	if err != nil {
		return nil, err
	}
	if len(raw) < gcm.NonceSize() {
		return nil, ErrMalformedPayload
	}

	nonce, ciphertext := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	data, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrMalformedPayload
	}

	var pass models.BoardingPass
	if err := json.Unmarshal(data, &pass); err != nil {
		return nil, ErrMalformedPayload
	}
	return &pass, nil
}

func (g *Generator) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(g.secret)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
