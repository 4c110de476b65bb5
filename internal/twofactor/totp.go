// Package twofactor implements TOTP enrollment and verification.
package twofactor

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/png"
	"net/url"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/morningai/morningai/internal/assert"
)

const (
	period  = 30
	skew    = 1 // accept the previous and next step
	qrSize  = 256
	dataURI = "data:image/png;base64,"
)

// Enrollment is what a user needs to register an authenticator app
type Enrollment struct {
	Secret string `json:"secret"`
	URI    string `json:"uri"`
	QRCode string `json:"qr_code"`
}

// Service generates and checks TOTP codes
type Service struct {
	issuer string
	now    func() time.Time
}

// NewService creates a TOTP service labelling keys with issuer
func NewService(issuer string) *Service {
	return &Service{issuer: issuer, now: time.Now}
}

// GenerateSecret returns a new base32 secret
func (s *Service) GenerateSecret(accountName string) (string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.issuer,
		AccountName: accountName,
		Period:      period,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate totp secret: %w", err)
	}
	assert.MinLength("totp secret", key.Secret(), 32) // 160 bits, base32
	return key.Secret(), nil
}

// Enroll builds the provisioning URI and QR code for an existing secret
func (s *Service) Enroll(secret, accountName string) (*Enrollment, error) {
	params := url.Values{}
	params.Set("secret", secret)
	params.Set("issuer", s.issuer)
	params.Set("algorithm", "SHA1")
	params.Set("digits", "6")
	params.Set("period", fmt.Sprint(period))

	uri := url.URL{
		Scheme:   "otpauth",
		Host:     "totp",
		Path:     "/" + s.issuer + ":" + accountName,
		RawQuery: params.Encode(),
	}

	key, err := otp.NewKeyFromURL(uri.String())
	if err != nil {
		return nil, fmt.Errorf("failed to build totp key: %w", err)
	}

	img, err := key.Image(qrSize, qrSize)
	if err != nil {
		return nil, fmt.Errorf("failed to render qr code: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode qr code: %w", err)
	}

	return &Enrollment{
		Secret: secret,
		URI:    key.URL(),
		QRCode: dataURI + base64.StdEncoding.EncodeToString(buf.Bytes()),
	}, nil
}

// Validate checks a 6-digit code against secret
func (s *Service) Validate(secret, code string) bool {
	if secret == "" || code == "" {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, s.now().UTC(), totp.ValidateOpts{
		Period:    period,
		Skew:      skew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}
