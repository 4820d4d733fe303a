package session

import (
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	qrcode "github.com/skip2/go-qrcode"
)

var ErrInvalidToken = errors.New("invalid check-in token")

// checkinClaims is the payload embedded in a session QR code.
type checkinClaims struct {
	ModuleID  int64  `json:"module_id"`
	SessionID int64  `json:"session_id"`
	RunID     int64  `json:"run_id"`
	Date      string `json:"date"`
	jwt.RegisteredClaims
}

// QRIssuer signs check-in tokens and renders them as QR codes pointing at the
// public check-in URL.
type QRIssuer struct {
	signingKey string
	issuer     string
	baseURL    string
	ttl        time.Duration
}

func NewQRIssuer(signingKey, issuer, baseURL string, ttl time.Duration) *QRIssuer {
	if ttl <= 0 {
		ttl = 4 * time.Hour
	}
	return &QRIssuer{signingKey: signingKey, issuer: issuer, baseURL: baseURL, ttl: ttl}
}

// IssueSessionToken signs an HS256 token binding a session to its module, the
// current app run, and the session date.
func (q *QRIssuer) IssueSessionToken(moduleID, sessionID, runID int64, date string) (string, error) {
	now := time.Now()
	claims := checkinClaims{
		ModuleID:  moduleID,
		SessionID: sessionID,
		RunID:     runID,
		Date:      date,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    q.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(q.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(q.signingKey))
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return token, nil
}

// VerifySessionToken validates a scanned token and returns the session id it
// was issued for.
func (q *QRIssuer) VerifySessionToken(tokenStr string) (int64, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &checkinClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(q.signingKey), nil
	})
	if err != nil {
		return 0, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*checkinClaims)
	if !ok || !parsed.Valid {
		return 0, ErrInvalidToken
	}
	if q.issuer != "" && claims.Issuer != q.issuer {
		return 0, ErrInvalidToken
	}
	if claims.SessionID <= 0 {
		return 0, ErrInvalidToken
	}
	return claims.SessionID, nil
}

// CheckinURL is the address students land on when scanning the QR code.
func (q *QRIssuer) CheckinURL(token string) string {
	return fmt.Sprintf("%s/checkin?tk=%s", q.baseURL, token)
}

// QRPNGBase64 renders url as a 256px PNG QR code, base64 encoded for direct
// embedding in an <img> data URL.
func (q *QRIssuer) QRPNGBase64(url string) (string, error) {
	png, err := qrcode.Encode(url, qrcode.Medium, 256)
	if err != nil {
		return "", fmt.Errorf("encode qr: %w", err)
	}
	return base64.StdEncoding.EncodeToString(png), nil
}
