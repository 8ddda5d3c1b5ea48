package assets

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoToken is returned when the auth endpoint answers without a token.
var ErrNoToken = errors.New("assets: auth response carried no token")

// Login exchanges email and password for a bearer token at
// POST {base}/api/user/auth. A nil client uses http.DefaultClient.
func Login(ctx context.Context, client *http.Client, base, email, password string) (string, error) {
	if client == nil {
		client = http.DefaultClient
	}
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return "", err
	}
	u := Endpoints{Base: base}.AuthURL()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("POST %v: %w", u, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read auth response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("POST %v: %v", u, resp.Status)
	}
	var out struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
		Token string `json:"token"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("decode auth response: %w", err)
	}
	token := out.Data.Token
	if token == "" {
		token = out.Token
	}
	if token == "" {
		return "", ErrNoToken
	}
	if exp, err := TokenExpiry(token); err == nil && !exp.IsZero() {
		log.Printf("assets: token valid until %v", exp.Format(time.RFC3339))
	}
	return token, nil
}

// TokenExpiry reads the exp claim of a JWT without verifying its signature.
// A token without exp returns the zero time.
func TokenExpiry(token string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, fmt.Errorf("parse token: %w", err)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, err
	}
	if exp == nil {
		return time.Time{}, nil
	}
	return exp.Time, nil
}
