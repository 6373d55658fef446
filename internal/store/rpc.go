package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/PouplarWesel/Shrubbi-sub000/internal/domain"
	shrubbi_errors "github.com/PouplarWesel/Shrubbi-sub000/pkg/errors"
)

// HTTPRPC calls the compound-write endpoints over HTTP with a bearer token.
type HTTPRPC struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewHTTPRPC(baseURL, token string) *HTTPRPC {
	return &HTTPRPC{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (r *HTTPRPC) SendMessage(ctx context.Context, in SendMessageInput) (uuid.UUID, error) {
	if in.Kind == "" {
		in.Kind = domain.KindText
	}
	if in.Kind == domain.KindText && strings.TrimSpace(in.Body) == "" {
		return uuid.Nil, shrubbi_errors.ErrBlankBody
	}
	var out struct {
		MessageID uuid.UUID `json:"message_id"`
	}
	if err := r.post(ctx, "/send-message", in, &out); err != nil {
		return uuid.Nil, err
	}
	return out.MessageID, nil
}

func (r *HTTPRPC) CreateThread(ctx context.Context, in CreateThreadInput) (CreateThreadResult, error) {
	if in.Kind == "" {
		in.Kind = domain.KindText
	}
	if in.Kind == domain.KindText && strings.TrimSpace(in.Body) == "" {
		return CreateThreadResult{}, shrubbi_errors.ErrBlankBody
	}
	var out CreateThreadResult
	if err := r.post(ctx, "/create-thread", in, &out); err != nil {
		return CreateThreadResult{}, err
	}
	return out, nil
}

func (r *HTTPRPC) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized:
		return shrubbi_errors.ErrAccessDenied
	case resp.StatusCode == http.StatusUnprocessableEntity || resp.StatusCode == http.StatusBadRequest:
		return shrubbi_errors.ErrInvalidInput
	case resp.StatusCode >= 300:
		return fmt.Errorf("rpc %s: unexpected status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
