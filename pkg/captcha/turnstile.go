// Package captcha verifies Cloudflare Turnstile tokens.
package captcha

import (
	"context"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
)

const (
	// VerifyURL is Cloudflare's siteverify endpoint.
	VerifyURL = "https://challenges.cloudflare.com/turnstile/v0/siteverify"

	// TestSecretKey always passes verification. Only for development.
	TestSecretKey = "1x0000000000000000000000000000000AA"
)

// Result is the normalized siteverify answer. ErrorCodes is nil when the
// service did not send a usable "error-codes" array.
type Result struct {
	Success    bool
	ErrorCodes []string
}

// Verifier checks a client token against the verification service.
type Verifier interface {
	Verify(ctx context.Context, secret, token, remoteIP string) (Result, error)
}

// UnavailableError means the verification service could not give an answer:
// the call failed or came back with a non-2xx status.
type UnavailableError struct {
	StatusCode int
	Err        error
}

func (e *UnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("captcha verification unavailable: %v", e.Err)
	}
	return fmt.Sprintf("captcha verification unavailable: status %d", e.StatusCode)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

func IsUnavailable(err error) bool {
	var unavailable *UnavailableError
	return errors.As(err, &unavailable)
}

type TurnstileVerifier struct {
	client    *resty.Client
	verifyURL string
}

// NewTurnstileVerifier uses VerifyURL when verifyURL is empty. The client
// never retries.
func NewTurnstileVerifier(verifyURL string) *TurnstileVerifier {
	if verifyURL == "" {
		verifyURL = VerifyURL
	}

	return &TurnstileVerifier{
		client:    resty.New().SetRetryCount(0),
		verifyURL: verifyURL,
	}
}

func (v *TurnstileVerifier) Verify(ctx context.Context, secret, token, remoteIP string) (Result, error) {
	form := map[string]string{
		"secret":   secret,
		"response": token,
	}
	if remoteIP != "" {
		form["remoteip"] = remoteIP
	}

	resp, err := v.client.R().
		SetContext(ctx).
		SetFormData(form).
		Post(v.verifyURL)
	if err != nil {
		return Result{}, &UnavailableError{Err: err}
	}

	if !resp.IsSuccess() {
		return Result{}, &UnavailableError{StatusCode: resp.StatusCode()}
	}

	return ParseVerification(resp.Body()), nil
}

// ParseVerification never fails: anything that is not a JSON object with
// "success": true is a failed verification.
func ParseVerification(body []byte) Result {
	var raw any
	if err := sonic.Unmarshal(body, &raw); err != nil {
		return Result{}
	}

	obj, ok := raw.(map[string]any)
	if !ok {
		return Result{}
	}

	success, _ := obj["success"].(bool)

	var codes []string
	if list, ok := obj["error-codes"].([]any); ok {
		codes = make([]string, 0, len(list))
		for _, item := range list {
			if code, ok := item.(string); ok {
				codes = append(codes, code)
			}
		}
	}

	return Result{Success: success, ErrorCodes: codes}
}
