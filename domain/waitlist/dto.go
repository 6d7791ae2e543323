package waitlist

import (
	"errors"
	"strings"

	apperrors "github.com/akeren/waitlist-edge/pkg/errors"
	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	EmailField        = "email"
	CaptchaTokenField = "cf-turnstile-response"

	MessageJoined    = "Successfully joined waitlist!"
	MessageDuplicate = "You're already on the waitlist!"

	// MessageServiceError is the only text a caller sees for unclassified failures.
	MessageServiceError = "Waitlist service error. Please try again later."
	MessageListFailure  = "Failed to fetch waitlist"
)

var (
	ErrInvalidBody        = apperrors.NewInvalidRequestError("Invalid JSON body", nil)
	ErrInvalidEmail       = apperrors.NewInvalidRequestError("Valid email is required", nil)
	ErrMissingCaptcha     = apperrors.NewInvalidRequestError("Missing CAPTCHA token", nil)
	ErrCaptchaRejected    = apperrors.NewCaptchaRejectedError("CAPTCHA verification failed", nil)
	ErrCaptchaUnavailable = apperrors.NewServiceUnavailableError("CAPTCHA verification service unavailable", nil)
	ErrStoreUnavailable   = apperrors.NewServiceUnavailableError("Database not configured", nil)
)

// SignupRequest is built per request from untrusted input and never stored.
type SignupRequest struct {
	Email        string `json:"email" binding:"required,contains=@"`
	CaptchaToken string `json:"cf-turnstile-response" binding:"required"`
	ClientIP     string `json:"-"`
}

// NormalizedEmail is the form written to and compared in the store.
func (r *SignupRequest) NormalizedEmail() string {
	return lowerCaser.String(r.Email)
}

// CaptchaRejectedError carries the verifier's error codes back to the caller.
// Codes is nil when the verifier sent none.
type CaptchaRejectedError struct {
	Codes []string
}

func (e *CaptchaRejectedError) Error() string {
	return ErrCaptchaRejected.Message
}

func (e *CaptchaRejectedError) Unwrap() error {
	return ErrCaptchaRejected
}

type Subscriber struct {
	Email        string `json:"email"`
	SubscribedAt string `json:"subscribedAt,omitempty"`
}

type SubscriberListResponse struct {
	Count       int          `json:"count"`
	Subscribers []Subscriber `json:"subscribers"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

var lowerCaser = cases.Lower(language.Und)

// NormalizeSignupRequest decodes a raw body into a SignupRequest. Checks run in
// order and stop at the first failure: the body must be JSON, the email must
// contain '@', the token must be present. Non-string fields count as empty.
func NormalizeSignupRequest(raw []byte, clientIP string) (*SignupRequest, error) {
	var body any
	if err := sonic.Unmarshal(raw, &body); err != nil {
		return nil, ErrInvalidBody.WithCause(err)
	}

	fields, _ := body.(map[string]any)

	req := &SignupRequest{
		Email:        trimmedString(fields[EmailField]),
		CaptchaToken: trimmedString(fields[CaptchaTokenField]),
		ClientIP:     strings.TrimSpace(clientIP),
	}

	if err := binding.Validator.ValidateStruct(req); err != nil {
		return nil, validationFailure(err)
	}

	return req, nil
}

func trimmedString(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

// validationFailure maps the first failing field, in declaration order.
func validationFailure(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) || len(validationErrors) == 0 {
		return ErrInvalidBody.WithCause(err)
	}

	switch validationErrors[0].StructField() {
	case "Email":
		return ErrInvalidEmail.WithCause(err)
	default:
		return ErrMissingCaptcha.WithCause(err)
	}
}
