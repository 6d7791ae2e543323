package waitlist

import (
	"errors"
	"net/http"
	"strings"

	"github.com/akeren/waitlist-edge/config/router"
	"github.com/akeren/waitlist-edge/internal/log"
	apperrors "github.com/akeren/waitlist-edge/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// ClientIPHeader is set by Cloudflare to the visitor address.
const ClientIPHeader = "CF-Connecting-IP"

func NewWaitlistController(service WaitlistService, logger *log.Logger) *router.RESTController {
	return router.NewRESTController(
		"WaitlistController",
		"/api",
		func(rs *router.RouterService, c *router.RESTController) {
			signups := registerSignupCounter(rs.MetricsRegisterer(), logger)

			join := joinWaitlistHandler(service, signups)
			rs.AddPostHandler(c, "subscribe", join)
			rs.AddPostHandler(c, "waitlist", join)
			rs.AddGetHandler(c, "list", listSubscribersHandler(service))
		},
	)
}

func registerSignupCounter(reg prometheus.Registerer, logger *log.Logger) *prometheus.CounterVec {
	counter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waitlist_signups_total",
			Help: "Waitlist signup attempts by outcome.",
		},
		[]string{"outcome"},
	)

	if err := reg.Register(counter); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing
			}
		}
		logger.Warn("Failed to register waitlist signup counter", "error", err)
	}

	return counter
}

func clientIP(ctx *router.RequestContext) string {
	if ip := strings.TrimSpace(ctx.GetHeader(ClientIPHeader)); ip != "" {
		return ip
	}
	return ctx.ClientIP()
}

func joinWaitlistHandler(service WaitlistService, signups *prometheus.CounterVec) router.HandlerFunction {
	return func(ctx *router.RequestContext) *router.ServiceResult {
		logger := router.GetLogger(ctx)

		raw, err := ctx.GetRawData()
		if err != nil {
			logger.Info("Failed to read request body", "error", err)
			signups.WithLabelValues("invalid_input").Inc()
			return errorResult(ErrInvalidBody)
		}

		req, err := NormalizeSignupRequest(raw, clientIP(ctx))
		if err != nil {
			logger.Info("Rejected waitlist signup input",
				"reason", apperrors.GetHumanReadableMessage(err),
				"fields", apperrors.FormatValidationErrors(err, &SignupRequest{}),
			)
			signups.WithLabelValues("invalid_input").Inc()
			return errorResult(err)
		}

		outcome, err := service.Join(ctx.Request.Context(), req)
		if err != nil {
			signups.WithLabelValues(failureLabel(err)).Inc()
			return errorResult(err)
		}

		signups.WithLabelValues(outcomeLabel(outcome)).Inc()

		switch o := outcome.(type) {
		case Inserted:
			return router.JSONResult(http.StatusOK, SuccessResponse{Success: true, Message: MessageJoined})
		case Duplicate:
			return router.JSONResult(http.StatusOK, SuccessResponse{Success: true, Message: MessageDuplicate})
		case SchemaError:
			return router.JSONResult(http.StatusServiceUnavailable, ErrorResponse{Error: o.Message})
		default:
			logger.Error("Unhandled waitlist insert outcome", "outcome", outcomeLabel(outcome))
			return router.JSONResult(http.StatusInternalServerError, ErrorResponse{Error: MessageServiceError})
		}
	}
}

func listSubscribersHandler(service WaitlistService) router.HandlerFunction {
	return func(ctx *router.RequestContext) *router.ServiceResult {
		response, err := service.ListSubscribers(ctx.Request.Context())
		if err != nil {
			status := apperrors.HTTPStatusCode(err)
			if status == http.StatusInternalServerError {
				return router.JSONResult(status, ErrorResponse{Error: MessageListFailure})
			}
			return router.JSONResult(status, ErrorResponse{Error: apperrors.GetHumanReadableMessage(err)})
		}

		return router.JSONResult(http.StatusOK, response)
	}
}

// errorResult renders the {"error": ...} body. Internal detail never reaches
// the caller: anything that maps to 500 gets the generic message.
func errorResult(err error) *router.ServiceResult {
	var rejected *CaptchaRejectedError
	if errors.As(err, &rejected) {
		body := map[string]any{"error": rejected.Error()}
		if rejected.Codes != nil {
			body["codes"] = rejected.Codes
		}
		return router.JSONResult(http.StatusBadRequest, body)
	}

	status := apperrors.HTTPStatusCode(err)
	if status == http.StatusInternalServerError {
		return router.JSONResult(status, ErrorResponse{Error: MessageServiceError})
	}

	return router.JSONResult(status, ErrorResponse{Error: apperrors.GetHumanReadableMessage(err)})
}

func failureLabel(err error) string {
	var rejected *CaptchaRejectedError
	switch {
	case errors.As(err, &rejected):
		return "captcha_rejected"
	case errors.Is(err, ErrCaptchaUnavailable):
		return "captcha_unavailable"
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	default:
		return "error"
	}
}
