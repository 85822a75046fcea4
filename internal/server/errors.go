package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/ledgerline/ledgerline/internal/audit/domain"
	"github.com/ledgerline/ledgerline/internal/authz"
	customerdomain "github.com/ledgerline/ledgerline/internal/customer/domain"
	"github.com/ledgerline/ledgerline/internal/identity"
	inventorydomain "github.com/ledgerline/ledgerline/internal/inventory/domain"
	invoicedomain "github.com/ledgerline/ledgerline/internal/invoice/domain"
	notificationdomain "github.com/ledgerline/ledgerline/internal/notification/domain"
	productdomain "github.com/ledgerline/ledgerline/internal/product/domain"
	syslogdomain "github.com/ledgerline/ledgerline/internal/syslog/domain"
	tenantdomain "github.com/ledgerline/ledgerline/internal/tenant/domain"
	userdomain "github.com/ledgerline/ledgerline/internal/user/domain"
	pkgdb "github.com/ledgerline/ledgerline/pkg/db"
	"github.com/ledgerline/ledgerline/pkg/tenantctx"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type     string            `json:"type"`
	Message  string            `json:"message"`
	Errors   []ValidationError `json:"errors,omitempty"`
	Required []string          `json:"required_roles,omitempty"`
	Actual   string            `json:"actual_role,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrConflict       = errors.New("conflict")
	ErrInternal       = errors.New("internal_error")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
	ErrRateLimited    = errors.New("rate_limited")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	var roleErr *authz.InsufficientRoleError
	if errors.As(err, &roleErr) {
		required := make([]string, 0, len(roleErr.Required))
		for _, role := range roleErr.Required {
			required = append(required, string(role))
		}
		return http.StatusForbidden, errorPayload{
			Type:     "insufficient_role",
			Message:  "access denied",
			Required: required,
			Actual:   string(roleErr.Actual),
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, identity.ErrUnauthenticated),
		errors.Is(err, identity.ErrInvalidToken),
		errors.Is(err, identity.ErrTokenExpired),
		errors.Is(err, userdomain.ErrInvalidCredentials),
		errors.Is(err, userdomain.ErrUserInactive):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, tenantctx.ErrNoTenant),
		errors.Is(err, userdomain.ErrTenantSuspended):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: conflictMessage(err),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, tenantdomain.ErrInvalidName),
		errors.Is(err, tenantdomain.ErrInvalidPlan),
		errors.Is(err, tenantdomain.ErrInvalidProvider),
		errors.Is(err, userdomain.ErrInvalidEmail),
		errors.Is(err, userdomain.ErrInvalidPassword),
		errors.Is(err, userdomain.ErrInvalidRole),
		errors.Is(err, customerdomain.ErrInvalidName),
		errors.Is(err, productdomain.ErrInvalidSKU),
		errors.Is(err, productdomain.ErrInvalidName),
		errors.Is(err, productdomain.ErrInvalidPrice),
		errors.Is(err, inventorydomain.ErrInvalidType),
		errors.Is(err, inventorydomain.ErrZeroQuantity),
		errors.Is(err, inventorydomain.ErrInvalidQuantity),
		errors.Is(err, invoicedomain.ErrNoLines),
		errors.Is(err, invoicedomain.ErrInvalidQuantity),
		errors.Is(err, invoicedomain.ErrInvalidLine),
		errors.Is(err, invoicedomain.ErrInvalidStatus),
		errors.Is(err, notificationdomain.ErrInvalidType),
		errors.Is(err, notificationdomain.ErrInvalidCategory),
		errors.Is(err, notificationdomain.ErrInvalidPriority),
		errors.Is(err, notificationdomain.ErrInvalidTitle),
		errors.Is(err, notificationdomain.ErrInvalidPageToken),
		errors.Is(err, auditdomain.ErrInvalidPageToken),
		errors.Is(err, auditdomain.ErrInvalidTimeRange),
		errors.Is(err, auditdomain.ErrInvalidAction),
		errors.Is(err, syslogdomain.ErrInvalidLevel):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, tenantdomain.ErrSlugTaken),
		errors.Is(err, userdomain.ErrEmailTaken),
		errors.Is(err, userdomain.ErrUserQuotaExceeded),
		errors.Is(err, productdomain.ErrSKUTaken),
		errors.Is(err, invoicedomain.ErrNotDraft),
		errors.Is(err, invoicedomain.ErrInvalidTransition),
		pkgdb.IsDuplicateKeyErr(err),
		pkgdb.IsIntegrityErr(err):
		return true
	default:
		return false
	}
}

func conflictMessage(err error) string {
	switch {
	case errors.Is(err, invoicedomain.ErrNotDraft),
		errors.Is(err, invoicedomain.ErrInvalidTransition):
		return "invalid status transition"
	case pkgdb.IsIntegrityErr(err) && !pkgdb.IsDuplicateKeyErr(err):
		return "integrity violation"
	default:
		return "conflict"
	}
}

// isNotFoundError folds cross-tenant misses together with genuine misses; the
// two are deliberately indistinguishable to the caller.
func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, tenantdomain.ErrNotFound),
		errors.Is(err, userdomain.ErrNotFound),
		errors.Is(err, customerdomain.ErrNotFound),
		errors.Is(err, productdomain.ErrNotFound),
		errors.Is(err, invoicedomain.ErrNotFound),
		errors.Is(err, invoicedomain.ErrCustomerNotFound),
		errors.Is(err, invoicedomain.ErrProductNotFound),
		errors.Is(err, inventorydomain.ErrProductNotFound),
		errors.Is(err, notificationdomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	if errors.Is(err, ErrInvalidRequest) {
		return "invalid_request"
	}
	return err.Error()
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	default:
		return "invalid value"
	}
}
