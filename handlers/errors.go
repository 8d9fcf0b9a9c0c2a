package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"shop-svc/circuitbreaker"
	"shop-svc/middleware"
	"shop-svc/models"
	"shop-svc/service"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// responder renders errors as {"message": ...}. Raw error text is only attached to 500
// replies in development.
type responder struct {
	logger      *zap.Logger
	development bool
}

var registerFieldNames sync.Once

// useJSONFieldNames makes binding errors report fields by their JSON names.
func useJSONFieldNames() {
	registerFieldNames.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
}

// badRequest renders a request binding failure.
func (r responder) badRequest(c *gin.Context, err error) {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		fields := make([]models.FieldError, len(validationErrs))
		for i, fe := range validationErrs {
			fields[i] = bindingFieldError(fe)
		}
		c.JSON(http.StatusBadRequest, gin.H{"message": "Validation failed", "errors": fields})
		return
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"message": "Validation failed",
			"errors":  []models.FieldError{{Field: typeErr.Field, Message: fmt.Sprintf("%s must be a %s", typeErr.Field, typeErr.Type.Kind())}},
		})
		return
	}

	c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
}

func bindingFieldError(fe validator.FieldError) models.FieldError {
	// Namespace is "<RequestType>.items[0].quantity"; drop the type name.
	field := fe.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}

	var message string
	switch fe.Tag() {
	case "required":
		message = fmt.Sprintf("%s is required", field)
	case "min", "gte":
		if fe.Kind() == reflect.Slice {
			message = fmt.Sprintf("%s must contain at least %s item(s)", field, fe.Param())
		} else if fe.Kind() == reflect.String {
			message = fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		} else {
			message = fmt.Sprintf("%s must be at least %s", field, fe.Param())
		}
	case "email":
		message = fmt.Sprintf("%s must be a valid email address", field)
	default:
		message = fmt.Sprintf("%s is invalid", field)
	}
	return models.FieldError{Field: field, Message: message}
}

func (r responder) fail(c *gin.Context, span trace.Span, err error, internalMessage string) {
	var validationErr *models.ValidationError
	var stockErr *service.InsufficientStockError

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"message": "Validation failed", "errors": validationErr.Fields})
	case errors.As(err, &stockErr):
		c.JSON(http.StatusBadRequest, gin.H{"message": fmt.Sprintf("Insufficient stock for %s", stockErr.ProductName)})
	case errors.Is(err, service.ErrProductNotFound):
		c.JSON(http.StatusBadRequest, gin.H{"message": "Product not found"})
	case errors.Is(err, service.ErrInvalidStatus):
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid order status"})
	case errors.Is(err, service.ErrUserExists):
		c.JSON(http.StatusBadRequest, gin.H{"message": "User already exists"})
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid credentials"})
	case errors.Is(err, service.ErrAccessDenied):
		c.JSON(http.StatusForbidden, gin.H{"message": "Access denied"})
	case errors.Is(err, service.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "Order not found"})
	case errors.Is(err, service.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
	case errors.Is(err, circuitbreaker.ErrCircuitOpen):
		span.SetAttributes(circuitOpenAttr)
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": "Service temporarily unavailable"})
	default:
		r.internal(c, span, err, internalMessage)
	}
}

func (r responder) internal(c *gin.Context, span trace.Span, err error, message string) {
	span.RecordError(err)
	span.SetStatus(codes.Error, message)
	r.logger.Error(message,
		zap.String("trace_id", middleware.GetTraceID(c.Request.Context())),
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)

	body := gin.H{"message": message}
	if r.development {
		body["error"] = err.Error()
	}
	c.JSON(http.StatusInternalServerError, body)
}
