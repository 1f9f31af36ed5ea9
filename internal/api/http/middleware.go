package http

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/inkmarket-service/internal/observability"
	apperrors "github.com/spec-kit/inkmarket-service/pkg/util/errorutil"
)

const genericFailure = "Something went very wrong!"

// RegisterMiddlewares attaches global middlewares such as error handling and logging.
func RegisterMiddlewares(app *fiber.App, logger *zap.Logger, metrics *observability.Metrics, timeout time.Duration, production bool) {
	app.Use(observability.RequestLogger(logger, metrics))
	app.Use(errorHandlingMiddleware(logger, metrics, production))
	if timeout > 0 {
		app.Use(requestTimeoutMiddleware(timeout))
	}
}

func requestTimeoutMiddleware(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

// errorHandlingMiddleware renders every error as
// {status: "fail"|"error", message}. Outside production the envelope also
// carries the underlying error and, for panics, the stack.
func errorHandlingMiddleware(logger *zap.Logger, metrics *observability.Metrics, production bool) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		var stack []byte
		defer func() {
			if r := recover(); r != nil {
				stack = debug.Stack()
				logger.Error("panic recovered", zap.Any("panic", r), zap.ByteString("stack", stack))
				err = apperrors.NewInternalError(fmt.Errorf("panic: %v", r))
			}
			if err == nil {
				return
			}

			domainErr := toDomainError(err)
			metrics.RecordError(c.Route().Path, c.Method(), domainErr.Code)

			status := "fail"
			message := domainErr.Message
			if !domainErr.Operational() {
				status = "error"
				logger.Error("request failed",
					zap.String("request_id", observability.RequestID(c)),
					zap.Error(domainErr),
				)
				if production {
					message = genericFailure
				}
			}

			response := fiber.Map{"status": status, "message": message}
			if !production {
				detail := fiber.Map{"code": domainErr.Code, "statusCode": domainErr.HTTPStatus}
				if len(domainErr.Details) > 0 {
					detail["details"] = domainErr.Details
				}
				if domainErr.Err != nil {
					detail["cause"] = domainErr.Err.Error()
				}
				response["error"] = detail
				if stack != nil {
					response["stack"] = string(stack)
				}
			}

			c.Status(domainErr.HTTPStatus)
			err = c.JSON(response)
		}()
		return c.Next()
	}
}

func toDomainError(err error) *apperrors.DomainError {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code := "HTTP_ERROR"
		if fiberErr.Code == fiber.StatusNotFound {
			code = "NOT_FOUND"
		}
		return apperrors.NewDomainError(code, fiberErr.Message, fiberErr.Code, nil)
	}
	return apperrors.ToDomainError(err)
}
