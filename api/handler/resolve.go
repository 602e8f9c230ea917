package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/gnresolver/models"
)

// Resolver is the part of resolver.Resolver the handler needs.
type Resolver interface {
	Resolve(ctx context.Context, googleNewsURL string) (*models.ResolveOutcome, error)
}

const missingURLMessage = "Missing google_news_url (string) in JSON body"

// Resolve returns a handler for POST /resolve.
//
// Flow:
//  1. Bind the body; a missing or non-string google_news_url is a 400.
//  2. Resolve, detached from client cancellation so the gate slot and
//     browser are always released by the pipeline itself. Cancelling
//     lifetime (server shutdown) still aborts the resolution.
//  3. 500 on error, otherwise 200 with the last attempt's result.
func Resolve(lifetime context.Context, rs Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		// ── 1. Parse request ────────────────────────────────────────
		var req models.ResolveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, err)
			return
		}

		// ── 2. Resolve ──────────────────────────────────────────────
		ctx, cancel := context.WithCancel(context.WithoutCancel(c.Request.Context()))
		defer cancel()
		stop := context.AfterFunc(lifetime, cancel)
		defer stop()

		outcome, err := rs.Resolve(ctx, req.GoogleNewsURL)

		// ── 3. Respond ──────────────────────────────────────────────
		if err != nil {
			slog.ErrorContext(ctx, "resolution failed",
				"google_news_url", req.GoogleNewsURL,
				"code", errorCode(err),
				"error", err,
			)
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{
				OK:            false,
				GoogleNewsURL: req.GoogleNewsURL,
				Error:         errorMessage(err),
			})
			return
		}

		c.JSON(http.StatusOK, models.NewResolveResponse(req.GoogleNewsURL, outcome))
	}
}

func respondBadRequest(c *gin.Context, err error) {
	msg := missingURLMessage
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		msg = "request body too large"
	}
	slog.WarnContext(c.Request.Context(), "rejected resolve request",
		"code", models.ErrCodeInvalidInput,
		"error", err,
	)
	example := models.ExampleRequest
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		OK:      false,
		Error:   msg,
		Example: &example,
	})
}

// errorCode returns the typed code of err, or INTERNAL_ERROR for untyped errors.
func errorCode(err error) string {
	var re *models.ResolveError
	if errors.As(err, &re) {
		return re.Code
	}
	return models.ErrCodeInternal
}

// errorMessage prefers the typed message over the wrapped chain.
func errorMessage(err error) string {
	var re *models.ResolveError
	if errors.As(err, &re) && re.Err != nil {
		return re.Message + ": " + re.Err.Error()
	}
	return err.Error()
}
