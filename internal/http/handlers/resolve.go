package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kotobalab/kotoba-backend/internal/domain/lexicon"
	"github.com/kotobalab/kotoba-backend/internal/http/response"
	apperrors "github.com/kotobalab/kotoba-backend/internal/pkg/errors"
)

// TargetResolver is the resolution entry point the preview endpoint exposes,
// for checking dictionary coverage without enqueueing a job.
type TargetResolver interface {
	ResolveTarget(ctx context.Context, proposedOrth, proposedReading, expectedPOS string) (lexicon.Outcome, error)
}

type ResolveHandler struct {
	resolver TargetResolver
}

func NewResolveHandler(resolver TargetResolver) *ResolveHandler {
	return &ResolveHandler{resolver: resolver}
}

type resolveRequest struct {
	Orthography string `json:"orthography" binding:"required"`
	Reading     string `json:"reading"`
	POS         string `json:"pos"`
}

// POST /api/resolve
func (h *ResolveHandler) Resolve(c *gin.Context) {
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	outcome, err := h.resolver.ResolveTarget(c.Request.Context(), req.Orthography, req.Reading, req.POS)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, apperrors.ErrStoreUnavailable) {
			status = http.StatusServiceUnavailable
		}
		response.RespondError(c, status, "resolve_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"outcome": outcome})
}
