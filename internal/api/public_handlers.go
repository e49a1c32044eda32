package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domainerrors "github.com/fishdan-plugins/jsonmaker/internal/errors"
	"github.com/fishdan-plugins/jsonmaker/internal/http/response"
)

// handlePublicNode serves one node's public projection at
// /json/{account}/{slug}.json, pretty-printed.
func (s *Server) handlePublicNode(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	rawSlug, ok := strings.CutSuffix(chi.URLParam(r, "file"), ".json")
	if !ok {
		response.PublicNotFound(w, s.logger)
		return
	}

	node, found, err := s.services.Trees.Public(r.Context(), account, rawSlug)
	if err != nil {
		if errors.Is(err, domainerrors.ErrValidation) {
			response.PublicNotFound(w, s.logger)
			return
		}
		s.logger.Error("Failed to load public node", "error", err, "account", account, "slug", rawSlug)
		response.HandleError(w, err, s.logger)
		return
	}
	if !found {
		response.PublicNotFound(w, s.logger)
		return
	}

	w.Header().Set("Cache-Control", CachePublicShort)
	response.Pretty(w, http.StatusOK, node, s.logger)
}
