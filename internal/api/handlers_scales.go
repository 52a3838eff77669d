package api

import (
	"net/http"

	"github.com/pointflow/pointflow/internal/models"
	"github.com/pointflow/pointflow/internal/scales"
)

type ScaleHandler struct {
	catalog *scales.Catalog
}

func NewScaleHandler(catalog *scales.Catalog) *ScaleHandler {
	return &ScaleHandler{catalog: catalog}
}

// List handles GET /api/scales
func (h *ScaleHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.ScalesResponse{Scales: h.catalog.List()})
}
