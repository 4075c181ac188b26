package controllers

import (
	"net/http"

	"github.com/rzbill/bifrost/internal/node"
)

// ControllerRegistry registers every controller's routes on one mux.
type ControllerRegistry struct {
	general *GeneralController
	bifrost *BifrostController
}

func NewControllerRegistry(n *node.Node) *ControllerRegistry {
	return &ControllerRegistry{
		general: NewGeneralController(n),
		bifrost: NewBifrostController(n),
	}
}

func (r *ControllerRegistry) RegisterRoutes(mux *http.ServeMux) {
	r.general.RegisterRoutes(mux)
	r.bifrost.RegisterRoutes(mux)
}
