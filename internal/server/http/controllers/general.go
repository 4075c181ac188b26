package controllers

import (
	"net/http"

	"github.com/rzbill/bifrost/internal/node"
)

// GeneralController serves node liveness.
type GeneralController struct {
	n *node.Node
}

func NewGeneralController(n *node.Node) *GeneralController {
	return &GeneralController{n: n}
}

func (c *GeneralController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/healthz", c.handleHealth)
}

// handleHealth returns 200 with the node status while alive, 503 otherwise.
func (c *GeneralController) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := c.n.Status().String()
	if err := c.n.CheckHealth(r.Context()); err != nil {
		writeStatusJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_serving", "node_status": status})
		return
	}
	writeJSON(w, map[string]string{"status": "ok", "node_status": status})
}
