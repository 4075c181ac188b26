package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/rzbill/bifrost/internal/bifrost"
	"github.com/rzbill/bifrost/internal/logs"
	"github.com/rzbill/bifrost/internal/node"
)

// BifrostController exposes read-only views of the log metadata.
type BifrostController struct {
	n *node.Node
}

func NewBifrostController(n *node.Node) *BifrostController {
	return &BifrostController{n: n}
}

func (c *BifrostController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/bifrost/version", c.handleVersion)
	mux.HandleFunc("GET /v1/bifrost/logs", c.handleListLogs)
	mux.HandleFunc("GET /v1/bifrost/logs/{id}", c.handleLog)
}

func (c *BifrostController) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]uint64{"version": uint64(c.n.MetadataVersion())})
}

type segmentView struct {
	Index    uint32 `json:"index"`
	Kind     string `json:"kind"`
	BaseLSN  uint64 `json:"base_lsn"`
	UntilLSN uint64 `json:"until_lsn,omitempty"`
	Sealed   bool   `json:"sealed"`
}

type logView struct {
	LogID     uint64        `json:"log_id"`
	TrimPoint uint64        `json:"trim_point"`
	Tail      uint64        `json:"tail,omitempty"`
	Segments  []segmentView `json:"segments"`
}

func chainView(id logs.LogID, c logs.Chain) logView {
	v := logView{LogID: uint64(id), TrimPoint: uint64(c.TrimPoint)}
	for _, s := range c.Segments {
		sv := segmentView{Index: s.Index, Kind: string(s.Kind), BaseLSN: uint64(s.BaseLSN), Sealed: s.Sealed()}
		if s.Sealed() {
			sv.UntilLSN = uint64(s.UntilLSN)
		}
		v.Segments = append(v.Segments, sv)
	}
	return v
}

func (c *BifrostController) handleListLogs(w http.ResponseWriter, r *http.Request) {
	md := c.n.Metadata().Get()
	out := make([]logView, 0, len(md.Chains))
	for _, id := range md.LogIDs() {
		ch, _ := md.Chain(id)
		out = append(out, chainView(id, ch))
	}
	writeJSON(w, map[string]any{"version": uint64(md.Version), "logs": out})
}

// handleLog describes one known log, including its current tail. Unknown
// logs are 404 rather than implicitly opened.
func (c *BifrostController) handleLog(w http.ResponseWriter, r *http.Request) {
	raw, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid log id")
		return
	}
	id := logs.LogID(raw)
	ch, ok := c.n.Metadata().Get().Chain(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown log")
		return
	}
	v := chainView(id, ch)
	tail, err := c.n.Bifrost().Tail(r.Context(), id)
	switch {
	case err == nil:
		v.Tail = uint64(tail)
	case errors.Is(err, bifrost.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, v)
}
