package server

import "net/http"

func (api *API) registerGraphRoutes(mux *http.ServeMux, base string) {
	mux.HandleFunc("GET "+joinPath(base, "/graph"), api.handleGraph)
}

func (api *API) handleGraph(w http.ResponseWriter, r *http.Request) {
	if api.graph == nil {
		writeErrorCode(w, http.StatusServiceUnavailable, "service_unavailable", "graph service not configured")
		return
	}

	graph, err := api.graph.Graph(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, graph)
}
