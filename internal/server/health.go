package server

import "net/http"

func (api *API) registerHealthRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET "+joinPath(api.basePath, "/healthz"), api.handleHealthz)
}

func (api *API) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
