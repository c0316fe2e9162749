package handlers

import (
	"net/http"

	"github.com/spsmatrix/dapp/handlers/middleware"
)

// NotFound answers unknown routes with a json error
func NotFound(w http.ResponseWriter, r *http.Request) {
	middleware.APIErrorResponse(w, http.StatusNotFound, "ERROR: not found")
}

func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	middleware.APIErrorResponse(w, http.StatusMethodNotAllowed, "ERROR: method not allowed")
}
