// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package http

import (
	"net/http"

	"github.com/MKhiriev/go-fish-log/internal/utils"
	"github.com/go-chi/chi/v5"
)

// CheckHTTPMethod returns a handler to be registered with
// [chi.Mux.MethodNotAllowed].
//
// Instead of chi's default 405, a request whose method is not routed for the
// matched path gets 404 Not Found, so unsupported methods do not reveal which
// paths exist. Parameterised patterns are resolved with [chi.Mux.Match]; if
// the method does match, the request is served normally.
//
// Usage:
//
//	router := chi.NewRouter()
//	// ... register routes ...
//	router.MethodNotAllowed(CheckHTTPMethod(router))
func CheckHTTPMethod(router *chi.Mux) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if router.Match(chi.NewRouteContext(), r.Method, r.URL.Path) {
			router.ServeHTTP(w, r)
			return
		}
		utils.WriteError(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	}
}
