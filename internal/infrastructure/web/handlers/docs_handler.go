package handlers

import (
	"net/http"

	"sparkline-service/docs"
)

// ServeSwaggerSpec serves the OpenAPI document rendered from docs.SwaggerInfo.
// Host queda vacío para que Swagger UI use el host de la request.
func ServeSwaggerSpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(docs.SwaggerInfo.ReadDoc()))
}
