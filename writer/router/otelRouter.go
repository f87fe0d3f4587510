package apirouterv1

import (
	"github.com/gorilla/mux"

	controllerv1 "github.com/metrico/qryn-ai/writer/controller"
)

func RouteOTelApis(router *mux.Router, cfg controllerv1.MiddlewareConfig) {
	router.HandleFunc("/v1/traces", controllerv1.OTelTracesV1(cfg)).Methods("POST")
	router.HandleFunc("/v1/logs", controllerv1.OTelLogsV1(cfg)).Methods("POST")
}
