package commonroutes

import (
	"net/http"

	jsoniter "github.com/json-iterator/go"

	"github.com/metrico/qryn-ai/writer/utils/logger"
	"github.com/metrico/qryn-ai/writer/watchdog"
)

// Version and Branch are set by main from the build flags.
var (
	Version = "dev"
	Branch  = "main"
)

func Ready(w http.ResponseWriter, r *http.Request) {
	err := watchdog.FastCheck()
	if err != nil {
		w.WriteHeader(500)
		logger.Error(err.Error())
		w.Write([]byte("Internal Server Error"))
		return
	}
	w.WriteHeader(200)
	w.Write([]byte("OK"))
}

func BuildInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(w).Encode(map[string]string{
		"version": Version,
		"branch":  Branch,
	})
}
