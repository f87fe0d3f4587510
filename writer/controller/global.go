package controllerv1

import (
	"github.com/metrico/qryn-ai/writer/service"
)

// IngestService is injected into every ingestion request by withIngestService.
var IngestService service.IIngestService
