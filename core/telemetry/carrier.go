package telemetry

import (
	"go.opentelemetry.io/otel/propagation"
)

// PackToMap flattens a carrier into a plain string map for transports that
// move headers as maps.
func PackToMap(traceCarrier propagation.MapCarrier) map[string]string {
	headers := make(map[string]string, len(traceCarrier))
	for _, k := range traceCarrier.Keys() {
		headers[k] = traceCarrier.Get(k)
	}

	return headers
}

// UnpackMap restores a carrier from a plain string map.
func UnpackMap(headers map[string]string) propagation.MapCarrier {
	traceCarrier := propagation.MapCarrier{}
	for k, v := range headers {
		traceCarrier.Set(k, v)
	}

	return traceCarrier
}
