package version

import "os"

// ServiceName returns the service name the client reports in telemetry
func ServiceName() string {
	name := os.Getenv("DISPATCH_SERVICE_NAME")
	if name == "" {
		return "'DISPATCH_SERVICE_NAME' is empty"
	}

	return name
}
