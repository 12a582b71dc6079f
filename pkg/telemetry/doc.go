// Package telemetry wires the ambient observability of a pvebulk invocation.
//
// It combines structured logging (zerolog), tracing (OpenTelemetry) and run
// metrics (Prometheus) behind one Telemetry value created from Config:
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
// Metrics implements the recorder interfaces of the engine and dispatch
// packages. A bulk invocation is short lived, so instead of serving
// /metrics the registry is written to a node exporter textfile on
// Shutdown when Metrics.TextfilePath is set.
package telemetry
