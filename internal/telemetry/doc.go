// Package telemetry provides OpenTelemetry initialization and helpers
// for tracing, logging and metrics across the voxsense service.
//
// The package configures OTLP HTTP export for all three signals against a
// single collector endpoint.
package telemetry
