// Package infra contains technical adapters such as the structured
// logger, metrics exporters and the MQTT live publisher. These packages
// should depend only on the interfaces defined in the core packages.
package infra
