// Package config defines the pdfharvest configuration: defaults, the
// .pdfharvest YAML file, per-site overrides and the conversion into the
// option values consumed by the pipeline and the HTTP transport.
package config
