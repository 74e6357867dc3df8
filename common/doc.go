// Package common holds the shared building blocks of the goFDFS client:
// the configuration surface, the logger factory, the error kinds surfaced
// by the transport and client layers, and the metric registries.
//
// The package has no dependencies on the other goFDFS packages and can be
// imported from anywhere in the module.
package common
