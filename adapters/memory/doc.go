// Package memory provides in-process implementations of the device and
// storage ports, used when running headless and in tests.
package memory
