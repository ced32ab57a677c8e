// Package utils provides loose conversion helpers shared across the engine.
//
// The remote service reports pagination metadata in headers and entity fields in
// decoded JSON, so numbers arrive as strings, float64 or json.Number depending on the
// path. ToInt, ToString and ToBool normalise those without failing: a missing or
// unparsable value becomes the zero value.
package utils
