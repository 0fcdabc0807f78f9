// Package propx resolves ${name} placeholders in configuration values,
// splits delimited list values and converts loosely typed stored values
// into numeric, boolean and list representations.
//
// The package performs no I/O. Stores supply a Lookup bound to their own
// data and call Interpolate, Convert, Split and Elements on raw values.
package propx
