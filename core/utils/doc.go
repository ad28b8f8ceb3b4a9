// Package utils provides loose value conversion helpers for remote payloads.
// Remote systems return JSON numbers as floats, booleans as strings and ids as
// either; these helpers normalize them and report values that cannot be converted.
package utils
