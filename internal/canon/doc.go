// Package canon produces canonical JSON for traces and content digests.
//
// Canonical form follows RFC 8785 for the subset of JSON the runtime emits:
// object keys sorted by UTF-16 code units, strings NFC-normalized, no HTML
// escaping, integers only. Floats and nulls are rejected so that two equal
// values can never serialize differently.
//
// Arbitrary Go values (structs, typed maps) are first passed through
// encoding/json, so their json tags decide the field names.
package canon
