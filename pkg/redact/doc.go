// Package redact scrubs sensitive values from captured API traffic.
//
// Two kinds of data are redacted before anything is stored or exported:
//
//   - Headers: values of authorization, cookie, set-cookie and x-api-key
//     (matched case-insensitively) are replaced with Marker.
//   - JSON bodies: string values of password, token, secret, apiKey,
//     api_key, accessToken and refreshToken fields are replaced with Marker
//     at any depth, inside objects and arrays.
//
// Redaction of JSON is done in place on the raw bytes, so field order and
// formatting of the captured payload survive. Payloads that are not JSON are
// returned unchanged (the Passthrough policy). This favors keeping debugging
// data over guaranteed redaction of malformed bodies.
//
// A Redactor built with New can add header and field names from
// configuration. The fixed sets are always applied.
package redact
