// Copyright 2025 CL8Y Bridge Contributors

package cosmoschain

import (
	"bytes"
	"encoding/base64"
	"io"
)

func base64StdEncode(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// base64URLEncode encodes a smart-query payload the way the LCD's path-based
// smart query endpoint expects it: standard base64, since the gateway
// decodes the path segment itself rather than requiring URL-safe encoding.
func base64URLEncode(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

func jsonReader(b []byte) io.Reader {
	return bytes.NewReader(b)
}
