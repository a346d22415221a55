// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package otlpjson encodes OTLP messages in the OTLP/JSON flavor of
// proto3 canonical JSON: trace and span ids as lowercase hex, other
// byte values as base64, 64-bit integers as decimal strings.
package otlpjson

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// idFields are the message fields OTLP/JSON hex-encodes instead of
// base64, as protojson does for bytes.
var idFields = map[string]struct{}{
	"traceId":      {},
	"spanId":       {},
	"parentSpanId": {},
}

// Marshal encodes m as OTLP/JSON.
func Marshal(m proto.Message) ([]byte, error) {
	raw, err := protojson.Marshal(m)
	if err != nil {
		return nil, err
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	base64ToHex(doc)
	return json.Marshal(doc)
}

// Unmarshal decodes OTLP/JSON data into m.
func Unmarshal(data []byte, m proto.Message) error {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	hexToBase64(doc)

	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return protojson.Unmarshal(raw, m)
}

func base64ToHex(v any) {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			if _, ok := idFields[k]; ok {
				if s, ok := e.(string); ok {
					if b, err := base64.StdEncoding.DecodeString(s); err == nil {
						t[k] = hex.EncodeToString(b)
					}
				}
				continue
			}
			base64ToHex(e)
		}
	case []any:
		for _, e := range t {
			base64ToHex(e)
		}
	}
}

func hexToBase64(v any) {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			if _, ok := idFields[k]; ok {
				if s, ok := e.(string); ok {
					if b, err := hex.DecodeString(s); err == nil {
						t[k] = base64.StdEncoding.EncodeToString(b)
					}
				}
				continue
			}
			hexToBase64(e)
		}
	case []any:
		for _, e := range t {
			hexToBase64(e)
		}
	}
}
