// Package node enforces the value-map constraint a Node carries: every
// key and value from a decoded request body must be a plain string
// before it reaches the storage adapter. The backend owns path and
// last_modified; neither is represented as a Go value here.
package node

import (
	apperrors "nodetree/pkg/errors"
)

// ValidateValue enforces the static map-value constraint at the service
// boundary: every key and value must be a plain string, so nested
// structures from a decoded JSON body are rejected before any SQL call.
func ValidateValue(raw map[string]interface{}) (map[string]string, error) {
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		s, ok := v.(string)
		if !ok {
			return nil, apperrors.NewDataTypeError("value for key " + k + " is not a string")
		}
		out[k] = s
	}
	return out, nil
}
