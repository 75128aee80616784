package dto

import (
	"encoding/json"
	"strings"
)

// TermsFlag accepts a JSON bool or the strings "true"/"false"/"1"/"0"
// (any case). Anything else, including null, means not accepted.
type TermsFlag bool

func (f *TermsFlag) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case bool:
		*f = TermsFlag(x)
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true", "1":
			*f = true
		default:
			*f = false
		}
	case float64:
		*f = x == 1
	default:
		*f = false
	}
	return nil
}
