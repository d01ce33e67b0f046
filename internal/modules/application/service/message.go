package application

import (
	"encoding/json"
	"strings"

	"gorm.io/datatypes"
)

// ParseApplicationMessage splits a raw application message into its display
// text and structured details. A JSON object yields its string coverLetter
// field and the object itself as details; anything else is returned as-is
// with nil details.
func ParseApplicationMessage(raw string) (string, datatypes.JSON) {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") {
		return raw, nil
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(trimmed), &fields); err != nil || fields == nil {
		return raw, nil
	}

	coverLetter, _ := fields["coverLetter"].(string)
	return coverLetter, datatypes.JSON(trimmed)
}
