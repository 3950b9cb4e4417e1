package extractor

import (
	"encoding/json"
	"errors"
	"strings"
)

// errNoJSON is returned when a reply holds nothing parseable.
var errNoJSON = errors.New("no JSON object in reply")

// ParseReply extracts the JSON object from a model reply. Replies arrive
// either as bare JSON or inside a fenced code block; anything around the
// object is discarded.
func ParseReply(reply string) (json.RawMessage, error) {
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return nil, errNoJSON
	}

	if idx := strings.Index(reply, "```"); idx >= 0 {
		rest := reply[idx+3:]
		// Drop a language tag such as "json" on the fence line.
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			rest = rest[nl+1:]
		}
		if end := strings.Index(rest, "```"); end >= 0 {
			reply = strings.TrimSpace(rest[:end])
		} else {
			reply = strings.TrimSpace(rest)
		}
	}

	start := strings.IndexByte(reply, '{')
	end := strings.LastIndexByte(reply, '}')
	if start < 0 || end < start {
		return nil, errNoJSON
	}
	candidate := reply[start : end+1]
	if !json.Valid([]byte(candidate)) {
		return nil, errors.New("reply JSON does not parse")
	}
	return json.RawMessage(candidate), nil
}
