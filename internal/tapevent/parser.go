package tapevent

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Parse decodes a single tap stream record. A malformed record is the
// caller's to drop; decode never mutates shared state.
func Parse(data []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("failed to decode tap event: %w", err)
	}
	if err := event.Validate(); err != nil {
		return nil, err
	}
	return &event, nil
}

// ParseBatch decodes a websocket message that may carry several
// newline-delimited records. Malformed lines are skipped; the joined
// error reports every drop while good records still flow.
func ParseBatch(data []byte) ([]*Event, error) {
	var (
		events []*Event
		errs   []error
	)
	for _, line := range bytes.Split(data, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		event, err := Parse(line)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		events = append(events, event)
	}
	return events, errors.Join(errs...)
}
