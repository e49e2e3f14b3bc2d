package webrtc

import (
	"errors"
	"fmt"

	"github.com/pion/sdp/v3"
)

// ValidateDescription parses a remote session description before it is
// handed to the engine.
func ValidateDescription(raw string) error {
	var desc sdp.SessionDescription
	if err := desc.Unmarshal([]byte(raw)); err != nil {
		return fmt.Errorf("malformed session description: %w", err)
	}
	if len(desc.MediaDescriptions) == 0 {
		return errors.New("malformed session description: no media sections")
	}
	return nil
}
