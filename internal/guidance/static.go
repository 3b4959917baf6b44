package guidance

import (
	"fmt"
	"strings"

	"github.com/safesteps-app/safesteps-backend/internal/hazard"
)

// StaticSteps returns the hand-authored generic safety steps used when no
// external synthesis is available. It always returns non-empty text.
func StaticSteps(label hazard.Label) string {
	readable := strings.ReplaceAll(string(label), "_", " ")
	if readable == "" {
		readable = "general safety"
	}
	return fmt.Sprintf(
		"General non-medical safety steps (%s):\n\n"+
			"1. Ensure your immediate safety. If this feels life-threatening, call emergency services.\n"+
			"2. Avoid obvious hazards (fire, water, electrical, gas, unstable structures, unsafe roads).\n"+
			"3. Move to a safer location if possible.\n"+
			"4. Follow official alerts or local authority instructions.\n"+
			"5. Inform a trusted neighbour or family member.\n"+
			"6. Keep your phone charged and monitor conditions.",
		readable,
	)
}
