package check

import (
	"mesh_relay/internal/action"
	"mesh_relay/internal/dataType"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Structure rejects messages that cannot be routed: no id or a priority
// outside HIGH/MEDIUM/LOW. Content fields are not inspected.
func Structure(msg dataType.Message, sharedMem *dataType.SharedMemory, decision *action.Decision) {
	if err := validate.Struct(msg); err != nil {
		decision.SetReason(action.Reject, err.Error())
	}
}
