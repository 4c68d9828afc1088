package check

import (
	"mesh_relay/internal/action"
	"mesh_relay/internal/dataType"
)

// Duplicate records the id and rejects it if this node has seen it before.
// It must run after Structure so rejected payloads never reach the tracker.
func Duplicate(msg dataType.Message, sharedMem *dataType.SharedMemory, decision *action.Decision) {
	if sharedMem.Seen.IsDuplicate(msg.MessageID) {
		decision.SetReason(action.Duplicate, "message_id already seen")
		return
	}
	decision.Set(action.Accept)
}
