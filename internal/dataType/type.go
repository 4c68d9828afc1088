package dataType

const MeshRelayVersion = "1.0.0"

// SharedMemory is the state every inbound handler of one node works against.
type SharedMemory struct {
	Seen  *SeenTracker
	Queue *PriorityQueue
}

func NewSharedMemory(shards int) *SharedMemory {
	return &SharedMemory{
		Seen:  NewSeenTracker(shards),
		Queue: NewPriorityQueue(),
	}
}
