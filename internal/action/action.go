package action

type Action int

const (
	Undecided Action = iota // 0: no check has decided yet
	Accept                  // 1: enqueue for forwarding
	Duplicate               // 2: already seen, drop
	Reject                  // 3: malformed, drop
)

func (a Action) String() string {
	switch a {
	case Accept:
		return "accept"
	case Duplicate:
		return "duplicate"
	case Reject:
		return "reject"
	default:
		return "undecided"
	}
}

// Decision carries the outcome of the inbound checks for one message.
type Decision struct {
	result Action
	reason string
}

func NewDecision() *Decision {
	return &Decision{result: Undecided}
}

func (d *Decision) Get() Action {
	return d.result
}

func (d *Decision) Set(new Action) {
	d.result = new
}

func (d *Decision) SetReason(new Action, reason string) {
	d.result = new
	d.reason = reason
}

func (d *Decision) Reason() string {
	return d.reason
}

// Done reports whether a check has settled the message.
func (d *Decision) Done() bool {
	return d.result != Undecided
}
