package orders

import "fmt"

type Status string

// remember to add new statuses to the validStatuses map
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

var validStatuses = map[Status]struct{}{
	StatusPending:    {},
	StatusProcessing: {},
	StatusShipped:    {},
	StatusDelivered:  {},
	StatusCancelled:  {},
}

var forwardNext = map[Status]map[Status]bool{
	StatusPending:    {StatusProcessing: true, StatusCancelled: true},
	StatusProcessing: {StatusShipped: true, StatusCancelled: true},
	StatusShipped:    {StatusDelivered: true, StatusCancelled: true},
	StatusDelivered:  {},
	StatusCancelled:  {},
}

func ParseStatus(s string) (Status, error) {
	status := Status(s)
	if _, ok := validStatuses[status]; ok {
		return status, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// TransitionPolicy decides whether an order may move from one recognized status to another.
type TransitionPolicy func(from, to Status) bool

// Permissive accepts any recognized status as a target, whatever the current one is.
func Permissive(_, to Status) bool {
	_, ok := validStatuses[to]
	return ok
}

// Strict follows pending → processing → shipped → delivered, with cancelled
// reachable from every non-terminal status.
func Strict(from, to Status) bool {
	return forwardNext[from][to]
}

func PolicyFor(strict bool) TransitionPolicy {
	if strict {
		return Strict
	}
	return Permissive
}
