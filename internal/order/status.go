package order

import "strings"

var transitions = map[Status][]Status{
	StatusPending:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered, StatusReturned},
	StatusDelivered:  {StatusReturned},
	StatusCancelled:  {},
	StatusReturned:   {},
}

// happyPath is the display order used for progress.
var happyPath = []Status{
	StatusPending,
	StatusConfirmed,
	StatusProcessing,
	StatusShipped,
	StatusDelivered,
}

var autoNotes = map[Status]string{
	StatusPending:    "Order placed",
	StatusConfirmed:  "Order confirmed",
	StatusProcessing: "Order is being processed",
	StatusShipped:    "Order shipped",
	StatusDelivered:  "Order delivered",
	StatusCancelled:  "Order cancelled",
	StatusReturned:   "Order returned",
}

func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", ErrUnknownStatus
	}
	return st, nil
}

// NextPossibleStatuses returns the statuses reachable from s in one step.
// Terminal and unknown statuses yield an empty list.
func NextPossibleStatuses(s Status) []Status {
	next := transitions[s]
	out := make([]Status, len(next))
	copy(out, next)
	return out
}

func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsCancellable reports whether an order in status s may still be cancelled.
func IsCancellable(s Status) bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusProcessing:
		return true
	}
	return false
}

func Cancellable(o Order) bool {
	return IsCancellable(o.Status)
}

// Progress is the display percentage along the happy path; cancelled,
// returned and unknown statuses report 0.
func Progress(s Status) int {
	for i, st := range happyPath {
		if st == s {
			return (i + 1) * 100 / len(happyPath)
		}
	}
	return 0
}

func AutoNote(s Status) string {
	if n, ok := autoNotes[s]; ok {
		return n
	}
	return "Status changed to " + string(s)
}
