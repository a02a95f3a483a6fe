package sender

import "fmt"

// Kind classifies a delivery failure.
type Kind int

const (
	// KindOther covers failures before anything reached the network.
	KindOther Kind = iota
	// KindNetwork means no response was received (refused, timeout, DNS).
	KindNetwork
	// KindServer means the collector answered with a non-2xx status.
	KindServer
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindServer:
		return "server"
	default:
		return "other"
	}
}

// DeliveryError is returned by Send and Deliver.
type DeliveryError struct {
	Kind       Kind
	StatusCode int
	Err        error
}

func (e *DeliveryError) Error() string {
	switch e.Kind {
	case KindServer:
		return fmt.Sprintf("server error: status %d", e.StatusCode)
	case KindNetwork:
		return fmt.Sprintf("network error: no response from server: %v", e.Err)
	default:
		return fmt.Sprintf("delivery failed: %v", e.Err)
	}
}

func (e *DeliveryError) Unwrap() error { return e.Err }
