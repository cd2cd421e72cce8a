package tapevent

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

type Phase string

const (
	PhaseRequestInit  Phase = "requestInit"
	PhaseResponseInit Phase = "responseInit"
	PhaseResponseEnd  Phase = "responseEnd"
)

type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// EventID is the correlation key for one proxied request. All lifecycle
// phases of the same request carry the same base and stream.
type EventID struct {
	Base   string `json:"base"`
	Stream uint64 `json:"stream"`
}

func (id EventID) String() string {
	return id.Base + ":" + strconv.FormatUint(id.Stream, 10)
}

// Endpoint is one side of a proxied connection. Metadata carries the
// mesh labels attached by the proxy (pod, namespace, owner resource,
// tls); an unmeshed peer has no pod label.
type Endpoint struct {
	IP       string            `json:"ip"`
	Port     uint32            `json:"port"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

var ownerKinds = []string{"deployment", "statefulset", "daemonset", "replicaset", "job"}

func (ep Endpoint) Addr() string {
	return net.JoinHostPort(ep.IP, strconv.Itoa(int(ep.Port)))
}

// Pod returns the pod label, empty for unmeshed peers.
func (ep Endpoint) Pod() string {
	return ep.Metadata["pod"]
}

// DisplayName prefers the pod label over the raw address.
func (ep Endpoint) DisplayName() string {
	if pod := ep.Pod(); pod != "" {
		return pod
	}
	return ep.Addr()
}

// Identity names the owning workload ("ns/kind/name"), falling back to
// the pod, then the address for unmeshed peers.
func (ep Endpoint) Identity() string {
	ns := ep.Metadata["namespace"]
	for _, kind := range ownerKinds {
		if name := ep.Metadata[kind]; name != "" {
			if ns != "" {
				return ns + "/" + kind + "/" + name
			}
			return kind + "/" + name
		}
	}
	if pod := ep.Metadata["pod"]; pod != "" {
		if ns != "" {
			return ns + "/pod/" + pod
		}
		return "pod/" + pod
	}
	return ep.Addr()
}

func (ep Endpoint) IsMeshed() bool {
	return ep.Metadata["pod"] != ""
}

type RequestInit struct {
	Method    string `json:"method"`
	Scheme    string `json:"scheme,omitempty"`
	Authority string `json:"authority,omitempty"`
	Path      string `json:"path"`
}

type ResponseInit struct {
	HTTPStatus       int    `json:"httpStatus"`
	SinceRequestInit string `json:"sinceRequestInit"`
}

type ResponseEnd struct {
	// GRPCStatusCode is present only for gRPC responses; 0 means OK.
	GRPCStatusCode    *uint32 `json:"grpcStatusCode,omitempty"`
	SinceRequestInit  string  `json:"sinceRequestInit"`
	SinceResponseInit string  `json:"sinceResponseInit,omitempty"`
	ResponseBytes     uint64  `json:"responseBytes"`
}

// Event is one decoded lifecycle record from the tap stream. Exactly
// one of the phase payloads is set, matching Phase.
type Event struct {
	ID           EventID       `json:"id"`
	Phase        Phase         `json:"eventType"`
	Direction    Direction     `json:"direction"`
	Source       Endpoint      `json:"source"`
	Destination  Endpoint      `json:"destination"`
	RequestInit  *RequestInit  `json:"requestInit,omitempty"`
	ResponseInit *ResponseInit `json:"responseInit,omitempty"`
	ResponseEnd  *ResponseEnd  `json:"responseEnd,omitempty"`
}

func (e *Event) Validate() error {
	if e.ID.Base == "" {
		return fmt.Errorf("event missing id.base")
	}
	if e.Direction != DirectionInbound && e.Direction != DirectionOutbound {
		return fmt.Errorf("unknown direction: %q", e.Direction)
	}
	switch e.Phase {
	case PhaseRequestInit:
		if e.RequestInit == nil {
			return fmt.Errorf("requestInit event missing requestInit payload")
		}
	case PhaseResponseInit:
		if e.ResponseInit == nil {
			return fmt.Errorf("responseInit event missing responseInit payload")
		}
	case PhaseResponseEnd:
		if e.ResponseEnd == nil {
			return fmt.Errorf("responseEnd event missing responseEnd payload")
		}
	default:
		return fmt.Errorf("unknown event type: %q", e.Phase)
	}
	return nil
}

// TLS reports whether the tapped connection was mutually authenticated.
// The proxy records the label on the peer it terminated: the source for
// inbound traffic, the destination for outbound.
func (e *Event) TLS() bool {
	switch e.Direction {
	case DirectionInbound:
		return e.Source.Metadata["tls"] == "true"
	case DirectionOutbound:
		return e.Destination.Metadata["tls"] == "true"
	}
	return false
}

// Latency returns the elapsed time since request init for response
// phases, zero for requestInit.
func (e *Event) Latency() (time.Duration, error) {
	switch e.Phase {
	case PhaseResponseInit:
		return ParseLatency(e.ResponseInit.SinceRequestInit)
	case PhaseResponseEnd:
		return ParseLatency(e.ResponseEnd.SinceRequestInit)
	}
	return 0, nil
}

// ParseLatency converts a proxy duration string ("0.0213s", "21ms")
// into a time.Duration.
func ParseLatency(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid latency %q: %w", s, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid latency %q: negative", s)
	}
	return d, nil
}

// LatencyMS renders a duration in milliseconds the way the proxy
// reports them ("0.0213s" → 21.3).
func LatencyMS(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1e6
}
