// Package status defines the listing workflow states.
//
// Any state may move to any other state; the only rule is membership in
// the fixed set below. The status endpoint accepts a narrower subset:
//
//	storage:  evaluating, waiting_for_call, to_contact, contacting,
//	          apt, visited, ended, offline
//	endpoint: to_contact, contacting, apt, visited, ended, offline
package status

import (
	"errors"
	"fmt"
)

// Status values mirror the listings_status_check constraint in PostgreSQL.
type Status string

const (
	Evaluating     Status = "evaluating"
	WaitingForCall Status = "waiting_for_call"
	ToContact      Status = "to_contact"
	Contacting     Status = "contacting"
	Apartment      Status = "apt"
	Visited        Status = "visited"
	Ended          Status = "ended"
	Offline        Status = "offline"
)

// Default is assigned to listings created without a status.
const Default = ToContact

// ErrInvalid is wrapped by every rejected status value.
var ErrInvalid = errors.New("invalid status value")

// All lists every status the store accepts, in workflow order.
var All = []Status{Evaluating, WaitingForCall, ToContact, Contacting, Apartment, Visited, Ended, Offline}

// Endpoint lists the statuses reachable through the status endpoint.
var Endpoint = []Status{ToContact, Contacting, Apartment, Visited, Ended, Offline}

// Parse converts a raw string to a Status accepted by the store.
func Parse(s string) (Status, error) {
	return parseIn(s, All)
}

// ParseEndpoint converts a raw string to a Status accepted by the status
// endpoint.
func ParseEndpoint(s string) (Status, error) {
	return parseIn(s, Endpoint)
}

// OrDefault parses s, substituting Default when s is empty.
func OrDefault(s string) (Status, error) {
	if s == "" {
		return Default, nil
	}
	return Parse(s)
}

// IsValid reports whether st is accepted by the store.
func (st Status) IsValid() bool {
	_, err := Parse(string(st))
	return err == nil
}

func parseIn(s string, allowed []Status) (Status, error) {
	for _, candidate := range allowed {
		if string(candidate) == s {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalid, s)
}
