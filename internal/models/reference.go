package models

import (
	"fmt"
	"strings"

	"github.com/paulmach/orb"
)

// Kind classifies a reference geometry inside a protocol.
type Kind string

const (
	KindNone      Kind = ""
	KindPoint     Kind = "point"
	KindOuter     Kind = "outer"
	KindInner     Kind = "inner"
	KindStartLine Kind = "start_line"
	KindTrail     Kind = "trail"
	KindCrossing  Kind = "crossing"
)

// InferKind guesses a kind from a reference name. Used when a KML provides
// raw placemarks without any protocol artifact naming.
func InferKind(name string) Kind {
	n := strings.ToLower(name)
	switch {
	case strings.Contains(n, "outer"):
		return KindOuter
	case strings.Contains(n, "inner"):
		return KindInner
	case strings.Contains(n, "start"):
		return KindStartLine
	case strings.Contains(n, "trail"):
		return KindTrail
	case strings.Contains(n, "cross"):
		return KindCrossing
	case strings.Contains(n, "point"):
		return KindPoint
	}
	return KindNone
}

// Reference is a named geometry read from the protocol KML.
type Reference struct {
	Name        string
	Description string
	Kind        Kind
	Geometry    orb.Geometry
	// EPSG of Geometry. Zero means WGS84 lon/lat.
	EPSG int
}

// Protocol identifies one of the measurement protocols.
type Protocol string

const (
	P1 Protocol = "p1"
	P2 Protocol = "p2"
	P3 Protocol = "p3"
)

// Protocols lists every protocol in processing order.
var Protocols = []Protocol{P1, P2, P3}

// Number returns the protocol digit, "1" for p1.
func (p Protocol) Number() string {
	return strings.TrimPrefix(string(p), "p")
}

// Dir is the per-protocol output directory name.
func (p Protocol) Dir() string {
	return fmt.Sprintf("protocolo%s", p.Number())
}

// Valid reports whether p is one of the known protocols.
func (p Protocol) Valid() bool {
	for _, k := range Protocols {
		if k == p {
			return true
		}
	}
	return false
}
