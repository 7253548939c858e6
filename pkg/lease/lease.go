// Package lease models resource offers from worker machines: the
// immutable Lease value, its typed attribute map, the per-machine
// consolidated snapshot, and the process-wide lease/vm identity indices.
package lease

import (
	"strconv"
	"time"

	"github.com/fleetplacer/core/pkg/ports"
)

// AttrKind identifies the dynamic type carried by an AttrValue.
type AttrKind int

const (
	AttrString AttrKind = iota
	AttrInt
	AttrFloat
	AttrBool
)

// AttrValue is a small tagged union for offer attribute values
// (zone=us-east-1a, cluster=prod, gpu=true, ...). Using a closed set of
// kinds instead of interface{} keeps equality and group-partitioning well
// defined for every attribute a constraint or autoscale rule might key on.
type AttrValue struct {
	Kind AttrKind
	Str  string
	Int  int64
	F64  float64
	Bool bool
}

func String(s string) AttrValue  { return AttrValue{Kind: AttrString, Str: s} }
func Int(i int64) AttrValue      { return AttrValue{Kind: AttrInt, Int: i} }
func Float(f float64) AttrValue  { return AttrValue{Kind: AttrFloat, F64: f} }
func Bool(b bool) AttrValue      { return AttrValue{Kind: AttrBool, Bool: b} }

// AsString returns the value rendered as a string regardless of Kind, for
// use as a partition/group key.
func (v AttrValue) AsString() string {
	switch v.Kind {
	case AttrString:
		return v.Str
	case AttrInt:
		return strconv.FormatInt(v.Int, 10)
	case AttrFloat:
		return strconv.FormatFloat(v.F64, 'g', -1, 64)
	case AttrBool:
		if v.Bool {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}

// Attributes is the typed attribute map carried by a Lease.
type Attributes map[string]AttrValue

// Clone returns a shallow copy of the attribute map.
func (a Attributes) Clone() Attributes {
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Lease is an immutable offer from one machine.
type Lease struct {
	LeaseID     string
	VMID        string
	Hostname    string
	CPUCores    float64
	MemoryMB    float64
	NetworkMbps float64
	DiskMB      float64
	PortRanges  []ports.Range
	Attributes  Attributes
	OfferedAt   time.Time
}

// TotalLeaseView is an immutable snapshot of a machine's consolidated
// resources, published by MachineState.UpdateTotalLeaseView after offer
// consolidation. Readers may hold it by value or by shared pointer; it is
// never mutated after construction.
type TotalLeaseView struct {
	Hostname    string
	CPUCores    float64
	MemoryMB    float64
	NetworkMbps float64
	DiskMB      float64
	PortRanges  []ports.Range
	Attributes  Attributes
}
