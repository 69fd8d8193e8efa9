package topology

import (
	"errors"
	"fmt"
)

// ErrNoUplink is returned when a zone switch has no link to the core
// switch. Callers must treat it as fatal for the affected zone:
// falling back to a guessed interface name is exactly the failure mode
// this resolver exists to prevent.
var ErrNoUplink = errors.New("no uplink to core")

// Uplink is the resolved bottleneck link of one zone: the aggregation
// switch and its core-facing interface.
type Uplink struct {
	Switch string
	Intf   string
}

// UplinkInterface finds the interface on zoneSwitch that connects it to
// core. If the switch has several links to the core, the first one in
// link order is used; there is no ordering guarantee beyond that.
func (t *Topology) UplinkInterface(zoneSwitch, core string) (string, error) {
	for _, l := range t.Links {
		if l.A == zoneSwitch && l.B == core {
			return l.AIntf, nil
		}
		if l.B == zoneSwitch && l.A == core {
			return l.BIntf, nil
		}
	}
	return "", fmt.Errorf("%w: %s has no link to %s", ErrNoUplink, zoneSwitch, core)
}

// ResolveUplinks resolves the core-facing interface of every zone's
// aggregation switch. Any missing zone fails the whole resolution; the
// sampling loop must not start without a complete map.
func (t *Topology) ResolveUplinks() (map[Zone]Uplink, error) {
	uplinks := make(map[Zone]Uplink, len(t.ZoneSwitches))
	for _, z := range Zones {
		sw, ok := t.ZoneSwitches[z]
		if !ok {
			return nil, fmt.Errorf("%w: zone %s has no aggregation switch", ErrNoUplink, z)
		}
		intf, err := t.UplinkInterface(sw, t.CoreSwitch)
		if err != nil {
			return nil, fmt.Errorf("resolve zone %s: %w", z, err)
		}
		uplinks[z] = Uplink{Switch: sw, Intf: intf}
	}
	return uplinks, nil
}
