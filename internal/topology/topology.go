package topology

import "fmt"

// Zone identifies one of the three traffic regions of the emulated network.
type Zone string

const (
	ZoneHighway Zone = "highway"
	ZoneUrban   Zone = "urban"
	ZoneSuburb  Zone = "suburb"
)

// Zones lists all zones in a stable order.
var Zones = []Zone{ZoneHighway, ZoneUrban, ZoneSuburb}

// Endpoint is one RSU host in the emulated network. Endpoints are
// immutable after topology construction; the collector only references
// them.
type Endpoint struct {
	Index int    // 1-based host index, h<Index>
	Name  string // mininet-style host name, e.g. "h3"
	Zone  Zone
	Intf  string // access interface, e.g. "h3-eth0"
	IP    string
	Port  int // per-endpoint flow server port (base port + index)
}

// Link is an undirected edge between two nodes. Interface names are
// recorded per side so the bottleneck resolver can return the zone-side
// interface of an uplink.
type Link struct {
	A, B         string // node names
	AIntf, BIntf string
	BandwidthMbps float64
	DelayMs       float64
	QueueLen      int
}

// Topology is the static view of the emulated network consumed by the
// collector: endpoints with zone assignment, switches, and the link
// graph. It is built once before the run starts and never mutated.
type Topology struct {
	CoreSwitch   string
	MECHost      string
	MECIP        string
	ZoneSwitches map[Zone]string
	Endpoints    []Endpoint
	Links        []Link

	nextPort map[string]int
}

// Params control topology construction. Zone membership follows host
// index: 1..HighwayEnd highway, HighwayEnd+1..UrbanEnd urban, the rest
// suburb.
type Params struct {
	Endpoints  int
	HighwayEnd int
	UrbanEnd   int
	BasePort   int
}

// Link tier parameters, mirroring the emulated network's shape: a fat
// core link, constrained zone uplinks, and per-tier access links.
const (
	coreBandwidthMbps   = 200.0
	coreDelayMs         = 1.0
	coreQueueLen        = 1000
	uplinkBandwidthMbps = 100.0
	uplinkDelayMs       = 2.0
	uplinkQueueLen      = 500
	accessDelayMs       = 2.0
	accessQueueLen      = 200

	defaultMECIP = "10.0.0.100"
)

func accessBandwidth(z Zone) float64 {
	switch z {
	case ZoneHighway:
		return 80.0
	case ZoneUrban:
		return 40.0
	default:
		return 30.0
	}
}

// DefaultParams returns the stock 14-endpoint layout: h1-h4 highway,
// h5-h10 urban, h11-h14 suburb.
func DefaultParams() Params {
	return Params{Endpoints: 14, HighwayEnd: 4, UrbanEnd: 10, BasePort: 5000}
}

// ZoneForIndex maps a 1-based host index to its zone.
func (p Params) ZoneForIndex(i int) Zone {
	switch {
	case i <= p.HighwayEnd:
		return ZoneHighway
	case i <= p.UrbanEnd:
		return ZoneUrban
	default:
		return ZoneSuburb
	}
}

// Validate checks that the zone boundaries carve the endpoint range
// into three non-empty zones.
func (p Params) Validate() error {
	if p.Endpoints < 3 {
		return fmt.Errorf("topology: need at least 3 endpoints, got %d", p.Endpoints)
	}
	if p.HighwayEnd < 1 || p.UrbanEnd <= p.HighwayEnd || p.Endpoints <= p.UrbanEnd {
		return fmt.Errorf("topology: zone boundaries %d/%d do not split %d endpoints into three zones",
			p.HighwayEnd, p.UrbanEnd, p.Endpoints)
	}
	return nil
}

// New builds the three-zone topology: one MEC host behind a core
// switch, one aggregation switch per zone, and Params.Endpoints RSU
// hosts attached to their zone switch.
func New(p Params) (*Topology, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.BasePort == 0 {
		p.BasePort = 5000
	}

	t := &Topology{
		CoreSwitch: "s_core",
		MECHost:    "mec",
		MECIP:      defaultMECIP,
		ZoneSwitches: map[Zone]string{
			ZoneHighway: "s_hw",
			ZoneUrban:   "s_urb",
			ZoneSuburb:  "s_sub",
		},
		nextPort: make(map[string]int),
	}

	t.addLink(t.MECHost, t.CoreSwitch, coreBandwidthMbps, coreDelayMs, coreQueueLen)
	for _, z := range Zones {
		t.addLink(t.ZoneSwitches[z], t.CoreSwitch, uplinkBandwidthMbps, uplinkDelayMs, uplinkQueueLen)
	}

	for i := 1; i <= p.Endpoints; i++ {
		zone := p.ZoneForIndex(i)
		name := fmt.Sprintf("h%d", i)
		link := t.addLink(name, t.ZoneSwitches[zone], accessBandwidth(zone), accessDelayMs, accessQueueLen)
		t.Endpoints = append(t.Endpoints, Endpoint{
			Index: i,
			Name:  name,
			Zone:  zone,
			Intf:  link.AIntf,
			IP:    fmt.Sprintf("10.0.0.%d", i),
			Port:  p.BasePort + i,
		})
	}

	return t, nil
}

// addLink connects two nodes, allocating the next mininet-style
// interface name ("<node>-eth<n>") on each side.
func (t *Topology) addLink(a, b string, bw, delay float64, queue int) Link {
	l := Link{
		A:             a,
		B:             b,
		AIntf:         t.allocIntf(a),
		BIntf:         t.allocIntf(b),
		BandwidthMbps: bw,
		DelayMs:       delay,
		QueueLen:      queue,
	}
	t.Links = append(t.Links, l)
	return l
}

func (t *Topology) allocIntf(node string) string {
	n := t.nextPort[node]
	t.nextPort[node] = n + 1
	return fmt.Sprintf("%s-eth%d", node, n)
}

// EndpointsInZone returns the endpoints belonging to the given zone, in
// index order.
func (t *Topology) EndpointsInZone(z Zone) []Endpoint {
	var out []Endpoint
	for _, ep := range t.Endpoints {
		if ep.Zone == z {
			out = append(out, ep)
		}
	}
	return out
}

// EndpointByName looks an endpoint up by its host name.
func (t *Topology) EndpointByName(name string) (Endpoint, bool) {
	for _, ep := range t.Endpoints {
		if ep.Name == name {
			return ep, true
		}
	}
	return Endpoint{}, false
}
