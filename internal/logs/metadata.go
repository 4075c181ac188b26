package logs

import "sort"

// Metadata maps every known log to its chain. A published Metadata value is
// immutable; build the next version from Clone.
type Metadata struct {
	Version Version         `msgpack:"version" json:"version"`
	Chains  map[LogID]Chain `msgpack:"chains" json:"chains"`
}

// NewMetadata returns an empty metadata value at VersionMin.
func NewMetadata() *Metadata {
	return &Metadata{Version: VersionMin, Chains: map[LogID]Chain{}}
}

// Chain returns the chain of id.
func (m *Metadata) Chain(id LogID) (Chain, bool) {
	if m == nil {
		return Chain{}, false
	}
	c, ok := m.Chains[id]
	return c, ok
}

// LogIDs returns every known log in ascending order.
func (m *Metadata) LogIDs() []LogID {
	ids := make([]LogID, 0, len(m.Chains))
	for id := range m.Chains {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Clone deep-copies the metadata.
func (m *Metadata) Clone() *Metadata {
	out := &Metadata{Version: m.Version, Chains: make(map[LogID]Chain, len(m.Chains))}
	for id, c := range m.Chains {
		out.Chains[id] = c.Clone()
	}
	return out
}
