// Package osm provides utilities for interacting with OpenStreetMap APIs.
package osm

// Node is the normalized form of a single OSM API 0.6 node.
// Every field except NodeID is optional and may be nil.
type Node struct {
	NodeID      int64             `json:"node_id"`
	Name        *string           `json:"name,omitempty"`
	Description *string           `json:"description,omitempty"`
	Lat         *float64          `json:"lat,omitempty"`
	Lon         *float64          `json:"lon,omitempty"`
	Tags        map[string]string `json:"tags"`
	Street      *string           `json:"street,omitempty"`
	HouseNumber *string           `json:"house_number,omitempty"`
	City        *string           `json:"city,omitempty"`
	PostalCode  *int              `json:"postal_code,omitempty"`
	Country     *string           `json:"country,omitempty"`
	Phone       *string           `json:"phone,omitempty"`
	Website     *string           `json:"website,omitempty"`
}

// Tag returns the raw value of an arbitrary tag, including ones
// that are not mapped onto a typed field
func (n *Node) Tag(key string) (string, bool) {
	v, ok := n.Tags[key]
	return v, ok
}

// HasCoordinates reports whether both lat and lon were present
func (n *Node) HasCoordinates() bool {
	return n.Lat != nil && n.Lon != nil
}

// RawNode is the flattened content of a <node> element before mapping
type RawNode struct {
	ID   *int64
	Lat  *float64
	Lon  *float64
	Tags map[string]string
}
