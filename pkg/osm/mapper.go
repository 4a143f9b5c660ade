package osm

import (
	"log/slog"
	"maps"
	"strconv"
)

// OSM tag keys mapped onto typed Node fields
const (
	TagName        = "name"
	TagNameDE      = "name:de"
	TagDescription = "description"
	TagStreet      = "addr:street"
	TagHouseNumber = "addr:housenumber"
	TagCity        = "addr:city"
	TagPostcode    = "addr:postcode"
	TagCountry     = "addr:country"
	TagPhone       = "phone"
	TagWebsite     = "website"
)

// MapTags builds a normalized Node from a resolved id, optional
// coordinates and the raw tag map. Each field is derived independently;
// an unparsable postcode only leaves PostalCode nil.
func MapTags(nodeID int64, lat, lon *float64, tags map[string]string) *Node {
	n := &Node{
		NodeID:      nodeID,
		Lat:         lat,
		Lon:         lon,
		Tags:        maps.Clone(tags),
		Name:        lookup(tags, TagName),
		Description: lookup(tags, TagDescription),
		Street:      lookup(tags, TagStreet),
		HouseNumber: lookup(tags, TagHouseNumber),
		City:        lookup(tags, TagCity),
		Country:     lookup(tags, TagCountry),
		Phone:       lookup(tags, TagPhone),
		Website:     lookup(tags, TagWebsite),
	}
	if n.Tags == nil {
		n.Tags = make(map[string]string)
	}
	if n.Name == nil {
		n.Name = lookup(tags, TagNameDE)
	}

	if raw, ok := tags[TagPostcode]; ok {
		code, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			slog.Default().Debug("ignoring unparsable postcode",
				"node_id", nodeID,
				"postcode", raw,
				"error", err)
		} else {
			pc := int(code)
			n.PostalCode = &pc
		}
	}

	return n
}

func lookup(tags map[string]string, key string) *string {
	v, ok := tags[key]
	if !ok {
		return nil
	}
	return &v
}
