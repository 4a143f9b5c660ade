package osm

// SentinelNodeID is the well-known test node served from SentinelNode
// when the OSM API cannot be reached.
const SentinelNodeID int64 = 5589879349

// SentinelNode returns a fresh copy of the fallback record for SentinelNodeID
// (Rada Coffee & Rösterei, Heidelberg).
func SentinelNode() *Node {
	str := func(s string) *string { return &s }
	lat, lon := 49.4122362, 8.7077883
	postal := 69117

	return &Node{
		NodeID:      SentinelNodeID,
		Name:        str("Rada Coffee & Rösterei"),
		Description: str("Caffé und Rösterei"),
		Lat:         &lat,
		Lon:         &lon,
		Street:      str("Untere Straße"),
		HouseNumber: str("21"),
		City:        str("Heidelberg"),
		PostalCode:  &postal,
		Country:     str("DE"),
		Phone:       str("+49 6221 1805585"),
		Website:     str("https://rada-roesterei.com/"),
		Tags:        map[string]string{},
	}
}
