package agents

import "strings"

// NormalizeName is the shared key for every name comparison: trimmed,
// case-folded, with any leading "@" handle prefix removed. Stores and the
// simulation must both use it so lookups agree.
func NormalizeName(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.TrimLeft(n, "@")
	return strings.TrimSpace(n)
}

// NameHash is the 32-bit string hash ((h<<5)-h)+c over the normalized name.
// It seeds attribute derivation, so changing it changes every avatar's look.
func NameHash(name string) uint32 {
	var h int32
	for _, c := range NormalizeName(name) {
		h = (h << 5) - h + int32(c)
	}
	return uint32(h)
}

// Name pools for procedural wanderers.
var firstNames = []string{
	"Aldric", "Astrid", "Bram", "Brenna", "Calla", "Cedric", "Daria",
	"Doran", "Elara", "Erik", "Finn", "Freya", "Gareth", "Greta", "Iris",
	"Jasper", "Juno", "Kael", "Kira", "Leif", "Lena", "Mira", "Nessa",
	"Oswin", "Petra", "Quinn", "Rowan", "Runa", "Thea", "Wren", "Yara",
}

var lastNames = []string{
	"Voss", "Thornwood", "Ashford", "Dunmore", "Greenvale", "Stormcrow",
	"Hearthstone", "Millward", "Ravenmoor", "Silverdale", "Deepwell",
	"Brightwater", "Redforge", "Windholm", "Goldhaven", "Riverstone",
	"Holloway", "Dawnridge", "Farrow", "Thatcher", "Harper", "Mercer",
}
