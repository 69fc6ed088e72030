package musictime

// Catalog IDs
const (
	TimeSig44 = "4/4"
)

var (
	catalog     []TimeSig
	catalogByID map[string]TimeSig

	// DefaultTimeSig is the fallback meter handed out for unknown IDs
	DefaultTimeSig TimeSig
)

func mustTimeSig(id, name string, minorBeatsPerQuarter int, groups ...int) TimeSig {
	ts, err := NewTimeSig(id, name, minorBeatsPerQuarter, groups...)
	if err != nil {
		panic(err)
	}
	return ts
}

func init() {
	catalog = []TimeSig{
		mustTimeSig("2/4", "2/4", 1, 1, 1),
		mustTimeSig("3/4", "3/4", 1, 1, 1, 1),
		mustTimeSig(TimeSig44, "4/4", 1, 1, 1, 1, 1),
		mustTimeSig("5/4", "5/4", 1, 1, 1, 1, 1, 1),
		mustTimeSig("7/4", "7/4", 1, 1, 1, 1, 1, 1, 1, 1),
		mustTimeSig("5/8-32", "5/8 (3+2)", 2, 3, 2),
		mustTimeSig("5/8-23", "5/8 (2+3)", 2, 2, 3),
		mustTimeSig("6/8", "6/8", 3, 3, 3),
		mustTimeSig("7/8-223", "7/8 (2+2+3)", 2, 2, 2, 3),
		mustTimeSig("7/8-322", "7/8 (3+2+2)", 2, 3, 2, 2),
		mustTimeSig("7/8-232", "7/8 (2+3+2)", 2, 2, 3, 2),
		mustTimeSig("9/8", "9/8", 3, 3, 3, 3),
		mustTimeSig("12/8", "12/8", 3, 3, 3, 3, 3),
	}
	catalogByID = make(map[string]TimeSig, len(catalog))
	for _, ts := range catalog {
		catalogByID[ts.ID()] = ts
	}
	DefaultTimeSig = catalogByID[TimeSig44]
}

// GetTimeSigByID looks up a catalog meter. Unknown IDs intentionally get
// the catalog 4/4 so callers never deal with a missing value.
func GetTimeSigByID(id string) TimeSig {
	if ts, ok := catalogByID[id]; ok {
		return ts
	}
	return DefaultTimeSig
}

// LookupTimeSig is GetTimeSigByID with an explicit found flag
func LookupTimeSig(id string) (TimeSig, bool) {
	ts, ok := catalogByID[id]
	return ts, ok
}

// TimeSigs returns the catalog in display order
func TimeSigs() []TimeSig {
	return append([]TimeSig(nil), catalog...)
}
