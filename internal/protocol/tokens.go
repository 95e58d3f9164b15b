package protocol

// Server reply tokens. Payloads are matched exactly and case-sensitively.
const (
	ReplyConnected = "CONNECTED"
	ReplyHeadlines = "HEADLINES"
	ReplySources   = "SOURCES"
	ReplyBye       = "BYE"
	ReplyReady     = "READY"
	ReplyError     = "ERROR"
)

// Main menu choices sent by the client.
const (
	MainHeadlines = "1"
	MainSources   = "2"
	MainQuit      = "3"
)

// Submenu choices sent by the client. Options 1-3 are filtered searches whose
// meaning depends on the submenu; see HeadlineOptions and SourceOptions.
const (
	SubSearch1 = "1"
	SubSearch2 = "2"
	SubSearch3 = "3"
	SubListAll = "4"
	SubBack    = "5"
)

// Target names which upstream collection a submenu queries.
type Target string

const (
	TargetHeadlines Target = "headlines"
	TargetSources   Target = "sources"
)

// FilterKind tags the filter carried by one query.
type FilterKind string

const (
	FilterKeyword  FilterKind = "keyword"
	FilterCategory FilterKind = "category"
	FilterCountry  FilterKind = "country"
	FilterLanguage FilterKind = "language"
	FilterAll      FilterKind = "all"
)

// HeadlineOptions maps headlines submenu search choices to filter kinds.
var HeadlineOptions = map[string]FilterKind{
	SubSearch1: FilterKeyword,
	SubSearch2: FilterCategory,
	SubSearch3: FilterCountry,
	SubListAll: FilterAll,
}

// SourceOptions maps sources submenu search choices to filter kinds.
var SourceOptions = map[string]FilterKind{
	SubSearch1: FilterCategory,
	SubSearch2: FilterCountry,
	SubSearch3: FilterLanguage,
	SubListAll: FilterAll,
}

// OptionFilter resolves a submenu choice for target. The back choice is not
// an option and returns ErrUnknownOption.
func OptionFilter(target Target, choice string) (FilterKind, error) {
	var table map[string]FilterKind
	switch target {
	case TargetHeadlines:
		table = HeadlineOptions
	case TargetSources:
		table = SourceOptions
	default:
		return "", ErrUnknownOption
	}
	kind, ok := table[choice]
	if !ok {
		return "", ErrUnknownOption
	}
	return kind, nil
}

// OptionChoice is the inverse of OptionFilter.
func OptionChoice(target Target, kind FilterKind) (string, error) {
	var table map[string]FilterKind
	switch target {
	case TargetHeadlines:
		table = HeadlineOptions
	case TargetSources:
		table = SourceOptions
	default:
		return "", ErrUnknownOption
	}
	for choice, k := range table {
		if k == kind {
			return choice, nil
		}
	}
	return "", ErrUnknownOption
}
