package session

// State is the menu position of one session.
type State int32

const (
	StateAwaitingName State = iota
	StateMainMenu
	StateHeadlinesMenu
	StateSourcesMenu
	StateAwaitingFilterValue
	StateAwaitingResponse
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateAwaitingName:
		return "awaiting_name"
	case StateMainMenu:
		return "main_menu"
	case StateHeadlinesMenu:
		return "headlines_menu"
	case StateSourcesMenu:
		return "sources_menu"
	case StateAwaitingFilterValue:
		return "awaiting_filter_value"
	case StateAwaitingResponse:
		return "awaiting_response"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// InSubmenu reports whether s accepts submenu choices.
func (s State) InSubmenu() bool {
	return s == StateHeadlinesMenu || s == StateSourcesMenu
}
