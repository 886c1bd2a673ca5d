package widget

// Room identifiers. The notifications tab exists only in the full-page
// variant; the sidebar variant carries general and help.
const (
	RoomGeneral       = "general"
	RoomHelp          = "help"
	RoomNotifications = "notifications"
)

// DeepLinkInbox is the documented hash that deep-links into the
// notifications tab.
const DeepLinkInbox = "#inbox"

type roomState struct {
	id     string
	unread int
	store  *MessageStore
}

// roomSet tracks the active room and per-room unread counters. Transitions
// happen only through Activate; messages for non-active rooms bump unread
// and never auto-switch.
type roomSet struct {
	rooms  map[string]*roomState
	order  []string
	active string
}

func newRoomSet(withInbox bool) *roomSet {
	ids := []string{RoomGeneral, RoomHelp}
	if withInbox {
		ids = append(ids, RoomNotifications)
	}
	rs := &roomSet{
		rooms:  make(map[string]*roomState, len(ids)),
		order:  ids,
		active: RoomGeneral,
	}
	for _, id := range ids {
		rs.rooms[id] = &roomState{id: id, store: NewMessageStore()}
	}
	return rs
}

func (rs *roomSet) get(id string) (*roomState, bool) {
	r, ok := rs.rooms[id]
	return r, ok
}

// resolve maps a message's room to a known room, defaulting to general.
func (rs *roomSet) resolve(room string) *roomState {
	if r, ok := rs.rooms[room]; ok {
		return r
	}
	return rs.rooms[RoomGeneral]
}

// activate switches the active room and clears its unread counter.
// It returns false for unknown rooms.
func (rs *roomSet) activate(id string) (*roomState, bool) {
	r, ok := rs.rooms[id]
	if !ok {
		return nil, false
	}
	rs.active = id
	r.unread = 0
	return r, true
}
