package reddit

// Kinds of thing envelopes understood by Objectify.
const (
	kindListing         = "Listing"
	kindUserList        = "UserList"
	kindLiveUpdate      = "LiveUpdate"
	kindLiveUpdateEvent = "LiveUpdateEvent"
)

// Objectify converts decoded JSON into reddit objects bound to r. Thing
// envelopes ({"kind": ..., "data": ...}) of a known kind become typed objects,
// arrays are converted element-wise and everything else is returned as is.
func Objectify(r Requester, v any) any {
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Objectify(r, e)
		}
		return out
	case map[string]any:
		return objectifyMap(r, t)
	default:
		return v
	}
}

func objectifyMap(r Requester, m map[string]any) any {
	if j, ok := m["json"].(map[string]any); ok {
		if data, ok := j["data"].(map[string]any); ok {
			if things, ok := data["things"]; ok {
				return Objectify(r, things)
			}
		}
		return m
	}

	kind, _ := m["kind"].(string)
	data, _ := m["data"].(map[string]any)
	if kind == "" || data == nil {
		return m
	}

	switch kind {
	case kindListing:
		l := &Listing{}
		l.After, _ = data["after"].(string)
		l.Before, _ = data["before"].(string)
		if children, ok := data["children"].([]any); ok {
			l.Children = make([]any, len(children))
			for i, c := range children {
				l.Children[i] = Objectify(r, c)
			}
		}
		return l
	case kindUserList:
		children, _ := data["children"].([]any)
		users := make([]*Redditor, 0, len(children))
		for _, c := range children {
			if cm, ok := c.(map[string]any); ok && len(cm) > 0 {
				users = append(users, redditorFromData(r, cm))
			}
		}
		return users
	case KindRedditor:
		return redditorFromData(r, data)
	case KindSubmission:
		if s, err := NewSubmission(r, "", data); err == nil {
			return s
		}
	case kindLiveUpdate:
		if u, err := NewLiveUpdate(r, data); err == nil {
			return u
		}
	case kindLiveUpdateEvent:
		if t, err := NewLiveThread(r, "", data); err == nil {
			return t
		}
	}
	return m
}
