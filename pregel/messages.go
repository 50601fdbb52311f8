package pregel

// Message is the common chat-turn shape threaded through a graph's message
// channel: a role, its content, and a stable id used for fan-in dedup and
// streaming chunk merging.
//
// ID is assigned by whichever node produces the message. Nodes that want a
// later delta to replace rather than append a message should reuse the
// same ID — AppendMessagesReducer treats a repeated ID as a replacement.
type Message struct {
	ID      string
	Role    string
	Content string
}

// AppendMessagesReducer merges a step's Message updates into the channel's
// existing []Message value: an update whose ID matches an existing message
// replaces it in place, preserving position; a new ID is appended. This is
// the message-channel analogue of TopicReducer, grounded in the
// merge-by-id pattern LangGraph's original message-history reducer uses.
func AppendMessagesReducer(prev any, updates []any) (any, error) {
	var out []Message
	if prev != nil {
		existing, ok := prev.([]Message)
		if !ok {
			return nil, &ChannelError{Message: "message channel previous value is not []Message"}
		}
		out = append(out, existing...)
	}

	index := make(map[string]int, len(out))
	for i, m := range out {
		if m.ID != "" {
			index[m.ID] = i
		}
	}

	for _, u := range updates {
		msgs, err := asMessages(u)
		if err != nil {
			return nil, err
		}
		for _, m := range msgs {
			if m.ID != "" {
				if i, ok := index[m.ID]; ok {
					out[i] = m
					continue
				}
				index[m.ID] = len(out)
			}
			out = append(out, m)
		}
	}
	return out, nil
}

func asMessages(u any) ([]Message, error) {
	switch v := u.(type) {
	case Message:
		return []Message{v}, nil
	case []Message:
		return v, nil
	default:
		return nil, &ChannelError{Message: "update to message channel must be Message or []Message"}
	}
}
