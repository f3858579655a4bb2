package models

// Button is one inline button: a label and the callback payload sent back on press.
type Button struct {
	Text string
	Data string
	URL  string // if set, rendered as a link instead of a callback
}

// Document is a file attachment read from disk.
type Document struct {
	Path    string
	Caption string
}

// Message is a transport-neutral outbound message.
type Message struct {
	Text     string
	Markdown bool
	PhotoID  string // sent as a photo with Text as caption
	Document *Document
	Buttons  [][]Button
}

func Text(s string) Message {
	return Message{Text: s}
}

// WithButtons returns a copy of m with the given keyboard rows.
func (m Message) WithButtons(rows ...[]Button) Message {
	m.Buttons = rows
	return m
}
