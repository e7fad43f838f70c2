package client

import "sync"

// ChatEntry is one line of the room conversation. System entries carry
// membership notices and have no sender.
type ChatEntry struct {
	Sender    string
	AvatarURL string
	Text      string
	System    bool
}

// chatLog is an append-only record of chat and system messages.
type chatLog struct {
	mu      sync.Mutex
	entries []ChatEntry
}

func (l *chatLog) appendUser(sender, text, avatarURL string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, ChatEntry{
		Sender:    sender,
		AvatarURL: avatarURL,
		Text:      text,
	})
}

func (l *chatLog) appendSystem(text string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, ChatEntry{
		Text:   text,
		System: true,
	})
}

func (l *chatLog) snapshot() []ChatEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]ChatEntry, len(l.entries))
	copy(out, l.entries)
	return out
}
