package service

import "time"

// MaxJournalLimit caps how many journal entries one request may ask for.
const MaxJournalLimit = 1000

// LogFilter supports history filtering by time range and type.
type LogFilter struct {
	From  time.Time // inclusive; zero means no lower bound
	To    time.Time // inclusive; zero means no upper bound
	Type  string    // "" or one of the models.Event* types, any case
	Limit int       // newest N entries; 0 means all
}
