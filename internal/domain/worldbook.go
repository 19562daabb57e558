package domain

// Entry is one knowledge unit of a world book. The activation flags
// (constant, selective, order, position and friends) are opaque to the
// retrieval pipeline: they are carried through into point payloads
// unchanged so the consuming application can keep using them.
type Entry struct {
	UID            int      `json:"uid"`
	Key            []string `json:"key"`
	KeySecondary   []string `json:"keysecondary"`
	Comment        string   `json:"comment"`
	Content        string   `json:"content"`
	Constant       bool     `json:"constant"`
	Selective      bool     `json:"selective"`
	SelectiveLogic int      `json:"selectiveLogic"`
	AddMemo        bool     `json:"addMemo"`
	Order          int      `json:"order"`
	Position       int      `json:"position"`
	Disable        bool     `json:"disable"`
	Probability    int      `json:"probability"`
	UseProbability bool     `json:"useProbability"`
}

// WorldBook is a structured knowledge document: a mapping of entries
// keyed by an arbitrary identifier string.
type WorldBook struct {
	Entries map[string]Entry `json:"entries"`
}
