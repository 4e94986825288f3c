// Package frames carries messages between isolated execution contexts: one
// per frame of a tab, plus a background coordinator. Contexts share no
// memory; every payload crosses the bus JSON-encoded.
package frames

// Actions understood by the contexts and the coordinator.
const (
	ActionGetTabTitle         = "getTabTitle"
	ActionSyncVideoProgress   = "syncVideoProgress"
	ActionTriggerAutoUpdate   = "triggerAutoUpdate"
	ActionGetNiceTitle        = "getNiceTitle"
	ActionGetRequestVideoInfo = "getRequestVideoInfo"
)

// TopFrame is the frame id of a tab's outermost document.
const TopFrame = 0

// Message is a request or notification. Time and Duration are only set for
// progress messages.
type Message struct {
	Action   string  `json:"action"`
	Time     float64 `json:"time,omitempty"`
	Duration float64 `json:"duration,omitempty"`
}

// TabTitle answers getTabTitle.
type TabTitle struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// NiceTitle answers getNiceTitle.
type NiceTitle struct {
	Series  string `json:"series"`
	Episode string `json:"episode"`
	URL     string `json:"url"`
	Site    string `json:"site"`
}

// VideoInfo answers getRequestVideoInfo. URL is resume-capable and Timestamp
// is in epoch milliseconds.
type VideoInfo struct {
	IsIframe  bool    `json:"isIframe"`
	Series    string  `json:"series"`
	Episode   string  `json:"episode"`
	Site      string  `json:"site"`
	URL       string  `json:"url"`
	Time      float64 `json:"time"`
	Duration  float64 `json:"duration"`
	Timestamp int64   `json:"timestamp"`
}

// Tab is the metadata the transport keeps per tab.
type Tab struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Sender identifies where a message came from. Tab is filled in by the bus,
// not by the sending context.
type Sender struct {
	Tab     Tab `json:"tab"`
	FrameID int `json:"frameId"`
}

// Address names a frame.
type Address struct {
	TabID   int
	FrameID int
}
