package model

// Settings is the persisted JSON shape for user settings. This
// module never reads or writes it to disk; a caller's storage layer owns
// that and hands ConnectionSettings to this module per connection attempt.
type Settings struct {
	Theme      string            `json:"theme"`
	Connection ConnectionSettings `json:"connection"`
	SFTP       SFTPSettings       `json:"sftp"`
	Monitor    map[string]any     `json:"monitor,omitempty"`
	System     map[string]any     `json:"system,omitempty"`
}

// ConnectionSettings mirrors the connection group. internal/config's
// ConnectionDefaults carries the same kind of values, loaded from the
// environment, for callers with no external settings store (e.g. tests or
// the demo CLI); neither type is converted into the other here.
type ConnectionSettings struct {
	DefaultPort             int  `json:"default_port"`
	ConnectionTimeoutSecs   int  `json:"connection_timeout_secs"`
	KeepaliveIntervalSecs   int  `json:"keepalive_interval_secs"`
	AutoReconnect           bool `json:"auto_reconnect"`
	ReconnectAttempts       int  `json:"reconnect_attempts"`
	ReconnectIntervalSecs   int  `json:"reconnect_interval_secs"`
	Compression             bool `json:"compression"`
}

// SFTPSettings mirrors the sftp group.
type SFTPSettings struct {
	ShowHidden        bool `json:"show_hidden"`
	ParallelChannels  int  `json:"parallel_channels"`
}

// SnippetGroup and Snippet mirror the snippets persisted shape.
type SnippetGroup struct {
	ID    string    `json:"id"`
	Name  string    `json:"name"`
	Items []Snippet `json:"items"`
}

type Snippet struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Command string `json:"command"`
}
