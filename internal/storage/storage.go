package storage

// Fixed keys used by the client.
const (
	// KeyOpenWindows holds the serialized open-window set. Absent when the
	// set is empty.
	KeyOpenWindows = "debatesync.open_windows"
	// KeyTheme holds the last-applied visual theme id. Owned by the terminal
	// UI, not by the session core.
	KeyTheme = "debatesync.theme"
)

// Store is durable client-side key/value storage.
type Store interface {
	// Get returns the value for key. The second result is false when the key
	// is absent.
	Get(key string) ([]byte, bool, error)

	// Put stores value under key, replacing any previous value.
	Put(key string, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(key string) error

	// Close releases the underlying resources.
	Close() error
}
