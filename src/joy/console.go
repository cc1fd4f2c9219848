package joy

// Console is the text output sink that write(1, ...) goes to.
type Console interface {
	Println(text string)
}

// FileStore is the read-only file source spawn_user_elf loads from.
type FileStore interface {
	Read(path string) ([]byte, error)
}

type discardConsole struct{}

func (discardConsole) Println(string) {}
