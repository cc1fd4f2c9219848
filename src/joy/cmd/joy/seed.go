package main

import (
	"waemom/src/drivers/ramfs"
	"waemom/src/joy"
	"waemom/src/lib/loader"
	"waemom/src/lib/settings"
)

const (
	helloEntry = 0x40_0000
	helloData  = 0x60_0000
)

const helloGreeting = "Hello from /bin/hello, running in ring 3!"
const helloGoodbye = "/bin/hello: awake again, exiting"

const readme = `waemon hosted kernel

/bin/hello   user program, says hello through write(1, ...)
/etc/motd    printed at boot
/waemon.lock boot settings
`

const motd = "Welcome to waemon."

const defaultLock = `# boot settings
[elf]
enabled = true
max_bytes = 4096

[kernel]
tick_hz = 100
memory_mib = 16

[log]
level = info
`

// helloImage is /bin/hello: a token text segment at the entry point and the
// strings the program prints in its data segment.
func helloImage() []byte {
	data := helloGreeting + helloGoodbye
	return loader.Build(helloEntry,
		loader.Segment{Data: []byte{0x0f, 0x05, 0xeb, 0xfe}, Vaddr: helloEntry}, // syscall; jmp .
		loader.Segment{Data: []byte(data), Vaddr: helloData},
	)
}

// helloProgram is what runs at helloEntry once the task is in user mode.
func helloProgram(u *joy.UserThread) {
	u.Syscall(joy.SysWrite, 1, helloData, uint64(len(helloGreeting)))
	u.Syscall(joy.SysSleep, 100)
	u.Pause()
	u.Syscall(joy.SysWrite, 1, helloData+uint64(len(helloGreeting)), uint64(len(helloGoodbye)))
	u.Syscall(joy.SysExit, 0)
}

func seedFiles(fs *ramfs.RamFS) error {
	files := map[string][]byte{
		"/README.txt":     []byte(readme),
		"/etc/motd":       []byte(motd),
		"/bin/hello":      helloImage(),
		settings.LockFile: []byte(defaultLock),
	}
	for path, data := range files {
		if err := fs.Write(path, data); err != nil {
			return err
		}
	}
	return nil
}
