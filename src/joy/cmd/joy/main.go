package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"waemom/src/boot/bootloader"
	"waemom/src/drivers/ramfs"
	"waemom/src/drivers/ttycon"
	"waemom/src/joy"
	"waemom/src/lib/loader"
	"waemom/src/lib/settings"
	"waemom/src/lib/trust"
	"waemom/src/lib/upbeat"
)

var lockFlag = flag.String("lock", "", "read boot settings from this file instead of "+settings.LockFile)
var secondsFlag = flag.Int("seconds", 3, "how long the kernel runs before the listing is printed")
var ttyFlag = flag.Bool("tty", false, "send user output to the controlling terminal")

func main() {
	flag.Parse()
	log := trust.Default()

	files := ramfs.New(log.Named("ramfs"))
	if err := seedFiles(files); err != nil {
		log.Fatalf(1, "unable to seed the file store: %v", err)
	}
	s := loadSettings(files, log)
	log.Restrict(trust.ParseLevel(s.LogLevel))
	log.Infof("settings: %s", s)

	params := bootloader.NewParams(s.MemoryMiB)
	console := ttycon.Open(*ttyFlag)
	defer console.Close()

	gate := joy.NewProgramGate()
	gate.Register(helloEntry, helloProgram)
	k, err := joy.Boot(joy.Config{
		TickHz:           s.TickHz,
		MemoryMap:        params.MemoryMap,
		KernelImagePages: int(params.KernelImagePages()),
		KernelStackSize:  uint64(params.KernelStackPages()) * upbeat.PageSize,
		Gate:             gate,
		Console:          console,
		Files:            files,
		Logger:           log,
	})
	if err != nil {
		log.Fatalf(1, "boot failed: %v", err)
	}
	if motd, err := files.Read("/etc/motd"); err == nil {
		console.Println(string(motd))
	}

	if _, err := k.SpawnKernel("clock", clock(console)); err != nil {
		log.Fatalf(1, "%v", err)
	}
	if _, err := k.SpawnKernel("lister", lister(files, console)); err != nil {
		log.Fatalf(1, "%v", err)
	}
	if _, err := k.SpawnUserELF("/bin/hello"); err != nil {
		log.Errorf("%v", err)
	}
	if s.ElfEnabled {
		inspect(files, "/bin/hello", s.ElfMaxBytes)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go k.RunTimer(ctx)
	deadline := time.Now().Add(time.Duration(*secondsFlag) * time.Second)
	for time.Now().Before(deadline) {
		k.WaitForInterrupt()
	}
	cancel()

	used, total := k.Frames().Stats()
	fmt.Printf("\nboot %s, up %s, %d ticks, %d/%d frames in use\n",
		k.BootID(), joy.FormatUptime(k.Uptime()), k.Ticks(), used, total)
	fmt.Print(joy.FormatTasks(k.Tasks()))
}

func loadSettings(files *ramfs.RamFS, log *trust.Logger) settings.Settings {
	var data []byte
	var err error
	if *lockFlag != "" {
		data, err = os.ReadFile(*lockFlag)
	} else {
		data, err = files.Read(settings.LockFile)
	}
	if err != nil {
		log.Warnf("no settings (%v), using defaults", err)
		return settings.Default()
	}
	s, err := settings.Parse(data)
	if err != nil {
		log.Warnf("%v, using defaults", err)
	}
	return s
}

func inspect(files *ramfs.RamFS, path string, maxBytes uint64) {
	data, err := files.Read(path)
	if err != nil {
		trust.Warnf("inspect %s: %v", path, err)
		return
	}
	if uint64(len(data)) > maxBytes {
		data = data[:maxBytes]
	}
	fmt.Printf("%s:\n", path)
	for _, line := range strings.Split(strings.TrimRight(loader.Inspect(data), "\n"), "\n") {
		fmt.Printf("    %s\n", line)
	}
}

// clock reports the uptime once a second.
func clock(console joy.Console) func(*joy.Kernel) {
	return func(k *joy.Kernel) {
		for {
			k.SleepCurrent(k.TickHz())
			k.WaitForInterrupt()
			console.Println("clock: up " + joy.FormatUptime(k.Uptime()))
		}
	}
}

// lister prints the root directory once and then idles.
func lister(files *ramfs.RamFS, console joy.Console) func(*joy.Kernel) {
	return func(k *joy.Kernel) {
		names, err := files.List("/")
		if err != nil {
			k.Logger().Errorf("list /: %v", err)
		} else {
			console.Println("ls /: " + strings.Join(names, " "))
		}
		k.Idle()
	}
}
