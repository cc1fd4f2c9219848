package joy

import "fmt"

const subsystemMask = 0x00ff_0000_0000_0000
const pidMask = 0x0000_ffff_0000_0000
const errorNumberMask = 0x0000_0000_0000_ffff

const JoyNoError = JoyError(0)

// Memory Errors
const MemorySubsystem = 1
const MemoryExhausted = 1
const MemoryMapFailed = 2
const MemoryBadUserBuffer = 3

var ErrorMemoryExhausted = errorValue(MemorySubsystem, MemoryExhausted)
var ErrorMemoryMapFailed = errorValue(MemorySubsystem, MemoryMapFailed)
var ErrorMemoryBadUserBuffer = errorValue(MemorySubsystem, MemoryBadUserBuffer)

// Family (task) Errors
const FamilySubsystem = 2
const FamilyNoStack = 1

var ErrorFamilyNoStack = errorValue(FamilySubsystem, FamilyNoStack)

// Loader Errors
const LoaderSubsystem = 3
const LoaderFileNotFound = 1
const LoaderBadImage = 2

var ErrorLoaderFileNotFound = errorValue(LoaderSubsystem, LoaderFileNotFound)
var ErrorLoaderBadImage = errorValue(LoaderSubsystem, LoaderBadImage)

// Syscall Errors
const SyscallSubsystem = 4
const SyscallUnknown = 1
const SyscallBadFd = 2
const SyscallNotText = 3

var ErrorSyscallUnknown = errorValue(SyscallSubsystem, SyscallUnknown)
var ErrorSyscallBadFd = errorValue(SyscallSubsystem, SyscallBadFd)
var ErrorSyscallNotText = errorValue(SyscallSubsystem, SyscallNotText)

// JoyError is a packed kernel error: subsystem<<48 | pid<<32 | number.
type JoyError uint64
type RawJoyError uint64 // error with just the constant part of the value filled in

var errorMap = map[RawJoyError]string{
	ErrorMemoryExhausted:     "out of physical frames",
	ErrorMemoryMapFailed:     "unable to map region",
	ErrorMemoryBadUserBuffer: "user buffer is not mapped",
	ErrorFamilyNoStack:       "unable to allocate kernel stack",
	ErrorLoaderFileNotFound:  "executable not found",
	ErrorLoaderBadImage:      "executable is malformed",
	ErrorSyscallUnknown:      "unknown system call",
	ErrorSyscallBadFd:        "bad file descriptor",
	ErrorSyscallNotText:      "buffer is not valid text",
}

func (j JoyError) Raw() RawJoyError {
	return RawJoyError(uint64(j) &^ pidMask)
}

func (j JoyError) Pid() Pid {
	return Pid((uint64(j) & pidMask) >> 32)
}

func (j JoyError) Subsystem() int {
	return int((uint64(j) & subsystemMask) >> 48)
}

func (j JoyError) Error() string {
	t, ok := errorMap[j.Raw()]
	if !ok {
		return fmt.Sprintf("unknown error code %#x", uint64(j))
	}
	return fmt.Sprintf("pid %d: %s", j.Pid(), t)
}

// Is lets errors.Is match a JoyError against the raw constant, ignoring
// which task it happened in.
func (j JoyError) Is(target error) bool {
	switch t := target.(type) {
	case RawJoyError:
		return j.Raw() == t
	case JoyError:
		return j == t
	}
	return false
}

func (r RawJoyError) Error() string {
	if t, ok := errorMap[r]; ok {
		return t
	}
	return fmt.Sprintf("unknown error code %#x", uint64(r))
}

func errorValue(subsys byte, errorNumber uint16) RawJoyError {
	ss := subsystemMask & (uint64(subsys) << 48)
	en := errorNumberMask & (uint64(errorNumber) << 0)
	return RawJoyError(ss | en)
}

// MakeError adds the dynamic fields (the current pid) to the error value.
func (k *Kernel) MakeError(rawError RawJoyError) JoyError {
	return makeError(rawError, k.CurrentPid())
}

func makeError(rawError RawJoyError, pid Pid) JoyError {
	raw := uint64(rawError)
	p := (uint64(pid) << 32) & pidMask
	return JoyError(raw | p)
}
