//go:build windows

package winapi

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"unsafe"
)

var (
	// user32
	user32                   = syscall.NewLazyDLL("user32.dll")
	enumWindows              = user32.NewProc("EnumWindows")
	getWindowTextW           = user32.NewProc("GetWindowTextW")
	getWindowThreadProcessId = user32.NewProc("GetWindowThreadProcessId")
	isWindowVisible          = user32.NewProc("IsWindowVisible")
	sendMessageW             = user32.NewProc("SendMessageW")

	// psapi
	psapi                = syscall.NewLazyDLL("psapi.dll")
	getModuleFileNameExW = psapi.NewProc("GetModuleFileNameExW")

	// kernel32
	kernel32    = syscall.NewLazyDLL("kernel32.dll")
	openProcess = kernel32.NewProc("OpenProcess")
)

const (
	PROCESS_QUERY_INFORMATION = 0x0400
	PROCESS_VM_READ           = 0x0010
	WM_GETTEXTLENGTH          = 0x000E
	WM_APPCOMMAND             = 0x0319
)

// Windows only allows a limited number of callbacks per process, so a single
// one is created and every enumeration is serialized through it.
var (
	enumMu       sync.Mutex
	enumOnce     sync.Once
	enumCallback uintptr
	enumState    *enumeration
)

type enumeration struct {
	processes map[string]bool
	filters   []Filter
	windows   []Window
}

func enumProc(hwnd uintptr, _ uintptr) uintptr {
	if hwnd == 0 || enumState == nil {
		return 1
	}

	var pid uint32
	getWindowThreadProcessId.Call(hwnd, uintptr(unsafe.Pointer(&pid)))

	name, err := getProcessExecutableName(pid)
	if err != nil || !enumState.processes[strings.ToLower(name)] {
		return 1
	}

	w := Window{
		Handle:      hwnd,
		ProcessName: name,
	}
	if err := w.Update(); err != nil {
		return 1
	}
	if Match(&w, enumState.filters...) {
		enumState.windows = append(enumState.windows, w)
	}
	return 1
}

// FindWindowsByProcess returns all windows belonging to the specified processes that pass the provided filters
func FindWindowsByProcess(processNames []string, filters ...Filter) ([]Window, error) {
	enumOnce.Do(func() {
		enumCallback = syscall.NewCallback(enumProc)
	})

	state := &enumeration{
		processes: make(map[string]bool, len(processNames)),
		filters:   filters,
	}
	for _, name := range processNames {
		state.processes[strings.ToLower(name)] = true
	}

	enumMu.Lock()
	defer enumMu.Unlock()

	enumState = state
	ret, _, err := enumWindows.Call(enumCallback, 0)
	enumState = nil

	if ret == 0 {
		return nil, fmt.Errorf("EnumWindows failed: %v", err)
	}
	return state.windows, nil
}

// getWindowText retrieves the title text of a window
func getWindowText(hwnd uintptr) string {
	ret, _, _ := sendMessageW.Call(hwnd, WM_GETTEXTLENGTH, 0, 0)
	length := int(ret)
	if length == 0 {
		return ""
	}

	// +1 for the null terminator
	buf := make([]uint16, length+1)
	getWindowTextW.Call(
		hwnd,
		uintptr(unsafe.Pointer(&buf[0])),
		uintptr(length+1),
	)

	return syscall.UTF16ToString(buf)
}

// getProcessExecutableName returns the executable name for a process ID
func getProcessExecutableName(pid uint32) (string, error) {
	handle, _, _ := openProcess.Call(
		PROCESS_QUERY_INFORMATION|PROCESS_VM_READ,
		0,
		uintptr(pid),
	)
	if handle == 0 {
		return "", fmt.Errorf("could not open process %d", pid)
	}
	defer syscall.CloseHandle(syscall.Handle(handle))

	var buf [syscall.MAX_PATH]uint16
	ret, _, _ := getModuleFileNameExW.Call(
		handle,
		0,
		uintptr(unsafe.Pointer(&buf[0])),
		uintptr(len(buf)),
	)
	if ret == 0 {
		return "", fmt.Errorf("could not get module filename")
	}

	return filepath.Base(syscall.UTF16ToString(buf[:])), nil
}

// Update refreshes the window's title and visibility.
func (w *Window) Update() error {
	ret, _, _ := isWindowVisible.Call(w.Handle)
	w.IsVisible = ret != 0
	w.Title = getWindowText(w.Handle)
	return nil
}

// SendAppCommand delivers a media key to the window.
func (w *Window) SendAppCommand(cmd AppCommand) error {
	if w.Handle == 0 {
		return fmt.Errorf("sending app command %d: no window handle", cmd)
	}
	sendMessageW.Call(w.Handle, WM_APPCOMMAND, w.Handle, cmd.lParam())
	return nil
}
