//go:build windows

package notification

import (
	"log/slog"
	"runtime"
	"sync"
	"syscall"
	"time"
	"unsafe"

	"github.com/lxn/win"
	"golang.org/x/sys/windows"
)

const (
	panelWidth  = 300
	panelHeight = 100
	panelMargin = 10
	panelGap    = 8

	wsExNoActivate = 0x08000000
	wsExToolWindow = 0x00000080
	whiteBrush     = 0
	dtWordBreak    = 0x00000010
	dtNoPrefix     = 0x00000800

	wmShow     = win.WM_USER + 1
	timerClose = 1
)

var (
	user32                = windows.NewLazySystemDLL("user32.dll")
	procMessageBoxW       = user32.NewProc("MessageBoxW")
	procPostThreadMessage = user32.NewProc("PostThreadMessageW")
	procDrawText          = user32.NewProc("DrawTextW")

	panelClass = syscall.StringToUTF16Ptr("ScreenAnswerPanel")
)

// ShowBlockingError displays a modal, blocking error dialog and returns after user dismisses it.
func ShowBlockingError(title, message string) {
	titlePtr, _ := syscall.UTF16PtrFromString(title)
	msgPtr, _ := syscall.UTF16PtrFromString(message)
	const MB_OK = 0x00000000
	const MB_ICONERROR = 0x00000010
	const MB_SYSTEMMODAL = 0x00001000
	procMessageBoxW.Call(0, uintptr(unsafe.Pointer(msgPtr)), uintptr(unsafe.Pointer(titlePtr)), MB_OK|MB_ICONERROR|MB_SYSTEMMODAL)
}

// panelSink owns one display thread. Display only queues text and wakes that thread, so
// callers on worker goroutines never touch a window.
type panelSink struct {
	duration time.Duration

	once     sync.Once
	threadID uint32
	ready    chan struct{}

	mu      sync.Mutex
	pending []string
}

// Window state below is only touched on the display thread.
type panel struct {
	text string
	slot int
}

var (
	panels = map[win.HWND]*panel{}
	slots  slotSet
)

func newPlatformSink(d time.Duration) Sink {
	return &panelSink{duration: d, ready: make(chan struct{})}
}

func (s *panelSink) Display(text string) {
	s.once.Do(func() { go s.loop() })
	<-s.ready

	if s.threadID == 0 {
		LogSink{}.Display(text)
		return
	}

	s.mu.Lock()
	s.pending = append(s.pending, panelText(text))
	s.mu.Unlock()
	if ret, _, err := procPostThreadMessage.Call(uintptr(s.threadID), uintptr(wmShow), 0, 0); ret == 0 {
		slog.Warn("notification: failed to wake display thread", "err", err)
	}
}

func (s *panelSink) loop() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("notification thread panic", "panic", r)
		}
	}()

	wndClass := win.WNDCLASSEX{
		CbSize:        uint32(unsafe.Sizeof(win.WNDCLASSEX{})),
		LpfnWndProc:   syscall.NewCallback(panelWndProc),
		HInstance:     win.GetModuleHandle(nil),
		HCursor:       win.LoadCursor(0, win.MAKEINTRESOURCE(win.IDC_ARROW)),
		HbrBackground: win.HBRUSH(win.GetStockObject(whiteBrush)),
		LpszClassName: panelClass,
	}
	if win.RegisterClassEx(&wndClass) == 0 {
		slog.Error("notification: failed to register panel class")
		close(s.ready)
		return
	}

	// Make sure the thread has a message queue before anyone posts to it.
	var msg win.MSG
	win.PeekMessage(&msg, 0, win.WM_USER, win.WM_USER, win.PM_NOREMOVE)
	s.threadID = windows.GetCurrentThreadId()
	close(s.ready)
	slog.Debug("notification thread ready", "thread", s.threadID)

	for win.GetMessage(&msg, 0, 0, 0) > 0 {
		if msg.HWnd == 0 && msg.Message == wmShow {
			s.showPending()
			continue
		}
		win.TranslateMessage(&msg)
		win.DispatchMessage(&msg)
	}
}

func (s *panelSink) showPending() {
	s.mu.Lock()
	texts := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, text := range texts {
		s.show(text)
	}
}

func (s *panelSink) show(text string) {
	screenW := win.GetSystemMetrics(win.SM_CXSCREEN)
	screenH := win.GetSystemMetrics(win.SM_CYSCREEN)

	slot := slots.acquire()
	x := screenW - panelWidth - panelMargin
	y := screenH - panelMargin - int32(slot+1)*(panelHeight+panelGap) - 40 // clear of the taskbar

	hwnd := win.CreateWindowEx(
		win.WS_EX_TOPMOST|wsExNoActivate|wsExToolWindow,
		panelClass,
		nil,
		win.WS_POPUP|win.WS_BORDER,
		x, y, panelWidth, panelHeight,
		0, 0, win.GetModuleHandle(nil), nil,
	)
	if hwnd == 0 {
		slots.release(slot)
		slog.Warn("notification: failed to create panel window")
		return
	}
	panels[hwnd] = &panel{text: text, slot: slot}

	win.ShowWindow(hwnd, win.SW_SHOWNOACTIVATE)
	win.UpdateWindow(hwnd)
	win.SetTimer(hwnd, timerClose, uint32(s.duration/time.Millisecond), 0)
}

func panelWndProc(hwnd win.HWND, msg uint32, wParam, lParam uintptr) uintptr {
	switch msg {
	case win.WM_PAINT:
		var ps win.PAINTSTRUCT
		hdc := win.BeginPaint(hwnd, &ps)
		if p := panels[hwnd]; p != nil {
			rect := win.RECT{Left: 10, Top: 10, Right: panelWidth - 10, Bottom: panelHeight - 10}
			textPtr, _ := syscall.UTF16PtrFromString(p.text)
			win.SetBkMode(hdc, win.TRANSPARENT)
			procDrawText.Call(uintptr(hdc), uintptr(unsafe.Pointer(textPtr)), ^uintptr(0), uintptr(unsafe.Pointer(&rect)), dtWordBreak|dtNoPrefix)
		}
		win.EndPaint(hwnd, &ps)
		return 0

	case win.WM_TIMER:
		if wParam == timerClose {
			win.DestroyWindow(hwnd)
		}
		return 0

	case win.WM_LBUTTONDOWN, win.WM_RBUTTONDOWN:
		win.DestroyWindow(hwnd)
		return 0

	case win.WM_DESTROY:
		win.KillTimer(hwnd, timerClose)
		if p := panels[hwnd]; p != nil {
			slots.release(p.slot)
			delete(panels, hwnd)
		}
		return 0
	}

	return win.DefWindowProc(hwnd, msg, wParam, lParam)
}
