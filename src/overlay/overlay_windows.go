//go:build windows

package overlay

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"sync"
	"syscall"
	"time"
	"unsafe"

	"github.com/lxn/win"

	"screen-answer-llm/src/screenshot"
)

const (
	wsExLayered    = 0x00080000
	wsExToolWindow = 0x00000080
	lwaAlpha       = 0x2
	blackBrush     = 4

	overlayAlpha             = 77 // ~0.3 opacity
	overlayKeyPollTimerID    = 1
	overlayKeyPollIntervalMs = 25

	// Lets the desktop repaint once the surface is gone so it does not end up in the grab.
	settleDelay = 150 * time.Millisecond
)

var (
	user32DLL                      = syscall.NewLazyDLL("user32.dll")
	procAllowSetForegroundWindow   = user32DLL.NewProc("AllowSetForegroundWindow")
	procGetAsyncKeyState           = user32DLL.NewProc("GetAsyncKeyState")
	procSetLayeredWindowAttributes = user32DLL.NewProc("SetLayeredWindowAttributes")

	gdi32DLL      = syscall.NewLazyDLL("gdi32.dll")
	procCreatePen = gdi32DLL.NewProc("CreatePen")
	procRectangle = gdi32DLL.NewProc("Rectangle")

	registerOnce sync.Once
	registerErr  error
	className    = syscall.StringToUTF16Ptr("ScreenAnswerSelectionOverlay")
)

// session is the state of the one overlay that can be open on the event-loop thread.
type session struct {
	gesture   *Gesture
	done      bool
	cancelled bool
	rect      screenshot.Rect
	escWasOn  bool
}

var active *session

type windowsSelector struct{}

func newPlatformSelector() Selector { return &windowsSelector{} }

func (w *windowsSelector) Select(ctx context.Context) (screenshot.Rect, bool, error) {
	if err := registerClass(); err != nil {
		return screenshot.Rect{}, false, err
	}

	vx := win.GetSystemMetrics(win.SM_XVIRTUALSCREEN)
	vy := win.GetSystemMetrics(win.SM_YVIRTUALSCREEN)
	vw := win.GetSystemMetrics(win.SM_CXVIRTUALSCREEN)
	vh := win.GetSystemMetrics(win.SM_CYVIRTUALSCREEN)
	slog.Debug("overlay opening", "x", vx, "y", vy, "w", vw, "h", vh)

	sess := &session{gesture: NewGesture(image.Pt(int(vx), int(vy)))}
	active = sess
	defer func() { active = nil }()

	hwnd := win.CreateWindowEx(
		win.WS_EX_TOPMOST|wsExLayered|wsExToolWindow,
		className,
		syscall.StringToUTF16Ptr("Select Region - Drag to select, ESC cancels"),
		win.WS_POPUP|win.WS_VISIBLE,
		vx, vy, vw, vh,
		0, 0, win.GetModuleHandle(nil), nil,
	)
	if hwnd == 0 {
		return screenshot.Rect{}, false, fmt.Errorf("failed to create overlay window")
	}
	procSetLayeredWindowAttributes.Call(uintptr(hwnd), 0, overlayAlpha, lwaAlpha)

	win.ShowWindow(hwnd, win.SW_SHOW)
	procAllowSetForegroundWindow.Call(uintptr(os.Getpid()))
	win.SetForegroundWindow(hwnd)
	win.BringWindowToTop(hwnd)
	win.SetFocus(hwnd)
	win.UpdateWindow(hwnd)
	if timerID := win.SetTimer(hwnd, overlayKeyPollTimerID, overlayKeyPollIntervalMs, 0); timerID == 0 {
		slog.Warn("overlay: failed to start keyboard poll timer")
	}

	var msg win.MSG
	for !sess.done {
		ret := win.GetMessage(&msg, 0, 0, 0)
		if ret == 0 || ret == -1 {
			sess.done, sess.cancelled = true, true
			break
		}
		win.TranslateMessage(&msg)
		win.DispatchMessage(&msg)

		if ctx.Err() != nil {
			sess.done, sess.cancelled = true, true
		}
	}

	win.DestroyWindow(hwnd)
	time.Sleep(settleDelay)

	if err := ctx.Err(); err != nil {
		return screenshot.Rect{}, true, nil
	}
	if sess.cancelled {
		slog.Info("overlay: selection cancelled")
		return screenshot.Rect{}, true, nil
	}
	slog.Info("overlay: region selected", "rect", sess.rect.String())
	return sess.rect, false, nil
}

func registerClass() error {
	registerOnce.Do(func() {
		wndClass := win.WNDCLASSEX{
			CbSize:        uint32(unsafe.Sizeof(win.WNDCLASSEX{})),
			Style:         win.CS_HREDRAW | win.CS_VREDRAW,
			LpfnWndProc:   syscall.NewCallback(overlayWndProc),
			HInstance:     win.GetModuleHandle(nil),
			HCursor:       win.LoadCursor(0, win.MAKEINTRESOURCE(win.IDC_CROSS)),
			HbrBackground: win.HBRUSH(win.GetStockObject(blackBrush)),
			LpszClassName: className,
		}
		if win.RegisterClassEx(&wndClass) == 0 {
			registerErr = fmt.Errorf("failed to register window class")
		}
	})
	return registerErr
}

func overlayWndProc(hwnd win.HWND, msg uint32, wParam, lParam uintptr) uintptr {
	sess := active
	if sess == nil {
		return win.DefWindowProc(hwnd, msg, wParam, lParam)
	}

	switch msg {
	case win.WM_LBUTTONDOWN:
		win.SetCapture(hwnd)
		sess.gesture.Press(pointFromLParam(lParam))
		redraw(hwnd)
		return 0

	case win.WM_MOUSEMOVE:
		if sess.gesture.Move(pointFromLParam(lParam)) {
			redraw(hwnd)
		}
		return 0

	case win.WM_LBUTTONUP:
		win.ReleaseCapture()
		rect, ok := sess.gesture.Release(pointFromLParam(lParam))
		sess.done = true
		sess.cancelled = !ok
		sess.rect = rect
		return 0

	case win.WM_RBUTTONDOWN:
		finishCancelled(sess)
		return 0

	case win.WM_KEYDOWN:
		if wParam == win.VK_ESCAPE {
			finishCancelled(sess)
		}
		return 0

	case win.WM_TIMER:
		if wParam == overlayKeyPollTimerID {
			state, _, _ := procGetAsyncKeyState.Call(uintptr(win.VK_ESCAPE))
			down := uint16(state)&0x8000 != 0
			if down && !sess.escWasOn {
				finishCancelled(sess)
			}
			sess.escWasOn = down
		}
		return 0

	case win.WM_PAINT:
		var ps win.PAINTSTRUCT
		hdc := win.BeginPaint(hwnd, &ps)
		if r, ok := sess.gesture.Live(); ok {
			drawSelectionRectangle(hdc, r)
		}
		win.EndPaint(hwnd, &ps)
		return 0

	case win.WM_NCHITTEST:
		return uintptr(win.HTCLIENT)

	case win.WM_DESTROY:
		win.KillTimer(hwnd, overlayKeyPollTimerID)
		// No PostQuitMessage: a stray WM_QUIT would end the next selection immediately.
		return 0
	}

	return win.DefWindowProc(hwnd, msg, wParam, lParam)
}

func finishCancelled(sess *session) {
	win.ReleaseCapture()
	sess.gesture.Cancel()
	sess.done = true
	sess.cancelled = true
}

// pointFromLParam reads signed client coordinates like GET_X_LPARAM/GET_Y_LPARAM.
func pointFromLParam(lParam uintptr) image.Point {
	x := int16(win.LOWORD(uint32(lParam)))
	y := int16(win.HIWORD(uint32(lParam)))
	return image.Pt(int(x), int(y))
}

func redraw(hwnd win.HWND) {
	win.InvalidateRect(hwnd, nil, true)
	win.UpdateWindow(hwnd)
}

func drawSelectionRectangle(hdc win.HDC, r image.Rectangle) {
	redPen, _, _ := procCreatePen.Call(0, 3, 0x0000FF)
	oldPen := win.SelectObject(hdc, win.HGDIOBJ(redPen))
	oldBrush := win.SelectObject(hdc, win.GetStockObject(win.NULL_BRUSH))

	procRectangle.Call(uintptr(hdc), uintptr(r.Min.X), uintptr(r.Min.Y), uintptr(r.Max.X), uintptr(r.Max.Y))

	win.SelectObject(hdc, oldPen)
	win.SelectObject(hdc, oldBrush)
	win.DeleteObject(win.HGDIOBJ(redPen))
}
