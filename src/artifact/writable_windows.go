//go:build windows

package artifact

import "golang.org/x/sys/windows"

// makeWritable drops FILE_ATTRIBUTE_READONLY, which blocks DeleteFile on Windows.
func makeWritable(path string) error {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return err
	}
	return windows.SetFileAttributes(p, windows.FILE_ATTRIBUTE_NORMAL)
}
