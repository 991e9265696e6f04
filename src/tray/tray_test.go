package tray

import (
	"bytes"
	"encoding/binary"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIconPNGDecodes(t *testing.T) {
	img, err := png.Decode(bytes.NewReader(iconPNG()))
	require.NoError(t, err)
	assert.Equal(t, iconSize, img.Bounds().Dx())
	assert.Equal(t, iconSize, img.Bounds().Dy())
}

func TestWrapICO(t *testing.T) {
	data := iconPNG()
	ico := wrapICO(data)

	require.Len(t, ico, 6+16+len(data))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(ico[2:4]), "type icon")
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(ico[4:6]), "one image")
	assert.Equal(t, uint32(len(data)), binary.LittleEndian.Uint32(ico[14:18]))
	assert.Equal(t, uint32(22), binary.LittleEndian.Uint32(ico[18:22]))
	assert.Equal(t, data, ico[22:])
}

func TestAboutText(t *testing.T) {
	SetAboutExtra("Resident TCP port: 54321")
	assert.Contains(t, aboutText("Screen Answer LLM"), "Screen Answer LLM\nResident TCP port: 54321")
}

func TestUpdateTooltipBeforeReady(t *testing.T) {
	// Must not touch systray before Run.
	UpdateTooltip("busy")
}

func TestRunBlocksInLoopAndReportsQuit(t *testing.T) {
	old := runLoop
	defer func() { runLoop = old }()

	loopCalls := 0
	runLoop = func(onReady, onExit func()) {
		loopCalls++
		onExit()
	}

	quit := 0
	done := make(chan struct{})
	go func() {
		defer close(done)
		Run(Options{OnQuit: func() { quit++ }})
	}()
	<-done

	assert.Equal(t, 1, loopCalls)
	assert.Equal(t, 1, quit)
}
