package tray

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"runtime"
)

const iconSize = 32

// iconPNG draws the tray glyph: a dashed selection frame with an answer dot.
func iconPNG() []byte {
	img := image.NewNRGBA(image.Rect(0, 0, iconSize, iconSize))
	frame := color.NRGBA{R: 0x00, G: 0x78, B: 0xd4, A: 0xff}
	dot := color.NRGBA{R: 0xd1, G: 0x34, B: 0x38, A: 0xff}

	for i := 4; i < iconSize-4; i++ {
		if (i/3)%2 == 1 {
			continue
		}
		for w := 0; w < 2; w++ {
			img.Set(i, 4+w, frame)
			img.Set(i, iconSize-5-w, frame)
			img.Set(4+w, i, frame)
			img.Set(iconSize-5-w, i, frame)
		}
	}
	c := iconSize / 2
	for y := -5; y <= 5; y++ {
		for x := -5; x <= 5; x++ {
			if x*x+y*y <= 25 {
				img.Set(c+x, c+y, dot)
			}
		}
	}

	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

// wrapICO packs a PNG into a single-image .ico container, which is what the Windows
// tray expects.
func wrapICO(pngData []byte) []byte {
	var buf bytes.Buffer
	// ICONDIR
	_ = binary.Write(&buf, binary.LittleEndian, [3]uint16{0, 1, 1})
	// ICONDIRENTRY
	buf.Write([]byte{iconSize, iconSize, 0, 0})
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1))  // planes
	_ = binary.Write(&buf, binary.LittleEndian, uint16(32)) // bpp
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(pngData)))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(6+16))
	buf.Write(pngData)
	return buf.Bytes()
}

func iconBytes() []byte {
	data := iconPNG()
	if runtime.GOOS == "windows" {
		return wrapICO(data)
	}
	return data
}
