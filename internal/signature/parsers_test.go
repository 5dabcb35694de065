package signature_test

import (
	"archive/tar"
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/ostafen/binwalk/internal/signature"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
	"github.com/ulikunitz/xz/lzma"
)

const (
	junk  = "leading junk"
	trail = "trailing bytes"
)

func embed(payload []byte) []byte {
	return append(append([]byte(junk), payload...), trail...)
}

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	for x := 0; x < 4; x++ {
		for y := 0; y < 3; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 60), G: uint8(y * 80), B: 100, A: 255})
		}
	}
	return img
}

// requireTruncated parses payload placed at the very end of the data and
// checks that it is sized to the end of the data.
func requireTruncated(t *testing.T, parse signature.ParseFunc, payload []byte) signature.Match {
	t.Helper()

	data := append([]byte(junk), payload...)
	m, err := parse(data, len(junk))
	require.NoError(t, err)
	require.Equal(t, uint64(len(payload)), m.Size)
	require.Contains(t, m.Description, "truncated")
	return m
}

func requireMatch(t *testing.T, parse signature.ParseFunc, payload []byte, confidence uint8) signature.Match {
	t.Helper()

	m, err := parse(embed(payload), len(junk))
	require.NoError(t, err)
	require.Equal(t, uint64(len(payload)), m.Size)
	require.Equal(t, confidence, m.Confidence)
	return m
}

func TestParsePNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testImage()))

	m := requireMatch(t, signature.ParsePNG, buf.Bytes(), signature.ConfidenceHigh)
	require.Contains(t, m.Description, "4 x 3")

	_, err := signature.ParsePNG(buf.Bytes()[:buf.Len()-6], 0)
	require.Error(t, err)

	corrupted := bytes.Clone(buf.Bytes())
	corrupted[20] ^= 0xFF
	_, err = signature.ParsePNG(corrupted, 0)
	require.ErrorContains(t, err, "checksum")
}

func TestParseJPEG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, testImage(), nil))

	m := requireMatch(t, signature.ParseJPEG, buf.Bytes(), signature.ConfidenceHigh)
	require.Equal(t, "JPEG image data, 4 x 3", m.Description)

	_, err := signature.ParseJPEG([]byte{0xFF, 0xD8, 0xFF}, 0)
	require.Error(t, err)
}

func TestParseGIF(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, gif.Encode(&buf, testImage(), nil))

	m := requireMatch(t, signature.ParseGIF, buf.Bytes(), signature.ConfidenceHigh)
	require.Contains(t, m.Description, "4 x 3, 1 frame(s)")

	_, err := signature.ParseGIF(buf.Bytes()[:buf.Len()-1], 0)
	require.Error(t, err)
}

func bmpFile() []byte {
	var buf bytes.Buffer
	buf.WriteString("BM")
	binary.Write(&buf, binary.LittleEndian, uint32(70)) // file size
	binary.Write(&buf, binary.LittleEndian, uint32(0))  // reserved
	binary.Write(&buf, binary.LittleEndian, uint32(54)) // data offset

	binary.Write(&buf, binary.LittleEndian, signature.DIBHeader{
		HeaderSize:   40,
		Width:        2,
		Height:       2,
		Planes:       1,
		BitsPerPixel: 24,
	})
	// Two rows of two pixels, padded to eight bytes each.
	buf.Write(make([]byte, 16))
	return buf.Bytes()
}

func TestParseBMP(t *testing.T) {
	bmp := bmpFile()
	require.Len(t, bmp, 70)

	m := requireMatch(t, signature.ParseBMP, bmp, signature.ConfidenceMedium)
	require.Equal(t, "PC bitmap, 2 x 2 x 24", m.Description)

	// A header claiming more bytes than available lowers the confidence.
	m, err := signature.ParseBMP(bmp[:60], 0)
	require.NoError(t, err)
	require.Equal(t, signature.ConfidenceLow, m.Confidence)

	bad := bytes.Clone(bmp)
	bad[26] = 2 // planes
	_, err = signature.ParseBMP(bad, 0)
	require.Error(t, err)

	_, err = signature.ParseBMP([]byte("BM not really a bitmap at all, just text"), 0)
	require.Error(t, err)
}

func TestParseTIFF(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("II*\x00")
	binary.Write(&buf, binary.LittleEndian, uint32(8))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	buf.Write(make([]byte, 12))
	binary.Write(&buf, binary.LittleEndian, uint32(0))

	m := requireMatch(t, signature.ParseTIFF, buf.Bytes(), signature.ConfidenceMedium)
	require.Equal(t, "TIFF image data, little-endian, 1 IFD(s)", m.Description)

	_, err := signature.ParseTIFF([]byte("II*\x00\x04\x00\x00\x00"), 0)
	require.Error(t, err)
}

func TestParsePDF(t *testing.T) {
	doc := []byte("%PDF-1.4\n1 0 obj\n<< >>\nendobj\ntrailer\n<< >>\n%%EOF\n")

	m := requireMatch(t, signature.ParsePDF, doc, signature.ConfidenceMedium)
	require.Equal(t, "PDF document, version 1.4", m.Description)

	linearized := fmt.Sprintf("%%PDF-1.7\n1 0 obj\n<< /Linearized 1 /L %d >>\nendobj\n", 60)
	linearized += strings.Repeat(" ", 60-len(linearized))
	m = requireMatch(t, signature.ParsePDF, []byte(linearized), signature.ConfidenceHigh)
	require.Contains(t, m.Description, "linearized")

	_, err := signature.ParsePDF([]byte("%PDF-1.4\nno end marker"), 0)
	require.Error(t, err)
}

func TestParseZIP(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range []string{"a.txt", "dir/b.txt"} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(strings.Repeat("content of "+name, 10)))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	m := requireMatch(t, signature.ParseZIP, buf.Bytes(), signature.ConfidenceHigh)
	require.Equal(t, "Zip archive data, 2 file entries", m.Description)
	require.False(t, m.ExtractionDeclined)

	_, err := signature.ParseZIP(buf.Bytes()[:20], 0)
	require.Error(t, err)

	// Cut inside the first entry data, then before the end of central directory.
	for _, n := range []int{40, buf.Len() - 10} {
		m := requireTruncated(t, signature.ParseZIP, buf.Bytes()[:n])
		require.True(t, strings.HasPrefix(m.Description, "Zip archive data"))
	}
}

func TestParseRAR(t *testing.T) {
	rar := append([]byte(nil), signature.Rar15Signature...)
	// Archive header: CRC, type, flags, size and six reserved bytes.
	rar = append(rar, 0, 0, 0x73, 0, 0, 13, 0, 0, 0, 0, 0, 0, 0)
	// End of archive block.
	rar = append(rar, 0, 0, 0x7B, 0, 0, 7, 0)

	m := requireMatch(t, signature.ParseRAR, rar, signature.ConfidenceHigh)
	require.Equal(t, "RAR archive data, version 4, 0 file(s)", m.Description)
	require.False(t, m.ExtractionDeclined)

	encrypted := bytes.Clone(rar)
	encrypted[10] = 0x80
	m, err := signature.ParseRAR(encrypted, 0)
	require.NoError(t, err)
	require.True(t, m.ExtractionDeclined)

	bad := bytes.Clone(rar)
	bad[9] = 0x10
	_, err = signature.ParseRAR(bad, 0)
	require.Error(t, err)
}

func TestParseSQLite(t *testing.T) {
	db := make([]byte, 2*1024)
	copy(db, signature.SQLiteSignature)
	binary.BigEndian.PutUint16(db[16:18], 1024)
	db[21], db[22], db[23] = 64, 32, 32
	binary.BigEndian.PutUint32(db[24:28], 3)
	binary.BigEndian.PutUint32(db[28:32], 2)
	binary.BigEndian.PutUint32(db[92:96], 3)

	m := requireMatch(t, signature.ParseSQLite, db, signature.ConfidenceHigh)
	require.Equal(t, "SQLite 3.x database, page size 1024, 2 page(s)", m.Description)

	stale := bytes.Clone(db)
	binary.BigEndian.PutUint32(stale[92:96], 2)
	_, err := signature.ParseSQLite(stale, 0)
	require.Error(t, err)

	badPage := bytes.Clone(db)
	binary.BigEndian.PutUint16(badPage[16:18], 1000)
	_, err = signature.ParseSQLite(badPage, 0)
	require.Error(t, err)
}

func wavFile(samples int) []byte {
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(4+8+16+8+samples))
	buf.WriteString("WAVEfmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1))     // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(1))     // channels
	binary.Write(&buf, binary.LittleEndian, uint32(8000))  // sample rate
	binary.Write(&buf, binary.LittleEndian, uint32(16000)) // byte rate
	binary.Write(&buf, binary.LittleEndian, uint16(2))     // block align
	binary.Write(&buf, binary.LittleEndian, uint16(16))    // bits per sample
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(samples))
	buf.Write(make([]byte, samples))
	return buf.Bytes()
}

func TestParseWAV(t *testing.T) {
	m := requireMatch(t, signature.ParseWAV, wavFile(64), signature.ConfidenceHigh)
	require.Equal(t, "RIFF (little-endian) data, WAVE audio, 1 channel(s), 8000 Hz, 16 bit", m.Description)

	_, err := signature.ParseWAV([]byte("RIFF\x10\x00\x00\x00AVI LIST"), 0)
	require.Error(t, err)
}

func TestParseGZIP(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	zw.Name = "hello.txt"
	_, err := zw.Write([]byte(strings.Repeat("hello world\n", 100)))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	m := requireMatch(t, signature.ParseGZIP, buf.Bytes(), signature.ConfidenceHigh)
	require.Contains(t, m.Description, `original file name: "hello.txt"`)
	require.Contains(t, m.Description, "decompressed size: 1200")

	_, err = signature.ParseGZIP([]byte{0x1F, 0x8B, 0x08, 0x00, 0xFF, 0xFF}, 0)
	require.Error(t, err)

	// The whole payload decodes before the trailer is cut.
	m = requireTruncated(t, signature.ParseGZIP, buf.Bytes()[:buf.Len()-4])
	require.Equal(t, signature.ConfidenceMedium, m.Confidence)

	var small bytes.Buffer
	zw = gzip.NewWriter(&small)
	_, err = zw.Write([]byte("hi"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	m = requireTruncated(t, signature.ParseGZIP, small.Bytes()[:small.Len()-4])
	require.Equal(t, signature.ConfidenceLow, m.Confidence)
}

func TestParseBZIP2(t *testing.T) {
	empty := []byte("BZh9\x17\x72\x45\x38\x50\x90\x00\x00\x00\x00")

	m := requireMatch(t, signature.ParseBZIP2, empty, signature.ConfidenceHigh)
	require.Contains(t, m.Description, "block size = 9k")

	_, err := signature.ParseBZIP2([]byte("BZh0\x31\x41\x59\x26\x53\x59"), 0)
	require.Error(t, err)
	_, err = signature.ParseBZIP2([]byte("BZh9 is just text"), 0)
	require.Error(t, err)

	m = requireTruncated(t, signature.ParseBZIP2, empty[:12])
	require.Equal(t, signature.ConfidenceLow, m.Confidence)
}

func TestParseXZ(t *testing.T) {
	var buf bytes.Buffer
	zw, err := xz.NewWriter(&buf)
	require.NoError(t, err)
	_, err = zw.Write([]byte(strings.Repeat("xz payload ", 50)))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	requireMatch(t, signature.ParseXZ, buf.Bytes(), signature.ConfidenceHigh)

	_, err = signature.ParseXZ(buf.Bytes()[:buf.Len()-12], 0)
	require.Error(t, err)
}

func TestParseLZMA(t *testing.T) {
	var buf bytes.Buffer
	zw, err := lzma.NewWriter(&buf)
	require.NoError(t, err)
	_, err = zw.Write([]byte(strings.Repeat("lzma payload ", 200)))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	m, err := signature.ParseLZMA(embed(buf.Bytes()), len(junk))
	require.NoError(t, err)
	require.Equal(t, signature.ConfidenceMedium, m.Confidence)
	require.Contains(t, m.Description, "uncompressed size: 2600 bytes")
	require.LessOrEqual(t, m.Size, uint64(buf.Len()))

	_, err = signature.ParseLZMA([]byte{0x5D, 0x00, 0x00, 0x00, 0x03, 0, 0, 0, 0, 0, 0, 0, 0}, 0)
	require.Error(t, err)

	requireTruncated(t, signature.ParseLZMA, buf.Bytes()[:buf.Len()/2])
}

func TestParseZSTD(t *testing.T) {
	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	frame := enc.EncodeAll([]byte(strings.Repeat("zstd payload ", 100)), nil)
	require.NoError(t, enc.Close())

	m := requireMatch(t, signature.ParseZSTD, frame, signature.ConfidenceHigh)
	require.Contains(t, m.Description, "content size: 1300")

	m = requireTruncated(t, signature.ParseZSTD, frame[:len(frame)-5])
	require.Equal(t, signature.ConfidenceMedium, m.Confidence)
	require.Contains(t, m.Description, "content size: 1300")

	_, err = signature.ParseZSTD(frame[:4], 0)
	require.Error(t, err)

	reserved := bytes.Clone(frame)
	reserved[4] |= 0x08
	_, err = signature.ParseZSTD(reserved, 0)
	require.ErrorContains(t, err, "reserved")
}

func TestParseTAR(t *testing.T) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, name := range []string{"a.txt", "b.txt"} {
		data := []byte("contents of " + name)
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     name,
			Mode:     0o644,
			Size:     int64(len(data)),
			Typeflag: tar.TypeReg,
			Format:   tar.FormatUSTAR,
		}))
		_, err := tw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())

	// Two headers, two data blocks and the end-of-archive blocks.
	require.Equal(t, 6*512, buf.Len())

	m := requireMatch(t, signature.ParseTAR, buf.Bytes(), signature.ConfidenceHigh)
	require.Equal(t, "POSIX tar archive, 2 entries", m.Description)

	bad := bytes.Clone(buf.Bytes())
	bad[0] ^= 0xFF
	_, err := signature.ParseTAR(bad, 0)
	require.ErrorContains(t, err, "checksum")

	// Cut inside the first header.
	_, err = signature.ParseTAR(buf.Bytes()[:300], 0)
	require.Error(t, err)

	// Cut inside the first entry data, then inside the second header.
	for _, n := range []int{700, 1100} {
		m := requireTruncated(t, signature.ParseTAR, buf.Bytes()[:n])
		require.Equal(t, signature.ConfidenceMedium, m.Confidence)
		require.Equal(t, "POSIX tar archive, 1 entries, truncated", m.Description)
	}

	// A header cut inside its entry data.
	m = requireTruncated(t, signature.ParseTAR, buf.Bytes()[:1600])
	require.Equal(t, "POSIX tar archive, 2 entries, truncated", m.Description)
}

func newcEntry(name string, mode uint32, data []byte) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "070701%08X%08X%08X%08X%08X%08X%08X%08X%08X%08X%08X%08X%08X",
		0, mode, 0, 0, 1, 0, len(data), 0, 0, 0, 0, len(name)+1, 0)
	buf.WriteString(name)
	buf.WriteByte(0)
	for buf.Len()%4 != 0 {
		buf.WriteByte(0)
	}
	buf.Write(data)
	for buf.Len()%4 != 0 {
		buf.WriteByte(0)
	}
	return buf.Bytes()
}

func TestParseCPIO(t *testing.T) {
	archive := newcEntry("hello.txt", 0o100644, []byte("hello"))
	archive = append(archive, newcEntry("TRAILER!!!", 0, nil)...)
	require.Len(t, archive, 252)

	m := requireMatch(t, signature.ParseCPIO, archive, signature.ConfidenceHigh)
	require.Equal(t, "ASCII cpio archive (SVR4), 1 entries", m.Description)

	_, err := signature.ParseCPIO(archive[:100], 0)
	require.Error(t, err)

	// No trailer, then cut inside the entry data.
	for _, n := range []int{128, 120} {
		m := requireTruncated(t, signature.ParseCPIO, archive[:n])
		require.Equal(t, signature.ConfidenceMedium, m.Confidence)
		require.Equal(t, "ASCII cpio archive (SVR4), 1 entries, truncated", m.Description)
	}
}

func elfHeader() []byte {
	hdr := make([]byte, 64)
	copy(hdr, "\x7FELF")
	hdr[4], hdr[5], hdr[6] = 2, 1, 1
	binary.LittleEndian.PutUint16(hdr[16:18], 2)
	binary.LittleEndian.PutUint16(hdr[18:20], 0x3E)
	binary.LittleEndian.PutUint32(hdr[20:24], 1)
	binary.LittleEndian.PutUint16(hdr[52:54], 64)
	return hdr
}

func TestParseELF(t *testing.T) {
	m := requireMatch(t, signature.ParseELF, elfHeader(), signature.ConfidenceMedium)
	require.Equal(t, "ELF 64-bit LSB executable, x86-64", m.Description)

	// Section headers past the end of the data.
	hdr := elfHeader()
	binary.LittleEndian.PutUint64(hdr[40:48], 64)
	binary.LittleEndian.PutUint16(hdr[58:60], 64)
	binary.LittleEndian.PutUint16(hdr[60:62], 2)
	m, err := signature.ParseELF(hdr, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(192), m.Size)
	require.Equal(t, signature.ConfidenceLow, m.Confidence)

	bad := elfHeader()
	bad[6] = 0
	_, err = signature.ParseELF(bad, 0)
	require.Error(t, err)
}
