package main

import (
	"bufio"
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"sync"
	"unicode/utf16"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// DefaultPPI is the sheet resolution used when none is configured.
const DefaultPPI = 150.0

// PDFEncoder writes a one-page printable sheet: the colored raster as the
// page background, optionally overlaid with the outlines traced to vectors.
type PDFEncoder struct {
	PPI      float64
	Outlines bool
	Title    string
}

// Pooled zlib writers to amortize internal hash table allocation.
var zlibWriterPool = sync.Pool{
	New: func() any {
		w, _ := zlib.NewWriterLevel(&bytes.Buffer{}, zlib.BestSpeed)
		return w
	},
}

func compressZlib(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(len(data) / 4)

	w := zlibWriterPool.Get().(*zlib.Writer)
	w.Reset(&buf)

	if _, err := w.Write(data); err != nil {
		zlibWriterPool.Put(w)
		return nil, err
	}
	if err := w.Close(); err != nil {
		zlibWriterPool.Put(w)
		return nil, err
	}
	zlibWriterPool.Put(w)
	return buf.Bytes(), nil
}

// flattenRGB drops alpha by compositing the buffer over white.
func flattenRGB(buf *PixelBuffer) []byte {
	n := buf.width * buf.height
	rgb := make([]byte, n*3)
	pix := buf.pix
	for i := 0; i < n; i++ {
		s, d := i*4, i*3
		a := uint32(pix[s+3])
		if a == 0xFF {
			rgb[d], rgb[d+1], rgb[d+2] = pix[s], pix[s+1], pix[s+2]
			continue
		}
		inv := 255 - a
		rgb[d] = byte((uint32(pix[s])*a + 255*inv) / 255)
		rgb[d+1] = byte((uint32(pix[s+1])*a + 255*inv) / 255)
		rgb[d+2] = byte((uint32(pix[s+2])*a + 255*inv) / 255)
	}
	return rgb
}

// appendFloat4 appends a float formatted to 4 decimal places (like %.4f).
func appendFloat4(buf []byte, f float64) []byte {
	rounded := math.Round(f*10000) / 10000
	return strconv.AppendFloat(buf, rounded, 'f', 4, 64)
}

type pdfObject struct {
	id   int
	data []byte
}

// pdfWriter wraps a buffered writer with offset tracking for PDF generation.
type pdfWriter struct {
	w      *bufio.Writer
	offset uint64
}

func (pw *pdfWriter) write(data []byte) {
	pw.w.Write(data)
	pw.offset += uint64(len(data))
}

func (pw *pdfWriter) writeStr(s string) {
	pw.w.WriteString(s)
	pw.offset += uint64(len(s))
}

func (pw *pdfWriter) writeHeader() {
	pw.write([]byte("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n"))
}

func (pw *pdfWriter) writeXrefTrailer(xrefOffsets []uint64, totalObjects, infoID int) {
	xrefStart := pw.offset
	pw.writeStr("xref\n")
	pw.writeStr(fmt.Sprintf("0 %d\n", totalObjects+1))
	pw.writeStr("0000000000 65535 f \n")
	for _, off := range xrefOffsets {
		fmt.Fprintf(pw.w, "%010d 00000 n \n", off)
		pw.offset += 20
	}
	pw.writeStr("trailer\n")
	if infoID > 0 {
		pw.writeStr(fmt.Sprintf("<< /Size %d /Root 1 0 R /Info %d 0 R >>\n", totalObjects+1, infoID))
	} else {
		pw.writeStr(fmt.Sprintf("<< /Size %d /Root 1 0 R >>\n", totalObjects+1))
	}
	pw.writeStr("startxref\n")
	pw.writeStr(fmt.Sprintf("%d\n", xrefStart))
	pw.writeStr("%%EOF\n")
}

// pdfTextString encodes s as a PDF text string: an escaped literal for
// ASCII, UTF-16BE hex with a byte order mark otherwise.
func pdfTextString(s string) string {
	ascii := true
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			ascii = false
			break
		}
	}
	if ascii {
		var b bytes.Buffer
		b.WriteByte('(')
		for i := 0; i < len(s); i++ {
			switch c := s[i]; c {
			case '\\', '(', ')':
				b.WriteByte('\\')
				b.WriteByte(c)
			default:
				b.WriteByte(c)
			}
		}
		b.WriteByte(')')
		return b.String()
	}
	var b bytes.Buffer
	b.WriteString("<FEFF")
	for _, u := range utf16.Encode([]rune(s)) {
		fmt.Fprintf(&b, "%04X", u)
	}
	b.WriteByte('>')
	return b.String()
}

// Encode implements Encoder.
func (e PDFEncoder) Encode(w io.Writer, buf *PixelBuffer) error {
	if buf == nil || buf.width == 0 || buf.height == 0 {
		return ErrEmptyImage
	}
	ppi := e.PPI
	if ppi <= 0 {
		ppi = DefaultPPI
	}
	width, height := buf.width, buf.height
	pageWidthPt := float64(width) / ppi * 72.0
	pageHeightPt := float64(height) / ppi * 72.0

	compressed, err := compressZlib(flattenRGB(buf))
	if err != nil {
		return fmt.Errorf("compressing sheet image: %w", err)
	}

	content := make([]byte, 0, 16*1024)
	content = append(content, "q\n"...)
	content = appendFloat4(content, pageWidthPt)
	content = append(content, " 0 0 "...)
	content = appendFloat4(content, pageHeightPt)
	content = append(content, " 0 0 cm\n/Im1 Do\nQ\n"...)

	if e.Outlines {
		paths, err := traceOutlines(buf)
		if err != nil {
			return err
		}
		if len(paths) > 0 {
			sx := pageWidthPt / float64(width)
			sy := pageHeightPt / float64(height)
			content = append(content, "q\n0 0 0 rg\n"...)
			for _, p := range paths {
				content = appendPDFSubpathTree(content, p, sx, sy, pageHeightPt)
			}
			content = append(content, "f*\nQ\n"...)
		}
	}

	const (
		pageObjID     = 3
		contentsObjID = 4
		imageObjID    = 5
		infoObjID     = 6
	)

	objects := []pdfObject{
		{id: 1, data: []byte("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")},
		{id: 2, data: fmt.Appendf(nil, "2 0 obj\n<< /Type /Pages /Kids [ %d 0 R ] /Count 1 >>\nendobj\n", pageObjID)},
		{id: pageObjID, data: fmt.Appendf(nil,
			"%d 0 obj\n<< /Type /Page\n   /Parent 2 0 R\n   /MediaBox [0 0 %.2f %.2f]\n   /Contents %d 0 R\n   /Resources << /XObject << /Im1 %d 0 R >> >>\n>>\nendobj\n",
			pageObjID, pageWidthPt, pageHeightPt, contentsObjID, imageObjID)},
		{id: contentsObjID, data: fmt.Appendf(nil,
			"%d 0 obj\n<< /Length %d >>\nstream\n%sendstream\nendobj\n",
			contentsObjID, len(content), content)},
	}

	var imageObj bytes.Buffer
	imageObj.Grow(len(compressed) + 256)
	fmt.Fprintf(&imageObj,
		"%d 0 obj\n<< /Type /XObject\n   /Subtype /Image\n   /Width %d\n   /Height %d\n   /ColorSpace /DeviceRGB\n   /BitsPerComponent 8\n   /Filter /FlateDecode\n   /Length %d >>\nstream\n",
		imageObjID, width, height, len(compressed))
	imageObj.Write(compressed)
	imageObj.WriteString("\nendstream\nendobj\n")
	objects = append(objects, pdfObject{id: imageObjID, data: imageObj.Bytes()})

	infoID := 0
	if e.Title != "" {
		infoID = infoObjID
		objects = append(objects, pdfObject{id: infoObjID, data: fmt.Appendf(nil,
			"%d 0 obj\n<< /Title %s /Producer (GoColorea) >>\nendobj\n", infoObjID, pdfTextString(e.Title))})
	}

	pw := &pdfWriter{w: bufio.NewWriter(w)}
	xrefOffsets := make([]uint64, len(objects))

	pw.writeHeader()
	for _, obj := range objects {
		xrefOffsets[obj.id-1] = pw.offset
		pw.write(obj.data)
	}
	pw.writeXrefTrailer(xrefOffsets, len(objects), infoID)
	return pw.w.Flush()
}

// WriteSheetFile writes buf as a PDF sheet to path. With validate set the
// result is checked by pdfcpu before returning.
func WriteSheetFile(path string, buf *PixelBuffer, enc PDFEncoder, validate bool) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := enc.Encode(f, buf); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if validate {
		if err := api.ValidateFile(path, model.NewDefaultConfiguration()); err != nil {
			return fmt.Errorf("validating %s: %w", path, err)
		}
	}
	return nil
}
