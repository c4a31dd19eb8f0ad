package emit

import (
	"encoding/binary"
	"strconv"
	"strings"
)

const (
	// DevBlobSymbol is the symbol the runtime looks up to find the packed imports
	DevBlobSymbol = "__tvm_dev_mblob"

	// RegisterFunc registers a symbol with the runtime's system library table
	RegisterFunc = "TVMBackendRegisterSystemLibSymbol"

	// ExportMacro marks the array as exported from a shared library on Windows
	ExportMacro = "TVM_EXPORT"

	// lengthBytes is the size of the little-endian length header in front of the blob
	lengthBytes = 8

	// cellsPerLine keeps lines within 80 columns at about 4 characters per cell
	cellsPerLine = 80 / 4
)

// Options controls the emitted fragment
type Options struct {
	// Symbol names the byte array; DevBlobSymbol when empty
	Symbol string

	// SystemLib adds a static initializer that registers the array with the
	// runtime's system library so no dynamic loader is needed
	SystemLib bool
}

func (o Options) symbol() string {
	if o.Symbol == "" {
		return DevBlobSymbol
	}
	return o.Symbol
}

// EmitC renders blob as a C translation unit defining a byte array of
// len(blob)+8 cells: the blob length as 8 little-endian bytes, then the blob.
// The output depends only on its arguments.
func EmitC(blob []byte, opts Options) string {
	sym := opts.symbol()

	var sb strings.Builder
	sb.Grow(len(blob)*5 + 512)

	sb.WriteString("#ifdef _WIN32\n")
	sb.WriteString("#define " + ExportMacro + " __declspec(dllexport)\n")
	sb.WriteString("#else\n")
	sb.WriteString("#define " + ExportMacro + "\n")
	sb.WriteString("#endif\n")
	sb.WriteString("#ifdef __cplusplus\n")
	sb.WriteString("extern \"C\" {\n")
	sb.WriteString("#endif\n")

	sb.WriteString(ExportMacro + " extern const unsigned char " + sym + "[];\n")
	sb.WriteString("const unsigned char " + sym + "[")
	sb.WriteString(strconv.Itoa(len(blob) + lengthBytes))
	sb.WriteString("] = {\n  ")

	var header [lengthBytes]byte
	binary.LittleEndian.PutUint64(header[:], uint64(len(blob)))
	for i, b := range header {
		if i != 0 {
			sb.WriteByte(',')
		}
		writeCell(&sb, b)
	}
	for i, b := range blob {
		if (i+lengthBytes)%cellsPerLine == 0 {
			sb.WriteString(",\n  ")
		} else {
			sb.WriteByte(',')
		}
		writeCell(&sb, b)
	}
	sb.WriteString("\n};\n")

	if opts.SystemLib {
		sb.WriteString("extern int " + RegisterFunc + "(const char*, void*);\n")
		sb.WriteString("static int " + sym + "_reg_ = " + RegisterFunc +
			"(\"" + sym + "\", (void*)" + sym + ");\n")
	}

	sb.WriteString("#ifdef __cplusplus\n")
	sb.WriteString("}\n")
	sb.WriteString("#endif\n")
	return sb.String()
}

// writeCell writes b as lowercase hex without zero padding (10 -> 0xa)
func writeCell(sb *strings.Builder, b byte) {
	var buf [4]byte
	sb.Write(strconv.AppendUint(append(buf[:0], '0', 'x'), uint64(b), 16))
}
