package globalplatform

import (
	"archive/zip"
	"bytes"
	"errors"
	"io/ioutil"
	"os"

	"github.com/status-im/keycard-host/apdu"
)

// blockSize keeps room for the 8 byte MAC the wrapper appends.
const blockSize = 247

var ErrEmptyPackage = errors.New("cap file contains no components")

// internalFiles are the cap components in load order.
var internalFiles = []string{
	"Header", "Directory", "Import", "Applet", "Class",
	"Method", "StaticField", "Export", "ConstantPool", "RefLocation",
}

// LoadCommandStream splits a cap file into the sequence of LOAD commands
// accepted by the security domain.
type LoadCommandStream struct {
	data         *bytes.Reader
	currentIndex uint8
	currentData  []byte
	p1           uint8
	blocksCount  int
}

// NewLoadCommandStream reads the cap components from file and prepares the
// block stream.
func NewLoadCommandStream(file *os.File) (*LoadCommandStream, error) {
	info, err := file.Stat()
	if err != nil {
		return nil, err
	}

	zipReader, err := zip.NewReader(file, info.Size())
	if err != nil {
		return nil, err
	}

	entries := make(map[string][]byte)
	for _, f := range zipReader.File {
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}

		data, err := ioutil.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, err
		}

		entries[componentName(f.Name)] = data
	}

	files := new(bytes.Buffer)
	for _, name := range internalFiles {
		if data, ok := entries[name+".cap"]; ok {
			files.Write(data)
		}
	}

	if files.Len() == 0 {
		return nil, ErrEmptyPackage
	}

	loadData, err := apdu.NewTLV(0xC4, files.Bytes())
	if err != nil {
		return nil, err
	}

	return &LoadCommandStream{
		data:        bytes.NewReader(loadData),
		p1:          P1LoadMoreBlocks,
		blocksCount: (len(loadData) + blockSize - 1) / blockSize,
	}, nil
}

// Next advances to the next block. It returns false when the stream is
// exhausted.
func (lcs *LoadCommandStream) Next() bool {
	if lcs.data.Len() == 0 {
		return false
	}

	buf := make([]byte, blockSize)
	n, err := lcs.data.Read(buf)
	if err != nil {
		return false
	}

	lcs.currentData = buf[:n]
	lcs.currentIndex++

	if lcs.data.Len() == 0 {
		lcs.p1 = P1LoadLastBlock
	}

	return true
}

// GetCommand returns the LOAD command for the current block.
func (lcs *LoadCommandStream) GetCommand() *apdu.Command {
	return apdu.NewCommand(ClaGp, InsLoad, lcs.p1, lcs.currentIndex-1, lcs.currentData)
}

// Index returns the zero based index of the current block.
func (lcs *LoadCommandStream) Index() uint8 {
	return lcs.currentIndex - 1
}

// BlocksCount returns the total number of blocks in the stream.
func (lcs *LoadCommandStream) BlocksCount() int {
	return lcs.blocksCount
}

func componentName(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}

	return path
}
