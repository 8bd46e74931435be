// Package parser implements the streaming MBOX container parser (spec
// component 1) and the header/date decoder (component 2). It never loads
// an archive fully into memory: both scan operations stream the file
// line-by-line through a single bufio.Reader pass.
package parser

import (
	"bufio"
	"io"
	"os"

	"github.com/dcarrero/mboxshell-go/config"
	"github.com/dcarrero/mboxshell-go/internal/logging"
	"github.com/dcarrero/mboxshell-go/mboxerr"
)

// progressInterval is how often (in bytes consumed) the progress callback
// fires during a scan.
const progressInterval = 4 << 20 // 4 MiB

// Parser scans an MBOX archive sequentially, discovering message
// boundaries without ever buffering the whole file.
type Parser struct {
	path           string
	fileSize       int64
	maxMessageSize int64
	readBufferSize int
}

// Open verifies the archive exists and is readable and records its size,
// but does not validate that it is actually an MBOX.
func Open(path string, cfg config.Config) (*Parser, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, mboxerr.New(mboxerr.MissingArchive, path, err)
		}
		return nil, mboxerr.New(mboxerr.ArchiveIO, path, err)
	}

	readBuf := cfg.ReadBufferSize
	if readBuf <= 0 {
		readBuf = 1 << 20
	}
	maxMsg := cfg.MaxMessageSize
	if maxMsg <= 0 {
		maxMsg = 256 << 20
	}

	return &Parser{
		path:           path,
		fileSize:       info.Size(),
		maxMessageSize: maxMsg,
		readBufferSize: readBuf,
	}, nil
}

// FileSize returns the archive's size in bytes as observed at Open time.
func (p *Parser) FileSize() int64 { return p.fileSize }

// Path returns the archive path.
func (p *Parser) Path() string { return p.path }

// MessageCallback receives a message's offset and full raw bytes. Returning
// false stops the scan; the scan function then returns the count of
// messages already delivered.
type MessageCallback func(offset uint64, raw []byte) bool

// HeaderCallback receives a message's offset, total length (headers+body),
// and just the header-block bytes. Returning false stops the scan.
type HeaderCallback func(offset uint64, length uint64, header []byte) bool

// ProgressFunc is invoked with (bytesRead, fileSize) at ~4 MiB intervals and
// once more with (fileSize, fileSize) on normal termination.
type ProgressFunc func(bytesRead, fileSize int64)

// ScanFull walks the archive, materializing each message's entire byte
// range and invoking cb for it. Returns the number of messages delivered.
func (p *Parser) ScanFull(cb MessageCallback, progress ProgressFunc) (uint64, error) {
	if p.fileSize == 0 {
		return 0, nil
	}

	log := logging.WithComponent("parser")

	f, err := os.Open(p.path)
	if err != nil {
		return 0, mboxerr.New(mboxerr.ArchiveIO, p.path, err)
	}
	defer f.Close()

	reader := bufio.NewReaderSize(f, p.readBufferSize)

	var (
		count           uint64
		currentOffset   int64
		messageBuf      []byte
		messageStart    int64
		bytesRead       int64
		lastProgress    int64
		prevLineWasEmpty = true
		firstLine        = true
		exceeded         bool
	)

	flush := func() bool {
		if len(messageBuf) == 0 {
			return true
		}
		ok := cb(uint64(messageStart), messageBuf)
		if ok {
			count++
		}
		return ok
	}

	for {
		line, eof, rerr := readLine(reader)
		if rerr != nil {
			return count, mboxerr.New(mboxerr.ArchiveIO, p.path, rerr)
		}
		if len(line) == 0 && eof {
			break
		}

		isFrom := isSeparator(line)

		switch {
		case isFrom && (firstLine || prevLineWasEmpty):
			if len(messageBuf) != 0 {
				if !flush() {
					return count, nil
				}
			}
			messageStart = currentOffset
			messageBuf = append([]byte(nil), line...)
			exceeded = false

		case isFrom && !prevLineWasEmpty && !firstLine:
			log.Warn().Int64("offset", currentOffset).Msg("found From separator without preceding blank line")
			if len(messageBuf) != 0 {
				if !flush() {
					return count, nil
				}
			}
			messageStart = currentOffset
			messageBuf = append([]byte(nil), line...)
			exceeded = false

		case int64(len(messageBuf)+len(line)) <= p.maxMessageSize:
			messageBuf = append(messageBuf, line...)

		case !exceeded:
			exceeded = true
			log.Warn().Int64("offset", messageStart).Int64("maxSize", p.maxMessageSize).
				Msg("message exceeds maximum size, truncating body")
		}

		prevLineWasEmpty = isBlankLine(line)
		firstLine = false
		currentOffset += int64(len(line))
		bytesRead += int64(len(line))

		if progress != nil && bytesRead-lastProgress >= progressInterval {
			progress(bytesRead, p.fileSize)
			lastProgress = bytesRead
		}

		if eof {
			break
		}
	}

	if len(messageBuf) != 0 {
		if cb(uint64(messageStart), messageBuf) {
			count++
		}
	}

	if progress != nil {
		progress(p.fileSize, p.fileSize)
	}

	return count, nil
}

// ScanHeaders walks the archive like ScanFull but only materializes the
// header block (bytes up to, not including, the first blank line) of each
// message, which is far cheaper for index building over huge archives.
func (p *Parser) ScanHeaders(cb HeaderCallback, progress ProgressFunc) (uint64, error) {
	if p.fileSize == 0 {
		return 0, nil
	}

	log := logging.WithComponent("parser")

	f, err := os.Open(p.path)
	if err != nil {
		return 0, mboxerr.New(mboxerr.ArchiveIO, p.path, err)
	}
	defer f.Close()

	reader := bufio.NewReaderSize(f, p.readBufferSize)

	var (
		count            uint64
		currentOffset    int64
		headerBuf        []byte
		inHeaders        bool
		prevLineWasEmpty = true
		firstLine        = true
		bytesRead        int64
		lastProgress     int64
		prevMessageStart int64
		havePrevStart    bool
		prevHeaders      []byte
	)

	// emitPrev delivers the previous message's header block: prevHeaders if
	// its blank line was reached normally, otherwise whatever headerBuf has
	// accumulated so far (headers ran straight into the next separator with
	// no blank line, which this parser must tolerate rather than reject).
	emitPrev := func() bool {
		if !havePrevStart {
			return true
		}
		hdrs := prevHeaders
		if hdrs == nil {
			hdrs = headerBuf
		}
		length := uint64(currentOffset - prevMessageStart)
		ok := cb(uint64(prevMessageStart), length, hdrs)
		if ok {
			count++
		}
		return ok
	}

	for {
		line, eof, rerr := readLine(reader)
		if rerr != nil {
			return count, mboxerr.New(mboxerr.ArchiveIO, p.path, rerr)
		}
		if len(line) == 0 && eof {
			break
		}

		isFrom := isSeparator(line)

		if isFrom {
			if !firstLine && !prevLineWasEmpty {
				log.Warn().Int64("offset", currentOffset).Msg("found From separator without preceding blank line")
			}

			if havePrevStart {
				if !emitPrev() {
					return count, nil
				}
			}

			headerBuf = append([]byte(nil), line...)
			prevHeaders = nil
			inHeaders = true
			prevMessageStart = currentOffset
			havePrevStart = true
		} else if inHeaders {
			if isBlankLine(line) {
				inHeaders = false
				prevHeaders = headerBuf
				headerBuf = nil
			} else {
				headerBuf = append(headerBuf, line...)
			}
		}

		prevLineWasEmpty = isBlankLine(line)
		firstLine = false
		currentOffset += int64(len(line))
		bytesRead += int64(len(line))

		if progress != nil && bytesRead-lastProgress >= progressInterval {
			progress(bytesRead, p.fileSize)
			lastProgress = bytesRead
		}

		if eof {
			break
		}
	}

	if havePrevStart {
		hdrs := prevHeaders
		if hdrs == nil {
			hdrs = headerBuf
		}
		length := uint64(currentOffset - prevMessageStart)
		if cb(uint64(prevMessageStart), length, hdrs) {
			count++
		}
	}

	if progress != nil {
		progress(p.fileSize, p.fileSize)
	}

	return count, nil
}

// ReadSpan performs a stateless random read of length bytes at offset
// within the archive at path.
func ReadSpan(path string, offset, length uint64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, mboxerr.New(mboxerr.ArchiveIO, path, err)
	}
	defer f.Close()

	if _, err := f.Seek(int64(offset), io.SeekStart); err != nil {
		return nil, mboxerr.New(mboxerr.ArchiveIO, path, err)
	}

	buf := make([]byte, length)
	if _, err := io.ReadFull(f, buf); err != nil {
		return nil, mboxerr.New(mboxerr.ArchiveIO, path, err)
	}
	return buf, nil
}

// readLine reads one line (including its trailing \n, if any) from r. eof
// is true once the underlying reader is exhausted; line may still hold a
// final, unterminated line in that case.
func readLine(r *bufio.Reader) (line []byte, eof bool, err error) {
	line, err = r.ReadBytes('\n')
	if err != nil {
		if err == io.EOF {
			return line, true, nil
		}
		return nil, false, err
	}
	return line, false, nil
}

// isSeparator reports whether line begins a new MBOX message: it starts
// with the literal bytes "From " (a UTF-8 BOM before that is tolerated,
// but only matters for the first line of a file). ">From " quoting is
// never a separator.
func isSeparator(line []byte) bool {
	line = stripBOM(line)
	return len(line) >= 5 && line[0] == 'F' && line[1] == 'r' && line[2] == 'o' && line[3] == 'm' && line[4] == ' '
}

// isBlankLine reports whether a line is empty or holds only whitespace/CR/LF.
func isBlankLine(line []byte) bool {
	for _, b := range line {
		switch b {
		case '\n', '\r', ' ', '\t':
			continue
		default:
			return false
		}
	}
	return true
}

func stripBOM(b []byte) []byte {
	if len(b) >= 3 && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		return b[3:]
	}
	return b
}
